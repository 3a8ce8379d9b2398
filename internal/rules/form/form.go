// Package form audits access to raw, unvalidated form input.
package form

import (
	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/matcher"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/token"
)

// RuleID identifies the form input audit.
const RuleID = "Form.Form"

// CodeForm is reported for every raw input access.
const CodeForm = "Form"

const msgUserInput = "FormState::getUserInput() Detected."

// FormRule looks at a short window of tokens starting at each variable.
type FormRule struct {
	window  int
	markers *matcher.Matcher
}

// NewFormRule creates the rule from the tracked tables.
func NewFormRule(tables types.Tables) *FormRule {
	window := tables.FormWindow
	if window <= 0 {
		window = types.DefaultTables().FormWindow
	}
	return &FormRule{window: window, markers: matcher.New(tables.FormMarkers...)}
}

// Meta returns the rule description.
func (r *FormRule) Meta() types.Meta {
	return types.Meta{
		ID:          RuleID,
		Name:        "Raw form input",
		Description: "FormState::getUserInput() returns raw and unvalidated user data",
		Codes:       []string{CodeForm},
		Tags:        []string{"form", "input"},
		References:  []string{"https://api.drupal.org/api/drupal/core%21lib%21Drupal%21Core%21Form%21FormState.php/function/FormState%3A%3AgetUserInput/10.0.x"},
	}
}

// Subscriptions returns the token kinds the rule inspects.
func (r *FormRule) Subscriptions() []token.Kind {
	return []token.Kind{token.Variable}
}

// Process checks the window starting at idx.
func (r *FormRule) Process(file *types.File, idx int, sink *diag.Sink) types.Action {
	tok, ok := file.Stream.At(idx)
	if !ok {
		return types.Continue
	}
	if r.markers.Contains(file.Stream.Concat(idx, r.window)) {
		sink.Warning(RuleID, CodeForm, msgUserInput, tok.Line)
	}
	return types.Continue
}
