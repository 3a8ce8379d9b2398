// Package render audits render arrays for inline templates.
package render

import (
	"github.com/drupal-spider/DrupalSecurity/internal/callsite"
	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/token"
)

// RuleID identifies the render array audit.
const RuleID = "Render.Render"

// CodeRender is reported for inline templates.
const CodeRender = "Render"

const (
	reference = "https://www.drupal.org/project/drupal/issues/3331205"
	msgInline = "Inline template found. Check for SSTI. For example " + reference
)

// RenderRule checks '#type' => 'inline_template' pairs.
type RenderRule struct {
	keys      []string
	templates []string
}

// NewRenderRule creates the rule from the tracked render keys and
// inline template types.
func NewRenderRule(tables types.Tables) *RenderRule {
	return &RenderRule{keys: tables.RenderKeys, templates: tables.InlineTemplates}
}

// Meta returns the rule description.
func (r *RenderRule) Meta() types.Meta {
	return types.Meta{
		ID:          RuleID,
		Name:        "Inline template",
		Description: "Render arrays using inline_template can lead to server-side template injection",
		Codes:       []string{CodeRender},
		Tags:        []string{"ssti", "render"},
		References:  []string{reference},
	}
}

// Subscriptions returns the token kinds the rule inspects.
func (r *RenderRule) Subscriptions() []token.Kind {
	return []token.Kind{token.DoubleArrow}
}

// Process inspects the key and value around the arrow at idx.
func (r *RenderRule) Process(file *types.File, idx int, sink *diag.Sink) types.Action {
	s := file.Stream
	arrow, ok := s.At(idx)
	if !ok {
		return types.Continue
	}
	key, ok := s.At(s.FindPreviousExcluding(token.EmptyKinds, idx))
	if !ok || key.Kind != token.StringLiteral {
		return types.Continue
	}
	if !types.ContainsFold(r.keys, callsite.Clean(key.Text)) {
		return types.Continue
	}
	value, ok := s.At(s.FindNextExcluding(token.EmptyKinds, idx+1))
	if !ok || value.Kind != token.StringLiteral {
		return types.Continue
	}
	if types.ContainsFold(r.templates, callsite.Clean(value.Text)) {
		sink.Warning(RuleID, CodeRender, msgInline, arrow.Line)
	}
	return types.Continue
}
