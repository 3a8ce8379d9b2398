// Package javascript audits script files for unsafe DOM writes and
// injected script markup.
package javascript

import (
	"strings"

	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/matcher"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/token"
)

// RuleID identifies the script audit.
const RuleID = "Javascript.Javascript"

const (
	CodeXSS       = "XssAttack"
	CodeInjection = "CodeInjection"
)

const (
	msgInnerHTML = "Setting the value of innerHTML detected."
	msgScript    = "Potential script injection detected."
)

// Extension is the file extension the rule applies to.
const Extension = ".js"

// JavascriptRule inspects raw text of .js artifacts line by line.
type JavascriptRule struct {
	xss  *matcher.Matcher
	code *matcher.Matcher
}

// NewJavascriptRule creates the rule from the tracked tables.
func NewJavascriptRule(tables types.Tables) *JavascriptRule {
	xss := make([]string, 0, len(tables.JavascriptXSS))
	for _, m := range tables.JavascriptXSS {
		xss = append(xss, types.StripSpace(m))
	}
	code := make([]string, 0, len(tables.JavascriptCode))
	for _, m := range tables.JavascriptCode {
		code = append(code, strings.ToLower(types.StripSpace(m)))
	}
	return &JavascriptRule{xss: matcher.New(xss...), code: matcher.New(code...)}
}

// Meta returns the rule description.
func (r *JavascriptRule) Meta() types.Meta {
	return types.Meta{
		ID:          RuleID,
		Name:        "Script injection",
		Description: "innerHTML assignments and script markup in JavaScript files",
		Codes:       []string{CodeXSS, CodeInjection},
		Tags:        []string{"xss", "javascript"},
		References:  []string{"https://dev.to/caffiendkitten/innerhtml-cross-site-scripting-agc"},
	}
}

// Subscriptions returns the token kinds the rule inspects.
func (r *JavascriptRule) Subscriptions() []token.Kind {
	return []token.Kind{token.InlineText, token.RawDoc}
}

// Applies reports whether the artifact is a script file.
func (r *JavascriptRule) Applies(file *types.File) bool {
	return strings.HasSuffix(strings.ToLower(file.Path), Extension)
}

// Process checks the text of the token at idx.
func (r *JavascriptRule) Process(file *types.File, idx int, sink *diag.Sink) types.Action {
	if !r.Applies(file) {
		return types.SkipArtifact
	}
	tok, ok := file.Stream.At(idx)
	if !ok {
		return types.Continue
	}
	text := types.StripSpace(tok.Text)
	if r.xss.Contains(text) {
		sink.Warning(RuleID, CodeXSS, msgInnerHTML, tok.Line)
	}
	if r.code.Contains(strings.ToLower(text)) {
		sink.Warning(RuleID, CodeInjection, msgScript, tok.Line)
	}
	return types.Continue
}
