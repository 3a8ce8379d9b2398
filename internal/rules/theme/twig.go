// Package theme audits Twig templates for unescaped output.
package theme

import (
	"strings"

	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/matcher"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/token"
)

// RuleID identifies the template audit.
const RuleID = "Theme.TwigTemplate"

const (
	CodeUnsafeFilter   = "UnsafeFilterFound"
	CodeUnsafeTemplate = "UnsafeTwigTemplate"
)

const (
	twigReference    = "https://www.drupal.org/docs/security-in-drupal/writing-secure-code-for-drupal#s-use-twig-templates"
	msgRawFilter     = "The raw filter should be avoided whenever possible."
	msgUnquotedAttrs = "rendering attributes in Twig should be wrapped with double or single quotes. @see " + twigReference
)

// Extension is the file extension the rule applies to.
const Extension = ".twig"

// TwigTemplateRule inspects raw text of .twig artifacts line by line.
type TwigTemplateRule struct {
	raw   *matcher.Matcher
	attrs *matcher.Matcher
}

// NewTwigTemplateRule creates the rule from the tracked tables.
func NewTwigTemplateRule(tables types.Tables) *TwigTemplateRule {
	return &TwigTemplateRule{
		raw:   matcher.New(normalize(tables.TwigRawFilters)...),
		attrs: matcher.New(normalize(tables.TwigAttributes)...),
	}
}

func normalize(markers []string) []string {
	out := make([]string, 0, len(markers))
	for _, m := range markers {
		out = append(out, strings.ToLower(types.StripSpace(m)))
	}
	return out
}

// Meta returns the rule description.
func (r *TwigTemplateRule) Meta() types.Meta {
	return types.Meta{
		ID:          RuleID,
		Name:        "Twig output escaping",
		Description: "The raw filter and unquoted attribute interpolation bypass autoescaping",
		Codes:       []string{CodeUnsafeFilter, CodeUnsafeTemplate},
		Tags:        []string{"xss", "twig"},
		References:  []string{"https://www.drupal.org/node/2357633#raw", twigReference},
	}
}

// Subscriptions returns the token kinds the rule inspects.
func (r *TwigTemplateRule) Subscriptions() []token.Kind {
	return []token.Kind{token.InlineText}
}

// Applies reports whether the artifact is a Twig template.
func (r *TwigTemplateRule) Applies(file *types.File) bool {
	return strings.HasSuffix(strings.ToLower(file.Path), Extension)
}

// Process checks the text of the token at idx.
func (r *TwigTemplateRule) Process(file *types.File, idx int, sink *diag.Sink) types.Action {
	if !r.Applies(file) {
		return types.SkipArtifact
	}
	tok, ok := file.Stream.At(idx)
	if !ok {
		return types.Continue
	}
	text := strings.ToLower(types.StripSpace(tok.Text))
	if r.raw.Contains(text) {
		sink.Error(RuleID, CodeUnsafeFilter, msgRawFilter, tok.Line)
	}
	if r.attrs.Contains(text) {
		sink.Error(RuleID, CodeUnsafeTemplate, msgUnquotedAttrs, tok.Line)
	}
	return types.Continue
}
