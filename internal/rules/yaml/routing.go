// Package yaml audits routing and view configuration documents.
package yaml

import (
	"fmt"
	"strings"

	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/document"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/token"
)

const (
	RoutingRuleID = "Yaml.RoutingAccess"
	ViewRuleID    = "Yaml.ViewAccess"
)

const (
	CodeOpenAccess     = "OpenAccess"
	CodeWidePermission = "WidePermissionFound"
	CodeCsrfDisabled   = "CsrfTokenDisable"
)

const (
	csrfReference = "https://www.drupal.org/node/3048359"

	msgOpenAccess     = "Open access to %s found"
	msgWidePermission = "Wide permission required by %s found"
	msgCsrfFalse      = "_csrf_token is set to FALSE for %s. @see " + csrfReference
	msgCsrfMissing    = "_csrf_token for %s is missing. @see " + csrfReference
)

// RoutingSuffix selects routing files.
const RoutingSuffix = ".routing.yml"

// RoutingAccessRule audits route requirements. It processes the whole
// document on its first dispatch.
type RoutingAccessRule struct {
	widePermissions []string
	openPermissions []string
}

// NewRoutingAccessRule creates the rule from the tracked tables.
func NewRoutingAccessRule(tables types.Tables) *RoutingAccessRule {
	return &RoutingAccessRule{
		widePermissions: tables.WidePermissions,
		openPermissions: tables.OpenPermissions,
	}
}

// Meta returns the rule description.
func (r *RoutingAccessRule) Meta() types.Meta {
	return types.Meta{
		ID:          RoutingRuleID,
		Name:        "Route access",
		Description: "Routes open to everyone, guarded by over-broad permissions or missing CSRF protection",
		Codes:       []string{CodeOpenAccess, CodeWidePermission, CodeCsrfDisabled},
		Tags:        []string{"access", "csrf", "routing"},
		References:  []string{csrfReference},
	}
}

// Subscriptions returns the token kinds the rule inspects.
func (r *RoutingAccessRule) Subscriptions() []token.Kind {
	return []token.Kind{token.InlineText}
}

// Applies reports whether the artifact is a routing file.
func (r *RoutingAccessRule) Applies(file *types.File) bool {
	return strings.HasSuffix(strings.ToLower(file.Path), RoutingSuffix)
}

// Process audits every top-level route, reporting at the line that opens it.
func (r *RoutingAccessRule) Process(file *types.File, idx int, sink *diag.Sink) types.Action {
	if !r.Applies(file) {
		return types.SkipArtifact
	}
	doc, err := document.Parse(file.Text())
	if err != nil {
		return types.SkipArtifact
	}
	for _, tok := range file.Stream.Tokens() {
		name := document.LeadingKey(tok.Text)
		route := doc.Root.Get(name)
		if !route.Truthy() {
			continue
		}
		r.audit(name, route, tok.Line, sink)
	}
	return types.SkipArtifact
}

func (r *RoutingAccessRule) audit(name string, route document.Node, line int, sink *diag.Sink) {
	requirements := route.Get("requirements")
	if !requirements.Truthy() {
		return
	}

	if access := requirements.Get("_access"); access.Truthy() {
		if access.IsString() && strings.EqualFold(access.String(), "true") {
			sink.Warning(RoutingRuleID, CodeOpenAccess, fmt.Sprintf(msgOpenAccess, name), line)
		}
	} else if permission := requirements.Get("_permission"); permission.Truthy() {
		if types.ContainsFold(r.widePermissions, permission.String()) {
			sink.Warning(RoutingRuleID, CodeWidePermission, fmt.Sprintf(msgWidePermission, name), line)
		}
		if types.ContainsFold(r.openPermissions, permission.String()) {
			sink.Warning(RoutingRuleID, CodeOpenAccess, fmt.Sprintf(msgOpenAccess, name), line)
		}
	}

	if isSet(route.Path("defaults", "_form")) {
		return
	}
	csrf := requirements.Get("_csrf_token")
	if !isSet(csrf) {
		sink.Warning(RoutingRuleID, CodeCsrfDisabled, fmt.Sprintf(msgCsrfMissing, name), line)
		return
	}
	if disabled(csrf) {
		sink.Warning(RoutingRuleID, CodeCsrfDisabled, fmt.Sprintf(msgCsrfFalse, name), line)
	}
}

func isSet(n document.Node) bool {
	return n.Exists() && !n.IsNull()
}

// disabled reports an explicit false: a boolean-like false or any other
// falsy scalar.
func disabled(n document.Node) bool {
	if v, ok := n.Bool(); ok {
		return !v
	}
	return !n.Truthy()
}
