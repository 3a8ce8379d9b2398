package yaml

import (
	"fmt"
	"strings"

	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/document"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/token"
)

const msgOpenDisplay = "Open access to %s display found"

const (
	ViewPrefix = "views.view."
	ViewSuffix = "yml"
)

// ViewAccessRule audits display access plugins of exported views.
type ViewAccessRule struct {
	openPermissions []string
	openRoles       []string
}

// NewViewAccessRule creates the rule from the tracked tables.
func NewViewAccessRule(tables types.Tables) *ViewAccessRule {
	return &ViewAccessRule{
		openPermissions: tables.OpenPermissions,
		openRoles:       tables.OpenRoles,
	}
}

// Meta returns the rule description.
func (r *ViewAccessRule) Meta() types.Meta {
	return types.Meta{
		ID:          ViewRuleID,
		Name:        "View access",
		Description: "View displays without access restriction or open to anonymous users",
		Codes:       []string{CodeOpenAccess},
		Tags:        []string{"access", "views"},
	}
}

// Subscriptions returns the token kinds the rule inspects.
func (r *ViewAccessRule) Subscriptions() []token.Kind {
	return []token.Kind{token.InlineText}
}

// Applies reports whether the artifact is an exported view.
func (r *ViewAccessRule) Applies(file *types.File) bool {
	return strings.HasPrefix(strings.ToLower(file.Base()), ViewPrefix) &&
		strings.HasSuffix(strings.ToLower(file.Path), ViewSuffix)
}

// Process audits every display of the view.
func (r *ViewAccessRule) Process(file *types.File, idx int, sink *diag.Sink) types.Action {
	if !r.Applies(file) {
		return types.SkipArtifact
	}
	doc, err := document.Parse(file.Text())
	if err != nil {
		return types.SkipArtifact
	}
	displays := doc.Root.Get("display")
	for _, name := range displays.Keys() {
		access := displays.Get(name).Path("display_options", "access")
		if r.open(access) {
			line, _ := document.FindLine(file.Stream, []string{"display", name, "display_options", "access"})
			sink.Warning(ViewRuleID, CodeOpenAccess, fmt.Sprintf(msgOpenDisplay, name), line)
		}
	}
	return types.SkipArtifact
}

func (r *ViewAccessRule) open(access document.Node) bool {
	kind := access.Get("type")
	if !isSet(kind) {
		return false
	}
	options := access.Get("options")
	switch strings.ToLower(strings.TrimSpace(kind.String())) {
	case "none":
		return true
	case "perm":
		perm := options.Get("perm")
		return isSet(perm) && types.ContainsFold(r.openPermissions, perm.String())
	case "role":
		roles := options.Get("role")
		for _, role := range r.openRoles {
			if roles.Contains(role) {
				return true
			}
		}
	}
	return false
}
