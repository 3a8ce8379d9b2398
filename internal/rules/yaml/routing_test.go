package yaml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/token/tokentest"
)

// process dispatches every token the way the engine would until the rule
// asks to skip the artifact.
func process(r types.Rule, path, text string) []diag.Diagnostic {
	file := types.NewFile(path, []byte(text), tokentest.Lines(text))
	sink := diag.NewSink(file.Path)
	for i := 0; i < file.Stream.Len(); i++ {
		if r.Process(file, i, sink) == types.SkipArtifact {
			break
		}
	}
	return sink.All()
}

func codes(ds []diag.Diagnostic) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Code)
	}
	return out
}

const routingYAML = `my_module.admin:
  path: '/admin/config/my'
  defaults:
    _form: '\Drupal\my_module\Form\SettingsForm'
  requirements:
    _permission: 'administer site configuration'
my_module.open:
  path: '/open'
  defaults:
    _controller: '\Drupal\my_module\Controller\OpenController::open'
  requirements:
    _access: 'TRUE'
    _csrf_token: 'TRUE'
my_module.content:
  path: '/content'
  requirements:
    _permission: 'ACCESS CONTENT'
    _csrf_token: 'FALSE'
my_module.safe:
  path: '/safe'
  requirements:
    _permission: 'edit my things'
    _csrf_token: 'TRUE'
my_module.nothing:
  path: '/nothing'
`

func TestRoutingAccessRule(t *testing.T) {
	r := NewRoutingAccessRule(types.DefaultTables())
	got := process(r, "modules/custom/my_module/my_module.routing.yml", routingYAML)

	require.Len(t, got, 4)
	assert.Equal(t, []string{CodeWidePermission, CodeOpenAccess, CodeOpenAccess, CodeCsrfDisabled}, codes(got))

	assert.Equal(t, "Wide permission required by my_module.admin found", got[0].Message)
	assert.Equal(t, 1, got[0].Line)
	assert.Equal(t, "Open access to my_module.open found", got[1].Message)
	assert.Equal(t, 7, got[1].Line)
	assert.Equal(t, "Open access to my_module.content found", got[2].Message)
	assert.Equal(t, 14, got[2].Line)
	assert.Equal(t, "_csrf_token is set to FALSE for my_module.content. @see https://www.drupal.org/node/3048359", got[3].Message)
	assert.Equal(t, 14, got[3].Line)
	for _, d := range got {
		assert.Equal(t, diag.Warning, d.Severity)
		assert.Equal(t, RoutingRuleID, d.Rule)
	}
}

func TestRoutingAccessRule_FlowStyle(t *testing.T) {
	r := NewRoutingAccessRule(types.DefaultTables())
	got := process(r, "x.routing.yml", "my_route: { requirements: { _access: 'TRUE' } }\n")

	var open []diag.Diagnostic
	for _, d := range got {
		if d.Code == CodeOpenAccess {
			open = append(open, d)
		}
	}
	require.Len(t, open, 1)
	assert.Equal(t, "Open access to my_route found", open[0].Message)
	assert.Equal(t, 1, open[0].Line)

	// the CSRF audit is independent of the access audit
	assert.Equal(t, []string{CodeOpenAccess, CodeCsrfDisabled}, codes(got))
	assert.Equal(t, "_csrf_token for my_route is missing. @see https://www.drupal.org/node/3048359", got[1].Message)
}

func TestRoutingAccessRule_EdgeCases(t *testing.T) {
	r := NewRoutingAccessRule(types.DefaultTables())

	tests := []struct {
		name string
		path string
		text string
		want []string
	}{
		{
			name: "malformed document",
			path: "x.routing.yml",
			text: "a: [unclosed\n  b: : :\n",
			want: []string{},
		},
		{
			name: "not a routing file",
			path: "x.services.yml",
			text: "r:\n  requirements:\n    _access: 'TRUE'\n",
			want: []string{},
		},
		{
			name: "boolean access is not the string true",
			path: "x.routing.yml",
			text: "r:\n  requirements:\n    _access: true\n    _csrf_token: 'TRUE'\n",
			want: []string{},
		},
		{
			name: "false access falls through to permission",
			path: "x.routing.yml",
			text: "r:\n  requirements:\n    _access: ''\n    _permission: 'access content'\n    _csrf_token: 'TRUE'\n",
			want: []string{CodeOpenAccess},
		},
		{
			name: "csrf boolean false",
			path: "X.ROUTING.YML",
			text: "r:\n  requirements:\n    _permission: 'edit'\n    _csrf_token: false\n",
			want: []string{CodeCsrfDisabled},
		},
		{
			name: "form routes skip csrf",
			path: "x.routing.yml",
			text: "r:\n  defaults:\n    _form: 'F'\n  requirements:\n    _permission: 'edit'\n",
			want: []string{},
		},
		{
			name: "indented keys are not routes",
			path: "x.routing.yml",
			text: "r:\n  requirements:\n    _csrf_token: 'TRUE'\n  r: x\n",
			want: []string{},
		},
		{
			name: "empty document",
			path: "x.routing.yml",
			text: "",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(process(r, tt.path, tt.text)))
		})
	}
}

func TestRoutingAccessRule_Applies(t *testing.T) {
	r := NewRoutingAccessRule(types.DefaultTables())
	assert.True(t, r.Applies(types.NewFile("a/b.routing.yml", nil, nil)))
	assert.False(t, r.Applies(types.NewFile("a/b.routing.yaml", nil, nil)))
}
