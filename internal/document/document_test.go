package document

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drupal-spider/DrupalSecurity/internal/token/tokentest"
)

const viewYAML = `langcode: en
id: content
display:
  default:
    id: default
    display_options:
      access:
        type: perm
        options:
          perm: 'access content'
  page_1:
    id: page_1
    display_options:
      path: admin/content
      access:
        type: none
`

func TestParse_OrderedMapping(t *testing.T) {
	doc, err := Parse([]byte(viewYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"langcode", "id", "display"}, doc.Root.Keys())
	assert.Equal(t, []string{"default", "page_1"}, doc.Root.Get("display").Keys())
	assert.Equal(t, "none", doc.Root.Path("display", "page_1", "display_options", "access", "type").String())
	assert.Equal(t, "access content", doc.Root.Path("display", "default", "display_options", "access", "options", "perm").String())
	assert.False(t, doc.Root.Path("display", "missing", "access").Exists())
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("a: [unclosed\n  b: : :"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
}

func TestParse_Empty(t *testing.T) {
	doc, err := Parse(nil)
	require.NoError(t, err)
	assert.False(t, doc.Root.Exists())
	assert.Nil(t, doc.Root.Keys())
}

func TestParse_FlowStyle(t *testing.T) {
	doc, err := Parse([]byte("my_route: { requirements: { _access: 'TRUE' } }\n"))
	require.NoError(t, err)
	assert.Equal(t, "TRUE", doc.Root.Path("my_route", "requirements", "_access").String())
	assert.True(t, doc.Root.Path("my_route", "requirements", "_access").IsString())
}

func TestNode_BoolAndTruthy(t *testing.T) {
	doc, err := Parse([]byte(`a: true
b: 'FALSE'
c: false
d: ''
e: '0'
f: null
g: 0
h: []
i: [x]
j: 'yes'
k: 1.5
`))
	require.NoError(t, err)
	r := doc.Root

	v, ok := r.Get("a").Bool()
	assert.True(t, ok)
	assert.True(t, v)
	v, ok = r.Get("b").Bool()
	assert.True(t, ok)
	assert.False(t, v)
	_, ok = r.Get("j").Bool()
	assert.False(t, ok)

	truthy := map[string]bool{
		"a": true, "b": true, "c": false, "d": false, "e": false,
		"f": false, "g": false, "h": false, "i": true, "j": true, "k": true,
		"zz": false,
	}
	for key, want := range truthy {
		assert.Equal(t, want, r.Get(key).Truthy(), key)
	}
	assert.True(t, r.Get("f").IsNull())
	assert.Equal(t, "", r.Get("f").String())
}

func TestNode_Contains(t *testing.T) {
	doc, err := Parse([]byte(`m: { anonymous: anonymous }
s: [authenticated, anonymous]
x: anonymous
`))
	require.NoError(t, err)
	assert.True(t, doc.Root.Get("m").Contains("anonymous"))
	assert.True(t, doc.Root.Get("s").Contains("anonymous"))
	assert.False(t, doc.Root.Get("x").Contains("anonymous"))
	assert.Len(t, doc.Root.Get("s").Items(), 2)
}

func TestNode_Alias(t *testing.T) {
	doc, err := Parse([]byte(`base: &b { type: none }
copy: *b
`))
	require.NoError(t, err)
	assert.Equal(t, "none", doc.Root.Path("copy", "type").String())
}

func TestFindLine(t *testing.T) {
	s := tokentest.Lines(viewYAML)

	line, ok := FindLine(s, []string{"display", "page_1", "display_options", "access"})
	require.True(t, ok)
	assert.Equal(t, 15, line)

	line, ok = FindLine(s, []string{"display", "default", "display_options", "access"})
	require.True(t, ok)
	assert.Equal(t, 7, line)

	line, ok = FindLine(s, []string{"display", "nope", "access"})
	assert.False(t, ok)
	assert.Equal(t, 0, line)

	_, ok = FindLine(s, nil)
	assert.False(t, ok)
}

func TestFindLine_CaseInsensitiveAndDeterministic(t *testing.T) {
	s := tokentest.Lines("Display:\n  PAGE_1:\n    Access: x\n")
	first, ok := FindLine(s, []string{"display", "page_1", "access"})
	require.True(t, ok)
	second, _ := FindLine(s, []string{"display", "page_1", "access"})
	assert.Equal(t, 3, first)
	assert.Equal(t, first, second)
}

func TestFindLine_FirstMatchWinsNoBacktrack(t *testing.T) {
	// duplicate keys: the earliest match after the cursor is reported
	s := tokentest.Lines(`display:
  page_1:
    display_options:
      access: a
      access: b
`)
	line, ok := FindLine(s, []string{"display", "page_1", "display_options", "access"})
	require.True(t, ok)
	assert.Equal(t, 4, line)

	// segment order matters: access before display makes display unmatched
	_, ok = FindLine(s, []string{"access", "display"})
	assert.False(t, ok)
}

func TestLeadingKey(t *testing.T) {
	assert.Equal(t, "my_route", LeadingKey("my_route:\n"))
	assert.Equal(t, "  path", LeadingKey("  path: '/x:y'"))
	assert.Equal(t, "no colon\n", LeadingKey("no colon\n"))
	assert.Equal(t, "path", NormalizedKey("  PATH: '/x'"))
}
