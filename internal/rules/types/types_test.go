package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drupal-spider/DrupalSecurity/internal/token/tokentest"
)

func TestDefaultTables(t *testing.T) {
	tables := DefaultTables()
	require.NoError(t, tables.Validate())
	assert.Equal(t, 5, tables.FormWindow)
	assert.True(t, ContainsFold(tables.DatabaseCalls, "ACCESSCHECK"))
}

func TestTables_Validate(t *testing.T) {
	tables := DefaultTables()
	tables.FormWindow = 0
	assert.Error(t, tables.Validate())

	tables = DefaultTables()
	tables.DatabaseCalls = append(tables.DatabaseCalls, "  ")
	assert.Error(t, tables.Validate())

	tables = DefaultTables()
	tables.DatabaseCalls = []string{"query", "execute"}
	assert.ErrorContains(t, tables.Validate(), `unsupported call "execute"`)

	tables = DefaultTables()
	tables.DatabaseCalls = []string{"QUERY", "LoadMultiple"}
	assert.NoError(t, tables.Validate())

	tables = DefaultTables()
	tables.InlineTemplates = []string{""}
	assert.Error(t, tables.Validate())
}

func TestStripSpace(t *testing.T) {
	assert.Equal(t, "el.innerHTML=x;", StripSpace("el.innerHTML \t= x;\n"))
	assert.Equal(t, "", StripSpace(" \n"))
}

func TestFile(t *testing.T) {
	f := NewFile("modules/custom/views.view.content.yml", nil, nil)
	assert.Equal(t, "views.view.content.yml", f.Base())
	assert.True(t, f.HasSuffix(".yml"))
	assert.Equal(t, 0, f.Stream.Len())
}

func TestFile_Text(t *testing.T) {
	f := NewFile("a.yml", nil, tokentest.Lines("a: 1\nb: 2\n"))
	assert.Equal(t, "a: 1\nb: 2\n", string(f.Text()))

	f = NewFile("a.yml", []byte("raw"), tokentest.Lines("other"))
	assert.Equal(t, "raw", string(f.Text()))
}
