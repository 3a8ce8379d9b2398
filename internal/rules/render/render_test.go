package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/token"
	"github.com/drupal-spider/DrupalSecurity/internal/token/tokentest"
)

func run(lexemes ...string) []diag.Diagnostic {
	return runWith(types.DefaultTables(), lexemes...)
}

func runWith(tables types.Tables, lexemes ...string) []diag.Diagnostic {
	r := NewRenderRule(tables)
	file := types.NewFile("example.module", nil, tokentest.Stream(lexemes...))
	sink := diag.NewSink(file.Path)
	for i := 0; i < file.Stream.Len(); i++ {
		tok, _ := file.Stream.At(i)
		if tok.Kind == token.DoubleArrow {
			r.Process(file, i, sink)
		}
	}
	return sink.All()
}

func TestRenderRule(t *testing.T) {
	tests := []struct {
		name    string
		lexemes []string
		want    int
	}{
		{"inline template", []string{"[", "'#type'", " ", "=>", " ", "'inline_template'", ",", "]"}, 1},
		{"double quotes and case", []string{"[", `"#TYPE"`, "=>", `"Inline_Template"`, "]"}, 1},
		{"comment between", []string{"'#type'", " ", "/* t */", " ", "=>", " ", "'inline_template'"}, 1},
		{"other type", []string{"'#type'", "=>", "'markup'"}, 0},
		{"other key", []string{"'#theme'", "=>", "'inline_template'"}, 0},
		{"value is a variable", []string{"'#type'", "=>", "$type"}, 0},
		{"key is a variable", []string{"$key", "=>", "'inline_template'"}, 0},
		{"arrow at start", []string{"=>", "'inline_template'"}, 0},
		{"arrow at end", []string{"'#type'", "=>"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(tt.lexemes...)
			require.Len(t, got, tt.want)
			for _, d := range got {
				assert.Equal(t, diag.Warning, d.Severity)
				assert.Equal(t, CodeRender, d.Code)
				assert.Equal(t, "Inline template found. Check for SSTI. For example https://www.drupal.org/project/drupal/issues/3331205", d.Message)
			}
		})
	}
}

func TestRenderRule_Tables(t *testing.T) {
	tables := types.DefaultTables()
	tables.RenderKeys = []string{"#type", "#render"}
	tables.InlineTemplates = []string{"inline_template", "processed_text"}

	tests := []struct {
		name    string
		lexemes []string
		want    int
	}{
		{"default pair", []string{"'#type'", "=>", "'inline_template'"}, 1},
		{"tracked key", []string{"'#render'", "=>", "'inline_template'"}, 1},
		{"tracked template", []string{"'#type'", "=>", "'processed_text'"}, 1},
		{"untracked template", []string{"'#type'", "=>", "'markup'"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, runWith(tables, tt.lexemes...), tt.want)
		})
	}

	tables.InlineTemplates = []string{"processed_text"}
	assert.Empty(t, runWith(tables, "'#type'", "=>", "'inline_template'"))
}
