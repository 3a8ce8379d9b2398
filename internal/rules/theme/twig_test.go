package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/token/tokentest"
)

func run(path, text string) ([]diag.Diagnostic, bool) {
	r := NewTwigTemplateRule(types.DefaultTables())
	file := types.NewFile(path, []byte(text), tokentest.Lines(text))
	sink := diag.NewSink(file.Path)
	for i := 0; i < file.Stream.Len(); i++ {
		if r.Process(file, i, sink) == types.SkipArtifact {
			return sink.All(), true
		}
	}
	return sink.All(), false
}

func TestTwigTemplateRule_RawFilter(t *testing.T) {
	got, _ := run("templates/node.html.twig", "<div>\n{{ value|raw }}\n</div>\n")
	require.Len(t, got, 1)
	assert.Equal(t, diag.Error, got[0].Severity)
	assert.Equal(t, CodeUnsafeFilter, got[0].Code)
	assert.Equal(t, "The raw filter should be avoided whenever possible.", got[0].Message)
	assert.Equal(t, 2, got[0].Line)
}

func TestTwigTemplateRule_SpacedAndUppercase(t *testing.T) {
	got, _ := run("a.twig", "{{ value | RAW }}")
	require.Len(t, got, 1)
	assert.Equal(t, CodeUnsafeFilter, got[0].Code)
}

func TestTwigTemplateRule_UnquotedAttribute(t *testing.T) {
	got, _ := run("a.html.twig", "<a href = {{ url }}>link</a>\n<a href=\"{{ url }}\">ok</a>\n")
	require.Len(t, got, 1)
	assert.Equal(t, diag.Error, got[0].Severity)
	assert.Equal(t, CodeUnsafeTemplate, got[0].Code)
	assert.Equal(t, "rendering attributes in Twig should be wrapped with double or single quotes. @see https://www.drupal.org/docs/security-in-drupal/writing-secure-code-for-drupal#s-use-twig-templates", got[0].Message)
	assert.Equal(t, 1, got[0].Line)
}

func TestTwigTemplateRule_NotTwig(t *testing.T) {
	got, skipped := run("a.js", "{{ value|raw }}")
	assert.True(t, skipped)
	assert.Empty(t, got)
}

func TestTwigTemplateRule_Clean(t *testing.T) {
	got, _ := run("a.twig", "{{ value|e }}\n<p class=\"{{ cls }}\"></p>\n")
	assert.Empty(t, got)
}
