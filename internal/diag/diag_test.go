package diag

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_PreservesOrderWithoutDedup(t *testing.T) {
	s := NewSink("a.php")
	s.Error("Database.Sql", "SQL", "first", 3)
	s.Warning("Database.Sql", "SQL", "first", 3)
	s.Warning("Form.Form", "Form", "second", 1)

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, Error, all[0].Severity)
	assert.Equal(t, Warning, all[1].Severity)
	assert.Equal(t, "Form", all[2].Code)
	for _, d := range all {
		assert.Equal(t, "a.php", d.File)
	}
	assert.Equal(t, 3, s.Len())
}

func TestSink_AllReturnsCopy(t *testing.T) {
	s := NewSink("x")
	s.Warning("r", "c", "m", 1)
	out := s.All()
	out[0].Message = "changed"
	assert.Equal(t, "m", s.All()[0].Message)
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected Severity
	}{
		{"error", Error},
		{"ERROR", Error},
		{"warning", Warning},
		{"bogus", Warning},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseSeverity(tt.input), tt.input)
	}

	b, err := json.Marshal(Diagnostic{Severity: Error, Code: "SQL"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"severity":"error"`)

	var d Diagnostic
	require.NoError(t, json.Unmarshal(b, &d))
	assert.Equal(t, Error, d.Severity)
}

func TestDiagnostic_Source(t *testing.T) {
	d := Diagnostic{Rule: "Database.Sql", Code: "Access check"}
	assert.Equal(t, "DrupalSecurity.Database.Sql.Accesscheck", d.Source())
	assert.Equal(t, "SQL", Diagnostic{Code: "SQL"}.Source())
}
