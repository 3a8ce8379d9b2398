// Package diag holds the diagnostic model and the per-artifact sink rules
// record findings into.
package diag

import "strings"

// Severity of a diagnostic.
type Severity int

const (
	Warning Severity = iota
	Error
)

// String returns string representation of severity
func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// ParseSeverity parses a severity name. Unknown names map to Warning.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return Error
	default:
		return Warning
	}
}

// MarshalText implements encoding.TextMarshaler so reports carry names,
// not numbers.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	*s = ParseSeverity(string(b))
	return nil
}

// Diagnostic is a single reported finding.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line"`
	Column   int      `json:"column,omitempty"`
}

// Source is the fully qualified code of a diagnostic, e.g.
// "DrupalSecurity.Database.Sql.SQL".
func (d Diagnostic) Source() string {
	if d.Rule == "" {
		return d.Code
	}
	return "DrupalSecurity." + d.Rule + "." + strings.ReplaceAll(d.Code, " ", "")
}

// Sink collects diagnostics for one artifact in emission order. It is not
// safe for concurrent use.
type Sink struct {
	file  string
	items []Diagnostic
}

// NewSink creates a sink that stamps every record with file.
func NewSink(file string) *Sink {
	return &Sink{file: file}
}

// Record appends d. No merging, no limit.
func (s *Sink) Record(d Diagnostic) {
	if d.File == "" {
		d.File = s.file
	}
	s.items = append(s.items, d)
}

// Warning records a warning.
func (s *Sink) Warning(rule, code, message string, line int) {
	s.Record(Diagnostic{Severity: Warning, Rule: rule, Code: code, Message: message, Line: line})
}

// Error records an error.
func (s *Sink) Error(rule, code, message string, line int) {
	s.Record(Diagnostic{Severity: Error, Rule: rule, Code: code, Message: message, Line: line})
}

// All returns the recorded diagnostics in emission order.
func (s *Sink) All() []Diagnostic {
	out := make([]Diagnostic, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of recorded diagnostics.
func (s *Sink) Len() int {
	return len(s.items)
}
