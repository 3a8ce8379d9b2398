package types

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/token"
)

// Action tells the driver what to do after a rule processed a token.
type Action int

const (
	// Continue keeps dispatching tokens of this artifact to the rule.
	Continue Action = iota
	// SkipArtifact stops dispatching the rest of this artifact to the rule.
	SkipArtifact
)

// File is a single artifact under analysis.
type File struct {
	Path     string
	Contents []byte
	Stream   *token.Stream
}

// NewFile creates a File. A nil stream is replaced by an empty one.
func NewFile(path string, contents []byte, stream *token.Stream) *File {
	if stream == nil {
		stream = token.NewStream(nil)
	}
	return &File{Path: path, Contents: contents, Stream: stream}
}

// Text returns the raw contents, or the concatenated token text when the
// host supplied tokens only.
func (f *File) Text() []byte {
	if f.Contents != nil {
		return f.Contents
	}
	return []byte(f.Stream.Concat(0, f.Stream.Len()))
}

// Base returns the file name without directories.
func (f *File) Base() string {
	return filepath.Base(filepath.ToSlash(f.Path))
}

// HasSuffix reports whether the path ends with suffix, case-sensitively.
func (f *File) HasSuffix(suffix string) bool {
	return strings.HasSuffix(f.Path, suffix)
}

// Meta describes a rule.
type Meta struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Codes       []string `json:"codes"`
	Tags        []string `json:"tags,omitempty"`
	References  []string `json:"references,omitempty"`
}

// Rule is the contract every check implements.
type Rule interface {
	// Meta returns the rule description.
	Meta() Meta

	// Subscriptions returns the token kinds the rule wants to see.
	Subscriptions() []token.Kind

	// Process inspects the token at idx and records findings into sink.
	Process(file *File, idx int, sink *diag.Sink) Action
}

// Guarded is implemented by rules that only apply to some artifacts. The
// driver calls Applies at most once per artifact, before the first
// dispatch.
type Guarded interface {
	Applies(file *File) bool
}

// Tables holds the tracked names and markers rules compare against. Tables
// are read-only once handed to rules.
type Tables struct {
	DatabaseCalls   []string
	LikeSeverity    diag.Severity
	FormWindow      int
	FormMarkers     []string
	JavascriptXSS   []string
	JavascriptCode  []string
	TwigRawFilters  []string
	TwigAttributes  []string
	WidePermissions []string
	OpenPermissions []string
	OpenRoles       []string
	RenderKeys      []string
	InlineTemplates []string
}

// DefaultTables returns the built-in tables.
func DefaultTables() Tables {
	return Tables{
		DatabaseCalls:   append([]string(nil), DatabaseAPIs...),
		LikeSeverity:    diag.Warning,
		FormWindow:      5,
		FormMarkers:     []string{"getUserInput("},
		JavascriptXSS:   []string{".innerHTML="},
		JavascriptCode:  []string{"script"},
		TwigRawFilters:  []string{"|raw"},
		TwigAttributes:  []string{"={{"},
		WidePermissions: []string{"administer site configuration"},
		OpenPermissions: []string{"access content"},
		OpenRoles:       []string{"anonymous"},
		RenderKeys:      []string{"#type"},
		InlineTemplates: []string{"inline_template"},
	}
}

// DatabaseAPIs are the calls the SQL audit knows how to inspect.
var DatabaseAPIs = []string{"query", "condition", "accessCheck", "loadMultiple", "loadByProperties"}

// Validate checks that a table set is usable.
func (t Tables) Validate() error {
	if t.FormWindow <= 0 {
		return fmt.Errorf("form_window must be positive, got %d", t.FormWindow)
	}
	for _, name := range t.DatabaseCalls {
		if !ContainsFold(DatabaseAPIs, name) {
			return fmt.Errorf("database_calls: unsupported call %q (known: %s)", name, strings.Join(DatabaseAPIs, ", "))
		}
	}
	for name, list := range map[string][]string{
		"database_calls":   t.DatabaseCalls,
		"form_markers":     t.FormMarkers,
		"render_keys":      t.RenderKeys,
		"inline_templates": t.InlineTemplates,
	} {
		for _, v := range list {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%s contains an empty entry", name)
			}
		}
	}
	return nil
}

// ContainsFold reports whether list holds s, ignoring case and
// surrounding whitespace.
func ContainsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}

// StripSpace removes every whitespace character from s.
func StripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
