// Package matcher finds several fixed markers in a text in one pass using
// an Aho-Corasick automaton.
package matcher

import (
	aho "github.com/petar-dambovaliev/aho-corasick"
)

// Matcher is immutable after New and safe for concurrent use.
type Matcher struct {
	automaton aho.AhoCorasick
	patterns  []string
}

// New compiles the automaton. Empty patterns are ignored.
func New(patterns ...string) *Matcher {
	p := make([]string, 0, len(patterns))
	for _, s := range patterns {
		if s != "" {
			p = append(p, s)
		}
	}
	m := &Matcher{patterns: p}
	if len(p) > 0 {
		builder := aho.NewAhoCorasickBuilder(aho.Opts{
			DFA: true,
		})
		m.automaton = builder.Build(p)
	}
	return m
}

// Patterns returns the compiled patterns.
func (m *Matcher) Patterns() []string {
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// Match returns the distinct patterns found in text, in pattern order.
// Overlapping occurrences are all considered.
func (m *Matcher) Match(text string) []string {
	if m == nil || len(m.patterns) == 0 || text == "" {
		return nil
	}
	found := make([]bool, len(m.patterns))
	iter := m.automaton.IterOverlappingByte([]byte(text))
	for next := iter.Next(); next != nil; next = iter.Next() {
		found[next.Pattern()] = true
	}
	var result []string
	for i, ok := range found {
		if ok {
			result = append(result, m.patterns[i])
		}
	}
	return result
}

// Contains reports whether any pattern occurs in text.
func (m *Matcher) Contains(text string) bool {
	return len(m.Match(text)) > 0
}

// Has reports whether pattern occurs in text. pattern must be one of the
// compiled patterns.
func (m *Matcher) Has(text, pattern string) bool {
	for _, p := range m.Match(text) {
		if p == pattern {
			return true
		}
	}
	return false
}
