// Package token defines the token model shared by every rule: an immutable,
// indexed sequence of typed tokens with source positions.
package token

import "strings"

// Kind identifies the lexical class of a token.
type Kind int

const (
	Other Kind = iota
	Identifier
	OpenParen
	CloseParen
	OpenBracket
	CloseBracket
	OpenBrace
	CloseBrace
	Comma
	StringLiteral
	Variable
	DoubleArrow
	InlineText
	RawDoc
	Whitespace
	Comment
)

var kindNames = map[Kind]string{
	Other:         "other",
	Identifier:    "identifier",
	OpenParen:     "open_paren",
	CloseParen:    "close_paren",
	OpenBracket:   "open_bracket",
	CloseBracket:  "close_bracket",
	OpenBrace:     "open_brace",
	CloseBrace:    "close_brace",
	Comma:         "comma",
	StringLiteral: "string_literal",
	Variable:      "variable",
	DoubleArrow:   "double_arrow",
	InlineText:    "inline_text",
	RawDoc:        "raw_doc",
	Whitespace:    "whitespace",
	Comment:       "comment",
}

// String returns string representation of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Token is a single lexical unit produced by a tokenizer.
type Token struct {
	Kind   Kind   `json:"kind"`
	Text   string `json:"text"`
	Line   int    `json:"line"`
	Offset int    `json:"offset"`
}

// Set is a set of token kinds.
type Set map[Kind]bool

// NewSet builds a Set from the given kinds.
func NewSet(kinds ...Kind) Set {
	s := make(Set, len(kinds))
	for _, k := range kinds {
		s[k] = true
	}
	return s
}

// Has reports whether k is in the set. A nil set contains nothing.
func (s Set) Has(k Kind) bool {
	return s[k]
}

// EmptyKinds are tokens that carry no syntactic meaning for rules.
var EmptyKinds = NewSet(Whitespace, Comment)

// Stream is a read-only view over an artifact's tokens.
type Stream struct {
	tokens []Token
}

// NewStream wraps tokens. The slice is copied so later mutation by the
// caller cannot leak into rules.
func NewStream(tokens []Token) *Stream {
	cp := make([]Token, len(tokens))
	copy(cp, tokens)
	return &Stream{tokens: cp}
}

// Len returns the number of tokens.
func (s *Stream) Len() int {
	if s == nil {
		return 0
	}
	return len(s.tokens)
}

// At returns the token at index i and whether i is in range.
func (s *Stream) At(i int) (Token, bool) {
	if s == nil || i < 0 || i >= len(s.tokens) {
		return Token{}, false
	}
	return s.tokens[i], true
}

// Text returns the text of the token at i, or "" when out of range.
func (s *Stream) Text(i int) string {
	t, _ := s.At(i)
	return t.Text
}

// Tokens returns a copy of the underlying tokens.
func (s *Stream) Tokens() []Token {
	out := make([]Token, s.Len())
	if s != nil {
		copy(out, s.tokens)
	}
	return out
}

// FindNext returns the index of the first token at or after start whose
// kind is in kinds. Returns -1 when none is found.
func (s *Stream) FindNext(kinds Set, start int) int {
	if start < 0 {
		start = 0
	}
	for i := start; i < s.Len(); i++ {
		if kinds.Has(s.tokens[i].Kind) {
			return i
		}
	}
	return -1
}

// FindNextExcluding returns the index of the first token at or after start
// whose kind is NOT in skip. Returns -1 when none is found.
func (s *Stream) FindNextExcluding(skip Set, start int) int {
	if start < 0 {
		start = 0
	}
	for i := start; i < s.Len(); i++ {
		if !skip.Has(s.tokens[i].Kind) {
			return i
		}
	}
	return -1
}

// FindPrevious returns the index of the last token strictly before `before`
// whose kind is in kinds. Returns -1 when none is found.
func (s *Stream) FindPrevious(kinds Set, before int) int {
	if before > s.Len() {
		before = s.Len()
	}
	for i := before - 1; i >= 0; i-- {
		if kinds.Has(s.tokens[i].Kind) {
			return i
		}
	}
	return -1
}

// FindPreviousExcluding returns the index of the last token strictly before
// `before` whose kind is NOT in skip. Returns -1 when none is found.
func (s *Stream) FindPreviousExcluding(skip Set, before int) int {
	if before > s.Len() {
		before = s.Len()
	}
	for i := before - 1; i >= 0; i-- {
		if !skip.Has(s.tokens[i].Kind) {
			return i
		}
	}
	return -1
}

// Concat joins the text of up to n tokens starting at start.
func (s *Stream) Concat(start, n int) string {
	if start < 0 || n <= 0 {
		return ""
	}
	end := start + n
	if end > s.Len() {
		end = s.Len()
	}
	var sb strings.Builder
	for i := start; i < end; i++ {
		sb.WriteString(s.tokens[i].Text)
	}
	return sb.String()
}
