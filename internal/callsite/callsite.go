// Package callsite resolves the arguments passed to a function invocation
// directly from a token stream.
package callsite

import (
	"strings"

	"github.com/drupal-spider/DrupalSecurity/internal/token"
)

// Argument is one top-level, comma-separated expression of a call.
type Argument struct {
	Position int    `json:"position"`
	Raw      string `json:"raw"`
	Clean    string `json:"clean"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

// CallSite is a resolved invocation. It is created on demand and never
// persisted.
type CallSite struct {
	Callee     string
	CalleeIdx  int
	OpenParen  int
	CloseParen int
	Args       []Argument
}

// Arg returns the argument at the 1-based position. Absent positions
// report false; an empty string argument is present.
func (c CallSite) Arg(position int) (Argument, bool) {
	if position < 1 || position > len(c.Args) {
		return Argument{}, false
	}
	return c.Args[position-1], true
}

// Len returns the number of resolved arguments.
func (c CallSite) Len() int {
	return len(c.Args)
}

var (
	openers = token.NewSet(token.OpenParen, token.OpenBracket, token.OpenBrace)
	closers = token.NewSet(token.CloseParen, token.CloseBracket, token.CloseBrace)
)

// Resolve treats the token at calleeIdx as a callee and resolves its
// arguments. It reports false when the next non-empty token is not an
// open parenthesis or the parenthesis is never closed.
func Resolve(s *token.Stream, calleeIdx int) (CallSite, bool) {
	callee, ok := s.At(calleeIdx)
	if !ok {
		return CallSite{}, false
	}
	open := s.FindNextExcluding(token.EmptyKinds, calleeIdx+1)
	if open < 0 {
		return CallSite{}, false
	}
	if tok, _ := s.At(open); tok.Kind != token.OpenParen {
		return CallSite{}, false
	}

	call := CallSite{Callee: callee.Text, CalleeIdx: calleeIdx, OpenParen: open, CloseParen: -1}

	var (
		depth    int
		segment  strings.Builder
		segStart = open + 1
	)
	flush := func(end int) {
		raw := strings.TrimSpace(segment.String())
		segment.Reset()
		if raw != "" {
			call.Args = append(call.Args, Argument{
				Position: len(call.Args) + 1,
				Raw:      raw,
				Clean:    Clean(raw),
				Start:    segStart,
				End:      end,
			})
		}
	}

	for i := open + 1; i < s.Len(); i++ {
		tok, _ := s.At(i)
		switch {
		case openers.Has(tok.Kind):
			depth++
		case closers.Has(tok.Kind):
			if depth == 0 {
				if tok.Kind != token.CloseParen {
					return CallSite{}, false
				}
				flush(i - 1)
				call.CloseParen = i
				return call, true
			}
			depth--
		case tok.Kind == token.Comma && depth == 0:
			flush(i - 1)
			segStart = i + 1
			continue
		case tok.Kind == token.Comment:
			continue
		}
		segment.WriteString(tok.Text)
	}

	return CallSite{}, false
}

// Clean trims whitespace and strips one layer of surrounding quotes when
// the whole text is a single quoted literal. Case is preserved.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	if isWhollyQuoted(text) {
		return text[1 : len(text)-1]
	}
	return text
}

// StripQuotes removes every single and double quote character.
func StripQuotes(text string) string {
	return strings.NewReplacer("'", "", `"`, "").Replace(text)
}

func isWhollyQuoted(text string) bool {
	if len(text) < 2 {
		return false
	}
	q := text[0]
	if (q != '\'' && q != '"') || text[len(text)-1] != q {
		return false
	}
	inner := text[1 : len(text)-1]
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '\\':
			i++
		case q:
			return false
		}
	}
	// an odd run of trailing backslashes escapes the closing quote
	trailing := len(inner) - len(strings.TrimRight(inner, `\`))
	return trailing%2 == 0
}
