// Package tokentest builds token streams for tests without a tokenizer.
package tokentest

import (
	"strings"
	"unicode"

	"github.com/drupal-spider/DrupalSecurity/internal/token"
)

// Classify guesses the kind of a lexeme the way a PHP tokenizer would.
func Classify(text string) token.Kind {
	switch text {
	case "(":
		return token.OpenParen
	case ")":
		return token.CloseParen
	case "[":
		return token.OpenBracket
	case "]":
		return token.CloseBracket
	case "{":
		return token.OpenBrace
	case "}":
		return token.CloseBrace
	case ",":
		return token.Comma
	case "=>":
		return token.DoubleArrow
	}
	switch {
	case strings.TrimSpace(text) == "":
		return token.Whitespace
	case strings.HasPrefix(text, "//"), strings.HasPrefix(text, "/*"), strings.HasPrefix(text, "#"):
		return token.Comment
	case strings.HasPrefix(text, "'"), strings.HasPrefix(text, `"`):
		return token.StringLiteral
	case strings.HasPrefix(text, "<<<"):
		return token.RawDoc
	case strings.HasPrefix(text, "$") && len(text) > 1:
		return token.Variable
	case isIdentifier(text):
		return token.Identifier
	}
	return token.Other
}

func isIdentifier(text string) bool {
	for i, r := range text {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return text != ""
}

// Stream builds a stream from lexemes, classifying each with Classify and
// tracking line numbers and offsets.
func Stream(lexemes ...string) *token.Stream {
	return token.NewStream(Tokens(lexemes...))
}

// Tokens is Stream without the wrapper.
func Tokens(lexemes ...string) []token.Token {
	out := make([]token.Token, 0, len(lexemes))
	line, offset := 1, 0
	for _, lx := range lexemes {
		out = append(out, token.Token{Kind: Classify(lx), Text: lx, Line: line, Offset: offset})
		line += strings.Count(lx, "\n")
		offset += len(lx)
	}
	return out
}

// Lines builds one InlineText token per line, newline included, the way a
// PHP tokenizer presents non-PHP files.
func Lines(text string) *token.Stream {
	var toks []token.Token
	offset := 0
	for i, l := range strings.SplitAfter(text, "\n") {
		if l == "" {
			continue
		}
		toks = append(toks, token.Token{Kind: token.InlineText, Text: l, Line: i + 1, Offset: offset})
		offset += len(l)
	}
	return token.NewStream(toks)
}
