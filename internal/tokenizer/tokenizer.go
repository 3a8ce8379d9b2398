// Package tokenizer turns artifacts into token streams. PHP sources are
// parsed with tree-sitter and flattened into their leaves; every other
// artifact becomes one inline-text token per line.
package tokenizer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"

	"github.com/drupal-spider/DrupalSecurity/internal/token"
)

// PHPExtensions lists the extensions tokenized as PHP.
var PHPExtensions = []string{".php", ".module", ".inc", ".install", ".theme", ".profile", ".engine"}

// atomic node types are emitted as a single token without descending.
var atomic = map[string]token.Kind{
	"variable_name":   token.Variable,
	"string":          token.StringLiteral,
	"encapsed_string": token.StringLiteral,
	"heredoc":         token.RawDoc,
	"nowdoc":          token.RawDoc,
	"comment":         token.Comment,
	"text":            token.InlineText,
}

var leaves = map[string]token.Kind{
	"name": token.Identifier,
	"(":    token.OpenParen,
	")":    token.CloseParen,
	"[":    token.OpenBracket,
	"]":    token.CloseBracket,
	"{":    token.OpenBrace,
	"}":    token.CloseBrace,
	",":    token.Comma,
	"=>":   token.DoubleArrow,
}

// IsPHP reports whether path is tokenized as PHP.
func IsPHP(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range PHPExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Tokenize picks the mode from the path.
func Tokenize(ctx context.Context, path string, src []byte) (*token.Stream, error) {
	if IsPHP(path) {
		return PHP(ctx, src)
	}
	return Lines(src), nil
}

// Lines splits src into one InlineText token per line, newline included.
func Lines(src []byte) *token.Stream {
	var toks []token.Token
	offset := 0
	for i, l := range strings.SplitAfter(string(src), "\n") {
		if l == "" {
			continue
		}
		toks = append(toks, token.Token{Kind: token.InlineText, Text: l, Line: i + 1, Offset: offset})
		offset += len(l)
	}
	return token.NewStream(toks)
}

// PHP parses src and flattens the syntax tree. Gaps between nodes become
// Whitespace tokens, so concatenating every token yields src.
func PHP(ctx context.Context, src []byte) (*token.Stream, error) {
	if len(src) == 0 {
		return token.NewStream(nil), nil
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(php.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PHP: %w", err)
	}
	defer tree.Close()

	f := &flattener{src: src, lines: lineStarts(src)}
	f.walk(tree.RootNode())
	f.gap(uint32(len(src)))
	return token.NewStream(f.toks), nil
}

type flattener struct {
	src    []byte
	lines  []int
	cursor uint32
	toks   []token.Token
}

func (f *flattener) walk(n *sitter.Node) {
	if n == nil || n.StartByte() >= n.EndByte() || n.StartByte() < f.cursor {
		return
	}
	if kind, ok := atomic[n.Type()]; ok {
		f.emit(kind, n.StartByte(), n.EndByte())
		return
	}
	count := int(n.ChildCount())
	if count == 0 {
		kind, ok := leaves[n.Type()]
		if !ok {
			kind = token.Other
		}
		f.emit(kind, n.StartByte(), n.EndByte())
		return
	}
	for i := 0; i < count; i++ {
		f.walk(n.Child(i))
	}
}

func (f *flattener) emit(kind token.Kind, start, end uint32) {
	f.gap(start)
	f.add(kind, start, end)
	f.cursor = end
}

// gap emits the untokenized bytes before end.
func (f *flattener) gap(end uint32) {
	if end <= f.cursor {
		return
	}
	text := string(f.src[f.cursor:end])
	kind := token.Whitespace
	if strings.TrimSpace(text) != "" {
		kind = token.Other
	}
	f.add(kind, f.cursor, end)
	f.cursor = end
}

func (f *flattener) add(kind token.Kind, start, end uint32) {
	f.toks = append(f.toks, token.Token{
		Kind:   kind,
		Text:   string(f.src[start:end]),
		Line:   f.lineAt(int(start)),
		Offset: int(start),
	})
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineAt returns the 1-based line containing offset.
func (f *flattener) lineAt(offset int) int {
	return sort.Search(len(f.lines), func(i int) bool { return f.lines[i] > offset })
}
