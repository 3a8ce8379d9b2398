package document

import (
	"strings"

	"github.com/drupal-spider/DrupalSecurity/internal/token"
)

// LeadingKey returns the text before the first colon, untrimmed. Text
// without a colon is returned whole.
func LeadingKey(text string) string {
	key, _, _ := strings.Cut(text, ":")
	return key
}

// NormalizedKey is LeadingKey trimmed and lower-cased.
func NormalizedKey(text string) string {
	return strings.ToLower(strings.TrimSpace(LeadingKey(text)))
}

// FindLine maps a path inside a document to a source line by scanning the
// raw token stream. Each segment is matched against tokens after the
// previous segment's match, case-insensitively. The scan never backtracks
// and the first matching token wins, so a key repeated at several depths
// resolves to its earliest occurrence after the cursor. Returns (0, false)
// if any segment is not found.
func FindLine(s *token.Stream, path []string) (int, bool) {
	if len(path) == 0 {
		return 0, false
	}
	cursor := 0
	line := 0
	for _, segment := range path {
		want := strings.ToLower(strings.TrimSpace(segment))
		found := -1
		for i := cursor; i < s.Len(); i++ {
			tok, _ := s.At(i)
			if NormalizedKey(tok.Text) == want {
				found = i
				break
			}
		}
		if found < 0 {
			return 0, false
		}
		tok, _ := s.At(found)
		line = tok.Line
		cursor = found + 1
	}
	return line, true
}
