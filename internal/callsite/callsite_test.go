package callsite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drupal-spider/DrupalSecurity/internal/token/tokentest"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		lexemes []string
		wantOK  bool
		want    []string // clean text per position
	}{
		{
			name:    "not a call",
			lexemes: []string{"query", " ", ";"},
			wantOK:  false,
		},
		{
			name:    "callee at end of stream",
			lexemes: []string{"query"},
			wantOK:  false,
		},
		{
			name:    "empty parens",
			lexemes: []string{"query", "(", ")"},
			wantOK:  true,
			want:    nil,
		},
		{
			name:    "whitespace and comment before paren",
			lexemes: []string{"query", " ", "/* x */", "(", "'a'", ")"},
			wantOK:  true,
			want:    []string{"a"},
		},
		{
			name: "concatenated first argument",
			lexemes: []string{"query", "(", "'SELECT * FROM t WHERE x = '", ".", " ", "$_GET", "[", "'user'", "]", ")"},
			wantOK: true,
			want:   []string{"'SELECT * FROM t WHERE x = '. $_GET['user']"},
		},
		{
			name: "nested call and array do not split",
			lexemes: []string{
				"query", "(", "foo", "(", "$a", ",", "$b", ")", ",", " ",
				"[", "':x'", " ", "=>", " ", "$c", ",", "2", "]", ")",
			},
			wantOK: true,
			want:   []string{"foo($a,$b)", "[':x' => $c,2]"},
		},
		{
			name:    "trailing comma",
			lexemes: []string{"condition", "(", "'f'", ",", " ", "$v", ",", ")"},
			wantOK:  true,
			want:    []string{"f", "$v"},
		},
		{
			name:    "empty string argument is present",
			lexemes: []string{"accessCheck", "(", "''", ")"},
			wantOK:  true,
			want:    []string{""},
		},
		{
			name:    "unclosed paren",
			lexemes: []string{"query", "(", "'a'", ","},
			wantOK:  false,
		},
		{
			name:    "mismatched closer",
			lexemes: []string{"query", "(", "'a'", "]"},
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tokentest.Stream(tt.lexemes...)
			call, ok := Resolve(s, 0)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			require.Equal(t, len(tt.want), call.Len())
			for i, want := range tt.want {
				arg, present := call.Arg(i + 1)
				require.True(t, present)
				assert.Equal(t, i+1, arg.Position)
				assert.Equal(t, want, arg.Clean)
			}
			_, present := call.Arg(len(tt.want) + 1)
			assert.False(t, present)
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	s := tokentest.Stream("condition", "(", "'t.f'", ",", " ", "$user", ",", " ", "'LIKE'", ")")
	first, ok := Resolve(s, 0)
	require.True(t, ok)
	second, ok := Resolve(s, 0)
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Equal(t, "condition", first.Callee)
	assert.Equal(t, 1, first.OpenParen)
	assert.Equal(t, 9, first.CloseParen)
}

func TestResolve_CommentsDroppedFromRaw(t *testing.T) {
	s := tokentest.Stream("query", "(", "'a'", " ", "/* note */", ")")
	call, ok := Resolve(s, 0)
	require.True(t, ok)
	arg, _ := call.Arg(1)
	assert.Equal(t, "'a'", arg.Raw)
	assert.Equal(t, "a", arg.Clean)
}

func TestClean(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"'LIKE'", "LIKE"},
		{`"LIKE"`, "LIKE"},
		{"  'x'  ", "x"},
		{"$op", "$op"},
		{"''", ""},
		{"'", "'"},
		{"'a' . 'b'", "'a' . 'b'"},
		{`'it\'s'`, `it\'s`},
		{`'a\'`, `'a\'`},
		{`'a\\'`, `a\\`},
		{`"mixed'`, `"mixed'`},
		{"''x''", "''x''"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Clean(tt.input), tt.input)
	}
}

func TestStripQuotes(t *testing.T) {
	assert.Equal(t, "like", StripQuotes(`'li"ke'`))
	assert.Equal(t, "$op", StripQuotes("$op"))
}
