package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/token"
	"github.com/drupal-spider/DrupalSecurity/internal/token/tokentest"
)

func run(r *SQLRule, lexemes ...string) []diag.Diagnostic {
	file := types.NewFile("example.module", nil, tokentest.Stream(lexemes...))
	sink := diag.NewSink(file.Path)
	for i := 0; i < file.Stream.Len(); i++ {
		tok, _ := file.Stream.At(i)
		if tok.Kind == token.Identifier {
			r.Process(file, i, sink)
		}
	}
	return sink.All()
}

var connection = []string{"Database", "::", "getConnection", "(", ")", "->"}

func withConnection(lexemes ...string) []string {
	return append(append([]string{}, connection...), lexemes...)
}

func TestSQLRule_Query(t *testing.T) {
	r := NewSQLRule(types.DefaultTables())

	t.Run("concatenated single argument", func(t *testing.T) {
		got := run(r, withConnection("query", "(", "'SELECT * FROM t WHERE x = '", ".", " ", "$_GET", "[", "'user'", "]", ")", ";")...)
		require.Len(t, got, 1)
		assert.Equal(t, diag.Error, got[0].Severity)
		assert.Equal(t, CodeSQL, got[0].Code)
		assert.Equal(t, RuleID, got[0].Rule)
		assert.Equal(t, 1, got[0].Line)
		assert.Equal(t, msgConcatenation, got[0].Message)
		assert.Contains(t, got[0].Message, "@see https://www.drupal.org/docs/security-in-drupal/writing-secure-code-for-drupal#s-use-the-database-abstraction-layer-to-avoid-sql-injection-attacks")
	})

	t.Run("placeholders with arguments", func(t *testing.T) {
		got := run(r, withConnection(
			"query", "(", "'SELECT * FROM t WHERE x = :x'", ",", " ",
			"[", "':x'", " ", "=>", " ", "$_GET", "[", "'user'", "]", "]", ")", ";")...)
		assert.Empty(t, got)
	})

	t.Run("case insensitive name", func(t *testing.T) {
		got := run(r, "QUERY", "(", "$sql", ")")
		require.Len(t, got, 1)
		assert.Equal(t, CodeSQL, got[0].Code)
	})

	t.Run("not a call", func(t *testing.T) {
		assert.Empty(t, run(r, "query", ";"))
		assert.Empty(t, run(r, "$query", " ", "=", " ", "'query'", ";"))
	})

	t.Run("line of the callee", func(t *testing.T) {
		got := run(r, "$db", "\n", "->", "query", "(", "\n", "$sql", "\n", ")")
		require.Len(t, got, 1)
		assert.Equal(t, 2, got[0].Line)
	})
}

func TestSQLRule_Condition(t *testing.T) {
	tests := []struct {
		name     string
		like     diag.Severity
		lexemes  []string
		want     int
		severity diag.Severity
		message  string
	}{
		{
			name:     "dynamic like value",
			like:     diag.Warning,
			lexemes:  []string{"condition", "(", "'t.field'", ",", " ", "$_GET", "[", "'user'", "]", ",", " ", "'LIKE'", ")"},
			want:     1,
			severity: diag.Warning,
			message:  msgDynamicLike,
		},
		{
			name:     "dynamic like value as error",
			like:     diag.Error,
			lexemes:  []string{"condition", "(", "'t.field'", ",", " ", "$name", ",", " ", `"like"`, ")"},
			want:     1,
			severity: diag.Error,
			message:  msgDynamicLike,
		},
		{
			name:    "static like value",
			like:    diag.Warning,
			lexemes: []string{"condition", "(", "'t.field'", ",", " ", "'abc%'", ",", " ", "'LIKE'", ")"},
			want:    0,
		},
		{
			name:     "dynamic operator",
			like:     diag.Warning,
			lexemes:  []string{"condition", "(", "'t.field'", ",", " ", "$user", ",", " ", "$user_input", ")"},
			want:     1,
			severity: diag.Error,
			message:  msgDynamicOperator,
		},
		{
			name:     "dynamic operator regardless of value",
			like:     diag.Warning,
			lexemes:  []string{"condition", "(", "'t.field'", ",", " ", "'x'", ",", " ", "$op", ")"},
			want:     1,
			severity: diag.Error,
			message:  msgDynamicOperator,
		},
		{
			name:    "two arguments",
			like:    diag.Warning,
			lexemes: []string{"condition", "(", "'f.bar'", ",", " ", "$users", ")"},
			want:    0,
		},
		{
			name:    "static operator",
			like:    diag.Warning,
			lexemes: []string{"condition", "(", "'f.bar'", ",", " ", "$users", ",", " ", "'IN'", ")"},
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := types.DefaultTables()
			tables.LikeSeverity = tt.like
			got := run(NewSQLRule(tables), tt.lexemes...)
			require.Len(t, got, tt.want)
			if tt.want == 0 {
				return
			}
			assert.Equal(t, tt.severity, got[0].Severity)
			assert.Equal(t, CodeSQL, got[0].Code)
			assert.Equal(t, tt.message, got[0].Message)
		})
	}
}

func TestSQLRule_AccessCheck(t *testing.T) {
	r := NewSQLRule(types.DefaultTables())

	got := run(r, "accessCheck", "(", "FALSE", ")")
	require.Len(t, got, 1)
	assert.Equal(t, diag.Warning, got[0].Severity)
	assert.Equal(t, CodeAccessCheck, got[0].Code)
	assert.Equal(t, "Query without having access check. @see https://www.drupal.org/node/3201242", got[0].Message)
	assert.Equal(t, "DrupalSecurity.Database.Sql.Accesscheck", got[0].Source())

	assert.Empty(t, run(r, "accessCheck", "(", "TRUE", ")"))
	assert.Empty(t, run(r, "accessCheck", "(", ")"))
}

func TestSQLRule_EntityLoads(t *testing.T) {
	r := NewSQLRule(types.DefaultTables())

	got := run(r, "$storage", "->", "loadMultiple", "(", ")")
	require.Len(t, got, 1)
	assert.Equal(t, diag.Warning, got[0].Severity)
	assert.Equal(t, CodeAccessCheck, got[0].Code)
	assert.Equal(t, "loadMultiple() function detected. This function won't check access during loading. @see https://www.drupal.org/docs/drupal-apis/entity-api/working-with-the-entity-api#s-checking-if-a-user-account-has-access-to-an-entity-object", got[0].Message)

	got = run(r, "$storage", "->", "loadByProperties", "(", "$props", ")")
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "loadByProperties() function detected.")

	got = run(r, "loadMultiple", "(", "[", "1", ",", "2", "]", ")")
	assert.Len(t, got, 1)
}

func TestSQLRule_CustomTables(t *testing.T) {
	tables := types.DefaultTables()
	tables.DatabaseCalls = []string{"condition"}
	r := NewSQLRule(tables)
	assert.Empty(t, run(r, "query", "(", "$sql", ")"))
}

func TestSQLRule_Meta(t *testing.T) {
	r := NewSQLRule(types.DefaultTables())
	assert.Equal(t, RuleID, r.Meta().ID)
	assert.Equal(t, []token.Kind{token.Identifier}, r.Subscriptions())
}
