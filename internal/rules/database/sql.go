// Package database audits calls to the database and entity APIs.
package database

import (
	"fmt"
	"strings"

	"github.com/drupal-spider/DrupalSecurity/internal/callsite"
	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/token"
)

// RuleID identifies the SQL audit.
const RuleID = "Database.Sql"

const (
	CodeSQL         = "SQL"
	CodeAccessCheck = "Access check"
)

const (
	sqlReference    = "https://www.drupal.org/docs/security-in-drupal/writing-secure-code-for-drupal#s-use-the-database-abstraction-layer-to-avoid-sql-injection-attacks"
	accessReference = "https://www.drupal.org/node/3201242"
	entityReference = "https://www.drupal.org/docs/drupal-apis/entity-api/working-with-the-entity-api#s-checking-if-a-user-account-has-access-to-an-entity-object"

	msgConcatenation   = "Concatenate data directly into SQL queries. @see " + sqlReference
	msgDynamicLike     = "A LIKE query contains dynamic variable. @see " + sqlReference
	msgDynamicOperator = "Dynamic variable as a operator to a query's condition. @see " + sqlReference
	msgNoAccessCheck   = "Query without having access check. @see " + accessReference
	msgEntityLoad      = "%s() function detected. This function won't check access during loading. @see " + entityReference
)

// SQLRule flags query builder calls that are prone to injection and
// entity loads that bypass access checks.
type SQLRule struct {
	calls        map[string]bool
	likeSeverity diag.Severity
}

// NewSQLRule creates the rule from the tracked tables.
func NewSQLRule(tables types.Tables) *SQLRule {
	calls := make(map[string]bool, len(tables.DatabaseCalls))
	for _, name := range tables.DatabaseCalls {
		calls[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return &SQLRule{calls: calls, likeSeverity: tables.LikeSeverity}
}

// Meta returns the rule description.
func (r *SQLRule) Meta() types.Meta {
	return types.Meta{
		ID:          RuleID,
		Name:        "Database API usage",
		Description: "Raw SQL concatenation, dynamic LIKE values and operators, disabled access checks and unchecked entity loads",
		Codes:       []string{CodeSQL, CodeAccessCheck},
		Tags:        []string{"sql", "injection", "access"},
		References:  []string{sqlReference, accessReference, entityReference},
	}
}

// Subscriptions returns the token kinds the rule inspects.
func (r *SQLRule) Subscriptions() []token.Kind {
	return []token.Kind{token.Identifier}
}

// Process audits a tracked call at idx.
func (r *SQLRule) Process(file *types.File, idx int, sink *diag.Sink) types.Action {
	tok, ok := file.Stream.At(idx)
	if !ok {
		return types.Continue
	}
	name := strings.ToLower(tok.Text)
	if !r.calls[name] {
		return types.Continue
	}
	call, ok := callsite.Resolve(file.Stream, idx)
	if !ok {
		return types.Continue
	}

	switch name {
	case "query":
		if _, present := call.Arg(2); !present {
			sink.Error(RuleID, CodeSQL, msgConcatenation, tok.Line)
		}
	case "condition":
		r.condition(call, tok.Line, sink)
	case "accesscheck":
		if arg, present := call.Arg(1); present && strings.ToLower(arg.Clean) == "false" {
			sink.Warning(RuleID, CodeAccessCheck, msgNoAccessCheck, tok.Line)
		}
	case "loadmultiple":
		sink.Warning(RuleID, CodeAccessCheck, fmt.Sprintf(msgEntityLoad, "loadMultiple"), tok.Line)
	case "loadbyproperties":
		sink.Warning(RuleID, CodeAccessCheck, fmt.Sprintf(msgEntityLoad, "loadByProperties"), tok.Line)
	}
	return types.Continue
}

func (r *SQLRule) condition(call callsite.CallSite, line int, sink *diag.Sink) {
	operator, present := call.Arg(3)
	if !present {
		return
	}
	op := strings.ToLower(callsite.StripQuotes(operator.Clean))
	if op == "like" {
		if value, ok := call.Arg(2); ok && strings.Contains(value.Clean, "$") {
			sink.Record(diag.Diagnostic{
				Severity: r.likeSeverity,
				Rule:     RuleID,
				Code:     CodeSQL,
				Message:  msgDynamicLike,
				Line:     line,
			})
		}
		return
	}
	if strings.Contains(op, "$") {
		sink.Error(RuleID, CodeSQL, msgDynamicOperator, line)
	}
}
