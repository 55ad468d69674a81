// Package sqlxrepos implements the core repositories over PostgreSQL with
// parameterized sqlx queries.
package sqlxrepos

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/trezcool/darasa/core"
)

// pg error codes
const uniqueViolation = "23505"

func pqStringArray(ss []string) pq.StringArray { return pq.StringArray(ss) }

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// orderBy renders an ORDER BY clause from the requested orderings, keeping
// only fields present in the allowed set (ordering fields come straight from
// query params and cannot be bound as placeholders).
func orderBy(ordering []core.DBOrdering, allowed map[string]bool, dflt string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		return " ORDER BY " + dflt
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

// where renders a WHERE clause and the matching args from predicate snippets
// written with %d placeholders for the next arg positions.
type whereBuilder struct {
	preds []string
	args  []interface{}
}

func (wb *whereBuilder) add(pred string, args ...interface{}) {
	idx := make([]interface{}, 0, len(args))
	for i := range args {
		idx = append(idx, len(wb.args)+i+1)
	}
	wb.preds = append(wb.preds, fmt.Sprintf(pred, idx...))
	wb.args = append(wb.args, args...)
}

func (wb *whereBuilder) clause() string {
	if len(wb.preds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(wb.preds, " AND ")
}
