package storage

import (
	"fmt"
	"strings"
)

const (
	defaultListLimit = 100
	maxListLimit     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// queryBuilder appends AND clauses with sequential $n placeholders.
type queryBuilder struct {
	b    strings.Builder
	args []any
}

func newQueryBuilder(base string) *queryBuilder {
	q := &queryBuilder{args: make([]any, 0, 8)}
	q.b.WriteString(base)
	return q
}

// where adds "AND <clause>" where clause holds exactly one %d for the
// placeholder index.
func (q *queryBuilder) where(clause string, arg any) {
	q.args = append(q.args, arg)
	q.b.WriteString("AND ")
	q.b.WriteString(fmt.Sprintf(clause, len(q.args)))
	q.b.WriteString("\n")
}

func (q *queryBuilder) tail(sql string) {
	q.b.WriteString(sql)
	q.b.WriteString("\n")
}

func (q *queryBuilder) limit(n int) {
	q.args = append(q.args, n)
	q.b.WriteString(fmt.Sprintf("LIMIT $%d", len(q.args)))
}

func (q *queryBuilder) String() string {
	return q.b.String()
}
