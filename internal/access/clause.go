package access

import (
	"strconv"
	"strings"
)

// Clause is a composable SQL predicate fragment. Placeholders are
// written as `?` and renumbered with Rebind when the clause is spliced
// into a full statement, so fragments compose regardless of how many
// parameters precede them.
type Clause struct {
	SQL  string
	Args []any
}

// TrueClause matches every row.
func TrueClause() Clause { return Clause{SQL: "TRUE"} }

// FalseClause matches no row.
func FalseClause() Clause { return Clause{SQL: "FALSE"} }

// And returns the conjunction of the clauses.
func And(clauses ...Clause) Clause { return combine(" AND ", clauses) }

// Or returns the disjunction of the clauses.
func Or(clauses ...Clause) Clause { return combine(" OR ", clauses) }

func combine(sep string, clauses []Clause) Clause {
	if len(clauses) == 0 {
		return TrueClause()
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	parts := make([]string, len(clauses))
	var args []any
	for i, c := range clauses {
		parts[i] = c.SQL
		args = append(args, c.Args...)
	}
	return Clause{SQL: "(" + strings.Join(parts, sep) + ")", Args: args}
}

// Rebind rewrites `?` placeholders to PostgreSQL's $n form, starting at
// the given ordinal. Callers append Clause.Args to their argument list
// in the same position.
func (c Clause) Rebind(start int) string {
	var b strings.Builder
	b.Grow(len(c.SQL) + 8)
	n := start
	for _, r := range c.SQL {
		if r == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
