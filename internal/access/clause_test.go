package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClauseRebindNumbersPlaceholders(t *testing.T) {
	c := Clause{SQL: "a.group_id = ANY(?) AND a.owner_id = ?", Args: []any{[]int64{1}, int64(7)}}
	assert.Equal(t, "a.group_id = ANY($3) AND a.owner_id = $4", c.Rebind(3))
}

func TestClauseCombinators(t *testing.T) {
	a := Clause{SQL: "x = ?", Args: []any{1}}
	b := Clause{SQL: "y = ?", Args: []any{2}}

	or := Or(a, b)
	assert.Equal(t, "(x = ? OR y = ?)", or.SQL)
	assert.Equal(t, []any{1, 2}, or.Args)

	and := And(a, b)
	assert.Equal(t, "(x = ? AND y = ?)", and.SQL)

	assert.Equal(t, a, Or(a))
	assert.Equal(t, "TRUE", And().SQL)
}
