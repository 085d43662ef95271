package access

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// referenceAccessible is an independent, deliberately naive rendering of
// the portal's sharing rules, used to cross-check the policy
// evaluator: a photometry row is readable when its share set intersects
// the principal's groups or the principal is an admin, and writable by
// its owner or an admin.
func referenceAccessible(row photometryRow, c *Closure, mode Mode) bool {
	if c.IsAdmin() {
		return true
	}
	if mode == ModeWrite {
		return row.ownerID != 0 && row.ownerID == c.OwnerUserID()
	}
	for _, g := range row.groupIDs {
		if c.InGroup(g) {
			return true
		}
	}
	return false
}

func TestEngineAgreesWithReferenceModel(t *testing.T) {
	eng := NewEngine(testRegistry(t))
	rng := rand.New(rand.NewSource(20260826))

	randomGroups := func() []int64 {
		var out []int64
		for g := int64(1); g <= 5; g++ {
			if rng.Intn(2) == 0 {
				out = append(out, g)
			}
		}
		return out
	}

	for i := 0; i < 500; i++ {
		row := photometryRow{
			id:       int64(i + 1),
			groupIDs: randomGroups(),
			ownerID:  int64(rng.Intn(4)), // 0 means no owner recorded
		}
		closure := testClosure(int64(rng.Intn(4)), rng.Intn(10) == 0, randomGroups()...)

		for _, mode := range []Mode{ModeRead, ModeWrite} {
			got, err := eng.IsAccessible(t.Context(), &fakeQuerier{}, row, closure, mode)
			require.NoError(t, err)
			want := referenceAccessible(row, closure, mode)
			require.Equal(t, want, got,
				"row %+v closure groups %v owner %d admin %v mode %s",
				row, closure.GroupIDs(), closure.OwnerUserID(), closure.IsAdmin(), mode)
		}
	}
}
