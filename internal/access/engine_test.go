package access

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister(EntityType{
		Name: "group", Table: "groups", Prototype: groupRow{},
		Read: SelfGroup(), Write: SelfGroup(),
	})
	reg.MustRegister(EntityType{
		Name: "source", Table: "sources", Prototype: sourceRow{},
		Read: ByGroup("group_id"), Write: ByGroup("group_id"),
	})
	reg.MustRegister(EntityType{
		Name: "candidate", Table: "candidates", Prototype: candidateRow{},
		Read: ByFilterGroup("filter_id"), Write: ByFilterGroup("filter_id"),
	})
	objRead := AnyOf(
		ViaRelation("sources", "obj_id", ByGroup("group_id")),
		ViaRelation("candidates", "obj_id", ByFilterGroup("filter_id")),
		ViaRelation("photometry", "obj_id", ByGroups("photometry_groups", "photometry_id")),
	)
	reg.MustRegister(EntityType{
		Name: "obj", Table: "objs", Prototype: objRow{}, ObjRoot: true,
		Read: objRead, Write: objRead,
	})
	reg.MustRegister(EntityType{
		Name: "photometry", Table: "photometry", Prototype: photometryRow{},
		Read: ByGroups("photometry_groups", "photometry_id"), Write: ByOwner("owner_id"),
	})
	reg.MustRegister(EntityType{
		Name: "comment", Table: "comments", Prototype: commentRow{},
		Read:  AllOf(LinkedObj("obj_id"), ByGroups("comment_groups", "comment_id")),
		Write: ByOwner("author_id"),
	})
	require.NoError(t, reg.Finalize())
	return reg
}

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeQuerier struct {
	exists   bool
	err      error
	lastSQL  string
	lastArgs []any
	calls    int
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.calls++
	q.lastSQL = sql
	q.lastArgs = args
	return fakeRow{scan: func(dest ...any) error {
		if q.err != nil {
			return q.err
		}
		*(dest[0].(*bool)) = q.exists
		return nil
	}}
}

func (q *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected Query call")
}

func TestFilterWrapsAdminOverrideAsLeadingBranch(t *testing.T) {
	eng := NewEngine(testRegistry(t))

	clause, err := eng.Filter("photometry", testClosure(1, false, 1, 2), ModeRead)
	require.NoError(t, err)
	assert.Equal(t,
		"(? OR EXISTS (SELECT 1 FROM photometry_groups r0 WHERE r0.photometry_id = photometry.id AND r0.group_id = ANY(?)))",
		clause.SQL)
	require.Len(t, clause.Args, 2)
	assert.Equal(t, false, clause.Args[0])
	assert.Equal(t, []int64{1, 2}, clause.Args[1])

	admin, err := eng.Filter("photometry", testClosure(1, true, 1), ModeRead)
	require.NoError(t, err)
	assert.Equal(t, clause.SQL, admin.SQL, "admin queries keep the same single-query shape")
	assert.Equal(t, true, admin.Args[0])
}

func TestFilterComposesLinkedReadability(t *testing.T) {
	eng := NewEngine(testRegistry(t))

	clause, err := eng.Filter("comment", testClosure(1, false, 2), ModeRead)
	require.NoError(t, err)

	// The obj root's union is inlined one hop deep: sources by group,
	// candidates by filter group, photometry by shared groups, then the
	// comment's own group sharing is ANDed on top.
	assert.Contains(t, clause.SQL, "FROM objs r0 WHERE r0.id = comments.obj_id")
	assert.Contains(t, clause.SQL, "FROM sources r1 WHERE r1.obj_id = r0.id AND r1.group_id = ANY(?)")
	assert.Contains(t, clause.SQL, "FROM candidates r2 WHERE r2.obj_id = r0.id")
	assert.Contains(t, clause.SQL, "FROM filters r3 WHERE r3.id = r2.filter_id")
	assert.Contains(t, clause.SQL, "FROM photometry r4 WHERE r4.obj_id = r0.id")
	assert.Contains(t, clause.SQL, "FROM comment_groups r6 WHERE r6.comment_id = comments.id")
	// Leading admin arg plus one group array per membership check.
	assert.Len(t, clause.Args, 5)
}

func TestFilterRejectsUnregisteredType(t *testing.T) {
	eng := NewEngine(testRegistry(t))
	_, err := eng.Filter("spectrum", testClosure(1, false), ModeRead)
	var misconfigured *PolicyMisconfiguredError
	assert.ErrorAs(t, err, &misconfigured)
}

func TestIsAccessiblePurePathSkipsQueries(t *testing.T) {
	eng := NewEngine(testRegistry(t))
	q := &fakeQuerier{}

	ph1 := photometryRow{id: 1, groupIDs: []int64{2}, ownerID: 30}

	allowed, err := eng.IsAccessible(context.Background(), q, ph1, testClosure(10, false, 1), ModeRead)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = eng.IsAccessible(context.Background(), q, ph1, testClosure(11, false, 1, 2), ModeRead)
	require.NoError(t, err)
	assert.True(t, allowed)

	assert.Zero(t, q.calls, "pure policies must not hit the store")
}

func TestIsAccessibleAdminOverrideAppliesToBothModes(t *testing.T) {
	eng := NewEngine(testRegistry(t))
	q := &fakeQuerier{}

	// B holds the admin ACL but owns nothing and shares no groups with
	// the row; both checks must still pass.
	ph1 := photometryRow{id: 1, groupIDs: []int64{9}, ownerID: 30}
	admin := testClosure(11, true, 1, 2)

	allowed, err := eng.IsAccessible(context.Background(), q, ph1, admin, ModeRead)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = eng.IsAccessible(context.Background(), q, ph1, admin, ModeWrite)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestIsAccessibleFallsBackToExistsForLinkedPolicies(t *testing.T) {
	eng := NewEngine(testRegistry(t))
	q := &fakeQuerier{exists: true}

	comment := commentRow{id: 8, objID: "ZTF21abc", groupIDs: []int64{2}, ownerID: 30}
	allowed, err := eng.IsAccessible(context.Background(), q, comment, testClosure(10, false, 2), ModeRead)
	require.NoError(t, err)
	assert.True(t, allowed)
	require.Equal(t, 1, q.calls)
	assert.Contains(t, q.lastSQL, "SELECT EXISTS (SELECT 1 FROM comments WHERE comments.id = $1")
	assert.Equal(t, int64(8), q.lastArgs[0])
}

func TestIsAccessibleLinkedDenialWithoutGroupOverlap(t *testing.T) {
	eng := NewEngine(testRegistry(t))
	q := &fakeQuerier{exists: true}

	// The comment's own sharing is narrower than the obj's: no overlap
	// with the closure means denial without consulting the store at all.
	comment := commentRow{id: 8, objID: "ZTF21abc", groupIDs: []int64{3}}
	allowed, err := eng.IsAccessible(context.Background(), q, comment, testClosure(10, false, 2), ModeRead)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, q.calls)
}

func TestAuthorizeUnifiesNotFoundAndForbidden(t *testing.T) {
	eng := NewEngine(testRegistry(t))

	q := &fakeQuerier{exists: false}
	err := eng.Authorize(context.Background(), q, "photometry", int64(1), testClosure(10, false, 1), ModeRead)
	assert.ErrorIs(t, err, ErrAccessDenied)

	q.exists = true
	assert.NoError(t, eng.Authorize(context.Background(), q, "photometry", int64(1), testClosure(10, false, 1), ModeRead))
}

func TestEngineObserverRecordsDecisions(t *testing.T) {
	eng := NewEngine(testRegistry(t))
	type decision struct {
		entity  string
		mode    Mode
		allowed bool
	}
	var seen []decision
	eng.SetObserver(func(entity string, mode Mode, allowed bool) {
		seen = append(seen, decision{entity, mode, allowed})
	})

	ph := photometryRow{id: 1, groupIDs: []int64{2}}
	_, err := eng.IsAccessible(context.Background(), &fakeQuerier{}, ph, testClosure(10, false, 2), ModeRead)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, decision{"photometry", ModeRead, true}, seen[0])
}
