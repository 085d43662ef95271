package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClosure(ownerID int64, admin bool, groups ...int64) *Closure {
	c := &Closure{
		acls:    map[string]struct{}{},
		groups:  int64Set(groups),
		admin:   admin,
		ownerID: ownerID,
	}
	if admin {
		c.acls[AdminACL] = struct{}{}
	}
	return c
}

type photometryRow struct {
	id       int64
	groupIDs []int64
	ownerID  int64
}

func (p photometryRow) EntityType() string      { return "photometry" }
func (p photometryRow) EntityID() any           { return p.id }
func (p photometryRow) AccessGroupIDs() []int64 { return p.groupIDs }
func (p photometryRow) AccessOwnerID() int64    { return p.ownerID }

type sourceRow struct {
	id      int64
	groupID int64
}

func (s sourceRow) EntityType() string   { return "source" }
func (s sourceRow) EntityID() any        { return s.id }
func (s sourceRow) AccessGroupID() int64 { return s.groupID }

type candidateRow struct {
	id            int64
	filterGroupID int64
}

func (c candidateRow) EntityType() string         { return "candidate" }
func (c candidateRow) EntityID() any              { return c.id }
func (c candidateRow) AccessFilterGroupID() int64 { return c.filterGroupID }

type commentRow struct {
	id       int64
	objID    string
	groupIDs []int64
	ownerID  int64
}

func (c commentRow) EntityType() string      { return "comment" }
func (c commentRow) EntityID() any           { return c.id }
func (c commentRow) AccessObjID() string     { return c.objID }
func (c commentRow) AccessGroupIDs() []int64 { return c.groupIDs }
func (c commentRow) AccessOwnerID() int64    { return c.ownerID }

type groupRow struct {
	id int64
}

func (g groupRow) EntityType() string { return "group" }
func (g groupRow) EntityID() any      { return g.id }

func TestGroupMemberPolicy(t *testing.T) {
	policy := ByGroup("group_id")
	row := sourceRow{id: 1, groupID: 2}

	allowed, decided := policy.allows(row, testClosure(1, false, 2, 3))
	require.True(t, decided)
	assert.True(t, allowed)

	allowed, decided = policy.allows(row, testClosure(1, false, 1, 3))
	require.True(t, decided)
	assert.False(t, allowed)
}

func TestGroupsMemberPolicy(t *testing.T) {
	policy := ByGroups("photometry_groups", "photometry_id")

	// Scenario from the portal: ph1 is shared with group 2 only. User A
	// belongs to group 1 only, user B to groups 1 and 2.
	ph1 := photometryRow{id: 1, groupIDs: []int64{2}}

	allowed, decided := policy.allows(ph1, testClosure(10, false, 1))
	require.True(t, decided)
	assert.False(t, allowed, "user A must not see ph1")

	allowed, decided = policy.allows(ph1, testClosure(11, false, 1, 2))
	require.True(t, decided)
	assert.True(t, allowed, "user B sees ph1 via group 2")
}

func TestFilterGroupPolicy(t *testing.T) {
	policy := ByFilterGroup("filter_id")
	row := candidateRow{id: 4, filterGroupID: 7}

	allowed, decided := policy.allows(row, testClosure(1, false, 7))
	require.True(t, decided)
	assert.True(t, allowed)

	allowed, decided = policy.allows(row, testClosure(1, false, 6))
	require.True(t, decided)
	assert.False(t, allowed)
}

func TestOwnerPolicy(t *testing.T) {
	policy := ByOwner("owner_id")
	row := photometryRow{id: 1, ownerID: 42}

	allowed, decided := policy.allows(row, testClosure(42, false))
	require.True(t, decided)
	assert.True(t, allowed)

	allowed, decided = policy.allows(row, testClosure(43, false))
	require.True(t, decided)
	assert.False(t, allowed)

	// A zero owner column never matches, even for a zero-id closure.
	orphan := photometryRow{id: 2}
	allowed, decided = policy.allows(orphan, &Closure{})
	require.True(t, decided)
	assert.False(t, allowed)
}

func TestSelfGroupPolicy(t *testing.T) {
	policy := SelfGroup()

	allowed, decided := policy.allows(groupRow{id: 3}, testClosure(1, false, 3))
	require.True(t, decided)
	assert.True(t, allowed)

	allowed, decided = policy.allows(groupRow{id: 4}, testClosure(1, false, 3))
	require.True(t, decided)
	assert.False(t, allowed)
}

func TestAnyOfEvaluatesEveryBranch(t *testing.T) {
	// Owner fails but group membership passes; the union must admit.
	policy := AnyOf(ByOwner("owner_id"), ByGroups("photometry_groups", "photometry_id"))
	row := photometryRow{id: 1, ownerID: 99, groupIDs: []int64{5}}

	allowed, decided := policy.allows(row, testClosure(1, false, 5))
	require.True(t, decided)
	assert.True(t, allowed)

	allowed, decided = policy.allows(row, testClosure(1, false, 6))
	require.True(t, decided)
	assert.False(t, allowed)
}

func TestAllOfRequiresEveryBranch(t *testing.T) {
	policy := AllOf(ByOwner("owner_id"), ByGroups("comment_groups", "comment_id"))
	row := commentRow{id: 1, ownerID: 42, groupIDs: []int64{5}}

	allowed, decided := policy.allows(row, testClosure(42, false, 5))
	require.True(t, decided)
	assert.True(t, allowed)

	allowed, decided = policy.allows(row, testClosure(42, false, 6))
	require.True(t, decided)
	assert.False(t, allowed)
}

func TestCompositesWithRelationalBranchesStayUndecided(t *testing.T) {
	linked := LinkedObj("obj_id")
	row := commentRow{id: 1, objID: "ZTF21abc", groupIDs: []int64{5}}

	// AND with a passing pure branch still needs the linked lookup.
	_, decided := AllOf(linked, ByGroups("comment_groups", "comment_id")).allows(row, testClosure(1, false, 5))
	assert.False(t, decided)

	// AND short-circuits to a denial when the pure branch already fails.
	allowed, decided := AllOf(linked, ByGroups("comment_groups", "comment_id")).allows(row, testClosure(1, false, 6))
	require.True(t, decided)
	assert.False(t, allowed)

	// OR short-circuits to a grant when the pure branch already passes.
	allowed, decided = AnyOf(linked, ByGroups("comment_groups", "comment_id")).allows(row, testClosure(1, false, 5))
	require.True(t, decided)
	assert.True(t, allowed)
}

func TestGroupMonotonicity(t *testing.T) {
	// Adding a principal to a group can only grow the accessible set.
	rows := []photometryRow{
		{id: 1, groupIDs: []int64{1}},
		{id: 2, groupIDs: []int64{2}},
		{id: 3, groupIDs: []int64{2, 3}},
		{id: 4, groupIDs: []int64{4}},
	}
	policy := ByGroups("photometry_groups", "photometry_id")

	accessible := func(c *Closure) map[int64]bool {
		out := make(map[int64]bool)
		for _, row := range rows {
			allowed, decided := policy.allows(row, c)
			require.True(t, decided)
			out[row.id] = allowed
		}
		return out
	}

	before := accessible(testClosure(1, false, 1))
	after := accessible(testClosure(1, false, 1, 2))
	for id, was := range before {
		if was {
			assert.True(t, after[id], "row %d lost access after joining a group", id)
		}
	}
	assert.True(t, after[2])
	assert.True(t, after[3])
	assert.False(t, after[4])
}
