package access

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	userACLs   map[int64][]string
	userGroups map[int64][]int64
	tokens     map[string]TokenScope
	allGroups  []int64

	aclCalls   int
	groupCalls int
}

func (s *stubStore) UserACLs(_ context.Context, userID int64) ([]string, error) {
	s.aclCalls++
	return s.userACLs[userID], nil
}

func (s *stubStore) UserGroups(_ context.Context, userID int64) ([]int64, error) {
	s.groupCalls++
	return s.userGroups[userID], nil
}

func (s *stubStore) TokenScope(_ context.Context, tokenID string) (TokenScope, error) {
	scope, ok := s.tokens[tokenID]
	if !ok {
		return TokenScope{}, fmt.Errorf("%w: unknown token", ErrInvalidPrincipal)
	}
	return scope, nil
}

func (s *stubStore) AllGroupIDs(_ context.Context) ([]int64, error) {
	return s.allGroups, nil
}

func newStubStore() *stubStore {
	return &stubStore{
		userACLs:   make(map[int64][]string),
		userGroups: make(map[int64][]int64),
		tokens:     make(map[string]TokenScope),
	}
}

func TestResolveUserUnionsRoleAndDirectACLs(t *testing.T) {
	store := newStubStore()
	store.userACLs[7] = []string{"Upload data", "Comment", "Comment"}
	store.userGroups[7] = []int64{1, 3}

	res := NewResolver(store)
	c, err := res.Closure(context.Background(), UserRef{UserID: 7})
	require.NoError(t, err)

	assert.Equal(t, []string{"Comment", "Upload data"}, c.ACLIDs())
	assert.Equal(t, []int64{1, 3}, c.GroupIDs())
	assert.False(t, c.IsAdmin())
	assert.Equal(t, int64(7), c.OwnerUserID())
}

func TestResolveAdminSeesAllGroups(t *testing.T) {
	store := newStubStore()
	store.userACLs[2] = []string{AdminACL}
	store.userGroups[2] = []int64{1}
	store.allGroups = []int64{1, 2, 3, 4}

	res := NewResolver(store)
	c, err := res.Closure(context.Background(), UserRef{UserID: 2})
	require.NoError(t, err)

	assert.True(t, c.IsAdmin())
	assert.Equal(t, []int64{1, 2, 3, 4}, c.GroupIDs())
}

func TestResolveTokenNarrowsToDeclaredScope(t *testing.T) {
	store := newStubStore()
	// Creator B is in groups 1 and 2; the token was scoped to group 1
	// only at creation time.
	store.userACLs[5] = []string{"Upload data", "Manage sources"}
	store.userGroups[5] = []int64{1, 2}
	store.tokens["tok-1"] = TokenScope{
		CreatedBy: 5,
		GroupIDs:  []int64{1},
		ACLIDs:    []string{"Upload data", "Manage groups"},
	}

	res := NewResolver(store)
	c, err := res.Closure(context.Background(), TokenRef{TokenID: "tok-1"})
	require.NoError(t, err)

	// ACLs: declared scope intersected with the creator's grants.
	assert.Equal(t, []string{"Upload data"}, c.ACLIDs())
	// Groups: frozen scope, not the creator's current memberships.
	assert.Equal(t, []int64{1}, c.GroupIDs())
	assert.Equal(t, int64(5), c.OwnerUserID())
	assert.Equal(t, "tok-1", c.TokenID())
}

func TestResolveTokenDoesNotWidenWhenCreatorJoinsGroups(t *testing.T) {
	store := newStubStore()
	store.userACLs[5] = []string{"Upload data"}
	store.userGroups[5] = []int64{1}
	store.tokens["tok-1"] = TokenScope{CreatedBy: 5, GroupIDs: []int64{1}}

	res := NewResolver(store)
	c, err := res.Closure(context.Background(), TokenRef{TokenID: "tok-1"})
	require.NoError(t, err)
	require.Equal(t, []int64{1}, c.GroupIDs())

	// Creator joins group 9 afterwards; a fresh resolution of the same
	// token still sees only the frozen scope.
	store.userGroups[5] = []int64{1, 9}
	c2, err := NewResolver(store).Closure(context.Background(), TokenRef{TokenID: "tok-1"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, c2.GroupIDs())
}

func TestResolveAdminTokenSeesAllGroups(t *testing.T) {
	store := newStubStore()
	store.userACLs[5] = []string{AdminACL}
	store.tokens["tok-adm"] = TokenScope{CreatedBy: 5, GroupIDs: []int64{1}, ACLIDs: []string{AdminACL}}
	store.allGroups = []int64{1, 2, 3}

	c, err := NewResolver(store).Closure(context.Background(), TokenRef{TokenID: "tok-adm"})
	require.NoError(t, err)
	assert.True(t, c.IsAdmin())
	assert.Equal(t, []int64{1, 2, 3}, c.GroupIDs())
}

func TestResolverMemoizesWithinRequest(t *testing.T) {
	store := newStubStore()
	store.userACLs[7] = []string{"Comment"}
	store.userGroups[7] = []int64{1}

	res := NewResolver(store)
	for i := 0; i < 5; i++ {
		_, err := res.Closure(context.Background(), UserRef{UserID: 7})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.aclCalls)
	assert.Equal(t, 1, store.groupCalls)
}

func TestResolverRejectsUnknownPrincipal(t *testing.T) {
	res := NewResolver(newStubStore())

	_, err := res.Closure(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidPrincipal)

	_, err = res.Closure(context.Background(), bogusPrincipal{})
	assert.ErrorIs(t, err, ErrInvalidPrincipal)

	_, err = res.Closure(context.Background(), TokenRef{TokenID: "nope"})
	assert.ErrorIs(t, err, ErrInvalidPrincipal)
}

type bogusPrincipal struct{}

func (bogusPrincipal) cacheKey() string { return "bogus" }
