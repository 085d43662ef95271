package groups

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-portal/aurora/internal/access"
)

type mockRepo struct {
	admins  map[[2]int64]bool
	added   []Member
	removed []int64
	deleted []int64
	renamed map[int64]string
}

func newMockRepo() *mockRepo {
	return &mockRepo{admins: make(map[[2]int64]bool), renamed: make(map[int64]string)}
}

func (m *mockRepo) ListAccessible(ctx context.Context, c *access.Closure) ([]Group, error) {
	return nil, nil
}

func (m *mockRepo) GetByID(ctx context.Context, id int64) (*Group, error) {
	return &Group{ID: id}, nil
}

func (m *mockRepo) Create(ctx context.Context, name string, creatorID int64) (*Group, error) {
	return &Group{ID: 100, Name: name}, nil
}

func (m *mockRepo) Rename(ctx context.Context, id int64, name string) error {
	m.renamed[id] = name
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockRepo) Members(ctx context.Context, groupID int64) ([]Member, error) {
	return nil, nil
}

func (m *mockRepo) IsGroupAdmin(ctx context.Context, groupID, userID int64) (bool, error) {
	return m.admins[[2]int64{groupID, userID}], nil
}

func (m *mockRepo) AddMember(ctx context.Context, groupID, userID int64, admin bool) error {
	m.added = append(m.added, Member{UserID: userID, Admin: admin})
	return nil
}

func (m *mockRepo) RemoveMember(ctx context.Context, groupID, userID int64) error {
	m.removed = append(m.removed, userID)
	return nil
}

func closureFor(t *testing.T, userID int64, acls []string, groupIDs ...int64) *access.Closure {
	t.Helper()
	store := &staticStore{acls: acls, groups: groupIDs}
	c, err := access.NewResolver(store).Closure(context.Background(), access.UserRef{UserID: userID})
	require.NoError(t, err)
	return c
}

type staticStore struct {
	acls   []string
	groups []int64
}

func (s *staticStore) UserACLs(ctx context.Context, userID int64) ([]string, error) {
	return s.acls, nil
}

func (s *staticStore) UserGroups(ctx context.Context, userID int64) ([]int64, error) {
	return s.groups, nil
}

func (s *staticStore) TokenScope(ctx context.Context, tokenID string) (access.TokenScope, error) {
	return access.TokenScope{}, access.ErrInvalidPrincipal
}

func (s *staticStore) AllGroupIDs(ctx context.Context) ([]int64, error) {
	return s.groups, nil
}

func TestAddMemberRequiresGroupAdmin(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	member := closureFor(t, 1, nil, 10)
	err := svc.AddMember(context.Background(), member, 10, 2, false)
	require.True(t, errors.Is(err, access.ErrAccessDenied), "plain member may not manage membership")
	assert.Empty(t, repo.added)

	repo.admins[[2]int64{10, 1}] = true
	require.NoError(t, svc.AddMember(context.Background(), member, 10, 2, false))
	assert.Len(t, repo.added, 1)
}

func TestAddMemberAllowsManageGroupsACL(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	moderator := closureFor(t, 5, []string{"Manage groups"})
	require.NoError(t, svc.AddMember(context.Background(), moderator, 10, 2, true))
	assert.Equal(t, []Member{{UserID: 2, Admin: true}}, repo.added)
}

func TestAddMemberAllowsSystemAdmin(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	admin := closureFor(t, 5, []string{access.AdminACL})
	require.NoError(t, svc.AddMember(context.Background(), admin, 10, 2, false))
	assert.Len(t, repo.added, 1)
}

func TestRemoveMemberRequiresAuthority(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	member := closureFor(t, 3, nil, 10)
	err := svc.RemoveMember(context.Background(), member, 10, 4)
	require.True(t, errors.Is(err, access.ErrAccessDenied))
	assert.Empty(t, repo.removed)
}

func TestDeleteRequiresAuthority(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	member := closureFor(t, 3, nil, 10)
	err := svc.Delete(context.Background(), member, 10)
	require.True(t, errors.Is(err, access.ErrAccessDenied))

	repo.admins[[2]int64{10, 3}] = true
	require.NoError(t, svc.Delete(context.Background(), member, 10))
	assert.Equal(t, []int64{10}, repo.deleted)
}
