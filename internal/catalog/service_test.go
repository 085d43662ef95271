package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-portal/aurora/internal/access"
)

type mockRepo struct {
	RepositoryPort
	savedSource   *Source
	createdFilter *Filter
	streamGrants  map[[2]int64]bool
	createdStream *Stream
	granted       [][2]int64
}

func (m *mockRepo) SaveSource(ctx context.Context, obj Obj, groupID, savedBy int64) (*Source, error) {
	m.savedSource = &Source{ID: 1, ObjID: obj.ID, GroupID: groupID, SavedBy: savedBy}
	return m.savedSource, nil
}

func (m *mockRepo) GroupHasStream(ctx context.Context, groupID, streamID int64) (bool, error) {
	return m.streamGrants[[2]int64{groupID, streamID}], nil
}

func (m *mockRepo) CreateFilter(ctx context.Context, f Filter) (*Filter, error) {
	f.ID = 5
	m.createdFilter = &f
	return &f, nil
}

func (m *mockRepo) CreateStream(ctx context.Context, name string) (*Stream, error) {
	m.createdStream = &Stream{ID: 3, Name: name, GroupIDs: []int64{}}
	return m.createdStream, nil
}

func (m *mockRepo) GrantStream(ctx context.Context, streamID, groupID int64) error {
	m.granted = append(m.granted, [2]int64{streamID, groupID})
	return nil
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

func closureFor(t *testing.T, userID int64, acls []string, groups ...int64) *access.Closure {
	t.Helper()
	c, err := access.NewResolver(&staticStore{acls: acls, groups: groups}).
		Closure(context.Background(), access.UserRef{UserID: userID})
	require.NoError(t, err)
	return c
}

func TestSaveSourceRequiresGroupMembership(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	outsider := closureFor(t, 1, nil, 5)
	_, err := svc.SaveSource(context.Background(), outsider, Obj{ID: "ZTF21abc"}, 7)
	require.True(t, errors.Is(err, access.ErrAccessDenied))
	assert.Nil(t, repo.savedSource)

	member := closureFor(t, 1, nil, 7)
	source, err := svc.SaveSource(context.Background(), member, Obj{ID: "ZTF21abc"}, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), source.SavedBy)
	assert.Equal(t, int64(7), source.GroupID)
}

func TestSaveSourceAdminBypassesMembership(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	admin := closureFor(t, 2, []string{access.AdminACL})
	_, err := svc.SaveSource(context.Background(), admin, Obj{ID: "ZTF21abc"}, 7)
	require.NoError(t, err)
}

func TestCreateFilterRequiresStreamGrant(t *testing.T) {
	repo := &mockRepo{streamGrants: map[[2]int64]bool{}}
	svc := NewService(repo)
	member := closureFor(t, 1, nil, 7)

	_, err := svc.CreateFilter(context.Background(), member, Filter{Name: "bright", StreamID: 2, GroupID: 7})
	require.True(t, errors.Is(err, access.ErrAccessDenied), "group without stream grant cannot filter it")

	repo.streamGrants[[2]int64{7, 2}] = true
	filter, err := svc.CreateFilter(context.Background(), member, Filter{Name: "bright", StreamID: 2, GroupID: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(5), filter.ID)
}

func TestCreateFilterRequiresMembership(t *testing.T) {
	repo := &mockRepo{streamGrants: map[[2]int64]bool{{7, 2}: true}}
	svc := NewService(repo)

	outsider := closureFor(t, 1, nil, 5)
	_, err := svc.CreateFilter(context.Background(), outsider, Filter{Name: "bright", StreamID: 2, GroupID: 7})
	require.True(t, errors.Is(err, access.ErrAccessDenied))
}

func TestStreamProvisioningIsOperatorOnly(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	member := closureFor(t, 1, nil, 7)
	_, err := svc.CreateStream(context.Background(), member, "ztf")
	require.True(t, errors.Is(err, access.ErrAccessDenied))
	require.True(t, errors.Is(svc.GrantStream(context.Background(), member, 1, 7), access.ErrAccessDenied))

	admin := closureFor(t, 2, []string{access.AdminACL})
	stream, err := svc.CreateStream(context.Background(), admin, "ztf")
	require.NoError(t, err)
	require.NoError(t, svc.GrantStream(context.Background(), admin, stream.ID, 7))
	assert.Equal(t, [][2]int64{{3, 7}}, repo.granted)
}
