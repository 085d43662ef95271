package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockRepo struct {
	created        *User
	createdHash    string
	renamedID      int64
	renamedTo      string
	deletedID      int64
	singleGroupIDs map[int64]int64
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]User, error) { return nil, nil }

func (m *mockRepo) Count(ctx context.Context) (int, error) { return 0, nil }

func (m *mockRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	return &User{ID: id}, nil
}

func (m *mockRepo) Create(ctx context.Context, u User, passwordHash string) (*User, error) {
	u.ID = 1
	m.created = &u
	m.createdHash = passwordHash
	return &u, nil
}

func (m *mockRepo) Rename(ctx context.Context, id int64, username string) error {
	m.renamedID = id
	m.renamedTo = username
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id int64) error {
	m.deletedID = id
	return nil
}

func (m *mockRepo) SingleUserGroupID(ctx context.Context, userID int64) (int64, error) {
	return m.singleGroupIDs[userID], nil
}

func TestNormalizeUsername(t *testing.T) {
	got, err := NormalizeUsername("AdaLovelace")
	require.NoError(t, err)
	assert.Equal(t, "adalovelace", got)

	_, err = NormalizeUsername("ada lovelace")
	assert.Error(t, err, "spaces are not allowed in usernames")
}

func TestCreateNormalizesAndHashes(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	user, err := svc.Create(context.Background(), NewUser{
		Username: "VeraRubin",
		Password: "dark matter!",
	})
	require.NoError(t, err)
	assert.Equal(t, "verarubin", user.Username)

	require.NotNil(t, repo.created)
	assert.Equal(t, "verarubin", repo.created.Username)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.createdHash), []byte("dark matter!")))
}

func TestCreateRejectsInvalidUsername(t *testing.T) {
	svc := NewService(&mockRepo{})

	_, err := svc.Create(context.Background(), NewUser{Username: "bad name", Password: "longenough"})
	assert.Error(t, err)
}

func TestRenameNormalizes(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	require.NoError(t, svc.Rename(context.Background(), 3, "NewName"))
	assert.Equal(t, int64(3), repo.renamedID)
	assert.Equal(t, "newname", repo.renamedTo)
}

func TestDeleteDelegates(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	require.NoError(t, svc.Delete(context.Background(), 9))
	assert.Equal(t, int64(9), repo.deletedID)
}
