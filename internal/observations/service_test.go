package observations

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
	createdPhot *Photometry
	coords      map[string][2]float64
	ensured     []Thumbnail
}

func (m *mockRepo) CreatePhotometry(ctx context.Context, p Photometry, ra, dec float64) (*Photometry, error) {
	p.ID = 1
	m.createdPhot = &p
	return &p, nil
}

func (m *mockRepo) ObjCoordinates(ctx context.Context, objID string) (float64, float64, error) {
	c, ok := m.coords[objID]
	if !ok {
		return 0, 0, errors.New("no such obj")
	}
	return c[0], c[1], nil
}

func (m *mockRepo) EnsureThumbnail(ctx context.Context, objID, thumbType, publicURL string) error {
	m.ensured = append(m.ensured, Thumbnail{ObjID: objID, Type: thumbType, PublicURL: publicURL})
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

func TestUploadPhotometryShareScope(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)
	uploader := closureFor(t, 30, nil, 1, 2)

	_, err := svc.UploadPhotometry(context.Background(), uploader,
		Photometry{ObjID: "ZTF21abc", MJD: 59000, Band: "g", GroupIDs: []int64{1, 3}}, 10, 20)
	require.True(t, errors.Is(err, access.ErrAccessDenied), "cannot share with a group outside the closure")
	assert.Nil(t, repo.createdPhot)

	point, err := svc.UploadPhotometry(context.Background(), uploader,
		Photometry{ObjID: "ZTF21abc", MJD: 59000, Band: "g", GroupIDs: []int64{1, 2}}, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(30), point.OwnerID, "uploader becomes the owner")
}

func TestUploadPhotometryRequiresGroups(t *testing.T) {
	svc := NewService(&mockRepo{})
	uploader := closureFor(t, 30, nil, 1)

	_, err := svc.UploadPhotometry(context.Background(), uploader,
		Photometry{ObjID: "ZTF21abc", MJD: 59000, Band: "g"}, 10, 20)
	assert.True(t, errors.Is(err, access.ErrAccessDenied))
}

func TestBackfillThumbnailsCreatesAllSurveyTypes(t *testing.T) {
	repo := &mockRepo{coords: map[string][2]float64{"ZTF21abc": {353.36, 33.58}}}
	svc := NewService(repo)

	require.NoError(t, svc.BackfillThumbnails(context.Background(), "ZTF21abc"))
	require.Len(t, repo.ensured, 3)

	types := map[string]string{}
	for _, th := range repo.ensured {
		types[th.Type] = th.PublicURL
	}
	assert.Contains(t, types[ThumbnailSDSS], "skyservice.pha.jhu.edu")
	assert.Contains(t, types[ThumbnailPS1], "ps1images.stsci.edu")
	assert.Contains(t, types[ThumbnailLegacySurvey], "legacysurvey.org")
}

func TestCutoutURLs(t *testing.T) {
	sdss := SDSSCutoutURL(353.36, 33.58)
	assert.Equal(t,
		"http://skyservice.pha.jhu.edu/DR9/ImgCutout/getjpeg.aspx?ra=353.36&dec=33.58&scale=0.3&width=200&height=200&opt=G&query=&Grid=on",
		sdss)

	ls := LegacySurveyCutoutURL(353.36, -5.2)
	assert.Equal(t,
		"http://legacysurvey.org/viewer/cutout.jpg?ra=353.36&dec=-5.2&zoom=15&layer=dr8",
		ls)

	_, ok := CutoutURL("unknown", 0, 0)
	assert.False(t, ok)
}
