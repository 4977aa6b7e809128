package user_test

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livechat/internal/app/db"
	"livechat/internal/app/storage"
	"livechat/internal/app/user"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/logx"
)

func TestMain(m *testing.M) {
	logx.Silence()
	os.Exit(m.Run())
}

type fakeBlobs struct {
	mu      sync.Mutex
	puts    int
	deletes []string
}

func (b *fakeBlobs) Put(_ context.Context, up storage.Upload) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := io.ReadAll(up.Body); err != nil {
		return "", err
	}
	b.puts++
	return "images/" + up.Name, nil
}

func (b *fakeBlobs) URL(key string) string {
	return "http://assets/" + key
}

func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.deletes = append(b.deletes, key)
	return nil
}

func (b *fakeBlobs) deleted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.deletes...)
}

func setup(t *testing.T) (*user.Service, *fakeBlobs, []user.User) {
	t.Helper()

	store := db.NewMemoryStore()
	users, err := db.SeedUsers(context.Background(), store)
	require.NoError(t, err)

	blobs := &fakeBlobs{}
	return user.NewService(store, blobs), blobs, users
}

func upload(name, contentType string) *storage.Upload {
	return &storage.Upload{Name: name, ContentType: contentType, Size: 3, Body: strings.NewReader("img")}
}

func TestGetUser(t *testing.T) {
	svc, _, users := setup(t)

	u, err := svc.GetUser(context.Background(), users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, users[0], *u)

	_, err = svc.GetUser(context.Background(), 404)
	assert.True(t, errs.HasCode(err, errs.ErrUserNotFound))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestSearchUsers_ExcludesCaller(t *testing.T) {
	svc, _, users := setup(t)

	found, err := svc.SearchUsers(context.Background(), "a", users[0].ID)
	require.NoError(t, err)
	for _, u := range found {
		assert.NotEqual(t, users[0].ID, u.ID)
	}
	assert.NotEmpty(t, found)

	found, err = svc.SearchUsers(context.Background(), "   ", users[0].ID)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestUpdateProfile_NameOnly(t *testing.T) {
	svc, blobs, users := setup(t)

	updated, err := svc.UpdateProfile(context.Background(), users[0].ID, "  Countess Ada ", nil)
	require.NoError(t, err)
	assert.Equal(t, "Countess Ada", updated.Fullname)
	assert.Empty(t, updated.Avatar)
	assert.Equal(t, 0, blobs.puts)
}

func TestUpdateProfile_ReplacesAvatar(t *testing.T) {
	svc, blobs, users := setup(t)
	ctx := context.Background()

	first, err := svc.UpdateProfile(ctx, users[0].ID, "Ada", upload("one.png", "image/png"))
	require.NoError(t, err)
	assert.Equal(t, "http://assets/images/one.png", first.Avatar)

	second, err := svc.UpdateProfile(ctx, users[0].ID, "Ada", upload("two.gif", "image/gif"))
	require.NoError(t, err)
	assert.Equal(t, "http://assets/images/two.gif", second.Avatar)

	assert.Eventually(t, func() bool {
		deleted := blobs.deleted()
		return len(deleted) == 1 && deleted[0] == "images/one.png"
	}, time.Second, 5*time.Millisecond)
}

func TestUpdateProfile_PDFIsConflictBeforeWrite(t *testing.T) {
	svc, blobs, users := setup(t)

	_, err := svc.UpdateProfile(context.Background(), users[0].ID, "Ada", upload("cv.pdf", "application/pdf"))
	require.Error(t, err)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	assert.True(t, errs.HasCode(err, errs.ErrUnsupportedImageType))
	assert.Equal(t, 0, blobs.puts)

	unchanged, err := svc.GetUser(context.Background(), users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, users[0].Fullname, unchanged.Fullname)
}

func TestUpdateProfile_InvalidName(t *testing.T) {
	svc, _, users := setup(t)

	for _, name := range []string{"", " ", strings.Repeat("é", user.MaxFullnameLength+1)} {
		_, err := svc.UpdateProfile(context.Background(), users[0].ID, name, nil)
		assert.True(t, errs.HasCode(err, errs.ErrInvalidFullname))
	}
}

func TestUpdateProfile_UnknownUser(t *testing.T) {
	svc, blobs, _ := setup(t)

	_, err := svc.UpdateProfile(context.Background(), 404, "Nobody", upload("a.png", "image/png"))
	assert.True(t, errs.HasCode(err, errs.ErrUserNotFound))
	assert.Equal(t, 0, blobs.puts)
}

type brokenStore struct {
	user.Store
}

func (brokenStore) FindUser(context.Context, int64) (*user.User, error) {
	return nil, errors.New("connection reset")
}

func TestGetUser_StoreFailureIsUpstream(t *testing.T) {
	svc := user.NewService(brokenStore{}, &fakeBlobs{})

	_, err := svc.GetUser(context.Background(), 1)
	assert.True(t, errs.HasCode(err, errs.ErrStorageFailed))
	assert.Equal(t, errs.KindUpstream, errs.KindOf(err))
}
