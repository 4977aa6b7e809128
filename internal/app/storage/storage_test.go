package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livechat/internal/pkg/errs"
)

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		contentType string
		size        int64
		code        int
	}{
		{"jpeg", "cat.jpg", "image/jpeg", 10, 0},
		{"jpeg long ext", "cat.JPEG", "IMAGE/JPEG", 10, 0},
		{"png", "cat.png", "image/png", 10, 0},
		{"gif", "cat.gif", "image/gif", 10, 0},
		{"pdf", "doc.pdf", "application/pdf", 10, errs.ErrUnsupportedImageType},
		{"webp not allowed", "cat.webp", "image/webp", 10, errs.ErrUnsupportedImageType},
		{"mismatched ext", "cat.png", "image/gif", 10, errs.ErrUnsupportedImageType},
		{"no ext", "cat", "image/png", 10, errs.ErrUnsupportedImageType},
		{"too large", "cat.png", "image/png", MaxImageSize + 1, errs.ErrFileSizeTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImage(Upload{Name: tt.file, ContentType: tt.contentType, Size: tt.size})
			if tt.code == 0 {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
		})
	}
}

func TestValidateImage_UnsupportedIsConflict(t *testing.T) {
	err := ValidateImage(Upload{Name: "doc.pdf", ContentType: "application/pdf"})
	require.NotNil(t, err)
	assert.Equal(t, errs.KindConflict, err.Kind)
	assert.Contains(t, err.Fields, "image")
}

func TestDiskStore_PutURLDelete(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root, "http://localhost:8080/assets/")
	require.NoError(t, err)

	key, err := store.Put(context.Background(), Upload{
		Name:        "photo.png",
		ContentType: "image/png",
		Size:        5,
		Body:        strings.NewReader("bytes"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, ImagePrefix+"/"))
	assert.True(t, strings.HasSuffix(key, ".png"))

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(data))

	assert.Equal(t, "http://localhost:8080/assets/"+key, store.URL(key))

	require.NoError(t, store.Delete(context.Background(), key))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(key)))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(context.Background(), key))
	assert.Error(t, store.Delete(context.Background(), "../outside.png"))
}

func TestDiskStore_RejectsBeforeWriting(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root, "http://assets")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), Upload{
		Name:        "doc.pdf",
		ContentType: "application/pdf",
		Body:        strings.NewReader("%PDF"),
	})
	assert.True(t, errs.HasCode(err, errs.ErrUnsupportedImageType))

	entries, err := os.ReadDir(filepath.Join(root, ImagePrefix))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskStore_OversizedBodyIsRemoved(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root, "http://assets")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), Upload{
		Name:        "big.gif",
		ContentType: "image/gif",
		Size:        -1,
		Body:        strings.NewReader(strings.Repeat("x", MaxImageSize+10)),
	})
	assert.True(t, errs.HasCode(err, errs.ErrFileSizeTooLarge))

	entries, err := os.ReadDir(filepath.Join(root, ImagePrefix))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewBlobStore_DefaultsToDisk(t *testing.T) {
	store, err := NewBlobStore(ServiceConfig{UploadDir: t.TempDir(), PublicAssetURL: "http://assets"})
	require.NoError(t, err)
	_, ok := store.(*DiskStore)
	assert.True(t, ok)
}

func TestS3Store_URL(t *testing.T) {
	withCDN := &s3Store{cfg: ServiceConfig{PublicAssetURL: "https://cdn.example", S3Endpoint: "http://minio:9000", S3BucketName: "chat"}}
	assert.Equal(t, "https://cdn.example/images/a.png", withCDN.URL("images/a.png"))

	direct := &s3Store{cfg: ServiceConfig{S3Endpoint: "http://minio:9000/", S3BucketName: "chat"}}
	assert.Equal(t, "http://minio:9000/chat/images/a.png", direct.URL("images/a.png"))
}
