package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/randx"
)

// DiskStore implements BlobStore on a local directory served as static assets.
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore returns a DiskStore rooted at root, creating the image directory if needed.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(filepath.Join(root, ImagePrefix), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &DiskStore{root: root, baseURL: baseURL}, nil
}

// Root returns the directory holding stored objects.
func (d *DiskStore) Root() string {
	return d.root
}

// Put writes the upload to a new file. Files are created exclusively, so an existing key is never overwritten.
func (d *DiskStore) Put(ctx context.Context, up Upload) (string, error) {
	if err := ValidateImage(up); err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := randx.UploadKey(ImagePrefix, up.Name)
	path := filepath.Join(d.root, filepath.FromSlash(key))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", key, err)
	}

	n, err := io.Copy(f, io.LimitReader(up.Body, MaxImageSize+1))
	closeErr := f.Close()

	switch {
	case err != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	case closeErr != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to close %s: %w", key, closeErr)
	case n > MaxImageSize:
		_ = os.Remove(path)
		return "", errs.NewError(errs.ErrFileSizeTooLarge)
	}

	return key, nil
}

// URL returns the public URL for key.
func (d *DiskStore) URL(key string) string {
	return joinURL(d.baseURL, key)
}

// Delete removes the file stored under key. Missing files are not an error.
func (d *DiskStore) Delete(ctx context.Context, key string) error {
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("invalid key %q", key)
	}

	err := os.Remove(filepath.Join(d.root, clean))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	return nil
}
