/*
Package storage implements the blob store used for chat images and avatars.

Uploads are validated against an image allow-list before any bytes are written, stored
under a unique key, and exposed through a public URL derived from that key.
*/
package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"livechat/internal/pkg/errs"
)

const (
	// MaxImageSizeMB is the maximum allowed image size in megabytes.
	MaxImageSizeMB = 5

	// MaxImageSize is the maximum allowed image size in bytes.
	MaxImageSize = MaxImageSizeMB * 1024 * 1024

	// ImagePrefix is the key prefix for every stored image.
	ImagePrefix = "images"
)

// AllowedMIMETypes defines the set of permitted MIME types for uploads.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
}

// ExtToMIME maps file extensions to their corresponding MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// Upload is an inbound file: the client-supplied name, the declared content type and the body.
// Size is -1 when unknown.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// BlobStore is the append-only image store.
type BlobStore interface {
	// Put validates and stores up, returning its relative key.
	Put(ctx context.Context, up Upload) (string, error)

	// URL returns the public URL for key.
	URL(key string) string

	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
}

// ServiceConfig holds the configuration required to build a BlobStore.
type ServiceConfig struct {
	PublicAssetURL string
	UploadDir      string

	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// NewBlobStore returns the S3 store when a bucket is configured and the local disk store otherwise.
func NewBlobStore(cfg ServiceConfig) (BlobStore, error) {
	if cfg.S3BucketName != "" {
		return newS3Store(cfg)
	}
	return NewDiskStore(cfg.UploadDir, cfg.PublicAssetURL)
}

// ValidateImage checks the declared MIME type against the allow-list, the file extension
// against the MIME type, and the size against MaxImageSize.
func ValidateImage(up Upload) *errs.CustomError {
	mimeType := strings.ToLower(strings.TrimSpace(up.ContentType))

	if _, ok := AllowedMIMETypes[mimeType]; !ok {
		return errs.NewError(errs.ErrUnsupportedImageType).WithField("image", "unsupported content type "+up.ContentType)
	}

	ext := strings.ToLower(filepath.Ext(up.Name))
	expectedMIME, ok := ExtToMIME[ext]
	if !ok || expectedMIME != mimeType {
		return errs.NewError(errs.ErrUnsupportedImageType).WithField("image", "file extension does not match content type")
	}

	if up.Size > MaxImageSize {
		return errs.NewError(errs.ErrFileSizeTooLarge)
	}

	return nil
}

// joinURL joins a base URL and a relative key with exactly one slash.
func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
