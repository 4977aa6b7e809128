package storage

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"livechat/internal/pkg/logx"
	"livechat/internal/pkg/randx"
)

// s3Store implements BlobStore on S3-compatible storage.
type s3Store struct {
	cfg      ServiceConfig
	s3Client *s3.Client
	uploader *manager.Uploader
}

// newS3Store initializes the S3 client with a custom endpoint for S3-compatible providers.
func newS3Store(cfg ServiceConfig) (*s3Store, error) {
	sdkCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		logx.Error(err, "Failed to load AWS SDK config")
		return nil, errors.New("failed to initialize S3 client configuration")
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	return &s3Store{
		cfg:      cfg,
		s3Client: client,
		uploader: manager.NewUploader(client),
	}, nil
}

// Put streams the upload to the bucket under a fresh key.
func (c *s3Store) Put(ctx context.Context, up Upload) (string, error) {
	if err := ValidateImage(up); err != nil {
		return "", err
	}

	key := randx.UploadKey(ImagePrefix, up.Name)

	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.S3BucketName),
		Key:         aws.String(key),
		Body:        io.LimitReader(up.Body, MaxImageSize+1),
		ContentType: aws.String(up.ContentType),
	})
	if err != nil {
		logx.Error(err, "S3 upload failed", "key", key)
		return "", errors.New("failed to upload file to S3")
	}

	return key, nil
}

// URL returns the public URL for key.
func (c *s3Store) URL(key string) string {
	if c.cfg.PublicAssetURL != "" {
		return joinURL(c.cfg.PublicAssetURL, key)
	}
	return joinURL(joinURL(c.cfg.S3Endpoint, c.cfg.S3BucketName), key)
}

// Delete removes the object stored under key.
func (c *s3Store) Delete(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.cfg.S3BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		logx.Error(err, "S3 delete failed", "key", key)
		return errors.New("failed to delete file from S3")
	}

	return nil
}
