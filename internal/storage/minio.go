package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sakif/choirhub/internal/apperror"
)

// MinioConfig holds the connection settings for an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Minio stores objects in a MinIO (or any S3-compatible) bucket.
type Minio struct {
	client *minio.Client
	bucket string
}

var _ Storage = (*Minio)(nil)

// NewMinio connects to the server and makes sure the bucket exists.
func NewMinio(ctx context.Context, cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: creating minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("storage: creating bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &Minio{client: client, bucket: cfg.Bucket}, nil
}

// Save uploads r as key. A size of -1 streams with multipart upload.
func (m *Minio) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error) {
	clean, ok := CleanKey(key)
	if !ok {
		return 0, apperror.ValidationFailed("path", "invalid storage path")
	}
	info, err := m.client.PutObject(ctx, m.bucket, clean, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, fmt.Errorf("storage: uploading %s: %w", clean, err)
	}
	return info.Size, nil
}

// Open stats key first so a missing object surfaces as NotFound before any
// bytes are streamed.
func (m *Minio) Open(ctx context.Context, key string) (*Object, error) {
	clean, ok := CleanKey(key)
	if !ok {
		return nil, apperror.FileNotFound()
	}

	stat, err := m.client.StatObject(ctx, m.bucket, clean, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, apperror.FileNotFound()
		}
		return nil, fmt.Errorf("storage: stat %s: %w", clean, err)
	}

	obj, err := m.client.GetObject(ctx, m.bucket, clean, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: getting %s: %w", clean, err)
	}

	return &Object{ReadSeekCloser: obj, Size: stat.Size, ModTime: stat.LastModified}, nil
}

// Delete removes key. S3 treats removing a missing key as success.
func (m *Minio) Delete(ctx context.Context, key string) error {
	clean, ok := CleanKey(key)
	if !ok {
		return nil
	}
	if err := m.client.RemoveObject(ctx, m.bucket, clean, minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("storage: removing %s: %w", clean, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}
