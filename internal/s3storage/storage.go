// Package s3storage stores uploaded documents in a MinIO/S3 bucket.
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/config"
	"github.com/dharsanguruparan/docvalidator/internal/filestore"
)

const serviceName = "s3"

// Storage wraps MinIO/S3 interactions for uploaded documents.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

var _ filestore.Storage = (*Storage)(nil)

// New creates a MinIO client from the S3 section of the config.
func New(cfg config.S3Config) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket makes sure the document bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return storageError(fmt.Sprintf("check bucket %s", s.bucket), err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return storageError(fmt.Sprintf("make bucket %s", s.bucket), err)
	}
	return nil
}

// Save uploads r under key. The body is buffered so its size and checksum are
// known before the upload starts.
func (s *Storage) Save(ctx context.Context, key string, r io.Reader, contentType string) (filestore.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return filestore.Object{}, storageError("read upload", err)
	}
	checksum := filestore.Checksum(data)
	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"sha256": checksum},
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return filestore.Object{}, storageError("upload object", err)
	}
	return filestore.Object{Key: key, SizeBytes: int64(len(data)), ChecksumSHA256: checksum}, nil
}

// Load fetches the object bytes.
func (s *Storage) Load(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, storageError("get object", err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, storageError(fmt.Sprintf("read object %s", key), err)
	}
	return buf, nil
}

// Delete removes the object.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return storageError("remove object", err)
	}
	return nil
}

// Exists reports whether key is stored.
func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, storageError("stat object", err)
}

// PresignURL returns a time-limited GET URL served by the bucket itself.
func (s *Storage) PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", storageError("presign object", err)
	}
	return u.String(), nil
}

func storageError(message string, err error) error {
	return apperr.ExternalService(apperr.CodeStorageService, serviceName, message, err)
}
