// Package filestore keeps uploaded documents on the local disk and defines the
// Storage contract shared with the S3 backend in internal/s3storage.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/model"
)

// Object describes a stored file.
type Object struct {
	Key            string
	SizeBytes      int64
	ChecksumSHA256 string
}

// Storage is implemented by every document storage backend.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) (Object, error)
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ObjectKey builds the storage key of a job's document:
// <job_id>/<DOCUMENT_TYPE>/<filename>.
func ObjectKey(jobID string, docType model.DocumentType, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		name = "document"
	}
	return path.Join(jobID, string(docType), name)
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Local stores objects as files under a base directory.
type Local struct {
	base string
}

// NewLocal creates the base directory if needed.
func NewLocal(base string) (*Local, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, storageError("create storage directory", err)
	}
	return &Local{base: base}, nil
}

// Save writes r to key, hashing while copying.
func (l *Local) Save(_ context.Context, key string, r io.Reader, _ string) (Object, error) {
	target, err := l.resolve(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Object{}, storageError("create object directory", err)
	}
	f, err := os.Create(target)
	if err != nil {
		return Object{}, storageError("create object", err)
	}
	defer f.Close()

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, hash), r)
	if err != nil {
		_ = os.Remove(target)
		return Object{}, storageError("write object", err)
	}
	return Object{Key: key, SizeBytes: n, ChecksumSHA256: hex.EncodeToString(hash.Sum(nil))}, nil
}

// Load reads the whole object.
func (l *Local) Load(_ context.Context, key string) ([]byte, error) {
	target, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, storageError(fmt.Sprintf("read object %s", key), err)
	}
	return data, nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (l *Local) Delete(_ context.Context, key string) error {
	target, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageError("delete object", err)
	}
	return nil
}

// Exists reports whether key is stored.
func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	target, err := l.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(target)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, storageError("stat object", err)
}

func (l *Local) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", apperr.Validation(apperr.CodeValidation, "object_key", fmt.Sprintf("invalid object key %q", key))
	}
	return filepath.Join(l.base, filepath.FromSlash(clean)), nil
}

func storageError(message string, err error) error {
	return apperr.ExternalService(apperr.CodeStorageService, "local_storage", message, err)
}
