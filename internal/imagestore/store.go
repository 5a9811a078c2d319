// Package imagestore uploads listing images to an object bucket and issues
// public download URLs for them.
package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	// KeyPrefix is the folder every listing image lives under.
	KeyPrefix = "images/"

	urlMarker   = "images%2F"
	queryMarker = "?alt"

	// DefaultChunkSize is the write size used by bucket backends.
	DefaultChunkSize = 256 * 1024
)

var (
	// ErrInvalidURL is returned when a download URL does not embed a storage key.
	ErrInvalidURL = errors.New("image url has no storage key")

	// ErrNotFound is returned when an object does not exist in the bucket.
	ErrNotFound = errors.New("image not found")
)

// Blob is an image selected for upload.
type Blob struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Progress receives byte counts while an upload is running.
type Progress func(written, total int64)

// Bucket is an object store addressed by slash separated paths.
// Put must either store the whole object or leave nothing behind.
type Bucket interface {
	Name() string
	Put(ctx context.Context, path string, r io.Reader, size int64, progress Progress) error
	Delete(ctx context.Context, path string) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Store uploads and deletes listing images in a bucket.
type Store struct {
	bucket  Bucket
	baseURL string
	newID   func() string
}

// NewStore creates a store that issues URLs rooted at baseURL.
func NewStore(bucket Bucket, baseURL string) *Store {
	return &Store{
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		newID:   uuid.NewString,
	}
}

// BucketName returns the name of the underlying bucket.
func (s *Store) BucketName() string {
	return s.bucket.Name()
}

// Upload stores blob under a key derived from ownerID, the filename and a
// random id, and returns its public download URL.
func (s *Store) Upload(ctx context.Context, blob Blob, ownerID string, progress Progress) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("owner id is required")
	}
	if len(blob.Data) == 0 {
		return "", fmt.Errorf("image %q is empty", blob.Filename)
	}

	key := fmt.Sprintf("%s-%s-%s", ownerID, cleanFilename(blob.Filename), s.newID())
	objectPath := KeyPrefix + key

	if err := s.bucket.Put(ctx, objectPath, bytes.NewReader(blob.Data), int64(len(blob.Data)), progress); err != nil {
		return "", fmt.Errorf("uploading %s: %w", blob.Filename, err)
	}

	return s.downloadURL(objectPath), nil
}

// Delete removes the object referenced by a download URL issued by Upload.
func (s *Store) Delete(ctx context.Context, rawURL string) error {
	key, err := KeyFromURL(rawURL)
	if err != nil {
		return err
	}

	if err := s.bucket.Delete(ctx, KeyPrefix+key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Open reads back an object by its unescaped path, e.g. "images/<key>".
func (s *Store) Open(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	if !strings.HasPrefix(objectPath, KeyPrefix) || path.Clean(objectPath) != objectPath {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, objectPath)
	}
	return s.bucket.Open(ctx, objectPath)
}

func (s *Store) downloadURL(objectPath string) string {
	return fmt.Sprintf("%s/v0/b/%s/o/%s?alt=media&token=%s",
		s.baseURL, url.PathEscape(s.bucket.Name()), url.PathEscape(objectPath), s.newID())
}

// KeyFromURL extracts the storage key between the images folder marker and
// the query string of a download URL.
func KeyFromURL(rawURL string) (string, error) {
	_, rest, ok := strings.Cut(rawURL, urlMarker)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	escaped, _, ok := strings.Cut(rest, queryMarker)
	if !ok || escaped == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	key, err := url.PathUnescape(escaped)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if strings.Contains(key, "/") {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	return key, nil
}

// cleanFilename keeps the base name of an uploaded file.
func cleanFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return "image"
	}
	return name
}
