package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileBucket stores objects as files below a root directory.
type FileBucket struct {
	name      string
	root      string
	chunkSize int
}

// NewFileBucket creates a bucket rooted at dir, creating it if needed.
func NewFileBucket(name, dir string) (*FileBucket, error) {
	if name == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating bucket directory: %w", err)
	}
	return &FileBucket{name: name, root: dir, chunkSize: DefaultChunkSize}, nil
}

// Name returns the bucket name.
func (b *FileBucket) Name() string {
	return b.name
}

// Put writes r to a temporary file in chunks and renames it into place
// once every byte is on disk.
func (b *FileBucket) Put(ctx context.Context, objectPath string, r io.Reader, size int64, progress Progress) (err error) {
	dst, err := b.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.part")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	buf := make([]byte, b.chunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := tmp.Write(buf[:n]); err != nil {
				return fmt.Errorf("writing chunk: %w", err)
			}
			written += int64(n)
			if progress != nil {
				progress(written, size)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("reading upload: %w", readErr)
		}
	}

	if size >= 0 && written != size {
		return fmt.Errorf("short upload: wrote %d of %d bytes", written, size)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("renaming object: %w", err)
	}
	return nil
}

// Delete removes an object.
func (b *FileBucket) Delete(_ context.Context, objectPath string) error {
	p, err := b.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, objectPath)
		}
		return fmt.Errorf("removing object: %w", err)
	}
	return nil
}

// Open returns a reader for an object.
func (b *FileBucket) Open(_ context.Context, objectPath string) (io.ReadCloser, error) {
	p, err := b.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, objectPath)
		}
		return nil, fmt.Errorf("opening object: %w", err)
	}
	return f, nil
}

// resolve maps an object path to a file path inside the root.
func (b *FileBucket) resolve(objectPath string) (string, error) {
	local := filepath.FromSlash(objectPath)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("invalid object path: %q", objectPath)
	}
	return filepath.Join(b.root, local), nil
}
