package imagestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := NewFileBucket("listings", dir)
	if err != nil {
		t.Fatalf("NewFileBucket: %v", err)
	}
	s := NewStore(b, "http://localhost:8080/")
	n := 0
	s.newID = func() string {
		n++
		return "id" + string(rune('0'+n))
	}
	return s, dir
}

func TestUpload(t *testing.T) {
	s, dir := newTestStore(t)

	var events []int64
	url, err := s.Upload(context.Background(), Blob{Filename: "front door.jpg", Data: []byte("jpeg-bytes")}, "user1",
		func(written, total int64) {
			if total != 10 {
				t.Errorf("total = %d, want 10", total)
			}
			events = append(events, written)
		})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	want := "http://localhost:8080/v0/b/listings/o/images%2Fuser1-front%20door.jpg-id1?alt=media&token=id2"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}

	if len(events) == 0 || events[len(events)-1] != 10 {
		t.Errorf("progress events = %v, want last = 10", events)
	}

	data, err := os.ReadFile(filepath.Join(dir, "images", "user1-front door.jpg-id1"))
	if err != nil {
		t.Fatalf("reading stored object: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("stored data = %q", data)
	}
}

func TestUploadValidation(t *testing.T) {
	s, _ := newTestStore(t)

	if _, err := s.Upload(context.Background(), Blob{Filename: "a.jpg", Data: []byte("x")}, "", nil); err == nil {
		t.Error("expected error for empty owner")
	}
	if _, err := s.Upload(context.Background(), Blob{Filename: "a.jpg"}, "user1", nil); err == nil {
		t.Error("expected error for empty image")
	}
}

func TestUploadStripsDirectories(t *testing.T) {
	s, dir := newTestStore(t)

	url, err := s.Upload(context.Background(), Blob{Filename: `..\..\evil/../cover.png`, Data: []byte("png")}, "u", nil)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	key, err := KeyFromURL(url)
	if err != nil {
		t.Fatalf("KeyFromURL: %v", err)
	}
	if key != "u-cover.png-id1" {
		t.Errorf("key = %q, want u-cover.png-id1", key)
	}
	if _, err := os.Stat(filepath.Join(dir, "images", key)); err != nil {
		t.Errorf("object not stored under images/: %v", err)
	}
}

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{
			name: "issued url",
			url:  "http://localhost:8080/v0/b/listings/o/images%2Fuser1-house.jpg-abc?alt=media&token=def",
			want: "user1-house.jpg-abc",
		},
		{
			name: "escaped characters",
			url:  "https://cdn.example.com/v0/b/b/o/images%2Fu-my%20photo.jpg-1?alt=media",
			want: "u-my photo.jpg-1",
		},
		{
			name:    "missing marker",
			url:     "http://localhost:8080/v0/b/listings/o/other%2Fx?alt=media",
			wantErr: true,
		},
		{
			name:    "missing query",
			url:     "http://localhost:8080/v0/b/listings/o/images%2Fx",
			wantErr: true,
		},
		{
			name:    "empty key",
			url:     "http://localhost:8080/v0/b/listings/o/images%2F?alt=media",
			wantErr: true,
		},
		{
			name:    "nested path",
			url:     "http://localhost:8080/v0/b/listings/o/images%2F..%2Fdb?alt=media",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KeyFromURL(tt.url)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Fatalf("err = %v, want ErrInvalidURL", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	url, err := s.Upload(ctx, Blob{Filename: "a.jpg", Data: []byte("data")}, "user1", nil)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := s.Delete(ctx, url); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "images", "user1-a.jpg-id1")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("object still exists: %v", err)
	}

	if err := s.Delete(ctx, url); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "not a url"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("bad url err = %v, want ErrInvalidURL", err)
	}
}

func TestOpen(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Upload(ctx, Blob{Filename: "a.jpg", Data: []byte("data")}, "user1", nil); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	rc, err := s.Open(ctx, "images/user1-a.jpg-id1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if string(data) != "data" {
		t.Errorf("data = %q", data)
	}

	for _, p := range []string{"images/missing", "images/../market.db", "other/a.jpg"} {
		if _, err := s.Open(ctx, p); !errors.Is(err, ErrNotFound) {
			t.Errorf("Open(%q) err = %v, want ErrNotFound", p, err)
		}
	}
}

type failingReader struct {
	n int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.n > 0 {
		return 0, errors.New("connection reset")
	}
	r.n++
	return copy(p, "partial"), nil
}

func TestFileBucketFailedPutLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBucket("listings", dir)
	if err != nil {
		t.Fatalf("NewFileBucket: %v", err)
	}

	err = b.Put(context.Background(), "images/x.jpg", &failingReader{}, 100, nil)
	if err == nil {
		t.Fatal("expected error")
	}

	entries, err := os.ReadDir(filepath.Join(dir, "images"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty images dir, found %d entries", len(entries))
	}
}

func TestFileBucketShortUpload(t *testing.T) {
	b, err := NewFileBucket("listings", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBucket: %v", err)
	}

	err = b.Put(context.Background(), "images/x.jpg", strings.NewReader("abc"), 10, nil)
	if err == nil || !strings.Contains(err.Error(), "short upload") {
		t.Errorf("err = %v, want short upload", err)
	}
}

func TestFileBucketCanceled(t *testing.T) {
	b, err := NewFileBucket("listings", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBucket: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = b.Put(ctx, "images/x.jpg", bytes.NewReader([]byte("abc")), 3, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFileBucketRejectsEscapingPaths(t *testing.T) {
	b, err := NewFileBucket("listings", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBucket: %v", err)
	}

	for _, p := range []string{"../x", "/etc/passwd", ""} {
		if err := b.Put(context.Background(), p, strings.NewReader("x"), 1, nil); err == nil {
			t.Errorf("Put(%q): expected error", p)
		}
	}
}
