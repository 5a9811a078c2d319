package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSBucket stores objects in a MongoDB GridFS bucket, using the object
// path as the GridFS filename.
type GridFSBucket struct {
	name      string
	db        *mongo.Database
	chunkSize int
}

// ConnectGridFS connects to MongoDB at uri and returns a bucket in database.
// The returned close function disconnects the client.
func ConnectGridFS(ctx context.Context, uri, database, name string) (*GridFSBucket, func(context.Context) error, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("pinging mongo: %w", err)
	}

	b, err := NewGridFSBucket(client.Database(database), name)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return b, client.Disconnect, nil
}

// NewGridFSBucket creates a GridFS bucket backend on db.
func NewGridFSBucket(db *mongo.Database, name string) (*GridFSBucket, error) {
	if name == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GridFSBucket{name: name, db: db, chunkSize: DefaultChunkSize}, nil
}

// Name returns the bucket name.
func (b *GridFSBucket) Name() string {
	return b.name
}

// bucket opens a fresh GridFS handle; handles keep per-call buffers and are
// not shared between goroutines.
func (b *GridFSBucket) bucket() (*gridfs.Bucket, error) {
	opts := options.GridFSBucket().
		SetName(b.name).
		SetChunkSizeBytes(int32(b.chunkSize))
	bucket, err := gridfs.NewBucket(b.db, opts)
	if err != nil {
		return nil, fmt.Errorf("opening gridfs bucket: %w", err)
	}
	return bucket, nil
}

// Put streams r into a new GridFS file. The upload is aborted on any
// failure so no partial chunks remain.
func (b *GridFSBucket) Put(ctx context.Context, objectPath string, r io.Reader, size int64, progress Progress) error {
	bucket, err := b.bucket()
	if err != nil {
		return err
	}

	stream, err := bucket.OpenUploadStream(objectPath)
	if err != nil {
		return fmt.Errorf("opening upload stream: %w", err)
	}

	abort := func(cause error) error {
		if abortErr := stream.Abort(); abortErr != nil {
			return fmt.Errorf("%w (also failed to abort upload: %v)", cause, abortErr)
		}
		return cause
	}

	buf := make([]byte, b.chunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := stream.Write(buf[:n]); err != nil {
				return abort(fmt.Errorf("writing chunk: %w", err))
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
			return abort(fmt.Errorf("reading upload: %w", readErr))
		}
	}

	if err := stream.Close(); err != nil {
		return fmt.Errorf("finishing upload: %w", err)
	}
	return nil
}

// Delete removes every GridFS file stored under objectPath.
func (b *GridFSBucket) Delete(ctx context.Context, objectPath string) error {
	bucket, err := b.bucket()
	if err != nil {
		return err
	}

	cursor, err := bucket.Find(bson.M{"filename": objectPath})
	if err != nil {
		return fmt.Errorf("finding %s: %w", objectPath, err)
	}

	var files []struct {
		ID interface{} `bson:"_id"`
	}
	if err := cursor.All(ctx, &files); err != nil {
		return fmt.Errorf("reading file ids: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, objectPath)
	}

	for _, f := range files {
		if err := bucket.Delete(f.ID); err != nil {
			return fmt.Errorf("deleting %s: %w", objectPath, err)
		}
	}
	return nil
}

// Open returns a download stream for the latest revision of objectPath.
func (b *GridFSBucket) Open(_ context.Context, objectPath string) (io.ReadCloser, error) {
	bucket, err := b.bucket()
	if err != nil {
		return nil, err
	}

	stream, err := bucket.OpenDownloadStreamByName(objectPath)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, objectPath)
		}
		return nil, fmt.Errorf("opening download stream: %w", err)
	}
	return stream, nil
}
