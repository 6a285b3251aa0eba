package objectstore

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/couchcryptid/co2-weather-etl/internal/domain"
)

// GCS stores batches in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS creates a GCS store using application default credentials and
// verifies the bucket is reachable.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("access bucket %s: %w", bucket, err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Put writes data to key; the object becomes visible when the writer closes.
func (g *GCS) Put(ctx context.Context, key string, data []byte) error {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "text/csv"
	w.CacheControl = "no-cache, max-age=0"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return &domain.UploadError{Bucket: g.bucket, Key: key, Err: err}
	}
	if err := w.Close(); err != nil {
		return &domain.UploadError{Bucket: g.bucket, Key: key, Err: err}
	}
	return nil
}

// Get reads the object at key.
func (g *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gcs://%s/%s: %w", g.bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gcs://%s/%s: %w", g.bucket, key, err)
	}
	return data, nil
}

func (g *GCS) Location() string {
	return "gcs://" + g.bucket + "/"
}

func (g *GCS) Close() error {
	return g.client.Close()
}
