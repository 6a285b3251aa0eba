// Package objectstore writes and reads staged batches in a blob store.
package objectstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/couchcryptid/co2-weather-etl/internal/config"
)

// Store is a path-addressed blob store. Put overwrites any existing object at
// key and is never retried; failures surface as *domain.UploadError.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Location is the stage URL a warehouse uses to reach the store root.
	Location() string
	Close() error
}

// New opens the store selected by cfg.StageBackend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StageBackend {
	case config.BackendS3:
		return NewS3(ctx, cfg.StageBucket, cfg.AWSRegion)
	case config.BackendGCS:
		return NewGCS(ctx, cfg.StageBucket)
	case config.BackendFS:
		return NewFS(cfg.StageDir)
	default:
		return nil, fmt.Errorf("unsupported stage backend: %s", cfg.StageBackend)
	}
}

// URL is the stage URL for cfg, matching Location of the opened store,
// without contacting the backend.
func URL(cfg *config.Config) (string, error) {
	switch cfg.StageBackend {
	case config.BackendS3:
		return "s3://" + cfg.StageBucket + "/", nil
	case config.BackendGCS:
		return "gcs://" + cfg.StageBucket + "/", nil
	case config.BackendFS:
		abs, err := filepath.Abs(cfg.StageDir)
		if err != nil {
			return "", fmt.Errorf("resolve stage dir %s: %w", cfg.StageDir, err)
		}
		return abs + string(filepath.Separator), nil
	default:
		return "", fmt.Errorf("unsupported stage backend: %s", cfg.StageBackend)
	}
}
