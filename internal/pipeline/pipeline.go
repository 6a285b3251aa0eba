// Package pipeline orchestrates the ingest runs: the CO2 feed into the object
// store, and the weather collection into a JSON sink.
package pipeline

import (
	"context"

	"github.com/couchcryptid/co2-weather-etl/internal/domain"
)

// FeedFetcher returns the raw CO2 feed payload.
type FeedFetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// WeatherFetcher returns the observations for one station and year window.
type WeatherFetcher interface {
	FetchYear(ctx context.Context, station string, window domain.YearWindow) ([]domain.WeatherObservation, error)
}

// ObjectStore is the blob store batches are written to.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Location() string
}

// Publisher announces a staged batch to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event domain.BatchStaged) error
}

// Notifier posts a short operator message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
