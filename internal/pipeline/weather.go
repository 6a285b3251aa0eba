package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/co2-weather-etl/internal/domain"
	"github.com/couchcryptid/co2-weather-etl/internal/observability"
)

// WeatherResult is the outcome of one collection run.
type WeatherResult struct {
	Observations []domain.WeatherObservation
	Requested    int
	Skipped      []domain.StationYear
}

// WeatherCollect fetches every (station, year) pair and writes the combined
// observations to a single sink object.
type WeatherCollect struct {
	fetcher WeatherFetcher
	sink    ObjectStore
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWeatherCollect creates a collection run using up to workers concurrent
// requests. Values below 1 mean sequential.
func NewWeatherCollect(fetcher WeatherFetcher, sink ObjectStore, workers int, logger *slog.Logger, metrics *observability.Metrics) *WeatherCollect {
	if workers < 1 {
		workers = 1
	}
	return &WeatherCollect{
		fetcher: fetcher,
		sink:    sink,
		workers: workers,
		logger:  logger,
		metrics: metrics,
	}
}

// Run collects all pairs and writes them to key. A failed pair is skipped and
// logged; it never aborts the batch. Observations keep (station, year) order
// regardless of worker count.
func (w *WeatherCollect) Run(ctx context.Context, runID string, pairs []domain.StationYear, key string) (WeatherResult, error) {
	logger := w.logger.With("run_id", runID)
	start := time.Now()

	result, err := w.Collect(ctx, pairs)
	if err != nil {
		return result, err
	}

	data, err := EncodeObservations(result.Observations)
	if err != nil {
		return result, err
	}
	if err := w.sink.Put(ctx, key, data); err != nil {
		w.metrics.UploadErrors.Inc()
		return result, err
	}
	w.metrics.UploadBytes.Add(float64(len(data)))

	logger.Info("weather collection written",
		"observations", len(result.Observations),
		"requested", result.Requested,
		"skipped", len(result.Skipped),
		"location", w.sink.Location()+key,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Collect issues one request per pair through a bounded worker pool.
func (w *WeatherCollect) Collect(ctx context.Context, pairs []domain.StationYear) (WeatherResult, error) {
	results := make([][]domain.WeatherObservation, len(pairs))
	failed := make([]bool, len(pairs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range w.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				pair := pairs[i]
				obs, err := w.fetcher.FetchYear(ctx, pair.Station, pair.Window)
				if err != nil {
					failed[i] = true
					if ctx.Err() == nil {
						w.logger.Warn("weather request skipped",
							"station", pair.Station,
							"year", pair.Window.Year,
							"error", err,
						)
					}
					continue
				}
				results[i] = obs
			}
		}()
	}

dispatch:
	for i := range pairs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return WeatherResult{}, fmt.Errorf("weather collection interrupted: %w", err)
	}

	out := WeatherResult{Requested: len(pairs)}
	for i, obs := range results {
		if failed[i] {
			out.Skipped = append(out.Skipped, pairs[i])
			continue
		}
		out.Observations = append(out.Observations, obs...)
	}
	w.metrics.WeatherResults.Add(float64(len(out.Observations)))
	return out, nil
}

// EncodeObservations renders observations as a JSON array indented with four
// spaces. An empty collection encodes as [].
func EncodeObservations(obs []domain.WeatherObservation) ([]byte, error) {
	if obs == nil {
		obs = []domain.WeatherObservation{}
	}
	data, err := json.MarshalIndent(obs, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode weather observations: %w", err)
	}
	return data, nil
}
