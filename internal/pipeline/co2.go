package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/co2-weather-etl/internal/domain"
	"github.com/couchcryptid/co2-weather-etl/internal/observability"
)

// CO2Ingest fetches the daily CO2 feed, normalizes it, and writes it to a
// single object store key. Each stage either succeeds or ends the run.
type CO2Ingest struct {
	fetcher   FeedFetcher
	store     ObjectStore
	bucket    string
	key       string
	publisher Publisher
	notifier  Notifier
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewCO2Ingest creates an ingest run writing to bucket/key in store.
func NewCO2Ingest(fetcher FeedFetcher, store ObjectStore, bucket, key string, logger *slog.Logger, metrics *observability.Metrics) *CO2Ingest {
	return &CO2Ingest{
		fetcher: fetcher,
		store:   store,
		bucket:  bucket,
		key:     key,
		logger:  logger,
		metrics: metrics,
	}
}

// WithPublisher enables batch-staged events.
func (c *CO2Ingest) WithPublisher(p Publisher) *CO2Ingest {
	c.publisher = p
	return c
}

// WithNotifier enables operator messages on completion and failure.
func (c *CO2Ingest) WithNotifier(n Notifier) *CO2Ingest {
	c.notifier = n
	return c
}

// Run performs one fetch, normalize, and upload. A publish or notify failure
// after the upload is logged but does not fail the run.
func (c *CO2Ingest) Run(ctx context.Context, runID string) (domain.BatchStaged, error) {
	logger := c.logger.With("run_id", runID)
	start := time.Now()

	event, err := c.stage(ctx, runID, logger)
	if err != nil {
		logger.Error("co2 ingest failed", "error", err)
		c.notify(ctx, logger, fmt.Sprintf(":x: CO2 ingest %s failed: %v", runID, err))
		return domain.BatchStaged{}, err
	}

	logger.Info("co2 batch staged",
		"rows", event.Rows,
		"bytes", event.Bytes,
		"location", c.store.Location()+c.key,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, event); err != nil {
			logger.Warn("publish batch staged event failed", "error", err)
		}
	}
	c.notify(ctx, logger, fmt.Sprintf(":white_check_mark: CO2 batch %s staged: %d rows at %s%s", runID, event.Rows, c.store.Location(), c.key))
	return event, nil
}

func (c *CO2Ingest) stage(ctx context.Context, runID string, logger *slog.Logger) (domain.BatchStaged, error) {
	payload, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return domain.BatchStaged{}, err
	}

	records, err := domain.ParseCO2Feed(payload)
	if err != nil {
		return domain.BatchStaged{}, err
	}
	c.metrics.RecordsNormalized.Add(float64(len(records)))
	logger.Debug("co2 feed normalized", "rows", len(records))

	batch := domain.StagedBatch{Records: records, Key: c.key}
	data, err := domain.EncodeCSV(batch.Records)
	if err != nil {
		return domain.BatchStaged{}, fmt.Errorf("encode staged batch: %w", err)
	}

	if err := c.store.Put(ctx, batch.Key, data); err != nil {
		c.metrics.UploadErrors.Inc()
		return domain.BatchStaged{}, err
	}
	c.metrics.UploadBytes.Add(float64(len(data)))

	sum := sha256.Sum256(data)
	return domain.NewBatchStaged(runID, c.bucket, batch.Key, len(records), len(data), hex.EncodeToString(sum[:])), nil
}

func (c *CO2Ingest) notify(ctx context.Context, logger *slog.Logger, text string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, text); err != nil {
		logger.Warn("operator notification failed", "error", err)
	}
}
