//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/co2-weather-etl/internal/adapter/kafka"
	"github.com/couchcryptid/co2-weather-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/co2-weather-etl/internal/domain"
	"github.com/couchcryptid/co2-weather-etl/internal/observability"
	"github.com/couchcryptid/co2-weather-etl/internal/pipeline"
)

const testTopic = "co2-batch-staged-test"

type staticFeed string

func (f staticFeed) Fetch(context.Context) (string, error) { return string(f), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("co2-etl-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// TestCO2IngestPublishesBatchStaged runs an ingest against a filesystem stage
// and reads the batch-staged event back from a real broker.
func TestCO2IngestPublishesBatchStaged(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	store, err := objectstore.NewFS(t.TempDir())
	require.NoError(t, err)

	writer := kafka.NewWriter([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	feed := staticFeed("# year month day decimal co2\n2024 1 1 2024.0014 422.09\n2024 1 2 2024.0041 422.56\n")
	ingest := pipeline.NewCO2Ingest(feed, store, "stage", "co2_data/co2_dataset.csv", discardLogger(), observability.NewMetricsForTesting()).
		WithPublisher(writer)

	staged, err := ingest.Run(ctx, "run-integration")
	require.NoError(t, err)

	data, err := store.Get(ctx, "co2_data/co2_dataset.csv")
	require.NoError(t, err)
	records, err := domain.DecodeCSV(data)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = reader.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err, "read batch staged event")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "run-integration", string(msg.Key))
	assert.Equal(t, "co2.batch_staged", headers["event_type"])
	_, err = time.Parse(time.RFC3339, headers["staged_at"])
	assert.NoError(t, err, "staged_at should be RFC3339")

	var event domain.BatchStaged
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, staged.SHA256, event.SHA256)
	assert.Equal(t, 2, event.Rows)
	assert.Equal(t, len(data), event.Bytes)
}
