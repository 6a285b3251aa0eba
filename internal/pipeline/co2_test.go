package pipeline_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/co2-weather-etl/internal/domain"
	"github.com/couchcryptid/co2-weather-etl/internal/pipeline"
)

const feed = `# year month day decimal co2
  2024     1     1   2024.0014     422.09
  2024     1     2   2024.0041     422.56
`

const stagedCSV = "year,month,day,decimal_date,co2\n" +
	"2024,1,1,2024.0014,422.09\n" +
	"2024,1,2,2024.0041,422.56\n"

const key = "co2_data/co2_dataset.csv"

func TestCO2Ingest_Run(t *testing.T) {
	store := newMockStore()
	pub := &mockPublisher{}
	notifier := &mockNotifier{}
	metrics := newTestMetrics()

	ingest := pipeline.NewCO2Ingest(&mockFeed{payload: feed}, store, "big.data.ass3", key, discardLogger(), metrics).
		WithPublisher(pub).
		WithNotifier(notifier)

	event, err := ingest.Run(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, stagedCSV, string(store.objects[key]))

	sum := sha256.Sum256([]byte(stagedCSV))
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, "big.data.ass3", event.Bucket)
	assert.Equal(t, key, event.Key)
	assert.Equal(t, 2, event.Rows)
	assert.Equal(t, len(stagedCSV), event.Bytes)
	assert.Equal(t, hex.EncodeToString(sum[:]), event.SHA256)
	assert.False(t, event.StagedAt.IsZero())

	require.Len(t, pub.events, 1)
	assert.Equal(t, event, pub.events[0])
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "2 rows")

	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.RecordsNormalized), 0)
	assert.InDelta(t, float64(len(stagedCSV)), testutil.ToFloat64(metrics.UploadBytes), 0)
}

func TestCO2Ingest_RerunIsByteIdentical(t *testing.T) {
	store := newMockStore()
	ingest := pipeline.NewCO2Ingest(&mockFeed{payload: feed}, store, "b", key, discardLogger(), newTestMetrics())

	first, err := ingest.Run(context.Background(), "run-1")
	require.NoError(t, err)
	firstBytes := store.objects[key]

	second, err := ingest.Run(context.Background(), "run-2")
	require.NoError(t, err)

	assert.Equal(t, firstBytes, store.objects[key])
	assert.Equal(t, first.SHA256, second.SHA256)
	assert.Equal(t, 2, store.puts)
}

func TestCO2Ingest_FetchErrorStopsRun(t *testing.T) {
	store := newMockStore()
	notifier := &mockNotifier{}
	fetchErr := &domain.FetchError{Source: "co2", StatusCode: 500, Body: "down"}

	ingest := pipeline.NewCO2Ingest(&mockFeed{err: fetchErr}, store, "b", key, discardLogger(), newTestMetrics()).
		WithNotifier(notifier)

	_, err := ingest.Run(context.Background(), "run-1")
	require.Error(t, err)

	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Zero(t, store.puts)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "failed")
}

func TestCO2Ingest_ShapeErrorUploadsNothing(t *testing.T) {
	store := newMockStore()
	pub := &mockPublisher{}
	bad := feed + "2024 1 3 2024.0068\n"

	ingest := pipeline.NewCO2Ingest(&mockFeed{payload: bad}, store, "b", key, discardLogger(), newTestMetrics()).
		WithPublisher(pub)

	_, err := ingest.Run(context.Background(), "run-1")

	var se *domain.ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 4, se.Fields)
	assert.Zero(t, store.puts)
	assert.Empty(t, pub.events)
}

func TestCO2Ingest_UploadErrorIsNotRetried(t *testing.T) {
	store := newMockStore()
	store.err = errBoom
	pub := &mockPublisher{}
	metrics := newTestMetrics()

	ingest := pipeline.NewCO2Ingest(&mockFeed{payload: feed}, store, "b", key, discardLogger(), metrics).
		WithPublisher(pub)

	_, err := ingest.Run(context.Background(), "run-1")

	var ue *domain.UploadError
	require.ErrorAs(t, err, &ue)
	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, 1, store.puts)
	assert.Empty(t, pub.events)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.UploadErrors), 0)
}

func TestCO2Ingest_PublishFailureDoesNotFailRun(t *testing.T) {
	store := newMockStore()
	pub := &mockPublisher{err: errBoom}
	notifier := &mockNotifier{err: errBoom}

	ingest := pipeline.NewCO2Ingest(&mockFeed{payload: feed}, store, "b", key, discardLogger(), newTestMetrics()).
		WithPublisher(pub).
		WithNotifier(notifier)

	event, err := ingest.Run(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, event.Rows)
	assert.Len(t, pub.events, 1)
	assert.Contains(t, store.objects, key)
}
