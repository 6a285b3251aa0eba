package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/couchcryptid/co2-weather-etl/internal/domain"
	"github.com/couchcryptid/co2-weather-etl/internal/observability"
)

// --- mocks ---

type mockFeed struct {
	payload string
	err     error
}

func (m *mockFeed) Fetch(context.Context) (string, error) { return m.payload, m.err }

type mockStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	err     error
}

func newMockStore() *mockStore { return &mockStore{objects: map[string][]byte{}} }

func (m *mockStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.err != nil {
		return &domain.UploadError{Bucket: "mock", Key: key, Err: m.err}
	}
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *mockStore) Location() string { return "mock://bucket/" }

type mockPublisher struct {
	events []domain.BatchStaged
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e domain.BatchStaged) error {
	m.events = append(m.events, e)
	return m.err
}

type mockNotifier struct {
	messages []string
	err      error
}

func (m *mockNotifier) Notify(_ context.Context, text string) error {
	m.messages = append(m.messages, text)
	return m.err
}

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}
