package noaa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/co2-weather-etl/internal/domain"
	"github.com/couchcryptid/co2-weather-etl/internal/observability"
)

const sourceCO2 = "co2"

// FeedClient downloads the NOAA GML daily CO2 text feed.
type FeedClient struct {
	url        string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewFeedClient creates a client for the unauthenticated CO2 feed at url.
func NewFeedClient(url string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *FeedClient {
	return &FeedClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// Fetch returns the raw feed body. The feed is fetched once, with no retry.
func (c *FeedClient) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FetchDuration.WithLabelValues(sourceCO2).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(sourceCO2, "error").Inc()
		return "", &domain.FetchError{Source: sourceCO2, URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(sourceCO2, "error").Inc()
		return "", &domain.FetchError{Source: sourceCO2, URL: c.url, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.FetchRequests.WithLabelValues(sourceCO2, "error").Inc()
		return "", &domain.FetchError{Source: sourceCO2, URL: c.url, StatusCode: resp.StatusCode, Body: truncate(body)}
	}

	c.metrics.FetchRequests.WithLabelValues(sourceCO2, "success").Inc()
	c.logger.Debug("co2 feed fetched", "bytes", len(body))
	return string(body), nil
}

// truncate keeps error bodies readable in logs.
func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
