package noaa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/co2-weather-etl/internal/domain"
	"github.com/couchcryptid/co2-weather-etl/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	sourceWeather = "weather"

	datasetGHCND = "GHCND"
	datatypeTAVG = "TAVG"
	pageLimit    = 1000
)

// ErrRetriesExhausted is wrapped by the FetchError returned after every
// attempt for a (station, year) pair answered 503.
var ErrRetriesExhausted = errors.New("retries exhausted")

// CDOOptions tunes retry and pacing for the CDO client.
type CDOOptions struct {
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	RateLimit   float64
}

// CDOClient queries the NOAA Climate Data Online v2 data endpoint.
type CDOClient struct {
	token       string
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	clock       clockwork.Clock
	maxAttempts int
	retryDelay  time.Duration
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewCDOClient creates a CDO client authenticated with token.
func NewCDOClient(baseURL, token string, opts CDOOptions, metrics *observability.Metrics, logger *slog.Logger) *CDOClient {
	return &CDOClient{
		token:       token,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		clock:       clockwork.NewRealClock(),
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		metrics:     metrics,
		logger:      logger,
	}
}

// FetchYear returns the TAVG observations for one station and year window.
// A 503 is retried with a fixed delay until maxAttempts requests have been
// made; any other non-200 status fails immediately.
func (c *CDOClient) FetchYear(ctx context.Context, station string, window domain.YearWindow) ([]domain.WeatherObservation, error) {
	u := c.baseURL + "/data?" + url.Values{
		"datasetid":  {datasetGHCND},
		"datatypeid": {datatypeTAVG},
		"startdate":  {window.Start},
		"enddate":    {window.End},
		"stationid":  {station},
		"limit":      {fmt.Sprint(pageLimit)},
	}.Encode()

	for attempt := 1; ; attempt++ {
		status, body, err := c.doRequest(ctx, u)
		if err != nil {
			c.metrics.FetchRequests.WithLabelValues(sourceWeather, "error").Inc()
			return nil, &domain.FetchError{Source: sourceWeather, URL: u, Err: err}
		}

		switch {
		case status == http.StatusOK:
			obs, err := parseResults(body)
			if err != nil {
				c.metrics.FetchRequests.WithLabelValues(sourceWeather, "error").Inc()
				return nil, &domain.FetchError{Source: sourceWeather, URL: u, Err: err}
			}
			c.metrics.FetchRequests.WithLabelValues(sourceWeather, "success").Inc()
			return obs, nil
		case status == http.StatusServiceUnavailable && attempt < c.maxAttempts:
			c.metrics.FetchRequests.WithLabelValues(sourceWeather, "retry").Inc()
			c.logger.Warn("weather api unavailable, retrying",
				"station", station, "year", window.Year, "attempt", attempt, "delay", c.retryDelay)
			if err := c.sleep(ctx); err != nil {
				return nil, &domain.FetchError{Source: sourceWeather, URL: u, Err: err}
			}
		case status == http.StatusServiceUnavailable:
			c.metrics.FetchRequests.WithLabelValues(sourceWeather, "skipped").Inc()
			return nil, &domain.FetchError{Source: sourceWeather, URL: u, StatusCode: status, Body: truncate(body), Err: ErrRetriesExhausted}
		default:
			c.metrics.FetchRequests.WithLabelValues(sourceWeather, "skipped").Inc()
			return nil, &domain.FetchError{Source: sourceWeather, URL: u, StatusCode: status, Body: truncate(body)}
		}
	}
}

func (c *CDOClient) doRequest(ctx context.Context, fullURL string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("token", c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FetchDuration.WithLabelValues(sourceWeather).Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (c *CDOClient) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(c.retryDelay):
		return nil
	}
}

// parseResults extracts the "results" array. CDO answers an empty object when
// a station has no data for the window.
func parseResults(body []byte) ([]domain.WeatherObservation, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decode weather response: invalid json")
	}
	results := gjson.GetBytes(body, "results")
	if !results.Exists() {
		return nil, nil
	}
	if !results.IsArray() {
		return nil, fmt.Errorf("decode weather response: results is %s, not an array", results.Type)
	}

	items := results.Array()
	out := make([]domain.WeatherObservation, 0, len(items))
	for _, r := range items {
		out = append(out, domain.WeatherObservation{
			Date:       r.Get("date").String(),
			DataType:   r.Get("datatype").String(),
			Station:    r.Get("station").String(),
			Attributes: r.Get("attributes").String(),
			Value:      r.Get("value").Float(),
		})
	}
	return out, nil
}
