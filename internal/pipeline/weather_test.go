package pipeline_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/co2-weather-etl/internal/domain"
	"github.com/couchcryptid/co2-weather-etl/internal/pipeline"
)

type mockWeather struct {
	fail     map[string]bool
	delay    func(station string, year int) time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (m *mockWeather) FetchYear(ctx context.Context, station string, w domain.YearWindow) ([]domain.WeatherObservation, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if m.delay != nil {
		select {
		case <-time.After(m.delay(station, w.Year)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	id := fmt.Sprintf("%s/%d", station, w.Year)
	if m.fail[id] {
		return nil, &domain.FetchError{Source: "weather", StatusCode: 500, Body: "error"}
	}
	return []domain.WeatherObservation{
		{Date: w.Start + "T00:00:00", DataType: "TAVG", Station: station, Value: float64(w.Year)},
	}, nil
}

func pairs(stations []string, years ...int) []domain.StationYear {
	var out []domain.StationYear
	for _, s := range stations {
		for _, y := range years {
			out = append(out, domain.StationYear{
				Station: s,
				Window:  domain.YearWindow{Year: y, Start: fmt.Sprintf("%d-01-01", y), End: fmt.Sprintf("%d-12-31", y)},
			})
		}
	}
	return out
}

func stationYears(obs []domain.WeatherObservation) []string {
	out := make([]string, len(obs))
	for i, o := range obs {
		out[i] = fmt.Sprintf("%s/%d", o.Station, int(o.Value))
	}
	return out
}

func TestWeatherCollect_SkipsFailedPairs(t *testing.T) {
	fetcher := &mockWeather{fail: map[string]bool{"A/2021": true}}
	metrics := newTestMetrics()
	wc := pipeline.NewWeatherCollect(fetcher, newMockStore(), 1, discardLogger(), metrics)

	res, err := wc.Collect(context.Background(), pairs([]string{"A", "B"}, 2020, 2021))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Requested)
	assert.Equal(t, []string{"A/2020", "B/2020", "B/2021"}, stationYears(res.Observations))
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "A", res.Skipped[0].Station)
	assert.Equal(t, 2021, res.Skipped[0].Window.Year)
	assert.Equal(t, int32(4), fetcher.calls.Load())
	assert.InDelta(t, 3.0, testutil.ToFloat64(metrics.WeatherResults), 0)
}

func TestWeatherCollect_ParallelKeepsOrder(t *testing.T) {
	// Earlier pairs finish last.
	fetcher := &mockWeather{delay: func(station string, year int) time.Duration {
		if station == "A" {
			return 30 * time.Millisecond
		}
		return time.Duration(2030-year) * time.Millisecond
	}}
	wc := pipeline.NewWeatherCollect(fetcher, newMockStore(), 4, discardLogger(), newTestMetrics())

	res, err := wc.Collect(context.Background(), pairs([]string{"A", "B", "C"}, 2020, 2021, 2022))
	require.NoError(t, err)

	want := []string{
		"A/2020", "A/2021", "A/2022",
		"B/2020", "B/2021", "B/2022",
		"C/2020", "C/2021", "C/2022",
	}
	if diff := cmp.Diff(want, stationYears(res.Observations)); diff != "" {
		t.Errorf("observation order mismatch (-want +got):\n%s", diff)
	}
	assert.LessOrEqual(t, fetcher.peak.Load(), int32(4))
}

func TestWeatherCollect_SequentialByDefault(t *testing.T) {
	fetcher := &mockWeather{delay: func(string, int) time.Duration { return time.Millisecond }}
	wc := pipeline.NewWeatherCollect(fetcher, newMockStore(), 0, discardLogger(), newTestMetrics())

	_, err := wc.Collect(context.Background(), pairs([]string{"A", "B"}, 2020, 2021))
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetcher.peak.Load())
}

func TestWeatherCollect_Canceled(t *testing.T) {
	fetcher := &mockWeather{delay: func(string, int) time.Duration { return time.Second }}
	wc := pipeline.NewWeatherCollect(fetcher, newMockStore(), 2, discardLogger(), newTestMetrics())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := wc.Collect(ctx, pairs([]string{"A", "B"}, 2020, 2021, 2022))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWeatherCollect_RunWritesJSON(t *testing.T) {
	sink := newMockStore()
	wc := pipeline.NewWeatherCollect(&mockWeather{}, sink, 2, discardLogger(), newTestMetrics())

	res, err := wc.Run(context.Background(), "run-1", pairs([]string{"GHCND:USW00014739"}, 2020), "boston_tavg_2020_present.json")
	require.NoError(t, err)
	require.Len(t, res.Observations, 1)

	data := sink.objects["boston_tavg_2020_present.json"]
	require.NotEmpty(t, data)
	assert.Contains(t, string(data), "\n    {\n        \"date\": \"2020-01-01T00:00:00\"")

	var decoded []domain.WeatherObservation
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, res.Observations, decoded)
}

func TestWeatherCollect_RunSinkFailure(t *testing.T) {
	sink := newMockStore()
	sink.err = errBoom
	metrics := newTestMetrics()
	wc := pipeline.NewWeatherCollect(&mockWeather{}, sink, 1, discardLogger(), metrics)

	_, err := wc.Run(context.Background(), "run-1", pairs([]string{"A"}, 2020), "out.json")

	var ue *domain.UploadError
	require.ErrorAs(t, err, &ue)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.UploadErrors), 0)
}

func TestEncodeObservations_Empty(t *testing.T) {
	data, err := pipeline.EncodeObservations(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
