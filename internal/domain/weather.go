package domain

import (
	"fmt"
	"time"
)

const cdoDateLayout = "2006-01-02"

// WeatherObservation is one entry of the CDO API "results" array.
type WeatherObservation struct {
	Date       string  `json:"date"`
	DataType   string  `json:"datatype"`
	Station    string  `json:"station"`
	Attributes string  `json:"attributes"`
	Value      float64 `json:"value"`
}

// YearWindow is the date range requested for one station and calendar year.
type YearWindow struct {
	Year  int
	Start string
	End   string
}

// YearWindows returns one window per year from startYear through the current
// year. Past years end on December 31; the current year ends today (UTC).
func YearWindows(startYear int) []YearWindow {
	now := clock.Now().UTC()
	current := now.Year()
	if startYear > current {
		return nil
	}
	windows := make([]YearWindow, 0, current-startYear+1)
	for y := startYear; y <= current; y++ {
		end := fmt.Sprintf("%d-12-31", y)
		if y == current {
			end = now.Format(cdoDateLayout)
		}
		windows = append(windows, YearWindow{
			Year:  y,
			Start: fmt.Sprintf("%d-01-01", y),
			End:   end,
		})
	}
	return windows
}

// StationYear identifies one independent weather request.
type StationYear struct {
	Station string
	Window  YearWindow
}

// StationYears crosses stations with year windows in (station, year) order.
func StationYears(stations []string, startYear int) []StationYear {
	windows := YearWindows(startYear)
	out := make([]StationYear, 0, len(stations)*len(windows))
	for _, s := range stations {
		for _, w := range windows {
			out = append(out, StationYear{Station: s, Window: w})
		}
	}
	return out
}

// BatchStaged announces that a CO2 batch is available in the object store.
type BatchStaged struct {
	RunID    string    `json:"run_id"`
	Bucket   string    `json:"bucket"`
	Key      string    `json:"key"`
	Rows     int       `json:"rows"`
	Bytes    int       `json:"bytes"`
	SHA256   string    `json:"sha256"`
	StagedAt time.Time `json:"staged_at"`
}

// NewBatchStaged stamps a staged-batch event with the current time.
func NewBatchStaged(runID, bucket, key string, rows, size int, sum string) BatchStaged {
	return BatchStaged{
		RunID:    runID,
		Bucket:   bucket,
		Key:      key,
		Rows:     rows,
		Bytes:    size,
		SHA256:   sum,
		StagedAt: clock.Now().UTC(),
	}
}
