// Command validate checks a staged CO2 batch against the feed it was built
// from, and optionally a weather results file. It verifies the staged layout,
// record parity, date ordering, and the derived monthly and change series.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -feed testdata/co2_daily_mlo.txt \
//	  -staged stage/co2_data/co2_dataset.csv \
//	  -weather boston_tavg_2020_present.json
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/couchcryptid/co2-weather-etl/internal/config"
	"github.com/couchcryptid/co2-weather-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	feedPath := flag.String("feed", "", "path to the raw CO2 feed")
	stagedPath := flag.String("staged", "", "path to the staged CSV batch")
	weatherPath := flag.String("weather", "", "optional path to a weather results JSON file")
	flag.Parse()

	if *feedPath == "" || *stagedPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*feedPath, *stagedPath, *weatherPath))
}

func run(feedPath, stagedPath, weatherPath string) int {
	fmt.Println("=== CO2 Staged Batch Validation ===")
	fmt.Println()

	feedData, err := os.ReadFile(feedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read feed: %v\n", err)
		return 1
	}
	staged, err := os.ReadFile(stagedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read staged batch: %v\n", err)
		return 1
	}

	feed, feedErr := domain.ParseCO2Feed(string(feedData))
	batch, batchErr := domain.DecodeCSV(staged)

	phases := []*phase{
		validateFeed(feed, feedErr),
		validateLayout(staged, batchErr),
		validateParity(feed, batch),
		validateDerived(batch),
	}
	if weatherPath != "" {
		phases = append(phases, validateWeather(weatherPath))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d feed, %d staged\n", len(feed), len(batch))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Feed ──

func validateFeed(feed []domain.Measurement, err error) *phase {
	p := &phase{name: "Phase 1: Feed parses (5 fields per line)"}
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if len(feed) == 0 {
		p.errorf("feed has no data lines")
	}
	return p
}

// ── Phase 2: Staged layout ──

func validateLayout(staged []byte, decodeErr error) *phase {
	p := &phase{name: "Phase 2: Staged CSV layout"}

	rows, err := csv.NewReader(bytes.NewReader(staged)).ReadAll()
	if err != nil {
		p.errorf("read csv: %v", err)
		return p
	}
	if len(rows) == 0 {
		p.errorf("staged batch is empty")
		return p
	}
	if !slices.Equal(rows[0], domain.CSVHeader) {
		p.errorf("header: expected %s, got %s", strings.Join(domain.CSVHeader, ","), strings.Join(rows[0], ","))
	}
	if decodeErr != nil {
		p.errorf("%v", decodeErr)
	}

	// Re-encoding must reproduce the staged bytes exactly.
	if decodeErr == nil {
		records, _ := domain.DecodeCSV(staged)
		again, err := domain.EncodeCSV(records)
		if err != nil {
			p.errorf("re-encode: %v", err)
		} else if !bytes.Equal(again, staged) {
			p.errorf("staged batch is not in canonical form (re-encoded %d bytes, file has %d)", len(again), len(staged))
		}
	}
	return p
}

// ── Phase 3: Parity ──

func validateParity(feed, batch []domain.Measurement) *phase {
	p := &phase{name: "Phase 3: Feed/staged parity"}
	if len(feed) != len(batch) {
		p.errorf("count: feed has %d records, staged has %d", len(feed), len(batch))
	}
	if diff := cmp.Diff(feed, batch); diff != "" {
		p.errorf("records differ (-feed +staged):\n%s", diff)
	}
	return p
}

// ── Phase 4: Derived series ──

func validateDerived(batch []domain.Measurement) *phase {
	p := &phase{name: "Phase 4: Keys, monthly summary, change series"}

	seen := make(map[domain.DateKey]bool, len(batch))
	for i, m := range batch {
		k := m.Key()
		if seen[k] {
			p.errorf("duplicate date %04d-%02d-%02d", k.Year, k.Month, k.Day)
		}
		seen[k] = true
		if i > 0 && !batch[i-1].Key().Less(k) {
			p.errorf("record %d out of date order", i+1)
		}
		if m.CO2 <= 0 {
			p.errorf("record %d: non-positive co2 %v", i+1, m.CO2)
		}
	}

	for _, agg := range domain.Summarize(batch) {
		if agg.Min > agg.Avg || agg.Avg > agg.Max {
			p.errorf("%04d-%02d: expected min <= avg <= max, got %.2f/%.2f/%.2f", agg.Year, agg.Month, agg.Min, agg.Avg, agg.Max)
		}
	}

	for _, lookback := range []int{domain.DailyLookback, domain.WeeklyLookback} {
		changes := domain.Changes(batch, lookback)
		for i, c := range changes {
			if i < lookback && c.Change.Valid {
				p.errorf("lookback %d: row %d has a change but no prior row", lookback, i+1)
			}
			if i >= lookback && !c.Change.Valid {
				p.errorf("lookback %d: row %d has no change", lookback, i+1)
			}
		}
	}
	return p
}

// ── Phase 5: Weather ──

func validateWeather(path string) *phase {
	p := &phase{name: "Phase 5: Weather results"}

	data, err := os.ReadFile(path)
	if err != nil {
		p.errorf("read: %v", err)
		return p
	}
	var obs []domain.WeatherObservation
	if err := json.Unmarshal(data, &obs); err != nil {
		p.errorf("decode: %v", err)
		return p
	}
	if !bytes.Contains(data, []byte("\n    ")) && len(obs) > 0 {
		p.errorf("expected 4-space indentation")
	}

	known := make(map[string]int, len(config.DefaultStations))
	for i, s := range config.DefaultStations {
		known[s] = i
	}
	lastStation := -1
	for i, o := range obs {
		if o.DataType != "TAVG" {
			p.errorf("observation %d: datatype %q", i, o.DataType)
		}
		idx, ok := known[o.Station]
		if !ok {
			continue
		}
		if idx < lastStation {
			p.errorf("observation %d: station %s out of order", i, o.Station)
		}
		lastStation = idx
	}
	return p
}
