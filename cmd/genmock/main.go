// Command genmock writes reproducible NOAA-format fixtures: a daily CO2 feed
// in the fixed-width layout of co2_daily_mlo.txt, and optionally a CDO
// weather results file for the default stations.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -start 2024-01-01 -days 90 \
//	  -feed-out testdata/co2_daily_mlo.txt \
//	  -weather-out testdata/cdo_results.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/co2-weather-etl/internal/config"
	"github.com/couchcryptid/co2-weather-etl/internal/domain"
)

const feedHeader = `# --------------------------------------------------------------------
# USE OF NOAA GML DATA
#
# This file is a generated fixture in the layout of the Mauna Loa daily
# mean CO2 feed. Values are synthetic.
#
# year month day decimal     co2
`

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	start := flag.String("start", "2024-01-01", "first day of the feed (YYYY-MM-DD)")
	days := flag.Int("days", 90, "number of days to generate")
	gapEvery := flag.Int("gap-every", 11, "omit every Nth day, like instrument downtime (0 disables)")
	seed := flag.Uint64("seed", 42, "random seed")
	feedOut := flag.String("feed-out", "", "output path for the CO2 feed fixture")
	weatherOut := flag.String("weather-out", "", "optional output path for a CDO results fixture")
	flag.Parse()

	if *feedOut == "" || *days < 1 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -feed-out, -days > 0")
	}
	first, err := time.Parse("2006-01-02", *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	records := generateFeed(first, *days, *gapEvery, rng)
	if err := os.MkdirAll(filepath.Dir(*feedOut), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(*feedOut, []byte(formatFeed(records)), 0o644); err != nil {
		return fmt.Errorf("writing feed fixture: %w", err)
	}
	log.Printf("wrote feed fixture: %s (%d days)", *feedOut, len(records))

	if *weatherOut != "" {
		// Year windows end "today"; pin today to the last generated day.
		last := first.AddDate(0, 0, *days-1)
		domain.SetClock(clockwork.NewFakeClockAt(last))
		defer domain.SetClock(nil)

		obs := generateWeather(config.DefaultStations, first, last, rng)
		data, err := json.MarshalIndent(map[string]any{
			"metadata": map[string]any{"resultset": map[string]int{"offset": 1, "count": len(obs), "limit": 1000}},
			"results":  obs,
		}, "", "    ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(*weatherOut, data, 0o644); err != nil {
			return fmt.Errorf("writing weather fixture: %w", err)
		}
		log.Printf("wrote weather fixture: %s (%d observations)", *weatherOut, len(obs))
	}

	printStats(records)
	return nil
}

// generateFeed produces a rising trend with an annual cycle and daily noise.
func generateFeed(first time.Time, days, gapEvery int, rng *rand.Rand) []domain.Measurement {
	records := make([]domain.Measurement, 0, days)
	for i := range days {
		if gapEvery > 0 && i > 0 && i%gapEvery == 0 {
			continue
		}
		d := first.AddDate(0, 0, i)
		dec := decimalDate(d)
		trend := 420 + 2.4*(dec-2024)
		season := 3.2 * math.Sin(2*math.Pi*(dec-math.Floor(dec)+0.1))
		noise := rng.NormFloat64() * 0.35
		records = append(records, domain.Measurement{
			Year:        d.Year(),
			Month:       int(d.Month()),
			Day:         d.Day(),
			DecimalDate: math.Round(dec*1e4) / 1e4,
			CO2:         math.Round((trend+season+noise)*100) / 100,
		})
	}
	return records
}

func decimalDate(d time.Time) float64 {
	yearStart := time.Date(d.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := yearStart.AddDate(1, 0, 0)
	mid := d.Add(12 * time.Hour)
	return float64(d.Year()) + mid.Sub(yearStart).Hours()/yearEnd.Sub(yearStart).Hours()
}

func formatFeed(records []domain.Measurement) string {
	var b strings.Builder
	b.WriteString(feedHeader)
	for _, m := range records {
		fmt.Fprintf(&b, "%6d %5d %5d %11.4f %10.2f\n", m.Year, m.Month, m.Day, m.DecimalDate, m.CO2)
	}
	return b.String()
}

func generateWeather(stations []string, first, last time.Time, rng *rand.Rand) []domain.WeatherObservation {
	var obs []domain.WeatherObservation
	for _, sy := range domain.StationYears(stations, first.Year()) {
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			if d.Year() != sy.Window.Year {
				continue
			}
			// Boston-like annual temperature curve in tenths of a degree C.
			dayOfYear := float64(d.YearDay())
			tavg := 110 + 120*math.Sin(2*math.Pi*(dayOfYear-105)/365) + rng.NormFloat64()*25
			obs = append(obs, domain.WeatherObservation{
				Date:       d.Format("2006-01-02") + "T00:00:00",
				DataType:   "TAVG",
				Station:    sy.Station,
				Attributes: "H,,S,",
				Value:      math.Round(tavg),
			})
		}
	}
	return obs
}

func printStats(records []domain.Measurement) {
	summary := domain.Summarize(records)
	fmt.Println()
	fmt.Println("=== Generated Feed Stats ===")
	fmt.Printf("Days:   %d\n", len(records))
	fmt.Printf("Months: %d\n", len(summary))
	for _, m := range summary {
		fmt.Printf("  %04d-%02d  avg=%.2f  min=%.2f  max=%.2f\n", m.Year, m.Month, m.Avg, m.Min, m.Max)
	}
}
