package domain

import (
	"math"

	"github.com/guregu/null"
)

// Lookback distances for the change tables.
const (
	DailyLookback  = 1
	WeeklyLookback = 7
)

// PercentChange returns (current-previous)/previous*100, or null when previous
// is null or zero.
func PercentChange(current float64, previous null.Float) null.Float {
	if !previous.Valid || previous.Float64 == 0 {
		return null.Float{}
	}
	return null.FloatFrom((current - previous.Float64) / previous.Float64 * 100)
}

// ChangePoint is one row of a percent-change table.
type ChangePoint struct {
	Year   int
	Month  int
	Day    int
	CO2    float64
	Change null.Float
}

// Changes computes percent change against the row n positions earlier in date
// order. The first n rows have a null change.
func Changes(records []Measurement, n int) []ChangePoint {
	sorted := make([]Measurement, len(records))
	copy(sorted, records)
	SortByDate(sorted)

	out := make([]ChangePoint, len(sorted))
	for i, m := range sorted {
		var prev null.Float
		if n > 0 && i >= n {
			prev = null.FloatFrom(sorted[i-n].CO2)
		}
		out[i] = ChangePoint{
			Year:   m.Year,
			Month:  m.Month,
			Day:    m.Day,
			CO2:    m.CO2,
			Change: PercentChange(m.CO2, prev),
		}
	}
	return out
}

// MonthlyAggregate summarizes one (year, month) group.
type MonthlyAggregate struct {
	Year  int     `db:"YEAR"`
	Month int     `db:"MONTH"`
	Avg   float64 `db:"AVG_CO2"`
	Max   float64 `db:"MAX_CO2"`
	Min   float64 `db:"MIN_CO2"`
}

// Summarize groups measurements by (year, month), in chronological order.
func Summarize(records []Measurement) []MonthlyAggregate {
	sorted := make([]Measurement, len(records))
	copy(sorted, records)
	SortByDate(sorted)

	var out []MonthlyAggregate
	var sum float64
	var count int
	for i, m := range sorted {
		if i == 0 || m.Year != out[len(out)-1].Year || m.Month != out[len(out)-1].Month {
			if count > 0 {
				out[len(out)-1].Avg = sum / float64(count)
			}
			out = append(out, MonthlyAggregate{Year: m.Year, Month: m.Month, Max: math.Inf(-1), Min: math.Inf(1)})
			sum, count = 0, 0
		}
		cur := &out[len(out)-1]
		cur.Max = math.Max(cur.Max, m.CO2)
		cur.Min = math.Min(cur.Min, m.CO2)
		sum += m.CO2
		count++
	}
	if count > 0 {
		out[len(out)-1].Avg = sum / float64(count)
	}
	return out
}
