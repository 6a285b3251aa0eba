package domain

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MeasurementFields is the number of positional fields on every CO2 data line.
const MeasurementFields = 5

// CSVHeader is the header row of a staged CO2 batch.
var CSVHeader = []string{"year", "month", "day", "decimal_date", "co2"}

// Measurement is one daily CO2 reading.
type Measurement struct {
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	Day         int     `json:"day"`
	DecimalDate float64 `json:"decimal_date"`
	CO2         float64 `json:"co2"`
}

// DateKey is the natural key shared by staging and harmonized rows.
type DateKey struct {
	Year  int
	Month int
	Day   int
}

// Key returns the measurement's date key.
func (m Measurement) Key() DateKey {
	return DateKey{Year: m.Year, Month: m.Month, Day: m.Day}
}

// Less orders date keys chronologically.
func (k DateKey) Less(o DateKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	if k.Month != o.Month {
		return k.Month < o.Month
	}
	return k.Day < o.Day
}

// StagedBatch is a parsed feed bound for a single object store key.
type StagedBatch struct {
	Records []Measurement
	Key     string
}

// ParseCO2Feed converts the raw NOAA daily feed into measurements. Comment and
// blank lines are skipped. Any data line without exactly five fields, or with
// a field that does not cast, fails the whole feed with a *ShapeError.
func ParseCO2Feed(payload string) ([]Measurement, error) {
	var records []Measurement
	for i, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m, err := parseMeasurementLine(i+1, line)
		if err != nil {
			return nil, err
		}
		records = append(records, m)
	}
	if len(records) == 0 {
		return nil, &ShapeError{Fields: 0, Err: errNoDataLines}
	}
	return records, nil
}

func parseMeasurementLine(lineNum int, line string) (Measurement, error) {
	fields := strings.Fields(line)
	if len(fields) != MeasurementFields {
		return Measurement{}, &ShapeError{Line: lineNum, Fields: len(fields)}
	}
	return measurementFromFields(lineNum, fields)
}

func measurementFromFields(lineNum int, fields []string) (Measurement, error) {
	ints := make([]int, 3)
	for j := 0; j < 3; j++ {
		v, err := strconv.Atoi(strings.TrimSpace(fields[j]))
		if err != nil {
			return Measurement{}, &ShapeError{Line: lineNum, Fields: len(fields), Err: fmt.Errorf("%s: %w", CSVHeader[j], err)}
		}
		ints[j] = v
	}
	floats := make([]float64, 2)
	for j := 3; j < MeasurementFields; j++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[j]), 64)
		if err != nil {
			return Measurement{}, &ShapeError{Line: lineNum, Fields: len(fields), Err: fmt.Errorf("%s: %w", CSVHeader[j], err)}
		}
		floats[j-3] = v
	}
	return Measurement{
		Year:        ints[0],
		Month:       ints[1],
		Day:         ints[2],
		DecimalDate: floats[0],
		CO2:         floats[1],
	}, nil
}

// EncodeCSV serializes measurements with a header row. Output depends only on
// the records, so identical input always yields identical bytes.
func EncodeCSV(records []Measurement) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, m := range records {
		row := []string{
			strconv.Itoa(m.Year),
			strconv.Itoa(m.Month),
			strconv.Itoa(m.Day),
			strconv.FormatFloat(m.DecimalDate, 'f', -1, 64),
			strconv.FormatFloat(m.CO2, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCSV parses a staged batch produced by EncodeCSV.
func DecodeCSV(data []byte) ([]Measurement, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, &ShapeError{Err: errNoDataLines}
	}
	if len(rows[0]) != MeasurementFields {
		return nil, &ShapeError{Line: 1, Fields: len(rows[0])}
	}
	records := make([]Measurement, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != MeasurementFields {
			return nil, &ShapeError{Line: i + 2, Fields: len(row)}
		}
		m, err := measurementFromFields(i+2, row)
		if err != nil {
			return nil, err
		}
		records = append(records, m)
	}
	return records, nil
}

// SortByDate orders measurements by (year, month, day) in place.
func SortByDate(records []Measurement) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Key().Less(records[j].Key())
	})
}
