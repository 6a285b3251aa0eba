package domain

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `# --------------------------------------------------------------------
# USE OF NOAA GML DATA
#
# year month day decimal     co2
  1974     5    19   1974.3781     333.37
  1974     5    20   1974.3808     333.43

  2024     1     1   2024.0014     422.09
  2024     1     2   2024.0041     422.56
`

func TestParseCO2Feed(t *testing.T) {
	records, err := ParseCO2Feed(sampleFeed)
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, Measurement{Year: 1974, Month: 5, Day: 19, DecimalDate: 1974.3781, CO2: 333.37}, records[0])
	assert.Equal(t, Measurement{Year: 2024, Month: 1, Day: 2, DecimalDate: 2024.0041, CO2: 422.56}, records[3])
}

func TestParseCO2Feed_CRLF(t *testing.T) {
	records, err := ParseCO2Feed("# header\r\n2024 1 1 2024.0014 422.09\r\n")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 422.09, records[0].CO2)
}

func TestParseCO2Feed_ShapeErrors(t *testing.T) {
	cases := []struct {
		name     string
		payload  string
		wantLine int
		fields   int
	}{
		{name: "four fields", payload: "2024 1 1 2024.0014 422.09\n2024 1 2 2024.0041\n", wantLine: 2, fields: 4},
		{name: "six fields", payload: "2024 1 1 2024.0014 422.09 -999.99\n", wantLine: 1, fields: 6},
		{name: "bad integer", payload: "2024 Jan 1 2024.0014 422.09\n", wantLine: 1, fields: 5},
		{name: "bad float", payload: "# c\n2024 1 1 2024.0014 n/a\n", wantLine: 2, fields: 5},
		{name: "only comments", payload: "# nothing here\n\n", wantLine: 0, fields: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records, err := ParseCO2Feed(tc.payload)
			require.Error(t, err)
			assert.Nil(t, records, "no partial table on shape errors")

			var shapeErr *ShapeError
			require.ErrorAs(t, err, &shapeErr)
			assert.Equal(t, tc.wantLine, shapeErr.Line)
			assert.Equal(t, tc.fields, shapeErr.Fields)
		})
	}
}

func TestShapeError_Message(t *testing.T) {
	err := &ShapeError{Line: 7, Fields: 4}
	assert.Equal(t, "malformed feed at line 7: expected 5 fields, got 4", err.Error())
}

func TestEncodeCSV_Layout(t *testing.T) {
	data, err := EncodeCSV([]Measurement{
		{Year: 2024, Month: 1, Day: 1, DecimalDate: 2024.0014, CO2: 422.09},
		{Year: 2024, Month: 1, Day: 2, DecimalDate: 2024.0041, CO2: 400},
	})
	require.NoError(t, err)
	assert.Equal(t, "year,month,day,decimal_date,co2\n2024,1,1,2024.0014,422.09\n2024,1,2,2024.0041,400\n", string(data))
}

func TestEncodeCSV_Deterministic(t *testing.T) {
	records, err := ParseCO2Feed(sampleFeed)
	require.NoError(t, err)

	first, err := EncodeCSV(records)
	require.NoError(t, err)
	second, err := EncodeCSV(records)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCSVRoundTrip_ExactValues(t *testing.T) {
	records := []Measurement{
		{Year: 1974, Month: 5, Day: 19, DecimalDate: 1974.3781, CO2: 333.37},
		{Year: 2000, Month: 12, Day: 31, DecimalDate: 2000.9986338797814, CO2: 369.1234567890123},
		{Year: 2024, Month: 2, Day: 29, DecimalDate: 2024.1626, CO2: 0.1 + 0.2},
	}

	data, err := EncodeCSV(records)
	require.NoError(t, err)
	decoded, err := DecodeCSV(data)
	require.NoError(t, err)

	if diff := cmp.Diff(records, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeCSV_RejectsShortRow(t *testing.T) {
	_, err := DecodeCSV([]byte("year,month,day,decimal_date,co2\n2024,1,1,2024.0014\n"))
	var shapeErr *ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 2, shapeErr.Line)
}

func TestSortByDate(t *testing.T) {
	records := []Measurement{
		{Year: 2024, Month: 2, Day: 1},
		{Year: 2023, Month: 12, Day: 31},
		{Year: 2024, Month: 1, Day: 15},
	}
	SortByDate(records)
	assert.Equal(t, DateKey{2023, 12, 31}, records[0].Key())
	assert.Equal(t, DateKey{2024, 1, 15}, records[1].Key())
	assert.Equal(t, DateKey{2024, 2, 1}, records[2].Key())
}
