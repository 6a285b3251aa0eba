package excel

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/guregu/null"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/co2-weather-etl/internal/domain"
	"github.com/couchcryptid/co2-weather-etl/internal/warehouse"
)

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	scheduled := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	r := Report{
		RunID:       "run-1",
		Dialect:     "snowflake",
		GeneratedAt: time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC),
		Warehouse: warehouse.Report{
			Integration:    warehouse.EnsureAlreadyPresent,
			StagingRows:    3,
			HarmonizedRows: 3,
			StepsRun:       []string{"verify"},
			TaskHistory: []warehouse.TaskRun{
				{Name: "UPDATE_CO2_DATA", State: "SUCCEEDED", ScheduledTime: null.TimeFrom(scheduled), CompletedTime: null.TimeFrom(scheduled.Add(time.Minute))},
				{Name: "UPDATE_CO2_DATA", State: "FAILED", ScheduledTime: null.TimeFrom(scheduled.Add(-24 * time.Hour)), ErrorMessage: null.StringFrom("warehouse suspended")},
			},
		},
		Summary: []domain.MonthlyAggregate{
			{Year: 2024, Month: 1, Avg: 422.5, Max: 423, Min: 422},
			{Year: 2024, Month: 2, Avg: 424.25, Max: 425.5, Min: 423},
		},
	}

	require.NoError(t, Write(path, r))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetRun, SheetSummary, SheetTaskHistory}, f.GetSheetList())

	runRows, err := f.GetRows(SheetRun)
	require.NoError(t, err)
	assert.Equal(t, []string{"Run ID", "run-1"}, runRows[0])
	assert.Equal(t, []string{"Integration", "already-present"}, runRows[3])
	assert.Equal(t, []string{"Staging rows", "3"}, runRows[4])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, summaryHeaders, summary[0])
	assert.Equal(t, []string{"2024", "2", "424.25", "425.5", "423"}, summary[2])

	history, err := f.GetRows(SheetTaskHistory)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []string{"UPDATE_CO2_DATA", "SUCCEEDED", "2024-03-01T08:00:00Z", "2024-03-01T08:01:00Z"}, history[1])
	assert.Equal(t, "", history[2][3])
	assert.Equal(t, "warehouse suspended", history[2][4])
}

func TestWrite_EmptyReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, Write(path, Report{RunID: "run-2", Dialect: "duckdb"}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
