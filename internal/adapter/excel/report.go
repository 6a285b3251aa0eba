// Package excel exports warehouse verification results as an XLSX workbook.
package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/co2-weather-etl/internal/domain"
	"github.com/couchcryptid/co2-weather-etl/internal/warehouse"
)

// Sheet names.
const (
	SheetRun         = "Run"
	SheetSummary     = "Monthly Summary"
	SheetTaskHistory = "Task History"
)

var (
	summaryHeaders = []string{"Year", "Month", "Avg CO2", "Max CO2", "Min CO2"}
	historyHeaders = []string{"Task", "State", "Scheduled", "Completed", "Error"}
)

// Report is the content of one exported workbook.
type Report struct {
	RunID       string
	Dialect     string
	GeneratedAt time.Time
	Warehouse   warehouse.Report
	Summary     []domain.MonthlyAggregate
}

// Write saves r to path, replacing any existing file.
func Write(path string, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRun); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRun(f, r); err != nil {
		return err
	}
	if err := writeSummary(f, r.Summary); err != nil {
		return err
	}
	if err := writeHistory(f, r.Warehouse.TaskHistory); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}

func writeRun(f *excelize.File, r Report) error {
	rows := [][]any{
		{"Run ID", r.RunID},
		{"Dialect", r.Dialect},
		{"Generated", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Integration", r.Warehouse.Integration.String()},
		{"Staging rows", r.Warehouse.StagingRows},
		{"Harmonized rows", r.Warehouse.HarmonizedRows},
		{"Steps run", strings.Join(r.Warehouse.StepsRun, ", ")},
	}
	for i, row := range rows {
		if err := setRow(f, SheetRun, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(f *excelize.File, summary []domain.MonthlyAggregate) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetSummary, err)
	}
	if err := setRow(f, SheetSummary, 1, headerRow(summaryHeaders)); err != nil {
		return err
	}
	for i, m := range summary {
		if err := setRow(f, SheetSummary, i+2, []any{m.Year, m.Month, m.Avg, m.Max, m.Min}); err != nil {
			return err
		}
	}
	return nil
}

func writeHistory(f *excelize.File, history []warehouse.TaskRun) error {
	if _, err := f.NewSheet(SheetTaskHistory); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetTaskHistory, err)
	}
	if err := setRow(f, SheetTaskHistory, 1, headerRow(historyHeaders)); err != nil {
		return err
	}
	for i, run := range history {
		row := []any{
			run.Name,
			run.State,
			formatTime(run.ScheduledTime.Time, run.ScheduledTime.Valid),
			formatTime(run.CompletedTime.Time, run.CompletedTime.Valid),
			run.ErrorMessage.String,
		}
		if err := setRow(f, SheetTaskHistory, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, rowNum, err)
	}
	return nil
}

func headerRow(headers []string) []any {
	out := make([]any, len(headers))
	for i, h := range headers {
		out[i] = h
	}
	return out
}

func formatTime(t time.Time, valid bool) string {
	if !valid {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
