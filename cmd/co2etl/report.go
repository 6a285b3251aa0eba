package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/co2-weather-etl/internal/adapter/excel"
	"github.com/couchcryptid/co2-weather-etl/internal/warehouse"
)

var (
	reportOut string

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Run the verification step and export it with the monthly summary to XLSX",
		RunE:  runReport,
	}
)

func init() {
	reportCmd.Flags().StringVar(&reportOut, "out", "co2_report.xlsx", "workbook path")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, conn, dialect, err := openRunner(ctx, a)
	if err != nil {
		return err
	}
	defer conn.Close()

	report, err := runner.Run(ctx, warehouse.StepVerify)
	if err != nil {
		return err
	}
	summary, err := runner.MonthlySummary(ctx)
	if err != nil {
		return err
	}

	err = excel.Write(reportOut, excel.Report{
		RunID:       a.runID,
		Dialect:     dialect.Name,
		GeneratedAt: time.Now(),
		Warehouse:   report,
		Summary:     summary,
	})
	if err != nil {
		return err
	}

	printOK("report written")
	printField("file", reportOut)
	printField("months", len(summary))
	printField("harmonized", report.HarmonizedRows)
	printField("task runs", fmt.Sprint(len(report.TaskHistory)))
	return nil
}
