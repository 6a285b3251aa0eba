package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/co2-weather-etl/internal/config"
	"github.com/couchcryptid/co2-weather-etl/internal/observability"
)

var (
	envFile string

	rootCmd = &cobra.Command{
		Use:           "co2etl",
		Short:         "CO2 and weather ETL",
		Long:          color.CyanString("co2etl - stage NOAA CO2 and weather data and build the warehouse tables"),
		SilenceUsage:  true,
	}
)

func init() {
	cobra.OnInitialize(loadEnvFile)
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
}

func loadEnvFile() {
	if envFile == "" {
		return
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, color.YellowString("warning: %s: %v", envFile, err))
	}
}

// app is the per-invocation state shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	runID   string
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	runID := uuid.NewString()
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat).With("run_id", runID)
	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		runID:   runID,
	}, nil
}

func printOK(format string, args ...any) {
	fmt.Println(color.GreenString("✔ "+format, args...))
}

func printField(name string, value any) {
	fmt.Printf("  %-16s %v\n", color.New(color.Bold).Sprint(name), value)
}
