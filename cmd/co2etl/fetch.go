package main

import (
	"errors"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/co2-weather-etl/internal/adapter/kafka"
	"github.com/couchcryptid/co2-weather-etl/internal/adapter/noaa"
	"github.com/couchcryptid/co2-weather-etl/internal/adapter/objectstore"
	slackadapter "github.com/couchcryptid/co2-weather-etl/internal/adapter/slack"
	"github.com/couchcryptid/co2-weather-etl/internal/config"
	"github.com/couchcryptid/co2-weather-etl/internal/domain"
	"github.com/couchcryptid/co2-weather-etl/internal/pipeline"
)

var (
	fetchTimeout  time.Duration
	weatherOutput string

	fetchCO2Cmd = &cobra.Command{
		Use:   "fetch-co2",
		Short: "Fetch the daily CO2 feed and stage it as CSV in the object store",
		RunE:  runFetchCO2,
	}

	fetchWeatherCmd = &cobra.Command{
		Use:   "fetch-weather",
		Short: "Collect daily average temperature for each station and year into a JSON file",
		RunE:  runFetchWeather,
	}
)

func init() {
	fetchCO2Cmd.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second, "HTTP timeout for the feed request")
	fetchWeatherCmd.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second, "HTTP timeout per API request")
	fetchWeatherCmd.Flags().StringVar(&weatherOutput, "out", "", "output file (default $WEATHER_OUTPUT)")
	rootCmd.AddCommand(fetchCO2Cmd, fetchWeatherCmd)
}

func runFetchCO2(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := objectstore.New(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	bucket := a.cfg.StageBucket
	if a.cfg.StageBackend == config.BackendFS {
		bucket = a.cfg.StageDir
	}

	feed := noaa.NewFeedClient(a.cfg.CO2FeedURL, fetchTimeout, a.metrics, a.logger)
	ingest := pipeline.NewCO2Ingest(feed, store, bucket, a.cfg.StageKey, a.logger, a.metrics)

	if a.cfg.KafkaEnabled() {
		w := kafka.NewWriter(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, a.logger)
		defer func() {
			if err := w.Close(); err != nil {
				a.logger.Error("kafka writer close error", "error", err)
			}
		}()
		ingest.WithPublisher(w)
	}
	if a.cfg.SlackEnabled() {
		ingest.WithNotifier(slackadapter.NewNotifier(a.cfg.SlackToken, a.cfg.SlackChannel, a.logger))
	}

	event, err := ingest.Run(ctx, a.runID)
	if err != nil {
		return err
	}

	printOK("CO2 batch staged")
	printField("location", store.Location()+event.Key)
	printField("rows", event.Rows)
	printField("bytes", event.Bytes)
	printField("sha256", event.SHA256)
	return nil
}

func runFetchWeather(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if a.cfg.CDOToken == "" {
		return errors.New("NOAA_TOKEN is required")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := a.cfg.WeatherOutput
	if weatherOutput != "" {
		out = weatherOutput
	}
	sink, err := objectstore.NewFS(filepath.Dir(out))
	if err != nil {
		return err
	}

	client := noaa.NewCDOClient(a.cfg.CDOBaseURL, a.cfg.CDOToken, noaa.CDOOptions{
		Timeout:     fetchTimeout,
		MaxAttempts: a.cfg.WeatherMaxAttempts,
		RetryDelay:  a.cfg.WeatherRetryDelay,
		RateLimit:   a.cfg.WeatherRateLimit,
	}, a.metrics, a.logger)

	pairs := domain.StationYears(a.cfg.WeatherStations, a.cfg.WeatherStartYear)
	collect := pipeline.NewWeatherCollect(client, sink, a.cfg.WeatherWorkers, a.logger, a.metrics)

	res, err := collect.Run(ctx, a.runID, pairs, filepath.Base(out))
	if err != nil {
		return err
	}

	printOK("weather collection written")
	printField("file", sink.Location()+filepath.Base(out))
	printField("observations", len(res.Observations))
	printField("requests", res.Requested)
	printField("skipped", len(res.Skipped))
	return nil
}

