package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, "https://gml.noaa.gov/webdata/ccgg/trends/co2/co2_daily_mlo.txt", cfg.CO2FeedURL)
	assert.Equal(t, BackendS3, cfg.StageBackend)
	assert.Equal(t, "big.data.ass3", cfg.StageBucket)
	assert.Equal(t, "co2_data/co2_dataset.csv", cfg.StageKey)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)

	assert.Equal(t, DefaultStations, cfg.WeatherStations)
	assert.Equal(t, 2020, cfg.WeatherStartYear)
	assert.Equal(t, "boston_tavg_2020_present.json", cfg.WeatherOutput)
	assert.Equal(t, 3, cfg.WeatherMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.WeatherRetryDelay)
	assert.Equal(t, 1, cfg.WeatherWorkers)
	assert.InDelta(t, 5.0, cfg.WeatherRateLimit, 0)

	assert.Equal(t, DialectSnowflake, cfg.Dialect)
	assert.Equal(t, "ACCOUNTADMIN", cfg.Snowflake.Role)
	assert.Equal(t, "0 8 * * *", cfg.MergeCron)
	assert.InDelta(t, 400.0, cfg.ReferencePPM, 0)

	assert.False(t, cfg.KafkaEnabled())
	assert.False(t, cfg.SlackEnabled())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("STAGE_BACKEND", "FS")
	t.Setenv("STAGE_DIR", "/tmp/stage")
	t.Setenv("WEATHER_STATIONS", "GHCND:A, GHCND:B ,")
	t.Setenv("WEATHER_START_YEAR", "2023")
	t.Setenv("WEATHER_WORKERS", "4")
	t.Setenv("WEATHER_RETRY_DELAY", "250ms")
	t.Setenv("WAREHOUSE_DIALECT", "duckdb")
	t.Setenv("DUCKDB_PATH", "/tmp/co2.duckdb")
	t.Setenv("MERGE_CRON", "*/5 * * * *")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("SLACK_TOKEN", "xoxb-test")
	t.Setenv("SLACK_CHANNEL", "#co2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, BackendFS, cfg.StageBackend)
	assert.Equal(t, "/tmp/stage", cfg.StageDir)
	assert.Equal(t, []string{"GHCND:A", "GHCND:B"}, cfg.WeatherStations)
	assert.Equal(t, 2023, cfg.WeatherStartYear)
	assert.Equal(t, "boston_tavg_2023_present.json", cfg.WeatherOutput)
	assert.Equal(t, 4, cfg.WeatherWorkers)
	assert.Equal(t, 250*time.Millisecond, cfg.WeatherRetryDelay)
	assert.Equal(t, DialectDuckDB, cfg.Dialect)
	assert.Equal(t, "/tmp/co2.duckdb", cfg.DuckDBPath)
	assert.Equal(t, "*/5 * * * *", cfg.MergeCron)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.True(t, cfg.SlackEnabled())
}

func TestLoad_SnowflakeAccountSuffixStripped(t *testing.T) {
	t.Setenv("SNOWFLAKE_ACCOUNT", "xy12345.us-east-1.snowflakecomputing.com")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "xy12345.us-east-1", cfg.Snowflake.Account)
}

func TestSnowflake_Validate(t *testing.T) {
	full := Snowflake{
		Account:   "acct",
		User:      "etl",
		Password:  "secret",
		Warehouse: "COMPUTE_WH",
		Database:  "CO2_DB",
		Schema:    "RAW_DATA",
		Role:      "ACCOUNTADMIN",
	}
	require.NoError(t, full.Validate())

	missing := full
	missing.Schema = ""
	err := missing.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SNOWFLAKE_SCHEMA")

	noRole := full
	noRole.Role = ""
	assert.NoError(t, noRole.Validate())
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"WEATHER_RETRY_DELAY":  "-1s",
		"WEATHER_START_YEAR":   "twenty",
		"WEATHER_MAX_ATTEMPTS": "0",
		"WEATHER_WORKERS":      "-2",
		"WEATHER_RATE_LIMIT":   "fast",
		"CO2_REFERENCE_PPM":    "0",
		"STAGE_BACKEND":        "ftp",
		"WAREHOUSE_DIALECT":    "oracle",
		"MERGE_CRON":           "every morning",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_SlackTokenWithoutChannel(t *testing.T) {
	t.Setenv("SLACK_TOKEN", "xoxb-test")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SLACK_CHANNEL")
}
