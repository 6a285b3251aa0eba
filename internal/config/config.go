package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/robfig/cron/v3"
)

// Stage backends.
const (
	BackendS3  = "s3"
	BackendGCS = "gcs"
	BackendFS  = "fs"
)

// Warehouse dialects.
const (
	DialectSnowflake = "snowflake"
	DialectDuckDB    = "duckdb"
)

const snowflakeHostSuffix = ".snowflakecomputing.com"

// DefaultStations are the Boston-area GHCND stations collected by default.
var DefaultStations = []string{
	"GHCND:USW00014739",
	"GHCND:USW00014732",
	"GHCND:USW00014754",
	"GHCND:USW00014764",
	"GHCND:USW00014742",
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// CO2 feed and staging.
	CO2FeedURL   string
	StageBackend string
	StageBucket  string
	StageKey     string
	StageDir     string
	AWSRegion    string

	// NOAA CDO weather API.
	CDOBaseURL         string
	CDOToken           string
	WeatherStations    []string
	WeatherStartYear   int
	WeatherOutput      string
	WeatherMaxAttempts int
	WeatherRetryDelay  time.Duration
	WeatherWorkers     int
	WeatherRateLimit   float64

	// Warehouse.
	Dialect      string
	Snowflake    Snowflake
	DuckDBPath   string
	AWSRoleARN   string
	MergeCron    string
	ReferencePPM float64

	// Optional batch-staged notifications.
	KafkaBrokers []string
	KafkaTopic   string
	SlackToken   string
	SlackChannel string
}

// Snowflake holds warehouse connection parameters.
type Snowflake struct {
	Account   string
	User      string
	Password  string
	Warehouse string
	Database  string
	Schema    string
	Role      string
}

// Validate reports the first missing connection parameter. Role is the only
// parameter with a default.
func (s Snowflake) Validate() error {
	required := []struct{ env, val string }{
		{"SNOWFLAKE_ACCOUNT", s.Account},
		{"SNOWFLAKE_USER", s.User},
		{"SNOWFLAKE_PASSWORD", s.Password},
		{"SNOWFLAKE_WAREHOUSE", s.Warehouse},
		{"SNOWFLAKE_DATABASE", s.Database},
		{"SNOWFLAKE_SCHEMA", s.Schema},
	}
	for _, r := range required {
		if r.val == "" {
			return fmt.Errorf("%s is required", r.env)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	retryDelay, err := parsePositiveDuration("WEATHER_RETRY_DELAY", "5s")
	if err != nil {
		return nil, err
	}

	startYear, err := parsePositiveInt("WEATHER_START_YEAR", 2020)
	if err != nil {
		return nil, err
	}
	maxAttempts, err := parsePositiveInt("WEATHER_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	workers, err := parsePositiveInt("WEATHER_WORKERS", 1)
	if err != nil {
		return nil, err
	}

	rateLimit, err := parsePositiveFloat("WEATHER_RATE_LIMIT", 5)
	if err != nil {
		return nil, err
	}
	referencePPM, err := parsePositiveFloat("CO2_REFERENCE_PPM", 400)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CO2FeedURL:   sharedcfg.EnvOrDefault("CO2_FEED_URL", "https://gml.noaa.gov/webdata/ccgg/trends/co2/co2_daily_mlo.txt"),
		StageBackend: strings.ToLower(sharedcfg.EnvOrDefault("STAGE_BACKEND", BackendS3)),
		StageBucket:  sharedcfg.EnvOrDefault("STAGE_BUCKET", "big.data.ass3"),
		StageKey:     sharedcfg.EnvOrDefault("STAGE_KEY", "co2_data/co2_dataset.csv"),
		StageDir:     sharedcfg.EnvOrDefault("STAGE_DIR", "stage"),
		AWSRegion:    sharedcfg.EnvOrDefault("AWS_REGION", "us-east-1"),

		CDOBaseURL:         sharedcfg.EnvOrDefault("CDO_BASE_URL", "https://www.ncdc.noaa.gov/cdo-web/api/v2"),
		CDOToken:           os.Getenv("NOAA_TOKEN"),
		WeatherStations:    parseList(sharedcfg.EnvOrDefault("WEATHER_STATIONS", strings.Join(DefaultStations, ","))),
		WeatherStartYear:   startYear,
		WeatherMaxAttempts: maxAttempts,
		WeatherRetryDelay:  retryDelay,
		WeatherWorkers:     workers,
		WeatherRateLimit:   rateLimit,

		Dialect: strings.ToLower(sharedcfg.EnvOrDefault("WAREHOUSE_DIALECT", DialectSnowflake)),
		Snowflake: Snowflake{
			Account:   strings.TrimSuffix(os.Getenv("SNOWFLAKE_ACCOUNT"), snowflakeHostSuffix),
			User:      os.Getenv("SNOWFLAKE_USER"),
			Password:  os.Getenv("SNOWFLAKE_PASSWORD"),
			Warehouse: os.Getenv("SNOWFLAKE_WAREHOUSE"),
			Database:  os.Getenv("SNOWFLAKE_DATABASE"),
			Schema:    os.Getenv("SNOWFLAKE_SCHEMA"),
			Role:      sharedcfg.EnvOrDefault("SNOWFLAKE_ROLE", "ACCOUNTADMIN"),
		},
		DuckDBPath:   sharedcfg.EnvOrDefault("DUCKDB_PATH", "co2.duckdb"),
		AWSRoleARN:   os.Getenv("AWS_ROLE_ARN"),
		MergeCron:    sharedcfg.EnvOrDefault("MERGE_CRON", "0 8 * * *"),
		ReferencePPM: referencePPM,

		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "co2-batch-staged"),
		SlackToken:   os.Getenv("SLACK_TOKEN"),
		SlackChannel: os.Getenv("SLACK_CHANNEL"),
	}
	cfg.WeatherOutput = sharedcfg.EnvOrDefault("WEATHER_OUTPUT", fmt.Sprintf("boston_tavg_%d_present.json", cfg.WeatherStartYear))
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	switch cfg.StageBackend {
	case BackendS3, BackendGCS, BackendFS:
	default:
		return nil, fmt.Errorf("invalid STAGE_BACKEND %q", cfg.StageBackend)
	}
	switch cfg.Dialect {
	case DialectSnowflake, DialectDuckDB:
	default:
		return nil, fmt.Errorf("invalid WAREHOUSE_DIALECT %q", cfg.Dialect)
	}
	if cfg.StageKey == "" {
		return nil, errors.New("STAGE_KEY is required")
	}
	if len(cfg.WeatherStations) == 0 {
		return nil, errors.New("WEATHER_STATIONS is required")
	}
	if _, err := cron.ParseStandard(cfg.MergeCron); err != nil {
		return nil, fmt.Errorf("invalid MERGE_CRON: %w", err)
	}
	if cfg.SlackToken != "" && cfg.SlackChannel == "" {
		return nil, errors.New("SLACK_TOKEN is set but SLACK_CHANNEL is not")
	}

	return cfg, nil
}

// KafkaEnabled reports whether batch-staged events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// SlackEnabled reports whether operator notifications should be posted.
func (c *Config) SlackEnabled() bool {
	return c.SlackToken != ""
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}
