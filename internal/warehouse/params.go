package warehouse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/co2-weather-etl/internal/config"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// Names are the warehouse object names used by every step.
type Names struct {
	Integration  string
	Stage        string
	FileFormat   string
	Staging      string
	Harmonized   string
	Aggregate    string
	DailyChange  string
	WeeklyChange string
	DailyFunc    string
	WeeklyFunc   string
	Procedure    string
	Task         string
}

// DefaultNames returns the standard object names.
func DefaultNames() Names {
	return Names{
		Integration:  "CO2_S3_INTEGRATION",
		Stage:        "CO2_STAGE",
		FileFormat:   "CO2_CSV_FORMAT",
		Staging:      "CO2_RAW_STAGING",
		Harmonized:   "CO2_HARMONIZED",
		Aggregate:    "CO2_MONTHLY_SUMMARY",
		DailyChange:  "CO2_DAILY_PERCENT_CHANGE",
		WeeklyChange: "CO2_WEEKLY_PERCENT_CHANGE",
		DailyFunc:    "CALCULATE_PERCENT_CHANGE",
		WeeklyFunc:   "CALCULATE_WEEKLY_PERCENT_CHANGE",
		Procedure:    "UPDATE_CO2_PROCEDURE",
		Task:         "UPDATE_CO2_DATA",
	}
}

func (n Names) list() []string {
	return []string{
		n.Integration, n.Stage, n.FileFormat, n.Staging, n.Harmonized, n.Aggregate,
		n.DailyChange, n.WeeklyChange, n.DailyFunc, n.WeeklyFunc, n.Procedure, n.Task,
	}
}

// Params is the data every statement template is rendered with.
type Params struct {
	Names

	AWSRoleARN        string
	StageURL          string
	StagedKey         string
	IntegrationExists bool
	Warehouse         string
	Cron              string
	ReferencePPM      float64
}

// NewParams builds statement parameters from the run configuration.
// stageURL is the object store root as the warehouse sees it.
func NewParams(cfg *config.Config, stageURL string) Params {
	return Params{
		Names:        DefaultNames(),
		AWSRoleARN:   cfg.AWSRoleARN,
		StageURL:     stageURL,
		StagedKey:    cfg.StageKey,
		Warehouse:    cfg.Snowflake.Warehouse,
		Cron:         cfg.MergeCron,
		ReferencePPM: cfg.ReferencePPM,
	}
}

// StorageProvider is the integration provider implied by the stage URL.
func (p Params) StorageProvider() string {
	switch {
	case strings.HasPrefix(p.StageURL, "gcs://"):
		return "GCS"
	case strings.HasPrefix(p.StageURL, "azure://"):
		return "AZURE"
	default:
		return "S3"
	}
}

// Reference renders the normalization constant as a float literal.
func (p Params) Reference() string {
	s := strconv.FormatFloat(p.ReferencePPM, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Validate rejects values that cannot be spliced into SQL safely.
func (p Params) Validate() error {
	for _, name := range p.Names.list() {
		if !identPattern.MatchString(name) {
			return fmt.Errorf("invalid object name %q", name)
		}
	}
	if p.Warehouse != "" && !identPattern.MatchString(p.Warehouse) {
		return fmt.Errorf("invalid warehouse name %q", p.Warehouse)
	}
	for label, v := range map[string]string{
		"aws role arn": p.AWSRoleARN,
		"stage url":    p.StageURL,
		"staged key":   p.StagedKey,
		"cron":         p.Cron,
	} {
		if strings.ContainsAny(v, `'\;`) {
			return fmt.Errorf("invalid %s %q", label, v)
		}
	}
	if p.StagedKey == "" {
		return fmt.Errorf("staged key is required")
	}
	if p.ReferencePPM <= 0 {
		return fmt.Errorf("reference ppm must be positive")
	}
	return nil
}
