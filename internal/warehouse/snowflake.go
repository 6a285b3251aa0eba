package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/guregu/null"
)

const createIntegrationSQL = `{{if not .IntegrationExists}}
CREATE STORAGE INTEGRATION {{.Integration}}
    TYPE = EXTERNAL_STAGE
    STORAGE_PROVIDER = '{{.StorageProvider}}'
{{- if eq .StorageProvider "S3"}}
    STORAGE_AWS_ROLE_ARN = '{{.AWSRoleARN}}'
{{- end}}
    ENABLED = TRUE
    STORAGE_ALLOWED_LOCATIONS = ('{{.StageURL}}')
{{end}}`

const (
	snowflakeStageSQL = `
CREATE OR REPLACE STAGE {{.Stage}}
    STORAGE_INTEGRATION = {{.Integration}}
    URL = '{{.StageURL}}'`

	snowflakeFileFormatSQL = `
CREATE OR REPLACE FILE FORMAT {{.FileFormat}}
    TYPE = CSV
    FIELD_DELIMITER = ','
    SKIP_HEADER = 1
    NULL_IF = ('NULL', 'null', '')
    EMPTY_FIELD_AS_NULL = TRUE`

	snowflakeStagingSQL = `
CREATE OR REPLACE TABLE {{.Staging}} (
    YEAR INT,
    MONTH INT,
    DAY INT,
    DECIMAL_DATE FLOAT,
    CO2 FLOAT
)`

	snowflakeCopySQL = `
COPY INTO {{.Staging}}
    FROM @{{.Stage}}/{{.StagedKey}}
    FILE_FORMAT = (FORMAT_NAME = '{{.FileFormat}}')
    FORCE = TRUE`

	snowflakeHarmonizedSQL = `
CREATE OR REPLACE TABLE {{.Harmonized}} AS
    SELECT YEAR, MONTH, DAY, DECIMAL_DATE, CO2 FROM {{.Staging}}`

	snowflakeAddNormalizedSQL = `ALTER TABLE {{.Harmonized}} ADD COLUMN NORMALIZED_CO2 FLOAT`

	normalizeSQL = `UPDATE {{.Harmonized}} SET NORMALIZED_CO2 = CO2 / {{.Reference}}`

	aggregateSQL = `
CREATE OR REPLACE TABLE {{.Aggregate}} AS
    SELECT
        YEAR,
        MONTH,
        AVG(CO2) AS AVG_CO2,
        MAX(CO2) AS MAX_CO2,
        MIN(CO2) AS MIN_CO2
    FROM {{.Harmonized}}
    GROUP BY YEAR, MONTH`

	snowflakeDailyFuncSQL = `
CREATE OR REPLACE FUNCTION {{.DailyFunc}}(CURRENT_VALUE FLOAT, PREVIOUS_VALUE FLOAT)
    RETURNS FLOAT
    AS $$
        CASE WHEN PREVIOUS_VALUE IS NULL OR PREVIOUS_VALUE = 0 THEN NULL
             ELSE (CURRENT_VALUE - PREVIOUS_VALUE) / PREVIOUS_VALUE * 100
        END
    $$`

	snowflakeWeeklyFuncSQL = `
CREATE OR REPLACE FUNCTION {{.WeeklyFunc}}(CURRENT_VALUE FLOAT, WEEK_AGO_VALUE FLOAT)
    RETURNS FLOAT
    AS $$
        CASE WHEN WEEK_AGO_VALUE IS NULL OR WEEK_AGO_VALUE = 0 THEN NULL
             ELSE (CURRENT_VALUE - WEEK_AGO_VALUE) / WEEK_AGO_VALUE * 100
        END
    $$`

	dailyChangeSQL = `
CREATE OR REPLACE TABLE {{.DailyChange}} AS
    SELECT
        YEAR,
        MONTH,
        DAY,
        CO2,
        {{.DailyFunc}}(CO2, LAG(CO2) OVER (ORDER BY YEAR, MONTH, DAY)) AS DAILY_PERCENT_CHANGE
    FROM {{.Harmonized}}`

	weeklyChangeSQL = `
CREATE OR REPLACE TABLE {{.WeeklyChange}} AS
    SELECT
        YEAR,
        MONTH,
        DAY,
        CO2,
        {{.WeeklyFunc}}(CO2, LAG(CO2, 7) OVER (ORDER BY YEAR, MONTH, DAY)) AS WEEKLY_PERCENT_CHANGE
    FROM {{.Harmonized}}`

	snowflakeProcedureSQL = `
CREATE OR REPLACE PROCEDURE {{.Procedure}}()
    RETURNS STRING
    LANGUAGE SQL
    AS
    $$
    BEGIN
        MERGE INTO {{.Harmonized}} AS TARGET
        USING (SELECT * FROM {{.Staging}}) AS SOURCE
        ON TARGET.YEAR = SOURCE.YEAR AND TARGET.MONTH = SOURCE.MONTH AND TARGET.DAY = SOURCE.DAY
        WHEN MATCHED THEN
            UPDATE SET TARGET.CO2 = SOURCE.CO2, TARGET.NORMALIZED_CO2 = SOURCE.CO2 / {{.Reference}}
        WHEN NOT MATCHED THEN
            INSERT (YEAR, MONTH, DAY, DECIMAL_DATE, CO2, NORMALIZED_CO2)
            VALUES (SOURCE.YEAR, SOURCE.MONTH, SOURCE.DAY, SOURCE.DECIMAL_DATE, SOURCE.CO2, SOURCE.CO2 / {{.Reference}});
        RETURN 'Update Successful!';
    END;
    $$`

	snowflakeTaskSQL = `
CREATE OR REPLACE TASK {{.Task}}
{{- if .Warehouse}}
    WAREHOUSE = {{.Warehouse}}
{{- end}}
    SCHEDULE = 'USING CRON {{.Cron}} UTC'
    ALLOW_OVERLAPPING_EXECUTION = FALSE
    AS
    CALL {{.Procedure}}()`

	snowflakeResumeTaskSQL = `ALTER TASK {{.Task}} RESUME`

	countHarmonizedSQL = `SELECT COUNT(*) FROM {{.Harmonized}}`

	snowflakeTaskHistorySQL = `
SELECT NAME, STATE, SCHEDULED_TIME, COMPLETED_TIME, ERROR_MESSAGE
    FROM TABLE(INFORMATION_SCHEMA.TASK_HISTORY(TASK_NAME => '{{.Task}}'))
    ORDER BY SCHEDULED_TIME DESC
    LIMIT 10`

	snowflakeMergeSQL = `CALL {{.Procedure}}()`
)

// TaskRun is one row of warehouse task execution history.
type TaskRun struct {
	Name          string      `db:"NAME"`
	State         string      `db:"STATE"`
	ScheduledTime null.Time   `db:"SCHEDULED_TIME"`
	CompletedTime null.Time   `db:"COMPLETED_TIME"`
	ErrorMessage  null.String `db:"ERROR_MESSAGE"`
}

// Snowflake returns the full step sequence for a Snowflake account. The
// warehouse owns the merge schedule through a TASK, which never overlaps
// itself.
func Snowflake() Dialect {
	return Dialect{
		Name: "snowflake",
		Steps: []Step{
			{
				Name:       StepEnsureIntegration,
				Fatal:      true,
				Statements: []string{createIntegrationSQL},
				Run:        ensureIntegration,
			},
			{
				Name:       StepLoadStaging,
				Fatal:      true,
				Statements: []string{snowflakeStageSQL, snowflakeFileFormatSQL, snowflakeStagingSQL, snowflakeCopySQL},
				Run:        loadStaging,
			},
			{
				Name:       StepBuildHarmonized,
				Statements: []string{snowflakeHarmonizedSQL, snowflakeAddNormalizedSQL, normalizeSQL},
			},
			{
				Name:       StepBuildAggregates,
				Statements: []string{aggregateSQL},
			},
			{
				Name:       StepRegisterTransforms,
				Statements: []string{snowflakeDailyFuncSQL, snowflakeWeeklyFuncSQL},
			},
			{
				Name:       StepBuildChangeTables,
				Statements: []string{dailyChangeSQL, weeklyChangeSQL},
			},
			{
				Name:       StepRegisterMerge,
				Statements: []string{snowflakeProcedureSQL},
			},
			{
				Name:       StepScheduleMerge,
				Statements: []string{snowflakeTaskSQL, snowflakeResumeTaskSQL},
			},
			{
				Name:       StepVerify,
				Statements: []string{countHarmonizedSQL, snowflakeTaskHistorySQL},
				Run:        verifySnowflake,
			},
		},
		Merge:              snowflakeMergeSQL,
		MergeReturnsStatus: true,
		Scheduled:          true,
	}
}

// IntegrationExists reports whether a storage integration with the given
// name is visible to the current role.
func IntegrationExists(ctx context.Context, conn *Conn, name string) (bool, error) {
	rows, err := conn.Query(ctx, StepEnsureIntegration, "SHOW STORAGE INTEGRATIONS")
	if err != nil {
		return false, fmt.Errorf("list storage integrations: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return false, fmt.Errorf("list storage integrations: %w", err)
	}
	nameIdx := -1
	for i, c := range cols {
		if strings.EqualFold(c, "name") {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return false, errors.New("list storage integrations: no name column")
	}

	found := false
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return false, fmt.Errorf("scan storage integration: %w", err)
		}
		if strings.EqualFold(asString(vals[nameIdx]), name) {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("list storage integrations: %w", err)
	}
	return found, nil
}

// EnsureIntegration creates the storage integration only when it is missing.
// An existing integration is never replaced, which would break the trust
// policy bound to it.
func EnsureIntegration(ctx context.Context, conn *Conn, p Params) (EnsureResult, error) {
	exists, err := IntegrationExists(ctx, conn, p.Integration)
	if err != nil {
		return EnsureFailed, err
	}
	if exists {
		return EnsureAlreadyPresent, nil
	}
	if p.StorageProvider() == "S3" && p.AWSRoleARN == "" {
		return EnsureFailed, errors.New("AWS_ROLE_ARN is required to create the storage integration")
	}

	p.IntegrationExists = false
	query, err := render(StepEnsureIntegration, createIntegrationSQL, p)
	if err != nil {
		return EnsureFailed, err
	}
	if _, err := conn.Exec(ctx, StepEnsureIntegration, query); err != nil {
		return EnsureFailed, fmt.Errorf("create storage integration: %w", err)
	}
	return EnsureCreated, nil
}

func ensureIntegration(ctx context.Context, r *Runner) error {
	result, err := EnsureIntegration(ctx, r.conn, r.params)
	r.report.Integration = result
	if err != nil {
		return err
	}
	r.params.IntegrationExists = true
	r.logger.Info("storage integration ensured", "integration", r.params.Integration, "result", result.String())
	return nil
}

// loadStaging recreates staging before the forced copy so reloads never
// duplicate rows, then records the ingested count.
func loadStaging(ctx context.Context, r *Runner) error {
	step := r.dialect.Steps[r.dialect.indexOf(StepLoadStaging)]
	if err := r.execStatements(ctx, step); err != nil {
		return err
	}
	n, err := r.countRows(ctx, StepLoadStaging, r.params.Staging)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStagingEmpty
	}
	r.report.StagingRows = n
	r.metrics.StagingRows.Set(float64(n))
	r.logger.Info("staging loaded", "table", r.params.Staging, "rows", n)
	return nil
}

func verifySnowflake(ctx context.Context, r *Runner) error {
	if err := verifyCount(ctx, r); err != nil {
		return err
	}
	query, err := render(StepVerify, snowflakeTaskHistorySQL, r.params)
	if err != nil {
		return err
	}
	var history []TaskRun
	if err := r.conn.Select(ctx, StepVerify, &history, query); err != nil {
		return fmt.Errorf("read task history: %w", err)
	}
	r.report.TaskHistory = history
	r.logger.Info("task history read", "task", r.params.Task, "runs", len(history))
	return nil
}

func verifyCount(ctx context.Context, r *Runner) error {
	n, err := r.countRows(ctx, StepVerify, r.params.Harmonized)
	if err != nil {
		return err
	}
	r.report.HarmonizedRows = n
	r.logger.Info("harmonized rows", "table", r.params.Harmonized, "rows", n)
	return nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
