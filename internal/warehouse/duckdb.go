package warehouse

const (
	duckdbStagingSQL = `
CREATE OR REPLACE TABLE {{.Staging}} (
    YEAR INTEGER,
    MONTH INTEGER,
    DAY INTEGER,
    DECIMAL_DATE DOUBLE,
    CO2 DOUBLE
)`

	duckdbCopySQL = `
INSERT INTO {{.Staging}}
    SELECT * FROM read_csv('{{.StageURL}}{{.StagedKey}}',
        header = true,
        delim = ',',
        nullstr = 'NULL',
        columns = {'year': 'INTEGER', 'month': 'INTEGER', 'day': 'INTEGER', 'decimal_date': 'DOUBLE', 'co2': 'DOUBLE'})`

	duckdbHarmonizedSQL = `
CREATE OR REPLACE TABLE {{.Harmonized}} (
    YEAR INTEGER,
    MONTH INTEGER,
    DAY INTEGER,
    DECIMAL_DATE DOUBLE,
    CO2 DOUBLE,
    NORMALIZED_CO2 DOUBLE,
    PRIMARY KEY (YEAR, MONTH, DAY)
)`

	duckdbProjectSQL = `
INSERT INTO {{.Harmonized}} (YEAR, MONTH, DAY, DECIMAL_DATE, CO2)
    SELECT YEAR, MONTH, DAY, DECIMAL_DATE, CO2 FROM {{.Staging}}`

	duckdbDailyFuncSQL = `
CREATE OR REPLACE MACRO {{.DailyFunc}}(current_value, previous_value) AS
    CASE WHEN previous_value IS NULL OR previous_value = 0 THEN NULL
         ELSE (current_value - previous_value) / previous_value * 100
    END`

	duckdbWeeklyFuncSQL = `
CREATE OR REPLACE MACRO {{.WeeklyFunc}}(current_value, week_ago_value) AS
    CASE WHEN week_ago_value IS NULL OR week_ago_value = 0 THEN NULL
         ELSE (current_value - week_ago_value) / week_ago_value * 100
    END`

	duckdbMergeSQL = `
INSERT INTO {{.Harmonized}} (YEAR, MONTH, DAY, DECIMAL_DATE, CO2, NORMALIZED_CO2)
    SELECT YEAR, MONTH, DAY, DECIMAL_DATE, CO2, CO2 / {{.Reference}} FROM {{.Staging}}
    ON CONFLICT (YEAR, MONTH, DAY) DO UPDATE SET
        CO2 = EXCLUDED.CO2,
        NORMALIZED_CO2 = EXCLUDED.NORMALIZED_CO2`
)

// DuckDB returns the step sequence for a local DuckDB warehouse reading a
// filesystem stage. There is no storage integration, the merge is a plain
// upsert statement, and its schedule is owned by the process.
func DuckDB() Dialect {
	return Dialect{
		Name: "duckdb",
		Steps: []Step{
			{
				Name:       StepLoadStaging,
				Fatal:      true,
				Statements: []string{duckdbStagingSQL, duckdbCopySQL},
				Run:        loadStaging,
			},
			{
				Name:       StepBuildHarmonized,
				Statements: []string{duckdbHarmonizedSQL, duckdbProjectSQL, normalizeSQL},
			},
			{
				Name:       StepBuildAggregates,
				Statements: []string{aggregateSQL},
			},
			{
				Name:       StepRegisterTransforms,
				Statements: []string{duckdbDailyFuncSQL, duckdbWeeklyFuncSQL},
			},
			{
				Name:       StepBuildChangeTables,
				Statements: []string{dailyChangeSQL, weeklyChangeSQL},
			},
			{
				Name:       StepVerify,
				Statements: []string{countHarmonizedSQL},
				Run:        verifyCount,
			},
		},
		Merge: duckdbMergeSQL,
	}
}
