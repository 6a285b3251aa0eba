package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/co2-weather-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/co2-weather-etl/internal/config"
	"github.com/couchcryptid/co2-weather-etl/internal/warehouse"
)

const pipelineScript = "co2_pipeline.sql"

var (
	renderOutDir       string
	renderEnvironments string
	checkIntegration   bool

	renderCmd = &cobra.Command{
		Use:   "render-sql",
		Short: "Write the warehouse script and per-environment preambles as .sql files",
		Example: `  co2etl render-sql --out-dir sql
  co2etl render-sql --environments environments.yaml --check-integration`,
		RunE: runRender,
	}
)

func init() {
	renderCmd.Flags().StringVar(&renderOutDir, "out-dir", "sql", "directory the .sql files are written to")
	renderCmd.Flags().StringVar(&renderEnvironments, "environments", "", "YAML/JSON/TOML file with an environments list (default dev and prod)")
	renderCmd.Flags().BoolVar(&checkIntegration, "check-integration", false, "query Snowflake and omit the integration DDL when it already exists")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	dialect, err := warehouse.DialectFor(a.cfg.Dialect)
	if err != nil {
		return err
	}
	stageURL, err := objectstore.URL(a.cfg)
	if err != nil {
		return err
	}
	params := warehouse.NewParams(a.cfg, stageURL)

	if checkIntegration {
		if a.cfg.Dialect != config.DialectSnowflake {
			return fmt.Errorf("--check-integration requires the snowflake dialect")
		}
		exists, err := integrationExists(cmd.Context(), a, params.Integration)
		if err != nil {
			return err
		}
		params.IntegrationExists = exists
	}

	envs, err := warehouse.LoadEnvironments(renderEnvironments)
	if err != nil {
		return err
	}

	script, err := warehouse.RenderScript(dialect, params)
	if err != nil {
		return err
	}
	files := map[string]string{pipelineScript: script}
	for _, env := range envs {
		preamble, err := warehouse.RenderEnvironment(env, params.Names)
		if err != nil {
			return err
		}
		files[env.FileName()] = preamble
	}

	written := make([]string, 0, len(files))
	for _, name := range append([]string{pipelineScript}, envFileNames(envs)...) {
		path := filepath.Join(renderOutDir, name)
		if err := objectstore.WriteAtomic(path, []byte(files[name])); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		a.logger.Info("sql file written", "path", path)
		written = append(written, path)
	}

	printOK("rendered %d files (%s)", len(written), dialect.Name)
	printField("integration", fmt.Sprintf("exists=%t", params.IntegrationExists))
	for _, p := range written {
		printField("file", p)
	}
	return nil
}

func integrationExists(ctx context.Context, a *app, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	conn, err := warehouse.OpenSnowflake(ctx, a.cfg.Snowflake, a.logger)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	return warehouse.IntegrationExists(ctx, conn, name)
}

func envFileNames(envs []warehouse.Environment) []string {
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = e.FileName()
	}
	return out
}
