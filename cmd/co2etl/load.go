package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/co2-weather-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/co2-weather-etl/internal/warehouse"
)

var (
	fromStep  string
	listSteps bool

	loadCmd = &cobra.Command{
		Use:   "load",
		Short: "Run the warehouse load and transform steps",
		Long: `Run the warehouse steps in order: load the staged batch, derive the
harmonized, aggregate and change tables, register the transforms and merge,
and verify. A failed non-fatal step can be resumed with --from-step.`,
		Example: `  co2etl load
  co2etl load --from-step build-aggregates
  co2etl load --list-steps`,
		RunE: runLoad,
	}

	mergeCmd = &cobra.Command{
		Use:   "merge",
		Short: "Upsert staging into harmonized once",
		RunE:  runMerge,
	}
)

func init() {
	loadCmd.Flags().StringVar(&fromStep, "from-step", "", "resume from the named step")
	loadCmd.Flags().BoolVar(&listSteps, "list-steps", false, "print the step names for the configured dialect and exit")
	rootCmd.AddCommand(loadCmd, mergeCmd)
}

// openRunner connects to the configured warehouse. The caller closes the
// returned connection on every exit path.
func openRunner(ctx context.Context, a *app) (*warehouse.Runner, *warehouse.Conn, warehouse.Dialect, error) {
	stageURL, err := objectstore.URL(a.cfg)
	if err != nil {
		return nil, nil, warehouse.Dialect{}, err
	}
	conn, dialect, err := warehouse.Open(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, nil, warehouse.Dialect{}, err
	}
	params := warehouse.NewParams(a.cfg, stageURL)
	return warehouse.NewRunner(conn, dialect, params, a.metrics, a.logger), conn, dialect, nil
}

func runLoad(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	if listSteps {
		dialect, err := warehouse.DialectFor(a.cfg.Dialect)
		if err != nil {
			return err
		}
		for i, name := range dialect.StepNames() {
			fatal := ""
			if dialect.Steps[i].Fatal {
				fatal = " (fatal)"
			}
			fmt.Printf("%d. %s%s\n", i+1, name, fatal)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, conn, dialect, err := openRunner(ctx, a)
	if err != nil {
		return err
	}
	defer conn.Close()

	report, err := runner.Run(ctx, fromStep)
	if err != nil {
		return err
	}

	printOK("warehouse steps complete (%s)", dialect.Name)
	printField("steps", strings.Join(report.StepsRun, ", "))
	printField("integration", report.Integration)
	printField("staging rows", report.StagingRows)
	printField("harmonized", report.HarmonizedRows)
	for _, run := range report.TaskHistory {
		printField("task run", fmt.Sprintf("%s %s %s", run.Name, run.State, run.ScheduledTime.Time.Format("2006-01-02 15:04")))
	}
	return nil
}

func runMerge(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, conn, _, err := openRunner(ctx, a)
	if err != nil {
		return err
	}
	defer conn.Close()

	status, err := runner.Merge(ctx)
	if err != nil {
		return err
	}
	printOK("%s", status)
	return nil
}
