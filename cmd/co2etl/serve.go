package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/co2-weather-etl/internal/adapter/http"
	"github.com/couchcryptid/co2-weather-etl/internal/scheduler"
)

var (
	mergeTimeout time.Duration
	mergeNow     bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the merge on MERGE_CRON and expose health and metrics endpoints",
		Long: `Run the recurring merge in-process for warehouses without a task
scheduler (duckdb). At most one merge runs at a time; a trigger that fires
while one is running is skipped. For snowflake the TASK owns the schedule and
serve only exposes health and metrics.`,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().DurationVar(&mergeTimeout, "merge-timeout", 30*time.Minute, "upper bound for a single merge")
	serveCmd.Flags().BoolVar(&mergeNow, "merge-now", false, "run one merge immediately after startup")
	rootCmd.AddCommand(serveCmd)
}

// connReadiness reports ready while the warehouse answers.
type connReadiness struct {
	pinger scheduler.Pinger
}

func (c connReadiness) CheckReadiness(ctx context.Context) error {
	return c.pinger.Ping(ctx)
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	var (
		sched *scheduler.Scheduler
		srv   *httpadapter.Server
	)
	if dialect.Scheduled {
		a.logger.Info("warehouse owns the merge schedule, in-process schedule disabled", "dialect", dialect.Name)
		srv = httpadapter.NewServer(a.cfg.HTTPAddr, connReadiness{pinger: runner}, a.logger)
	} else {
		sched = scheduler.New(runner, a.cfg.MergeCron, mergeTimeout, a.metrics, a.logger)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		srv = httpadapter.NewServer(a.cfg.HTTPAddr, sched, a.logger)
		if mergeNow {
			go sched.Trigger(ctx)
		}
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}
	if sched != nil {
		sched.Stop()
	}

	a.logger.Info("shutdown complete")
	return nil
}
