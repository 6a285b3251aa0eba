package warehouse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/couchcryptid/co2-weather-etl/internal/domain"
	"github.com/couchcryptid/co2-weather-etl/internal/observability"
)

// Step names, in run order. Dialects use a subset.
const (
	StepEnsureIntegration  = "ensure-integration"
	StepLoadStaging        = "load-staging"
	StepBuildHarmonized    = "build-harmonized"
	StepBuildAggregates    = "build-aggregates"
	StepRegisterTransforms = "register-transforms"
	StepBuildChangeTables  = "build-change-tables"
	StepRegisterMerge      = "register-merge"
	StepScheduleMerge      = "schedule-merge"
	StepVerify             = "verify"
)

// MergeStatus is returned by a successful merge.
const MergeStatus = "Update Successful!"

// ErrStagingEmpty is returned when a resumed run finds nothing to derive from.
var ErrStagingEmpty = errors.New("staging table is empty")

// Step is one named unit of the warehouse sequence. Fatal steps leave nothing
// meaningful downstream when they fail; the rest use replace semantics and
// can be re-run on their own.
type Step struct {
	Name  string
	Fatal bool
	// Statements are text/template sources rendered with Params and executed
	// in order. They also make up the rendered script.
	Statements []string
	// Run replaces plain execution of Statements when set.
	Run func(ctx context.Context, r *Runner) error
}

// Dialect is the ordered step list and merge call for one warehouse.
type Dialect struct {
	Name  string
	Steps []Step
	// Merge is the statement executed for each scheduled merge.
	Merge string
	// MergeReturnsStatus is true when Merge yields a status row.
	MergeReturnsStatus bool
	// Scheduled is true when the warehouse owns the merge schedule.
	Scheduled bool
}

// StepNames lists the dialect's steps in order.
func (d Dialect) StepNames() []string {
	names := make([]string, len(d.Steps))
	for i, s := range d.Steps {
		names[i] = s.Name
	}
	return names
}

func (d Dialect) indexOf(name string) int {
	for i, s := range d.Steps {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// lastFatal is the index of the final fatal step, or -1.
func (d Dialect) lastFatal() int {
	idx := -1
	for i, s := range d.Steps {
		if s.Fatal {
			idx = i
		}
	}
	return idx
}

// EnsureResult is the outcome of the storage integration check.
type EnsureResult int

const (
	EnsureSkipped EnsureResult = iota
	EnsureAlreadyPresent
	EnsureCreated
	EnsureFailed
)

func (e EnsureResult) String() string {
	switch e {
	case EnsureAlreadyPresent:
		return "already-present"
	case EnsureCreated:
		return "created"
	case EnsureFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Report collects what a run observed.
type Report struct {
	Integration    EnsureResult
	StagingRows    int64
	HarmonizedRows int64
	TaskHistory    []TaskRun
	StepsRun       []string
}

// Runner executes a dialect's steps over one connection.
type Runner struct {
	conn    *Conn
	dialect Dialect
	params  Params
	metrics *observability.Metrics
	logger  *slog.Logger
	report  Report
}

// NewRunner creates a step runner. The caller owns conn.
func NewRunner(conn *Conn, dialect Dialect, params Params, metrics *observability.Metrics, logger *slog.Logger) *Runner {
	return &Runner{
		conn:    conn,
		dialect: dialect,
		params:  params,
		metrics: metrics,
		logger:  logger.With("dialect", dialect.Name),
	}
}

// Run executes steps in order starting at fromStep (empty means the first).
// Resuming after the fatal steps first checks that staging holds rows.
func (r *Runner) Run(ctx context.Context, fromStep string) (Report, error) {
	if err := r.params.Validate(); err != nil {
		return r.report, fmt.Errorf("warehouse params: %w", err)
	}

	start := 0
	if fromStep != "" {
		start = r.dialect.indexOf(fromStep)
		if start < 0 {
			return r.report, fmt.Errorf("unknown step %q (valid: %s)", fromStep, strings.Join(r.dialect.StepNames(), ", "))
		}
	}

	if fatal := r.dialect.lastFatal(); start > fatal && fatal >= 0 {
		guard := r.dialect.Steps[fatal].Name
		n, err := r.countRows(ctx, guard, r.params.Staging)
		if err != nil {
			return r.report, &domain.WarehouseError{Step: guard, Fatal: true, Err: err}
		}
		if n == 0 {
			return r.report, &domain.WarehouseError{Step: guard, Fatal: true, Err: ErrStagingEmpty}
		}
		r.report.StagingRows = n
		r.logger.Info("resuming warehouse run", "from_step", fromStep, "staging_rows", n)
	}

	for _, step := range r.dialect.Steps[start:] {
		if err := r.runStep(ctx, step); err != nil {
			return r.report, err
		}
	}
	return r.report, nil
}

func (r *Runner) runStep(ctx context.Context, step Step) error {
	started := time.Now()
	r.logger.Info("warehouse step starting", "step", step.Name)

	var err error
	if step.Run != nil {
		err = step.Run(ctx, r)
	} else {
		err = r.execStatements(ctx, step)
	}
	elapsed := time.Since(started)

	if err != nil {
		r.metrics.StepDuration.WithLabelValues(step.Name, "error").Observe(elapsed.Seconds())
		r.logger.Error("warehouse step failed", "step", step.Name, "fatal", step.Fatal, "error", err)
		return &domain.WarehouseError{Step: step.Name, Fatal: step.Fatal, Err: err}
	}
	r.metrics.StepDuration.WithLabelValues(step.Name, "success").Observe(elapsed.Seconds())
	r.report.StepsRun = append(r.report.StepsRun, step.Name)
	r.logger.Info("warehouse step complete", "step", step.Name, "duration_ms", elapsed.Milliseconds())
	return nil
}

func (r *Runner) execStatements(ctx context.Context, step Step) error {
	for i, src := range step.Statements {
		query, err := render(fmt.Sprintf("%s[%d]", step.Name, i), src, r.params)
		if err != nil {
			return err
		}
		if strings.TrimSpace(query) == "" {
			continue
		}
		if _, err := r.conn.Exec(ctx, step.Name, query); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *Runner) countRows(ctx context.Context, queryType, table string) (int64, error) {
	var n int64
	if err := r.conn.Get(ctx, queryType, &n, "SELECT COUNT(*) FROM "+table); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Merge runs the upsert of staging into harmonized once.
func (r *Runner) Merge(ctx context.Context) (string, error) {
	query, err := render("merge", r.dialect.Merge, r.params)
	if err != nil {
		return "", err
	}
	if r.dialect.MergeReturnsStatus {
		var status string
		if err := r.conn.Get(ctx, StepRegisterMerge, &status, query); err != nil {
			return "", fmt.Errorf("merge: %w", err)
		}
		return status, nil
	}
	if _, err := r.conn.Exec(ctx, StepRegisterMerge, query); err != nil {
		return "", fmt.Errorf("merge: %w", err)
	}
	return MergeStatus, nil
}

// MonthlySummary reads the aggregate table in chronological order.
func (r *Runner) MonthlySummary(ctx context.Context) ([]domain.MonthlyAggregate, error) {
	var out []domain.MonthlyAggregate
	query := fmt.Sprintf("SELECT YEAR, MONTH, AVG_CO2, MAX_CO2, MIN_CO2 FROM %s ORDER BY YEAR, MONTH", r.params.Aggregate)
	if err := r.conn.Select(ctx, "monthly-summary", &out, query); err != nil {
		return nil, fmt.Errorf("read monthly summary: %w", err)
	}
	return out, nil
}

// Ping checks the underlying connection.
func (r *Runner) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

// Report returns what the runner has observed so far.
func (r *Runner) Report() Report {
	return r.report
}

func newTemplate(name, src string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return tmpl, nil
}

func render(name, src string, p Params) (string, error) {
	tmpl, err := newTemplate(name, src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
