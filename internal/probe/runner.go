package probe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/upsi-probe/internal/metrics"
	"github.com/Checker-Finance/upsi-probe/internal/postgrest"
	"github.com/Checker-Finance/upsi-probe/internal/upsi"
)

// Options selects the fixtures the logic checks query for.
type Options struct {
	Company     string // e.g. "RELIANCE"
	UPSIID      string // e.g. "UPSI-001"
	SampleLimit int    // rows fetched per table check
}

// DefaultOptions match the fixtures seeded alongside the compliance schema.
func DefaultOptions() Options {
	return Options{
		Company:     "RELIANCE",
		UPSIID:      "UPSI-001",
		SampleLimit: 5,
	}
}

// DirectDBCheck is an optional extra check (direct Postgres reachability).
type DirectDBCheck interface {
	Name() string
	Check(ctx context.Context) (string, error)
}

// Runner executes the diagnostic sequence: connectivity checks first, then
// the logic checks mirroring the production query paths. Checks run
// sequentially and a failing check never stops the run.
type Runner struct {
	logger  *zap.Logger
	client  *postgrest.Client
	svc     *upsi.Service
	target  string
	opts    Options
	dbCheck DirectDBCheck
}

// NewRunner creates a probe runner. target is only used for report labelling.
func NewRunner(logger *zap.Logger, client *postgrest.Client, svc *upsi.Service, target string, opts Options) *Runner {
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = 5
	}
	return &Runner{
		logger: logger,
		client: client,
		svc:    svc,
		target: target,
		opts:   opts,
	}
}

// WithDirectDBCheck adds a direct-Postgres reachability check to the sequence.
func (r *Runner) WithDirectDBCheck(c DirectDBCheck) *Runner {
	r.dbCheck = c
	return r
}

type check struct {
	name string
	fn   func(ctx context.Context) (detail string, count int, preview []string, err error)
}

// Run executes the full sequence and returns the report.
func (r *Runner) Run(ctx context.Context) *Report {
	report := &Report{
		RunID:     uuid.New().String(),
		Target:    r.target,
		StartedAt: time.Now().UTC(),
	}

	for _, c := range r.checks() {
		report.Checks = append(report.Checks, r.exec(ctx, c))
	}

	report.FinishedAt = time.Now().UTC()
	ok, warn, fail := report.Counts()
	r.logger.Info("probe.run_complete",
		zap.String("run_id", report.RunID),
		zap.Int("ok", ok),
		zap.Int("warn", warn),
		zap.Int("fail", fail))
	return report
}

func (r *Runner) checks() []check {
	checks := []check{
		{"rest_api_reachable", r.checkReachable},
		{"table_upsi_records", r.tableCheck(upsi.TableRecords)},
		{"table_upsi_access_log", r.tableCheck(upsi.TableAccessLog)},
		{"table_trading_windows", r.tableCheck(upsi.TableWindows)},
		{"active_upsi", r.checkActiveUPSI},
		{"upsi_accessors", r.checkAccessors},
		{"trading_window", r.checkTradingWindow},
		{"upsi_lookup", r.checkUPSILookup},
	}
	if r.dbCheck != nil {
		checks = append(checks, check{r.dbCheck.Name(), func(ctx context.Context) (string, int, []string, error) {
			detail, err := r.dbCheck.Check(ctx)
			return detail, 0, nil, err
		}})
	}
	return checks
}

// exec runs one check, classifies its error, and records the result.
func (r *Runner) exec(ctx context.Context, c check) CheckResult {
	start := time.Now()
	detail, count, preview, err := c.fn(ctx)

	result := CheckResult{
		Name:        c.name,
		Detail:      detail,
		RecordCount: count,
		Preview:     preview,
		LatencyMS:   time.Since(start).Milliseconds(),
	}

	switch {
	case err == nil:
		result.Verdict = VerdictOK
	case postgrest.IsTableMissing(err), errors.Is(err, upsi.ErrNotFound):
		result.Verdict = VerdictWarn
		result.Detail = err.Error()
	default:
		result.Verdict = VerdictFail
		result.Detail = err.Error()
	}

	metrics.IncProbeCheck(c.name, string(result.Verdict))
	r.logger.Debug("probe.check_done",
		zap.String("check", c.name),
		zap.String("verdict", string(result.Verdict)),
		zap.String("detail", result.Detail))
	return result
}

func (r *Runner) checkReachable(ctx context.Context) (string, int, []string, error) {
	if err := r.client.Ping(ctx); err != nil {
		return "", 0, nil, err
	}
	return "API is reachable (404 on root is expected)", 0, nil, nil
}

// tableCheck verifies a table is provisioned and readable with a small sample.
func (r *Runner) tableCheck(table string) func(ctx context.Context) (string, int, []string, error) {
	return func(ctx context.Context) (string, int, []string, error) {
		q := postgrest.NewQuery(table).SelectAll().Limit(r.opts.SampleLimit)
		rows, err := r.client.SelectRows(ctx, q)
		if err != nil {
			return "", 0, nil, err
		}

		var preview []string
		if len(rows) > 0 {
			preview = append(preview, fmt.Sprintf("sample fields: %s", fieldNames(rows[0])))
		}
		return fmt.Sprintf("table accessible, %d row(s) sampled", len(rows)), len(rows), preview, nil
	}
}

func (r *Runner) checkActiveUPSI(ctx context.Context) (string, int, []string, error) {
	records, err := r.svc.GetActiveUPSI(ctx, r.opts.Company)
	if err != nil {
		return "", 0, nil, err
	}

	var preview []string
	for _, rec := range head(records) {
		preview = append(preview, fmt.Sprintf("%s: %s - %s", rec.UPSIID, rec.UPSIType, truncate(rec.Description, 50)))
	}
	return fmt.Sprintf("found %d active UPSI record(s) for %s", len(records), r.opts.Company), len(records), preview, nil
}

func (r *Runner) checkAccessors(ctx context.Context) (string, int, []string, error) {
	entries, err := r.svc.GetAccessors(ctx, r.opts.UPSIID)
	if err != nil {
		return "", 0, nil, err
	}

	var preview []string
	for _, e := range head(entries) {
		preview = append(preview, fmt.Sprintf("%s (%s) - %s", e.AccessorName, e.AccessorDesignation, truncate(e.AccessReason, 40)))
	}
	return fmt.Sprintf("found %d access record(s) for %s", len(entries), r.opts.UPSIID), len(entries), preview, nil
}

func (r *Runner) checkTradingWindow(ctx context.Context) (string, int, []string, error) {
	window, err := r.svc.GetTradingWindow(ctx, r.opts.Company)
	if err != nil {
		return "", 0, nil, err
	}

	detail := fmt.Sprintf("window for %s is %s", r.opts.Company, window.WindowStatus)
	var preview []string
	if window.ClosureReason != "" {
		preview = append(preview, "reason: "+window.ClosureReason)
	}
	return detail, 1, preview, nil
}

func (r *Runner) checkUPSILookup(ctx context.Context) (string, int, []string, error) {
	record, err := r.svc.GetUPSI(ctx, r.opts.UPSIID)
	if err != nil {
		return "", 0, nil, err
	}

	preview := []string{
		"type: " + record.UPSIType,
		"company: " + record.CompanySymbol,
		"description: " + truncate(record.Description, 60),
	}
	return fmt.Sprintf("record %s found", r.opts.UPSIID), 1, preview, nil
}

// head returns at most the first three elements (report previews stay short).
func head[T any](items []T) []T {
	if len(items) > 3 {
		return items[:3]
	}
	return items
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func fieldNames(row map[string]any) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
