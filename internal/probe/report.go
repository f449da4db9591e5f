package probe

import (
	"fmt"
	"io"
	"time"
)

// Verdict classifies a single check outcome.
type Verdict string

const (
	// VerdictOK: the check succeeded.
	VerdictOK Verdict = "ok"
	// VerdictWarn: reachable but not provisioned/populated (missing table,
	// record not found). Setup work, not a connectivity problem.
	VerdictWarn Verdict = "warn"
	// VerdictFail: transport failure or an unexpected HTTP error.
	VerdictFail Verdict = "fail"
)

// CheckResult is the outcome of one probe check.
type CheckResult struct {
	Name        string   `json:"name"`
	Verdict     Verdict  `json:"verdict"`
	Detail      string   `json:"detail"`
	RecordCount int      `json:"record_count"`
	Preview     []string `json:"preview,omitempty"`
	LatencyMS   int64    `json:"latency_ms"`
}

// Report is the result of a full probe run.
type Report struct {
	RunID      string        `json:"run_id"`
	Target     string        `json:"target"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Checks     []CheckResult `json:"checks"`
}

// Counts returns the number of ok, warn, and fail results.
func (r *Report) Counts() (ok, warn, fail int) {
	for _, c := range r.Checks {
		switch c.Verdict {
		case VerdictOK:
			ok++
		case VerdictWarn:
			warn++
		case VerdictFail:
			fail++
		}
	}
	return ok, warn, fail
}

// Healthy reports whether no check failed outright.
func (r *Report) Healthy() bool {
	_, _, fail := r.Counts()
	return fail == 0
}

var verdictSymbols = map[Verdict]string{
	VerdictOK:   "✅",
	VerdictWarn: "⚠️ ",
	VerdictFail: "❌",
}

// Render writes a human-readable summary of the run.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "upsi-probe run %s\n", r.RunID)
	fmt.Fprintf(w, "target: %s\n", r.Target)
	fmt.Fprintln(w, "--------------------------------------------------")

	for _, c := range r.Checks {
		fmt.Fprintf(w, "%s %-28s %s (%dms)\n", verdictSymbols[c.Verdict], c.Name, c.Detail, c.LatencyMS)
		for _, line := range c.Preview {
			fmt.Fprintf(w, "     - %s\n", line)
		}
	}

	ok, warn, fail := r.Counts()
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "%d checks: %d ok, %d warn, %d fail\n", len(r.Checks), ok, warn, fail)
}
