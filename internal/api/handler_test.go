package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/upsi-probe/internal/probe"
	"github.com/Checker-Finance/upsi-probe/internal/store"
)

type fakeRunner struct {
	report *probe.Report
}

func (f *fakeRunner) Run(ctx context.Context) *probe.Report {
	return f.report
}

type fakePublisher struct {
	published []*probe.Report
	fail      bool
}

func (f *fakePublisher) PublishReport(ctx context.Context, report *probe.Report) error {
	if f.fail {
		return errors.New("nats down")
	}
	f.published = append(f.published, report)
	return nil
}

func testReport() *probe.Report {
	return &probe.Report{
		RunID:     uuid.New().String(),
		Target:    "https://example.supabase.co",
		StartedAt: time.Now().UTC(),
		Checks: []probe.CheckResult{
			{Name: "rest_api_reachable", Verdict: probe.VerdictOK, Detail: "API is reachable"},
			{Name: "upsi_lookup", Verdict: probe.VerdictWarn, Detail: "upsi record UPSI-001: not found"},
		},
	}
}

func newTestApp(runner ProbeRunner, history store.History, publisher ReportPublisher) *fiber.App {
	app := fiber.New()
	handler := NewProbeHandler(zap.NewNop(), runner, history, publisher)
	RegisterRoutes(app, history, handler)
	return app
}

func TestRunProbe(t *testing.T) {
	report := testReport()
	history := store.NewMemory()
	publisher := &fakePublisher{}
	app := newTestApp(&fakeRunner{report: report}, history, publisher)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/probe/run", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got probe.Report
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, report.RunID, got.RunID)
	require.Len(t, got.Checks, 2)

	// run was persisted and announced
	last, err := history.LastReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.RunID, last.RunID)
	require.Len(t, publisher.published, 1)
}

func TestRunProbe_PublishFailureIsNotFatal(t *testing.T) {
	app := newTestApp(&fakeRunner{report: testReport()}, store.NewMemory(), &fakePublisher{fail: true})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/probe/run", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLastReport_Empty(t *testing.T) {
	app := newTestApp(&fakeRunner{report: testReport()}, store.NewMemory(), nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/probe/last", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLastReport_AfterRun(t *testing.T) {
	report := testReport()
	history := store.NewMemory()
	require.NoError(t, history.SaveReport(context.Background(), report))
	app := newTestApp(&fakeRunner{report: report}, history, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/probe/last", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got probe.Report
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, report.RunID, got.RunID)
}

func TestRecentRuns(t *testing.T) {
	history := store.NewMemory()
	for i := 0; i < 3; i++ {
		require.NoError(t, history.SaveReport(context.Background(), testReport()))
	}
	app := newTestApp(&fakeRunner{report: testReport()}, history, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/probe/runs?limit=2", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Runs []store.RunSummary `json:"runs"`
	}
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Len(t, got.Runs, 2)
}

func TestHealth(t *testing.T) {
	app := newTestApp(&fakeRunner{report: testReport()}, store.NewMemory(), nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Status string `json:"status"`
	}
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "ok", got.Status)
}
