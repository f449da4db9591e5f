package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/upsi-probe/internal/metrics"
	"github.com/Checker-Finance/upsi-probe/internal/rate"
)

// Executor handles rate-limited, instrumented HTTP execution.
// Probe calls are deliberately single-shot: a diagnostic that retries
// would mask the flakiness it exists to surface.
type Executor struct {
	logger     *zap.Logger
	rateMgr    *rate.Manager
	http       *http.Client
	serviceTag string
}

// New creates an Executor. rateMgr may be nil to disable pacing (tests).
func New(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client, serviceTag string) *Executor {
	return &Executor{
		logger:     logger,
		rateMgr:    rateMgr,
		http:       httpClient,
		serviceTag: serviceTag,
	}
}

// Do executes req once with rate limiting and returns the raw status and body.
// Transport failures (DNS, TLS, timeout) are returned as errors; HTTP status
// codes are not interpreted here so callers can apply their own semantics
// (a 404 against the API root is a success signal, for instance).
func (e *Executor) Do(ctx context.Context, req *http.Request, rateLimitKey, resource string) (int, []byte, error) {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return 0, nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	resp, err := e.http.Do(req)
	if err != nil {
		e.logger.Warn(e.serviceTag+".http_failed",
			zap.String("url", req.URL.String()),
			zap.Error(err))
		metrics.IncSupabaseRequest(resource, "transport_error")
		return 0, nil, fmt.Errorf("%s request failed: %w", e.serviceTag, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		metrics.IncSupabaseRequest(resource, "read_error")
		return resp.StatusCode, nil, fmt.Errorf("%s read body: %w", e.serviceTag, err)
	}

	metrics.IncSupabaseRequest(resource, fmt.Sprintf("%d", resp.StatusCode))
	metrics.ObserveDuration(metrics.SupabaseRequestDuration, start, resource)

	e.logger.Debug(e.serviceTag+".http_done",
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))

	return resp.StatusCode, body, nil
}
