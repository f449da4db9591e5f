package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/upsi-probe/internal/probe"
)

// ErrNoReports signals that no probe run has been recorded yet.
var ErrNoReports = errors.New("no probe reports recorded")

const (
	lastReportKey = "probe:last_report"
	runListKey    = "probe:runs"
	maxRuns       = 50
)

// RunSummary is the compact per-run record kept in the history list.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	OK        int       `json:"ok"`
	Warn      int       `json:"warn"`
	Fail      int       `json:"fail"`
}

// History persists probe reports so serve mode can answer "what did the
// last run say" without re-probing.
type History interface {
	SaveReport(ctx context.Context, report *probe.Report) error
	LastReport(ctx context.Context) (*probe.Report, error)
	RecentRuns(ctx context.Context, n int) ([]RunSummary, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

func summarize(report *probe.Report) RunSummary {
	ok, warn, fail := report.Counts()
	return RunSummary{
		RunID:     report.RunID,
		StartedAt: report.StartedAt,
		OK:        ok,
		Warn:      warn,
		Fail:      fail,
	}
}

//
// Redis-backed history
//

type RedisHistory struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewRedis connects to Redis and returns a history backed by it.
func NewRedis(addr string, db int, password string, logger *zap.Logger) (*RedisHistory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisHistory{redis: rdb, logger: logger}, nil
}

func (h *RedisHistory) SaveReport(ctx context.Context, report *probe.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	if err := h.redis.Set(ctx, lastReportKey, data, 0).Err(); err != nil {
		return fmt.Errorf("save last report: %w", err)
	}

	summary, err := json.Marshal(summarize(report))
	if err != nil {
		return err
	}
	pipe := h.redis.TxPipeline()
	pipe.LPush(ctx, runListKey, summary)
	pipe.LTrim(ctx, runListKey, 0, maxRuns-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append run summary: %w", err)
	}
	return nil
}

func (h *RedisHistory) LastReport(ctx context.Context) (*probe.Report, error) {
	data, err := h.redis.Get(ctx, lastReportKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoReports
	}
	if err != nil {
		return nil, err
	}

	var report probe.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode last report: %w", err)
	}
	return &report, nil
}

func (h *RedisHistory) RecentRuns(ctx context.Context, n int) ([]RunSummary, error) {
	if n <= 0 || n > maxRuns {
		n = maxRuns
	}
	items, err := h.redis.LRange(ctx, runListKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}

	summaries := make([]RunSummary, 0, len(items))
	for _, item := range items {
		var s RunSummary
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			h.logger.Warn("store.bad_run_summary", zap.Error(err))
			continue
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func (h *RedisHistory) HealthCheck(ctx context.Context) error {
	return h.redis.Ping(ctx).Err()
}

func (h *RedisHistory) Close() error {
	return h.redis.Close()
}

//
// In-memory history (no-Redis deployments and one-shot runs)
//

type MemoryHistory struct {
	mu   sync.RWMutex
	last *probe.Report
	runs []RunSummary
}

func NewMemory() *MemoryHistory {
	return &MemoryHistory{}
}

func (h *MemoryHistory) SaveReport(ctx context.Context, report *probe.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = report
	h.runs = append([]RunSummary{summarize(report)}, h.runs...)
	if len(h.runs) > maxRuns {
		h.runs = h.runs[:maxRuns]
	}
	return nil
}

func (h *MemoryHistory) LastReport(ctx context.Context) (*probe.Report, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return nil, ErrNoReports
	}
	return h.last, nil
}

func (h *MemoryHistory) RecentRuns(ctx context.Context, n int) ([]RunSummary, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.runs) {
		n = len(h.runs)
	}
	out := make([]RunSummary, n)
	copy(out, h.runs[:n])
	return out, nil
}

func (h *MemoryHistory) HealthCheck(ctx context.Context) error { return nil }

func (h *MemoryHistory) Close() error { return nil }
