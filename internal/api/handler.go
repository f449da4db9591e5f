package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/upsi-probe/internal/probe"
	"github.com/Checker-Finance/upsi-probe/internal/store"
)

// ProbeRunner runs the diagnostic sequence on demand.
type ProbeRunner interface {
	Run(ctx context.Context) *probe.Report
}

// ReportPublisher announces completed runs (NATS). Optional.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report *probe.Report) error
}

// ProbeHandler handles HTTP API requests for probe operations.
type ProbeHandler struct {
	logger    *zap.Logger
	runner    ProbeRunner
	history   store.History
	publisher ReportPublisher
}

// NewProbeHandler creates a ProbeHandler.
// publisher is optional — if nil, runs are not announced.
func NewProbeHandler(logger *zap.Logger, runner ProbeRunner, history store.History, publisher ReportPublisher) *ProbeHandler {
	return &ProbeHandler{
		logger:    logger,
		runner:    runner,
		history:   history,
		publisher: publisher,
	}
}

// RunProbe executes the full diagnostic sequence and returns the report.
func (h *ProbeHandler) RunProbe(c *fiber.Ctx) error {
	report := h.runner.Run(c.Context())

	if err := h.history.SaveReport(c.Context(), report); err != nil {
		h.logger.Warn("api.save_report_failed",
			zap.String("run_id", report.RunID),
			zap.Error(err))
	}
	if h.publisher != nil {
		if err := h.publisher.PublishReport(c.Context(), report); err != nil {
			h.logger.Warn("api.publish_report_failed",
				zap.String("run_id", report.RunID),
				zap.Error(err))
		}
	}

	return c.Status(fiber.StatusOK).JSON(report)
}

// LastReport returns the most recent stored report.
func (h *ProbeHandler) LastReport(c *fiber.Ctx) error {
	report, err := h.history.LastReport(c.Context())
	if err != nil {
		if errors.Is(err, store.ErrNoReports) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no probe runs recorded yet"})
		}
		h.logger.Error("api.last_report_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

// RecentRuns returns summaries of recent runs, newest first.
func (h *ProbeHandler) RecentRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)

	runs, err := h.history.RecentRuns(c.Context(), limit)
	if err != nil {
		h.logger.Error("api.recent_runs_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"runs": runs})
}
