package upsi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/upsi-probe/internal/postgrest"
)

// ErrNotFound signals that a single-record lookup matched nothing.
// An empty result set is an answer, not a query failure.
var ErrNotFound = errors.New("not found")

const secondsPerDay = 86400

// Service is the read API over the UPSI compliance tables.
type Service struct {
	logger *zap.Logger
	client *postgrest.Client
	now    func() time.Time
}

// NewService creates a Service backed by the given Supabase client.
func NewService(logger *zap.Logger, client *postgrest.Client) *Service {
	return &Service{
		logger: logger,
		client: client,
		now:    time.Now,
	}
}

// GetUPSI fetches a UPSI record by ID.
func (s *Service) GetUPSI(ctx context.Context, upsiID string) (*Record, error) {
	q := postgrest.NewQuery(TableRecords).Eq("upsi_id", upsiID).SelectAll()

	var records []Record
	if err := s.client.Select(ctx, q, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("upsi record %s: %w", upsiID, ErrNotFound)
	}
	return &records[0], nil
}

// GetActiveUPSI returns all non-public UPSI records for a company.
func (s *Service) GetActiveUPSI(ctx context.Context, companySymbol string) ([]Record, error) {
	q := postgrest.NewQuery(TableRecords).
		Eq("company_symbol", companySymbol).
		Eq("is_public", "false").
		SelectAll()

	var records []Record
	if err := s.client.Select(ctx, q, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetAccessLog returns access-log rows for a UPSI within [from, to] (epoch seconds).
func (s *Service) GetAccessLog(ctx context.Context, upsiID string, from, to int64) ([]AccessLogEntry, error) {
	q := postgrest.NewQuery(TableAccessLog).
		Eq("upsi_id", upsiID).
		Gte("access_timestamp", strconv.FormatInt(from, 10)).
		Lte("access_timestamp", strconv.FormatInt(to, 10)).
		SelectAll()

	var entries []AccessLogEntry
	if err := s.client.Select(ctx, q, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetAccessByPerson returns all UPSI accesses by one person over the last daysBack days.
func (s *Service) GetAccessByPerson(ctx context.Context, accessorEntityID string, daysBack int) ([]AccessLogEntry, error) {
	since := s.now().Unix() - int64(daysBack)*secondsPerDay
	if since < 0 {
		since = 0
	}

	q := postgrest.NewQuery(TableAccessLog).
		Eq("accessor_entity_id", accessorEntityID).
		Gte("access_timestamp", strconv.FormatInt(since, 10)).
		SelectAll()

	var entries []AccessLogEntry
	if err := s.client.Select(ctx, q, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CheckAccessBefore returns the accesses an entity had, before the given
// timestamp, to UPSI belonging to the given company. The access log does not
// carry the company symbol, so each entry's UPSI record is resolved to filter.
// TODO: replace the per-entry lookup with a Postgres RPC doing the join server-side.
func (s *Service) CheckAccessBefore(ctx context.Context, entityID, companySymbol string, before int64) ([]AccessLogEntry, error) {
	q := postgrest.NewQuery(TableAccessLog).
		Eq("accessor_entity_id", entityID).
		Lt("access_timestamp", strconv.FormatInt(before, 10)).
		SelectAll()

	var entries []AccessLogEntry
	if err := s.client.Select(ctx, q, &entries); err != nil {
		return nil, err
	}

	var relevant []AccessLogEntry
	for _, entry := range entries {
		record, err := s.GetUPSI(ctx, entry.UPSIID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// dangling log entry; skip rather than fail the whole check
				s.logger.Warn("upsi.dangling_access_log",
					zap.String("access_id", entry.AccessID),
					zap.String("upsi_id", entry.UPSIID))
				continue
			}
			return nil, err
		}
		if record.CompanySymbol == companySymbol {
			relevant = append(relevant, entry)
		}
	}
	return relevant, nil
}

// GetTradingWindow fetches the current trading window for a company.
func (s *Service) GetTradingWindow(ctx context.Context, companySymbol string) (*TradingWindow, error) {
	q := postgrest.NewQuery(TableWindows).Eq("company_symbol", companySymbol).SelectAll()

	var windows []TradingWindow
	if err := s.client.Select(ctx, q, &windows); err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("trading window for %s: %w", companySymbol, ErrNotFound)
	}
	return &windows[0], nil
}

// CheckWindowViolation reports whether a trade at tradeTS fell inside a closed
// trading window for the company. No window record means the window is open.
func (s *Service) CheckWindowViolation(ctx context.Context, entityID, companySymbol string, tradeTS int64) (bool, error) {
	window, err := s.GetTradingWindow(ctx, companySymbol)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if window.WindowStatus != WindowClosed {
		return false, nil
	}
	violated := tradeTS >= window.ClosureStart && tradeTS < window.ExpectedOpening
	if violated {
		s.logger.Info("upsi.window_violation",
			zap.String("entity_id", entityID),
			zap.String("company_symbol", companySymbol),
			zap.Int64("trade_ts", tradeTS),
			zap.String("closure_reason", window.ClosureReason))
	}
	return violated, nil
}

// GetAccessors returns everyone who accessed a specific UPSI.
func (s *Service) GetAccessors(ctx context.Context, upsiID string) ([]AccessLogEntry, error) {
	q := postgrest.NewQuery(TableAccessLog).Eq("upsi_id", upsiID).SelectAll()

	var entries []AccessLogEntry
	if err := s.client.Select(ctx, q, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
