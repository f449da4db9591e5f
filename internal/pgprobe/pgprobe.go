package pgprobe

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Checker verifies direct Postgres reachability via the Supabase pooler DSN.
// The REST checks exercise PostgREST; this one tells you whether the database
// itself answers when the REST layer is misbehaving.
type Checker struct {
	logger  *zap.Logger
	dsn     string
	timeout time.Duration
}

// New creates a Checker. dsn is the pooler connection string (SUPABASE_DSN).
func New(logger *zap.Logger, dsn string, timeout time.Duration) *Checker {
	return &Checker{logger: logger, dsn: dsn, timeout: timeout}
}

func (c *Checker) Name() string { return "postgres_direct" }

// Check opens a connection, runs SELECT 1, and closes it again.
func (c *Checker) Check(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	conn, err := pgx.Connect(ctx, c.dsn)
	if err != nil {
		return "", fmt.Errorf("postgres connect: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	var one int
	if err := conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return "", fmt.Errorf("postgres query: %w", err)
	}

	c.logger.Debug("pgprobe.check_ok", zap.Duration("elapsed", time.Since(start)))
	return "database reachable (SELECT 1 ok)", nil
}
