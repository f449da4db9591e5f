package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/upsi-probe/internal/httpclient"
	"github.com/Checker-Finance/upsi-probe/internal/rate"
)

// ClientConfig holds the Supabase project coordinates.
// The anon key is sent both as the apikey header and as a bearer token,
// which is what PostgREST behind Supabase expects.
type ClientConfig struct {
	BaseURL string // e.g. "https://<project>.supabase.co"
	APIKey  string
}

// rateLimitKey isolates rate limits per project, derived from the base URL.
func (c *ClientConfig) rateLimitKey() string {
	return "supabase:" + c.BaseURL
}

// Client is a read-only PostgREST client for a single Supabase project.
type Client struct {
	logger *zap.Logger
	exec   *httpclient.Executor
	cfg    ClientConfig
}

// NewClient constructs a Supabase REST client. Each call is bounded by timeout.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, cfg ClientConfig, timeout time.Duration) *Client {
	httpClient := &http.Client{Timeout: timeout}
	return &Client{
		logger: logger,
		exec:   httpclient.New(logger, rateMgr, httpClient, "supabase"),
		cfg:    cfg,
	}
}

// Ping checks reachability of the REST root.
// The root endpoint answers 404 when no resource is named, so a 404 here
// means the API is up, not that anything is wrong.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/rest/v1/", nil)
	if err != nil {
		return err
	}
	setHeaders(req, c.cfg.APIKey)

	status, body, err := c.exec.Do(ctx, req, c.cfg.rateLimitKey(), "root")
	if err != nil {
		return err
	}
	if (status >= 200 && status <= 299) || status == http.StatusNotFound {
		return nil
	}
	return &StatusError{Status: status, Body: excerpt(body)}
}

// Select runs q against the project and decodes the JSON array response into out.
func (c *Client) Select(ctx context.Context, q *Query, out any) error {
	endpoint := q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/rest/v1/"+endpoint, nil)
	if err != nil {
		return err
	}
	setHeaders(req, c.cfg.APIKey)

	status, body, err := c.exec.Do(ctx, req, c.cfg.rateLimitKey(), q.Table())
	if err != nil {
		return err
	}

	// PostgREST reports a missing relation with "does not exist" in the body;
	// that phrasing wins over the status code.
	if status < 200 || status > 299 || strings.Contains(string(body), "does not exist") {
		return ClassifyResponse(q.Table(), status, body)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			c.logger.Warn("supabase.decode_failed",
				zap.String("endpoint", endpoint),
				zap.Error(err))
			return fmt.Errorf("decode %s response: %w", q.Table(), err)
		}
	}
	return nil
}

// SelectRows runs q and returns the rows as generic field/value records.
// Used by table checks that only care about row counts and previews.
func (c *Client) SelectRows(ctx context.Context, q *Query) ([]map[string]any, error) {
	var rows []map[string]any
	if err := c.Select(ctx, q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// setHeaders sets the authentication headers Supabase requires on every request.
func setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")
}
