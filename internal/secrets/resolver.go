package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Checker-Finance/upsi-probe/internal/config"
	pkgsecrets "github.com/Checker-Finance/upsi-probe/pkg/secrets"
)

// SupabaseCredentials is the resolved project URL and anon key.
type SupabaseCredentials struct {
	URL     string
	AnonKey string
}

// Resolver resolves Supabase credentials. Environment values win; otherwise
// the configured AWS secret is fetched and cached.
//
// Secret JSON format: {"supabase_url": "https://...", "anon_key": "eyJ..."}
type Resolver struct {
	logger   *zap.Logger
	cfg      config.Config
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[SupabaseCredentials]
}

// NewResolver constructs a credentials resolver. provider may be nil when
// credentials are fully supplied via environment.
func NewResolver(
	logger *zap.Logger,
	cfg config.Config,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[SupabaseCredentials],
) *Resolver {
	return &Resolver{
		logger:   logger,
		cfg:      cfg,
		provider: provider,
		cache:    cache,
	}
}

// Resolve returns the Supabase credentials for this instance.
func (r *Resolver) Resolve(ctx context.Context) (*SupabaseCredentials, error) {
	if r.cfg.SupabaseURL != "" && r.cfg.SupabaseAnonKey != "" {
		return &SupabaseCredentials{
			URL:     r.cfg.SupabaseURL,
			AnonKey: r.cfg.SupabaseAnonKey,
		}, nil
	}

	name := r.cfg.SupabaseSecretName
	if name == "" {
		return nil, fmt.Errorf("no Supabase credentials configured: set SUPABASE_URL and SUPABASE_ANON_KEY, or SUPABASE_SECRET_NAME")
	}
	if r.provider == nil {
		return nil, fmt.Errorf("SUPABASE_SECRET_NAME set but no secrets provider available")
	}

	if r.cache != nil {
		if creds, ok := r.cache.Get(name); ok {
			return &creds, nil
		}
	}

	raw, err := r.provider.GetSecret(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("resolve secret [%s]: %w", name, err)
	}

	creds, err := parseCredentials(raw)
	if err != nil {
		return nil, fmt.Errorf("secret [%s]: %w", name, err)
	}

	if r.cache != nil {
		r.cache.Put(name, creds)
	}
	r.logger.Info("secrets.resolved", zap.String("secret_name", name))
	return &creds, nil
}

// parseCredentials extracts SupabaseCredentials from the raw secret map.
func parseCredentials(m map[string]string) (SupabaseCredentials, error) {
	creds := SupabaseCredentials{
		URL:     m["supabase_url"],
		AnonKey: m["anon_key"],
	}
	if creds.URL == "" {
		return SupabaseCredentials{}, fmt.Errorf("missing required field 'supabase_url'")
	}
	if creds.AnonKey == "" {
		return SupabaseCredentials{}, fmt.Errorf("missing required field 'anon_key'")
	}
	return creds, nil
}
