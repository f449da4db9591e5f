package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/upsi-probe/internal/config"
	pkgsecrets "github.com/Checker-Finance/upsi-probe/pkg/secrets"
)

type fakeProvider struct {
	secrets map[string]map[string]string
	calls   int
}

func (f *fakeProvider) GetSecret(ctx context.Context, key string) (map[string]string, error) {
	f.calls++
	if s, ok := f.secrets[key]; ok {
		return s, nil
	}
	return nil, errors.New("secret not found")
}

func newResolver(cfg config.Config, provider pkgsecrets.Provider) *Resolver {
	return NewResolver(zap.NewNop(), cfg, provider, pkgsecrets.NewCache[SupabaseCredentials](time.Minute))
}

func TestResolve_EnvWins(t *testing.T) {
	provider := &fakeProvider{}
	r := newResolver(config.Config{
		SupabaseURL:        "https://env.supabase.co",
		SupabaseAnonKey:    "env-key",
		SupabaseSecretName: "dev/upsi-probe/supabase",
	}, provider)

	creds, err := r.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "https://env.supabase.co", creds.URL)
	assert.Equal(t, "env-key", creds.AnonKey)
	assert.Zero(t, provider.calls)
}

func TestResolve_FromSecretsManager(t *testing.T) {
	provider := &fakeProvider{secrets: map[string]map[string]string{
		"dev/upsi-probe/supabase": {
			"supabase_url": "https://sm.supabase.co",
			"anon_key":     "sm-key",
		},
	}}
	r := newResolver(config.Config{SupabaseSecretName: "dev/upsi-probe/supabase"}, provider)

	creds, err := r.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "https://sm.supabase.co", creds.URL)
	assert.Equal(t, "sm-key", creds.AnonKey)
}

func TestResolve_SecondCallHitsCache(t *testing.T) {
	provider := &fakeProvider{secrets: map[string]map[string]string{
		"dev/upsi-probe/supabase": {
			"supabase_url": "https://sm.supabase.co",
			"anon_key":     "sm-key",
		},
	}}
	r := newResolver(config.Config{SupabaseSecretName: "dev/upsi-probe/supabase"}, provider)

	_, err := r.Resolve(context.Background())
	require.NoError(t, err)
	_, err = r.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
}

func TestResolve_NothingConfigured(t *testing.T) {
	r := newResolver(config.Config{}, &fakeProvider{})

	_, err := r.Resolve(context.Background())
	assert.ErrorContains(t, err, "no Supabase credentials configured")
}

func TestResolve_IncompleteSecret(t *testing.T) {
	provider := &fakeProvider{secrets: map[string]map[string]string{
		"dev/upsi-probe/supabase": {"supabase_url": "https://sm.supabase.co"},
	}}
	r := newResolver(config.Config{SupabaseSecretName: "dev/upsi-probe/supabase"}, provider)

	_, err := r.Resolve(context.Background())
	assert.ErrorContains(t, err, "anon_key")
}

func TestParseCredentials(t *testing.T) {
	_, err := parseCredentials(map[string]string{"anon_key": "k"})
	assert.ErrorContains(t, err, "supabase_url")

	creds, err := parseCredentials(map[string]string{
		"supabase_url": "https://x.supabase.co",
		"anon_key":     "k",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://x.supabase.co", creds.URL)
}
