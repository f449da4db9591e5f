package config

import (
	"time"

	"github.com/joho/godotenv"

	pkgconfig "github.com/Checker-Finance/upsi-probe/pkg/config"
)

// Config holds the runtime configuration for a probe run or serve-mode
// instance. Credentials are never hard-coded: they come from the
// environment (or .env), or from AWS Secrets Manager when
// SUPABASE_SECRET_NAME is set.
type Config struct {
	ServiceName string
	Env         string // "dev", "uat", "prod"
	LogLevel    string

	// Supabase project coordinates. URL+key via env, or via secret name.
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseSecretName string
	SupabaseDSN        string // optional pooler DSN for the direct Postgres check

	HTTPTimeout time.Duration // bound on each probe call

	// Logic-check fixtures.
	ProbeCompany string
	ProbeUPSIID  string
	SampleLimit  int

	// Serve mode.
	Serve            bool
	Port             int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	// Optional integrations; empty values disable them.
	NATSURL   string
	RedisAddr string
	RedisDB   int
	RedisPass string

	AWSRegion   string
	CacheTTL    time.Duration // TTL for resolved credential cache
	CleanupFreq time.Duration

	RateLimitRPS   int
	RateLimitBurst int
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	return &Config{
		ServiceName: pkgconfig.GetEnv("SERVICE_NAME", "upsi-probe"),
		Env:         pkgconfig.GetEnv("ENV", "dev"),
		LogLevel:    pkgconfig.GetEnv("LOG_LEVEL", "info"),

		SupabaseURL:        pkgconfig.GetEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    pkgconfig.GetEnv("SUPABASE_ANON_KEY", ""),
		SupabaseSecretName: pkgconfig.GetEnv("SUPABASE_SECRET_NAME", ""),
		SupabaseDSN:        pkgconfig.GetEnv("SUPABASE_DSN", ""),

		HTTPTimeout: pkgconfig.GetEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		ProbeCompany: pkgconfig.GetEnv("PROBE_COMPANY", "RELIANCE"),
		ProbeUPSIID:  pkgconfig.GetEnv("PROBE_UPSI_ID", "UPSI-001"),
		SampleLimit:  pkgconfig.GetEnvInt("PROBE_SAMPLE_LIMIT", 5),

		Serve:            pkgconfig.GetEnvBool("PROBE_SERVE", false),
		Port:             pkgconfig.GetEnvInt("PORT", 9040),
		HTTPReadTimeout:  pkgconfig.GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: pkgconfig.GetEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		HTTPIdleTimeout:  pkgconfig.GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:    pkgconfig.GetEnvInt("HTTP_BODY_LIMIT", 1*1024*1024),

		NATSURL:   pkgconfig.GetEnv("NATS_URL", ""),
		RedisAddr: pkgconfig.GetEnv("REDIS_ADDR", ""),
		RedisDB:   pkgconfig.GetEnvInt("REDIS_DB", 0),
		RedisPass: pkgconfig.GetEnv("REDIS_PASS", ""),

		AWSRegion:   pkgconfig.GetEnv("AWS_REGION", "us-east-2"),
		CacheTTL:    pkgconfig.GetEnvDuration("CACHE_TTL", 24*time.Hour),
		CleanupFreq: pkgconfig.GetEnvDuration("CACHE_CLEANUP_FREQ", 10*time.Minute),

		RateLimitRPS:   pkgconfig.GetEnvInt("RATE_LIMIT_RPS", 10),
		RateLimitBurst: pkgconfig.GetEnvInt("RATE_LIMIT_BURST", 20),
	}
}
