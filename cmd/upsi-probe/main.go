package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/upsi-probe/internal/api"
	"github.com/Checker-Finance/upsi-probe/internal/config"
	"github.com/Checker-Finance/upsi-probe/internal/pgprobe"
	"github.com/Checker-Finance/upsi-probe/internal/postgrest"
	"github.com/Checker-Finance/upsi-probe/internal/probe"
	"github.com/Checker-Finance/upsi-probe/internal/publisher"
	"github.com/Checker-Finance/upsi-probe/internal/rate"
	internalsecrets "github.com/Checker-Finance/upsi-probe/internal/secrets"
	"github.com/Checker-Finance/upsi-probe/internal/store"
	"github.com/Checker-Finance/upsi-probe/internal/upsi"
	"github.com/Checker-Finance/upsi-probe/pkg/logger"
	"github.com/Checker-Finance/upsi-probe/pkg/secrets"
	"github.com/Checker-Finance/upsi-probe/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [upsi-probe]...")

	// --- Resolve Supabase credentials (env first, AWS Secrets Manager second) ---
	var provider secrets.Provider
	if cfg.SupabaseSecretName != "" {
		awsProvider, err := secrets.NewAWSProvider(cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		provider = awsProvider
	}

	credsCache := secrets.NewCache[internalsecrets.SupabaseCredentials](cfg.CacheTTL)
	stopCleaner := make(chan struct{})
	go credsCache.StartCleaner(cfg.CleanupFreq, stopCleaner)
	defer close(stopCleaner)

	resolver := internalsecrets.NewResolver(logg.Desugar(), *cfg, provider, credsCache)
	creds, err := resolver.Resolve(ctx)
	if err != nil {
		logg.Fatalw("failed to resolve Supabase credentials", "error", err)
	}
	logg.Infow("supabase credentials resolved",
		"url", creds.URL,
		"anon_key", utils.MaskToken(creds.AnonKey))

	// --- Rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})

	// --- Supabase REST client + UPSI read API ---
	restClient := postgrest.NewClient(logg.Desugar(), rateMgr, postgrest.ClientConfig{
		BaseURL: creds.URL,
		APIKey:  creds.AnonKey,
	}, cfg.HTTPTimeout)
	upsiSvc := upsi.NewService(logg.Desugar(), restClient)

	// --- Probe runner ---
	runner := probe.NewRunner(logg.Desugar(), restClient, upsiSvc, creds.URL, probe.Options{
		Company:     cfg.ProbeCompany,
		UPSIID:      cfg.ProbeUPSIID,
		SampleLimit: cfg.SampleLimit,
	})
	if cfg.SupabaseDSN != "" {
		logg.Info("direct Postgres check enabled: ", utils.MaskDSN(cfg.SupabaseDSN))
		runner.WithDirectDBCheck(pgprobe.New(logg.Desugar(), cfg.SupabaseDSN, cfg.HTTPTimeout))
	}

	// --- Report history (Redis when configured, in-memory otherwise) ---
	var history store.History
	if cfg.RedisAddr != "" {
		redisHistory, err := store.NewRedis(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, logg.Desugar())
		if err != nil {
			logg.Fatalw("failed to connect to Redis", "error", err, "addr", cfg.RedisAddr)
		}
		history = redisHistory
	} else {
		history = store.NewMemory()
	}
	defer func() { _ = history.Close() }()

	// --- Optional NATS publisher ---
	var pub *publisher.Publisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err, "url", cfg.NATSURL)
		}
		defer func() { _ = nc.Drain() }()

		pub, err = publisher.New(nc, cfg.ServiceName)
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
	}

	if cfg.Serve {
		serve(ctx, cfg, runner, history, pub)
		return
	}

	// --- One-shot diagnostic run ---
	report := runner.Run(ctx)
	report.Render(os.Stdout)

	if err := history.SaveReport(ctx, report); err != nil {
		logg.Warnw("failed to persist report", "error", err)
	}
	if pub != nil {
		if err := pub.PublishReport(ctx, report); err != nil {
			logg.Warnw("failed to publish report", "error", err)
		}
	}
	// Diagnostics always exit 0: failures are reported, not fatal.
}

// serve runs the probe as a long-lived HTTP service.
func serve(ctx context.Context, cfg *config.Config, runner *probe.Runner, history store.History, pub *publisher.Publisher) {
	logg := logger.S()

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	var reportPublisher api.ReportPublisher
	if pub != nil {
		reportPublisher = pub
	}
	probeHandler := api.NewProbeHandler(logg.Desugar(), runner, history, reportPublisher)
	api.RegisterRoutes(app, history, probeHandler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[upsi-probe] running",
		"env", cfg.Env,
		"port", cfg.Port,
		"nats", cfg.NATSURL != "",
		"redis", cfg.RedisAddr != "")

	<-ctx.Done()
	logg.Info("shutting down [upsi-probe]...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
}
