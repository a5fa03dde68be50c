// Package main is the entry point for the clinigate authorization gateway.
// It loads configuration, selects the identity and rate-limit backends,
// sets up routing, and starts the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"clinigate/internal/access"
	"clinigate/internal/auth"
	"clinigate/internal/cache"
	"clinigate/internal/clock"
	"clinigate/internal/config"
	"clinigate/internal/database"
	"clinigate/internal/handlers"
	"clinigate/internal/intrusion"
	"clinigate/internal/lockout"
	"clinigate/internal/ratelimit"
	"clinigate/internal/router"
	"clinigate/internal/session"
	"clinigate/internal/store"
)

// activitySweepInterval is how often in-memory session records are pruned.
// Rate-limit counters use ratelimit.DefaultSweepInterval.
const activitySweepInterval = time.Minute

func main() {
	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: JSON in production, text in development.
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.IsDev() {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"identity", cfg.IdentityMode,
		"rate_limit_backend", cfg.RateLimitBackend,
	)
	if cfg.GeneratedSecret {
		slog.Warn("SESSION_SECRET not set, using a random key; sessions will not survive a restart")
	}

	ctx := context.Background()
	clk := clock.Real{}

	// Valkey holds shared rate-limit counters and session activity.
	var valkey *redis.Client
	if cfg.RateLimitBackend == config.RateLimitValkey {
		valkey, err = cache.ConnectValkey(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword, cache.DefaultOptions)
		if err != nil {
			slog.Error("failed to connect to valkey", "error", err)
			os.Exit(1)
		}
		defer valkey.Close()
	}

	var (
		rlBackend ratelimit.Backend
		activity  session.ActivityStore
	)
	if valkey != nil {
		rlBackend = ratelimit.NewRedisBackend(valkey, clk)
		activity = session.NewRedisActivityStore(valkey, session.DefaultTimeouts)
	} else {
		slog.Warn("valkey not configured, rate limits and session activity are per instance")
		mem, memActivity := newLocalStores(clk)
		defer mem.Stop()
		defer memActivity.Stop()
		rlBackend = mem
		activity = memActivity
	}
	limiter := ratelimit.New(rlBackend, ratelimit.WithTimeout(cfg.RateLimitTimeout))

	// Identity backend: PostgreSQL in live mode, the static demo table otherwise.
	var (
		directory auth.Directory
		mode      auth.Mode
		features  access.Features
		writer    handlers.FeatureWriter
		ledger    lockout.Ledger
	)
	switch cfg.IdentityMode {
	case config.IdentityLive:
		db := openDatabase(ctx, cfg)
		defer db.Close()

		featureStore := store.NewFeatureStore(db)
		directory = auth.NewStoreDirectory(store.NewUserStore(db))
		mode = auth.ModeLive
		features = access.NewStoreFeatures(featureStore)
		writer = featureStore
		ledger = store.NewLoginAttemptStore(db)
	default:
		if cfg.DemoPassword == "" {
			slog.Warn("DEMO_PASSWORD not set, demo accounts cannot log in")
		}
		slog.Warn("demo mode: accounts come from a fixed in-memory table")
		memFeatures := access.NewMemoryFeatures(auth.DemoFeatures(clk.Now())...)
		directory = auth.NewDemoDirectory(cfg.DemoPassword)
		mode = auth.ModeDemo
		features = memFeatures
		writer = memFeatures
		ledger = lockout.NewMemoryLedger()
	}

	secure := !cfg.IsDev()
	sessions, err := session.NewManager(cfg.SessionSecret, session.DefaultTimeouts.Absolute, secure, clk)
	if err != nil {
		slog.Error("failed to initialize session manager", "error", err)
		os.Exit(1)
	}
	authn := auth.New(directory, sessions, activity,
		auth.WithMode(mode),
		auth.WithLookupTimeout(cfg.IdentityTimeout),
	)

	rules, err := loadRules(cfg.AccessRulesFile)
	if err != nil {
		slog.Error("failed to load access rules", "error", err)
		os.Exit(1)
	}
	gate := access.NewGate(rules, features, access.WithFeatureTimeout(cfg.FeatureTimeout))

	policy := lockout.NewPolicy(ledger)
	janitor, err := lockout.NewJanitor(ledger, policy.Config().Retention, cfg.LockoutPurgeSchedule, clk)
	if err != nil {
		slog.Error("failed to schedule login ledger purge", "error", err)
		os.Exit(1)
	}
	janitor.Start()
	defer janitor.Stop()

	upstream, err := handlers.NewUpstream(cfg.UpstreamURL)
	if err != nil {
		slog.Error("invalid upstream url", "error", err)
		os.Exit(1)
	}
	if cfg.UpstreamURL == "" {
		slog.Warn("UPSTREAM_URL not set, /api requests past the gate will get 502")
	}

	// Set up the Chi router with all middleware and routes.
	r := router.New(router.Deps{
		Authenticator: authn,
		Gate:          gate,
		Limiter:       limiter,
		Detector:      intrusion.New(cfg.IntrusionScanBody),
		Auth:          handlers.NewAuth(authn, policy, clk, cfg.TrustProxyHeaders),
		Features:      handlers.NewFeatures(writer, directory, clk),
		Upstream:      upstream,
		TrustProxy:    cfg.TrustProxyHeaders,
		Secure:        secure,
	})

	// Create the HTTP server with sensible timeouts. WriteTimeout must
	// accommodate slow upstream responses such as exports.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Prometheus is scraped on a separate, internal listener.
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           router.NewInternal(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	// Start the servers in goroutines so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()
	go func() {
		slog.Info("metrics listener starting", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics listener failed", "error", err)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics listener forced to shutdown", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return
	}

	slog.Info("server stopped gracefully")
}

// newLocalStores creates the per-instance counter and session activity
// stores used when Valkey is not configured. Callers must Stop both.
func newLocalStores(clk clock.Clock) (*ratelimit.MemoryBackend, *session.MemoryActivityStore) {
	counters := ratelimit.NewMemoryBackend(clk, ratelimit.DefaultSweepInterval)
	activity := session.NewMemoryActivityStore(session.DefaultTimeouts, clk, activitySweepInterval)
	return counters, activity
}

// openDatabase connects to PostgreSQL, runs pending migrations and, in
// development, seeds the default accounts.
func openDatabase(ctx context.Context, cfg *config.Config) *sql.DB {
	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(ctx, db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() && cfg.SeedPassword != "" {
		if err := database.Seed(ctx, db, cfg.SeedPassword); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}
	return db
}

// loadRules returns the access rules from path, or the embedded defaults.
func loadRules(path string) ([]access.Rule, error) {
	if path == "" {
		return access.DefaultRules()
	}
	slog.Info("loading access rules", "path", path)
	return access.LoadRules(path)
}
