package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lmstaker/config"
	"lmstaker/core/events"
	"lmstaker/core/state"
	"lmstaker/gateway/middleware"
	"lmstaker/gateway/routes"
	"lmstaker/indexer"
	"lmstaker/native/staker"
	"lmstaker/observability/logging"
	"lmstaker/observability/metrics"
	telemetry "lmstaker/observability/otel"
	"lmstaker/rpc"
	"lmstaker/storage"
)

const serviceName = "stakerd"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./stakerd.toml", "path to stakerd configuration")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "stakerd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetupRotating(logging.Rotation{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, logging.Options{Service: serviceName, Env: cfg.Environment, Level: level})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    firstNonEmpty(cfg.Telemetry.Endpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.MergeHeaders(cfg.Telemetry.Headers, telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	d, err := newDaemon(cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           d.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", listener.Addr().String()), slog.String("vault", cfg.Staker.Vault))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}
	logger.Info("stopped")
	return nil
}

// daemon owns the long-lived resources behind the HTTP handler.
type daemon struct {
	handler http.Handler
	engine  *staker.Engine
	db      storage.Database
	index   *indexer.Indexer
	stream  *rpc.EventStream
}

func newDaemon(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	vault, err := cfg.VaultAddress()
	if err != nil {
		return nil, fmt.Errorf("vault address: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	d := &daemon{db: db, stream: rpc.NewEventStream()}

	store := state.NewStakerStore(db)
	feeds := state.NewFeeds(db)
	incentives, err := store.Incentives()
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("load incentives: %w", err)
	}
	metrics.Staker().SeedActiveStakes(incentives)

	fanout := events.Fanout{metrics.Staker(), d.stream}
	var eventLog routes.EventLog
	if path := strings.TrimSpace(cfg.Indexer.Path); path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.DataDir, path)
		}
		idx, err := indexer.Open(path)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("open indexer: %w", err)
		}
		idx.SetLogger(logger)
		d.index = idx
		fanout = append(fanout, idx)
		eventLog = idx
	}

	engine := staker.NewEngine()
	engine.SetBackend(store)
	engine.SetPoolOracle(feeds)
	engine.SetLocker(feeds)
	engine.SetVault(vault)
	engine.SetEmitter(fanout)
	if err := engine.SetParams(cfg.StakerParams()); err != nil {
		d.Close()
		return nil, err
	}
	d.engine = engine

	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:             cfg.Auth.Enabled,
		HMACSecret:          cfg.Auth.HMACSecret,
		Issuer:              cfg.Auth.Issuer,
		Audience:            cfg.Auth.Audience,
		AllowAnonymousReads: cfg.Auth.AllowAnonymousReads,
	}, logger)
	if !cfg.Auth.Enabled {
		logger.Warn("authentication disabled; callers are taken from the " + middleware.CallerHeader + " header")
	}
	limiter := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		"api": {RequestsPerMinute: float64(cfg.RateLimit.RequestsPerMinute), Burst: cfg.RateLimit.Burst},
	}, logger)

	router, err := routes.New(routes.Config{
		Engine:         engine,
		Store:          store,
		Feeds:          feeds,
		Events:         eventLog,
		Stream:         rpc.NewStreamHandler(d.stream, logger, nil),
		MetricsHandler: promhttp.Handler(),
		Authenticator:  auth,
		RateLimiter:    limiter,
		Observability:  middleware.NewObservability(middleware.ObservabilityConfig{ServiceName: serviceName, LogRequests: true}, logger),
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("configure routes: %w", err)
	}
	d.handler = router
	if cfg.Telemetry.Traces {
		d.handler = otelhttp.NewHandler(router, serviceName)
	}
	return d, nil
}

func (d *daemon) Close() {
	if d.index != nil {
		_ = d.index.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
