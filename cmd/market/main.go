package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coss1333/Qr-market/internal/alert"
	"github.com/coss1333/Qr-market/internal/api"
	"github.com/coss1333/Qr-market/internal/blob"
	"github.com/coss1333/Qr-market/internal/chain"
	"github.com/coss1333/Qr-market/internal/chain/bsc"
	"github.com/coss1333/Qr-market/internal/chain/evm/rpc"
	"github.com/coss1333/Qr-market/internal/chain/tron"
	"github.com/coss1333/Qr-market/internal/circuitbreaker"
	"github.com/coss1333/Qr-market/internal/config"
	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/coss1333/Qr-market/internal/market"
	"github.com/coss1333/Qr-market/internal/metrics"
	"github.com/coss1333/Qr-market/internal/reconcile"
	"github.com/coss1333/Qr-market/internal/store"
	"github.com/coss1333/Qr-market/internal/store/memory"
	"github.com/coss1333/Qr-market/internal/store/postgres"
	"github.com/coss1333/Qr-market/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName   = "qr-market"
	primaryPool   = "primary"
	shutdownGrace = 5 * time.Second
)

type dbStatsProvider interface {
	Stats() sql.DBStats
}

type dbPoolStatsGauges struct {
	open         *prometheus.GaugeVec
	inUse        *prometheus.GaugeVec
	idle         *prometheus.GaugeVec
	waitCount    *prometheus.GaugeVec
	waitDuration *prometheus.GaugeVec
}

func collectDBPoolStats(db dbStatsProvider, pool string, gauges dbPoolStatsGauges) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("db pool stats collection panicked: %v", r)
		}
	}()
	if db == nil {
		return fmt.Errorf("db stats provider is nil")
	}

	stats := db.Stats()
	gauges.open.WithLabelValues(pool).Set(float64(stats.OpenConnections))
	gauges.inUse.WithLabelValues(pool).Set(float64(stats.InUse))
	gauges.idle.WithLabelValues(pool).Set(float64(stats.Idle))
	gauges.waitCount.WithLabelValues(pool).Set(float64(stats.WaitCount))
	gauges.waitDuration.WithLabelValues(pool).Set(stats.WaitDuration.Seconds())
	return nil
}

func startDBPoolStatsPump(ctx context.Context, db dbStatsProvider, intervalMS int, logger *slog.Logger) {
	if db == nil || intervalMS <= 0 {
		return
	}

	gauges := dbPoolStatsGauges{
		open:         metrics.DBPoolOpen,
		inUse:        metrics.DBPoolInUse,
		idle:         metrics.DBPoolIdle,
		waitCount:    metrics.DBPoolWaitCount,
		waitDuration: metrics.DBPoolWaitDurationSeconds,
	}

	ticker := time.NewTicker(time.Duration(intervalMS) * time.Millisecond)

	go func() {
		defer ticker.Stop()

		if err := collectDBPoolStats(db, primaryPool, gauges); err != nil {
			logger.Warn("failed to collect initial db pool stats", "error", err)
		}

		for {
			select {
			case <-ctx.Done():
				logger.Info("db pool stats sampler stopped", "cause", "context_done")
				return
			case <-ticker.C:
				if err := collectDBPoolStats(db, primaryPool, gauges); err != nil {
					logger.Warn("failed to collect db pool stats", "error", err)
				}
			}
		}
	}()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// repositories bundles the lot and check stores of the selected backend.
type repositories struct {
	lots   store.LotRepository
	checks store.CheckRepository
	db     *postgres.DB // nil for the memory backend
}

func openRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repositories, error) {
	if cfg.Store.Backend == config.StoreBackendMemory {
		logger.Warn("using in-memory store, lots are lost on restart")
		return &repositories{lots: memory.NewLotStore(), checks: memory.NewCheckStore()}, nil
	}

	db, err := postgres.New(postgres.Config{
		URL:                cfg.DB.URL,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetime:    cfg.DB.ConnMaxLifetime,
		StatementTimeoutMS: cfg.DB.StatementTimeoutMS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.RunMigrations(ctx, cfg.DB.MigrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("connected to database")
	return &repositories{
		lots:   postgres.NewLotRepo(db),
		checks: postgres.NewCheckRepo(db),
		db:     db,
	}, nil
}

// blobBackend is a BlobStore that may hold a connection.
type blobBackend interface {
	store.BlobStore
	io.Closer
}

type nopCloser struct{ store.BlobStore }

func (nopCloser) Close() error { return nil }

func openBlobStore(ctx context.Context, cfg config.BlobConfig) (blobBackend, error) {
	switch cfg.Backend {
	case config.BlobBackendRedis:
		s, err := blob.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis blob store: %w", err)
		}
		return s, nil
	default:
		s, err := blob.NewFSStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open fs blob store: %w", err)
		}
		return nopCloser{s}, nil
	}
}

func bscConfig(cfg *config.Config) bsc.Config {
	return bsc.Config{
		RPCURL:         cfg.BSC.RPCURL,
		RPS:            cfg.BSC.RPS,
		Burst:          cfg.BSC.Burst,
		Timeout:        cfg.Chain.RPCTimeout,
		NativeWindow:   cfg.BSC.NativeWindow,
		TokenWindow:    cfg.BSC.TokenWindow,
		BlockCacheSize: cfg.BSC.BlockCacheSize,
	}
}

// buildReaders registers one reader per supported currency. Both BSC readers
// share a client and a breaker so an outage trips them together.
func buildReaders(cfg *config.Config, client rpc.RPCClient, logger *slog.Logger) map[model.Currency]chain.Reader {
	bscReaders := bsc.NewReaders(client, bscConfig(cfg), logger)

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OpenTimeout:      cfg.Breaker.OpenTimeout,
		OnStateChange:    chain.BreakerStateGauge(model.ChainBSC, logger),
	})

	return map[model.Currency]chain.Reader{
		model.CurrencyNativeBSC:  chain.Guard(bscReaders.Native, breaker, logger),
		model.CurrencyTokenBEP20: chain.Guard(bscReaders.Token, breaker, logger),
		model.CurrencyTokenTRC20: tron.NewUnsupportedChainStub(logger),
	}
}

func buildAlerter(cfg config.AlertConfig, logger *slog.Logger) alert.Alerter {
	var sinks []alert.Alerter
	if cfg.SlackWebhookURL != "" {
		sinks = append(sinks, alert.NewSlackAlerter(cfg.SlackWebhookURL))
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, alert.NewWebhookAlerter(cfg.WebhookURL))
	}
	if len(sinks) == 0 {
		return &alert.NoopAlerter{}
	}
	return alert.NewMultiAlerter(cfg.Cooldown, logger, sinks...)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	logger.Info("starting qr-market",
		"store_backend", cfg.Store.Backend,
		"blob_backend", cfg.Blob.Backend,
		"bsc_rpc", cfg.BSC.RPCURL,
		"bsc_network", cfg.BSC.Network,
		"check_interval", cfg.Check.Interval,
		"check_workers", cfg.Check.Workers,
	)

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(context.Background(), tracing.Config{
		ServiceName: serviceName,
		Endpoint:    tracingEndpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	if repos.db != nil {
		defer repos.db.Close()
	}

	blobs, err := openBlobStore(ctx, cfg.Blob)
	if err != nil {
		logger.Error("failed to open blob store", "error", err)
		os.Exit(1)
	}
	defer blobs.Close()

	readers := buildReaders(cfg, bsc.NewClient(bscConfig(cfg), logger), logger)

	engine := reconcile.NewEngine(repos.lots, readers, reconcile.Config{
		Workers:    cfg.Check.Workers,
		LotTimeout: cfg.Check.LotTimeout,
	}, logger,
		reconcile.WithCheckRepository(repos.checks),
		reconcile.WithAlerter(buildAlerter(cfg.Alert, logger)),
	)
	scheduler := reconcile.NewScheduler(engine, cfg.Check.Interval, logger)

	svc := market.NewService(repos.lots, blobs, logger)
	apiServer := api.NewServer(svc, engine, logger, api.WithCheckHistory(repos.checks))

	limiter := api.NewRateLimitMiddleware(logger)
	defer limiter.Stop()
	handler := api.AuditMiddleware(logger, limiter.Wrap(apiServer.Handler()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runHealthServer(gCtx, cfg.Server.HealthPort, logger)
	})
	g.Go(func() error {
		return runHTTPServer(gCtx, "api", cfg.Server.Port, handler, logger)
	})
	g.Go(func() error {
		return scheduler.Run(gCtx)
	})

	if repos.db != nil {
		startDBPoolStatsPump(gCtx, repos.db.DB, cfg.DB.PoolStatsIntervalMS, logger)
	}

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("qr-market exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("qr-market shut down gracefully")
}

func healthHandler(logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func runHealthServer(ctx context.Context, port int, logger *slog.Logger) error {
	return runHTTPServer(ctx, "health", port, healthHandler(logger), logger)
}

func runHTTPServer(ctx context.Context, name string, port int, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("server shutdown error", "server", name, "error", err)
		}
	}()

	logger.Info("server started", "server", name, "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}
