package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/posledger/internal/client"
	"github.com/utafrali/posledger/internal/config"
	"github.com/utafrali/posledger/internal/domain"
	"github.com/utafrali/posledger/internal/event"
	handler "github.com/utafrali/posledger/internal/handler/http"
	"github.com/utafrali/posledger/internal/receipt"
	"github.com/utafrali/posledger/internal/repository"
	pgrepo "github.com/utafrali/posledger/internal/repository/postgres"
	redisrepo "github.com/utafrali/posledger/internal/repository/redis"
	"github.com/utafrali/posledger/internal/service"
	"github.com/utafrali/posledger/migrations"
	"github.com/utafrali/posledger/pkg/database"
	"github.com/utafrali/posledger/pkg/health"
	"github.com/utafrali/posledger/pkg/httpclient"
	pkgkafka "github.com/utafrali/posledger/pkg/kafka"
	"github.com/utafrali/posledger/pkg/tracing"
)

const (
	serviceName    = "pos-terminal"
	ledgerCacheTTL = 24 * time.Hour
	recentSales    = 20
)

// App wires together all dependencies and runs the terminal.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	submitter      *service.SaleSubmitter
	ledger         *service.LedgerAggregator
	httpServer     *http.Server
	shutdownTracer func(context.Context) error

	loadCancel context.CancelFunc
	loads      sync.WaitGroup
}

// NewApp creates a new application instance, initializing all dependencies.
// The journal, ledger cache and event stream are optional and only connected
// when enabled.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// Initialize tracing.
	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing(serviceName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{
		cfg:            cfg,
		logger:         logger,
		shutdownTracer: shutdownTracer,
	}
	healthHandler := health.NewHandler()

	// Sale journal (PostgreSQL).
	var journal repository.SaleJournal
	if cfg.JournalEnabled {
		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool

		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			a.closeResources()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, cfg.TerminalID); err != nil {
			logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
		}

		journal = pgrepo.NewSaleJournal(pool)
		healthHandler.RegisterOptional("postgres", pool.Ping)
		logger.Info("sale journal enabled",
			slog.String("host", pgCfg.Host),
			slog.String("database", pgCfg.DBName),
		)
	}

	// Ledger cache (Redis). A till keeps selling without it.
	var cache repository.LedgerCache
	if cfg.LedgerCacheEnabled {
		rdb, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			logger.Warn("ledger cache unavailable, continuing without it", slog.String("error", err.Error()))
		} else {
			a.rdb = rdb
			ledgerCache := redisrepo.NewLedgerCache(rdb, cfg.TerminalID, ledgerCacheTTL)
			cache = ledgerCache
			healthHandler.RegisterOptional("redis", ledgerCache.Ping)
			logger.Info("ledger cache enabled", slog.String("addr", cfg.Redis().Addr()))
		}
	}

	// Event stream (Kafka).
	var events service.EventPublisher = event.Noop{}
	if cfg.EventsEnabled {
		producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.producer = producer
		events = event.NewProducer(producer, cfg.TerminalID, logger)
		healthHandler.RegisterOptional("kafka", producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Sales backend. Reads and writes trip separately.
	hc := httpclient.New(cfg.HTTPClient())
	reads := httpclient.NewCircuitBreakerClient(hc, cfg.CircuitBreaker("backend-reads"), logger).
		WithFallback(client.CircuitOpenFallback)
	writes := httpclient.NewCircuitBreakerClient(hc, cfg.CircuitBreaker("backend-writes"), logger).
		WithFallback(client.CircuitOpenFallback)
	backend := client.NewBackendClient(cfg.BackendURL, reads, writes, logger)
	healthHandler.RegisterCritical("backend", func(context.Context) error {
		if writes.State() == gobreaker.StateOpen {
			return errors.New("sale submission circuit is open")
		}
		return nil
	})

	printer, err := receipt.NewPrinter(cfg.PrinterType, cfg.PrinterPath, cfg.ReceiptWidth)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("init printer: %w", err)
	}

	// Build the dependency graph.
	sessionID := uuid.NewString()
	cart := domain.NewCart(sessionID)
	recent := service.NewRecentSales(recentSales)
	renderer := receipt.Renderer{Location: loc, Exponent: cfg.CurrencyExponent}

	cartService := service.NewCartService(cart, backend, logger)
	a.submitter = service.NewSaleSubmitter(cart, backend, events, journal, recent, service.SubmitterConfig{
		TerminalID: cfg.TerminalID,
		Location:   loc,
		Store:      cfg.Store(),
	}, logger)
	a.ledger = service.NewLedgerAggregator(backend, cache, events, service.LedgerConfig{
		PageSize:         cfg.LedgerPageSize,
		MaxPages:         cfg.LedgerMaxPages,
		Location:         loc,
		RemoteDateFilter: cfg.RemoteDateFilterEnabled,
		ReloadInterval:   time.Duration(cfg.LedgerReloadSeconds) * time.Second,
	}, logger)
	reportService := service.NewReportService(a.ledger, journal, cfg.TerminalID, logger)
	receiptService := service.NewReceiptService(recent, a.ledger, cfg.Store(), renderer, printer, logger)

	if err := a.ledger.Restore(ctx); err != nil {
		logger.Warn("failed to restore cached ledger", slog.String("error", err.Error()))
	}

	// HTTP router.
	router := handler.NewRouter(handler.Services{
		Cart:      cartService,
		Submitter: a.submitter,
		Ledger:    a.ledger,
		Reports:   reportService,
		Receipts:  receiptService,
	}, healthHandler, handler.RouterConfig{
		TerminalID:   cfg.TerminalID,
		ReceiptWidth: cfg.ReceiptWidth,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      75 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("terminal initialized",
		slog.String("session_id", sessionID),
		slog.String("backend_url", cfg.BackendURL),
		slog.String("timezone", loc.String()),
		slog.String("printer", cfg.PrinterType),
	)

	return a, nil
}

// Run starts the HTTP server and an initial history load, and blocks until
// the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	loadCtx, loadCancel := context.WithCancel(ctx)
	a.loadCancel = loadCancel
	a.loads.Add(1)
	go func() {
		defer a.loads.Done()
		if _, err := a.ledger.LoadAll(loadCtx); err != nil {
			a.logger.Warn("initial sales history load failed", slog.String("error", err.Error()))
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components. In-flight post-commit work is
// allowed to finish before the journal and event stream are closed.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down terminal...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}

	if a.loadCancel != nil {
		a.loadCancel()
	}
	a.loads.Wait()
	a.submitter.Wait()
	a.ledger.Wait()

	errs = append(errs, a.closeResources()...)

	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		errs = append(errs, fmt.Errorf("tracer: %w", err))
	}

	a.logger.Info("terminal shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() []error {
	var errs []error

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("kafka producer: %w", err))
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	return errs
}
