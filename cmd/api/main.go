package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"discount-rules/internal/config"
	"discount-rules/internal/database"
	"discount-rules/internal/discount"
	"discount-rules/internal/engine"
	"discount-rules/internal/handler"
	"discount-rules/internal/ledger"
	"discount-rules/internal/metrics"
	"discount-rules/internal/repository"
	"discount-rules/internal/router"
	"discount-rules/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting discount-rules API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		logger.Info().Msg("database schema is up to date")
	}

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Initialize usage ledger
	usage, err := newLedger(cfg.Ledger, pool, m, logger)
	if err != nil {
		return err
	}

	// Initialize repositories
	var ruleRepo repository.RuleRepository = repository.NewRuleRepository(pool, logger)
	if cfg.Cache.Enabled {
		ruleRepo = repository.NewCachedRuleRepository(ruleRepo, cfg.Cache.TTL(), logger)
		logger.Info().Dur("ttl", cfg.Cache.TTL()).Msg("rule cache enabled")
	}

	// Initialize services
	ruleService := service.NewRuleService(ruleRepo, usage, discount.NewRuleValidator(), cfg.Bulk.Concurrency, logger)
	redemptionService := service.NewRedemptionService(ruleService, engine.New(usage, logger), usage, m, logger)

	// Initialize HTTP handlers
	ruleHandler := handler.NewRuleHandler(ruleService, logger)
	redemptionHandler := handler.NewRedemptionHandler(redemptionService, logger)

	// Initialize router
	mux := router.New(ruleHandler, redemptionHandler, router.Options{
		APIKey:   cfg.Auth.APIKey,
		Gatherer: registry,
		Database: pool,
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newLedger builds the configured usage ledger backend.
func newLedger(cfg config.LedgerConfig, pool *pgxpool.Pool, m *metrics.Metrics, logger zerolog.Logger) (ledger.Ledger, error) {
	mode, err := ledger.ParseMode(cfg.CooldownMode)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger cooldown mode: %w", err)
	}

	logger.Info().
		Str("backend", cfg.Backend).
		Str("cooldown_mode", string(mode)).
		Msg("initialising usage ledger")

	switch cfg.Backend {
	case config.LedgerBackendMemory:
		logger.Warn().Msg("in-memory usage ledger selected; usage is lost on restart and not shared between instances")
		return ledger.NewMemoryLedger(mode, logger), nil
	case config.LedgerBackendPostgres:
		return ledger.NewPostgresLedger(pool, ledger.PostgresConfig{
			Mode:       mode,
			MaxRetries: uint(cfg.MaxRetries),
			RetryDelay: cfg.RetryDelay(),
		}, m, logger), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend: %q", cfg.Backend)
	}
}
