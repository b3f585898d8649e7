package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/cache"
	"github.com/quickcommerce/deals-engine/pkg/config"
	"github.com/quickcommerce/deals-engine/pkg/database"
	"github.com/quickcommerce/deals-engine/pkg/engine"
	"github.com/quickcommerce/deals-engine/pkg/handlers"
	"github.com/quickcommerce/deals-engine/pkg/llm"
	"github.com/quickcommerce/deals-engine/pkg/middleware"
	"github.com/quickcommerce/deals-engine/pkg/models"
	"github.com/quickcommerce/deals-engine/pkg/monitoring"
	"github.com/quickcommerce/deals-engine/pkg/planner"
	"github.com/quickcommerce/deals-engine/pkg/ratelimit"
	"github.com/quickcommerce/deals-engine/pkg/schema"
	"github.com/quickcommerce/deals-engine/pkg/sqlgen"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("database", cfg.Database.Host))

	var tables []models.TableDescriptor
	if cfg.SchemaPath != "" {
		tables, err = schema.LoadCatalogFile(cfg.SchemaPath)
		if err != nil {
			logger.Fatal("Failed to load schema catalog", zap.String("path", cfg.SchemaPath), zap.Error(err))
		}
	} else {
		tables = schema.DefaultCatalog()
	}

	index, err := schema.NewIndex(tables, logger)
	if err != nil {
		logger.Fatal("Failed to build schema index", zap.Error(err))
	}

	monitor := monitoring.New(0, cfg.Query.SlowQueryThreshold, logger)

	p := planner.New(index, monitor.TableFeedback, planner.Config{
		MaxCandidateTables: cfg.Planner.MaxCandidateTables,
		ComplexityCeiling:  cfg.Planner.ComplexityCeiling,
	}, logger)

	queryCache := cache.New(cfg.Cache.MaxSize, cfg.Cache.TTL, logger)
	queryCache.StartSweeper(cfg.Cache.SweepEvery)
	defer queryCache.Close()

	limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)
	limiter.StartSweeper(cfg.RateLimit.Window)
	defer limiter.Close()

	client, err := llm.NewGenerator(&cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to create generation client", zap.Error(err))
	}
	if client == nil {
		logger.Warn("No LLM provider configured, serving all queries from template fallback")
	}

	generator := sqlgen.New(client, index, sqlgen.Config{
		Timeout: cfg.LLM.Timeout,
		MaxRows: cfg.Query.MaxResultRows,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPool(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	executor := database.NewPgxExecutor(db, cfg.Query.ExecutionTimeout, cfg.Query.MaxResultRows, logger)

	eng := engine.New(limiter, queryCache, p, generator, executor, monitor, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(eng, logger).RegisterRoutes(mux)
	handlers.NewCacheHandler(eng, logger).RegisterRoutes(mux)
	handlers.NewMonitoringHandler(eng, cfg.Query.SlowQueryThreshold, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting deals-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown did not complete cleanly", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
