// Package main wires together the catalog service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/torquemods/modhub/internal/api"
	"github.com/torquemods/modhub/internal/catalog"
	"github.com/torquemods/modhub/internal/config"
	"github.com/torquemods/modhub/internal/events"
	pubsubevents "github.com/torquemods/modhub/internal/events/pubsub"
	"github.com/torquemods/modhub/internal/fetcher"
	collyfetcher "github.com/torquemods/modhub/internal/fetcher/colly"
	"github.com/torquemods/modhub/internal/logging"
	"github.com/torquemods/modhub/internal/metrics"
	"github.com/torquemods/modhub/internal/orchestrator"
	"github.com/torquemods/modhub/internal/policy/backoff"
	"github.com/torquemods/modhub/internal/policy/pacing"
	"github.com/torquemods/modhub/internal/query"
	"github.com/torquemods/modhub/internal/scraper"
	memorystore "github.com/torquemods/modhub/internal/store/memory"
	postgresstore "github.com/torquemods/modhub/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// A missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	modStore, err := buildModStore(ctx, cfg)
	if err != nil {
		logger.Fatal("mod store init failed", zap.Error(err))
	}
	defer modStore.Close()

	publisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Warn("publisher close failed", zap.Error(closeErr))
		}
	}()

	pageFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Scrape.UserAgent,
		PageLimit: cfg.Scrape.PageLimit,
		Timeout:   cfg.RequestTimeout(),
	})
	controller := fetcher.NewController(pageFetcher, backoff.Policy{
		MaxRetries: cfg.Scrape.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay(),
	}, logger.Named("fetcher"))
	pacer := pacing.New(cfg.PageDelay())

	storeScraper := scraper.New(controller, pacer, scraper.Config{
		PageLimit: cfg.Scrape.PageLimit,
		MaxPages:  cfg.Scrape.MaxPages,
	}, logger.Named("scraper"))

	orch := orchestrator.New(cfg.Stores, storeScraper, modStore, publisher, orchestrator.Config{
		Concurrency:     cfg.Scrape.StoreConcurrency,
		RefreshInterval: cfg.RefreshInterval(),
	}, logger.Named("orchestrator"))

	engine := query.New(modStore, orch, logger.Named("query"))
	apiServer := api.NewServer(engine, orch, cfg.Stores, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("periodic refresh started",
			zap.Duration("interval", cfg.RefreshInterval()))
		orch.RunPeriodic(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildModStore(ctx context.Context, cfg config.Config) (catalog.ModStore, error) {
	switch cfg.DB.Driver {
	case "postgres":
		store, err := postgresstore.New(ctx, postgresstore.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxConns),
		})
		if err != nil {
			return nil, err
		}
		if err := store.InitSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return memorystore.New(), nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (events.Publisher, error) {
	if cfg.PubSub.ProjectID == "" {
		logger.Info("pubsub not configured, recording summaries in memory")
		return events.NewMemory(), nil
	}
	return pubsubevents.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
}
