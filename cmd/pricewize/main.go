package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pricewize-lab/pricewize/internal/aggregate"
	corecfg "github.com/pricewize-lab/pricewize/internal/core/config"
	"github.com/pricewize-lab/pricewize/internal/core/storage/postgres"
	"github.com/pricewize-lab/pricewize/internal/ingest"
	"github.com/pricewize-lab/pricewize/internal/migrations"
	"github.com/pricewize-lab/pricewize/internal/runlog"
	"github.com/pricewize-lab/pricewize/internal/scrape"
	"github.com/pricewize-lab/pricewize/internal/server"
)

func main() {
	configPath := flag.String("config", "pricewize.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "sources", len(cfg.Sources))

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.Run(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// 3. Build Source Adapters
	adapters, err := scrape.BuildAdapters(cfg.Sources)
	if err != nil {
		slog.Error("Failed to build source adapters", "error", err)
		os.Exit(1)
	}
	orchestrator := scrape.NewOrchestrator(
		adapters,
		cfg.Scrape.PerAdapterTimeoutDuration(),
		cfg.Scrape.GlobalTimeoutDuration(),
	)
	slog.Info("Source adapters initialized", "platforms", orchestrator.Platforms())

	// 4. Initialize Aggregate Layer (query API + cache)
	cache := aggregate.NewCache(cfg.Aggregate.CacheTTLDuration(), nil)
	aggregateSvc := aggregate.NewService(dbAdapter, cache, cfg.Aggregate.TrendingMultiplier)

	// 5. Initialize Ingestion (trigger API)
	engine := ingest.NewEngine(dbAdapter, aggregateSvc)
	ingestSvc := ingest.NewService(
		orchestrator,
		engine,
		dbAdapter,
		cfg.Scrape.TriggerToken,
		cfg.Scrape.DefaultQuery,
	)
	if cfg.Scrape.TriggerToken == "" {
		slog.Warn("No trigger token configured; scrape trigger endpoint is disabled")
	}

	// 6. Initialize Retention Sweeper
	sweeper := runlog.NewSweeper(
		dbAdapter,
		dbAdapter,
		cfg.Retention.SweepIntervalDuration(),
		cfg.Retention.RunRetentionDuration(),
		cfg.Retention.ListingRetentionDuration(),
	)

	// 7. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter, cfg.Server.Mode)
	ingestSvc.RegisterRoutes(srv.Engine)
	aggregateSvc.RegisterRoutes(srv.Engine)

	// 8. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Retention.Enabled {
		go func() {
			if err := sweeper.Start(ctx); err != nil {
				slog.Error("Sweeper stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Retention sweeper disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
