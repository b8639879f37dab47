package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/crop-damage-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/crop-damage-etl/internal/adapter/kafka"
	"github.com/couchcryptid/crop-damage-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/crop-damage-etl/internal/config"
	"github.com/couchcryptid/crop-damage-etl/internal/domain"
	"github.com/couchcryptid/crop-damage-etl/internal/observability"
	"github.com/couchcryptid/crop-damage-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	tables, err := loadTables(cfg.TablesDir)
	if err != nil {
		logger.Error("failed to load lookup tables", "dir", cfg.TablesDir, "error", err)
		os.Exit(1)
	}
	engine := domain.NewEngine(tables,
		domain.WithStrictStages(cfg.StrictStages),
		domain.WithLogger(logger),
	)
	logger.Info("damage engine ready", "strict_stages", cfg.StrictStages, "tables_dir", cfg.TablesDir)

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(engine, geocoder, logger, metrics)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, engine, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// loadTables reads lookup tables from dir, or returns nil so the engine uses
// the embedded tables.
func loadTables(dir string) (*domain.TableStore, error) {
	if dir == "" {
		return nil, nil
	}
	return domain.LoadTables(os.DirFS(dir))
}
