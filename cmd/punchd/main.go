package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/autonex/punchd/internal/archive"
	"github.com/autonex/punchd/internal/attendance/service"
	sqlitestore "github.com/autonex/punchd/internal/attendance/store/sqlite"
	"github.com/autonex/punchd/internal/config"
	"github.com/autonex/punchd/internal/db"
	"github.com/autonex/punchd/internal/httpapi"
	"github.com/autonex/punchd/internal/metrics"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "punchd ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer sqlDB.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, sqlDB, db.SeedDevOptions{}); err != nil {
			logger.Fatalf("seed dev data: %v", err)
		}
	}

	writer := db.NewWorker(sqlDB, cfg.WriterQueueDepth)
	defer writer.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Stores
	deviceStore := sqlitestore.NewDeviceStore(sqlDB, writer)
	ledgerStore := sqlitestore.NewLedgerStore(sqlDB, writer)
	directory := sqlitestore.NewDirectory(sqlDB, writer)
	heartbeatStore := sqlitestore.NewHeartbeatStore(sqlDB, writer)

	// Services
	registry := service.NewDeviceRegistry(deviceStore, service.RegistryConfig{
		AnomalyWindow:     cfg.AnomalyWindow,
		AnomalyThreshold:  cfg.AnomalyThreshold,
		SkewWindow:        cfg.SkewWindow,
		MaxSkewCorrection: cfg.MaxSkewCorrection,
	}, logger)

	normalizer := service.NewNormalizer(registry, directory, service.NormalizerConfig{
		MaxClockDrift: cfg.MaxClockDrift,
	})

	engine := service.NewEngine(ledgerStore, registry, service.EngineConfig{
		ConflictWindow: cfg.ConflictWindow,
	}, m, logger)

	ingestSvc := service.NewIngestService(normalizer, engine, service.IngestConfig{
		DeviceQueueDepth: cfg.DeviceQueueDepth,
		Timeout:          cfg.IngestTimeout,
	}, m)

	heartbeatSvc := service.NewHeartbeatService(heartbeatStore, registry, m)
	querySvc := service.NewQueryService(ledgerStore)
	adminSvc := service.NewAdminService(registry, deviceStore, directory, ledgerStore, engine, m, logger)

	// Optional central archive
	var fwd *archive.Forwarder
	if cfg.ArchiveDSN != "" {
		fwd, err = archive.NewForwarder(ctx, cfg.ArchiveDSN, logger, m)
		if err != nil {
			logger.Fatalf("archive forwarder: %v", err)
		}
		engine.SetSink(fwd.Enqueue)
		fwd.Start(ctx)
		defer fwd.Stop()
		logger.Printf("archive forwarder enabled")
	}

	pruner := service.NewHeartbeatPruner(heartbeatStore, service.PrunerConfig{
		RetentionDays: cfg.HeartbeatRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:           logger,
		Addr:             cfg.HTTPAddr,
		IngestService:    ingestSvc,
		HeartbeatService: heartbeatSvc,
		QueryService:     querySvc,
		AdminService:     adminSvc,
		Gatherer:         prometheus.DefaultGatherer,
	})

	go func() {
		logger.Printf("listening on %s (env=%s db=%s)", cfg.HTTPAddr, cfg.Env, cfg.DBPath)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
