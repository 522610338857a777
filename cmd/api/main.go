package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/argus-sec/argus/internal/alarms"
	"github.com/argus-sec/argus/internal/api/routes"
	"github.com/argus-sec/argus/internal/archive"
	"github.com/argus-sec/argus/internal/cas"
	"github.com/argus-sec/argus/internal/catalog"
	"github.com/argus-sec/argus/internal/ckb"
	"github.com/argus-sec/argus/internal/config"
	"github.com/argus-sec/argus/internal/database"
	"github.com/argus-sec/argus/internal/intents"
	"github.com/argus-sec/argus/internal/logger"
	"github.com/argus-sec/argus/internal/metrics"
	"github.com/argus-sec/argus/internal/pipeline"
	"github.com/argus-sec/argus/internal/recommender"
	"github.com/argus-sec/argus/internal/rtr"
	"github.com/argus-sec/argus/internal/server"
	"github.com/argus-sec/argus/internal/store"
	"github.com/argus-sec/argus/internal/twin"
	"github.com/argus-sec/argus/internal/version"
)

func main() {
	// Setup logging with rotation
	logDir := "data/logs"
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.Fatalf("create log directory: %v", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "argus.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Log to both stdout and file
	logger.Init(cfg.Environment == "development", io.MultiWriter(os.Stdout, rotator))
	logger.WithField("version", version.Full()).Infof("starting %s", version.Name)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	s := store.New()
	loadCatalog(s, cfg.CatalogPath)

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	rec := recommender.New(s, cfg.HostOverrides, cfg.ResolveHostnames)
	archiveSvc := archive.NewService(db)
	alarmSvc := alarms.NewService(cfg.AlarmURL)
	compliance := cas.New(cfg.ComplianceURL, cfg.TuneIncrement, s, rec)
	twinQueue := twin.New(cfg.TwinURL, cfg.KPIThreshold, s)
	knowledge := ckb.New(cfg.KnowledgeURL)
	enforcement := rtr.New(cfg.EnforcementURL, cfg.EnforcementUser, cfg.EnforcementPassword, cfg.EnforcementEmail, rec, archiveSvc)
	if err := enforcement.Connect(); err != nil {
		logger.Log().WithError(err).Warn("enforcement handshake failed, dispatch will retry on demand")
	}

	intentSvc := intents.NewService(s, alarmSvc)

	pipe := pipeline.New(s, rec, compliance, twinQueue, enforcement, knowledge,
		alarmSvc, archiveSvc, cfg.TickInterval, cfg.ThreatTimeout, cfg.TuneMaxRetries)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go pipe.Run(ctx)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 3 * * *", func() {
		if err := archiveSvc.Prune(cfg.ArchiveRetention); err != nil {
			logger.Log().WithError(err).Error("archive prune failed")
		}
	}); err != nil {
		log.Fatalf("schedule archive prune: %v", err)
	}
	if cfg.CatalogPath != "" {
		if _, err := scheduler.AddFunc("@hourly", func() { loadCatalog(s, cfg.CatalogPath) }); err != nil {
			log.Fatalf("schedule catalog reload: %v", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := server.New(cfg, routes.Dependencies{
		Store:    s,
		Intents:  intentSvc,
		Twin:     twinQueue,
		Archive:  archiveSvc,
		Registry: registry,
	})

	logger.WithField("port", cfg.HTTPPort).Info("http server listening")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// loadCatalog merges the mitigation catalog into the store, falling back to
// the built-in demo catalog when no file is configured.
func loadCatalog(s *store.Store, path string) {
	entries := catalog.Default()
	if path != "" {
		loaded, err := catalog.Load(path)
		if err != nil {
			logger.WithField("path", path).WithError(err).Error("failed to load catalog file, keeping current catalog")
			return
		}
		entries = loaded
	}

	added, updated := catalog.Sync(s, entries)
	logger.WithFields(map[string]interface{}{"added": added, "updated": updated}).
		Info("mitigation catalog synced")
}
