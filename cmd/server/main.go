package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gemclash/gem-server-go/internal/config"
	"github.com/gemclash/gem-server-go/internal/gem"
	"github.com/gemclash/gem-server-go/internal/repository"
	"github.com/gemclash/gem-server-go/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting gem server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Load the gem and augmentation catalog
	catalog, err := loadCatalog(cfg.Catalog)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.Error(err))
	}
	logger.Info("catalog loaded", zap.Int("templates", len(catalog.Templates())))

	// Initialize snapshot persistence when a database is configured
	var store server.SnapshotStore
	if cfg.Database.Enabled {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		snapshotStore := repository.NewSnapshotStore(db, logger)
		if err := snapshotStore.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to ensure schema", zap.Error(err))
		}
		store = snapshotStore
		logger.Info("snapshot store initialized")
	} else {
		logger.Warn("database disabled; player snapshots are not persisted")
	}

	// Initialize the resource engine
	engine := gem.NewEngine(catalog, gem.Tuning{
		HandLimit:       cfg.Game.HandLimit,
		MasteryStep:     cfg.Game.MasteryStep,
		MasteryCap:      cfg.Game.MasteryCap,
		StartingStamina: cfg.Game.StartingStamina,
		StartingCoins:   cfg.Game.StartingCoins,
		StarterCopies:   cfg.Game.StarterCopies,
	}, logger)
	logger.Info("resource engine initialized",
		zap.Int("hand_limit", cfg.Game.HandLimit),
		zap.Int("mastery_cap", cfg.Game.MasteryCap),
	)

	hub := server.NewHub(logger)
	go hub.Run(ctx)

	wsServer := server.NewServer(engine, hub, store, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.StartHTTPServer(ctx, cfg.Server.Address, wsServer, logger)
	}()

	logger.Info("gem server initialized",
		zap.String("version", version),
		zap.String("address", cfg.Server.Address),
	)

	// Wait for termination signal or server failure
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			logger.Error("websocket server error", zap.Error(err))
		}
	}

	// Graceful shutdown
	logger.Info("shutting down gracefully...")
	cancel()

	logger.Info("gem server stopped")
}

// loadCatalog reads the configured YAML catalog, falling back to the
// compiled-in default set when no paths are configured.
func loadCatalog(cfg config.CatalogConfig) (*gem.Catalog, error) {
	if cfg.GemsPath == "" || cfg.AugmentationsPath == "" {
		return gem.Default(), nil
	}
	return gem.Load(cfg.GemsPath, cfg.AugmentationsPath)
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
