package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appsync "github.com/tallybridge/backend/internal/application/sync"
	"github.com/tallybridge/backend/internal/infrastructure/config"
	"github.com/tallybridge/backend/internal/infrastructure/logger"
	"github.com/tallybridge/backend/internal/infrastructure/persistence"
	"github.com/tallybridge/backend/internal/infrastructure/scheduler"
	"github.com/tallybridge/backend/internal/infrastructure/tally"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting TallyBridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("tally_endpoint", cfg.Tally.EndpointURL),
		zap.String("tally_company", cfg.Tally.Company),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Open the shadow store and migrate the mirror tables
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to migrate shadow store", zap.Error(err))
	}
	log.Info("Shadow store ready")

	store := persistence.NewGormStore(db.DB)

	// Connect to the remote accounting system
	connector, err := tally.NewClient(&tally.Config{
		EndpointURL:    cfg.Tally.EndpointURL,
		Company:        cfg.Tally.Company,
		TimeoutSeconds: cfg.Tally.TimeoutSeconds,
		CashLedger:     cfg.Tally.CashLedger,
		DebtorGroup:    cfg.Tally.DebtorGroup,
		CreditorGroup:  cfg.Tally.CreditorGroup,
		RestrictedMode: cfg.Tally.RestrictedMode,
		AllowedDays:    cfg.Tally.AllowedDays,
		RestrictedDay:  cfg.Tally.RestrictedDay,
	}, log)
	if err != nil {
		log.Fatal("Failed to configure remote connector", zap.Error(err))
	}

	// Build the synchronization engine
	engine := appsync.NewEngine(connector, store, appsync.Config{
		RetryAttempts:    cfg.Sync.RetryAttempts,
		RetryBaseDelay:   cfg.Sync.RetryBaseDelay,
		RetryMaxDelay:    cfg.Sync.RetryMaxDelay,
		PullLookbackDays: cfg.Sync.PullLookbackDays,
	}, log)

	// Start the periodic sync scheduler (if enabled)
	if cfg.Scheduler.Enabled {
		syncScheduler, err := scheduler.NewSyncScheduler(scheduler.SyncSchedulerConfig{
			Enabled:       cfg.Scheduler.Enabled,
			Interval:      cfg.Scheduler.Interval,
			RetryDelay:    cfg.Scheduler.RetryDelay,
			MaxRetryDelay: cfg.Scheduler.MaxRetryDelay,
			RunTimeout:    cfg.Scheduler.RunTimeout,
		}, engine, log)
		if err != nil {
			log.Fatal("Failed to create sync scheduler", zap.Error(err))
		}
		if err := syncScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := syncScheduler.Stop(stopCtx); err != nil {
				log.Error("Error stopping sync scheduler", zap.Error(err))
			}
		}()
		log.Info("Sync scheduler started",
			zap.Duration("interval", cfg.Scheduler.Interval),
		)
	} else {
		// One-shot mode: run a single sync and keep the process alive for
		// operator-triggered runs
		if _, err := engine.SyncNow(context.Background()); err != nil {
			log.Error("Initial sync failed", zap.Error(err))
		}
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")
}
