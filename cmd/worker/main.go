// Package main is the entry point for the progress engine worker.
//
// The worker owns scheduled maintenance: the nightly ledger reconciliation
// that rebuilds drifted profile totals from the XP transaction ledger. It
// also tails the shared event stream for audit logging, so reward activity
// across API instances is visible in one place.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lernhub/progress-engine/config"
	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/internal/infrastructure/messaging"
	"github.com/lernhub/progress-engine/internal/infrastructure/persistence/postgres"
	"github.com/lernhub/progress-engine/internal/infrastructure/persistence/redis"
	"github.com/lernhub/progress-engine/internal/infrastructure/scheduler"
	"github.com/lernhub/progress-engine/internal/infrastructure/scheduler/jobs"
	"github.com/lernhub/progress-engine/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	log := logger.New(logger.Options{
		Level: logger.ParseLevel(cfg.Observability.LogLevel),
	})
	slogger := setupSlog(cfg)

	log.Info("starting progress engine worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()
	log.Info("database connection established")

	// The worker also migrates so it can run standalone.
	if cfg.Database.AutoMigrate {
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	rewardRepo := postgres.NewRewardRepository(dbConn)

	levelRows, err := rewardRepo.LoadLevels(ctx)
	if err != nil {
		return fmt.Errorf("failed to load level table: %w", err)
	}
	levels, err := reward.NewLevelTable(levelRows)
	if err != nil {
		return fmt.Errorf("invalid level table: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT STREAM AUDIT (optional, needs Redis)
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB

		cache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("redis unavailable, event audit disabled", logger.Err(err))
		} else {
			defer cache.Close()

			bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
				Client: cache.Client(),
				Logger: slogger,
			})
			if err != nil {
				return fmt.Errorf("failed to create event bus: %w", err)
			}
			defer func() { _ = bus.Close() }()

			if err := bus.SubscribeAll(messaging.AuditLogger(slogger)); err != nil {
				return fmt.Errorf("failed to subscribe audit logger: %w", err)
			}
			log.Info("tailing event stream", logger.String("channel", messaging.DefaultChannelName))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(scheduler.Config{Logger: slogger})

		reconcileJob := jobs.NewReconcileLedgerJob(rewardRepo, levels, log)
		schedule := scheduler.NewDailySchedule(cfg.Scheduler.ReconcileHour, cfg.Scheduler.ReconcileMinute)
		if err := sched.Register(reconcileJob, schedule); err != nil {
			return fmt.Errorf("failed to register job: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { _ = sched.Stop() }()

		for _, job := range sched.ListJobs() {
			log.Info("job scheduled",
				logger.String("job", job.Name),
				logger.String("schedule", job.Schedule),
				logger.Any("next_run", job.NextRun),
			)
		}
	} else {
		log.Info("scheduler disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))

	log.Info("shutdown completed")
	return nil
}

// setupSlog builds the slog logger used by the scheduler and event bus.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
