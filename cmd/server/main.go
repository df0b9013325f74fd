// Package main is the entry point for the progress engine API server.
//
// The server owns the full submission path: grading, the XP ledger, streaks,
// lesson completion, and badge unlocks, exposed over a small REST surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lernhub/progress-engine/config"
	"github.com/lernhub/progress-engine/internal/application/command"
	"github.com/lernhub/progress-engine/internal/application/eventhandler"
	"github.com/lernhub/progress-engine/internal/application/query"
	"github.com/lernhub/progress-engine/internal/domain/reward"
	"github.com/lernhub/progress-engine/internal/domain/shared"
	"github.com/lernhub/progress-engine/internal/infrastructure/identity"
	"github.com/lernhub/progress-engine/internal/infrastructure/messaging"
	"github.com/lernhub/progress-engine/internal/infrastructure/persistence/postgres"
	"github.com/lernhub/progress-engine/internal/infrastructure/persistence/redis"
	"github.com/lernhub/progress-engine/internal/infrastructure/tasks"
	httpapi "github.com/lernhub/progress-engine/internal/interface/http"
	"github.com/lernhub/progress-engine/internal/interface/http/handlers"
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

	log.Info("starting progress engine API server",
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

	if cfg.Database.AutoMigrate {
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	questionRepo := postgres.NewQuestionRepository(dbConn)
	attemptRepo := postgres.NewAttemptRepository(dbConn)
	streakRepo := postgres.NewStreakRepository(dbConn)
	lessonRepo := postgres.NewLessonRepository(dbConn)
	badgeRepo := postgres.NewBadgeRepository(dbConn)

	var rewardRepo reward.Repository = postgres.NewRewardRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (cache + cross-instance events, optional)
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redis.Cache
	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		cache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("redis unavailable, running without cache", logger.Err(err))
			cache = nil
		} else {
			defer cache.Close()
			log.Info("redis connection established")
		}
	}

	if cache != nil && cfg.Features.IsEnabled(config.FeatureRewardProfileCache, "") {
		rewardRepo = redis.NewCachedRewardRepository(rewardRepo, cache)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	var bus eventBus
	if cache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client: cache.Client(),
			Logger: slogger,
		})
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		bus = redisBus
	} else {
		bus = messaging.NewInMemoryEventBus(slogger)
	}
	defer func() { _ = bus.Close() }()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. LEVEL TABLE
	// ─────────────────────────────────────────────────────────────────────────
	levelRows, err := rewardRepo.LoadLevels(ctx)
	if err != nil {
		return fmt.Errorf("failed to load level table: %w", err)
	}
	levels, err := reward.NewLevelTable(levelRows)
	if err != nil {
		return fmt.Errorf("invalid level table: %w", err)
	}
	log.Info("level table loaded", logger.Int("levels", len(levelRows)))

	// ─────────────────────────────────────────────────────────────────────────
	// 7. DEFERRED TASK RUNNER
	// ─────────────────────────────────────────────────────────────────────────
	runner := tasks.NewRunner(tasks.RunnerConfig{
		Workers:     cfg.Worker.Workers,
		QueueSize:   cfg.Worker.QueueSize,
		TaskTimeout: cfg.Worker.TaskTimeout,
		Logger:      log,
	})
	runner.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		runner.Shutdown(shutdownCtx)
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. COMMAND AND QUERY HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	awardXP := command.NewAwardXPHandler(rewardRepo, levels, bus)
	completeLesson := command.NewCompleteLessonHandler(
		questionRepo, attemptRepo, streakRepo, lessonRepo, awardXP, bus, log,
	)

	var deferrer command.Deferrer = runner
	if !cfg.Features.IsEnabled(config.FeatureDeferredCompletion, "") {
		log.Info("deferred completion check disabled, running inline")
		deferrer = &inlineDeferrer{timeout: cfg.Worker.TaskTimeout, log: log}
	}

	submitAnswer := command.NewSubmitAnswerHandler(
		questionRepo, attemptRepo, lessonRepo,
		awardXP, completeLesson, deferrer, bus, log,
	)

	getProfile := query.NewGetRewardProfileHandler(rewardRepo, streakRepo, levels)
	getHistory := query.NewGetXPHistoryHandler(rewardRepo)
	getStreak := query.NewGetStreakHandler(streakRepo)
	getBadges := query.NewGetBadgesHandler(badgeRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. REWARD PIPELINE (badge unlocks on the local event stream)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Features.IsEnabled(config.FeatureRewardBadges, "") {
		pipeline := messaging.NewRewardPipeline(
			eventhandler.NewOnXPAwardedHandler(badgeRepo, awardXP, slogger),
			eventhandler.NewOnStreakUpdatedHandler(badgeRepo, awardXP, slogger),
			slogger,
		)
		if err := pipeline.Register(bus); err != nil {
			return fmt.Errorf("failed to register reward pipeline: %w", err)
		}
	} else {
		log.Info("badge unlocks disabled by feature flag")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	var resolver *identity.Resolver
	if cfg.Auth.JWTSecret != "" {
		resolver = identity.NewResolver([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	} else {
		log.Warn("AUTH_JWT_SECRET not set, all callers are treated as guests")
	}

	healthChecks := []handlers.Check{handlers.NewDatabaseCheck(dbConn)}
	if cache != nil {
		healthChecks = append(healthChecks, handlers.NewCacheCheck(cache))
	}

	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.AdminKeyHashes = cfg.HTTP.AdminKeyHashes

	server := httpapi.NewServer(serverCfg, httpapi.Dependencies{
		SubmitAnswerHandler:     submitAnswer,
		GetRewardProfileHandler: getProfile,
		GetXPHistoryHandler:     getHistory,
		GetStreakHandler:        getStreak,
		GetBadgesHandler:        getBadges,
		Identity:                resolver,
		Reconciler:              &ledgerReconciler{repo: rewardRepo, levels: levels},
		Logger:                  log,
		HealthChecker:           handlers.NewCompositeHealthChecker(5*time.Second, healthChecks...),
	})

	errCh := server.StartAsync()
	log.Info("API server listening", logger.String("address", server.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("shutdown completed")
	return nil
}

// eventBus is what both bus implementations provide: the domain contract
// plus shutdown.
type eventBus interface {
	shared.EventBus
	Close() error
}

// inlineDeferrer runs deferred work on the spot. Used when the deferred
// completion flag is off, mostly in development.
type inlineDeferrer struct {
	timeout time.Duration
	log     *logger.Logger
}

func (d *inlineDeferrer) Defer(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		d.log.Error("inline task failed", logger.String("task", name), logger.Err(err))
	}
}

// ledgerReconciler adapts the reward repository to the admin endpoint.
type ledgerReconciler struct {
	repo   reward.Repository
	levels *reward.LevelTable
}

func (l *ledgerReconciler) Reconcile(ctx context.Context) (int, error) {
	return l.repo.Reconcile(ctx, l.levels)
}

// setupSlog builds the slog logger used by the event bus and handlers.
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
