// Risk engine worker: runs the scheduled jobs (daily recompute, hourly
// escalation sweep, prediction expiry) and serves the REST API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/edupulse/risk-engine/config"
	"github.com/edupulse/risk-engine/internal/application/alerting"
	"github.com/edupulse/risk-engine/internal/application/assess"
	"github.com/edupulse/risk-engine/internal/application/recompute"
	"github.com/edupulse/risk-engine/internal/application/tracking"
	"github.com/edupulse/risk-engine/internal/domain/notification"
	"github.com/edupulse/risk-engine/internal/domain/shared"
	"github.com/edupulse/risk-engine/internal/domain/student"
	"github.com/edupulse/risk-engine/internal/infrastructure/external/notify"
	"github.com/edupulse/risk-engine/internal/infrastructure/messaging"
	"github.com/edupulse/risk-engine/internal/infrastructure/persistence/postgres"
	rediscache "github.com/edupulse/risk-engine/internal/infrastructure/persistence/redis"
	"github.com/edupulse/risk-engine/internal/infrastructure/scheduler"
	"github.com/edupulse/risk-engine/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/edupulse/risk-engine/internal/interface/http"
	"github.com/edupulse/risk-engine/internal/interface/http/handlers"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration and logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting risk engine worker",
		"version", version,
		"environment", cfg.App.Environment,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. PostgreSQL
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	logger.Info("connected to postgres")

	migrator := postgres.NewMigrator(conn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	logger.Info("database migrations applied")

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Redis risk summary cache (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var cache *rediscache.Cache
	var summaryCache student.SummaryCache
	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		cache, err = rediscache.NewCacheFromURL(cfg.Redis.URL)
		if err != nil {
			logger.Warn("redis unavailable, dashboard reads fall back to postgres", "error", err)
		} else {
			defer cache.Close()
			summaryCache = rediscache.NewRiskSummaryCache(cache, cfg.Redis.SummaryTTL)
			logger.Info("connected to redis")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Repositories
	// ─────────────────────────────────────────────────────────────────────────
	predictions := postgres.NewPredictionRepository(conn)
	alerts := postgres.NewAlertRepository(conn)
	interventions := postgres.NewInterventionRepository(conn)
	students := postgres.NewStudentStore(conn)
	deliveries := postgres.NewDeliveryLog(conn)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Event bus and notifications
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = logger
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer bus.Close()

	var dispatcher notification.Dispatcher
	var gateway *notify.Client
	if cfg.Notify.BaseURL != "" {
		clientCfg := notify.DefaultClientConfig(cfg.Notify.BaseURL, cfg.Notify.APIKey)
		clientCfg.Timeout = cfg.Notify.RequestTimeout
		clientCfg.Logger = logger
		gateway = notify.NewClient(clientCfg)
		dispatcher = gateway
		logger.Info("notification gateway configured", "url", cfg.Notify.BaseURL)
	} else {
		dispatcher = notify.NewLogDispatcher(logger)
		logger.Info("no notification gateway configured, logging deliveries")
	}

	notifier := messaging.NewAlertNotifier(alerts, dispatcher, deliveries, messaging.AlertNotifierConfig{
		DefaultRecipient: cfg.Notify.DefaultRecipient,
		DispatchTimeout:  cfg.Notify.RequestTimeout + 10*time.Second,
		Logger:           logger,
	})
	if err := notifier.Register(bus); err != nil {
		return fmt.Errorf("failed to register alert notifier: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Application services
	// ─────────────────────────────────────────────────────────────────────────
	manager := alerting.NewManager(alerts, interventions, bus, alerting.Windows{
		Critical: cfg.Escalation.Critical,
		High:     cfg.Escalation.High,
		Medium:   cfg.Escalation.Medium,
		Low:      cfg.Escalation.Low,
	}, logger)

	extractor := assess.NewExtractor(students)
	scorer := assess.NewWeightedScorer(shared.RiskCuts{
		Medium: cfg.Risk.MediumCut,
		High:   cfg.Risk.HighCut,
	})
	evaluator := assess.NewEvaluator(assess.Thresholds{
		AttendanceWarn:     cfg.Rules.AttendanceWarn,
		AttendanceCrit:     cfg.Rules.AttendanceCrit,
		GradeDeclineStreak: cfg.Rules.GradeDeclineStreak,
		HighCut:            cfg.Risk.HighCut,
		CriticalCut:        cfg.Risk.CriticalCut,
		CriticalOpenAlerts: cfg.Rules.CriticalOpenAlerts,
	})

	recomputeSvc := recompute.NewService(
		extractor, scorer, evaluator,
		predictions, alerts, manager,
		students, students, summaryCache,
		bus, logger,
		recompute.Config{
			Validity:    cfg.Risk.ValidityHorizon,
			Concurrency: cfg.Scheduler.Concurrency,
		},
	)

	tracker := tracking.NewTracker(interventions, alerts, manager, bus, logger)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. Scheduler and jobs
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = logger
	schedCfg.Timezone = cfg.App.Location
	sched := scheduler.NewScheduler(schedCfg)

	recomputeCron, err := scheduler.ParseCronExpression(cfg.Scheduler.RecomputeCron)
	if err != nil {
		return fmt.Errorf("invalid RECOMPUTE_CRON %q: %w", cfg.Scheduler.RecomputeCron, err)
	}

	recomputeJob := jobs.NewRecomputeAllJob(recomputeSvc, logger).
		WithTimeout(cfg.Scheduler.RecomputeTimeout)
	if err := sched.Register(recomputeJob, recomputeCron); err != nil {
		return fmt.Errorf("failed to register recompute job: %w", err)
	}

	sweepJob := jobs.NewEscalationSweepJob(manager, tracker, logger)
	if err := sched.Register(sweepJob, scheduler.NewIntervalSchedule(cfg.Scheduler.SweepInterval)); err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}

	expiryJob := jobs.NewExpirePredictionsJob(predictions, bus, logger)
	if err := sched.Register(expiryJob, scheduler.NewIntervalSchedule(cfg.Scheduler.ExpiryInterval)); err != nil {
		return fmt.Errorf("failed to register expiry job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	logger.Info("scheduler started",
		"recompute_cron", cfg.Scheduler.RecomputeCron,
		"sweep_interval", cfg.Scheduler.SweepInterval.String(),
		"expiry_interval", cfg.Scheduler.ExpiryInterval.String(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. Health checks
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(version)
	health.AddCheck("postgres", func(ctx context.Context) error {
		return conn.Ping(ctx)
	})
	if cache != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return cache.Ping(ctx)
		})
	}
	if gateway != nil {
		health.AddCheck("notify_gateway", func(ctx context.Context) error {
			if !gateway.IsHealthy(ctx) {
				return fmt.Errorf("notification gateway unhealthy")
			}
			return nil
		})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpapi.DefaultConfig()
	host, port, err := splitAddr(cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("invalid HTTP_ADDR %q: %w", cfg.HTTP.Addr, err)
	}
	httpCfg.Host = host
	httpCfg.Port = port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout

	server := httpapi.NewServer(httpCfg, httpapi.Dependencies{
		Recompute:     recomputeSvc,
		Manager:       manager,
		Tracker:       tracker,
		Predictions:   predictions,
		Alerts:        alerts,
		Scheduler:     sched,
		HealthChecker: health,
		Logger:        logger,
	})

	serverErr := server.StartAsync()
	logger.Info("http server started", "addr", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 10. Wait for shutdown
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logger.Warn("scheduler stop failed", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}

	logger.Info("worker stopped")
	return nil
}

// setupLogger builds the process logger: JSON in production, text elsewhere.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With("app", cfg.App.Name)
}

// splitAddr parses "host:port" into its parts. An empty host binds all
// interfaces.
func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	if host == "" {
		host = "0.0.0.0"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, port, nil
}
