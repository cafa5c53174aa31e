package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/consentgate/internal/config"
	"github.com/MrSnakeDoc/consentgate/internal/consent"
	"github.com/MrSnakeDoc/consentgate/internal/httpserver"
	"github.com/MrSnakeDoc/consentgate/internal/httpserver/deps"
	"github.com/MrSnakeDoc/consentgate/internal/kv"
	"github.com/MrSnakeDoc/consentgate/internal/logger"
	"github.com/MrSnakeDoc/consentgate/internal/metrics"
	"github.com/MrSnakeDoc/consentgate/internal/policy"
	"github.com/MrSnakeDoc/consentgate/internal/redis"
	"github.com/MrSnakeDoc/consentgate/internal/scheduler"
	"github.com/MrSnakeDoc/consentgate/internal/session"
	"github.com/MrSnakeDoc/consentgate/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/consentgate/internal/store/redis"
	"github.com/MrSnakeDoc/consentgate/internal/version"
)

// consentStore is what a storage backend offers the service.
type consentStore interface {
	kv.Scoper
	deps.VisitorCounter
}

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	sessions    *session.Manager
	reloader    *scheduler.PolicyReloader
	reaper      *scheduler.SessionReaper
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Storage backend - with redis, fail fast if unavailable
	var (
		store       consentStore
		redisClient *goredis.Client
	)
	switch cfg.Store {
	case config.StoreRedis:
		client, err := redis.Connect(context.Background(), redis.OptionsFromConfig(cfg), loggerClient)
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		redisClient = client
		store = redisstore.NewStore(client)
	default:
		loggerClient.Warn("memory store selected, consent decisions are lost on restart")
		store = memory.NewStore()
	}
	loggerClient.Info("consent store initialized", logger.String("backend", cfg.Store))

	// Metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	sessions := session.NewManager(session.Config{
		Store:       store,
		Scheduler:   consent.SystemScheduler{},
		MaxSessions: cfg.MaxSessions,
		Logger:      loggerClient,
		Recorder:    m,
		Observer:    m,
	})

	// Create manual reload trigger channel
	reloadTrigger := make(chan struct{}, 1)

	reloader := scheduler.NewPolicyReloader(
		policy.NewLoader(cfg.PolicyFile),
		sessions,
		loggerClient,
		cfg.PolicyReloadInterval,
		reloadTrigger,
	)

	reaper := scheduler.NewSessionReaper(
		sessions,
		m,
		loggerClient,
		cfg.SessionSweepInterval,
		cfg.SessionIdleTTL,
	)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		AllowedOrigins: cfg.AllowedOrigins,
		RateBurst:      cfg.RateBurst,
		RatePerMin:     cfg.RatePerMin,
		Sessions:       sessions,
		StoreBackend:   cfg.Store,
		Visitors:       store,
		RedisClient:    redisClient,
		Gatherer:       reg,
		ReloadTrigger:  reloadTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		sessions:    sessions,
		reloader:    reloader,
		reaper:      reaper,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting consentgate v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("consentgate %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load the policy before the first session can open
	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start policy reloader: %w", err)
	}
	a.logger.Info("policy reloader started",
		logger.String("file", a.cfg.PolicyFile),
		logger.Duration("interval", a.cfg.PolicyReloadInterval))

	if err := a.reaper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session reaper: %w", err)
	}
	a.logger.Info("session reaper started",
		logger.Duration("interval", a.cfg.SessionSweepInterval),
		logger.Duration("idle_ttl", a.cfg.SessionIdleTTL))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("⏳ Shutting down gracefully...")

		a.reloader.Stop()
		a.reaper.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}

		// No banner task may outlive the process
		closed := a.sessions.CloseAll()
		a.logger.Info("sessions torn down", logger.Int("count", closed))
		return nil
	})

	err := g.Wait()

	if a.redisClient != nil {
		if cerr := a.redisClient.Close(); cerr != nil {
			a.logger.Warnf("failed to close redis: %v", cerr)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	if err != nil {
		return err
	}
	a.logger.Info("✅ consentgate stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
