package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/loomworks/gateway/internal/auth"
	"github.com/loomworks/gateway/internal/config"
	"github.com/loomworks/gateway/internal/health"
	"github.com/loomworks/gateway/internal/httpserver"
	"github.com/loomworks/gateway/internal/httpserver/deps"
	"github.com/loomworks/gateway/internal/logger"
	"github.com/loomworks/gateway/internal/proxy"
	"github.com/loomworks/gateway/internal/ratelimit"
	"github.com/loomworks/gateway/internal/redis"
	"github.com/loomworks/gateway/internal/registry"
	"github.com/loomworks/gateway/internal/scheduler"
	redisstore "github.com/loomworks/gateway/internal/store/redis"
	"github.com/loomworks/gateway/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	registry    *registry.Registry
	monitor     *health.Monitor
	reloader    *scheduler.RegistryReloader
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}

	store := redisstore.NewStore(redisClient)

	// Load the initial registry snapshot; without it there is nothing
	// to route to, so this is fatal.
	loader := registry.NewLoader(cfg.RegistryFile, cfg.ProxyTimeout)
	entries, err := loader.Load()
	if err != nil {
		loggerClient.Errorf("Failed to load service registry: %v", err)
		os.Exit(1)
	}
	reg, err := registry.New(entries, cfg.ProxyTimeout)
	if err != nil {
		loggerClient.Errorf("Invalid service registry: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("service registry loaded",
		logger.String("file", cfg.RegistryFile),
		logger.Int("services", len(entries)))

	reloadTrigger := make(chan struct{}, 1)
	reloader := scheduler.NewRegistryReloader(loader, reg, loggerClient, cfg.RegistryReloadInterval, reloadTrigger)

	monitor := health.NewMonitor(health.Config{
		Interval:         cfg.HealthInterval,
		Timeout:          cfg.HealthTimeout,
		FailureThreshold: cfg.HealthFailureThreshold,
		SuccessThreshold: cfg.HealthSuccessThreshold,
	}, reg.Entries, loggerClient)

	resolver := auth.NewResolver(auth.Options{
		Secret:    []byte(cfg.JWTSecret),
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		Blacklist: store,
		Cache:     store,
		CacheTTL:  cfg.ProfileCacheTTL,
		ProfileURL: func() (string, bool) {
			u, ok := reg.BaseURL(cfg.UserServiceName)
			if !ok {
				return "", false
			}
			return u.String() + cfg.UserProfilePath, true
		},
	}, loggerClient)

	limiter := ratelimit.New(store, cfg.RateLimits, cfg.VerifiedExempt)
	classifier := ratelimit.NewClassifier(cfg.GenerationPrefixes, cfg.AuthPrefixes)
	forwarder := proxy.NewForwarder(cfg.ProxyRetries, loggerClient)

	d := deps.Deps{
		Logger:    loggerClient,
		StartTime: time.Now(),
		Version:   version.Version,
		Commit:    version.Commit,
		BuildDate: version.BuildDate,
		GoVersion: version.GoVersion,

		Registry:   reg,
		Health:     monitor,
		Limiter:    limiter,
		Classifier: classifier,
		Resolver:   resolver,
		Forwarder:  forwarder,

		RequiredAuthPrefixes: cfg.RequiredAuthPrefixes,
		AdminPrefixes:        cfg.AdminPrefixes,
		TrustProxy:           cfg.TrustProxy,
		ReloadTrigger:        reloadTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		registry:    reg,
		monitor:     monitor,
		reloader:    reloader,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting gateway %s on %s", version.Version, a.cfg.ListenAddr)
	a.logger.Infof("gateway %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.reloader.Start(ctx)
	a.logger.Info("registry reloader started",
		logger.Duration("interval", a.cfg.RegistryReloadInterval))

	a.monitor.Start(ctx)
	a.logger.Info("health monitor started",
		logger.Duration("interval", a.cfg.HealthInterval),
		logger.Int("failure_threshold", a.cfg.HealthFailureThreshold),
		logger.Int("success_threshold", a.cfg.HealthSuccessThreshold))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.reloader.Stop()
	a.monitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ Gateway stopped cleanly")
	return nil
}
