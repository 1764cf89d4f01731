package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/yashkhare05/Uptime/internal/config"
	"github.com/yashkhare05/Uptime/internal/httpserver"
	"github.com/yashkhare05/Uptime/internal/httpserver/deps"
	"github.com/yashkhare05/Uptime/internal/hub"
	"github.com/yashkhare05/Uptime/internal/identity"
	"github.com/yashkhare05/Uptime/internal/logger"
	"github.com/yashkhare05/Uptime/internal/metrics"
	"github.com/yashkhare05/Uptime/internal/redis"
	"github.com/yashkhare05/Uptime/internal/scheduler"
	"github.com/yashkhare05/Uptime/internal/store"
	redisstore "github.com/yashkhare05/Uptime/internal/store/redis"
	"github.com/yashkhare05/Uptime/internal/store/sqlstore"
	"github.com/yashkhare05/Uptime/internal/version"
	"github.com/yashkhare05/Uptime/internal/wsconn"
)

type App struct {
	cfg      *config.Config
	logger   logger.Logger
	server   *httpserver.Server
	store    store.Store
	hub      *hub.Hub
	registry *prometheus.Registry

	dispatcher *scheduler.Dispatcher
	sweeper    *scheduler.CorrelationSweeper
	reloader   *scheduler.TargetReloader // nil without a targets file

	// cancels the parent context of every websocket session
	closeSessions context.CancelFunc
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.PrettyLog,
		File:   cfg.LogFile,
	})

	a, err := Build(context.Background(), cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to initialize hub: %v", err)
		os.Exit(1)
	}
	return a
}

// Build wires every component from cfg. The store is reachable and migrated
// when it returns.
func Build(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	st, err := openStore(ctx, cfg, loggerClient)
	if err != nil {
		return nil, err
	}
	loggerClient.Info("store initialized successfully", logger.String("store", cfg.Store))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	h, err := hub.New(st, identity.Ed25519Verifier{}, hub.Options{
		DispatchConcurrency: cfg.DispatchConcurrency,
		SendTimeout:         cfg.SendTimeout,
		CorrelationTTL:      cfg.CorrelationTTL,
		Payout:              cfg.PayoutPerValidation,
	}, loggerClient.With(logger.String("component", "hub")), m)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	// Create manual dispatch trigger channel
	dispatchTrigger := make(chan struct{}, 1)

	dispatcher := scheduler.NewDispatcher(h, loggerClient.With(logger.String("component", "dispatcher")),
		cfg.DispatchInterval, dispatchTrigger)
	sweeper := scheduler.NewCorrelationSweeper(h, loggerClient, cfg.SweepInterval)

	var reloader *scheduler.TargetReloader
	if cfg.TargetsFile != "" {
		loggerClient.Info("targets file configured, initializing target reloader",
			logger.String("file", cfg.TargetsFile))
		reloader = scheduler.NewTargetReloader(cfg.TargetsFile, st, loggerClient, cfg.TargetsReloadInterval)
	}

	sessions, closeSessions := context.WithCancel(context.Background())

	// Dependencies passed to routes.
	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedHosts: cfg.AllowedHosts,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		Hub:          h,
		Store:        st,
		StoreKind:    cfg.Store,
		Gatherer:     reg,
		BaseContext:  sessions,
		Conn: wsconn.Options{
			ReadLimit:    cfg.WSReadLimit,
			PingInterval: cfg.WSPingInterval,
			WriteTimeout: cfg.SendTimeout,
			Concurrency:  cfg.ConnConcurrency,
		},
		UpgradeBurst:    cfg.UpgradeBurst,
		UpgradePerMin:   cfg.UpgradePerMin,
		DispatchTrigger: dispatchTrigger,
	}

	return &App{
		cfg:           cfg,
		logger:        loggerClient,
		server:        httpserver.New(cfg.ListenPort, loggerClient, d),
		store:         st,
		hub:           h,
		registry:      reg,
		dispatcher:    dispatcher,
		sweeper:       sweeper,
		reloader:      reloader,
		closeSessions: closeSessions,
	}, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting uptime hub v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("uptime hub %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.startSchedulers(ctx); err != nil {
		_ = a.close()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	if err := a.shutdown(); err != nil {
		return multierror.Append(runErr, err).ErrorOrNil()
	}
	if runErr != nil {
		return runErr
	}

	a.logger.Info("✅ uptime hub stopped cleanly")
	return nil
}

func (a *App) startSchedulers(ctx context.Context) error {
	// Seed targets first so the first cycle already has work
	if a.reloader != nil {
		if err := a.reloader.Start(ctx); err != nil {
			return fmt.Errorf("failed to start target reloader: %w", err)
		}
		a.logger.Info("target reloader started",
			logger.Duration("interval", a.cfg.TargetsReloadInterval))
	}

	if err := a.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start correlation sweeper: %w", err)
	}
	a.logger.Info("correlation sweeper started",
		logger.Duration("interval", a.cfg.SweepInterval),
		logger.Duration("ttl", a.cfg.CorrelationTTL))

	if err := a.dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	a.logger.Info("dispatcher started",
		logger.Duration("interval", a.cfg.DispatchInterval))
	return nil
}

// shutdown stops intake first, then drains sessions, then releases the store.
func (a *App) shutdown() error {
	a.dispatcher.Stop()
	a.sweeper.Stop()
	if a.reloader != nil {
		a.reloader.Stop()
	}

	var result *multierror.Error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to stop server: %w", err))
	}

	if err := a.close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// close ends websocket sessions and releases the store and the logger.
func (a *App) close() error {
	var result *multierror.Error

	a.closeSessions()
	waitForSessions(a.hub, time.Second)

	if err := a.store.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close %s store: %w", a.cfg.Store, err))
	} else {
		a.logger.Info("✅ store closed cleanly", logger.String("store", a.cfg.Store))
	}

	// stdout cannot be synced on some platforms; that is not a shutdown failure
	_ = a.logger.Sync()

	return result.ErrorOrNil()
}

// waitForSessions gives cancelled websocket sessions a moment to deregister
// before the store goes away under their handlers.
func waitForSessions(h *hub.Hub, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for h.ConnectedValidators() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}

// openStore connects the configured backend, waits until it answers and
// prepares its schema.
func openStore(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (store.Store, error) {
	retry := store.RetryOptions{
		ConnectTimeout: cfg.StoreConnectTimeout,
		RetryInterval:  cfg.StoreRetryInterval,
		MaxWait:        cfg.StoreMaxWait,
		PingTimeout:    cfg.StorePingTimeout,
		WarnThreshold:  cfg.StoreWarnThreshold,
	}

	switch cfg.Store {
	case config.StoreRedis:
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(ctx, redis.ConnectOptions{
			Addr:         cfg.RedisAddr,
			User:         cfg.RedisUser,
			Password:     cfg.RedisPassword,
			RedisDB:      cfg.RedisDB,
			DialTimeout:  cfg.RedisDT,
			ReadTimeout:  cfg.RedisRT,
			WriteTimeout: cfg.RedisWT,
			PoolSize:     cfg.RedisPoolSize,
			Retry:        retry,
		}, loggerClient)
		if err != nil {
			return nil, err
		}
		return redisstore.NewStore(client), nil

	case config.StoreSQLite, config.StorePostgres:
		st, err := sqlstore.Open(sqlstore.Dialect(cfg.Store), cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.WaitReady(ctx, cfg.Store, st.Ping, retry, loggerClient); err != nil {
			_ = st.Close()
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
