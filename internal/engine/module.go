package engine

import (
	"context"
	"net/url"
	"time"

	"botboard/internal/backend"
	"botboard/internal/bus"
	"botboard/internal/cache"
	"botboard/internal/config"
	"botboard/internal/lock"
	"botboard/internal/logging"
	"botboard/internal/outbox"
	"botboard/internal/pager"
	"botboard/internal/preload"
	"botboard/internal/sched"
	"botboard/internal/store"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

// Params holds the resolved startup configuration passed to the fx module.
type Params struct {
	ConfigPath string
	BackendURL string // optional override from the command line; empty = use config
}

// Module returns the fx module for the console engine, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("engine",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideJournal,
			provideClient,
			provideCache,
			provideReconciler,
			providePager,
			provideScheduler,
			provideWarmer,
			provideSender,
			New,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	cfg, err := config.Load(p.ConfigPath)
	if err != nil {
		return nil, err
	}
	if p.BackendURL != "" {
		cfg.BackendURL = p.BackendURL
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	host := cfg.BackendURL
	if u, err := url.Parse(cfg.BackendURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return logging.New(config.LogPath(), host)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(logger *zap.Logger) (*lock.Lock, error) {
	if err := config.EnsureDirs(); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(config.BaseDir())
	if err != nil {
		return nil, err
	}
	logger.Info("console lock acquired", zap.String("dir", config.BaseDir()))
	return l, nil
}

func provideJournal(logger *zap.Logger) (*store.DB, error) {
	dbPath := config.JournalPath()
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("journal migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("journal migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("send journal opened", zap.String("path", dbPath))
	return db, nil
}

func provideClient(cfg *config.Config) *backend.Client {
	return backend.New(cfg.BackendURL, cfg.APIKey, requestTimeout)
}

func provideCache() *cache.Store {
	return cache.NewStore()
}

func provideReconciler(st *cache.Store, b *bus.Bus, logger *zap.Logger) *cache.Reconciler {
	return cache.NewReconciler(st, b, logger)
}

func providePager(client *backend.Client, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *pager.Pager {
	return pager.New(client, b, logger, cfg.PageSize, cfg.LoadMoreProximity)
}

func provideScheduler(client *backend.Client, pg *pager.Pager, rec *cache.Reconciler, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *sched.Scheduler {
	return sched.New(client, client, pg, rec, b, logger, sched.Options{
		Window:        cfg.MessageWindow,
		ConvInterval:  cfg.ConversationPoll(),
		ListInterval:  cfg.ListPoll(),
		StatsInterval: cfg.StatsPoll(),
	})
}

func provideWarmer(client *backend.Client, st *cache.Store, rec *cache.Reconciler, cfg *config.Config, logger *zap.Logger) *preload.Warmer {
	return preload.NewWarmer(client, st, rec, logger, cfg.PreloadCount, cfg.MessageWindow)
}

func provideSender(db *store.DB, client *backend.Client, rec *cache.Reconciler, scheduler *sched.Scheduler, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, client, rec, scheduler, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, e *Engine, lk *lock.Lock, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			e.Start(context.Background())
			logger.Info("engine started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			e.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing journal", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("engine stopped")
			return nil
		},
	})
}
