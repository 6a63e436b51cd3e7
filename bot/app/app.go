// Package app assembles the goal bot from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/goalbot/bot/actions"
	"github.com/m3rciful/goalbot/bot/config"
	"github.com/m3rciful/goalbot/bot/dispatch"
	"github.com/m3rciful/goalbot/bot/storage"
	"github.com/m3rciful/goalbot/bot/storage/memory"
	"github.com/m3rciful/goalbot/bot/storage/postgres"
	"github.com/m3rciful/goalbot/bot/verify"
	"github.com/m3rciful/goalbot/core/bootstrap"
	coreconfig "github.com/m3rciful/goalbot/core/config"
	"github.com/m3rciful/goalbot/core/logger"
	"github.com/m3rciful/goalbot/core/telegram"
	"github.com/m3rciful/goalbot/core/telegram/session"
)

const sweepInterval = time.Minute

// Options override infrastructure setup, mainly for tests.
type Options struct {
	Bootstrap  func(bootstrap.Options) (*bootstrap.Result, error)
	LoggerInit func(*coreconfig.Config) error
	// NewSessionStore replaces the session backend chosen by configuration.
	NewSessionStore func(ctx context.Context, cfg config.SessionConfig) (session.Store, io.Closer, error)
}

// App owns the long-lived components of the bot.
type App struct {
	cfg *config.Config

	db       *sqlx.DB
	store    storage.Store
	sessions session.Store
	closers  []io.Closer

	registry   *telegram.Registry
	actions    *actions.Library
	dispatcher *dispatch.Dispatcher

	server      *verify.Server
	stopSweeper context.CancelFunc
}

// New bootstraps infrastructure and builds the bot.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	run := opts.Bootstrap
	if run == nil {
		run = bootstrap.Run
	}
	res, err := run(bootstrap.Options{
		Config:       cfg.CoreConfig(),
		Database:     cfg.Database,
		SkipDatabase: cfg.Storage.Backend == config.StorageMemory,
		LoggerInit:   opts.LoggerInit,
	})
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, db: res.DB}
	if a.db != nil {
		a.store = postgres.New(a.db)
		a.closers = append(a.closers, a.db)
	} else {
		logger.L.Warn("using in-memory storage",
			slog.String("event", "storage.init"),
			slog.String("backend", config.StorageMemory),
		)
		a.store = memory.New()
	}

	newSessions := opts.NewSessionStore
	if newSessions == nil {
		newSessions = openSessionStore
	}
	sessions, closer, err := newSessions(context.Background(), cfg.Session)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("app: session store: %w", err)
	}
	a.sessions = sessions
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	a.registry = telegram.NewRegistry()
	if err := dispatch.RegisterCommands(a.registry); err != nil {
		a.close()
		return nil, fmt.Errorf("app: register commands: %w", err)
	}
	a.actions = actions.New(a.store, a.sessions, actions.Options{WebHost: cfg.Web.Host})
	a.dispatcher = dispatch.New(a.store, a.actions, a.registry)
	return a, nil
}

func openSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, io.Closer, error) {
	switch cfg.Backend {
	case config.SessionRedis:
		client, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(client, cfg.KeyPrefix, cfg.TTL()), client, nil
	default:
		logger.Session.Info("session cache in memory",
			slog.String("event", "session.init"),
			slog.String("backend", config.SessionMemory),
			slog.Duration("ttl", cfg.TTL()),
		)
		return session.NewMemoryStore(cfg.TTL()), nil, nil
	}
}

// Store returns the storage backend.
func (a *App) Store() storage.Store { return a.store }

// Dispatcher returns the conversation dispatcher.
func (a *App) Dispatcher() *dispatch.Dispatcher { return a.dispatcher }

// TelegramRunOptions describes how the Telegram runtime should drive the bot.
func (a *App) TelegramRunOptions() (telegram.RunOptions, error) {
	if a == nil || a.dispatcher == nil {
		return telegram.RunOptions{}, fmt.Errorf("app: not initialized")
	}
	return telegram.RunOptions{
		Config:   a.cfg.CoreConfig(),
		Registry: a.registry,
		Handler:  a.dispatcher.Handle,
		OnStart:  a.start,
		OnStop:   a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, rt telegram.Runtime) error {
	if mem, ok := a.sessions.(*session.MemoryStore); ok {
		sweepCtx, cancel := context.WithCancel(ctx)
		a.stopSweeper = cancel
		go mem.RunSweeper(sweepCtx, sweepInterval)
	}
	if a.cfg.Verify.Listen != "" {
		var notifier verify.Notifier
		if rt.Notifier != nil {
			notifier = rt.Notifier
		}
		svc := verify.NewService(a.store, notifier)
		a.server = verify.Start(a.cfg.Verify.Listen, verify.NewHandler(svc, a.cfg.Verify.APIKey))
	}
	return nil
}

func (a *App) stop(ctx context.Context, _ telegram.Runtime) error {
	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("verify server: %w", err))
		}
	}
	if a.stopSweeper != nil {
		a.stopSweeper()
	}
	errs = append(errs, a.close())
	return errors.Join(errs...)
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
