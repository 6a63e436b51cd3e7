package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/goalbot/core/config"
	"github.com/m3rciful/goalbot/core/logger"
	"github.com/m3rciful/goalbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

const stopTimeout = 10 * time.Second

// BotAPI is the part of *tele.Bot the runtime uses.
type BotAPI interface {
	API
	CommandSetter
	RemoveWebhook(dropPending ...bool) error
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry
	// Handler answers each update by sending the reply on its context.
	Handler tele.HandlerFunc
	// Middlewares wrap Handler, outermost first. Nil selects DefaultMiddlewares.
	Middlewares []tele.MiddlewareFunc

	DispatcherOptions sender.Options
	// Bot overrides the telebot instance built from Config.
	Bot BotAPI

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Client     *Client
	Notifier   *Notifier
	Dispatcher *sender.Dispatcher
	Registry   *Registry
	Poller     *Poller
}

// RunTelegram composes the protocol client and poll loop and runs them until ctx is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	if opts.Handler == nil {
		return fmt.Errorf("telegram: nil handler provided")
	}

	cfg := opts.Config.Telegram
	timeout := time.Duration(cfg.LongPollTimeoutSeconds) * time.Second
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	buildStart := time.Now()
	bot := opts.Bot
	if bot == nil {
		b, err := tele.NewBot(tele.Settings{
			URL:    cfg.APIURL,
			Token:  cfg.Token,
			Client: BuildHTTPClient(timeout),
		})
		if err != nil {
			return fmt.Errorf("telegram: bot initialization failed: %w", err)
		}
		bot = b
	}

	logger.TG.Info("polling mode",
		slog.String("event", "mode"),
		slog.String("mode", "polling"),
		slog.Int("timeout_seconds", cfg.LongPollTimeoutSeconds),
		slog.Int("retry_delay_ms", cfg.RetryDelayMS),
		slog.Duration("duration", time.Since(buildStart)),
	)

	if !opts.DisableWebhookCleanup {
		if err := bot.RemoveWebhook(); err != nil {
			logger.TG.Warn("failed to delete webhook",
				slog.String("event", "delete_webhook"),
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		} else {
			logger.TG.Info("webhook deleted",
				slog.String("event", "delete_webhook"),
				slog.String("status", "ok"),
			)
		}
	}
	InitBotCommands(bot, reg)

	client := NewClient(bot)
	dispatcher := sender.NewDispatcher(opts.DispatcherOptions)
	mws := opts.Middlewares
	if mws == nil {
		mws = DefaultMiddlewares()
	}
	api, _ := bot.(tele.API)
	poller := NewPoller(client, Wrap(opts.Handler, mws...), PollerOptions{
		Timeout:    timeout,
		RetryDelay: time.Duration(cfg.RetryDelayMS) * time.Millisecond,
		API:        api,
	})

	rt := Runtime{
		Client:     client,
		Notifier:   NewNotifier(client, dispatcher),
		Dispatcher: dispatcher,
		Registry:   reg,
		Poller:     poller,
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			dispatcher.Close()
			return err
		}
	}

	runErr := poller.Run(ctx)

	var stopErr error
	if opts.OnStop != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		stopErr = opts.OnStop(stopCtx, rt)
		cancel()
	}
	dispatcher.Close()

	if stopErr != nil {
		return stopErr
	}
	return runErr
}
