package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/m3rciful/goalbot/core/logger"
	"github.com/m3rciful/goalbot/core/telegram/netutil"
	"github.com/m3rciful/goalbot/core/telegram/update"

	tele "gopkg.in/telebot.v4"
)

const (
	defaultPollTimeout = 30 * time.Second
	defaultRetryDelay  = 3 * time.Second
	commitTimeout      = 5 * time.Second
)

// ErrBatchRejected is returned by Iterate when the provider response could not be decoded.
var ErrBatchRejected = errors.New("telegram: update batch rejected")

// UpdateSource is the protocol surface the poll loop needs. *Client implements it.
type UpdateSource interface {
	FetchUpdates(ctx context.Context, offset int, timeout time.Duration) (update.Batch, error)
	SendReply(ctx context.Context, chatID int64, text string) (update.SendResult, error)
}

// PollerOptions configures NewPoller. Zero values select defaults.
type PollerOptions struct {
	Timeout    time.Duration
	RetryDelay time.Duration
	// API backs the tele.Context handed to the handler. Replies never use it.
	API tele.API
}

// Poller owns the update cursor and drives handler for every fetched update, one at a time.
type Poller struct {
	source     UpdateSource
	api        tele.API
	handler    tele.HandlerFunc
	timeout    time.Duration
	retryDelay time.Duration
	offset     int
}

// NewPoller builds a Poller that starts at offset zero. handler answers an
// update by calling Send on its context with the reply text.
func NewPoller(source UpdateSource, handler tele.HandlerFunc, opts PollerOptions) *Poller {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultPollTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	return &Poller{
		source:     source,
		api:        opts.API,
		handler:    handler,
		timeout:    opts.Timeout,
		retryDelay: opts.RetryDelay,
	}
}

// Offset returns the next update id the poller will ask for.
func (p *Poller) Offset() int {
	return p.offset
}

// Run polls until ctx is done. Failed iterations are logged and followed by the
// retry delay; Run never returns because of them.
func (p *Poller) Run(ctx context.Context) error {
	logger.Poller.Info("poller started",
		slog.String("event", "poller.start"),
		slog.String("status", "ok"),
		slog.Duration("timeout", p.timeout),
		slog.Duration("retry_delay", p.retryDelay),
	)

	for attempt := 1; ctx.Err() == nil; {
		err := p.Iterate(ctx)
		if err == nil {
			attempt = 1
			continue
		}
		if ctx.Err() != nil {
			break
		}
		logger.Poller.LogAttrs(ctx, slog.LevelWarn, "poll iteration failed",
			slog.String("event", "poll.failed"),
			slog.String("status", "retry"),
			slog.Int("offset", p.offset),
			slog.Int("attempt", attempt),
			slog.String("error_kind", netutil.ClassifyError(err)),
			slog.String("err", netutil.Redact(err)),
			slog.Duration("delay", p.retryDelay),
		)
		attempt++
		if !sleepCtx(ctx, p.retryDelay) {
			break
		}
	}

	p.commit()
	logger.Poller.Info("poller stopped",
		slog.String("event", "poller.stop"),
		slog.String("status", "ok"),
		slog.Int("offset", p.offset),
	)
	return nil
}

// Iterate fetches one batch and handles its updates in provider order. The
// cursor moves past each update before it is handled, so an update whose
// handler fails or panics is dropped rather than retried. A send failure aborts
// the rest of the batch; those updates are fetched again on the next call.
func (p *Poller) Iterate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Poller.LogAttrs(ctx, slog.LevelError, "poll iteration panic",
				slog.String("event", "poll.panic"),
				slog.String("status", "fail"),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("poll iteration panic: %v", r)
		}
	}()

	batch, err := p.source.FetchUpdates(ctx, p.offset, p.timeout)
	if err != nil {
		return fmt.Errorf("fetch updates: %w", err)
	}
	if !batch.OK {
		return ErrBatchRejected
	}

	for _, upd := range batch.Updates {
		if ctx.Err() != nil {
			return nil
		}
		p.offset = max(p.offset, upd.ID+1)
		if upd.Message == nil {
			logger.Poller.LogAttrs(ctx, slog.LevelDebug, "update ignored",
				slog.String("event", "update.ignored"),
				slog.String("status", "skip"),
				slog.Int("update_id", upd.ID),
			)
			continue
		}
		if err := p.process(ctx, upd); err != nil {
			return err
		}
	}
	if last := batch.LastID(); last > 0 {
		p.offset = max(p.offset, last+1)
	}
	return nil
}

func (p *Poller) process(ctx context.Context, upd tele.Update) error {
	chatID := update.ChatID(upd)
	reply, err := HandleUpdate(ctx, p.api, p.handler, upd)
	if err != nil {
		logger.Poller.LogAttrs(ctx, slog.LevelError, "update dropped",
			slog.String("event", "update.failed"),
			slog.String("status", "fail"),
			slog.Int("update_id", upd.ID),
			slog.Int64("chat_id", chatID),
			slog.String("err", netutil.Redact(err)),
		)
		return nil
	}
	if reply == "" {
		return nil
	}

	res, err := p.source.SendReply(ctx, chatID, reply)
	if err != nil {
		return fmt.Errorf("send reply for update %d: %w", upd.ID, err)
	}
	if !res.OK {
		logger.Poller.LogAttrs(ctx, slog.LevelWarn, "reply not confirmed",
			slog.String("event", "reply.unconfirmed"),
			slog.String("status", "skip"),
			slog.Int("update_id", upd.ID),
			slog.Int64("chat_id", chatID),
		)
	}
	return nil
}

// commit acknowledges handled updates so a restarted process does not receive them again.
func (p *Poller) commit() {
	if p.offset == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	if _, err := p.source.FetchUpdates(ctx, p.offset, 0); err != nil {
		logger.Poller.Warn("offset commit failed",
			slog.String("event", "poller.commit"),
			slog.String("status", "fail"),
			slog.Int("offset", p.offset),
			slog.String("err", netutil.Redact(err)),
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
