package helpers

import (
	"context"
	"sync"

	"github.com/m3rciful/goalbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const contextKey = "logger_ctx"

type summaryKey struct{}

// StoreContext attaches ctx to c for downstream helpers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom returns the context previously stored on c.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	if ctx, ok := c.Get(contextKey).(context.Context); ok {
		return ctx, true
	}
	return nil, false
}

// BuildContext returns the context stored on c, enriched once with the rid and
// update/user/chat ids so every log line emitted for the update carries them.
func BuildContext(c tele.Context) context.Context {
	ctx, ok := ContextFrom(c)
	if !ok {
		ctx = context.Background()
	}
	if logger.RIDFrom(ctx) != "" {
		return ctx
	}

	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	updateID := c.Update().ID

	ctx = logger.WithRID(ctx, logger.BuildRID(updateID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler records handler in the stored context and in its Summary, if any.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	SummaryFrom(ctx).SetHandler(handler)
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}

// Summary collects facts about how an update was handled. Handlers annotate it
// and the logging middleware emits it as a single line.
type Summary struct {
	mu        sync.Mutex
	handler   string
	state     string
	nextState string
	outcome   string
}

// WithSummary attaches a fresh Summary to ctx.
func WithSummary(ctx context.Context) (context.Context, *Summary) {
	s := &Summary{}
	return context.WithValue(ctx, summaryKey{}, s), s
}

// SummaryFrom returns the Summary stored in ctx or nil.
func SummaryFrom(ctx context.Context) *Summary {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(summaryKey{}).(*Summary)
	return s
}

// SetHandler records which handler processed the update. Nil receivers are ignored.
func (s *Summary) SetHandler(name string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.handler = name
	s.mu.Unlock()
}

// SetTransition records the dialog state before and after handling.
func (s *Summary) SetTransition(from, to string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.state, s.nextState = from, to
	s.mu.Unlock()
}

// SetOutcome records the domain outcome: ok, rejected or cancelled.
func (s *Summary) SetOutcome(outcome string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.outcome = outcome
	s.mu.Unlock()
}

// Snapshot returns handler, state, next state and outcome.
func (s *Summary) Snapshot() (handler, state, nextState, outcome string) {
	if s == nil {
		return "", "", "", ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler, s.state, s.nextState, s.outcome
}
