package middleware

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/goalbot/core/logger"
	tghelpers "github.com/m3rciful/goalbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Logging attaches rid and update metadata to the context, logs receipt at
// debug level and emits one update.handled summary per update. It must run
// outside Metrics so the reply counter is readable once next returns.
func Logging(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		ctx, summary := tghelpers.WithSummary(tghelpers.BuildContext(c))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() {
			attrs := []slog.Attr{slog.String("status", "ok")}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if name := tghelpers.DisplayName(c.Sender()); name != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(name, 64)))
			}
			if user := c.Sender(); user != nil && user.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", user.LanguageCode))
			}
			if text := c.Text(); text != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(text, 256)))
			}
			logger.LogEvent(ctx, nil, slog.LevelDebug, "update.received", attrs...)
		}

		err := next(c)

		handler, state, nextState, outcome := summary.Snapshot()
		if outcome == "" {
			outcome = logger.Status(err)
		}
		attrs := []slog.Attr{
			slog.String("status", logger.Status(err)),
			slog.String("handler", firstNonEmpty(handler, "unknown")),
			slog.String("outcome", outcome),
			slog.String("state", state),
			slog.String("next_state", nextState),
			slog.Int("messages", Replies(c)),
			slog.Duration("duration", time.Since(start)),
		}
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelError
			attrs = append(attrs,
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				slog.String("err_code", errorCode(err)),
			)
		}
		logger.LogEvent(ctx, nil, level, "update.handled", attrs...)
		return err
	}
}

func errorCode(err error) string {
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return "PANIC"
	}
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	for unwrapped := errors.Unwrap(err); unwrapped != nil; unwrapped = errors.Unwrap(err) {
		err = unwrapped
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
