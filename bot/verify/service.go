// Package verify links a chat participant to a web account using the code
// the bot handed out, and exposes that operation over HTTP.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/goalbot/bot/model"
	"github.com/m3rciful/goalbot/bot/storage"
	"github.com/m3rciful/goalbot/core/logger"
)

// TextAccountConfirmed is sent to the chat after a successful link.
const TextAccountConfirmed = "Аккаунт успешно подтвержден"

// ErrInvalidCode means no participant holds the submitted code.
var ErrInvalidCode = errors.New("verify: incorrect verification code")

// Linker is the storage operation Service needs.
type Linker interface {
	LinkByCode(ctx context.Context, code string, userID int64) (model.Participant, error)
}

// Notifier delivers the confirmation message.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Service performs account linking.
type Service struct {
	store    Linker
	notifier Notifier
}

// NewService builds a Service. notifier may be nil, in which case no message is sent.
func NewService(store Linker, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Confirm links userID to the participant holding code, moves it to the
// confirmed state and tells the chat about it. A failed notification does
// not undo the link.
func (s *Service) Confirm(ctx context.Context, code string, userID int64) (model.Participant, error) {
	code = strings.TrimSpace(code)
	if code == "" || userID <= 0 {
		return model.Participant{}, ErrInvalidCode
	}
	p, err := s.store.LinkByCode(ctx, code, userID)
	if errors.Is(err, storage.ErrNotFound) {
		logger.LogEvent(ctx, logger.Verify, slog.LevelInfo, "link.rejected",
			slog.String("outcome", "rejected"),
			slog.Int64("user_id", userID),
		)
		return model.Participant{}, ErrInvalidCode
	}
	if err != nil {
		return model.Participant{}, fmt.Errorf("verify: link: %w", err)
	}
	logger.LogEvent(ctx, logger.Verify, slog.LevelInfo, "link.ok",
		slog.String("status", "ok"),
		slog.Int64("participant_id", p.ID),
		slog.Int64("chat_id", p.ChatID),
		slog.Int64("user_id", userID),
	)

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, p.ChatID, TextAccountConfirmed); err != nil {
			logger.LogEvent(ctx, logger.Verify, slog.LevelWarn, "link.notify_failed",
				slog.String("status", "fail"),
				slog.Int64("chat_id", p.ChatID),
				slog.String("err", err.Error()),
			)
		}
	}
	return p, nil
}
