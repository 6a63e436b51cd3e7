package telegram

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/goalbot/core/logger"
	"github.com/m3rciful/goalbot/core/telegram/sender"
	"github.com/m3rciful/goalbot/core/telegram/update"
)

// ReplySender sends one text message. *Client implements it.
type ReplySender interface {
	SendReply(ctx context.Context, chatID int64, text string) (update.SendResult, error)
}

// Notifier delivers messages that are not replies to an update, such as the
// account linking confirmation. Sends go through the async dispatcher and fall
// back to a direct send when its queue cannot take the job.
type Notifier struct {
	client     ReplySender
	dispatcher *sender.Dispatcher
}

// NewNotifier builds a Notifier. A nil dispatcher makes every send synchronous.
func NewNotifier(client ReplySender, dispatcher *sender.Dispatcher) *Notifier {
	return &Notifier{client: client, dispatcher: dispatcher}
}

// Notify sends text to chatID.
func (n *Notifier) Notify(ctx context.Context, chatID int64, text string) error {
	run := func(ctx context.Context) error {
		_, err := n.client.SendReply(ctx, chatID, text)
		return err
	}
	if n.dispatcher == nil {
		return run(ctx)
	}

	err := n.dispatcher.Enqueue(ctx, "notify", run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("status", "retry"),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return run(ctx)
	}
	return err
}
