package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/goalbot/core/logger"
	"github.com/m3rciful/goalbot/core/telegram/update"

	tele "gopkg.in/telebot.v4"
)

// API is the raw Bot API transport. *tele.Bot satisfies it.
type API interface {
	Raw(method string, payload any) ([]byte, error)
}

// ErrNotOK is returned when the provider answers with ok=false.
var ErrNotOK = errors.New("telegram: response not ok")

// allowedUpdates restricts getUpdates to the only kind the bot handles.
var allowedUpdates = []string{"message"}

// Client implements the getUpdates/sendMessage protocol on top of API.
// Transport and API failures are returned as errors. Responses that arrive but
// cannot be decoded are logged and turned into not-ok results instead.
type Client struct {
	api API
}

// NewClient wraps api.
func NewClient(api API) *Client {
	return &Client{api: api}
}

type getUpdatesRequest struct {
	Offset         int      `json:"offset"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type envelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

// FetchUpdates long-polls for updates starting at offset, waiting up to timeout server-side.
func (c *Client) FetchUpdates(ctx context.Context, offset int, timeout time.Duration) (update.Batch, error) {
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout / time.Second),
		AllowedUpdates: allowedUpdates,
	}

	start := time.Now()
	data, err := c.call(ctx, "getUpdates", req)
	if err != nil {
		return update.Batch{}, fmt.Errorf("getUpdates: %w", err)
	}

	batch, err := decodeUpdates(data)
	switch {
	case errors.Is(err, ErrNotOK):
		return update.Batch{}, fmt.Errorf("getUpdates: %w", err)
	case err != nil:
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "updates.decode_failed",
			slog.String("event", "updates.decode_failed"),
			slog.String("status", "fail"),
			slog.Int("offset", offset),
			slog.String("err", err.Error()),
		)
		return update.Batch{}, nil
	}

	if len(batch.Skipped) > 0 {
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "updates.skipped",
			slog.String("event", "updates.skipped"),
			slog.String("status", "skip"),
			slog.Int("offset", offset),
			slog.Any("skipped", batch.Skipped),
		)
	}
	if len(batch.Updates) > 0 || logger.ShouldSampleDebug() {
		logger.TG.LogAttrs(ctx, slog.LevelDebug, "updates.fetched",
			slog.String("event", "updates.fetched"),
			slog.String("status", "ok"),
			slog.Int("offset", offset),
			slog.Int("updates", len(batch.Updates)),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return batch, nil
}

// SendReply posts text to chatID.
func (c *Client) SendReply(ctx context.Context, chatID int64, text string) (update.SendResult, error) {
	start := time.Now()
	data, err := c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return update.SendResult{}, fmt.Errorf("sendMessage: %w", err)
	}

	msg, err := decodeMessage(data)
	if errors.Is(err, ErrNotOK) {
		return update.SendResult{}, fmt.Errorf("sendMessage: %w", err)
	}
	if err != nil {
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "send.decode_failed",
			slog.String("event", "send.decode_failed"),
			slog.String("status", "fail"),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return update.SendResult{OK: false}, nil
	}

	logger.TG.LogAttrs(ctx, slog.LevelDebug, "send.ok",
		slog.String("event", "send.ok"),
		slog.String("status", "ok"),
		slog.Int64("chat_id", chatID),
		slog.Duration("duration", time.Since(start)),
	)
	return update.SendResult{OK: true, MessageID: msg.ID}, nil
}

// call runs api.Raw but stops waiting once ctx is done. telebot's Raw takes no
// context, so an abandoned call finishes in the background and its result is dropped.
func (c *Client) call(ctx context.Context, method string, payload any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := c.api.Raw(method, payload)
		done <- result{data: data, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.data, r.err
	}
}

func decodeMessage(data []byte) (tele.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return tele.Message{}, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.OK {
		return tele.Message{}, ErrNotOK
	}
	var msg tele.Message
	if err := json.Unmarshal(env.Result, &msg); err != nil {
		return tele.Message{}, fmt.Errorf("decode result: %w", err)
	}
	return msg, nil
}

func decodeUpdates(data []byte) (update.Batch, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return update.Batch{}, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.OK {
		return update.Batch{}, ErrNotOK
	}
	var items []json.RawMessage
	if err := json.Unmarshal(env.Result, &items); err != nil {
		return update.Batch{}, fmt.Errorf("decode result: %w", err)
	}

	batch := update.Batch{OK: true, Updates: make([]tele.Update, 0, len(items))}
	for _, raw := range items {
		var tu tele.Update
		if err := json.Unmarshal(raw, &tu); err != nil {
			var head struct {
				ID int `json:"update_id"`
			}
			if json.Unmarshal(raw, &head) == nil && head.ID > 0 {
				batch.Skipped = append(batch.Skipped, head.ID)
			}
			continue
		}
		batch.Updates = append(batch.Updates, tu)
	}
	return batch, nil
}
