package telegram

import (
	"context"
	"fmt"

	"github.com/m3rciful/goalbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// replyContext keeps the text a handler sends instead of calling the Bot API,
// so the poll loop can deliver it through Client and see the result.
type replyContext struct {
	tele.Context
	reply string
}

func (c *replyContext) Send(what any, _ ...any) error {
	text, ok := what.(string)
	if !ok {
		return fmt.Errorf("telegram: unsupported reply %T", what)
	}
	if c.reply != "" {
		return fmt.Errorf("telegram: update already answered")
	}
	c.reply = text
	return nil
}

func (c *replyContext) Reply(what any, opts ...any) error {
	return c.Send(what, opts...)
}

// HandleUpdate runs h on a telebot context built for u, with ctx stored for
// helpers.BuildContext, and returns the reply text h sent, if any. api backs
// the remaining tele.Context methods and may be nil when handlers only reply.
func HandleUpdate(ctx context.Context, api tele.API, h tele.HandlerFunc, u tele.Update) (string, error) {
	c := &replyContext{Context: tele.NewContext(api, u)}
	helpers.StoreContext(c, ctx)
	err := h(c)
	return c.reply, err
}
