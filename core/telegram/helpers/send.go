package helpers

import tele "gopkg.in/telebot.v4"

// SendText sends raw text (no parse mode) to the current chat. Empty text sends nothing.
func SendText(c tele.Context, text string) error {
	if text == "" {
		return nil
	}
	return c.Send(text)
}
