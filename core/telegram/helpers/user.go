package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"
)

// CurrentUser resolves the chat of c to a domain record through a service
// keyed by chat id. The type parameter lets callers bring their own model.
func CurrentUser[T any](
	c tele.Context,
	service interface {
		ByChatID(context.Context, int64) (T, error)
	},
) (T, error) {
	var zero T
	chat := c.Chat()
	if service == nil || chat == nil {
		return zero, nil
	}
	return service.ByChatID(BuildContext(c), chat.ID)
}

// DisplayName picks the username, falling back to the first name.
func DisplayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}
