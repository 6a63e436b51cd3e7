package telegram

import (
	"github.com/m3rciful/goalbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the shared middleware chain, outermost first.
// Logging sits outside Recover so recovered panics still produce a summary line.
func DefaultMiddlewares() []tele.MiddlewareFunc {
	return []tele.MiddlewareFunc{
		middleware.Logging,
		middleware.Metrics,
		middleware.Recover,
	}
}

// Wrap applies mws to h so that the first middleware is the outermost.
func Wrap(h tele.HandlerFunc, mws ...tele.MiddlewareFunc) tele.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}
