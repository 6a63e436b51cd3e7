package middleware

import tele "gopkg.in/telebot.v4"

const repliesKey = "messages"

// metricsContext wraps tele.Context to count replies sent by the handler.
type metricsContext struct{ tele.Context }

func (m metricsContext) inc() {
	n, _ := m.Get(repliesKey).(int)
	m.Set(repliesKey, n+1)
}

// Send proxies tele.Context.Send while updating the reply counter.
func (m metricsContext) Send(what any, opts ...any) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.inc()
	}
	return err
}

// Reply proxies tele.Context.Reply while updating the reply counter.
func (m metricsContext) Reply(what any, opts ...any) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.inc()
	}
	return err
}

// Metrics counts the messages a handler sends for the current update.
func Metrics(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(repliesKey, 0)
		return next(metricsContext{Context: c})
	}
}

// Replies reads the counter maintained by Metrics.
func Replies(c tele.Context) int {
	n, _ := c.Get(repliesKey).(int)
	return n
}
