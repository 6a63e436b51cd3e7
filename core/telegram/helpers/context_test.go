package helpers

import (
	"context"
	"errors"
	"testing"

	"github.com/m3rciful/goalbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

func newContext(updateID int, chatID, userID int64) tele.Context {
	return tele.NewContext(nil, tele.Update{ID: updateID, Message: &tele.Message{
		Chat:   &tele.Chat{ID: chatID, Type: tele.ChatPrivate},
		Sender: &tele.User{ID: userID, FirstName: "Ann"},
		Text:   "/goals",
	}})
}

type ctxKey struct{}

func TestBuildContext(t *testing.T) {
	c := newContext(3, 40, 50)
	base := context.WithValue(context.Background(), ctxKey{}, "base")
	StoreContext(c, base)

	ctx := BuildContext(c)
	if got := logger.RIDFrom(ctx); got != "3:40:50" {
		t.Fatalf("rid = %q", got)
	}
	if logger.UpdateIDFrom(ctx) != 3 || logger.ChatIDFrom(ctx) != 40 || logger.UserIDFrom(ctx) != 50 {
		t.Fatal("update meta not stored")
	}
	if ctx.Value(ctxKey{}) != "base" {
		t.Fatal("stored context must be the parent")
	}
	if again := BuildContext(c); again != ctx {
		t.Fatal("built context must be cached on the telebot context")
	}
}

func TestBuildContextWithoutStored(t *testing.T) {
	ctx := BuildContext(newContext(1, 2, 3))
	if logger.RIDFrom(ctx) != "1:2:3" {
		t.Fatalf("rid = %q", logger.RIDFrom(ctx))
	}
}

func TestSummary(t *testing.T) {
	c := newContext(1, 2, 3)
	ctx, s := WithSummary(context.Background())
	StoreContext(c, ctx)
	if SummaryFrom(ctx) != s {
		t.Fatal("summary not stored in context")
	}
	ctx = WithHandler(c, "create")
	s.SetTransition("confirmed", "wait_category")
	s.SetOutcome("ok")

	handler, state, next, outcome := s.Snapshot()
	if handler != "create" || state != "confirmed" || next != "wait_category" || outcome != "ok" {
		t.Fatalf("snapshot = %s %s %s %s", handler, state, next, outcome)
	}
	if logger.HandlerFrom(ctx) != "create" {
		t.Fatal("handler not stored in context")
	}
	if stored, _ := ContextFrom(c); logger.HandlerFrom(stored) != "create" {
		t.Fatal("handler context not stored on the telebot context")
	}

	var missing *Summary
	missing.SetOutcome("ok")
	if h, _, _, _ := SummaryFrom(context.Background()).Snapshot(); h != "" {
		t.Fatal("nil summary must be inert")
	}
}

type recordStore struct {
	chatID int64
	err    error
}

func (r *recordStore) ByChatID(_ context.Context, chatID int64) (string, error) {
	r.chatID = chatID
	return "record", r.err
}

func TestCurrentUser(t *testing.T) {
	store := &recordStore{}
	got, err := CurrentUser[string](newContext(1, 40, 50), store)
	if err != nil || got != "record" || store.chatID != 40 {
		t.Fatalf("got %q err %v chat %d", got, err, store.chatID)
	}

	boom := errors.New("db down")
	if _, err := CurrentUser[string](newContext(1, 40, 50), &recordStore{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected lookup error, got %v", err)
	}
	if got, err := CurrentUser[string](tele.NewContext(nil, tele.Update{ID: 1}), store); err != nil || got != "" {
		t.Fatalf("update without chat must resolve to zero, got %q %v", got, err)
	}
}

func TestDisplayName(t *testing.T) {
	if DisplayName(nil) != "" {
		t.Fatal("nil user")
	}
	if got := DisplayName(&tele.User{FirstName: "Ann"}); got != "Ann" {
		t.Fatalf("display name = %q", got)
	}
	if got := DisplayName(&tele.User{FirstName: "Ann", Username: "ann_k"}); got != "ann_k" {
		t.Fatalf("display name = %q", got)
	}
}

type sendRecorder struct {
	tele.Context
	sent []any
}

func (s *sendRecorder) Send(what any, _ ...any) error {
	s.sent = append(s.sent, what)
	return nil
}

func TestSendTextSkipsEmpty(t *testing.T) {
	c := &sendRecorder{Context: newContext(1, 2, 3)}
	if err := SendText(c, ""); err != nil || len(c.sent) != 0 {
		t.Fatalf("empty text must not be sent: %v %v", err, c.sent)
	}
	if err := SendText(c, "hi"); err != nil || len(c.sent) != 1 || c.sent[0] != "hi" {
		t.Fatalf("sent = %v err = %v", c.sent, err)
	}
}
