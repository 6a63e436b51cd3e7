package telegram

import (
	"context"
	"testing"

	"github.com/m3rciful/goalbot/core/telegram/sender"
)

func TestNotifierSync(t *testing.T) {
	src := &fakeSource{}
	if err := NewNotifier(src, nil).Notify(context.Background(), 5, "hello"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(src.sent) != 1 || src.sent[0] != (sentReply{chatID: 5, text: "hello"}) {
		t.Fatalf("sent = %+v", src.sent)
	}
}

func TestNotifierAsyncAndFallback(t *testing.T) {
	src := &fakeSource{}
	d := sender.NewDispatcher(sender.Options{Workers: 1})
	n := NewNotifier(src, d)
	if err := n.Notify(context.Background(), 1, "queued"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	d.Close()

	if err := n.Notify(context.Background(), 2, "direct"); err != nil {
		t.Fatalf("notify after close: %v", err)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.sent) != 2 || src.sent[0].text != "queued" || src.sent[1].text != "direct" {
		t.Fatalf("sent = %+v", src.sent)
	}
}
