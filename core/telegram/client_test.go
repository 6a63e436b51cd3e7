package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/goalbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

type rawCall struct {
	method  string
	payload any
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []rawCall
	fn    func(method string, payload any) ([]byte, error)
}

func (f *fakeAPI) Raw(method string, payload any) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rawCall{method: method, payload: payload})
	f.mu.Unlock()
	return f.fn(method, payload)
}

func respond(body string) func(string, any) ([]byte, error) {
	return func(string, any) ([]byte, error) { return []byte(body), nil }
}

func TestFetchUpdatesDecodesBatch(t *testing.T) {
	api := &fakeAPI{fn: respond(`{"ok":true,"result":[
		{"update_id":10,"message":{"message_id":1,"date":1,"chat":{"id":77,"type":"private","first_name":"Ann"},"from":{"id":5,"is_bot":false,"first_name":"Ann","username":"ann"},"text":"/goals","unknown_field":{"x":1}}},
		{"update_id":11,"edited_message":{"message_id":2}}
	],"extra":"ignored"}`)}
	c := NewClient(api)

	batch, err := c.FetchUpdates(context.Background(), 10, 30*time.Second)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !batch.OK || len(batch.Updates) != 2 {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	first := batch.Updates[0]
	m := first.Message
	if first.ID != 10 || m == nil || m.Chat.ID != 77 || m.Sender.ID != 5 || m.Text != "/goals" || m.Sender.Username != "ann" {
		t.Fatalf("unexpected first update: %+v %+v", first, first.Message)
	}
	if batch.Updates[1].Message != nil {
		t.Fatal("non-message update must carry no message")
	}

	req, ok := api.calls[0].payload.(getUpdatesRequest)
	if !ok || api.calls[0].method != "getUpdates" {
		t.Fatalf("unexpected call: %+v", api.calls[0])
	}
	if req.Offset != 10 || req.Timeout != 30 || len(req.AllowedUpdates) != 1 || req.AllowedUpdates[0] != "message" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestFetchUpdatesSkipsBadElement(t *testing.T) {
	api := &fakeAPI{fn: respond(`{"ok":true,"result":[
		{"update_id":20,"message":{"message_id":1,"chat":{"id":1,"type":"private"},"text":42}},
		{"update_id":21,"message":{"message_id":2,"chat":{"id":1,"type":"private"},"text":"hi"}},
		"garbage"
	]}`)}
	batch, err := NewClient(api).FetchUpdates(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !batch.OK || len(batch.Updates) != 1 || batch.Updates[0].ID != 21 {
		t.Fatalf("unexpected updates: %+v", batch)
	}
	if len(batch.Skipped) != 1 || batch.Skipped[0] != 20 {
		t.Fatalf("skipped = %v", batch.Skipped)
	}
	if batch.LastID() != 21 {
		t.Fatalf("last id = %d", batch.LastID())
	}
}

func TestFetchUpdatesMalformedEnvelope(t *testing.T) {
	for _, body := range []string{`<html>`, `{"ok":true,"result":{"not":"a list"}}`, ``} {
		batch, err := NewClient(&fakeAPI{fn: respond(body)}).FetchUpdates(context.Background(), 0, time.Second)
		if err != nil {
			t.Fatalf("body %q: decode failure must not be an error, got %v", body, err)
		}
		if batch.OK || len(batch.Updates) != 0 {
			t.Fatalf("body %q: expected empty not-ok batch, got %+v", body, batch)
		}
	}
}

func TestFetchUpdatesTransportFailure(t *testing.T) {
	apiErr := &tele.Error{Code: 401, Description: "Unauthorized"}
	api := &fakeAPI{fn: func(string, any) ([]byte, error) { return nil, apiErr }}
	_, err := NewClient(api).FetchUpdates(context.Background(), 0, time.Second)
	if !errors.Is(err, apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}

	notOK := &fakeAPI{fn: respond(`{"ok":false,"description":"nope"}`)}
	if _, err := NewClient(notOK).FetchUpdates(context.Background(), 0, time.Second); !errors.Is(err, ErrNotOK) {
		t.Fatalf("expected ErrNotOK, got %v", err)
	}
}

func TestFetchUpdatesHonorsContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	api := &fakeAPI{fn: func(string, any) ([]byte, error) {
		<-release
		return []byte(`{"ok":true,"result":[]}`), nil
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewClient(api).FetchUpdates(ctx, 0, time.Minute)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestSendReply(t *testing.T) {
	api := &fakeAPI{fn: respond(`{"ok":true,"result":{"message_id":99,"chat":{"id":7,"type":"private"},"text":"hi"}}`)}
	res, err := NewClient(api).SendReply(context.Background(), 7, "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !res.OK || res.MessageID != 99 {
		t.Fatalf("unexpected result: %+v", res)
	}
	body, _ := json.Marshal(api.calls[0].payload)
	if api.calls[0].method != "sendMessage" || string(body) != `{"chat_id":7,"text":"hi"}` {
		t.Fatalf("unexpected call %s %s", api.calls[0].method, body)
	}
}

func TestSendReplyTolerantDecode(t *testing.T) {
	res, err := NewClient(&fakeAPI{fn: respond(`{"ok":true,"result":"???"}`)}).SendReply(context.Background(), 7, "hi")
	if err != nil {
		t.Fatalf("decode failure must not be an error, got %v", err)
	}
	if res.OK {
		t.Fatal("expected not-ok result")
	}

	boom := errors.New("connection reset")
	_, err = NewClient(&fakeAPI{fn: func(string, any) ([]byte, error) { return nil, boom }}).SendReply(context.Background(), 7, "hi")
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestClientFailsOnForeignHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "<html>not found</html>")
	}))
	defer srv.Close()

	bot, err := tele.NewBot(tele.Settings{
		URL:     srv.URL,
		Token:   "1:test",
		Offline: true,
		Client:  BuildHTTPClient(0),
	})
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	c := NewClient(bot)

	var statusErr *netutil.StatusError
	res, err := c.SendReply(context.Background(), 7, "hi")
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("send: expected 404 status error, got res=%+v err=%v", res, err)
	}
	batch, err := c.FetchUpdates(context.Background(), 0, 0)
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("fetch: expected 404 status error, got batch=%+v err=%v", batch, err)
	}
}
