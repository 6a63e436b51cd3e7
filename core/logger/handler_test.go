package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestHandler(format logFormat) (*structuredHandler, *asyncWriter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelDebug,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	return handler, aw, buf
}

func drain(t *testing.T, aw *asyncWriter, buf *bytes.Buffer) string {
	t.Helper()
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	handler, aw, buf := newTestHandler(formatKV)
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	log := slog.New(handler).With("component", "tg.poller")
	LogEvent(ctx, log, slog.LevelInfo, "update.handled",
		slog.String("status", "ok"),
		slog.String("state", "wait_title"),
	)

	line := drain(t, aw, buf)
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=tg.poller", "event=update.handled", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "state=wait_title"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	handler, aw, buf := newTestHandler(formatJSON)
	ctx := WithRID(context.Background(), "rid-json")
	ctx = WithUpdateMeta(ctx, 11, 22, 33)

	log := slog.New(handler).With("component", "service.goals")
	LogEvent(ctx, log, slog.LevelError, "goal.create_failed",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
	)

	line := drain(t, aw, buf)
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"service.goals"`, `"event":"goal.create_failed"`, `"status":"fail"`, `"rid":"rid-json"`, `"err":"boom"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	handler, aw, buf := newTestHandler(formatKV)
	rawRID := "123:456:789"
	ctx := WithRID(context.Background(), rawRID)
	LogEvent(ctx, slog.New(handler), slog.LevelInfo, "rid.test")

	line := drain(t, aw, buf)
	if !strings.Contains(line, "rid="+CompactRID(rawRID)) {
		t.Fatalf("expected compact rid, got %s", line)
	}
	if strings.Contains(line, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", line)
	}
	if !strings.Contains(line, "component=app") {
		t.Fatalf("expected default component, got %s", line)
	}
}

func TestStructuredHandlerCompactRIDJSON(t *testing.T) {
	handler, aw, buf := newTestHandler(formatJSON)
	rawRID := "12:34:56"
	ctx := WithRID(context.Background(), rawRID)
	LogEvent(ctx, slog.New(handler), slog.LevelInfo, "rid.test")

	line := drain(t, aw, buf)
	if !strings.Contains(line, `"rid":"`+CompactRID(rawRID)+`"`) {
		t.Fatalf("expected compact rid in JSON, got %s", line)
	}
	if !strings.Contains(line, `"rid_full":"`+rawRID+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", line)
	}
	if !strings.Contains(line, `"ts_unix_nano"`) {
		t.Fatalf("expected ts_unix_nano in JSON output, got %s", line)
	}
}

func TestStructuredHandlerDurationAndEnums(t *testing.T) {
	handler, aw, buf := newTestHandler(formatKV)
	LogEvent(context.Background(), slog.New(handler), slog.LevelWarn, "send.retry",
		slog.Duration("duration", 1500*time.Microsecond),
		slog.Duration("delay", 2*time.Second),
		slog.String("status", "RETRY"),
		slog.String("outcome", "whatever"),
		slog.String("payload", ""),
	)

	line := drain(t, aw, buf)
	for _, want := range []string{"duration_ms=2", "delay_ms=2000", "status=retry", "level=WARN"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %s", want, line)
		}
	}
	for _, unwanted := range []string{"outcome=", "payload="} {
		if strings.Contains(line, unwanted) {
			t.Fatalf("did not expect %q in %s", unwanted, line)
		}
	}
}

func TestStructuredHandlerLevelFilter(t *testing.T) {
	handler := newStructuredHandler(handlerConfig{level: slog.LevelWarn})
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info must be filtered at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error must pass at warn level")
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	got := []bool{s.Allow(), s.Allow(), s.Allow(), s.Allow()}
	want := []bool{true, false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("allow[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if num, den := parseRatioSpec("2/5"); num != 2 || den != 5 {
		t.Fatalf("parse 2/5 = %d/%d", num, den)
	}
	if num, den := parseRatioSpec("10"); num != 1 || den != 10 {
		t.Fatalf("parse 10 = %d/%d", num, den)
	}
	disabled := newRatioSampler(0, 0)
	for i := 0; i < 3; i++ {
		if !disabled.Allow() {
			t.Fatal("disabled sampler must allow everything")
		}
	}
}

func TestLoggingBeforeInitIsSafe(t *testing.T) {
	Info(context.Background(), "service.goals", "noop", slog.String("status", "ok"))
	Goals.Warn("noop")
	if FromContext(context.Background()) == nil {
		t.Fatal("base logger must never be nil")
	}
}
