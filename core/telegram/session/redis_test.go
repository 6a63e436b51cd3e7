package session

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// Runs only against a live server: TEST_REDIS_URL=redis://localhost:6379/15
func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	prefix := fmt.Sprintf("goalbot:test:%d:", time.Now().UnixNano())
	s := NewRedisStore(client, prefix, time.Minute)
	defer client.Del(ctx, prefix+"42")

	if _, ok, err := s.Get(ctx, 42); ok || err != nil {
		t.Fatalf("empty get ok=%v err=%v", ok, err)
	}
	want := Selection{CategoryID: 3, Title: "Работа"}
	if err := s.Set(ctx, 42, want); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := s.Get(ctx, 42)
	if err != nil || !ok || got != want {
		t.Fatalf("get = %+v ok=%v err=%v", got, ok, err)
	}
	ttl, err := client.TTL(ctx, prefix+"42").Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl = %s err=%v", ttl, err)
	}
	if err := s.Delete(ctx, 42); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, 42); ok {
		t.Fatal("selection survived delete")
	}
}
