package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/goalbot/core/logger"
)

const (
	fieldCategoryID = "category_id"
	fieldTitle      = "title"
)

// RedisStore keeps selections in redis hashes named <prefix><chat_id> with a TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a Store backed by client.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "goalbot:selection:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Session.Info("redis connected",
		slog.String("event", "session.connect"),
		slog.String("status", "ok"),
		slog.String("backend", "redis"),
		slog.String("host", opts.Addr),
		slog.Int("db", opts.DB),
	)
	return client, nil
}

func (r *RedisStore) key(chatID int64) string {
	return r.prefix + strconv.FormatInt(chatID, 10)
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, chatID int64) (Selection, bool, error) {
	vals, err := r.client.HGetAll(ctx, r.key(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return Selection{}, false, nil
	}
	if err != nil {
		return Selection{}, false, fmt.Errorf("session get: %w", err)
	}
	raw, ok := vals[fieldCategoryID]
	if !ok {
		return Selection{}, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logger.Session.Warn("corrupt selection dropped",
			slog.String("event", "session.corrupt"),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		_ = r.client.Del(ctx, r.key(chatID)).Err()
		return Selection{}, false, nil
	}
	return Selection{CategoryID: id, Title: vals[fieldTitle]}, true, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, chatID int64, sel Selection) error {
	key := r.key(chatID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldCategoryID, strconv.FormatInt(sel.CategoryID, 10),
			fieldTitle, sel.Title,
		)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session set: %w", err)
	}
	return nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, chatID int64) error {
	if err := r.client.Del(ctx, r.key(chatID)).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}
