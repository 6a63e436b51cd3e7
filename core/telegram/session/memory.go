package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/goalbot/core/logger"
)

type memoryEntry struct {
	sel     Selection
	expires time.Time
}

// MemoryStore is an in-process Store. Expired entries are dropped on access and by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]memoryEntry
}

// NewMemoryStore returns a MemoryStore whose entries live for ttl (DefaultTTL when ttl <= 0).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]memoryEntry),
	}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, chatID int64) (Selection, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[chatID]
	if !ok {
		return Selection{}, false, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, chatID)
		return Selection{}, false, nil
	}
	return e.sel, true, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, chatID int64, sel Selection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[chatID] = memoryEntry{sel: sel, expires: m.now().Add(m.ttl)}
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, chatID)
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep removes expired entries and returns how many were dropped.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logger.Session.Debug("expired selections dropped",
					slog.String("event", "session.sweep"),
					slog.Int("count", n),
				)
			}
		}
	}
}
