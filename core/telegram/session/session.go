// Package session keeps the short-lived category selection made between the
// wait_category and wait_title steps of goal creation.
//
// Entries are keyed by chat id, which never changes for a participant, and
// expire after a TTL. The memory backend loses everything on restart; the
// redis backend survives restarts of the bot process.
package session

import (
	"context"
	"time"
)

// DefaultTTL bounds how long an unfinished goal creation keeps its category.
const DefaultTTL = 30 * time.Minute

// Selection is the category picked in wait_category.
type Selection struct {
	CategoryID int64
	Title      string
}

// Store holds at most one Selection per chat.
type Store interface {
	// Get returns the selection for chatID. ok is false when none exists or it expired.
	Get(ctx context.Context, chatID int64) (sel Selection, ok bool, err error)
	Set(ctx context.Context, chatID int64, sel Selection) error
	Delete(ctx context.Context, chatID int64) error
}
