// Package storage declares the persistence operations the bot needs from the
// shared goal database.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/m3rciful/goalbot/bot/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("storage: conflict")
)

// Participants persists chat participants and their dialog state.
type Participants interface {
	ByChatID(ctx context.Context, chatID int64) (model.Participant, error)
	// Create inserts p unless a participant with the same chat id exists.
	// created is false when the existing row is returned instead.
	Create(ctx context.Context, p model.Participant) (out model.Participant, created bool, err error)
	// UpdateCode replaces the code of an unlinked participant. A linked or
	// missing participant yields ErrNotFound.
	UpdateCode(ctx context.Context, id int64, code string) error
	UpdateState(ctx context.Context, id int64, state model.DialogState) error
	// LinkByCode atomically attaches userID to the unlinked participant holding
	// code, moves it to confirmed and clears the code.
	LinkByCode(ctx context.Context, code string, userID int64) (model.Participant, error)
}

// Memberships resolves board roles of a user.
type Memberships interface {
	// Roles maps board id to the role userID holds on it. Deleted boards are omitted.
	Roles(ctx context.Context, userID int64) (map[int64]model.Role, error)
}

// Categories reads categories.
type Categories interface {
	// CategoriesForUser lists non-deleted categories on boards userID is a
	// member of, ordered by id.
	CategoriesForUser(ctx context.Context, userID int64) ([]model.Category, error)
}

// Goals reads and writes goals.
type Goals interface {
	// ArchiveOverdue archives every active goal due before today and returns
	// how many were changed.
	ArchiveOverdue(ctx context.Context, today time.Time) (int64, error)
	// GoalsForUser lists non-archived goals on boards userID is a member of,
	// ordered by id.
	GoalsForUser(ctx context.Context, userID int64) ([]model.Goal, error)
	CreateGoal(ctx context.Context, g model.Goal) (model.Goal, error)
	// ArchiveGoals archives the listed goals and returns how many changed.
	ArchiveGoals(ctx context.Context, ids []int64) (int64, error)
}

// Store is the full set of operations used by the bot.
type Store interface {
	Participants
	Memberships
	Categories
	Goals
}

// Day truncates t to midnight in its location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
