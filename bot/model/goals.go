package model

import "time"

// MaxTitleLength is the longest category or goal title the schema accepts, in runes.
const MaxTitleLength = 50

// Role is the membership level of a user on a board.
type Role int16

const (
	RoleOwner  Role = 1
	RoleWriter Role = 2
	RoleReader Role = 3
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleWriter:
		return "writer"
	case RoleReader:
		return "reader"
	}
	return "unknown"
}

// Status is the lifecycle stage of a goal.
type Status int16

const (
	StatusToDo       Status = 1
	StatusInProgress Status = 2
	StatusDone       Status = 3
	StatusArchived   Status = 4
)

// Priority of a goal.
type Priority int16

const (
	PriorityLow      Priority = 1
	PriorityMedium   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

// Board groups categories and is shared between participants.
type Board struct {
	ID        int64  `db:"id"`
	Title     string `db:"title"`
	IsDeleted bool   `db:"is_deleted"`
}

// Membership ties a user to a board with a role.
type Membership struct {
	BoardID int64 `db:"board_id"`
	UserID  int64 `db:"user_id"`
	Role    Role  `db:"role"`
}

// Category holds goals on a board.
type Category struct {
	ID        int64  `db:"id"`
	BoardID   int64  `db:"board_id"`
	UserID    int64  `db:"user_id"`
	Title     string `db:"title"`
	IsDeleted bool   `db:"is_deleted"`
}

// Goal is a single tracked goal. Archived goals are never deleted.
type Goal struct {
	ID          int64      `db:"id"`
	CategoryID  int64      `db:"category_id"`
	BoardID     int64      `db:"board_id"`
	UserID      int64      `db:"user_id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	DueDate     *time.Time `db:"due_date"`
	Status      Status     `db:"status"`
	Priority    Priority   `db:"priority"`
}

// Archived reports whether the goal left the active set.
func (g Goal) Archived() bool { return g.Status >= StatusArchived }
