// Package model defines the entities the bot reads and writes: the chat
// participant with its dialog state and the goal domain it works on.
package model

import "time"

// DialogState is the position of a participant in the conversation.
type DialogState string

const (
	StateAdded        DialogState = "added"
	StateConfirmed    DialogState = "confirmed"
	StateWaitCategory DialogState = "wait_category"
	StateWaitTitle    DialogState = "wait_title"
	StateRemoveGoal   DialogState = "remove_goal"
)

// Valid reports whether s is one of the known states.
func (s DialogState) Valid() bool {
	switch s {
	case StateAdded, StateConfirmed, StateWaitCategory, StateWaitTitle, StateRemoveGoal:
		return true
	}
	return false
}

func (s DialogState) String() string { return string(s) }

// Participant is the bot-side record of a Telegram chat.
type Participant struct {
	ID       int64       `db:"id"`
	ChatID   int64       `db:"chat_id"`
	Username string      `db:"username"`
	State    DialogState `db:"dialog_state"`
	// UserID is the linked domain account, nil until verification succeeds.
	UserID           *int64    `db:"user_id"`
	VerificationCode *string   `db:"verification_code"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Verified reports whether the chat is linked to a domain account.
func (p Participant) Verified() bool { return p.UserID != nil }

// Code returns the pending verification code or an empty string.
func (p Participant) Code() string {
	if p.VerificationCode == nil {
		return ""
	}
	return *p.VerificationCode
}
