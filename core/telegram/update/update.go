// Package update holds the decoded results of the getUpdates and sendMessage calls.
package update

import tele "gopkg.in/telebot.v4"

// Batch is the decoded result of one getUpdates call.
//
// OK is false when the response could not be decoded at all. Skipped lists
// update ids of elements that were present but undecodable.
type Batch struct {
	OK      bool
	Updates []tele.Update
	Skipped []int
}

// LastID returns the highest update id seen in the batch, including skipped ones.
func (b Batch) LastID() int {
	last := 0
	for _, u := range b.Updates {
		last = max(last, u.ID)
	}
	for _, id := range b.Skipped {
		last = max(last, id)
	}
	return last
}

// SendResult is the decoded result of one sendMessage call.
type SendResult struct {
	OK        bool
	MessageID int
}

// ChatID returns the chat a message update came from, or zero.
func ChatID(u tele.Update) int64 {
	if u.Message == nil || u.Message.Chat == nil {
		return 0
	}
	return u.Message.Chat.ID
}
