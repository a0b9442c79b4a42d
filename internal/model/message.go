package model

import (
	"errors"
	"time"
)

// Message is a single warble.
type Message struct {
	ID        int64     `db:"id" json:"id"`
	Text      string    `db:"text" json:"text"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	UserID    int64     `db:"user_id" json:"user_id"`

	Author *UserSummary `db:"-" json:"author,omitempty"` // Joined field
}

// OwnedBy reports whether userID is the message's author.
func (m *Message) OwnedBy(userID int64) bool {
	return m.UserID == userID
}

// MaxMessageLength matches the messages.text column.
const MaxMessageLength = 140

// TimelineLimit is how many messages the home page shows.
const TimelineLimit = 100

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrTextRequired    = errors.New("message text is required")
	ErrMessageTooLong  = errors.New("message text too long")
)
