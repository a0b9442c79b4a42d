package model

import "time"

// Like records that UserID likes MessageID.
type Like struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	MessageID int64     `db:"message_id" json:"message_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LikeAction is the outcome of a like toggle.
type LikeAction string

const (
	LikeAdded   LikeAction = "liked"
	LikeRemoved LikeAction = "unliked"
)
