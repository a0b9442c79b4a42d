package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"warbler/internal/cache"
	"warbler/internal/model"
)

const messageSelect = `
	SELECT m.id, m.text, m.timestamp, m.user_id,
	       u.username AS author_username, u.image_url AS author_image_url
	FROM messages m
	JOIN users u ON u.id = m.user_id
`

// messageRow is a message joined with its author.
type messageRow struct {
	model.Message
	AuthorUsername string `db:"author_username"`
	AuthorImageURL string `db:"author_image_url"`
}

func (r messageRow) toMessage() model.Message {
	msg := r.Message
	msg.Author = &model.UserSummary{
		ID:       r.UserID,
		Username: r.AuthorUsername,
		ImageURL: r.AuthorImageURL,
	}
	return msg
}

func toMessages(rows []messageRow) []model.Message {
	messages := make([]model.Message, len(rows))
	for i, row := range rows {
		messages[i] = row.toMessage()
	}
	return messages
}

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create inserts a message. Timestamp is set by the database when zero.
func (r *messageRepository) Create(ctx context.Context, tx *sqlx.Tx, msg *model.Message) error {
	var ts interface{}
	if !msg.Timestamp.IsZero() {
		ts = msg.Timestamp
	}

	query := `
		INSERT INTO messages (text, user_id, timestamp)
		VALUES ($1, $2, COALESCE($3::timestamptz, NOW()))
		RETURNING id, timestamp
	`
	err := tx.QueryRowxContext(ctx, query, msg.Text, msg.UserID, ts).Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return fmt.Errorf("insert message: %w", translateError(err))
	}
	return nil
}

// GetByID retrieves a single message with its author.
func (r *messageRepository) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	var row messageRow
	err := r.db.GetContext(ctx, &row, messageSelect+` WHERE m.id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}

	msg := row.toMessage()
	return &msg, nil
}

// GetByIDs retrieves multiple messages by their IDs.
// Used for hydrating the timeline from cache.
func (r *messageRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Message, error) {
	if len(ids) == 0 {
		return []model.Message{}, nil
	}

	var rows []messageRow
	err := r.db.SelectContext(ctx, &rows, messageSelect+` WHERE m.id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get messages by ids: %w", err)
	}

	byID := make(map[int64]model.Message, len(rows))
	for _, row := range rows {
		byID[row.ID] = row.toMessage()
	}
	ordered := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			ordered = append(ordered, m)
		}
	}

	return ordered, nil
}

func (r *messageRepository) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrMessageNotFound
	}
	return nil
}

// ListByUser returns a user's messages, newest first.
func (r *messageRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	var rows []messageRow
	query := messageSelect + `
		WHERE m.user_id = $1
		ORDER BY m.timestamp DESC, m.id DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list messages by user: %w", err)
	}
	return toMessages(rows), nil
}

func (r *messageRepository) Timeline(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	var rows []messageRow
	query := messageSelect + `
		WHERE m.user_id = $1
		   OR m.user_id IN (SELECT user_being_followed_id FROM follows WHERE user_following_id = $1)
		ORDER BY m.timestamp DESC, m.id DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("get timeline: %w", err)
	}
	return toMessages(rows), nil
}

type scoreRow struct {
	ID        int64     `db:"id"`
	Timestamp time.Time `db:"timestamp"`
}

func toScores(rows []scoreRow) []cache.MessageScore {
	scores := make([]cache.MessageScore, len(rows))
	for i, r := range rows {
		scores[i] = cache.MessageScore{MessageID: r.ID, Timestamp: r.Timestamp.UnixMilli()}
	}
	return scores
}

// GetTimelineScores returns the ids and scores of userID's home timeline for cache warming.
func (r *messageRepository) GetTimelineScores(ctx context.Context, userID int64, limit int) ([]cache.MessageScore, error) {
	query := `
		SELECT id, timestamp
		FROM messages
		WHERE user_id = $1
		   OR user_id IN (SELECT user_being_followed_id FROM follows WHERE user_following_id = $1)
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`
	var rows []scoreRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("get timeline scores: %w", err)
	}
	return toScores(rows), nil
}

// GetRecentByUser returns recent messages by a user (for follow backfill).
func (r *messageRepository) GetRecentByUser(ctx context.Context, userID int64, limit int) ([]cache.MessageScore, error) {
	query := `
		SELECT id, timestamp
		FROM messages
		WHERE user_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`
	var rows []scoreRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("get recent messages: %w", err)
	}
	return toScores(rows), nil
}
