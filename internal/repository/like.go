package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"warbler/internal/model"
)

type likeRepository struct {
	db *sqlx.DB
}

func NewLikeRepository(db *sqlx.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) Create(ctx context.Context, tx *sqlx.Tx, userID, messageID int64) error {
	query := `
		INSERT INTO likes (user_id, message_id)
		VALUES ($1, $2)
		ON CONFLICT ON CONSTRAINT likes_user_message_key DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, query, userID, messageID); err != nil {
		return fmt.Errorf("insert like: %w", translateError(err))
	}
	return nil
}

func (r *likeRepository) Delete(ctx context.Context, tx *sqlx.Tx, userID, messageID int64) (bool, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE user_id = $1 AND message_id = $2`, userID, messageID)
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *likeRepository) Exists(ctx context.Context, userID, messageID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM likes WHERE user_id = $1 AND message_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, userID, messageID); err != nil {
		return false, fmt.Errorf("check like exists: %w", err)
	}
	return exists, nil
}

func (r *likeRepository) GetLikedMessageIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT message_id FROM likes WHERE user_id = $1`, userID)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("get liked message ids: %w", err)
	}
	return ids, nil
}

// GetLikedMessages returns the messages userID liked, most recent like first.
func (r *likeRepository) GetLikedMessages(ctx context.Context, userID int64) ([]model.Message, error) {
	query := `
		SELECT m.id, m.text, m.timestamp, m.user_id,
		       u.username AS author_username, u.image_url AS author_image_url
		FROM likes l
		JOIN messages m ON m.id = l.message_id
		JOIN users u ON u.id = m.user_id
		WHERE l.user_id = $1
		ORDER BY l.created_at DESC, l.id DESC
	`
	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("get liked messages: %w", err)
	}
	return toMessages(rows), nil
}

func (r *likeRepository) CountForMessage(ctx context.Context, messageID int64) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM likes WHERE message_id = $1`, messageID); err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return count, nil
}
