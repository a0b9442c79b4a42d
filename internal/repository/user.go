package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"warbler/internal/model"
)

const userColumns = `id, email, username, image_url, header_image_url, bio, location, password, created_at`

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user. Uniqueness and not-null violations come back as
// *model.IntegrityError.
func (r *userRepository) Create(ctx context.Context, tx *sqlx.Tx, u *model.User) error {
	query := `
		INSERT INTO users (email, username, image_url, header_image_url, bio, location, password)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		u.Email,
		u.Username,
		u.ImageURL,
		u.HeaderImageURL,
		u.Bio,
		u.Location,
		u.Password,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", translateError(err))
	}

	return nil
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return &u, nil
}

// GetByUsername retrieves a user by their username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return &u, nil
}

func (r *userRepository) Search(ctx context.Context, query string) ([]model.UserSummary, error) {
	var users []model.UserSummary
	var err error

	if query == "" {
		err = r.db.SelectContext(ctx, &users, `
			SELECT id, username, image_url, bio
			FROM users
			ORDER BY username
		`)
	} else {
		err = r.db.SelectContext(ctx, &users, `
			SELECT id, username, image_url, bio
			FROM users
			WHERE username LIKE $1 ESCAPE '\'
			ORDER BY username
		`, "%"+escapeLike(query)+"%")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	return users, nil
}

func (r *userRepository) Update(ctx context.Context, tx *sqlx.Tx, u *model.User) error {
	query := `
		UPDATE users
		SET username = $1, email = $2, image_url = $3, header_image_url = $4, bio = $5, location = $6
		WHERE id = $7
	`
	result, err := tx.ExecContext(ctx, query,
		u.Username, u.Email, u.ImageURL, u.HeaderImageURL, u.Bio, u.Location, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", translateError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// Delete removes a user. Messages, follows and likes go with it through ON DELETE CASCADE.
func (r *userRepository) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) GetStats(ctx context.Context, id int64) (*model.UserStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM messages WHERE user_id = $1)                AS messages,
			(SELECT COUNT(*) FROM follows WHERE user_following_id = $1)       AS following,
			(SELECT COUNT(*) FROM follows WHERE user_being_followed_id = $1)  AS followers,
			(SELECT COUNT(*) FROM likes WHERE user_id = $1)                   AS likes
	`

	var stats model.UserStats
	if err := r.db.GetContext(ctx, &stats, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return &stats, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes query match literally inside a LIKE pattern.
func escapeLike(query string) string {
	return likeEscaper.Replace(query)
}
