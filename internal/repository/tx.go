package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"warbler/internal/model"
)

// PostgreSQL error codes we translate into domain errors.
const (
	pqUniqueViolation  = "23505"
	pqNotNullViolation = "23502"
)

type sqlxTransactor struct {
	db *sqlx.DB
}

func NewTransactor(db *sqlx.DB) Transactor {
	return &sqlxTransactor{db: db}
}

func (t *sqlxTransactor) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", translateError(err))
	}
	return nil
}

// translateError maps constraint violations to *model.IntegrityError and leaves
// everything else untouched.
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case pqUniqueViolation, pqNotNullViolation:
		constraint := pqErr.Constraint
		if constraint == "" {
			constraint = pqErr.Table + "." + pqErr.Column
		}
		return &model.IntegrityError{Constraint: constraint, Err: fieldError(constraint)}
	}
	return err
}

func fieldError(constraint string) error {
	switch constraint {
	case "users_username_key":
		return model.ErrUsernameTaken
	case "users_email_key":
		return model.ErrEmailTaken
	}
	return nil
}
