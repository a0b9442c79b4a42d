package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"warbler/internal/authz"
	"warbler/internal/model"
	"warbler/internal/queue"
	"warbler/internal/repository"
)

type MessageService struct {
	tx        repository.Transactor
	repo      repository.MessageRepository
	publisher queue.Publisher
}

// NewMessageService wires the message store. publisher may be nil.
func NewMessageService(tx repository.Transactor, repo repository.MessageRepository, publisher queue.Publisher) *MessageService {
	return &MessageService{
		tx:        tx,
		repo:      repo,
		publisher: publisher,
	}
}

// Create posts a message authored by userID.
func (s *MessageService) Create(ctx context.Context, userID int64, text string) (*model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &model.ValidationError{Err: model.ErrTextRequired}
	}
	if utf8.RuneCountInString(text) > model.MaxMessageLength {
		return nil, &model.ValidationError{Err: model.ErrMessageTooLong}
	}

	msg := &model.Message{Text: text, UserID: userID}
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.repo.Create(ctx, tx, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	publish(ctx, s.publisher, "MessageService", queue.NewMessageCreatedEvent(msg.ID, userID, msg.Timestamp))
	return msg, nil
}

func (s *MessageService) Get(ctx context.Context, id int64) (*model.Message, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByUser returns a user's messages, newest first.
func (s *MessageService) ListByUser(ctx context.Context, userID int64) ([]model.Message, error) {
	return s.repo.ListByUser(ctx, userID, model.TimelineLimit)
}

// Delete removes a message on behalf of actor. A missing message is model.ErrMessageNotFound;
// a message owned by someone else is model.ErrAccessUnauthorized and is left untouched.
func (s *MessageService) Delete(ctx context.Context, actor *model.User, id int64) error {
	msg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := authz.CanDeleteMessage(actor, msg); err != nil {
		log.WithFields(log.Fields{"actor_id": actor.ID, "message_id": id, "owner_id": msg.UserID}).
			Warn("[MessageService] Delete refused: not the owner")
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.repo.Delete(ctx, tx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	publish(ctx, s.publisher, "MessageService", queue.NewMessageDeletedEvent(id, msg.UserID))
	return nil
}
