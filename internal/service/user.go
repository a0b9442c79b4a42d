package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"warbler/internal/model"
	"warbler/internal/repository"
)

// UserService handles signup, authentication and profile management.
type UserService struct {
	tx    repository.Transactor
	repo  repository.UserRepository
	cache timelineInvalidator

	defaultImageURL       string
	defaultHeaderImageURL string
	hashCost              int
}

// timelineInvalidator is the part of the timeline cache a deleted account needs.
type timelineInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

type UserServiceOption func(*UserService)

// WithDefaultImages sets the image URLs stored when a user gives none.
func WithDefaultImages(imageURL, headerImageURL string) UserServiceOption {
	return func(s *UserService) {
		s.defaultImageURL = imageURL
		s.defaultHeaderImageURL = headerImageURL
	}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) UserServiceOption {
	return func(s *UserService) { s.hashCost = cost }
}

// WithTimelineCache drops a deleted user's cached timeline.
func WithTimelineCache(cache timelineInvalidator) UserServiceOption {
	return func(s *UserService) { s.cache = cache }
}

func NewUserService(tx repository.Transactor, repo repository.UserRepository, opts ...UserServiceOption) *UserService {
	s := &UserService{
		tx:       tx,
		repo:     repo,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup creates a user with a bcrypt-hashed password.
// Missing fields fail with model.ErrValidation before the store is touched; a taken
// username or email fails with model.ErrIntegrityViolation and nothing is written.
func (s *UserService) Signup(ctx context.Context, req *model.SignupRequest) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	switch {
	case username == "":
		return nil, &model.ValidationError{Err: model.ErrUsernameRequired}
	case email == "":
		return nil, &model.ValidationError{Err: model.ErrEmailRequired}
	case req.Password == "":
		return nil, &model.ValidationError{Err: model.ErrPasswordRequired}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:       username,
		Email:          email,
		Password:       string(hashedPassword),
		ImageURL:       strings.TrimSpace(req.ImageURL),
		HeaderImageURL: s.defaultHeaderImageURL,
	}
	if user.ImageURL == "" {
		user.ImageURL = s.defaultImageURL
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.repo.Create(ctx, tx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.WithFields(log.Fields{"user_id": user.ID, "username": user.Username}).Info("[UserService] Signup")
	return user, nil
}

// Authenticate returns the user when username and password match.
// An unknown username and a wrong password both yield model.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetProfile returns the user with freshly computed relationship counts.
func (s *UserService) GetProfile(ctx context.Context, id int64) (*model.User, *model.UserStats, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	stats, err := s.repo.GetStats(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return user, stats, nil
}

// Search lists users whose username contains query. An empty query lists everyone.
func (s *UserService) Search(ctx context.Context, query string) ([]model.UserSummary, error) {
	return s.repo.Search(ctx, query)
}

// UpdateProfile applies req to the user after re-checking their current password.
// Empty image fields fall back to the defaults.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req *model.UpdateProfileRequest) (*model.User, error) {
	current, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.Authenticate(ctx, current.Username, req.Password); err != nil {
		return nil, err
	}

	updated := *current
	updated.Username = strings.TrimSpace(req.Username)
	updated.Email = strings.TrimSpace(req.Email)
	if updated.Username == "" {
		return nil, &model.ValidationError{Err: model.ErrUsernameRequired}
	}
	if updated.Email == "" {
		return nil, &model.ValidationError{Err: model.ErrEmailRequired}
	}

	updated.ImageURL = strings.TrimSpace(req.ImageURL)
	if updated.ImageURL == "" {
		updated.ImageURL = s.defaultImageURL
	}
	updated.HeaderImageURL = strings.TrimSpace(req.HeaderImageURL)
	if updated.HeaderImageURL == "" {
		updated.HeaderImageURL = s.defaultHeaderImageURL
	}
	updated.Bio = optional(req.Bio)
	updated.Location = optional(req.Location)

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.repo.Update(ctx, tx, &updated)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return &updated, nil
}

// Delete removes the user together with their messages, follows and likes.
func (s *UserService) Delete(ctx context.Context, userID int64) error {
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.repo.Delete(ctx, tx, userID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			log.Printf("[UserService] Failed to drop timeline for deleted user=%d: %v", userID, err)
		}
	}

	log.WithField("user_id", userID).Info("[UserService] Account deleted")
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
