package model

import (
	"errors"
	"fmt"
	"time"
)

// User represents a Warbler account.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	Username       string    `db:"username" json:"username"`
	ImageURL       string    `db:"image_url" json:"image_url"`
	HeaderImageURL string    `db:"header_image_url" json:"header_image_url"`
	Bio            *string   `db:"bio" json:"bio"`
	Location       *string   `db:"location" json:"location"`
	Password       string    `db:"password" json:"-"` // bcrypt hash, never the plaintext
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

func (u *User) String() string {
	return fmt.Sprintf("<User #%d: %s, %s>", u.ID, u.Username, u.Email)
}

// Summary returns the lightweight form used in listings.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		ImageURL: u.ImageURL,
		Bio:      u.Bio,
	}
}

// UserStats holds the relationship cardinalities shown on a profile.
// Always computed on read.
type UserStats struct {
	Messages  int `db:"messages" json:"messages"`
	Following int `db:"following" json:"following"`
	Followers int `db:"followers" json:"followers"`
	Likes     int `db:"likes" json:"likes"`
}

// SignupRequest carries the fields accepted by signup.
type SignupRequest struct {
	Username string
	Email    string
	Password string
	ImageURL string
}

// UpdateProfileRequest carries editable profile fields. Password is the current
// password and is required to confirm the change.
type UpdateProfileRequest struct {
	Username       string
	Email          string
	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
	Password       string
}

// LoginRequest represents the data needed to log in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials is returned for an unknown username and for a wrong password alike
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrUsernameRequired = errors.New("username is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrPasswordRequired = errors.New("password is required")

	// ErrUsernameTaken and ErrEmailTaken refine ErrIntegrityViolation.
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already taken")
)
