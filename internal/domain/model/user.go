package model

import (
	"time"

	"course-marketplace/internal/domain"

	"github.com/google/uuid"
)

// User is the purchaser identity. Authentication token issuance lives
// elsewhere; the payment service only needs the id, email and admin flag.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	IsAdmin      bool
	RegisteredAt time.Time
}

func NewUser(id, email, displayName string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		ID:           id,
		Email:        email,
		DisplayName:  displayName,
		RegisteredAt: time.Now(),
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// Name returns the display name, falling back to the email address.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
