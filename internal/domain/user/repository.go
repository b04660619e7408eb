package user

import (
	"context"
)

// Repository defines the storage contract for users.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// Create stores a new user.
	// Returns ErrEmailTaken if the email is already registered.
	Create(ctx context.Context, u *User) error

	// GetByID returns a user by internal ID.
	// Returns ErrUserNotFound if absent.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail returns a user by email.
	// Returns ErrUserNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*User, error)
}
