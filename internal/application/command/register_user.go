// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/microcourses/microcourses/internal/domain/shared"
	"github.com/microcourses/microcourses/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER USER COMMAND
// Creates an account with a fixed role. The email is unique; the role is
// immutable after registration.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterUserCommand contains the data to register a new user.
type RegisterUserCommand struct {
	// Email is the unique login identifier.
	Email string

	// Password is the plaintext password; hashed with bcrypt before storage.
	Password string

	// DisplayName is the name shown on certificates and course pages.
	DisplayName string

	// Role is one of learner, creator, admin. Defaults to learner.
	Role user.Role
}

// Validate validates the command.
func (c *RegisterUserCommand) Validate() error {
	if c.Email == "" {
		return shared.NewDomainError("user", "Register", shared.ErrInvalidArgument, "email is required")
	}
	if c.Password == "" {
		return shared.NewDomainError("user", "Register", shared.ErrInvalidArgument, "password is required")
	}
	if len(c.Password) > 72 {
		// bcrypt truncates beyond 72 bytes; reject instead of silently clipping.
		return shared.NewDomainError("user", "Register", shared.ErrInvalidArgument, "password too long")
	}
	if c.DisplayName == "" {
		return shared.NewDomainError("user", "Register", shared.ErrInvalidArgument, "display name is required")
	}
	if c.Role == "" {
		c.Role = user.RoleLearner
	}
	if !c.Role.IsValid() {
		return shared.NewDomainError("user", "Register", shared.ErrInvalidArgument, "role must be learner, creator, or admin")
	}
	return nil
}

// RegisterUserResult contains the created account.
type RegisterUserResult struct {
	User *user.User
}

// RegisterUserHandler handles the RegisterUserCommand.
type RegisterUserHandler struct {
	userRepo  user.Repository
	publisher shared.EventPublisher
}

// NewRegisterUserHandler creates a new RegisterUserHandler.
func NewRegisterUserHandler(userRepo user.Repository, publisher shared.EventPublisher) *RegisterUserHandler {
	return &RegisterUserHandler{
		userRepo:  userRepo,
		publisher: publisher,
	}
}

// Handle executes the register user command.
func (h *RegisterUserHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (*RegisterUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("register_user: failed to hash password: %w", err)
	}

	u, err := user.NewUser(user.NewUserParams{
		ID:           uuid.NewString(),
		Email:        cmd.Email,
		PasswordHash: string(hash),
		DisplayName:  cmd.DisplayName,
		Role:         cmd.Role,
	})
	if err != nil {
		return nil, shared.WrapError("user", "Register", shared.ErrInvalidArgument, "invalid user", err)
	}

	if err := h.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return nil, shared.WrapError("user", "Register", shared.ErrAlreadyExists, "email already registered", err)
		}
		return nil, fmt.Errorf("register_user: failed to create user: %w", err)
	}

	if h.publisher != nil {
		_ = h.publisher.Publish(userRegisteredEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventUserRegistered, u.ID),
			email:     u.Email,
			role:      string(u.Role),
		})
	}

	return &RegisterUserResult{User: u}, nil
}

type userRegisteredEvent struct {
	shared.BaseEvent
	email string
	role  string
}

func (e userRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email": e.email,
		"role":  e.role,
	}
}
