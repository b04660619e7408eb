// Package user contains the user domain model: learners, creators, and
// admins. The role is fixed at registration; no role-change operation exists.
package user

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Role defines what a user may do on the platform.
type Role string

const (
	// RoleLearner enrolls in published courses and completes lessons.
	RoleLearner Role = "learner"

	// RoleCreator authors courses and submits them for review.
	RoleCreator Role = "creator"

	// RoleAdmin reviews creator-submitted courses.
	RoleAdmin Role = "admin"
)

// IsValid checks that the role is one of the three fixed roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleLearner, RoleCreator, RoleAdmin:
		return true
	default:
		return false
	}
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: USER
// ══════════════════════════════════════════════════════════════════════════════

// User represents a registered account.
type User struct {
	// ID is the internal unique identifier (UUID in string form).
	ID string

	// Email is the unique login identifier.
	Email string

	// PasswordHash is the bcrypt hash of the password. Never the plaintext.
	PasswordHash string

	// DisplayName is the name shown on certificates and course pages.
	DisplayName string

	// Role is fixed at registration.
	Role Role

	// CreatedAt is when the account was registered.
	CreatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidEmail - email is empty or malformed.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrInvalidDisplayName - display name must be 1-100 chars.
	ErrInvalidDisplayName = errors.New("invalid display name: must be 1-100 chars")

	// ErrInvalidRole - role outside {learner, creator, admin}.
	ErrInvalidRole = errors.New("invalid role")

	// ErrEmptyPasswordHash - a user cannot be stored without a password hash.
	ErrEmptyPasswordHash = errors.New("password hash is required")

	// ErrUserNotFound - user not found.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken - the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewUserParams contains parameters for creating a new user.
type NewUserParams struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Role         Role
}

// NewUser creates a new user with validation of all fields.
func NewUser(params NewUserParams) (*User, error) {
	if params.ID == "" {
		return nil, errors.New("user id is required")
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}

	if params.PasswordHash == "" {
		return nil, ErrEmptyPasswordHash
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if len(displayName) == 0 || len(displayName) > 100 {
		return nil, ErrInvalidDisplayName
	}

	role := params.Role
	if role == "" {
		role = RoleLearner
	}
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	return &User{
		ID:           params.ID,
		Email:        email,
		PasswordHash: params.PasswordHash,
		DisplayName:  displayName,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// validEmail applies a minimal sanity check; real validation happens when the
// address is actually used.
func validEmail(s string) bool {
	if len(s) < 3 || len(s) > 254 {
		return false
	}
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\n\r")
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// CanCreateCourses returns true if the user may author courses.
func (u *User) CanCreateCourses() bool {
	return u.Role == RoleCreator
}

// CanReview returns true if the user may review pending courses.
func (u *User) CanReview() bool {
	return u.Role == RoleAdmin
}

// CanEnroll returns true if the user may enroll in published courses.
func (u *User) CanEnroll() bool {
	return u.Role == RoleLearner
}

// String returns a loggable representation without the password hash.
func (u *User) String() string {
	return fmt.Sprintf("User{ID: %s, Email: %s, Role: %s}", u.ID, u.Email, u.Role)
}
