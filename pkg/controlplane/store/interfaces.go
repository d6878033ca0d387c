package store

import (
	"context"
	"time"

	"github.com/caskfs/caskfs/pkg/controlplane/models"
)

// UserStore is the persistence interface for user accounts. GORMStore is the
// production implementation; handlers and commands depend on this interface
// so tests can substitute in-memory fakes.
type UserStore interface {
	// GetUser returns a user by username.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	GetUser(ctx context.Context, username string) (*models.User, error)

	// GetUserByID returns a user by ID.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// ListUsers returns all users ordered by username.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// CreateUser creates a new user and returns its generated ID.
	// Returns models.ErrDuplicateUser if the username is taken.
	CreateUser(ctx context.Context, user *models.User) (string, error)

	// UpdateUser updates a user's mutable fields (username, enabled, role).
	UpdateUser(ctx context.Context, user *models.User) error

	// DeleteUser removes a user by username.
	DeleteUser(ctx context.Context, username string) error

	// UpdatePassword replaces a user's password hash.
	UpdatePassword(ctx context.Context, username, passwordHash string) error

	// UpdateLastLogin records the user's most recent successful login.
	UpdateLastLogin(ctx context.Context, username string, timestamp time.Time) error

	// ValidateCredentials verifies username/password credentials.
	// Returns models.ErrInvalidCredentials on bad credentials and
	// models.ErrUserDisabled for disabled accounts.
	ValidateCredentials(ctx context.Context, username, password string) (*models.User, error)

	// EnsureAdminUser creates the built-in admin account if missing.
	// Returns the generated password when one was created, "" otherwise.
	EnsureAdminUser(ctx context.Context) (string, error)
}

var _ UserStore = (*GORMStore)(nil)
