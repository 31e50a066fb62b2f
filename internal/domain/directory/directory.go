package directory

import (
	"context"
	"errors"
)

// RoleUser is the only role this service assigns at signup.
const RoleUser = "user"

var (
	// ErrNotFound is the distinct "no entry for this username" signal. The
	// availability check depends on being able to tell it apart from any
	// other directory failure.
	ErrNotFound = errors.New("credential entry not found")

	// ErrExists reports a create against a username that already holds an
	// entry.
	ErrExists = errors.New("credential entry already exists")

	// ErrInvalidCredentials reports a password that does not match the
	// stored entry, for both login and old-password authorization.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Entry is the directory's record for one username. PasswordHash is a
// bcrypt hash; the plain value never leaves the directory boundary.
type Entry struct {
	Username     string
	PasswordHash string
	Roles        []string
}

// CredentialDirectory is the authentication-provider's store of login
// credentials, owned independently of the user-record store.
type CredentialDirectory interface {
	// LoadByUsername returns the entry for username, or ErrNotFound.
	LoadByUsername(ctx context.Context, username string) (*Entry, error)

	// Create claims username and stores a new entry bound to the given
	// roles. Returns ErrExists when the username is already claimed.
	Create(ctx context.Context, username, password string, roles []string) error

	// ChangePassword replaces the stored credential, authorizing the change
	// with the previous password value. Returns ErrNotFound or
	// ErrInvalidCredentials when the authorization fails.
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error

	// Rewrite force-replaces the entry without old-password authorization.
	// Used to reconcile the directory to the user store after a partial
	// failure, never from a user-facing path.
	Rewrite(ctx context.Context, username, password string, roles []string) error

	// Verify checks a login attempt and returns the entry on success.
	Verify(ctx context.Context, username, password string) (*Entry, error)
}
