package repository

import (
	"context"
	"errors"

	"github.com/savorly/savorly-api/internal/domain/entity"
)

// ErrNotFound reports that a lookup target does not exist. Absence is a
// first-class outcome, not a fault.
var ErrNotFound = errors.New("not found")

// UserRepository defines the interface for user-record persistence.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*entity.User, error)
	FindByName(ctx context.Context, name string) (*entity.User, error)
	Create(ctx context.Context, u *entity.User) error
	Save(ctx context.Context, u *entity.User) error
}
