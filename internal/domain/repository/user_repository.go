package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/go-lms-registration/internal/domain/entity"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	// FindByEmail returns nil, nil when no user has the email.
	// The password hash is not loaded.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	// FindByEmailWithPassword is FindByEmail including the password hash.
	FindByEmailWithPassword(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	// Save inserts users without an ID and updates the rest. A staged
	// password is hashed right before the write.
	Save(ctx context.Context, u *entity.User) error
}
