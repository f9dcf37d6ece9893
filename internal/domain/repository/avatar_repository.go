package repository

import (
	"context"
	"errors"
	"io"

	"github.com/oksasatya/go-lms-registration/internal/domain/entity"
)

var (
	ErrAvatarNotFound      = errors.New("avatar not found")
	ErrAvatarNotConfigured = errors.New("avatar storage not configured")
	ErrAvatarType          = errors.New("avatar must be an image")
)

// AvatarRepository stores profile images and resolves their public ids.
type AvatarRepository interface {
	Upload(ctx context.Context, r io.Reader, filename, contentType string) (entity.Avatar, error)
	// Resolve returns ErrAvatarNotFound when no object has the public id.
	Resolve(ctx context.Context, publicID string) (entity.Avatar, error)
}
