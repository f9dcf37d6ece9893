package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/oksasatya/go-lms-registration/internal/domain/entity"
	"github.com/oksasatya/go-lms-registration/internal/domain/repository"
	"github.com/oksasatya/go-lms-registration/pkg/helpers"
)

const avatarPrefix = "avatars/"

var allowedExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

// AvatarStore keeps avatar images in a GCS bucket. Public ids are object
// names under avatars/.
type AvatarStore struct {
	Client *gcs.Client
	Bucket string
}

func NewAvatarStore(client *gcs.Client, bucket string) *AvatarStore {
	return &AvatarStore{Client: client, Bucket: bucket}
}

func (s *AvatarStore) configured() bool {
	return s != nil && s.Client != nil && s.Bucket != ""
}

func (s *AvatarStore) Upload(ctx context.Context, r io.Reader, filename, contentType string) (entity.Avatar, error) {
	if !s.configured() {
		return entity.Avatar{}, repository.ErrAvatarNotConfigured
	}
	ext := strings.ToLower(path.Ext(filename))
	if !strings.HasPrefix(contentType, "image/") || !allowedExt[ext] {
		return entity.Avatar{}, repository.ErrAvatarType
	}
	id := avatarPrefix + uuid.NewString() + ext
	url, err := helpers.UploadObject(ctx, s.Client, s.Bucket, id, contentType, r)
	if err != nil {
		return entity.Avatar{}, fmt.Errorf("upload avatar: %w", err)
	}
	return entity.Avatar{PublicID: id, URL: url}, nil
}

func (s *AvatarStore) Resolve(ctx context.Context, publicID string) (entity.Avatar, error) {
	if !s.configured() {
		return entity.Avatar{}, repository.ErrAvatarNotConfigured
	}
	if !validPublicID(publicID) {
		return entity.Avatar{}, repository.ErrAvatarNotFound
	}
	ok, err := helpers.ObjectExists(ctx, s.Client, s.Bucket, publicID)
	if err != nil {
		return entity.Avatar{}, fmt.Errorf("lookup avatar: %w", err)
	}
	if !ok {
		return entity.Avatar{}, repository.ErrAvatarNotFound
	}
	return entity.Avatar{PublicID: publicID, URL: helpers.PublicURL(s.Bucket, publicID)}, nil
}

func validPublicID(id string) bool {
	if !strings.HasPrefix(id, avatarPrefix) || strings.Contains(id, "..") {
		return false
	}
	rest := strings.TrimPrefix(id, avatarPrefix)
	return rest != "" && !strings.Contains(rest, "/")
}

var _ repository.AvatarRepository = (*AvatarStore)(nil)
