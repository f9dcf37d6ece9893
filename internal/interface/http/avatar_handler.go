package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-lms-registration/internal/domain/repository"
	"github.com/oksasatya/go-lms-registration/pkg/response"
)

const maxAvatarSize = 5 << 20

type AvatarHandler struct {
	Avatars repository.AvatarRepository
	Logger  *logrus.Logger
}

func NewAvatarHandler(avatars repository.AvatarRepository, logger *logrus.Logger) *AvatarHandler {
	return &AvatarHandler{Avatars: avatars, Logger: logger}
}

// Upload stores a multipart "file" and returns its public id for use as
// the registration avatar.
func (h *AvatarHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "file is required", "validation_error", nil)
		return
	}
	if fh.Size > maxAvatarSize {
		response.Fail(c, http.StatusRequestEntityTooLarge, "file too large", "file_too_large", gin.H{"max_bytes": maxAvatarSize})
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "cannot read file", "validation_error", nil)
		return
	}
	defer func() { _ = f.Close() }()

	avatar, err := h.Avatars.Upload(c.Request.Context(), f, fh.Filename, fh.Header.Get("Content-Type"))
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrAvatarType):
		response.Fail(c, http.StatusBadRequest, err.Error(), "validation_error", nil)
		return
	case errors.Is(err, repository.ErrAvatarNotConfigured):
		response.Fail(c, http.StatusServiceUnavailable, err.Error(), "configuration_error", nil)
		return
	default:
		if h.Logger != nil {
			h.Logger.WithError(err).Error("avatar upload failed")
		}
		response.Fail(c, http.StatusInternalServerError, "failed to upload avatar", "internal", nil)
		return
	}
	response.Success(c, http.StatusCreated, avatarResponse{PublicID: avatar.PublicID, URL: avatar.URL}, "avatar uploaded", nil)
}
