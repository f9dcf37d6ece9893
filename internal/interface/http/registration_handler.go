package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-lms-registration/internal/application"
	"github.com/oksasatya/go-lms-registration/internal/domain/entity"
	"github.com/oksasatya/go-lms-registration/pkg/response"
	"github.com/oksasatya/go-lms-registration/pkg/validation"
)

// Registrar is implemented by application.RegistrationService.
type Registrar interface {
	Register(ctx context.Context, in application.RegisterInput) (*application.RegisterResult, error)
	Activate(ctx context.Context, in application.ActivateInput) (*entity.User, error)
}

type RegistrationHandler struct {
	Svc    Registrar
	Logger *logrus.Logger
}

func NewRegistrationHandler(svc Registrar, logger *logrus.Logger) *RegistrationHandler {
	return &RegistrationHandler{Svc: svc, Logger: logger}
}

type registrationRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
	Avatar   string `json:"avatar"`
}

type activateRequest struct {
	ActivationToken string `json:"activation_token" binding:"required"`
	ActivationCode  string `json:"activation_code" binding:"required,otp"`
}

type registrationResponse struct {
	ActivationToken string    `json:"activation_token"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type avatarResponse struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

type userResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Avatar     *avatarResponse `json:"avatar,omitempty"`
	Role       string          `json:"role"`
	IsVerified bool            `json:"is_verified"`
	Courses    []string        `json:"courses"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func toUserResponse(u *entity.User) userResponse {
	res := userResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       string(u.Role),
		IsVerified: u.IsVerified,
		Courses:    u.CourseIDs,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
	if res.Courses == nil {
		res.Courses = []string{}
	}
	if u.Avatar.PublicID != "" {
		res.Avatar = &avatarResponse{PublicID: u.Avatar.PublicID, URL: u.Avatar.URL}
	}
	return res
}

// Register starts a registration and mails the activation code.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Avatar:   req.Avatar,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, registrationResponse{
		ActivationToken: res.ActivationToken,
		ExpiresAt:       res.ExpiresAt,
	}, res.Message, nil)
}

// Activate exchanges the activation token and code for an account.
func (h *RegistrationHandler) Activate(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, err := h.Svc.Activate(c.Request.Context(), application.ActivateInput{
		Token: req.ActivationToken,
		Code:  req.ActivationCode,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"user": toUserResponse(u)}, "account activated", nil)
}

func (h *RegistrationHandler) writeError(c *gin.Context, err error) {
	status := application.HTTPStatus(err)
	kind := application.KindOf(err)
	msg := err.Error()

	var appErr *application.Error
	if !errors.As(err, &appErr) {
		msg = application.ErrInternal.Message
	}
	if status >= http.StatusInternalServerError && h.Logger != nil {
		h.Logger.WithError(err).WithField("request_id", c.GetString("request_id")).Error("registration request failed")
	}
	response.Fail(c, status, msg, string(kind), nil)
}
