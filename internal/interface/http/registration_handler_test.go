package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-lms-registration/internal/application"
	"github.com/oksasatya/go-lms-registration/internal/domain/entity"
	"github.com/oksasatya/go-lms-registration/internal/domain/repository"
	"github.com/oksasatya/go-lms-registration/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Init()
}

type mockRegistrar struct{ mock.Mock }

func (m *mockRegistrar) Register(ctx context.Context, in application.RegisterInput) (*application.RegisterResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*application.RegisterResult)
	return res, args.Error(1)
}

func (m *mockRegistrar) Activate(ctx context.Context, in application.ActivateInput) (*entity.User, error) {
	args := m.Called(ctx, in)
	u, _ := args.Get(0).(*entity.User)
	return u, args.Error(1)
}

type mockAvatars struct{ mock.Mock }

func (m *mockAvatars) Upload(ctx context.Context, r io.Reader, filename, contentType string) (entity.Avatar, error) {
	args := m.Called(ctx, r, filename, contentType)
	return args.Get(0).(entity.Avatar), args.Error(1)
}

func (m *mockAvatars) Resolve(ctx context.Context, id string) (entity.Avatar, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(entity.Avatar), args.Error(1)
}

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   map[string]any  `json:"error"`
}

func newRouter(svc Registrar, avatars repository.AvatarRepository) *gin.Engine {
	logger, _ := test.NewNullLogger()
	h := NewRegistrationHandler(svc, logger)
	a := NewAvatarHandler(avatars, logger)
	r := gin.New()
	r.POST("/api/registration", h.Register)
	r.POST("/api/activate-user", h.Activate)
	r.POST("/api/avatars", a.Upload)
	return r
}

func doJSON(t *testing.T, r http.Handler, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestRegister_Created(t *testing.T) {
	svc := new(mockRegistrar)
	exp := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	svc.On("Register", mock.Anything, application.RegisterInput{Name: "Ana", Email: "ana@x.com", Password: "secret1"}).
		Return(&application.RegisterResult{
			ActivationToken: "tok",
			ExpiresAt:       exp,
			Message:         "Please check your email: ana@x.com to activate your account",
		}, nil).Once()

	w, env := doJSON(t, newRouter(svc, nil), "/api/registration",
		map[string]string{"name": "Ana", "email": "ana@x.com", "password": "secret1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Please check your email: ana@x.com to activate your account", env.Message)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "tok", data["activation_token"])
	assert.Equal(t, "2026-03-01T10:05:00Z", data["expires_at"])
	assert.NotContains(t, w.Body.String(), "activation_code")
	svc.AssertExpectations(t)
}

func TestRegister_BindingErrors(t *testing.T) {
	svc := new(mockRegistrar)
	w, env := doJSON(t, newRouter(svc, nil), "/api/registration",
		map[string]string{"email": "ana", "password": "123"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "is required", env.Error["name"])
	assert.Equal(t, "must be a valid email", env.Error["email"])
	assert.Equal(t, "length must be between 6 and 72", env.Error["password"])
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegister_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		code    string
	}{
		{"duplicate", application.ErrDuplicateEmail, http.StatusBadRequest, "Email already exist", "duplicate_email"},
		{"mail transport", &application.Error{Kind: application.KindMailTransport, Message: "smtp timeout"}, http.StatusBadRequest, "smtp timeout", "mail_transport_failure"},
		{"configuration", &application.Error{Kind: application.KindConfiguration, Message: "service is not configured"}, http.StatusInternalServerError, "service is not configured", "configuration_error"},
		{"unclassified", assert.AnError, http.StatusInternalServerError, "internal error", "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockRegistrar)
			svc.On("Register", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			w, env := doJSON(t, newRouter(svc, nil), "/api/registration",
				map[string]string{"name": "Ana", "email": "ana@x.com", "password": "secret1"})

			assert.Equal(t, tt.status, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.message, env.Message)
			assert.Equal(t, tt.code, env.Error["code"])
		})
	}
}

func TestActivate_Created(t *testing.T) {
	svc := new(mockRegistrar)
	svc.On("Activate", mock.Anything, application.ActivateInput{Token: "tok", Code: "042137"}).
		Return(&entity.User{
			ID:           "u1",
			Name:         "Ana",
			Email:        "ana@x.com",
			PasswordHash: "$2a$10$hash",
			Role:         entity.RoleUser,
			IsVerified:   true,
		}, nil).Once()

	w, env := doJSON(t, newRouter(svc, nil), "/api/activate-user",
		map[string]string{"activation_token": "tok", "activation_code": "042137"})

	assert.Equal(t, http.StatusCreated, w.Code)
	var data struct {
		User map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "u1", data.User["id"])
	assert.Equal(t, true, data.User["is_verified"])
	assert.Equal(t, []any{}, data.User["courses"])
	assert.NotContains(t, w.Body.String(), "$2a$10$hash")
}

func TestActivate_Failures(t *testing.T) {
	svc := new(mockRegistrar)
	svc.On("Activate", mock.Anything, mock.Anything).Return(nil, application.ErrInvalidActivationCode).Once()
	r := newRouter(svc, nil)

	w, env := doJSON(t, r, "/api/activate-user",
		map[string]string{"activation_token": "tok", "activation_code": "999999"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_activation_code", env.Error["code"])

	w, env = doJSON(t, r, "/api/activate-user",
		map[string]string{"activation_token": "tok", "activation_code": "12ab"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "must be a 6 digit code", env.Error["activation_code"])
	svc.AssertNumberOfCalls(t, "Activate", 1)
}

func multipartRequest(t *testing.T, filename, contentType string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/avatars", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAvatarUpload(t *testing.T) {
	avatars := new(mockAvatars)
	avatars.On("Upload", mock.Anything, mock.Anything, "me.png", "image/png").
		Return(entity.Avatar{PublicID: "avatars/1.png", URL: "https://storage.googleapis.com/b/avatars/1.png"}, nil).Once()
	avatars.On("Upload", mock.Anything, mock.Anything, "notes.txt", "text/plain").
		Return(entity.Avatar{}, repository.ErrAvatarType).Once()
	r := newRouter(nil, avatars)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "me.png", "image/png", []byte("\x89PNG")))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"public_id":"avatars/1.png"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "notes.txt", "text/plain", []byte("hi")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/avatars", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"validation_error"`)
	avatars.AssertExpectations(t)
}
