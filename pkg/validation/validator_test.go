package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type registrationForm struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,pwd"`
	Code     string `json:"activation_code" validate:"omitempty,otp"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	Configure(v)
	return v
}

func TestToDetails_UsesJSONNames(t *testing.T) {
	err := newValidator().Struct(registrationForm{Email: "nope", Password: "123", Code: "12a"})

	details := ToDetails(err)
	assert.Equal(t, map[string]string{
		"name":            "is required",
		"email":           "must be a valid email",
		"password":        "length must be between 6 and 72",
		"activation_code": "must be a 6 digit code",
	}, details)
}

func TestToDetails_PasswordTooLong(t *testing.T) {
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	err := newValidator().Struct(registrationForm{Name: "Ana", Email: "ana@x.com", Password: string(long)})
	assert.Equal(t, map[string]string{"password": "length must be between 6 and 72"}, ToDetails(err))
}

func TestToDetails_Valid(t *testing.T) {
	err := newValidator().Struct(registrationForm{Name: "Ana", Email: "ana@x.com", Password: "secret1", Code: "042137"})
	assert.NoError(t, err)
	assert.Nil(t, ToDetails(err))
}

func TestToDetails_PayloadErrors(t *testing.T) {
	var target map[string]any
	err := json.Unmarshal([]byte("{"), &target)
	assert.Equal(t, map[string]string{"payload": "invalid json"}, ToDetails(err))

	assert.Equal(t, map[string]string{"payload": "invalid payload"}, ToDetails(errors.New("EOF")))
}
