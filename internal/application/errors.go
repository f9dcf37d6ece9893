package application

import (
	"errors"
	"net/http"
)

// Kind classifies a registration failure for callers.
type Kind string

const (
	KindDuplicateEmail        Kind = "duplicate_email"
	KindValidation            Kind = "validation_error"
	KindMailTransport         Kind = "mail_transport_failure"
	KindConfiguration         Kind = "configuration_error"
	KindTokenExpired          Kind = "token_expired"
	KindTokenInvalid          Kind = "token_invalid"
	KindInvalidActivationCode Kind = "invalid_activation_code"
	KindTokenConsumed         Kind = "token_consumed"
	KindTooManyAttempts       Kind = "too_many_attempts"
	KindInternal              Kind = "internal"
)

// Error is returned by the registration service. Two errors match with
// errors.Is when their kinds are equal.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrDuplicateEmail        = &Error{Kind: KindDuplicateEmail, Message: "Email already exist"}
	ErrValidation            = &Error{Kind: KindValidation, Message: "invalid payload"}
	ErrMailTransport         = &Error{Kind: KindMailTransport, Message: "failed to send activation email"}
	ErrConfiguration         = &Error{Kind: KindConfiguration, Message: "service is not configured"}
	ErrTokenExpired          = &Error{Kind: KindTokenExpired, Message: "activation token expired"}
	ErrTokenInvalid          = &Error{Kind: KindTokenInvalid, Message: "activation token invalid"}
	ErrInvalidActivationCode = &Error{Kind: KindInvalidActivationCode, Message: "Invalid activation code"}
	ErrTokenConsumed         = &Error{Kind: KindTokenConsumed, Message: "activation token already used"}
	ErrTooManyAttempts       = &Error{Kind: KindTooManyAttempts, Message: "too many wrong activation codes, please register again"}
	ErrInternal              = &Error{Kind: KindInternal, Message: "internal error"}
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the status code used by the HTTP layer.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindConfiguration, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
