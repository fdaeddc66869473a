// utils/errors.go
package utils

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shopsy-store/shopsy_backend/models"
)

// ErrorKind classifies a failed operation so handlers can pick the HTTP
// status and callers can decide between retrying and surfacing to the user.
type ErrorKind int

const (
	// KindClientInput covers malformed or missing fields the caller can fix.
	KindClientInput ErrorKind = iota
	// KindAuthentication covers wrong credentials or OTP codes. The message
	// never reveals which factor failed.
	KindAuthentication
	// KindThrottled covers IP rate-limit rejections.
	KindThrottled
	// KindLocked covers identity lockout rejections.
	KindLocked
	// KindNotFound covers unknown identities, where revealing non-existence
	// does not aid enumeration.
	KindNotFound
	// KindUpstream covers failures of external collaborators that must be
	// surfaced (OTP dispatch, store errors).
	KindUpstream
)

// AppError is the one error type handlers convert to at their boundary.
type AppError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// E builds an AppError with a user-facing message.
func E(kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap attaches an underlying cause that is logged but never sent to the
// client.
func Wrap(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// HTTPStatus maps the error taxonomy onto response codes: 403 is reserved
// for lockout, 429 for rate limiting.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindClientInput, KindAuthentication:
		return http.StatusBadRequest
	case KindThrottled:
		return http.StatusTooManyRequests
	case KindLocked:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondError converts any error into the JSON error envelope. Unknown
// errors become a generic 500 so internals never leak.
func RespondError(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = Wrap(KindUpstream, "Something went wrong. Please try again", err)
	}
	if appErr.RetryAfter > 0 {
		c.Response().Header().Set("Retry-After", appErr.RetryAfter.Round(time.Second).String())
	}
	return c.JSON(appErr.HTTPStatus(), models.Response{
		Success: false,
		Message: appErr.Message,
	})
}
