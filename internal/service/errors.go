package service

import (
	"errors"
	"fmt"

	"github.com/maheshrc27/crosspost/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNotAuthorized = errors.New("not authorized")
	ErrInvalidInput  = errors.New("invalid input")

	ErrAlreadyPublished  = errors.New("Post is already published")
	ErrNotConnected      = errors.New("account is not connected")
	ErrYoutubeVideoOnly  = errors.New("YouTube only supports video content")
	ErrUsageLimitReached = errors.New("Monthly post limit reached")
	ErrMediaRequired     = errors.New("Media is required to publish")
	ErrPublishInProgress = errors.New("Post is already being published")
	ErrNotPublished      = errors.New("post has not been published to this platform")
	ErrPostImmutable     = errors.New("published posts cannot be edited")
	ErrPublishConflict   = errors.New("post status changed during publish")

	ErrTokenRefreshFailed    = errors.New("token refresh failed")
	ErrPlatformPublishFailed = errors.New("platform publish failed")
	ErrProcessingTimeout     = errors.New("platform processing timed out")
)

// PreconditionError rejects a publish before any platform call. It is never
// persisted as a post failure.
type PreconditionError struct {
	Err      error
	Platform models.Platform
}

func (e *PreconditionError) Error() string {
	if e.Platform != 0 {
		return fmt.Sprintf("%s: %s", e.Platform, e.Err.Error())
	}
	return e.Err.Error()
}

func (e *PreconditionError) Unwrap() error { return e.Err }

func reject(err error) error {
	return &PreconditionError{Err: err}
}

func rejectFor(p models.Platform, err error) error {
	return &PreconditionError{Err: err, Platform: p}
}

func IsRejection(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// PlatformError carries the raw platform detail of a failed step.
type PlatformError struct {
	Platform   models.Platform
	Step       string
	Message    string
	Code       string
	StatusCode int
	Kind       error
}

func (e *PlatformError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Platform, e.Step, e.Message)
	if e.Code != "" {
		msg += fmt.Sprintf(" (code %s)", e.Code)
	}
	return msg
}

func (e *PlatformError) Unwrap() error {
	if e.Kind == nil {
		return ErrPlatformPublishFailed
	}
	return e.Kind
}

func platformErr(p models.Platform, step, message string) *PlatformError {
	return &PlatformError{Platform: p, Step: step, Message: message}
}

// TokenRefreshError reports a failed refresh. Revoked is set when the
// platform has permanently invalidated the grant.
type TokenRefreshError struct {
	Platform models.Platform
	Revoked  bool
	Err      error
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("%s token refresh failed: %v", e.Platform, e.Err)
}

func (e *TokenRefreshError) Unwrap() []error {
	return []error{ErrTokenRefreshFailed, e.Err}
}

// errorCode maps a per-platform failure to the coarse code stored on a post.
func errorCode(err error) string {
	var pe *PlatformError
	if errors.As(err, &pe) && pe.Code != "" {
		return pe.Code
	}
	switch {
	case errors.Is(err, ErrProcessingTimeout):
		return "PROCESSING_TIMEOUT"
	case errors.Is(err, ErrTokenRefreshFailed):
		return "TOKEN_REFRESH_FAILED"
	case errors.Is(err, ErrNotConnected):
		return "NOT_CONNECTED"
	default:
		return "PUBLISH_FAILED"
	}
}
