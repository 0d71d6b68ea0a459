package backend

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/brizzai/zeroinbox/internal/models"
)

var (
	// ErrMissingCode is returned when asked to exchange an empty authorization code
	ErrMissingCode = errors.New("missing authorization code")

	// ErrMissingVerifier is returned when PKCE is active but no verifier was supplied
	ErrMissingVerifier = errors.New("missing code verifier")

	// ErrInvalidLimit is returned for an unread limit below one
	ErrInvalidLimit = errors.New("unread limit must be at least 1")

	// ErrNoBaseURL is returned when the backend URL is not configured
	ErrNoBaseURL = errors.New("backend base url is not configured")
)

// Error is a failed backend call. StatusCode is zero when no response arrived.
type Error struct {
	Kind       models.ErrorKind
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: backend returned %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Detail)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the error kind carried by err, or fallback when err is not an *Error
func KindOf(err error, fallback models.ErrorKind) models.ErrorKind {
	var be *Error
	if errors.As(err, &be) && be.Kind != "" {
		return be.Kind
	}
	return fallback
}
