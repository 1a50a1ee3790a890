package shared

import (
	"context"
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Remote API errors, one per status family
	ErrAuth              = fmt.Errorf("authentication failed")
	ErrNotFound          = fmt.Errorf("resource not found")
	ErrConflict          = fmt.Errorf("resource conflict")
	ErrValidation        = fmt.Errorf("validation failed")
	ErrRateLimitExceeded = fmt.Errorf("rate limit exceeded")
	ErrServer            = fmt.Errorf("server error")
	ErrTransport         = fmt.Errorf("transport error")
	ErrTimeout           = fmt.Errorf("request timed out")

	// Clone errors
	ErrUnresolvedDependency = fmt.Errorf("unresolved dependency")
	ErrMissingSourceID      = fmt.Errorf("source entity has no id")
	ErrAlreadyMapped        = fmt.Errorf("identifier already mapped")
	ErrRunAborted           = fmt.Errorf("clone run aborted")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// IsFatal reports whether err must abort a whole run rather than a single entity.
func IsFatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrAuth), errors.Is(err, ErrRateLimitExceeded):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, ErrRunAborted):
		return true
	default:
		return false
	}
}
