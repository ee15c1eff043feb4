package eurocore

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrAuthentication marks credential rejection by the remote API.
	// The session is unusable until credentials are provided again.
	ErrAuthentication = errors.New("authentication rejected")

	// ErrDuplicateJob marks a track() call for an id already in the registry.
	// Job ids are server-assigned and unique, so this is an invariant
	// violation: logged and ignored, never fatal.
	ErrDuplicateJob = errors.New("duplicate job id")

	// ErrValidation marks malformed user input rejected before any remote call.
	ErrValidation = errors.New("invalid input")
)

// Validationf builds a user-facing input error.
func Validationf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// RemoteError is any network failure, non-2xx response, or malformed payload
// from the eurocore API. It is transient: the caller retries on the next poll
// tick and never treats it as fatal.
type RemoteError struct {
	Status int
	Body   string
	Op     string
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("eurocore %s: status %d: %s", e.Op, e.Status, truncateBody(e.Body))
	}
	return fmt.Sprintf("eurocore %s: %s", e.Op, truncateBody(e.Body))
}

// IsRemote reports whether err is (or wraps) a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

func truncateBody(s string) string {
	const max = 512
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
