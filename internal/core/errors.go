package core

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/huddle/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeAccessDenied       = "access_denied"
	ErrCodeForbidden          = "forbidden"
	ErrCodeAlreadyRegistered  = "already_registered"
	ErrCodePersistence        = "persistence_failure"
	ErrCodeNotFound           = "not_found"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeBadRequest         = "bad_request"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeUnsupportedVersion = "unsupported_version"

	// Call-related error codes
	ErrCodeCallEnded      = "call_ended"
	ErrCodeCallInProgress = "call_in_progress"
	ErrCodeNotParticipant = "not_participant"
)

var (
	ErrAccessDenied      = errors.New("access denied")
	ErrForbidden         = errors.New("forbidden")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrPersistence       = errors.New("persistence failure")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrBadRequest        = errors.New("bad request")
	ErrCallEnded         = errors.New("call has ended")
	ErrCallInProgress    = errors.New("call already in progress")
	ErrNotParticipant    = errors.New("not a participant in this call")
)

var sentinelCodes = map[error]string{
	ErrAccessDenied:      ErrCodeAccessDenied,
	ErrForbidden:         ErrCodeForbidden,
	ErrAlreadyRegistered: ErrCodeAlreadyRegistered,
	ErrPersistence:       ErrCodePersistence,
	ErrNotFound:          ErrCodeNotFound,
	ErrUnauthorized:      ErrCodeUnauthorized,
	ErrBadRequest:        ErrCodeBadRequest,
	ErrCallEnded:         ErrCodeCallEnded,
	ErrCallInProgress:    ErrCodeCallInProgress,
	ErrNotParticipant:    ErrCodeNotParticipant,
}

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel so callers can use errors.Is.
func (e *CoreError) Unwrap() error {
	return e.err
}

func coreError(sentinel error, format string, args ...any) *CoreError {
	return &CoreError{
		Code:    sentinelCodes[sentinel],
		Message: fmt.Sprintf(format, args...),
		err:     sentinel,
	}
}

// persistenceError maps a store failure onto the domain taxonomy.
func persistenceError(what string, err error) *CoreError {
	if errors.Is(err, store.ErrNotFound) {
		return coreError(ErrNotFound, "%s not found", what)
	}
	return &CoreError{
		Code:    ErrCodePersistence,
		Message: "failed to persist " + what,
		err:     fmt.Errorf("%w: %w", ErrPersistence, err),
	}
}

// ErrorCode returns the wire code and message for any error returned by the core.
func ErrorCode(err error) (code, msg string) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code, ce.Message
	}
	return ErrCodePersistence, "internal error"
}
