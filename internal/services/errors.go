package services

import "errors"

var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials marks a failed login or password check. It is
	// deliberately the same for unknown accounts and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized marks a missing, invalid or expired identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks an authenticated caller lacking privilege, or a
	// banned account.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")
)

// Error is a classified service failure carrying a client-safe message.
// It unwraps to one of the sentinel kinds above.
type Error struct {
	Kind    error
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func validationError(message string) error {
	return &Error{Kind: ErrValidation, Message: message}
}

func conflictError(message string) error {
	return &Error{Kind: ErrConflict, Message: message}
}

func notFoundError(message string) error {
	return &Error{Kind: ErrNotFound, Message: message}
}

func invalidCredentials() error {
	return &Error{Kind: ErrInvalidCredentials, Message: "invalid email or password"}
}
