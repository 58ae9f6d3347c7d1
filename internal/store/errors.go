package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidID is returned when an identifier is not well formed.
	ErrInvalidID = errors.New("invalid id")

	// ErrDuplicate matches any *DuplicateError via errors.Is.
	ErrDuplicate = errors.New("duplicate key")
)

// DuplicateError reports a unique constraint violation. Fields names the
// offending user fields ("email", "username") when the driver can tell.
type DuplicateError struct {
	Fields []string
}

func (e *DuplicateError) Error() string {
	if len(e.Fields) == 0 {
		return ErrDuplicate.Error()
	}
	return ErrDuplicate.Error() + ": " + strings.Join(e.Fields, ", ")
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// DuplicateFields extracts the field names from a unique index violation
// message. Index and constraint names in every driver embed the field name.
func DuplicateFields(message string) []string {
	message = strings.ToLower(message)
	var fields []string
	for _, field := range []string{"email", "username"} {
		if strings.Contains(message, field) {
			fields = append(fields, field)
		}
	}
	return fields
}
