// Package store defines the persistence contracts shared by the storage
// drivers (mongostore, pgstore, memstore) and the errors they translate
// driver failures into.
package store

import (
	"math"

	"github.com/google/uuid"
)

// Page selects a window of a listing. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the number of records skipped before the page. An offset
// that would overflow int saturates at math.MaxInt, which selects an empty
// page.
func (p Page) Offset() int {
	if p.Page < 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// UserFilter narrows an admin user listing. Search is matched as a
// case-insensitive literal substring against email, username, first name,
// last name and phone.
type UserFilter struct {
	Search string
	Role   string
	Banned *bool
	Page
}

// BookingFilter narrows an admin booking listing. Search is matched as a
// case-insensitive literal substring against notes, platform details and
// platform.
type BookingFilter struct {
	Status string
	Search string
	Page
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id is a well-formed record identifier.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
