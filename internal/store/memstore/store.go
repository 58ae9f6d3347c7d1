// Package memstore is an in-process implementation of the user and booking
// repositories. It enforces the same unique email/username constraint as the
// database drivers and is used for tests and single-node development.
package memstore

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Store holds users and bookings in memory. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	seq      int64
	users    map[string]userRecord
	bookings map[string]bookingRecord
	now      func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]userRecord),
		bookings: make(map[string]bookingRecord),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

// Bookings returns the booking repository view of the store.
func (s *Store) Bookings() *BookingRepository {
	return &BookingRepository{s: s}
}

// Close is a no-op; it lets Store stand in wherever a closable driver is
// expected.
func (s *Store) Close() error {
	return nil
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

// window sorts records newest first and returns the requested page.
func window[T any](records []T, seq func(T) int64, offset, limit int) []T {
	sort.Slice(records, func(i, j int) bool { return seq(records[i]) > seq(records[j]) })
	if offset < 0 || offset >= len(records) {
		return nil
	}
	end := len(records)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return records[offset:end]
}
