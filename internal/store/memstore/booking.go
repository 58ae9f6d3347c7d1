package memstore

import (
	"context"
	"strings"

	"github.com/bookingd/apiserver/internal/store"
	"github.com/bookingd/apiserver/types"
)

type bookingRecord struct {
	seq     int64
	booking types.Booking
}

// BookingRepository is the booking view of a Store.
type BookingRepository struct {
	s *Store
}

func (r *BookingRepository) Create(_ context.Context, booking types.Booking) (types.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	if booking.ID == "" {
		booking.ID = store.NewID()
	}
	booking.CreatedAt = now
	booking.UpdatedAt = now
	r.s.bookings[booking.ID] = bookingRecord{seq: r.s.nextSeq(), booking: booking}
	return booking, nil
}

func (r *BookingRepository) GetByID(_ context.Context, id string) (types.Booking, error) {
	if !store.ValidID(id) {
		return types.Booking{}, store.ErrInvalidID
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.bookings[id]
	if !ok {
		return types.Booking{}, store.ErrNotFound
	}
	return rec.booking, nil
}

func (r *BookingRepository) Update(_ context.Context, booking types.Booking) (types.Booking, error) {
	if !store.ValidID(booking.ID) {
		return types.Booking{}, store.ErrInvalidID
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.bookings[booking.ID]
	if !ok {
		return types.Booking{}, store.ErrNotFound
	}
	booking.CreatedAt = rec.booking.CreatedAt
	booking.UpdatedAt = r.s.now()
	rec.booking = booking
	r.s.bookings[booking.ID] = rec
	return booking, nil
}

func (r *BookingRepository) ListByUser(_ context.Context, userID string) ([]types.Booking, error) {
	r.s.mu.RLock()
	matched := make([]bookingRecord, 0)
	for _, rec := range r.s.bookings {
		if rec.booking.UserID == userID {
			matched = append(matched, rec)
		}
	}
	r.s.mu.RUnlock()

	return unwrapBookings(window(matched, bookingSeq, 0, 0)), nil
}

func (r *BookingRepository) List(_ context.Context, filter store.BookingFilter) ([]types.Booking, int, error) {
	needle := strings.ToLower(filter.Search)

	r.s.mu.RLock()
	matched := make([]bookingRecord, 0, len(r.s.bookings))
	for _, rec := range r.s.bookings {
		b := rec.booking
		if filter.Status != "" && string(b.Status) != filter.Status {
			continue
		}
		if needle != "" &&
			!containsFold(b.Notes, needle) &&
			!containsFold(b.PlatformDetails, needle) &&
			!containsFold(b.Platform, needle) {
			continue
		}
		matched = append(matched, rec)
	}
	r.s.mu.RUnlock()

	total := len(matched)
	return unwrapBookings(window(matched, bookingSeq, filter.Offset(), filter.Limit)), total, nil
}

func bookingSeq(rec bookingRecord) int64 {
	return rec.seq
}

func unwrapBookings(records []bookingRecord) []types.Booking {
	bookings := make([]types.Booking, 0, len(records))
	for _, rec := range records {
		bookings = append(bookings, rec.booking)
	}
	return bookings
}
