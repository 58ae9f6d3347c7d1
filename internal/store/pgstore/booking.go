package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bookingd/apiserver/internal/store"
	"github.com/bookingd/apiserver/types"
)

const bookingColumns = `id, user_id, type, duration, platform, platform_details,
	scheduled_at, status, notes, admin_note, rescheduled_to, created_at, updated_at`

// BookingRepository handles persistence for bookings.
type BookingRepository struct {
	db *sql.DB
}

func scanBooking(row rowScanner) (types.Booking, error) {
	var (
		booking       types.Booking
		rescheduledTo sql.NullTime
	)
	err := row.Scan(
		&booking.ID,
		&booking.UserID,
		&booking.Type,
		&booking.Duration,
		&booking.Platform,
		&booking.PlatformDetails,
		&booking.ScheduledAt,
		&booking.Status,
		&booking.Notes,
		&booking.AdminNote,
		&rescheduledTo,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return types.Booking{}, wrapError(err)
	}
	if rescheduledTo.Valid {
		t := rescheduledTo.Time.UTC()
		booking.RescheduledTo = &t
	}
	booking.ScheduledAt = booking.ScheduledAt.UTC()
	booking.CreatedAt = booking.CreatedAt.UTC()
	booking.UpdatedAt = booking.UpdatedAt.UTC()
	return booking, nil
}

func (r *BookingRepository) Create(ctx context.Context, booking types.Booking) (types.Booking, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	booking.ID = store.NewID()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	const query = `
		INSERT INTO bookings (id, user_id, type, duration, platform, platform_details,
			scheduled_at, status, notes, admin_note, rescheduled_to, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		booking.ID,
		booking.UserID,
		booking.Type,
		booking.Duration,
		booking.Platform,
		booking.PlatformDetails,
		booking.ScheduledAt,
		booking.Status,
		booking.Notes,
		booking.AdminNote,
		booking.RescheduledTo,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return types.Booking{}, wrapError(err)
	}
	return booking, nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (types.Booking, error) {
	if !store.ValidID(id) {
		return types.Booking{}, store.ErrInvalidID
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.db.QueryRowContext(ctx, query, id))
}

func (r *BookingRepository) Update(ctx context.Context, booking types.Booking) (types.Booking, error) {
	if !store.ValidID(booking.ID) {
		return types.Booking{}, store.ErrInvalidID
	}
	booking.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	const query = `
		UPDATE bookings
		SET type = $1,
			duration = $2,
			platform = $3,
			platform_details = $4,
			scheduled_at = $5,
			status = $6,
			notes = $7,
			admin_note = $8,
			rescheduled_to = $9,
			updated_at = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		booking.Type,
		booking.Duration,
		booking.Platform,
		booking.PlatformDetails,
		booking.ScheduledAt,
		booking.Status,
		booking.Notes,
		booking.AdminNote,
		booking.RescheduledTo,
		booking.UpdatedAt,
		booking.ID,
	)
	if err != nil {
		return types.Booking{}, wrapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Booking{}, err
	}
	if affected == 0 {
		return types.Booking{}, store.ErrNotFound
	}
	return booking, nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]types.Booking, error) {
	if !store.ValidID(userID) {
		return []types.Booking{}, nil
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *BookingRepository) List(ctx context.Context, filter store.BookingFilter) ([]types.Booking, int, error) {
	var w where
	if filter.Status != "" {
		w.add(`status = $%d`, filter.Status)
	}
	if filter.Search != "" {
		w.add(`(notes ILIKE $%[1]d OR platform_details ILIKE $%[1]d OR platform ILIKE $%[1]d)`, likePattern(filter.Search))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(w.args, filter.Limit, filter.Offset())
	query := `SELECT ` + bookingColumns + ` FROM bookings` + w.String() +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	bookings, err := collectBookings(rows)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func collectBookings(rows *sql.Rows) ([]types.Booking, error) {
	bookings := []types.Booking{}
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}
