package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bookingd/apiserver/internal/lib/sl"
	"github.com/bookingd/apiserver/internal/mq"
	"github.com/bookingd/apiserver/internal/store"
	"github.com/bookingd/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]types.User, error)
	List(ctx context.Context, filter store.UserFilter) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id string) error
}

// BookingRepository defines persistence operations for bookings.
type BookingRepository interface {
	Create(ctx context.Context, booking types.Booking) (types.Booking, error)
	GetByID(ctx context.Context, id string) (types.Booking, error)
	Update(ctx context.Context, booking types.Booking) (types.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]types.Booking, error)
	List(ctx context.Context, filter store.BookingFilter) ([]types.Booking, int, error)
}

// EventPublisher receives domain events after a change is persisted.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event mq.Event) error
}

// publishEvent is best effort: a broker failure never fails the request.
func publishEvent(ctx context.Context, events EventPublisher, log *slog.Logger, event mq.Event) {
	if events == nil {
		return
	}
	if err := events.PublishEvent(ctx, event); err != nil {
		log.Warn("failed to publish event", slog.String("type", event.Type), sl.Err(err))
	}
}

// storeError classifies a store failure for the entity named by what.
func storeError(err error, what string) error {
	var dup *store.DuplicateError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFoundError(what + " not found")
	case errors.Is(err, store.ErrInvalidID):
		return validationError("invalid " + what + " id")
	case errors.As(err, &dup):
		return duplicateConflict(dup.Fields)
	default:
		return err
	}
}

func duplicateConflict(fields []string) error {
	switch len(fields) {
	case 0:
		return conflictError("email or username already in use")
	case 1:
		return conflictError(fmt.Sprintf("%s already in use", fields[0]))
	default:
		return conflictError(fmt.Sprintf("%s already in use", strings.Join(fields, " and ")))
	}
}
