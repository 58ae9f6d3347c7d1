package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bookingd/apiserver/internal/mq"
	"github.com/bookingd/apiserver/internal/store"
	"github.com/bookingd/apiserver/types"
)

// Moderation actions accepted by AdminTransition.
const (
	ActionApprove    = "approve"
	ActionCancel     = "cancel"
	ActionReschedule = "reschedule"
)

// BookingService implements booking creation, listing and the admin state
// machine. Transitions are fetch-mutate-save without optimistic locking:
// concurrent admin edits to one booking are last-write-wins.
type BookingService struct {
	bookings BookingRepository
	users    UserRepository
	events   EventPublisher
	log      *slog.Logger
}

// NewBookingService constructs a BookingService with the provided dependencies.
func NewBookingService(bookings BookingRepository, users UserRepository, events EventPublisher, log *slog.Logger) *BookingService {
	return &BookingService{
		bookings: bookings,
		users:    users,
		events:   events,
		log:      log,
	}
}

// CreateBookingInput is the user-supplied booking request.
type CreateBookingInput struct {
	Type            string
	Duration        int
	Platform        string
	PlatformDetails string
	ScheduledAt     string
	Notes           string
}

// BookingQuery filters the admin booking listing.
type BookingQuery struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// BookingPage is one page of the admin booking listing.
type BookingPage struct {
	Items []types.BookingWithUser `json:"items"`
	Meta  PageMeta                `json:"meta"`
}

// TransitionInput is an admin moderation request.
type TransitionInput struct {
	Action        string
	AdminNote     string
	RescheduledTo string
}

// Create stores a pending booking owned by userID.
func (s *BookingService) Create(ctx context.Context, userID string, in CreateBookingInput) (types.Booking, error) {
	in.Type = strings.TrimSpace(in.Type)
	in.Platform = strings.TrimSpace(in.Platform)
	in.ScheduledAt = strings.TrimSpace(in.ScheduledAt)

	missing := missingFields("type", in.Type)
	if in.Duration <= 0 {
		missing = append(missing, "duration")
	}
	missing = append(missing, missingFields("platform", in.Platform, "scheduledAt", in.ScheduledAt)...)
	if len(missing) > 0 {
		return types.Booking{}, validationError("missing required fields: " + strings.Join(missing, ", "))
	}

	bookingType := types.BookingType(in.Type)
	if !bookingType.Valid() {
		return types.Booking{}, validationError("type must be one of: appointment, session, callback")
	}
	scheduledAt, ok := ParseTimestamp(in.ScheduledAt)
	if !ok {
		return types.Booking{}, validationError("invalid scheduledAt")
	}

	booking, err := s.bookings.Create(ctx, types.Booking{
		UserID:          userID,
		Type:            bookingType,
		Duration:        in.Duration,
		Platform:        in.Platform,
		PlatformDetails: strings.TrimSpace(in.PlatformDetails),
		ScheduledAt:     scheduledAt,
		Status:          types.StatusPending,
		Notes:           strings.TrimSpace(in.Notes),
	})
	if err != nil {
		return types.Booking{}, storeError(err, "booking")
	}
	s.log.Info("booking created", slog.String("booking_id", booking.ID), slog.String("user_id", userID))
	return booking, nil
}

// ListOwn returns the caller's bookings, newest first.
func (s *BookingService) ListOwn(ctx context.Context, userID string) ([]types.Booking, error) {
	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []types.Booking{}
	}
	return bookings, nil
}

// AdminList returns a page of bookings with their owners' public fields.
func (s *BookingService) AdminList(ctx context.Context, q BookingQuery) (BookingPage, error) {
	status := strings.TrimSpace(q.Status)
	if status != "" && !types.BookingStatus(status).Valid() {
		return BookingPage{}, validationError("invalid status filter")
	}

	page := NormalizePage(q.Page, q.Limit, defaultBookingLimit)
	bookings, total, err := s.bookings.List(ctx, store.BookingFilter{
		Status: status,
		Search: strings.TrimSpace(q.Search),
		Page:   page,
	})
	if err != nil {
		return BookingPage{}, err
	}

	owners, err := s.owners(ctx, bookings)
	if err != nil {
		return BookingPage{}, err
	}

	items := make([]types.BookingWithUser, 0, len(bookings))
	for _, b := range bookings {
		item := types.BookingWithUser{Booking: b}
		if owner, ok := owners[b.UserID]; ok {
			item.User = &owner
		}
		items = append(items, item)
	}
	return BookingPage{Items: items, Meta: pageMeta(page, total)}, nil
}

// AdminTransition applies a moderation action. Every action is accepted
// from every status. approve and cancel clear RescheduledTo; reschedule
// requires a valid RescheduledTo. AdminNote is overwritten each time.
// Input is fully validated before the booking is read, so a rejected
// request leaves the booking untouched.
func (s *BookingService) AdminTransition(ctx context.Context, actorID, bookingID string, in TransitionInput) (types.Booking, error) {
	action := strings.ToLower(strings.TrimSpace(in.Action))

	var (
		next          types.BookingStatus
		rescheduledTo *time.Time
	)
	switch action {
	case ActionApprove:
		next = types.StatusApproved
	case ActionCancel:
		next = types.StatusCancelled
	case ActionReschedule:
		t, ok := ParseTimestamp(in.RescheduledTo)
		if !ok {
			return types.Booking{}, validationError("rescheduledTo must be a valid date")
		}
		next = types.StatusRescheduled
		rescheduledTo = &t
	default:
		return types.Booking{}, validationError("action must be one of: approve, cancel, reschedule")
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return types.Booking{}, storeError(err, "booking")
	}
	previous := booking.Status

	booking.Status = next
	booking.RescheduledTo = rescheduledTo
	booking.AdminNote = strings.TrimSpace(in.AdminNote)

	updated, err := s.bookings.Update(ctx, booking)
	if err != nil {
		return types.Booking{}, storeError(err, "booking")
	}

	s.log.Info("booking transitioned",
		slog.String("actor_id", actorID),
		slog.String("booking_id", bookingID),
		slog.String("from", string(previous)),
		slog.String("to", string(next)),
	)
	payload := map[string]any{
		"from":   string(previous),
		"to":     string(next),
		"userId": updated.UserID,
	}
	if rescheduledTo != nil {
		payload["rescheduledTo"] = rescheduledTo.Format(time.RFC3339)
	}
	publishEvent(ctx, s.events, s.log, mq.Event{
		Type:      mq.EventBookingStatusChanged,
		ActorID:   actorID,
		SubjectID: bookingID,
		Payload:   payload,
	})
	return updated, nil
}

func (s *BookingService) owners(ctx context.Context, bookings []types.Booking) (map[string]types.PublicUser, error) {
	seen := make(map[string]struct{}, len(bookings))
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		if _, ok := seen[b.UserID]; ok {
			continue
		}
		seen[b.UserID] = struct{}{}
		ids = append(ids, b.UserID)
	}
	if len(ids) == 0 {
		return map[string]types.PublicUser{}, nil
	}

	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load booking owners: %w", err)
	}
	owners := make(map[string]types.PublicUser, len(users))
	for _, u := range users {
		owners[u.ID] = u.Public()
	}
	return owners, nil
}
