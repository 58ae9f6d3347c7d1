package types

import "time"

// BookingType is the kind of booking a user requests.
type BookingType string

const (
	BookingAppointment BookingType = "appointment"
	BookingSession     BookingType = "session"
	BookingCallback    BookingType = "callback"
)

// Valid reports whether the type is one of the known booking types.
func (t BookingType) Valid() bool {
	switch t {
	case BookingAppointment, BookingSession, BookingCallback:
		return true
	}
	return false
}

// BookingStatus is the moderation state of a booking.
type BookingStatus string

const (
	StatusPending     BookingStatus = "pending"
	StatusApproved    BookingStatus = "approved"
	StatusCancelled   BookingStatus = "cancelled"
	StatusRescheduled BookingStatus = "rescheduled"
)

// Valid reports whether the status is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCancelled, StatusRescheduled:
		return true
	}
	return false
}

// Booking is a scheduled interaction requested by a user and moderated
// by admins.
type Booking struct {
	ID string `json:"id" bson:"_id,omitempty" db:"id"`

	// UserID references the owning user.
	UserID string `json:"user" bson:"user" db:"user_id"`

	Type BookingType `json:"type" bson:"type" db:"type"`

	// Duration is the booking length in minutes.
	Duration int `json:"duration" bson:"duration" db:"duration"`

	Platform        string `json:"platform" bson:"platform" db:"platform"`
	PlatformDetails string `json:"platformDetails" bson:"platformDetails" db:"platform_details"`

	ScheduledAt time.Time     `json:"scheduledAt" bson:"scheduledAt" db:"scheduled_at"`
	Status      BookingStatus `json:"status" bson:"status" db:"status"`

	// Notes are written by the owner at creation; AdminNote is overwritten
	// by every moderation action.
	Notes     string `json:"notes" bson:"notes" db:"notes"`
	AdminNote string `json:"adminNote" bson:"adminNote" db:"admin_note"`

	// RescheduledTo is non-nil only while Status is rescheduled.
	RescheduledTo *time.Time `json:"rescheduledTo" bson:"rescheduledTo" db:"rescheduled_to"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt" db:"updated_at"`
}

// BookingWithUser is a booking augmented with its owner's public fields.
// User is nil when the owner no longer exists.
type BookingWithUser struct {
	Booking
	User *PublicUser `json:"user"`
}
