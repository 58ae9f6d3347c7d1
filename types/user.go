package types

import "time"

// Role is the authorization level of a user account.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin
}

// User represents an account in the system.
// It contains identity, profile, moderation state and audit metadata.
type User struct {
	// ID is the unique identifier of the user, a UUID in every store.
	ID string `json:"id" bson:"_id,omitempty" db:"id"`

	FirstName string `json:"firstName" bson:"firstName" db:"first_name"`
	LastName  string `json:"lastName" bson:"lastName" db:"last_name"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" bson:"username" db:"username"`

	// Email is the user's email address. It is unique and always stored
	// trimmed and lowercased.
	Email string `json:"email" bson:"email" db:"email"`

	Phone   string `json:"phone" bson:"phone" db:"phone"`
	Country string `json:"country" bson:"country" db:"country"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" bson:"passwordHash" db:"password_hash"`

	DOB    time.Time `json:"dob" bson:"dob" db:"dob"`
	Gender string    `json:"gender" bson:"gender" db:"gender"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" bson:"role" db:"role"`

	// IsBanned blocks login while set. BannedUntil is informational only;
	// a ban is lifted exclusively by an explicit unban.
	IsBanned    bool       `json:"isBanned" bson:"isBanned" db:"is_banned"`
	BanReason   string     `json:"banReason" bson:"banReason" db:"ban_reason"`
	BannedUntil *time.Time `json:"bannedUntil" bson:"bannedUntil" db:"banned_until"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" bson:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt" db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PublicUser is the owner projection attached to admin booking listings.
type PublicUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Country   string `json:"country"`
}

// Public returns the user's public projection.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		Country:   u.Country,
	}
}
