package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bookingd/apiserver/internal/mq"
	"github.com/bookingd/apiserver/internal/store"
	"github.com/bookingd/apiserver/types"
)

const (
	minPasswordLength = 8
	// bcrypt rejects longer inputs.
	maxPasswordBytes = 72
)

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenIssuer signs identity tokens for authenticated users.
type TokenIssuer interface {
	Issue(user types.User) (string, error)
}

// AccountService implements registration, login and profile self-service.
type AccountService struct {
	users  UserRepository
	hasher Hasher
	tokens TokenIssuer
	events EventPublisher
	log    *slog.Logger
}

// NewAccountService constructs an AccountService with the provided dependencies.
func NewAccountService(users UserRepository, hasher Hasher, tokens TokenIssuer, events EventPublisher, log *slog.Logger) *AccountService {
	return &AccountService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		events: events,
		log:    log,
	}
}

// RegisterInput carries the registration form. Every field is required.
type RegisterInput struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Phone     string
	Country   string
	Password  string
	DOB       string
	Gender    string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// UserPatch lists the profile fields a user may change about themself.
// Nil fields are left untouched.
type UserPatch struct {
	FirstName *string
	LastName  *string
	Username  *string
	Email     *string
	Phone     *string
	Country   *string
	DOB       *string
	Gender    *string
}

// Register creates a member account. Email is stored lowercased; email and
// username must be unused.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = NormalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Country = strings.TrimSpace(in.Country)
	in.DOB = strings.TrimSpace(in.DOB)
	in.Gender = strings.TrimSpace(in.Gender)

	if missing := missingFields(
		"firstName", in.FirstName,
		"lastName", in.LastName,
		"username", in.Username,
		"email", in.Email,
		"phone", in.Phone,
		"country", in.Country,
		"password", in.Password,
		"dob", in.DOB,
		"gender", in.Gender,
	); len(missing) > 0 {
		return types.User{}, validationError("missing required fields: " + strings.Join(missing, ", "))
	}
	if err := checkPassword(in.Password); err != nil {
		return types.User{}, err
	}
	dob, ok := ParseTimestamp(in.DOB)
	if !ok {
		return types.User{}, validationError("invalid dob")
	}

	if err := s.ensureEmailFree(ctx, in.Email, ""); err != nil {
		return types.User{}, err
	}
	if err := s.ensureUsernameFree(ctx, in.Username, ""); err != nil {
		return types.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Username:     in.Username,
		Email:        in.Email,
		Phone:        in.Phone,
		Country:      in.Country,
		PasswordHash: hash,
		DOB:          dob,
		Gender:       in.Gender,
		Role:         types.RoleMember,
	})
	if err != nil {
		return types.User{}, storeError(err, "user")
	}
	s.log.Info("user registered", slog.String("user_id", user.ID))
	return sanitize(user), nil
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords produce the same error. Banned accounts are refused even with a
// correct password.
func (s *AccountService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, validationError("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, invalidCredentials()
		}
		return LoginResult{}, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return LoginResult{}, invalidCredentials()
	}
	if user.IsBanned {
		return LoginResult{}, bannedError(user)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{Token: token, User: sanitize(user)}, nil
}

// GetSelf returns the caller's own record.
func (s *AccountService) GetSelf(ctx context.Context, id string) (types.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return types.User{}, storeError(err, "user")
	}
	return sanitize(user), nil
}

// GetByID returns a user record including moderation state. It is used by
// the admin guard to re-check the caller on every request.
func (s *AccountService) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	return sanitize(user), nil
}

// UpdateSelf applies an allow-listed profile patch. Role, ban state and
// password cannot be changed here.
func (s *AccountService) UpdateSelf(ctx context.Context, id string, patch UserPatch) (types.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return types.User{}, storeError(err, "user")
	}

	if patch.Email != nil {
		email := NormalizeEmail(*patch.Email)
		if email == "" {
			return types.User{}, validationError("email cannot be empty")
		}
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
				return types.User{}, err
			}
		}
		user.Email = email
	}
	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if username == "" {
			return types.User{}, validationError("username cannot be empty")
		}
		if username != user.Username {
			if err := s.ensureUsernameFree(ctx, username, user.ID); err != nil {
				return types.User{}, err
			}
		}
		user.Username = username
	}
	if patch.DOB != nil {
		dob, ok := ParseTimestamp(*patch.DOB)
		if !ok {
			return types.User{}, validationError("invalid dob")
		}
		user.DOB = dob
	}

	for _, f := range []struct {
		name  string
		value *string
		dst   *string
	}{
		{"firstName", patch.FirstName, &user.FirstName},
		{"lastName", patch.LastName, &user.LastName},
		{"phone", patch.Phone, &user.Phone},
		{"country", patch.Country, &user.Country},
		{"gender", patch.Gender, &user.Gender},
	} {
		if f.value == nil {
			continue
		}
		v := strings.TrimSpace(*f.value)
		if v == "" {
			return types.User{}, validationError(f.name + " cannot be empty")
		}
		*f.dst = v
	}

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, storeError(err, "user")
	}
	return sanitize(updated), nil
}

// ChangePassword replaces the caller's password after verifying the old one.
func (s *AccountService) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return validationError("oldPassword and newPassword are required")
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return storeError(err, "user")
	}
	if err := s.hasher.Compare(user.PasswordHash, oldPassword); err != nil {
		return &Error{Kind: ErrInvalidCredentials, Message: "current password is incorrect"}
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	if _, err := s.users.Update(ctx, user); err != nil {
		return storeError(err, "user")
	}
	return nil
}

// DeleteSelf removes the caller's account. Their bookings are kept.
func (s *AccountService) DeleteSelf(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return storeError(err, "user")
	}
	publishEvent(ctx, s.events, s.log, mq.Event{
		Type:      mq.EventUserDeleted,
		ActorID:   id,
		SubjectID: id,
	})
	return nil
}

func (s *AccountService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		return conflictError("email already in use")
	case err == nil, errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *AccountService) ensureUsernameFree(ctx context.Context, username, selfID string) error {
	existing, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil && existing.ID != selfID:
		return conflictError("username already taken")
	case err == nil, errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return err
	}
}

// checkPassword enforces the length bounds. The upper bound is in bytes so
// multibyte passwords that bcrypt cannot hash are rejected up front.
func checkPassword(password string) error {
	if len(password) < minPasswordLength {
		return validationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return validationError(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

func bannedError(user types.User) error {
	var until any
	if user.BannedUntil != nil {
		until = user.BannedUntil.UTC().Format(time.RFC3339)
	}
	return &Error{
		Kind:    ErrForbidden,
		Message: "account is banned",
		Details: map[string]any{
			"reason": user.BanReason,
			"until":  until,
		},
	}
}

// missingFields takes name/value pairs and returns the names whose value
// is empty.
func missingFields(pairs ...string) []string {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			missing = append(missing, pairs[i])
		}
	}
	return missing
}

func sanitize(user types.User) types.User {
	user.PasswordHash = ""
	return user
}
