package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bookingd/apiserver/internal/mq"
	"github.com/bookingd/apiserver/internal/store"
	"github.com/bookingd/apiserver/types"
)

const defaultBanReason = "Violation of terms"

// ModerationService implements the admin user console. Every mutating
// operation refuses to act on the calling admin's own account where that
// could lock them out.
type ModerationService struct {
	users  UserRepository
	events EventPublisher
	log    *slog.Logger
	now    func() time.Time
}

// NewModerationService constructs a ModerationService with the provided dependencies.
func NewModerationService(users UserRepository, events EventPublisher, log *slog.Logger) *ModerationService {
	return &ModerationService{
		users:  users,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// UserQuery filters the admin user listing.
type UserQuery struct {
	Search string
	Role   string
	Banned *bool
	Page   int
	Limit  int
}

// UserPage is one page of the admin user listing.
type UserPage struct {
	Items []types.User `json:"items"`
	Meta  PageMeta     `json:"meta"`
}

// ListUsers returns a page of users matching q, newest first.
func (s *ModerationService) ListUsers(ctx context.Context, q UserQuery) (UserPage, error) {
	role := strings.TrimSpace(q.Role)
	if role != "" && !types.Role(role).Valid() {
		return UserPage{}, validationError("invalid role filter")
	}

	page := NormalizePage(q.Page, q.Limit, defaultUserLimit)
	users, total, err := s.users.List(ctx, store.UserFilter{
		Search: strings.TrimSpace(q.Search),
		Role:   role,
		Banned: q.Banned,
		Page:   page,
	})
	if err != nil {
		return UserPage{}, err
	}

	items := make([]types.User, 0, len(users))
	for _, u := range users {
		items = append(items, sanitize(u))
	}
	return UserPage{Items: items, Meta: pageMeta(page, total)}, nil
}

// DeleteUser removes the target account. Admins cannot delete themselves.
func (s *ModerationService) DeleteUser(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return validationError("cannot delete your own account")
	}
	if err := s.users.Delete(ctx, targetID); err != nil {
		return storeError(err, "user")
	}
	s.log.Info("user deleted by admin", slog.String("actor_id", actorID), slog.String("user_id", targetID))
	publishEvent(ctx, s.events, s.log, mq.Event{
		Type:      mq.EventUserDeleted,
		ActorID:   actorID,
		SubjectID: targetID,
	})
	return nil
}

// BanUser marks the target banned. until is optional; when given it must
// be a future timestamp. It is recorded for display only and the ban stays
// in force until UnbanUser is called.
func (s *ModerationService) BanUser(ctx context.Context, actorID, targetID, reason, until string) (types.User, error) {
	if actorID == targetID {
		return types.User{}, validationError("cannot ban yourself")
	}

	var bannedUntil *time.Time
	if strings.TrimSpace(until) != "" {
		t, ok := ParseTimestamp(until)
		if !ok {
			return types.User{}, validationError("invalid until")
		}
		if !t.After(s.now()) {
			return types.User{}, validationError("until must be in the future")
		}
		bannedUntil = &t
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultBanReason
	}

	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return types.User{}, storeError(err, "user")
	}
	user.IsBanned = true
	user.BanReason = reason
	user.BannedUntil = bannedUntil

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, storeError(err, "user")
	}

	s.log.Info("user banned", slog.String("actor_id", actorID), slog.String("user_id", targetID))
	payload := map[string]any{"reason": reason}
	if bannedUntil != nil {
		payload["until"] = bannedUntil.Format(time.RFC3339)
	}
	publishEvent(ctx, s.events, s.log, mq.Event{
		Type:      mq.EventUserBanned,
		ActorID:   actorID,
		SubjectID: targetID,
		Payload:   payload,
	})
	return sanitize(updated), nil
}

// UnbanUser clears the target's ban state unconditionally.
func (s *ModerationService) UnbanUser(ctx context.Context, actorID, targetID string) (types.User, error) {
	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return types.User{}, storeError(err, "user")
	}
	user.IsBanned = false
	user.BanReason = ""
	user.BannedUntil = nil

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, storeError(err, "user")
	}

	s.log.Info("user unbanned", slog.String("actor_id", actorID), slog.String("user_id", targetID))
	publishEvent(ctx, s.events, s.log, mq.Event{
		Type:      mq.EventUserUnbanned,
		ActorID:   actorID,
		SubjectID: targetID,
	})
	return sanitize(updated), nil
}

// SetRole changes the target's role. An admin may not demote themself.
func (s *ModerationService) SetRole(ctx context.Context, actorID, targetID, role string) (types.User, error) {
	r := types.Role(strings.TrimSpace(role))
	if !r.Valid() {
		return types.User{}, validationError("role must be one of: member, admin")
	}
	if actorID == targetID && r != types.RoleAdmin {
		return types.User{}, validationError("cannot remove admin from yourself")
	}

	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return types.User{}, storeError(err, "user")
	}
	previous := user.Role
	user.Role = r

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, storeError(err, "user")
	}

	s.log.Info("user role changed",
		slog.String("actor_id", actorID),
		slog.String("user_id", targetID),
		slog.String("role", string(r)),
	)
	publishEvent(ctx, s.events, s.log, mq.Event{
		Type:      mq.EventUserRoleChanged,
		ActorID:   actorID,
		SubjectID: targetID,
		Payload:   map[string]any{"from": string(previous), "to": string(r)},
	})
	return sanitize(updated), nil
}
