package memstore

import (
	"context"
	"strings"

	"github.com/bookingd/apiserver/internal/store"
	"github.com/bookingd/apiserver/types"
)

type userRecord struct {
	seq  int64
	user types.User
}

// UserRepository is the user view of a Store.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	if !store.ValidID(id) {
		return types.User{}, store.ErrInvalidID
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return rec.user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, rec := range r.s.users {
		if rec.user.Email == email {
			return rec.user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, rec := range r.s.users {
		if rec.user.Username == username {
			return rec.user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) ListByIDs(_ context.Context, ids []string) ([]types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]types.User, 0, len(ids))
	for _, id := range ids {
		if rec, ok := r.s.users[id]; ok {
			users = append(users, rec.user)
		}
	}
	return users, nil
}

func (r *UserRepository) List(_ context.Context, filter store.UserFilter) ([]types.User, int, error) {
	needle := strings.ToLower(filter.Search)

	r.s.mu.RLock()
	matched := make([]userRecord, 0, len(r.s.users))
	for _, rec := range r.s.users {
		u := rec.user
		if filter.Role != "" && string(u.Role) != filter.Role {
			continue
		}
		if filter.Banned != nil && u.IsBanned != *filter.Banned {
			continue
		}
		if needle != "" &&
			!containsFold(u.Email, needle) &&
			!containsFold(u.Username, needle) &&
			!containsFold(u.FirstName, needle) &&
			!containsFold(u.LastName, needle) &&
			!containsFold(u.Phone, needle) {
			continue
		}
		matched = append(matched, rec)
	}
	r.s.mu.RUnlock()

	total := len(matched)
	page := window(matched, func(rec userRecord) int64 { return rec.seq }, filter.Offset(), filter.Limit)
	users := make([]types.User, 0, len(page))
	for _, rec := range page {
		users = append(users, rec.user)
	}
	return users, total, nil
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if fields := r.conflicts(user, ""); len(fields) > 0 {
		return types.User{}, &store.DuplicateError{Fields: fields}
	}

	now := r.s.now()
	if user.ID == "" {
		user.ID = store.NewID()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = userRecord{seq: r.s.nextSeq(), user: user}
	return user, nil
}

func (r *UserRepository) Update(_ context.Context, user types.User) (types.User, error) {
	if !store.ValidID(user.ID) {
		return types.User{}, store.ErrInvalidID
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if fields := r.conflicts(user, user.ID); len(fields) > 0 {
		return types.User{}, &store.DuplicateError{Fields: fields}
	}

	user.CreatedAt = rec.user.CreatedAt
	user.UpdatedAt = r.s.now()
	rec.user = user
	r.s.users[user.ID] = rec
	return user, nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	if !store.ValidID(id) {
		return store.ErrInvalidID
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.users, id)
	return nil
}

// conflicts must be called with the write lock held.
func (r *UserRepository) conflicts(user types.User, selfID string) []string {
	var emailTaken, usernameTaken bool
	for id, rec := range r.s.users {
		if id == selfID {
			continue
		}
		if rec.user.Email == user.Email {
			emailTaken = true
		}
		if rec.user.Username == user.Username {
			usernameTaken = true
		}
	}
	var fields []string
	if emailTaken {
		fields = append(fields, "email")
	}
	if usernameTaken {
		fields = append(fields, "username")
	}
	return fields
}
