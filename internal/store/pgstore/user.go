package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bookingd/apiserver/internal/store"
	"github.com/bookingd/apiserver/types"
	"github.com/lib/pq"
)

const userColumns = `id, first_name, last_name, username, email, phone, country,
	password_hash, dob, gender, role, is_banned, ban_reason, banned_until,
	created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var (
		user        types.User
		bannedUntil sql.NullTime
	)
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.Email,
		&user.Phone,
		&user.Country,
		&user.PasswordHash,
		&user.DOB,
		&user.Gender,
		&user.Role,
		&user.IsBanned,
		&user.BanReason,
		&bannedUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, wrapError(err)
	}
	if bannedUntil.Valid {
		t := bannedUntil.Time.UTC()
		user.BannedUntil = &t
	}
	user.DOB = user.DOB.UTC()
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, value))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	if !store.ValidID(id) {
		return types.User{}, store.ErrInvalidID
	}
	return r.getBy(ctx, "id", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.getBy(ctx, "username", username)
}

func (r *UserRepository) ListByIDs(ctx context.Context, ids []string) ([]types.User, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if store.ValidID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []types.User{}, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::uuid[])`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(valid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *UserRepository) List(ctx context.Context, filter store.UserFilter) ([]types.User, int, error) {
	var w where
	if filter.Search != "" {
		w.add(`(email ILIKE $%[1]d OR username ILIKE $%[1]d OR first_name ILIKE $%[1]d
			OR last_name ILIKE $%[1]d OR phone ILIKE $%[1]d)`, likePattern(filter.Search))
	}
	if filter.Role != "" {
		w.add(`role = $%d`, filter.Role)
	}
	if filter.Banned != nil {
		w.add(`is_banned = $%d`, *filter.Banned)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(w.args, filter.Limit, filter.Offset())
	query := `SELECT ` + userColumns + ` FROM users` + w.String() +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	user.ID = store.NewID()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, first_name, last_name, username, email, phone, country,
			password_hash, dob, gender, role, is_banned, ban_reason, banned_until,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Username,
		user.Email,
		user.Phone,
		user.Country,
		user.PasswordHash,
		user.DOB,
		user.Gender,
		user.Role,
		user.IsBanned,
		user.BanReason,
		user.BannedUntil,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, wrapError(err)
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	if !store.ValidID(user.ID) {
		return types.User{}, store.ErrInvalidID
	}
	user.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	const query = `
		UPDATE users
		SET first_name = $1,
			last_name = $2,
			username = $3,
			email = $4,
			phone = $5,
			country = $6,
			password_hash = $7,
			dob = $8,
			gender = $9,
			role = $10,
			is_banned = $11,
			ban_reason = $12,
			banned_until = $13,
			updated_at = $14
		WHERE id = $15`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.FirstName,
		user.LastName,
		user.Username,
		user.Email,
		user.Phone,
		user.Country,
		user.PasswordHash,
		user.DOB,
		user.Gender,
		user.Role,
		user.IsBanned,
		user.BanReason,
		user.BannedUntil,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, wrapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if !store.ValidID(id) {
		return store.ErrInvalidID
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func collectUsers(rows *sql.Rows) ([]types.User, error) {
	users := []types.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
