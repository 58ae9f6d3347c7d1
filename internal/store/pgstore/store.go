// Package pgstore implements the user and booking repositories on
// PostgreSQL through database/sql and lib/pq. The schema lives in
// internal/db/migrations.
package pgstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bookingd/apiserver/internal/store"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Store wraps a connection pool and hands out repository views.
type Store struct {
	db *sql.DB
}

// New constructs a Store over an open connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{db: s.db}
}

func (s *Store) Bookings() *BookingRepository {
	return &BookingRepository{db: s.db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// wrapError translates driver errors into store errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return &store.DuplicateError{Fields: store.DuplicateFields(pqErr.Constraint)}
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns needle into an ILIKE pattern matching it as a literal
// substring. Backslash is the default LIKE escape character.
func likePattern(needle string) string {
	return "%" + likeEscaper.Replace(needle) + "%"
}

// where accumulates AND-ed conditions. Each clause takes one argument,
// referenced as $%[1]d so it can appear more than once.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}
