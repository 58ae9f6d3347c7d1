package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bookingd/apiserver/internal/auth"
	"github.com/bookingd/apiserver/internal/lib/sl"
	"github.com/bookingd/apiserver/internal/store"
	"github.com/bookingd/apiserver/types"
)

type contextKey string

const (
	contextClaimsKey contextKey = "claims"
	contextUserKey   contextKey = "user"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// UserLookup loads the current state of a user by id.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (types.User, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// verified claims in the request context.
func RequireAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after RequireAuth. It re-reads the caller on every
// request so that a demotion or deletion takes effect before the token
// expires, then stores the fresh record in the request context.
func RequireAdmin(users UserLookup, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := claimsFromContext(r.Context())
			if !ok || strings.TrimSpace(claims.ID) == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, err := users.GetByID(r.Context(), claims.ID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidID) {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				log.Error("failed to load caller", slog.String("user_id", claims.ID), sl.Err(err))
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if !user.IsAdmin() {
				writeError(w, http.StatusForbidden, "admin access required")
				return
			}

			ctx := context.WithValue(r.Context(), contextUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userFromContext returns the record loaded by RequireAdmin.
func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(contextClaimsKey).(*auth.Claims)
	return claims, ok && claims != nil
}

// callerID returns the authenticated subject. It is only empty when a
// handler is mounted without RequireAuth.
func callerID(r *http.Request) string {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		return ""
	}
	return claims.ID
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
