package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bookingd/apiserver/internal/auth"
	"github.com/bookingd/apiserver/internal/lib/logger"
	"github.com/bookingd/apiserver/internal/store"
	"github.com/bookingd/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type userLookupMock struct {
	mock.Mock
}

func (m *userLookupMock) GetByID(ctx context.Context, id string) (types.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.User), args.Error(1)
}

func newTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.Config{Secret: "handler-secret"})
	require.NoError(t, err)
	return tokens
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("X-Caller", claims.ID)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAuth(t *testing.T) {
	tokens := newTokens(t)
	token, err := tokens.Issue(types.User{ID: store.NewID(), Role: types.RoleMember})
	require.NoError(t, err)

	other, err := auth.NewTokenService(auth.Config{Secret: "other-secret"})
	require.NoError(t, err)
	foreign, err := other.Issue(types.User{ID: store.NewID()})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, http.StatusNoContent},
		{"lowercase scheme", "bearer " + token, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"garbage", "Bearer not.a.token", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			RequireAuth(tokens)(okHandler(t)).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	tokens := newTokens(t)
	adminID := store.NewID()

	// the token still says admin; only the fresh record decides
	token, err := tokens.Issue(types.User{ID: adminID, Role: types.RoleAdmin})
	require.NoError(t, err)

	tests := []struct {
		name string
		user types.User
		err  error
		want int
	}{
		{"admin", types.User{ID: adminID, Role: types.RoleAdmin}, nil, http.StatusNoContent},
		{"demoted since issue", types.User{ID: adminID, Role: types.RoleMember}, nil, http.StatusForbidden},
		{"deleted since issue", types.User{}, store.ErrNotFound, http.StatusUnauthorized},
		{"store down", types.User{}, errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &userLookupMock{}
			users.On("GetByID", mock.Anything, adminID).Return(tt.user, tt.err).Once()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			chain := RequireAuth(tokens)(RequireAdmin(users, logger.Discard())(okHandler(t)))
			chain.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			users.AssertExpectations(t)
		})
	}
}

func TestRequireAdminStoresFreshUser(t *testing.T) {
	tokens := newTokens(t)
	adminID := store.NewID()
	token, err := tokens.Issue(types.User{ID: adminID, Role: types.RoleAdmin})
	require.NoError(t, err)

	fresh := types.User{ID: adminID, Username: "root", Role: types.RoleAdmin}
	users := &userLookupMock{}
	users.On("GetByID", mock.Anything, adminID).Return(fresh, nil).Once()

	var got types.User
	var found bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = userFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	RequireAuth(tokens)(RequireAdmin(users, logger.Discard())(next)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, found)
	assert.Equal(t, fresh, got)

	_, found = userFromContext(context.Background())
	assert.False(t, found)
}

func TestRequireAdminWithoutClaims(t *testing.T) {
	users := &userLookupMock{}
	rec := httptest.NewRecorder()
	RequireAdmin(users, logger.Discard())(okHandler(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}
