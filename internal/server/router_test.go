package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bookingd/apiserver/config"
	"github.com/bookingd/apiserver/internal/auth"
	"github.com/bookingd/apiserver/internal/lib/logger"
	"github.com/bookingd/apiserver/internal/lib/password"
	"github.com/bookingd/apiserver/internal/services"
	"github.com/bookingd/apiserver/internal/store/memstore"
	"github.com/bookingd/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testAPI struct {
	t     *testing.T
	srv   *httptest.Server
	store *memstore.Store
}

func newTestAPI(t *testing.T, limits config.RateLimitConfig) *testAPI {
	t.Helper()

	tokens, err := auth.NewTokenService(auth.Config{Secret: "router-secret"})
	require.NoError(t, err)

	s := memstore.New()
	log := logger.Discard()
	router := NewRouter(Deps{
		Accounts:   services.NewAccountService(s.Users(), password.NewHasher(bcrypt.MinCost), tokens, nil, log),
		Bookings:   services.NewBookingService(s.Bookings(), s.Users(), nil, log),
		Moderation: services.NewModerationService(s.Users(), nil, log),
		Tokens:     tokens,
		Metrics:    NewMetrics("test"),
		RateLimit:  limits,
		Log:        log,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testAPI{t: t, srv: srv, store: s}
}

func (a *testAPI) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	status, raw := a.doRaw(method, path, token, body)
	var out map[string]any
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		require.NoError(a.t, json.Unmarshal(raw, &out))
	}
	return status, out
}

func (a *testAPI) doRaw(method, path, token string, body any) (int, []byte) {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp.StatusCode, raw
}

func registration(username string) map[string]any {
	return map[string]any{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"username":  username,
		"email":     username + "@example.com",
		"phone":     "+441234567890",
		"country":   "UK",
		"password":  "password123",
		"dob":       "1990-12-10",
		"gender":    "female",
	}
}

// signup registers and logs in, returning the user id and token.
func (a *testAPI) signup(username string) (string, string) {
	a.t.Helper()
	status, body := a.do(http.MethodPost, "/users/register", "", registration(username))
	require.Equal(a.t, http.StatusCreated, status, body)

	status, body = a.do(http.MethodPost, "/users/login", "", map[string]any{
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(a.t, http.StatusOK, status, body)
	user := body["user"].(map[string]any)
	return user["id"].(string), body["token"].(string)
}

func (a *testAPI) setRole(id string, role types.Role) {
	a.t.Helper()
	ctx := context.Background()
	user, err := a.store.Users().GetByID(ctx, id)
	require.NoError(a.t, err)
	user.Role = role
	_, err = a.store.Users().Update(ctx, user)
	require.NoError(a.t, err)
}

func TestAccountFlow(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})

	status, body := api.do(http.MethodPost, "/users/register", "", registration("ada"))
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "ada@example.com", body["email"])
	assert.Equal(t, "member", body["role"])
	assert.NotContains(t, body, "passwordHash")
	assert.NotContains(t, body, "PasswordHash")

	dup := registration("other")
	dup["email"] = "ADA@Example.com"
	status, body = api.do(http.MethodPost, "/users/register", "", dup)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body["error"], "email")

	incomplete := registration("grace")
	delete(incomplete, "phone")
	status, body = api.do(http.MethodPost, "/users/register", "", incomplete)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "missing required fields: phone", body["error"])

	multibyte := registration("linus")
	multibyte["password"] = strings.Repeat("é", 40)
	status, body = api.do(http.MethodPost, "/users/register", "", multibyte)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "password must be at most 72 bytes", body["error"])

	status, body = api.do(http.MethodPost, "/users/login", "", map[string]any{"email": "ada@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	wrongPassword := body["error"]
	status, body = api.do(http.MethodPost, "/users/login", "", map[string]any{"email": "ghost@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, wrongPassword, body["error"])

	_, token := api.signup("grace")

	status, body = api.do(http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "grace", body["username"])

	status, body = api.do(http.MethodPut, "/users/me", token, map[string]any{"country": "FR", "role": "admin"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "FR", body["country"])
	assert.Equal(t, "member", body["role"])

	status, _ = api.do(http.MethodPut, "/users/me", token, map[string]any{"username": "ada"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = api.do(http.MethodPost, "/users/change-password", token, map[string]any{"oldPassword": "wrong-pass", "newPassword": "newpassword1"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = api.do(http.MethodPost, "/users/change-password", token, map[string]any{"oldPassword": "password123", "newPassword": "newpassword1"})
	require.Equal(t, http.StatusOK, status)
	status, _ = api.do(http.MethodPost, "/users/login", "", map[string]any{"email": "grace@example.com", "password": "newpassword1"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = api.do(http.MethodDelete, "/users/delete", token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = api.do(http.MethodGet, "/users/me", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(http.MethodGet, "/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestBookingFlow(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	userID, userToken := api.signup("ada")
	adminID, adminToken := api.signup("root")
	api.setRole(adminID, types.RoleAdmin)

	status, body := api.do(http.MethodPost, "/bookings", userToken, map[string]any{
		"type":        "session",
		"duration":    60,
		"platform":    "Zoom",
		"scheduledAt": "2030-05-01T10:00",
		"notes":       "needs a.*b review",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, userID, body["user"])
	bookingID := body["id"].(string)

	status, body = api.do(http.MethodPost, "/bookings", userToken, map[string]any{"type": "session"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "missing required fields: duration, platform, scheduledAt", body["error"])

	status, raw := api.doRaw(http.MethodGet, "/bookings/me", userToken, nil)
	require.Equal(t, http.StatusOK, status)
	var mine []map[string]any
	require.NoError(t, json.Unmarshal(raw, &mine))
	require.Len(t, mine, 1)

	// members cannot reach the admin console
	status, _ = api.do(http.MethodGet, "/admin/bookings", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = api.do(http.MethodGet, "/admin/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = api.do(http.MethodGet, "/admin/bookings?search=a.*b&limit=1000", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(100), meta["limit"])
	assert.Equal(t, float64(1), meta["total"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	owner := items[0].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "ada", owner["username"])
	assert.NotContains(t, owner, "role")

	status, body = api.do(http.MethodPatch, "/admin/bookings/"+bookingID, adminToken, map[string]any{
		"action":        "reschedule",
		"rescheduledTo": "2030-06-01T09:00:00Z",
		"adminNote":     "moved",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "rescheduled", body["status"])
	assert.Equal(t, "2030-06-01T09:00:00Z", body["rescheduledTo"])

	status, _ = api.do(http.MethodPatch, "/admin/bookings/"+bookingID, adminToken, map[string]any{"action": "reschedule", "rescheduledTo": "never"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = api.do(http.MethodPatch, "/admin/bookings/"+bookingID, adminToken, map[string]any{"action": "approve"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "approved", body["status"])
	assert.Nil(t, body["rescheduledTo"])

	status, _ = api.do(http.MethodPatch, "/admin/bookings/not-an-id", adminToken, map[string]any{"action": "approve"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = api.do(http.MethodPatch, "/admin/bookings/00000000-0000-4000-8000-000000000000", adminToken, map[string]any{"action": "approve"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdminUserModeration(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})
	userID, userToken := api.signup("ada")
	adminID, adminToken := api.signup("root")
	api.setRole(adminID, types.RoleAdmin)

	status, body := api.do(http.MethodDelete, "/admin/users/"+adminID, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "cannot delete your own account", body["error"])

	status, _ = api.do(http.MethodPost, "/admin/users/"+adminID+"/ban", adminToken, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(http.MethodPatch, "/admin/users/"+adminID+"/role", adminToken, map[string]any{"role": "member"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = api.do(http.MethodPost, "/admin/users/"+userID+"/ban", adminToken, map[string]any{"reason": "spam"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["isBanned"])

	status, body = api.do(http.MethodPost, "/users/login", "", map[string]any{"email": "ada@example.com", "password": "password123"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "spam", body["reason"])
	assert.Contains(t, body, "until")

	status, body = api.do(http.MethodGet, "/admin/users?banned=true", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["meta"].(map[string]any)["total"])
	assert.Equal(t, float64(20), body["meta"].(map[string]any)["limit"])

	for _, path := range []string{"/admin/users?page=9223372036854775807", "/admin/bookings?page=9223372036854775807"} {
		status, body = api.do(http.MethodGet, path, adminToken, nil)
		require.Equal(t, http.StatusOK, status, path)
		assert.Empty(t, body["items"], path)
	}

	status, _ = api.do(http.MethodGet, "/admin/users?banned=maybe", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(http.MethodPost, "/admin/users/"+userID+"/unban", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = api.do(http.MethodPost, "/users/login", "", map[string]any{"email": "ada@example.com", "password": "password123"})
	assert.Equal(t, http.StatusOK, status)

	// promotion takes effect without a new token
	status, _ = api.do(http.MethodPatch, "/admin/users/"+userID+"/role", adminToken, map[string]any{"role": "admin"})
	require.Equal(t, http.StatusOK, status)
	status, _ = api.do(http.MethodGet, "/admin/users", userToken, nil)
	assert.Equal(t, http.StatusOK, status)

	// so does demotion, even though the admin's token still claims admin
	status, _ = api.do(http.MethodPatch, "/admin/users/"+adminID+"/role", userToken, map[string]any{"role": "member"})
	require.Equal(t, http.StatusOK, status)
	status, _ = api.do(http.MethodGet, "/admin/users", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(http.MethodDelete, "/admin/users/"+adminID, userToken, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = api.do(http.MethodGet, "/admin/users", adminToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRateLimitOnAuthRoutes(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{RPS: 0.001, Burst: 2})

	creds := map[string]any{"email": "ghost@example.com", "password": "password123"}
	for i := 0; i < 2; i++ {
		status, _ := api.do(http.MethodPost, "/users/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := api.do(http.MethodPost, "/users/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "too many requests", body["error"])

	// other groups have their own buckets
	status, _ = api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{})

	status, body := api.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, raw := api.doRaw(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.Contains(string(raw), `test_http_requests_total{method="GET",route="/healthz",status="200"} 1`), string(raw))
}
