//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bookingd/apiserver/config"
	"github.com/bookingd/apiserver/internal/lib/logger"
	"github.com/bookingd/apiserver/internal/server"
)

const (
	serverPort = 18080
)

var (
	baseURL = fmt.Sprintf("http://localhost:%d", serverPort)
	dsn     string
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("bookingd_e2e"),
		postgres.WithUsername("bookingd"),
		postgres.WithPassword("bookingd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
		os.Exit(1)
	}
	terminate := func() { _ = pgContainer.Terminate(context.Background()) }

	dsn, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read connection string: %v\n", err)
		terminate()
		os.Exit(1)
	}

	if err := runMigrations(root, dsn); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		terminate()
		os.Exit(1)
	}

	srv, err := startServer(ctx, pgContainer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		terminate()
		os.Exit(1)
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		terminate()
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	terminate()
	os.Exit(code)
}

func TestBookingLifecycle(t *testing.T) {
	suffix := time.Now().UnixNano()
	password := "testpass123!"

	adminName := fmt.Sprintf("admin_%d", suffix)
	if err := registerUser(t, adminName, password); err != nil {
		t.Fatalf("register admin: %v", err)
	}
	if err := promoteUserToAdmin(adminName); err != nil {
		t.Fatalf("promote user: %v", err)
	}
	adminToken, err := loginUser(t, adminName, password)
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}

	memberName := fmt.Sprintf("member_%d", suffix)
	if err := registerUser(t, memberName, password); err != nil {
		t.Fatalf("register member: %v", err)
	}
	memberToken, err := loginUser(t, memberName, password)
	if err != nil {
		t.Fatalf("login member: %v", err)
	}

	var created bookingResponse
	status, err := doJSON(t, http.MethodPost, "/bookings", memberToken, map[string]any{
		"type":        "session",
		"duration":    45,
		"platform":    "zoom",
		"scheduledAt": time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"notes":       fmt.Sprintf("e2e-%d", suffix),
	}, &created)
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if status != http.StatusCreated {
		t.Fatalf("unexpected create status: %d", status)
	}
	if created.ID == "" || created.Status != "pending" {
		t.Fatalf("unexpected booking: %+v", created)
	}

	status, err = doJSON(t, http.MethodGet, "/admin/bookings", memberToken, nil, nil)
	if err != nil {
		t.Fatalf("member admin list: %v", err)
	}
	if status != http.StatusForbidden {
		t.Fatalf("expected member to be forbidden, got %d", status)
	}

	var rescheduled bookingResponse
	to := time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339)
	status, err = doJSON(t, http.MethodPatch, "/admin/bookings/"+created.ID, adminToken, map[string]any{
		"action":        "reschedule",
		"rescheduledTo": to,
		"adminNote":     "moved",
	}, &rescheduled)
	if err != nil {
		t.Fatalf("reschedule booking: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("unexpected reschedule status: %d", status)
	}
	if rescheduled.Status != "rescheduled" || rescheduled.RescheduledTo == nil {
		t.Fatalf("unexpected rescheduled booking: %+v", rescheduled)
	}

	var approved bookingResponse
	status, err = doJSON(t, http.MethodPatch, "/admin/bookings/"+created.ID, adminToken, map[string]any{
		"action": "approve",
	}, &approved)
	if err != nil {
		t.Fatalf("approve booking: %v", err)
	}
	if status != http.StatusOK || approved.Status != "approved" || approved.RescheduledTo != nil {
		t.Fatalf("unexpected approved booking (%d): %+v", status, approved)
	}

	var page adminBookingPage
	status, err = doJSON(t, http.MethodGet, fmt.Sprintf("/admin/bookings?search=e2e-%d", suffix), adminToken, nil, &page)
	if err != nil {
		t.Fatalf("admin list bookings: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("unexpected admin list status: %d", status)
	}
	if page.Meta.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("expected one matching booking, got %+v", page.Meta)
	}
	if page.Items[0].User == nil || page.Items[0].User.Username != memberName {
		t.Fatalf("expected booking owner %s, got %+v", memberName, page.Items[0].User)
	}

	var mine []bookingResponse
	status, err = doJSON(t, http.MethodGet, "/bookings/me", memberToken, nil, &mine)
	if err != nil {
		t.Fatalf("list own bookings: %v", err)
	}
	if status != http.StatusOK || len(mine) != 1 || mine[0].Status != "approved" {
		t.Fatalf("unexpected own bookings (%d): %+v", status, mine)
	}
}

func TestBannedUserCannotLogin(t *testing.T) {
	suffix := time.Now().UnixNano()
	password := "testpass123!"

	adminName := fmt.Sprintf("mod_%d", suffix)
	if err := registerUser(t, adminName, password); err != nil {
		t.Fatalf("register admin: %v", err)
	}
	if err := promoteUserToAdmin(adminName); err != nil {
		t.Fatalf("promote user: %v", err)
	}
	adminToken, err := loginUser(t, adminName, password)
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}

	memberName := fmt.Sprintf("banned_%d", suffix)
	if err := registerUser(t, memberName, password); err != nil {
		t.Fatalf("register member: %v", err)
	}
	var me userResponse
	memberToken, err := loginUser(t, memberName, password)
	if err != nil {
		t.Fatalf("login member: %v", err)
	}
	if _, err := doJSON(t, http.MethodGet, "/users/me", memberToken, nil, &me); err != nil {
		t.Fatalf("get me: %v", err)
	}

	var banned userResponse
	status, err := doJSON(t, http.MethodPost, "/admin/users/"+me.ID+"/ban", adminToken, map[string]any{
		"reason": "spam",
	}, &banned)
	if err != nil {
		t.Fatalf("ban user: %v", err)
	}
	if status != http.StatusOK || !banned.IsBanned {
		t.Fatalf("unexpected ban response (%d): %+v", status, banned)
	}

	var loginErr struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	status, err = doJSON(t, http.MethodPost, "/users/login", "", map[string]string{
		"email":    memberName + "@example.com",
		"password": password,
	}, &loginErr)
	if err != nil {
		t.Fatalf("login banned user: %v", err)
	}
	if status != http.StatusForbidden || loginErr.Reason != "spam" {
		t.Fatalf("unexpected banned login (%d): %+v", status, loginErr)
	}

	status, err = doJSON(t, http.MethodPost, "/admin/users/"+me.ID+"/unban", adminToken, nil, nil)
	if err != nil || status != http.StatusOK {
		t.Fatalf("unban user (%d): %v", status, err)
	}
	if _, err := loginUser(t, memberName, password); err != nil {
		t.Fatalf("login after unban: %v", err)
	}
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	IsBanned bool   `json:"isBanned"`
}

type bookingResponse struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	RescheduledTo *time.Time `json:"rescheduledTo"`
}

type adminBookingPage struct {
	Items []struct {
		bookingResponse
		User *userResponse `json:"user"`
	} `json:"items"`
	Meta struct {
		Total int `json:"total"`
	} `json:"meta"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func registerUser(t *testing.T, username, password string) error {
	t.Helper()

	status, err := doJSON(t, http.MethodPost, "/users/register", "", map[string]string{
		"firstName": "Test",
		"lastName":  "User",
		"username":  username,
		"email":     fmt.Sprintf("%s@example.com", username),
		"phone":     "+15550100",
		"country":   "NZ",
		"password":  password,
		"dob":       "1990-04-01",
		"gender":    "other",
	}, nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("register status %d", status)
	}
	return nil
}

func loginUser(t *testing.T, username, password string) (string, error) {
	t.Helper()

	var parsed loginResponse
	status, err := doJSON(t, http.MethodPost, "/users/login", "", map[string]string{
		"email":    fmt.Sprintf("%s@example.com", username),
		"password": password,
	}, &parsed)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login status %d", status)
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in login response")
	}
	return parsed.Token, nil
}

// doJSON sends body as JSON and decodes the response into out when out is
// non-nil.
func doJSON(t *testing.T, method, path, token string, body, out any) (int, error) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w: %s", method, path, err, strings.TrimSpace(string(raw)))
		}
	}
	return resp.StatusCode, nil
}

func promoteUserToAdmin(username string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = db.ExecContext(ctx, "UPDATE users SET role = 'admin', updated_at = NOW() WHERE username = $1", username)
	return err
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root, dsn string) error {
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func startServer(ctx context.Context, pg *postgres.PostgresContainer) (*server.Server, error) {
	host, err := pg.Host(ctx)
	if err != nil {
		return nil, err
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, err
	}

	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("STORE_DRIVER", config.StorePostgres)
	_ = os.Setenv("MQ_DRIVER", config.MQNone)
	_ = os.Setenv("RATE_LIMIT_RPS", "0")
	_ = os.Setenv("DB_HOST", host)
	_ = os.Setenv("DB_PORT", port.Port())
	_ = os.Setenv("DB_USER", "bookingd")
	_ = os.Setenv("DB_PASSWORD", "bookingd")
	_ = os.Setenv("DB_NAME", "bookingd_e2e")
	_ = os.Setenv("DB_SSL", "false")

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	srv, err := server.New(ctx, cfg, logger.Discard())
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
