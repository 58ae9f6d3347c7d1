package services

import (
	"context"
	"sync"
	"testing"

	"github.com/bookingd/apiserver/internal/auth"
	"github.com/bookingd/apiserver/internal/lib/logger"
	"github.com/bookingd/apiserver/internal/lib/password"
	"github.com/bookingd/apiserver/internal/mq"
	"github.com/bookingd/apiserver/internal/store/memstore"
	"github.com/bookingd/apiserver/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []mq.Event
}

func (p *recordingPublisher) PublishEvent(_ context.Context, event mq.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store      *memstore.Store
	tokens     *auth.TokenService
	events     *recordingPublisher
	accounts   *AccountService
	bookings   *BookingService
	moderation *ModerationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tokens, err := auth.NewTokenService(auth.Config{Secret: "test-secret"})
	require.NoError(t, err)

	s := memstore.New()
	events := &recordingPublisher{}
	log := logger.Discard()
	return &fixture{
		store:      s,
		tokens:     tokens,
		events:     events,
		accounts:   NewAccountService(s.Users(), password.NewHasher(bcrypt.MinCost), tokens, events, log),
		bookings:   NewBookingService(s.Bookings(), s.Users(), events, log),
		moderation: NewModerationService(s.Users(), events, log),
	}
}

func registerInput(username, email string) RegisterInput {
	return RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Username:  username,
		Email:     email,
		Phone:     "+441234567890",
		Country:   "UK",
		Password:  "password123",
		DOB:       "1990-12-10",
		Gender:    "female",
	}
}

func (f *fixture) register(t *testing.T, username string) types.User {
	t.Helper()
	user, err := f.accounts.Register(context.Background(), registerInput(username, username+"@example.com"))
	require.NoError(t, err)
	return user
}

func (f *fixture) admin(t *testing.T, username string) types.User {
	t.Helper()
	user := f.register(t, username)
	stored, err := f.store.Users().GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	stored.Role = types.RoleAdmin
	stored, err = f.store.Users().Update(context.Background(), stored)
	require.NoError(t, err)
	return stored
}
