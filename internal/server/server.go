package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bookingd/apiserver/config"
	"github.com/bookingd/apiserver/internal/auth"
	"github.com/bookingd/apiserver/internal/handlers"
	"github.com/bookingd/apiserver/internal/lib/password"
	"github.com/bookingd/apiserver/internal/lib/sl"
	"github.com/bookingd/apiserver/internal/mq"
	"github.com/bookingd/apiserver/internal/services"
)

const metricsNamespace = "bookingd"

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	store      *Repositories
	events     *mq.EventPublisher
	log        *slog.Logger
}

// Deps are the collaborators NewRouter wires into routes.
type Deps struct {
	Accounts   *services.AccountService
	Bookings   *services.BookingService
	Moderation *services.ModerationService
	Tokens     handlers.TokenVerifier
	Metrics    *Metrics
	RateLimit  config.RateLimitConfig
	Log        *slog.Logger
}

// New opens the configured store and event broker and builds the router.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(auth.Config{Secret: cfg.Auth.JWTSecret, TTL: cfg.Auth.TokenTTL})
	if err != nil {
		return nil, err
	}

	repos, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := mq.OpenEventPublisher(ctx, cfg.MQ)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("open event publisher: %w", err)
	}
	// a nil *EventPublisher must not become a non-nil interface value
	var events services.EventPublisher
	if publisher != nil {
		events = publisher
	}

	hasher := password.NewHasher(cfg.Auth.BcryptCost)
	router := NewRouter(Deps{
		Accounts:   services.NewAccountService(repos.Users, hasher, tokens, events, log),
		Bookings:   services.NewBookingService(repos.Bookings, repos.Users, events, log),
		Moderation: services.NewModerationService(repos.Users, events, log),
		Tokens:     tokens,
		Metrics:    NewMetrics(metricsNamespace),
		RateLimit:  cfg.RateLimit,
		Log:        log,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server configured",
		slog.String("addr", httpServer.Addr),
		slog.String("store", cfg.StoreDriver),
		slog.String("mq", cfg.MQ.Driver),
	)

	return &Server{
		httpServer: httpServer,
		router:     router,
		store:      repos,
		events:     publisher,
		log:        log,
	}, nil
}

// NewRouter builds the HTTP routes over already constructed services.
func NewRouter(d Deps) *chi.Mux {
	log := d.Log
	metrics := d.Metrics
	if metrics == nil {
		metrics = NewMetrics(metricsNamespace)
	}

	requireAuth := handlers.RequireAuth(d.Tokens)
	requireAdmin := handlers.RequireAdmin(d.Accounts, log)
	authLimit := RateLimit("auth", d.RateLimit.RPS, d.RateLimit.Burst, metrics, log)
	adminLimit := RateLimit("admin", d.RateLimit.RPS, d.RateLimit.Burst, metrics, log)

	users := handlers.NewUserHandler(d.Accounts, log)
	bookings := handlers.NewBookingHandler(d.Bookings, log)
	admin := handlers.NewAdminHandler(d.Bookings, d.Moderation, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(log),
		middleware.Recoverer,
		metrics.Middleware,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	router.Route("/users", func(r chi.Router) {
		handlers.UsersRouter(r, users, requireAuth, authLimit)
	})
	router.Route("/bookings", func(r chi.Router) {
		handlers.BookingsRouter(r, bookings, requireAuth)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, admin, adminLimit, requireAuth, requireAdmin)
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the broker and store.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.events != nil {
		if cerr := s.events.Close(); cerr != nil {
			s.log.Warn("failed to close event publisher", sl.Err(cerr))
		}
	}
	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil {
			s.log.Warn("failed to close store", sl.Err(cerr))
		}
	}
	return err
}
