package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bookingd/apiserver/internal/services"
)

// BookingHandler serves the caller's own bookings.
type BookingHandler struct {
	bookings *services.BookingService
	log      *slog.Logger
}

func NewBookingHandler(bookings *services.BookingService, log *slog.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, log: log}
}

// BookingsRouter registers the /bookings routes.
func BookingsRouter(r chi.Router, h *BookingHandler, requireAuth func(http.Handler) http.Handler) {
	r.Use(requireAuth)
	r.Post("/", h.Create)
	r.Get("/me", h.ListMine)
}

type CreateBookingRequest struct {
	Type            string `json:"type"`
	Duration        int    `json:"duration" validate:"min=0,max=1440"`
	Platform        string `json:"platform" validate:"max=100"`
	PlatformDetails string `json:"platformDetails" validate:"max=500"`
	ScheduledAt     string `json:"scheduledAt"`
	Notes           string `json:"notes" validate:"max=2000"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(
		slog.String("op", "handlers.bookings.create"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req CreateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	booking, err := h.bookings.Create(r.Context(), callerID(r), services.CreateBookingInput{
		Type:            req.Type,
		Duration:        req.Duration,
		Platform:        req.Platform,
		PlatformDetails: req.PlatformDetails,
		ScheduledAt:     req.ScheduledAt,
		Notes:           req.Notes,
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(
		slog.String("op", "handlers.bookings.list_mine"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	bookings, err := h.bookings.ListOwn(r.Context(), callerID(r))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}
