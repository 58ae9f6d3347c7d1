package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bookingd/apiserver/internal/services"
)

// AdminHandler serves the admin console: booking moderation and user
// moderation. Every route runs behind RequireAuth and RequireAdmin.
type AdminHandler struct {
	bookings   *services.BookingService
	moderation *services.ModerationService
	log        *slog.Logger
}

func NewAdminHandler(bookings *services.BookingService, moderation *services.ModerationService, log *slog.Logger) *AdminHandler {
	return &AdminHandler{bookings: bookings, moderation: moderation, log: log}
}

// AdminRouter registers the /admin routes. Middlewares run in the order
// given, so pass RequireAuth before RequireAdmin.
func AdminRouter(r chi.Router, h *AdminHandler, middlewares ...func(http.Handler) http.Handler) {
	r.Use(middlewares...)

	r.Get("/bookings", h.ListBookings)
	r.Patch("/bookings/{id}", h.TransitionBooking)

	r.Get("/users", h.ListUsers)
	r.Delete("/users/{id}", h.DeleteUser)
	r.Post("/users/{id}/ban", h.BanUser)
	r.Post("/users/{id}/unban", h.UnbanUser)
	r.Patch("/users/{id}/role", h.SetRole)
}

type TransitionRequest struct {
	Action        string `json:"action"`
	AdminNote     string `json:"adminNote" validate:"max=2000"`
	RescheduledTo string `json:"rescheduledTo"`
}

type BanRequest struct {
	Reason string `json:"reason" validate:"max=500"`
	Until  string `json:"until"`
}

type RoleRequest struct {
	Role string `json:"role"`
}

func (h *AdminHandler) logger(r *http.Request, op string) *slog.Logger {
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("actor_id", callerID(r)),
	)
	if actor, ok := userFromContext(r.Context()); ok {
		log = log.With(slog.String("actor_role", string(actor.Role)))
	}
	return log
}

func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.list_bookings")

	q := r.URL.Query()
	page, err := h.bookings.AdminList(r.Context(), services.BookingQuery{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) TransitionBooking(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.transition_booking")

	var req TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	booking, err := h.bookings.AdminTransition(r.Context(), callerID(r), chi.URLParam(r, "id"), services.TransitionInput{
		Action:        req.Action,
		AdminNote:     req.AdminNote,
		RescheduledTo: req.RescheduledTo,
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.list_users")

	banned, err := queryBool(r, "banned")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid banned filter")
		return
	}

	q := r.URL.Query()
	page, err := h.moderation.ListUsers(r.Context(), services.UserQuery{
		Search: q.Get("search"),
		Role:   q.Get("role"),
		Banned: banned,
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.delete_user")

	if err := h.moderation.DeleteUser(r.Context(), callerID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeMessage(w, "user deleted")
}

func (h *AdminHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.ban_user")

	var req BanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.moderation.BanUser(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Reason, req.Until)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.unban_user")

	user, err := h.moderation.UnbanUser(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.set_role")

	var req RoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.moderation.SetRole(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
