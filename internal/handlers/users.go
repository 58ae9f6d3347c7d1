package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bookingd/apiserver/internal/services"
)

// UserHandler serves registration, login and profile self-service.
type UserHandler struct {
	accounts *services.AccountService
	log      *slog.Logger
}

func NewUserHandler(accounts *services.AccountService, log *slog.Logger) *UserHandler {
	return &UserHandler{accounts: accounts, log: log}
}

// UsersRouter registers the /users routes. authLimit guards the
// unauthenticated endpoints and may be nil.
func UsersRouter(r chi.Router, h *UserHandler, requireAuth, authLimit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if authLimit != nil {
			r.Use(authLimit)
		}
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/me", h.Me)
		r.Put("/me", h.UpdateMe)
		r.Post("/change-password", h.ChangePassword)
		r.Delete("/delete", h.DeleteMe)
	})
}

type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Username  string `json:"username" validate:"max=50"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
	Phone     string `json:"phone" validate:"max=32"`
	Country   string `json:"country" validate:"max=100"`
	Password  string `json:"password" validate:"max=72"`
	DOB       string `json:"dob"`
	Gender    string `json:"gender" validate:"max=32"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateMeRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
	Username  *string `json:"username" validate:"omitempty,max=50"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	Country   *string `json:"country" validate:"omitempty,max=100"`
	DOB       *string `json:"dob"`
	Gender    *string `json:"gender" validate:"omitempty,max=32"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword" validate:"max=72"`
}

func (h *UserHandler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Register creates a member account.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.register")

	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.accounts.Register(r.Context(), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		Phone:     req.Phone,
		Country:   req.Country,
		Password:  req.Password,
		DOB:       req.DOB,
		Gender:    req.Gender,
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login exchanges credentials for a token.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.login")

	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.me")

	user, err := h.accounts.GetSelf(r.Context(), callerID(r))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.update")

	var req UpdateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email != nil {
		trimmed := strings.TrimSpace(*req.Email)
		req.Email = &trimmed
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := h.accounts.UpdateSelf(r.Context(), callerID(r), services.UserPatch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		Phone:     req.Phone,
		Country:   req.Country,
		DOB:       req.DOB,
		Gender:    req.Gender,
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.change_password")

	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), callerID(r), req.OldPassword, req.NewPassword); err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeMessage(w, "password updated")
}

func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.delete")

	if err := h.accounts.DeleteSelf(r.Context(), callerID(r)); err != nil {
		writeServiceError(w, log, err)
		return
	}
	writeMessage(w, "account deleted")
}
