package auth

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dawnmoon/charon/internal/authz"
	"github.com/dawnmoon/charon/internal/platform/httpx"
	"github.com/dawnmoon/charon/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	authz        authz.Middleware
	loginLimiter func(http.Handler) http.Handler
	validator    *validator.Validate
}

// NewHandler constructs a Handler instance. loginLimiter is applied to
// the credential endpoints only; nil disables it.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware, loginLimiter func(http.Handler) http.Handler) *Handler {
	if loginLimiter == nil {
		loginLimiter = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		logger:       logger,
		service:      service,
		authz:        mw,
		loginLimiter: loginLimiter,
		validator:    validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.loginLimiter).Post("/login", h.handleLogin)
	r.With(h.loginLimiter).Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.authz.Authenticate)
		r.With(h.authz.RequireAll(shared.PermUserForceLogout)).
			Post("/force-logout/{userID}", h.handleForceLogout)
		r.With(h.authz.RequireAll(shared.PermUserView)).
			Get("/login-time/{userID}", h.handleLoginTime)
	})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{Token: token})
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8"`
	RealName string `json:"real_name" validate:"max=128"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type registerResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.Register(r.Context(), req.Username, req.Password, req.RealName, req.Email)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, registerResponse{ID: user.ID, Username: user.Username})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	// A blank or stale token still yields 204.
	if err := h.service.LogoutSelf(r.Context(), authz.BearerToken(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleForceLogout(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", "")
		return
	}
	if err := h.service.ForceLogout(r.Context(), userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type loginTimeResponse struct {
	UserID      int64 `json:"user_id"`
	LoginTimeMs int64 `json:"login_time_ms"`
}

func (h *Handler) handleLoginTime(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", "")
		return
	}
	loginTime, ok, err := h.service.LoginTime(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !ok {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, loginTimeResponse{UserID: userID, LoginTimeMs: loginTime})
}
