package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

const (
	credentialRateLimit  = 10
	credentialRateWindow = time.Minute
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: mw}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(credentialRateLimit, credentialRateWindow, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/login", h.handleLogin)
		r.Post("/forgot-password", h.handleForgotPassword)
		r.Post("/reset-password", h.handleResetPassword)
		r.Post("/register", h.handleRegister)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Authenticated())
		r.Get("/me", h.handleMe)
		r.Post("/refresh", h.handleRefresh)
		r.Put("/profile", h.handleProfile)
	})
}

type forgotPasswordResponse struct {
	ExpiresAt time.Time `json:"expires"`
}

type refreshRequest struct {
	Remember bool `json:"remember"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Login(r.Context(), in)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in ForgotPasswordInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.ForgotPassword(r.Context(), in)
	if err != nil {
		h.fail(w, "forgot password", err)
		return
	}
	httpx.JSON(w, http.StatusOK, forgotPasswordResponse{ExpiresAt: result.ExpiresAt})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in ResetPasswordInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.ResetPassword(r.Context(), in)
	if err != nil {
		h.fail(w, "reset password", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Register(r.Context(), in)
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), FromContext(r.Context()))
	if err != nil {
		h.fail(w, "me", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	var in ProfileInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), FromContext(r.Context()), in)
	if err != nil {
		h.fail(w, "update profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	result, err := h.service.RefreshToken(r.Context(), FromContext(r.Context()), in.Remember)
	if err != nil {
		h.fail(w, "refresh token", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
	case errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrInvalidCredentials),
		errors.Is(err, shared.ErrAccountDeactivated),
		errors.Is(err, shared.ErrInvalidResetCode),
		errors.Is(err, shared.ErrResetCodeExpired),
		errors.Is(err, shared.ErrUnauthenticated),
		errors.Is(err, shared.ErrDuplicate):
		h.logger.Info(op+" rejected", slog.Any("error", err))
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
