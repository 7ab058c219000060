package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/backoffice/backoffice/internal/auth"
	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(shared.PermUsers, true)).Get("/", h.listUsers)
	r.With(h.rbac.Authenticated()).Get("/dropdown", h.dropdown)
	r.With(h.rbac.Require(shared.PermUser, true)).Get("/{id}", h.getUser)
	r.With(h.rbac.Require(shared.PermUserCreate, true)).Post("/", h.createUser)
	r.With(h.rbac.Require(shared.PermUserUpdate, true)).Put("/{id}", h.updateUser)
	r.With(h.rbac.Require(shared.PermUserDelete, true)).Delete("/{id}", h.deleteUser)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.service.List(r.Context(), caller(r), ListRequest{
		Filters: Filters{
			Name:     q.Get("filterByName"),
			Surname:  q.Get("filterBySurname"),
			Email:    q.Get("filterByEmail"),
			Document: q.Get("filterByDocument"),
		},
		Page:     httpx.QueryInt(r, "page", 1),
		PerPage:  httpx.QueryInt(r, "perPage", 0),
		SortBy:   q.Get("sortBy"),
		SortDesc: httpx.SortDesc(r),
	})
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) dropdown(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Dropdown(r.Context())
	if err != nil {
		h.fail(w, "users dropdown", err)
		return
	}
	out := make([]auth.PublicUser, 0, len(list))
	for _, u := range list {
		out = append(out, u.Public())
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in UserInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Create(r.Context(), caller(r), in)
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var in UserInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Update(r.Context(), caller(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Delete(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "delete user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func caller(r *http.Request) Caller {
	if rc := auth.FromContext(r.Context()); rc != nil {
		return rc
	}
	return nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrDuplicate),
		errors.Is(err, shared.ErrForbidden):
		h.logger.Info(op+" rejected", slog.Any("error", err))
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
