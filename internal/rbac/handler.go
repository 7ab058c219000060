package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/shared"
)

// Handler exposes role administration and the policy catalog.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(shared.PermRoles, true)).Get("/", h.listRoles)
	r.With(h.rbac.Authenticated()).Get("/dropdown", h.dropdown)
	r.With(h.rbac.Require(shared.PermRole, true)).Get("/{id}", h.getRole)
	r.With(h.rbac.Require(shared.PermRoleCreate, true)).Post("/", h.createRole)
	r.With(h.rbac.Require(shared.PermRoleUpdate, true)).Put("/{id}", h.updateRole)
	r.With(h.rbac.Require(shared.PermRoleDelete, true)).Delete("/{id}", h.deleteRole)
}

// MountPolicyRoutes registers the catalog listing.
func (h *Handler) MountPolicyRoutes(r chi.Router) {
	r.With(h.rbac.Require(shared.PermPolicies, false)).Get("/", h.listPolicies)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	sortBy := r.URL.Query().Get("sortBy")
	if sortBy == "" {
		sortBy = "name"
	}
	page, err := h.service.ListRoles(r.Context(), ListRolesRequest{
		Page:     httpx.QueryInt(r, "page", 1),
		PerPage:  httpx.QueryInt(r, "perPage", 0),
		SortBy:   sortBy,
		SortDesc: httpx.SortDesc(r),
	})
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) dropdown(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.Dropdown(r.Context())
	if err != nil {
		h.fail(w, "roles dropdown", err)
		return
	}
	if roles == nil {
		roles = []Role{}
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var in RoleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), in)
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var in RoleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.DeleteRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "delete role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Policies())
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
