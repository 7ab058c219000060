package audithttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/backoffice/backoffice/internal/audit"
	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

// LogService defines the business contract for access log administration.
type LogService interface {
	List(ctx context.Context, filters audit.ListFilters) (audit.LogPage, error)
	Get(ctx context.Context, id string) (audit.AccessLogEntry, error)
	Delete(ctx context.Context, id string) (audit.AccessLogEntry, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Handler serves the request log endpoints.
type Handler struct {
	logger  *slog.Logger
	service LogService
	rbac    rbac.Middleware
	subject func(r *http.Request) string
}

// NewHandler builds an access log handler. subject identifies the caller for
// rate limiting; when nil the client IP is used.
func NewHandler(logger *slog.Logger, service LogService, mw rbac.Middleware, subject func(r *http.Request) string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: mw, subject: subject}
}

type purgeRequest struct {
	Before time.Time `json:"before"`
}

type purgeResponse struct {
	Deleted int64 `json:"deleted"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.service.List(r.Context(), audit.ListFilters{
		IP:       strings.TrimSpace(q.Get("filterByIp")),
		UserID:   strings.TrimSpace(q.Get("filterByUser")),
		Body:     strings.TrimSpace(q.Get("filterByBody")),
		Page:     httpx.QueryInt(r, "page", 1),
		PerPage:  httpx.QueryInt(r, "perPage", 0),
		SortBy:   q.Get("sortBy"),
		SortDesc: httpx.SortDesc(r),
	})
	if err != nil {
		h.fail(w, "list request logs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get request log", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "delete request log", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	deleted, err := h.service.Purge(r.Context(), req.Before)
	if err != nil {
		h.fail(w, "purge request logs", err)
		return
	}
	h.logger.Info("request logs purged", slog.Time("before", req.Before), slog.Int64("deleted", deleted))
	httpx.JSON(w, http.StatusOK, purgeResponse{Deleted: deleted})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !isClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isClientError(err error) bool {
	for _, target := range []error{shared.ErrNotFound, shared.ErrValidation, shared.ErrForbidden, shared.ErrUnauthenticated} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
