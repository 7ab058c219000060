package audithttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/backoffice/backoffice/internal/shared"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes registers the request log endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(h.rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.With(h.rbac.Require(shared.PermRequestLogs, false)).Get("/", h.handleList)
	r.With(h.rbac.Require(shared.PermRequestLog, false)).Get("/{id}", h.handleGet)
	r.With(h.rbac.Require(shared.PermRequestLogDelete, true)).Delete("/{id}", h.handleDelete)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.With(h.rbac.RequireAll(shared.PermRequestLogs, shared.PermRequestLogDelete)).Post("/purge", h.handlePurge)
	})
}

func (h *Handler) rateLimitKey(r *http.Request) (string, error) {
	if h.subject != nil {
		if user := strings.TrimSpace(h.subject(r)); user != "" {
			return "user:" + user, nil
		}
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
