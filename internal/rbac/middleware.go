package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/shared"
)

// Checker evaluates permissions for the current request.
type Checker interface {
	IsAuthenticated() error
	HasPermission(ctx context.Context, permission string, audit bool) error
	HasPermissions(ctx context.Context, permissions []string, audit bool) bool
	HasAnyPermissions(ctx context.Context, permissions []string, audit bool) bool
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Checker func(r *http.Request) Checker
	Logger  *slog.Logger
}

// Authenticated rejects anonymous requests.
func (m Middleware) Authenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := m.checker(r).IsAuthenticated(); err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require gates the route on a single claim. When audit is true an access log
// entry is written before the decision.
func (m Middleware) Require(permission string, audit bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := m.checker(r).HasPermission(r.Context(), permission, audit); err != nil {
				m.deny(r, permission, err)
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAll ensures the current user has all required claims.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.bulk(normalized, func(c Checker, r *http.Request) bool {
		return c.HasPermissions(r.Context(), normalized, true)
	})
}

// RequireAny ensures the current user has at least one of the required claims.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.bulk(normalized, func(c Checker, r *http.Request) bool {
		return c.HasAnyPermissions(r.Context(), normalized, true)
	})
}

func (m Middleware) bulk(perms []string, allowed func(Checker, *http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				err := shared.NewValidationError("permission", "permission is required")
				m.deny(r, "", err)
				httpx.RespondError(w, err)
				return
			}
			checker := m.checker(r)
			if err := checker.IsAuthenticated(); err != nil {
				httpx.RespondError(w, err)
				return
			}
			if !allowed(checker, r) {
				err := &shared.ForbiddenError{Permission: strings.Join(perms, ", ")}
				m.deny(r, err.Permission, err)
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) checker(r *http.Request) Checker {
	if m.Checker != nil {
		if c := m.Checker(r); c != nil {
			return c
		}
	}
	return anonymous{}
}

func (m Middleware) deny(r *http.Request, permission string, err error) {
	if m.Logger != nil {
		m.Logger.Warn("rbac denied", slog.String("path", r.URL.Path), slog.String("permission", permission), slog.Any("error", err))
	}
}

// anonymous denies everything; used when no auth context was installed.
type anonymous struct{}

func (anonymous) IsAuthenticated() error { return shared.ErrUnauthenticated }

func (anonymous) HasPermission(_ context.Context, permission string, _ bool) error {
	if strings.TrimSpace(permission) == "" {
		return shared.NewValidationError("permission", "permission is required")
	}
	return shared.ErrUnauthenticated
}

func (anonymous) HasPermissions(context.Context, []string, bool) bool    { return false }
func (anonymous) HasAnyPermissions(context.Context, []string, bool) bool { return false }

func normalizePermissions(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
