package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/backoffice/backoffice/internal/shared"
)

type fakeChecker struct {
	authenticated bool
	claims        map[string]bool
	audits        int
}

func (f *fakeChecker) IsAuthenticated() error {
	if !f.authenticated {
		return shared.ErrUnauthenticated
	}
	return nil
}

func (f *fakeChecker) HasPermission(_ context.Context, permission string, audit bool) error {
	if audit {
		f.audits++
	}
	if err := f.IsAuthenticated(); err != nil {
		return err
	}
	if !f.claims[permission] {
		return &shared.ForbiddenError{Permission: permission}
	}
	return nil
}

func (f *fakeChecker) HasPermissions(_ context.Context, perms []string, audit bool) bool {
	if audit {
		f.audits++
	}
	for _, p := range perms {
		if !f.claims[p] {
			return false
		}
	}
	return f.authenticated
}

func (f *fakeChecker) HasAnyPermissions(_ context.Context, perms []string, audit bool) bool {
	if audit {
		f.audits++
	}
	for _, p := range perms {
		if f.claims[p] {
			return f.authenticated
		}
	}
	return false
}

func serve(mw func(http.Handler) http.Handler) int {
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roles", nil))
	return rec.Code
}

func middlewareFor(c *fakeChecker) Middleware {
	return Middleware{Checker: func(*http.Request) Checker { return c }}
}

func TestRequire(t *testing.T) {
	anon := &fakeChecker{}
	assert.Equal(t, http.StatusUnauthorized, serve(middlewareFor(anon).Require(shared.PermRoles, true)))

	user := &fakeChecker{authenticated: true, claims: map[string]bool{shared.PermRoles: true}}
	m := middlewareFor(user)
	assert.Equal(t, http.StatusNoContent, serve(m.Require(shared.PermRoles, true)))
	assert.Equal(t, http.StatusForbidden, serve(m.Require(shared.PermRoleDelete, false)))
	assert.Equal(t, 1, user.audits)
}

func TestRequireWithoutChecker(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, serve(Middleware{}.Require(shared.PermRoles, true)))
	assert.Equal(t, http.StatusBadRequest, serve(Middleware{}.Require(" ", true)))
	assert.Equal(t, http.StatusUnauthorized, serve(Middleware{}.Authenticated()))
}

func TestRequireAllAndAny(t *testing.T) {
	user := &fakeChecker{authenticated: true, claims: map[string]bool{shared.PermUsers: true}}
	m := middlewareFor(user)

	assert.Equal(t, http.StatusForbidden, serve(m.RequireAll(shared.PermUsers, shared.PermUserDelete)))
	assert.Equal(t, http.StatusNoContent, serve(m.RequireAny(shared.PermUsers, shared.PermUserDelete)))
	assert.Equal(t, 2, user.audits)

	anon := &fakeChecker{}
	assert.Equal(t, http.StatusUnauthorized, serve(middlewareFor(anon).RequireAny(shared.PermUsers)))
	assert.Zero(t, anon.audits)
}

func TestNormalizePermissions(t *testing.T) {
	got := normalizePermissions([]string{" Users:Users", "Users:Users", "", "Roles:Roles"})
	assert.Equal(t, []string{"Users:Users", "Roles:Roles"}, got)
}

func TestBulkGatesRejectBlankPermissionLists(t *testing.T) {
	user := &fakeChecker{authenticated: true, claims: map[string]bool{shared.PermUsers: true}}
	m := middlewareFor(user)
	assert.Equal(t, http.StatusBadRequest, serve(m.RequireAll(" ", "")))
	assert.Equal(t, http.StatusBadRequest, serve(m.RequireAny()))
	assert.Zero(t, user.audits)

	assert.Equal(t, http.StatusBadRequest, serve(Middleware{}.RequireAll("", " ")))
	assert.Equal(t, http.StatusBadRequest, serve(Middleware{}.RequireAny()))
}
