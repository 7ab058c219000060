package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backoffice/backoffice/internal/shared"
)

func TestCreateRoleSlugifiesAndDedupesClaims(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil, 100)

	detail, err := svc.CreateRole(context.Background(), RoleInput{
		Name:        "Gerente Comercial",
		Description: "Sales managers",
		Claims: []Claim{
			{ClaimType: "Products", ClaimValue: "Products"},
			{ClaimType: "Products", ClaimValue: "Products"},
			{ClaimType: "Products", ClaimValue: "Create"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "gerente-comercial", detail.Name)
	assert.Len(t, detail.Claims, 2)
	assert.NotNil(t, detail.Users)
}

func TestCreateRoleRejectsDuplicateName(t *testing.T) {
	store := newStubStore(Role{ID: "r1", Name: "sales"})
	svc := NewService(store, nil, nil, 100)

	_, err := svc.CreateRole(context.Background(), RoleInput{Name: "Sales", Description: "dup"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestCreateRoleValidation(t *testing.T) {
	svc := NewService(newStubStore(), nil, nil, 100)

	_, err := svc.CreateRole(context.Background(), RoleInput{Name: "", Description: ""})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "description")

	_, err = svc.CreateRole(context.Background(), RoleInput{
		Name:        "ops",
		Description: "ops",
		Claims:      []Claim{{ClaimType: "Products", ClaimValue: ""}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateRoleReservedCannotBeRenamed(t *testing.T) {
	store := newStubStore(Role{ID: "a", Name: RoleAdmin, Description: "Administrators"})
	cache := &recordingInvalidator{}
	svc := NewService(store, nil, cache, 100)

	_, err := svc.UpdateRole(context.Background(), "a", RoleInput{Name: "root", Description: "x"})
	require.ErrorIs(t, err, shared.ErrReservedRole)

	detail, err := svc.UpdateRole(context.Background(), "a", RoleInput{Name: "Admin", Description: "All access"})
	require.NoError(t, err)
	assert.Equal(t, "All access", detail.Description)
	assert.Equal(t, []string{"a"}, cache.ids)
}

func TestUpdateRoleRejectsNameOfAnotherRole(t *testing.T) {
	store := newStubStore(Role{ID: "a", Name: "sales"}, Role{ID: "b", Name: "support"})
	svc := NewService(store, nil, nil, 100)

	_, err := svc.UpdateRole(context.Background(), "b", RoleInput{Name: "sales", Description: "x"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestDeleteRole(t *testing.T) {
	store := newStubStore(
		Role{ID: "c", Name: RoleCommon},
		Role{ID: "s", Name: "sales"},
	)
	cache := &recordingInvalidator{}
	members := stubMembers{"s": {{ID: "u1", Name: "Ana", Email: "ana@example.com"}}}
	svc := NewService(store, members, cache, 100)

	_, err := svc.DeleteRole(context.Background(), "c")
	require.ErrorIs(t, err, shared.ErrReservedRole)

	detail, err := svc.DeleteRole(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, "sales", detail.Name)
	assert.Len(t, detail.Users, 1)
	assert.Equal(t, []string{"s"}, cache.ids)

	_, err = svc.DeleteRole(context.Background(), "s")
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestListRolesPaginates(t *testing.T) {
	store := newStubStore(
		Role{ID: "1", Name: "a"},
		Role{ID: "2", Name: "b"},
		Role{ID: "3", Name: "c"},
	)
	svc := NewService(store, nil, nil, 2)

	page, err := svc.ListRoles(context.Background(), ListRolesRequest{Page: 2, PerPage: 50})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.PerPage)
	assert.Equal(t, 3, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	require.Len(t, page.Roles, 1)
	assert.Equal(t, "c", page.Roles[0].Name)
}

func TestSyncAdminClaimsWritesCatalog(t *testing.T) {
	store := newStubStore(Role{ID: "a", Name: RoleAdmin})
	svc := NewService(store, nil, nil, 100)

	require.NoError(t, svc.SyncAdminClaims(context.Background()))
	role, err := store.FindRoleByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, role.Claims, shared.CatalogSize())
}

func TestPoliciesGroupsCatalog(t *testing.T) {
	svc := NewService(newStubStore(), nil, nil, 100)
	total := 0
	for _, m := range svc.Policies() {
		assert.NotEmpty(t, m.Module)
		total += len(m.Policies)
	}
	assert.Equal(t, shared.CatalogSize(), total)
}
