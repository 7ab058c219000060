package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/backoffice/backoffice/internal/shared"
)

// Member is a user listed under a role.
type Member struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

// MemberFinder lists users referencing a role.
type MemberFinder interface {
	ListRoleMembers(ctx context.Context, roleID string) ([]Member, error)
}

// Invalidator drops cached copies of a role after it changes.
type Invalidator interface {
	Invalidate(ctx context.Context, id string)
}

// RoleDetail is a role together with the users that reference it.
type RoleDetail struct {
	Role
	Users []Member `json:"users"`
}

// RoleInput is the payload for creating or updating a role.
type RoleInput struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Claims      []Claim `json:"claims" validate:"dive"`
}

// ListRolesRequest selects a page of roles.
type ListRolesRequest struct {
	Page     int
	PerPage  int
	SortBy   string
	SortDesc bool
}

// RolePage is one page of roles.
type RolePage struct {
	Pagination shared.Pagination `json:"pagination"`
	Roles      []RoleDetail      `json:"roles"`
}

// Service orchestrates role administration.
type Service struct {
	store      Store
	members    MemberFinder
	cache      Invalidator
	validate   *validator.Validate
	maxPerPage int
}

// NewService constructs a Service. members and cache may be nil.
func NewService(store Store, members MemberFinder, cache Invalidator, maxPerPage int) *Service {
	return &Service{
		store:      store,
		members:    members,
		cache:      cache,
		validate:   shared.NewValidator(),
		maxPerPage: maxPerPage,
	}
}

// ListRoles returns a page of roles with their members.
func (s *Service) ListRoles(ctx context.Context, req ListRolesRequest) (RolePage, error) {
	total, err := s.store.CountRoles(ctx)
	if err != nil {
		return RolePage{}, err
	}
	paging := shared.NewPagination(req.Page, req.PerPage, s.maxPerPage, total)
	roles, err := s.store.ListRoles(ctx, ListParams{
		Offset:   paging.Offset(),
		Limit:    paging.PerPage,
		SortBy:   req.SortBy,
		SortDesc: req.SortDesc,
	})
	if err != nil {
		return RolePage{}, err
	}
	details := make([]RoleDetail, 0, len(roles))
	for _, role := range roles {
		detail, err := s.withMembers(ctx, role)
		if err != nil {
			return RolePage{}, err
		}
		details = append(details, detail)
	}
	return RolePage{Pagination: paging, Roles: details}, nil
}

// Dropdown returns every role ordered by name.
func (s *Service) Dropdown(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx, ListParams{SortBy: "name"})
}

// GetRole fetches a role with its members.
func (s *Service) GetRole(ctx context.Context, id string) (RoleDetail, error) {
	role, err := s.store.FindRoleByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return RoleDetail{}, err
	}
	return s.withMembers(ctx, role)
}

// CreateRole stores a new role under a slug-normalized unique name.
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (RoleDetail, error) {
	in, err := s.normalize(in)
	if err != nil {
		return RoleDetail{}, err
	}
	if _, err := s.store.FindRoleByName(ctx, in.Name); err == nil {
		return RoleDetail{}, fmt.Errorf("rbac: role %q: %w", in.Name, shared.ErrDuplicate)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return RoleDetail{}, err
	}
	role, err := s.store.CreateRole(ctx, Role{Name: in.Name, Description: in.Description, Claims: in.Claims})
	if err != nil {
		return RoleDetail{}, err
	}
	return s.withMembers(ctx, role)
}

// UpdateRole replaces a role's fields. Reserved roles keep their name.
func (s *Service) UpdateRole(ctx context.Context, id string, in RoleInput) (RoleDetail, error) {
	role, err := s.store.FindRoleByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return RoleDetail{}, err
	}
	in, err = s.normalize(in)
	if err != nil {
		return RoleDetail{}, err
	}
	if role.IsReserved() && in.Name != role.Name {
		return RoleDetail{}, fmt.Errorf("rbac: rename %q: %w", role.Name, shared.ErrReservedRole)
	}
	if in.Name != role.Name {
		if other, err := s.store.FindRoleByName(ctx, in.Name); err == nil && other.ID != role.ID {
			return RoleDetail{}, fmt.Errorf("rbac: role %q: %w", in.Name, shared.ErrDuplicate)
		} else if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return RoleDetail{}, err
		}
	}
	role.Name = in.Name
	role.Description = in.Description
	role.Claims = in.Claims
	updated, err := s.store.UpdateRole(ctx, role)
	if err != nil {
		return RoleDetail{}, err
	}
	s.invalidate(ctx, updated.ID)
	return s.withMembers(ctx, updated)
}

// DeleteRole removes a non-reserved role and returns it as it was.
func (s *Service) DeleteRole(ctx context.Context, id string) (RoleDetail, error) {
	role, err := s.store.FindRoleByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return RoleDetail{}, err
	}
	if role.IsReserved() {
		return RoleDetail{}, fmt.Errorf("rbac: delete %q: %w", role.Name, shared.ErrReservedRole)
	}
	detail, err := s.withMembers(ctx, role)
	if err != nil {
		return RoleDetail{}, err
	}
	if err := s.store.DeleteRole(ctx, role.ID); err != nil {
		return RoleDetail{}, err
	}
	s.invalidate(ctx, role.ID)
	return detail, nil
}

// SyncAdminClaims rewrites the admin role's stored claims to match the catalog.
// The stored rows are informational; evaluation always uses the catalog.
func (s *Service) SyncAdminClaims(ctx context.Context) error {
	role, err := s.store.FindRoleByName(ctx, RoleAdmin)
	if err != nil {
		return fmt.Errorf("rbac: sync admin claims: %w", err)
	}
	role.Claims = CatalogClaims()
	if _, err := s.store.UpdateRole(ctx, role); err != nil {
		return fmt.Errorf("rbac: sync admin claims: %w", err)
	}
	s.invalidate(ctx, role.ID)
	return nil
}

// Policies returns the claim catalog grouped by module.
func (s *Service) Policies() []shared.PolicyModule {
	return shared.CatalogModules()
}

// CatalogClaims returns the catalog as Claim values.
func CatalogClaims() []Claim {
	catalog := shared.Catalog()
	claims := make([]Claim, 0, len(catalog))
	for _, c := range catalog {
		if claim, ok := ParseClaim(c); ok {
			claims = append(claims, claim)
		}
	}
	return claims
}

func (s *Service) normalize(in RoleInput) (RoleInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return in, err
	}
	in.Name = Slugify(in.Name)
	if in.Name == "" {
		return in, shared.NewValidationError("name", "name must contain letters or digits")
	}
	claims := make([]Claim, 0, len(in.Claims))
	seen := make(map[string]struct{}, len(in.Claims))
	verr := &shared.ValidationError{}
	for _, c := range in.Claims {
		parsed, ok := ParseClaim(c.String())
		if !ok {
			verr.Add("claims", fmt.Sprintf("invalid claim %q", c.String()))
			continue
		}
		if _, dup := seen[parsed.String()]; dup {
			continue
		}
		seen[parsed.String()] = struct{}{}
		claims = append(claims, parsed)
	}
	if !verr.Empty() {
		return in, verr
	}
	in.Claims = claims
	return in, nil
}

func (s *Service) withMembers(ctx context.Context, role Role) (RoleDetail, error) {
	detail := RoleDetail{Role: role, Users: []Member{}}
	if s.members == nil {
		return detail, nil
	}
	members, err := s.members.ListRoleMembers(ctx, role.ID)
	if err != nil {
		return RoleDetail{}, err
	}
	if members != nil {
		detail.Users = members
	}
	return detail, nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
}
