package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/backoffice/backoffice/internal/auth"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

// Caller is the part of the request auth context user administration needs.
type Caller interface {
	CurrentUserID() string
	IsSuperAdmin() bool
}

// Service handles user administration.
type Service struct {
	store      Store
	accounts   auth.Repository
	roles      rbac.RoleFinder
	validate   *validator.Validate
	hashCost   int
	maxPerPage int
}

// NewService builds Service instance.
func NewService(store Store, accounts auth.Repository, roles rbac.RoleFinder, hashCost, maxPerPage int) *Service {
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	return &Service{
		store:      store,
		accounts:   accounts,
		roles:      roles,
		validate:   shared.NewValidator(),
		hashCost:   hashCost,
		maxPerPage: maxPerPage,
	}
}

// List returns a page of users. Super-admin accounts are only listed for
// super-admin callers.
func (s *Service) List(ctx context.Context, caller Caller, req ListRequest) (UserPage, error) {
	req.IncludeSuperAdmin = caller != nil && caller.IsSuperAdmin()
	if doc := strings.TrimSpace(req.Document); doc != "" {
		req.Document = digitsOnly(doc)
		if req.Document == "" {
			return UserPage{Pagination: shared.NewPagination(req.Page, req.PerPage, s.maxPerPage, 0), Users: []UserDetail{}}, nil
		}
	}
	total, err := s.store.CountUsers(ctx, req.Filters)
	if err != nil {
		return UserPage{}, err
	}
	paging := shared.NewPagination(req.Page, req.PerPage, s.maxPerPage, total)
	list, err := s.store.ListUsers(ctx, req.Filters, ListParams{
		Offset:   paging.Offset(),
		Limit:    paging.PerPage,
		SortBy:   req.SortBy,
		SortDesc: req.SortDesc,
	})
	if err != nil {
		return UserPage{}, err
	}
	details := make([]UserDetail, 0, len(list))
	for _, u := range list {
		d, err := s.withRoles(ctx, u)
		if err != nil {
			return UserPage{}, err
		}
		details = append(details, d)
	}
	return UserPage{Pagination: paging, Users: details}, nil
}

// Dropdown returns every user ordered by name.
func (s *Service) Dropdown(ctx context.Context) ([]auth.User, error) {
	return s.store.Dropdown(ctx)
}

// Get fetches a user with its roles.
func (s *Service) Get(ctx context.Context, id string) (UserDetail, error) {
	u, err := s.accounts.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return UserDetail{}, err
	}
	return s.withRoles(ctx, u)
}

// Create adds a user. Only super-admins may create super-admins.
func (s *Service) Create(ctx context.Context, caller Caller, in UserInput) (UserDetail, error) {
	in, err := s.normalize(caller, in)
	if err != nil {
		return UserDetail{}, err
	}
	if in.Password == "" {
		return UserDetail{}, shared.NewValidationError("password", "password is required")
	}
	if n, err := s.accounts.CountByEmail(ctx, in.Email); err != nil {
		return UserDetail{}, err
	} else if n > 0 {
		return UserDetail{}, fmt.Errorf("users: email already in use: %w", shared.ErrDuplicate)
	}
	roleIDs, err := s.existingRoles(ctx, in.Roles)
	if err != nil {
		return UserDetail{}, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return UserDetail{}, err
	}
	u := auth.User{PasswordHash: hash, RoleIDs: roleIDs}
	apply(&u, in)
	created, err := s.accounts.Create(ctx, u)
	if err != nil {
		return UserDetail{}, err
	}
	return s.withRoles(ctx, created)
}

// Update edits a user. Only super-admins may grant super-admin. A nil Roles
// list keeps the current assignments.
func (s *Service) Update(ctx context.Context, caller Caller, id string, in UserInput) (UserDetail, error) {
	u, err := s.accounts.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return UserDetail{}, err
	}
	in, err = s.normalize(caller, in)
	if err != nil {
		return UserDetail{}, err
	}
	if !strings.EqualFold(u.Email, in.Email) {
		n, err := s.accounts.CountByEmail(ctx, in.Email)
		if err != nil {
			return UserDetail{}, err
		}
		if n > 0 {
			return UserDetail{}, fmt.Errorf("users: email already in use: %w", shared.ErrDuplicate)
		}
	}
	if in.Roles != nil {
		if u.RoleIDs, err = s.existingRoles(ctx, in.Roles); err != nil {
			return UserDetail{}, err
		}
	}
	if in.Password != "" {
		if u.PasswordHash, err = s.hash(in.Password); err != nil {
			return UserDetail{}, err
		}
	}
	apply(&u, in)
	updated, err := s.accounts.Update(ctx, u)
	if err != nil {
		return UserDetail{}, err
	}
	return s.withRoles(ctx, updated)
}

// Delete soft-deletes a user and returns it as it was. Callers cannot delete
// their own account.
func (s *Service) Delete(ctx context.Context, caller Caller, id string) (UserDetail, error) {
	id = strings.TrimSpace(id)
	if caller != nil && caller.CurrentUserID() == id {
		return UserDetail{}, shared.NewValidationError("id", "you cannot delete your own account")
	}
	u, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return UserDetail{}, err
	}
	if u.IsSuperAdmin && (caller == nil || !caller.IsSuperAdmin()) {
		return UserDetail{}, &shared.ForbiddenError{Permission: shared.PermUserDelete}
	}
	detail, err := s.withRoles(ctx, u)
	if err != nil {
		return UserDetail{}, err
	}
	if err := s.store.SoftDelete(ctx, u.ID); err != nil {
		return UserDetail{}, err
	}
	return detail, nil
}

func (s *Service) normalize(caller Caller, in UserInput) (UserInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Surname = strings.TrimSpace(in.Surname)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Password = strings.TrimSpace(in.Password)
	in.Document = digitsOnly(in.Document)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return in, err
	}
	if in.IsSuperAdmin && (caller == nil || !caller.IsSuperAdmin()) {
		return in, shared.NewValidationError("isSuperAdmin", "only a super-admin can grant super-admin")
	}
	claims := make([]rbac.Claim, 0, len(in.Claims))
	seen := make(map[string]struct{}, len(in.Claims))
	for _, c := range in.Claims {
		parsed, ok := rbac.ParseClaim(c.String())
		if !ok {
			return in, shared.NewValidationError("claims", fmt.Sprintf("invalid claim %q", c.String()))
		}
		if _, dup := seen[parsed.String()]; dup {
			continue
		}
		seen[parsed.String()] = struct{}{}
		claims = append(claims, parsed)
	}
	in.Claims = claims
	return in, nil
}

// existingRoles keeps the ids that resolve to a role, in order, without duplicates.
func (s *Service) existingRoles(ctx context.Context, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		if _, err := s.roles.FindRoleByID(ctx, id); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Service) withRoles(ctx context.Context, u auth.User) (UserDetail, error) {
	detail := UserDetail{User: u, Roles: []rbac.Role{}}
	for _, id := range u.RoleIDs {
		role, err := s.roles.FindRoleByID(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return UserDetail{}, err
		}
		detail.Roles = append(detail.Roles, role)
	}
	return detail, nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("users: hash password: %w", err)
	}
	return string(hash), nil
}

func apply(u *auth.User, in UserInput) {
	u.Name = in.Name
	u.Surname = in.Surname
	u.Document = in.Document
	u.BirthDate = in.BirthDate
	u.Email = in.Email
	u.Phone = strings.TrimSpace(in.Phone)
	u.Mobile = strings.TrimSpace(in.Mobile)
	u.IsActivated = in.IsActivated
	u.IsSuperAdmin = in.IsSuperAdmin
	u.Claims = in.Claims
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
