package rbac

import (
	"context"
	"errors"
	"log/slog"

	"github.com/backoffice/backoffice/internal/shared"
)

// RoleFinder looks up a role by identifier. Implementations return
// shared.ErrNotFound for unknown ids.
type RoleFinder interface {
	FindRoleByID(ctx context.Context, id string) (Role, error)
}

// Resolver computes a principal's effective claims from its roles and direct claims.
type Resolver struct {
	roles   RoleFinder
	catalog func() []string
	logger  *slog.Logger
}

// NewResolver constructs a Resolver backed by the static claim catalog.
func NewResolver(roles RoleFinder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{roles: roles, catalog: shared.Catalog, logger: logger}
}

// Resolve returns the deduplicated claim set, role names and admin flags.
// Super-admins short-circuit: their claim list stays empty because every
// check against them succeeds unconditionally.
func (r *Resolver) Resolve(ctx context.Context, g Grantee) (Resolution, error) {
	if g.IsSuperAdmin {
		return Resolution{IsSuperAdmin: true, IsAdmin: true, Claims: []string{}, RoleNames: []string{}}, nil
	}

	set := newClaimSet()
	roleNames := make([]string, 0, len(g.RoleIDs))
	isAdmin := false

	for _, id := range g.RoleIDs {
		role, err := r.roles.FindRoleByID(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				r.logger.Warn("resolve claims: dangling role reference", slog.String("role_id", id))
				continue
			}
			return Resolution{}, err
		}
		roleNames = append(roleNames, role.Name)
		if role.Name == RoleAdmin {
			isAdmin = true
			for _, c := range r.catalog() {
				set.add(c)
			}
			continue
		}
		for _, c := range role.Claims {
			set.add(c.String())
		}
	}

	for _, c := range g.Claims {
		set.add(c.String())
	}

	return Resolution{Claims: set.list(), RoleNames: roleNames, IsAdmin: isAdmin}, nil
}

type claimSet struct {
	index map[string]struct{}
	order []string
}

func newClaimSet() *claimSet {
	return &claimSet{index: make(map[string]struct{})}
}

func (s *claimSet) add(c string) {
	if _, ok := s.index[c]; ok {
		return
	}
	s.index[c] = struct{}{}
	s.order = append(s.order, c)
}

func (s *claimSet) list() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
