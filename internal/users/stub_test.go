package users

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/backoffice/backoffice/internal/auth"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

// memoryStore backs both Store and auth.Repository.
type memoryStore struct {
	mu      sync.Mutex
	users   map[string]auth.User
	deleted map[string]bool
	filters []Filters
}

func newMemoryStore(users ...auth.User) *memoryStore {
	s := &memoryStore{users: make(map[string]auth.User), deleted: make(map[string]bool)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memoryStore) live(filters Filters) []auth.User {
	var out []auth.User
	for id, u := range s.users {
		if s.deleted[id] {
			continue
		}
		if u.IsSuperAdmin && !filters.IncludeSuperAdmin {
			continue
		}
		if filters.Document != "" && u.Document != filters.Document {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *memoryStore) ListUsers(ctx context.Context, filters Filters, params ListParams) ([]auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, filters)
	all := s.live(filters)
	if params.Offset >= len(all) {
		return []auth.User{}, nil
	}
	end := params.Offset + params.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[params.Offset:end], nil
}

func (s *memoryStore) CountUsers(ctx context.Context, filters Filters) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live(filters)), nil
}

func (s *memoryStore) Dropdown(ctx context.Context) ([]auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(Filters{IncludeSuperAdmin: true}), nil
}

func (s *memoryStore) FindManyByRoleID(ctx context.Context, roleID string) ([]auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.User
	for _, u := range s.live(Filters{IncludeSuperAdmin: true}) {
		for _, id := range u.RoleIDs {
			if id == roleID {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (s *memoryStore) SoftDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok || s.deleted[id] {
		return shared.ErrNotFound
	}
	s.deleted[id] = true
	return nil
}

func (s *memoryStore) FindByEmail(ctx context.Context, email string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if !s.deleted[id] && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return auth.User{}, shared.ErrNotFound
}

func (s *memoryStore) FindByID(ctx context.Context, id string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || s.deleted[id] {
		return auth.User{}, shared.ErrNotFound
	}
	return u, nil
}

func (s *memoryStore) CountByEmail(ctx context.Context, email string) (int, error) {
	if _, err := s.FindByEmail(ctx, email); err != nil {
		return 0, nil
	}
	return 1, nil
}

func (s *memoryStore) Create(ctx context.Context, u auth.User) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = uuid.NewString()
	s.users[u.ID] = u
	return u, nil
}

func (s *memoryStore) Update(ctx context.Context, u auth.User) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return auth.User{}, shared.ErrNotFound
	}
	s.users[u.ID] = u
	return u, nil
}

type roleMap map[string]rbac.Role

func (m roleMap) FindRoleByID(ctx context.Context, id string) (rbac.Role, error) {
	r, ok := m[id]
	if !ok {
		return rbac.Role{}, shared.ErrNotFound
	}
	return r, nil
}

type fakeCaller struct {
	id         string
	superAdmin bool
}

func (c fakeCaller) CurrentUserID() string { return c.id }
func (c fakeCaller) IsSuperAdmin() bool    { return c.superAdmin }
