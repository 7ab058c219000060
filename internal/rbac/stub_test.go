package rbac

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/backoffice/backoffice/internal/shared"
)

type stubStore struct {
	mu      sync.Mutex
	roles   map[string]Role
	lookups int
	findErr error
}

func newStubStore(roles ...Role) *stubStore {
	s := &stubStore{roles: make(map[string]Role)}
	for _, r := range roles {
		s.roles[r.ID] = r
	}
	return s
}

func (s *stubStore) FindRoleByID(ctx context.Context, id string) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.findErr != nil {
		return Role{}, s.findErr
	}
	r, ok := s.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return r, nil
}

func (s *stubStore) FindRoleByName(ctx context.Context, name string) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return Role{}, shared.ErrNotFound
}

func (s *stubStore) ListRoles(ctx context.Context, params ListParams) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if params.Offset >= len(out) {
		return []Role{}, nil
	}
	out = out[params.Offset:]
	if params.Limit > 0 && params.Limit < len(out) {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *stubStore) CountRoles(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.roles), nil
}

func (s *stubStore) CreateRole(ctx context.Context, role Role) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role.ID = uuid.NewString()
	s.roles[role.ID] = role
	return role, nil
}

func (s *stubStore) UpdateRole(ctx context.Context, role Role) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.ID]; !ok {
		return Role{}, shared.ErrNotFound
	}
	s.roles[role.ID] = role
	return role, nil
}

func (s *stubStore) DeleteRole(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.roles, id)
	return nil
}

type recordingInvalidator struct {
	ids []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, id string) {
	r.ids = append(r.ids, id)
}

type stubMembers map[string][]Member

func (s stubMembers) ListRoleMembers(ctx context.Context, roleID string) ([]Member, error) {
	return s[roleID], nil
}
