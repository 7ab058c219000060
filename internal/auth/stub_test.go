package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/backoffice/backoffice/internal/audit"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/shared"
)

type stubUsers struct {
	mu    sync.Mutex
	users map[string]User
}

func newStubUsers(users ...User) *stubUsers {
	s := &stubUsers{users: make(map[string]User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *stubUsers) FindByEmail(ctx context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, shared.ErrNotFound
}

func (s *stubUsers) FindByID(ctx context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (s *stubUsers) CountByEmail(ctx context.Context, email string) (int, error) {
	_, err := s.FindByEmail(ctx, email)
	if err != nil {
		return 0, nil
	}
	return 1, nil
}

func (s *stubUsers) Create(ctx context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = uuid.NewString()
	s.users[user.ID] = user
	return user, nil
}

func (s *stubUsers) Update(ctx context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return User{}, shared.ErrNotFound
	}
	s.users[user.ID] = user
	return user, nil
}

type stubRoles map[string]rbac.Role

func (s stubRoles) FindRoleByID(ctx context.Context, id string) (rbac.Role, error) {
	r, ok := s[id]
	if !ok {
		return rbac.Role{}, shared.ErrNotFound
	}
	return r, nil
}

func (s stubRoles) FindRoleByName(ctx context.Context, name string) (rbac.Role, error) {
	for _, r := range s {
		if r.Name == name {
			return r, nil
		}
	}
	return rbac.Role{}, shared.ErrNotFound
}

type mail struct {
	to, subject, template string
	data                  map[string]string
}

type stubNotifier struct {
	sent []mail
}

func (n *stubNotifier) EnqueueSendEmail(ctx context.Context, to, subject, template string, data map[string]string) error {
	n.sent = append(n.sent, mail{to: to, subject: subject, template: template, data: data})
	return nil
}

type captureRecorder struct {
	mu      sync.Mutex
	entries []audit.AccessLogEntry
}

func (c *captureRecorder) Record(entry audit.AccessLogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type countingDecisions map[string]int

func (d countingDecisions) AuthzDecision(result string) { d[result]++ }
