package audit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/backoffice/backoffice/internal/shared"
)

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]AccessLogEntry
	failAll error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]AccessLogEntry)}
}

func (s *memoryStore) InsertAccessLog(_ context.Context, entry AccessLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	s.entries[entry.ID] = entry
	return nil
}

func (s *memoryStore) all() []AccessLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AccessLogEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *memoryStore) ListAccessLogs(_ context.Context, _ ListFilters, offset, limit int) ([]AccessLogEntry, error) {
	all := s.all()
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *memoryStore) CountAccessLogs(_ context.Context, _ ListFilters) (int, error) {
	return len(s.all()), nil
}

func (s *memoryStore) FindAccessLog(_ context.Context, id string) (AccessLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return AccessLogEntry{}, shared.ErrNotFound
	}
	return e, nil
}

func (s *memoryStore) DeleteAccessLog(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *memoryStore) PurgeAccessLogs(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.entries {
		if e.CreatedAt.Before(before) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

type directory map[string]string

func (d directory) LookupUserID(_ context.Context, email string) (string, error) {
	if id, ok := d[email]; ok {
		return id, nil
	}
	return "", errors.New("not found")
}

type countingMetrics struct {
	written, failed, dropped atomic.Int64
}

func (m *countingMetrics) AuditWritten() { m.written.Add(1) }
func (m *countingMetrics) AuditFailed()  { m.failed.Add(1) }
func (m *countingMetrics) AuditDropped() { m.dropped.Add(1) }
