package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/backoffice/backoffice/internal/shared"
)

// Service coordinates access log administration.
type Service struct {
	store      Store
	maxPerPage int
}

// NewService constructs the access log service.
func NewService(store Store, maxPerPage int) *Service {
	return &Service{store: store, maxPerPage: maxPerPage}
}

// List returns one page of entries matching filters.
func (s *Service) List(ctx context.Context, filters ListFilters) (LogPage, error) {
	if s.store == nil {
		return LogPage{}, fmt.Errorf("audit: repository not configured")
	}
	total, err := s.store.CountAccessLogs(ctx, filters)
	if err != nil {
		return LogPage{}, err
	}
	paging := shared.NewPagination(filters.Page, filters.PerPage, s.maxPerPage, total)
	logs, err := s.store.ListAccessLogs(ctx, filters, paging.Offset(), paging.PerPage)
	if err != nil {
		return LogPage{}, err
	}
	if logs == nil {
		logs = []AccessLogEntry{}
	}
	return LogPage{Pagination: paging, Logs: logs}, nil
}

// Get fetches one entry.
func (s *Service) Get(ctx context.Context, id string) (AccessLogEntry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return AccessLogEntry{}, shared.ErrNotFound
	}
	return s.store.FindAccessLog(ctx, id)
}

// Delete removes one entry and returns it as it was.
func (s *Service) Delete(ctx context.Context, id string) (AccessLogEntry, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return AccessLogEntry{}, err
	}
	if err := s.store.DeleteAccessLog(ctx, entry.ID); err != nil {
		return AccessLogEntry{}, err
	}
	return entry, nil
}

// Purge removes every entry created before the cut-off.
func (s *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	if before.IsZero() {
		return 0, shared.NewValidationError("before", "before is required")
	}
	return s.store.PurgeAccessLogs(ctx, before.UTC())
}
