package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backoffice/backoffice/internal/shared"
)

func seedStore(t *testing.T, n int) (*memoryStore, time.Time) {
	t.Helper()
	store := newMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, store.InsertAccessLog(context.Background(), AccessLogEntry{
			IPAddress: "10.0.0.1",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	return store, base
}

func TestServiceListPaginates(t *testing.T) {
	store, _ := seedStore(t, 5)
	svc := NewService(store, 2)

	page, err := svc.List(context.Background(), ListFilters{Page: 3, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.PerPage)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.Len(t, page.Logs, 1)

	page, err = svc.List(context.Background(), ListFilters{Page: 9})
	require.NoError(t, err)
	assert.NotNil(t, page.Logs)
	assert.Empty(t, page.Logs)
}

func TestServiceGetAndDelete(t *testing.T) {
	store, _ := seedStore(t, 1)
	svc := NewService(store, 10)
	id := store.all()[0].ID

	_, err := svc.Get(context.Background(), "  ")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	deleted, err := svc.Delete(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, deleted.ID)

	_, err = svc.Get(context.Background(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Delete(context.Background(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServicePurge(t *testing.T) {
	store, base := seedStore(t, 4)
	svc := NewService(store, 10)

	_, err := svc.Purge(context.Background(), time.Time{})
	assert.ErrorIs(t, err, shared.ErrValidation)

	n, err := svc.Purge(context.Background(), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Len(t, store.all(), 2)
}
