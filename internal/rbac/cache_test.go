package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backoffice/backoffice/internal/shared"
)

func newCacheFixture(t *testing.T, roles ...Role) (*CachedRoleFinder, *stubStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := newStubStore(roles...)
	return NewCachedRoleFinder(store, client, time.Minute, nil), store, mr
}

func TestCachedRoleFinderServesFromCache(t *testing.T) {
	finder, store, mr := newCacheFixture(t, Role{ID: "r1", Name: "sales", Claims: []Claim{{ClaimType: "Products", ClaimValue: "Products"}}})
	ctx := context.Background()

	first, err := finder.FindRoleByID(ctx, "r1")
	require.NoError(t, err)
	second, err := finder.FindRoleByID(ctx, "r1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.lookups)
	assert.True(t, mr.Exists(roleCachePrefix+"r1"))
	assert.Equal(t, time.Minute, mr.TTL(roleCachePrefix+"r1"))
}

func TestCachedRoleFinderInvalidate(t *testing.T) {
	finder, store, mr := newCacheFixture(t, Role{ID: "r1", Name: "sales"})
	ctx := context.Background()

	_, err := finder.FindRoleByID(ctx, "r1")
	require.NoError(t, err)
	finder.Invalidate(ctx, "r1")
	assert.False(t, mr.Exists(roleCachePrefix+"r1"))

	_, err = finder.FindRoleByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.lookups)
}

func TestCachedRoleFinderDoesNotCacheMisses(t *testing.T) {
	finder, _, mr := newCacheFixture(t)

	_, err := finder.FindRoleByID(context.Background(), "ghost")
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.False(t, mr.Exists(roleCachePrefix+"ghost"))
}

func TestCachedRoleFinderDegradesWhenRedisDown(t *testing.T) {
	finder, store, mr := newCacheFixture(t, Role{ID: "r1", Name: "sales"})
	mr.Close()

	role, err := finder.FindRoleByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "sales", role.Name)
	assert.Equal(t, 1, store.lookups)
}

func TestCachedRoleFinderFeedsResolver(t *testing.T) {
	finder, _, _ := newCacheFixture(t, Role{ID: "admin", Name: RoleAdmin})
	res, err := NewResolver(finder, nil).Resolve(context.Background(), Grantee{RoleIDs: []string{"admin"}})
	require.NoError(t, err)
	assert.True(t, res.IsAdmin)
	assert.Len(t, res.Claims, shared.CatalogSize())
}

func TestCachedRoleFinderFillIgnoresCallerCancellation(t *testing.T) {
	finder, store, mr := newCacheFixture(t, Role{ID: "r1", Name: "sales"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	role, err := finder.FindRoleByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "sales", role.Name)
	assert.Equal(t, 1, store.lookups)
	assert.True(t, mr.Exists(roleCachePrefix+"r1"))
}
