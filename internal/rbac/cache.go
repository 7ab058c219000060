package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const roleCachePrefix = "rbac:role:"

// CachedRoleFinder memoises role lookups in Redis for the login path.
// Role mutations must call Invalidate so the next login sees the change.
type CachedRoleFinder struct {
	next   RoleFinder
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedRoleFinder wraps next with a Redis cache.
func NewCachedRoleFinder(next RoleFinder, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedRoleFinder {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRoleFinder{next: next, client: client, ttl: ttl, logger: logger}
}

// FindRoleByID serves the role from cache, falling back to the wrapped finder.
// Cache failures degrade to a direct lookup.
func (c *CachedRoleFinder) FindRoleByID(ctx context.Context, id string) (Role, error) {
	if c.client == nil {
		return c.next.FindRoleByID(ctx, id)
	}
	key := roleCachePrefix + id
	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var role Role
		if jsonErr := json.Unmarshal(payload, &role); jsonErr == nil {
			return role, nil
		}
		c.logger.Warn("role cache decode", slog.String("role_id", id))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("role cache get", slog.Any("error", err))
	}

	// The fill is shared by every waiter on id; it is detached from the caller that started it.
	fillCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(id, func() (any, error) {
		role, err := c.next.FindRoleByID(fillCtx, id)
		if err != nil {
			return Role{}, err
		}
		if data, err := json.Marshal(role); err == nil {
			if err := c.client.Set(fillCtx, key, data, c.ttl).Err(); err != nil {
				c.logger.Warn("role cache set", slog.Any("error", err))
			}
		}
		return role, nil
	})
	if err != nil {
		return Role{}, err
	}
	return v.(Role), nil
}

// Invalidate drops the cached copy of a role.
func (c *CachedRoleFinder) Invalidate(ctx context.Context, id string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, roleCachePrefix+id).Err(); err != nil {
		c.logger.Warn("role cache invalidate", slog.String("role_id", id), slog.Any("error", err))
	}
}
