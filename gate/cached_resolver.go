package gate

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCacheSize bounds the number of users kept by NewCachedResolver when
// size is not positive.
const DefaultCacheSize = 1024

// CachedResolver wraps a RoleResolver with a size-bounded TTL cache.
// This avoids hitting the database on every authorization check.
type CachedResolver[U comparable] struct {
	inner RoleResolver[U]
	cache *expirable.LRU[U, cachedRole]
}

// cachedRole lets a nil role (user without role) be cached too.
type cachedRole struct {
	role Role
}

// NewCachedResolver wraps a resolver with caching.
// ttl is how long roles are cached before re-fetching.
func NewCachedResolver[U comparable](inner RoleResolver[U], size int, ttl time.Duration) *CachedResolver[U] {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &CachedResolver[U]{
		inner: inner,
		cache: expirable.NewLRU[U, cachedRole](size, nil, ttl),
	}
}

// Resolve returns the role for the given user, using cache if available.
// Errors are never cached.
func (r *CachedResolver[U]) Resolve(ctx context.Context, user U) (Role, error) {
	if entry, ok := r.cache.Get(user); ok {
		return entry.role, nil
	}
	role, err := r.inner.Resolve(ctx, user)
	if err != nil {
		return nil, err
	}
	r.cache.Add(user, cachedRole{role: role})
	return role, nil
}

// Invalidate removes a user from the cache.
// Call this when a user's role assignment changes.
func (r *CachedResolver[U]) Invalidate(user U) {
	r.cache.Remove(user)
}

// InvalidateAll clears the entire cache.
// Call this when role permissions are modified.
func (r *CachedResolver[U]) InvalidateAll() {
	r.cache.Purge()
}

// Len returns the number of cached entries.
func (r *CachedResolver[U]) Len() int {
	return r.cache.Len()
}
