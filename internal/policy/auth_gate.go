package policy

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/gate"
	"github.com/diewo77/go-backoffice/httpx"
	"github.com/diewo77/go-backoffice/internal/metrics"
	"github.com/diewo77/go-backoffice/internal/screens"
)

// AuthGate holds the configured Gate with caching.
// Use this as a central authorization point in your application.
//
// Two guards exist side by side: RequireAdmin checks the role name
// (IsAdminRole) and protects every /admin page, RequireScreen checks the
// per-screen matrix (CanAccess) and protects tenant pages.
type AuthGate struct {
	Gate          *gate.Gate[uuid.UUID]
	CacheResolver *gate.CachedResolver[uuid.UUID]
	Metrics       *metrics.Metrics
}

// NewAuthGate creates a fully configured authorization gate.
// - db: GORM database connection for role lookups
// - cacheSize/cacheTTL: bound and lifetime of cached roles
func NewAuthGate(db *gorm.DB, cacheSize int, cacheTTL time.Duration, m *metrics.Metrics) *AuthGate {
	dbResolver := NewDBRoleResolver(db)
	cachedResolver := gate.NewCachedResolver[uuid.UUID](dbResolver, cacheSize, cacheTTL)
	g := gate.New[uuid.UUID](cachedResolver, gate.CatalogFunc(screens.ScreenID))
	return &AuthGate{
		Gate:          g,
		CacheResolver: cachedResolver,
		Metrics:       m,
	}
}

// RegisterPolicy adds a row-level policy for a resource type.
// Example: authGate.RegisterPolicy("transaction", policy.NewTenantPolicy())
func (ag *AuthGate) RegisterPolicy(resourceType string, p gate.Policy[uuid.UUID]) {
	ag.Gate.Register(resourceType, p)
}

// Authorize checks the row-level policy of resourceType for the session user.
// Returns nil if authorized, gate.ErrUnauthorized otherwise.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return gate.ErrUnauthorized
	}
	return ag.Gate.Authorize(ctx, userID, action, resourceType, resource)
}

// CanAccess checks the session user's screen permission for path.
func (ag *AuthGate) CanAccess(ctx context.Context, path string, action gate.Action) bool {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return false
	}
	return ag.Gate.CanAccess(ctx, userID, path, action)
}

// ResolveScreenPermission returns the session user's grant for path.
func (ag *AuthGate) ResolveScreenPermission(ctx context.Context, path string) (gate.Grant, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return gate.Grant{}, nil
	}
	return ag.Gate.ResolveScreenPermission(ctx, userID, path)
}

// IsAdminRole reports whether the session user's role is named admin.
func (ag *AuthGate) IsAdminRole(ctx context.Context) bool {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return false
	}
	return ag.Gate.IsAdminRole(ctx, userID)
}

// InvalidateUser clears the cache for a specific user.
// Call this when a user's role is changed.
func (ag *AuthGate) InvalidateUser(userID uuid.UUID) {
	ag.CacheResolver.Invalidate(userID)
}

// InvalidateAll clears the entire role cache.
// Call this when role permissions are modified.
func (ag *AuthGate) InvalidateAll() {
	ag.CacheResolver.InvalidateAll()
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusForbidden, httpx.Fail("forbidden"))
		return
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// RequireScreen returns middleware that checks the screen matrix.
// Blocks access if the user's role does not allow action on path.
func (ag *AuthGate) RequireScreen(path string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := ag.CanAccess(r.Context(), path, action)
			ag.Metrics.ObserveAuthz("screen", allowed)
			if !allowed {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin returns middleware that only allows users whose role is named admin.
func (ag *AuthGate) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.UserIDFromContext(r.Context()); !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			allowed := ag.IsAdminRole(r.Context())
			ag.Metrics.ObserveAuthz("admin", allowed)
			if !allowed {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
