package gate

import (
	"context"
	"strings"
)

// AdminRoleName is the reserved role name checked by IsAdminName.
const AdminRoleName = "admin"

// IsAdminName reports whether name lower-cases to exactly "admin".
func IsAdminName(name string) bool {
	return strings.ToLower(name) == AdminRoleName
}

// Role is a named permission bundle with an optional master bypass.
type Role interface {
	ID() string
	Name() string
	IsMaster() bool
	// Grant returns the grant stored for screenID, if any.
	Grant(screenID string) (Grant, bool)
}

// RoleResolver resolves a user to their role.
// A nil Role with a nil error means the user has no role.
type RoleResolver[U any] interface {
	Resolve(ctx context.Context, user U) (Role, error)
}

// Catalog maps a screen path to its stable screen id.
type Catalog interface {
	ScreenID(path string) (string, bool)
}

// CatalogFunc adapts a function to the Catalog interface.
type CatalogFunc func(path string) (string, bool)

func (f CatalogFunc) ScreenID(path string) (string, bool) { return f(path) }

// StaticRole is a simple in-memory role implementation.
// Useful for testing or static configuration.
type StaticRole struct {
	id     string
	name   string
	master bool
	grants map[string]Grant
}

// NewStaticRole creates a role without any screen grants.
func NewStaticRole(id, name string, master bool) *StaticRole {
	return &StaticRole{id: id, name: name, master: master, grants: make(map[string]Grant)}
}

// With stores a grant for screenID and returns the role for chaining.
func (r *StaticRole) With(screenID string, g Grant) *StaticRole {
	r.grants[screenID] = g
	return r
}

func (r *StaticRole) ID() string     { return r.id }
func (r *StaticRole) Name() string   { return r.name }
func (r *StaticRole) IsMaster() bool { return r.master }

func (r *StaticRole) Grant(screenID string) (Grant, bool) {
	g, ok := r.grants[screenID]
	return g, ok
}

// StaticResolver is a simple in-memory resolver for testing.
type StaticResolver[U comparable] struct {
	roles map[U]Role
}

// NewStaticResolver creates a resolver with predefined user-role mappings.
func NewStaticResolver[U comparable]() *StaticResolver[U] {
	return &StaticResolver[U]{roles: make(map[U]Role)}
}

// Set assigns a role to a user.
func (r *StaticResolver[U]) Set(user U, role Role) {
	r.roles[user] = role
}

// Resolve returns the role for the given user.
func (r *StaticResolver[U]) Resolve(_ context.Context, user U) (Role, error) {
	if role, ok := r.roles[user]; ok {
		return role, nil
	}
	return nil, nil
}
