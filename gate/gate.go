// Package gate provides screen-level authorization.
//
// A Gate resolves a user to a Role and answers view/edit/delete questions
// against the role's per-screen Grant matrix. Master roles bypass the matrix.
// The coarse IsAdminRole check is kept separate from the matrix: admin pages
// are guarded by the role name while tenant pages use CanAccess.
//
// Resource-level Policies can also be registered for row checks (tenant
// ownership and the like). The package has no dependencies on domain models.
package gate

import "context"

// Gate is the central authorization checkpoint.
// U is the user/subject type (must be comparable for zero-value check).
type Gate[U comparable] struct {
	resolver RoleResolver[U]
	catalog  Catalog
	policies map[string]Policy[U]
}

// New creates a Gate backed by resolver for roles and catalog for screen paths.
func New[U comparable](resolver RoleResolver[U], catalog Catalog) *Gate[U] {
	return &Gate[U]{
		resolver: resolver,
		catalog:  catalog,
		policies: make(map[string]Policy[U]),
	}
}

// Register adds a policy for a given resource type (e.g., "transaction").
// Overwrites any existing policy for that type.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// Role returns the user's role. A zero user yields ErrUnauthorized and a
// user without a role yields ErrNoRole.
func (g *Gate[U]) Role(ctx context.Context, user U) (Role, error) {
	var zero U
	if user == zero {
		return nil, ErrUnauthorized
	}
	role, err := g.resolver.Resolve(ctx, user)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrNoRole
	}
	return role, nil
}

// ResolveScreenPermission returns the grant the user holds on the screen at
// path. Master roles get FullGrant. Missing role, unknown path or missing row
// give an empty grant. Only resolver failures are returned as errors.
func (g *Gate[U]) ResolveScreenPermission(ctx context.Context, user U, path string) (Grant, error) {
	role, err := g.Role(ctx, user)
	switch err {
	case nil:
	case ErrUnauthorized, ErrNoRole:
		return Grant{}, nil
	default:
		return Grant{}, err
	}
	if role.IsMaster() {
		return FullGrant(), nil
	}
	screenID, ok := g.catalog.ScreenID(path)
	if !ok {
		return Grant{}, nil
	}
	grant, _ := role.Grant(screenID)
	return grant, nil
}

// CanAccess reports whether user may perform action on the screen at path.
// Resolver errors deny.
func (g *Gate[U]) CanAccess(ctx context.Context, user U, path string, action Action) bool {
	grant, err := g.ResolveScreenPermission(ctx, user, path)
	if err != nil {
		return false
	}
	return grant.Allows(action)
}

// IsAdminRole reports whether the user's role is named "admin", ignoring case.
// It does not look at the screen matrix or the master flag.
func (g *Gate[U]) IsAdminRole(ctx context.Context, user U) bool {
	role, err := g.Role(ctx, user)
	if err != nil {
		return false
	}
	return IsAdminName(role.Name())
}

// Authorize checks a registered resource policy and returns an error if denied.
// Returns ErrUnauthorized for zero-value user or denied action;
// returns ErrNoPolicyDefined if resourceType has no registered policy.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthorized
	}
	p, ok := g.policies[resourceType]
	if !ok {
		return ErrNoPolicyDefined
	}
	if !p.Can(ctx, user, action, resource) {
		return ErrUnauthorized
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}
