package policy

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/gate"
	"github.com/diewo77/go-backoffice/internal/models"
)

// DBRoleResolver fetches user roles from the database.
// It implements the gate.RoleResolver interface for UUID user IDs.
type DBRoleResolver struct {
	DB *gorm.DB
}

// NewDBRoleResolver creates a new database-backed role resolver.
func NewDBRoleResolver(db *gorm.DB) *DBRoleResolver {
	return &DBRoleResolver{DB: db}
}

// Resolve looks up the user's profile, preloading role and permissions.
// Returns nil if the user has no profile or no role assigned.
func (r *DBRoleResolver) Resolve(ctx context.Context, userID uuid.UUID) (gate.Role, error) {
	var profile models.Profile
	err := r.DB.WithContext(ctx).Preload("Role.Permissions").Where("id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if profile.Role == nil {
		return nil, nil
	}
	return newRoleAdapter(profile.Role), nil
}

// roleAdapter wraps a models.Role to implement gate.Role.
type roleAdapter struct {
	role   *models.Role
	grants map[string]gate.Grant
}

func newRoleAdapter(role *models.Role) *roleAdapter {
	grants := make(map[string]gate.Grant, len(role.Permissions))
	for _, p := range role.Permissions {
		grants[p.ScreenID.String()] = gate.Grant{CanView: p.CanView, CanEdit: p.CanEdit, CanDelete: p.CanDelete}
	}
	return &roleAdapter{role: role, grants: grants}
}

func (a *roleAdapter) ID() string     { return a.role.ID.String() }
func (a *roleAdapter) Name() string   { return a.role.Name }
func (a *roleAdapter) IsMaster() bool { return a.role.IsMaster }

func (a *roleAdapter) Grant(screenID string) (gate.Grant, bool) {
	g, ok := a.grants[screenID]
	return g, ok
}
