package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-backoffice/gate"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/screens"
	"github.com/diewo77/go-backoffice/validation"
)

// Role conflict codes.
const (
	CodeRoleNameTaken      = "role_name_taken"
	CodeAdminRoleReserved  = "admin_role_reserved"
	CodeAdminRoleProtected = "admin_role_protected"
)

// Role name bounds, in runes after trimming.
const (
	RoleNameMin = 2
	RoleNameMax = 50
)

// ScreenPermissionInput is one row of a role's permission matrix as submitted.
type ScreenPermissionInput struct {
	ScreenID  string `json:"screenId"`
	CanView   bool   `json:"canView"`
	CanEdit   bool   `json:"canEdit"`
	CanDelete bool   `json:"canDelete"`
}

// RoleInput is the payload of CreateRole and UpdateRole.
type RoleInput struct {
	Name              string                  `json:"name"`
	IsMaster          bool                    `json:"isMaster"`
	ScreenPermissions []ScreenPermissionInput `json:"screenPermissions"`
}

// RoleSummary is a role with the number of profiles assigned to it.
type RoleSummary struct {
	models.Role
	UserCount int64 `json:"user_count"`
}

// RoleService creates, updates and deletes roles and their permission matrix.
type RoleService struct {
	Deps
}

func NewRoleService(d Deps) *RoleService {
	return &RoleService{Deps: d}
}

// validateRole checks in and returns the trimmed name and the permission rows
// (with an unset RoleID).
func validateRole(in RoleInput) (string, []models.RoleScreenPermission, error) {
	v := validation.Violations{}
	name := strings.TrimSpace(in.Name)
	validation.Length("name", name, RoleNameMin, RoleNameMax, v)

	perms := make([]models.RoleScreenPermission, 0, len(in.ScreenPermissions))
	seen := make(map[uuid.UUID]bool, len(in.ScreenPermissions))
	for i, p := range in.ScreenPermissions {
		field := fmt.Sprintf("screenPermissions[%d].screenId", i)
		id := validation.UUID(field, p.ScreenID, v)
		if id == uuid.Nil {
			continue
		}
		if _, ok := screens.ByID(id); !ok {
			v.Add(field, "unknown_screen")
			continue
		}
		if seen[id] {
			v.Add(field, "duplicate_screen")
			continue
		}
		seen[id] = true
		perms = append(perms, models.RoleScreenPermission{
			ScreenID:  id,
			CanView:   p.CanView,
			CanEdit:   p.CanEdit,
			CanDelete: p.CanDelete,
		})
	}
	if err := invalid(v); err != nil {
		return "", nil, err
	}
	return name, perms, nil
}

// replacePermissions deletes every permission row of roleID and inserts perms.
func replacePermissions(tx *gorm.DB, roleID uuid.UUID, perms []models.RoleScreenPermission) error {
	if err := tx.Where("role_id = ?", roleID).Delete(&models.RoleScreenPermission{}).Error; err != nil {
		return fmt.Errorf("delete permissions: %w", err)
	}
	if len(perms) == 0 {
		return nil
	}
	for i := range perms {
		perms[i].RoleID = roleID
	}
	if err := tx.Create(&perms).Error; err != nil {
		return fmt.Errorf("insert permissions: %w", err)
	}
	return nil
}

// CreateRole inserts a role and its permission rows atomically.
func (s *RoleService) CreateRole(ctx context.Context, in RoleInput) (role *models.Role, err error) {
	defer func() { s.done(ctx, "role", "create", err, logrus.Fields{"name": in.Name}) }()

	name, perms, err := validateRole(in)
	if err != nil {
		return nil, err
	}
	if gate.IsAdminName(name) {
		return nil, &ConflictError{Field: "name", Code: CodeAdminRoleReserved}
	}

	role = &models.Role{Name: name, IsMaster: in.IsMaster}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := exists(tx, &models.Role{}, "name = ?", name)
		if err != nil {
			return fmt.Errorf("check role name: %w", err)
		}
		if taken {
			return &ConflictError{Field: "name", Code: CodeRoleNameTaken}
		}
		if err := tx.Create(role).Error; err != nil {
			return dbError(err, "create role", "name", CodeRoleNameTaken)
		}
		return replacePermissions(tx, role.ID, perms)
	})
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return role, nil
}

// UpdateRole renames a role, sets its master flag and replaces its whole
// permission matrix. The admin role is never modified.
func (s *RoleService) UpdateRole(ctx context.Context, rawID string, in RoleInput) (role *models.Role, err error) {
	defer func() { s.done(ctx, "role", "update", err, logrus.Fields{"role_id": rawID, "name": in.Name}) }()

	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	name, perms, err := validateRole(in)
	if err != nil {
		return nil, err
	}

	role = &models.Role{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(role, "id = ?", id).Error; err != nil {
			return dbError(err, "load role", "", "")
		}
		if gate.IsAdminName(role.Name) {
			return &ConflictError{Field: "name", Code: CodeAdminRoleProtected}
		}
		if gate.IsAdminName(name) {
			return &ConflictError{Field: "name", Code: CodeAdminRoleReserved}
		}
		taken, err := exists(tx, &models.Role{}, "name = ? AND id <> ?", name, id)
		if err != nil {
			return fmt.Errorf("check role name: %w", err)
		}
		if taken {
			return &ConflictError{Field: "name", Code: CodeRoleNameTaken}
		}
		if err := tx.Model(role).Updates(map[string]any{"name": name, "is_master": in.IsMaster}).Error; err != nil {
			return dbError(err, "update role", "name", CodeRoleNameTaken)
		}
		return replacePermissions(tx, id, perms)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateAll()
	role.Name = name
	role.IsMaster = in.IsMaster
	role.Permissions = perms
	return role, nil
}

// DeleteRole removes a role and its permissions. It fails while any profile
// still references the role, and always for the admin role.
func (s *RoleService) DeleteRole(ctx context.Context, rawID string) (err error) {
	defer func() { s.done(ctx, "role", "delete", err, logrus.Fields{"role_id": rawID}) }()

	id, err := parseID("id", rawID)
	if err != nil {
		return err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&role, "id = ?", id).Error; err != nil {
			return dbError(err, "load role", "", "")
		}
		if gate.IsAdminName(role.Name) {
			return &ConflictError{Field: "name", Code: CodeAdminRoleProtected}
		}
		var assigned int64
		if err := tx.Model(&models.Profile{}).Where("role_id = ?", id).Count(&assigned).Error; err != nil {
			return fmt.Errorf("count profiles: %w", err)
		}
		if assigned > 0 {
			return &ReferentialError{Code: CodeRoleInUse, Count: assigned}
		}
		if err := tx.Where("role_id = ?", id).Delete(&models.RoleScreenPermission{}).Error; err != nil {
			return fmt.Errorf("delete permissions: %w", err)
		}
		if err := tx.Delete(&models.Role{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete role: %w", err)
		}
		return nil
	})
	if err == nil {
		s.invalidateAll()
	}
	return err
}

// GetRole loads a role with its permission rows.
func (s *RoleService) GetRole(ctx context.Context, rawID string) (*models.Role, error) {
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	var role models.Role
	if err := s.DB.WithContext(ctx).Preload("Permissions").First(&role, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "get role", "", "")
	}
	return &role, nil
}

// ListRoles returns every role ordered by name with its assigned user count.
func (s *RoleService) ListRoles(ctx context.Context) ([]RoleSummary, error) {
	var roles []models.Role
	db := s.DB.WithContext(ctx)
	if err := db.Order("name").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	type count struct {
		RoleID uuid.UUID
		N      int64
	}
	var counts []count
	if err := db.Model(&models.Profile{}).
		Select("role_id, COUNT(*) AS n").
		Where("role_id IS NOT NULL").
		Group("role_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count role users: %w", err)
	}
	byRole := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		byRole[c.RoleID] = c.N
	}
	out := make([]RoleSummary, len(roles))
	for i, r := range roles {
		out[i] = RoleSummary{Role: r, UserCount: byRole[r.ID]}
	}
	return out, nil
}
