package models

import (
	"time"

	"github.com/google/uuid"
)

// Screen is a protected page of the application. Rows mirror the
// code-defined catalog and are never edited by users.
type Screen struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Path   string    `gorm:"size:200;uniqueIndex;not null" json:"path"`
	Name   string    `gorm:"size:100;not null" json:"name"`
	Module string    `gorm:"size:50;not null;index" json:"module"`
}

// Role is a named bundle of screen permissions.
// IsMaster bypasses the permission matrix entirely.
type Role struct {
	Base
	Name        string                 `gorm:"size:50;uniqueIndex;not null" json:"name"`
	IsMaster    bool                   `gorm:"not null" json:"is_master"`
	Permissions []RoleScreenPermission `gorm:"foreignKey:RoleID" json:"permissions,omitempty"`
}

// RoleScreenPermission is one row of a role's matrix, unique per (role, screen).
type RoleScreenPermission struct {
	RoleID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"role_id"`
	ScreenID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"screen_id"`
	CanView   bool      `gorm:"not null" json:"can_view"`
	CanEdit   bool      `gorm:"not null" json:"can_edit"`
	CanDelete bool      `gorm:"not null" json:"can_delete"`
}

// Profile links an identity to its tenant and role. ID equals the user id.
type Profile struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	FullName  string     `gorm:"size:150" json:"full_name"`
	CompanyID *uuid.UUID `gorm:"type:uuid;index" json:"company_id,omitempty"`
	Company   *Company   `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	RoleID    *uuid.UUID `gorm:"type:uuid;index" json:"role_id,omitempty"`
	Role      *Role      `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}
