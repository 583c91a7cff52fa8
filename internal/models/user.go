package models

import "time"

// User is an identity of the authentication provider.
type User struct {
	Base
	Email            string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash     string     `gorm:"size:255;not null" json:"-"` // never exposed in JSON
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
}
