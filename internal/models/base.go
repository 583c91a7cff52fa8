package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is embedded by every table keyed by a UUID.
type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a random UUID when none was set.
func (b *Base) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// All returns every model in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&Screen{}, &Role{}, &RoleScreenPermission{},
		&Company{}, &User{}, &Profile{},
		&Currency{}, &FinancialAccount{}, &TransactionCategory{}, &Contact{},
		&RecurringTransaction{}, &Transaction{},
	}
}
