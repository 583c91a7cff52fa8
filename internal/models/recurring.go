package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecurringStatus is the lifecycle state of a recurring template.
// active and paused switch back and forth; finished is terminal.
type RecurringStatus string

const (
	RecurringActive   RecurringStatus = "active"
	RecurringPaused   RecurringStatus = "paused"
	RecurringFinished RecurringStatus = "finished"
)

// RecurringTransaction is a template for generating transactions.
// NextDueDate is nil once the template is finished.
type RecurringTransaction struct {
	Base
	CompanyID             uuid.UUID       `gorm:"type:uuid;index;not null" json:"company_id"`
	AccountID             uuid.UUID       `gorm:"type:uuid;not null" json:"account_id"`
	CurrencyCode          string          `gorm:"size:3;not null" json:"currency_code"`
	CategoryID            *uuid.UUID      `gorm:"type:uuid" json:"category_id,omitempty"`
	ContactID             *uuid.UUID      `gorm:"type:uuid" json:"contact_id,omitempty"`
	Description           string          `gorm:"size:255" json:"description,omitempty"`
	BaseTransactionType   TransactionType `gorm:"size:10;not null" json:"base_transaction_type"`
	BaseAmount            decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"base_amount"`
	RecurrenceRule        string          `gorm:"size:255;not null" json:"recurrence_rule"`
	StartDate             time.Time       `gorm:"type:date;not null" json:"start_date"`
	EndDate               *time.Time      `gorm:"type:date" json:"end_date,omitempty"`
	NextDueDate           *time.Time      `gorm:"type:date;index" json:"next_due_date,omitempty"`
	Status                RecurringStatus `gorm:"size:10;not null;index" json:"status"`
	AutoCreateTransaction bool            `gorm:"not null" json:"auto_create_transaction"`
	DaysBeforeDueToCreate int             `gorm:"not null" json:"days_before_due_to_create"`
}
