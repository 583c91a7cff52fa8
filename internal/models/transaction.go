package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the settlement state of a transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusPaid      TransactionStatus = "paid"
	StatusReceived  TransactionStatus = "received"
	StatusOverdue   TransactionStatus = "overdue"
	StatusCancelled TransactionStatus = "cancelled"
	StatusScheduled TransactionStatus = "scheduled"
)

// TransactionStatuses lists every valid TransactionStatus.
var TransactionStatuses = []string{
	string(StatusPending), string(StatusPaid), string(StatusReceived),
	string(StatusOverdue), string(StatusCancelled), string(StatusScheduled),
}

// TransactionTypes lists every valid TransactionType.
var TransactionTypes = []string{string(TypeIncome), string(TypeExpense), string(TypeTransfer)}

// Transaction is a payable or receivable of a company.
// Rows materialized from a recurring template carry its id and the
// occurrence date; the pair is unique so an occurrence is created once.
type Transaction struct {
	Base
	CompanyID              uuid.UUID         `gorm:"type:uuid;index;not null" json:"company_id"`
	AccountID              uuid.UUID         `gorm:"type:uuid;index;not null" json:"account_id"`
	CurrencyCode           string            `gorm:"size:3;not null" json:"currency_code"`
	CategoryID             *uuid.UUID        `gorm:"type:uuid;index" json:"category_id,omitempty"`
	ContactID              *uuid.UUID        `gorm:"type:uuid;index" json:"contact_id,omitempty"`
	Type                   TransactionType   `gorm:"size:10;not null" json:"type"`
	Status                 TransactionStatus `gorm:"size:10;not null" json:"status"`
	Amount                 decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"amount"`
	Description            string            `gorm:"size:255" json:"description,omitempty"`
	TransactionDate        time.Time         `gorm:"type:date;not null" json:"transaction_date"`
	DueDate                *time.Time        `gorm:"type:date" json:"due_date,omitempty"`
	PaymentDate            *time.Time        `gorm:"type:date" json:"payment_date,omitempty"`
	RecurringTransactionID *uuid.UUID        `gorm:"type:uuid;uniqueIndex:idx_tx_recurring_occurrence" json:"recurring_transaction_id,omitempty"`
	OccurrenceDate         *time.Time        `gorm:"type:date;uniqueIndex:idx_tx_recurring_occurrence" json:"occurrence_date,omitempty"`
}

// SettledStatus is the status a transaction of type t takes when paid.
func SettledStatus(t TransactionType) TransactionStatus {
	if t == TypeIncome {
		return StatusReceived
	}
	return StatusPaid
}

// IsSettled reports whether the transaction is paid or received.
func (t *Transaction) IsSettled() bool {
	return t.Status == StatusPaid || t.Status == StatusReceived
}
