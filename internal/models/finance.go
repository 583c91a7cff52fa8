package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is a read-only catalog entry keyed by its ISO code.
type Currency struct {
	Code   string `gorm:"size:3;primaryKey" json:"code"`
	Name   string `gorm:"size:50;not null" json:"name"`
	Symbol string `gorm:"size:5;not null" json:"symbol"`
}

// AccountType enumerates financial account kinds.
type AccountType string

const (
	AccountChecking   AccountType = "CHECKING_ACCOUNT"
	AccountSavings    AccountType = "SAVINGS_ACCOUNT"
	AccountCash       AccountType = "CASH"
	AccountCreditCard AccountType = "CREDIT_CARD"
	AccountInvestment AccountType = "INVESTMENT"
	AccountOther      AccountType = "OTHER"
)

// AccountTypes lists every valid AccountType.
var AccountTypes = []string{
	string(AccountChecking), string(AccountSavings), string(AccountCash),
	string(AccountCreditCard), string(AccountInvestment), string(AccountOther),
}

// FinancialAccount is a bank account, wallet or card owned by a company.
// Card fields are only set for CREDIT_CARD accounts.
type FinancialAccount struct {
	Base
	CompanyID      uuid.UUID           `gorm:"type:uuid;index;not null" json:"company_id"`
	Name           string              `gorm:"size:100;not null" json:"name"`
	Type           AccountType         `gorm:"size:20;not null" json:"type"`
	CurrencyCode   string              `gorm:"size:3;not null" json:"currency_code"`
	Institution    string              `gorm:"size:100" json:"institution,omitempty"`
	InitialBalance decimal.Decimal     `gorm:"type:decimal(15,2);not null" json:"initial_balance"`
	IsActive       bool                `gorm:"not null" json:"is_active"`
	CardNetwork    *string             `gorm:"size:30" json:"card_network,omitempty"`
	CardLastFour   *string             `gorm:"size:4" json:"card_last_four,omitempty"`
	CreditLimit    decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"credit_limit"`
	StatementDay   *int                `json:"statement_day,omitempty"`
	DueDay         *int                `json:"due_day,omitempty"`
}

// TransactionType enumerates transaction directions.
type TransactionType string

const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
)

// TransactionCategory groups transactions of one type within a company.
type TransactionCategory struct {
	Base
	CompanyID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_category_company_name_type" json:"company_id"`
	Name      string          `gorm:"size:100;not null;uniqueIndex:idx_category_company_name_type" json:"name"`
	Type      TransactionType `gorm:"size:10;not null;uniqueIndex:idx_category_company_name_type" json:"type"`
	Color     string          `gorm:"size:7" json:"color,omitempty"`
	IsActive  bool            `gorm:"not null" json:"is_active"`
}

// ContactType enumerates contact kinds.
type ContactType string

const (
	ContactCustomer ContactType = "customer"
	ContactSupplier ContactType = "supplier"
	ContactEmployee ContactType = "employee"
	ContactOther    ContactType = "other"
)

// ContactTypes lists every valid ContactType.
var ContactTypes = []string{string(ContactCustomer), string(ContactSupplier), string(ContactEmployee), string(ContactOther)}

// Contact is a counterparty of a company.
type Contact struct {
	Base
	CompanyID uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_contact_company_name_type" json:"company_id"`
	Name      string      `gorm:"size:150;not null;uniqueIndex:idx_contact_company_name_type" json:"name"`
	Type      ContactType `gorm:"size:10;not null;uniqueIndex:idx_contact_company_name_type" json:"type"`
	Email     string      `gorm:"size:255" json:"email,omitempty"`
	Phone     string      `gorm:"size:30" json:"phone,omitempty"`
	Document  string      `gorm:"size:30" json:"document,omitempty"`
	Notes     string      `gorm:"type:text" json:"notes,omitempty"`
}
