package models

import "github.com/google/uuid"

// Company is a tenant. It owns accounts, transactions, categories,
// contacts, recurring templates and users.
type Company struct {
	Base
	Name     string `gorm:"size:100;not null" json:"name"`
	Document string `gorm:"size:30" json:"document,omitempty"`
	Email    string `gorm:"size:255" json:"email,omitempty"`
	Phone    string `gorm:"size:30" json:"phone,omitempty"`
}

// TenantOwned is implemented by rows that belong to a company.
type TenantOwned interface {
	GetCompanyID() uuid.UUID
}

func (a *FinancialAccount) GetCompanyID() uuid.UUID     { return a.CompanyID }
func (t *Transaction) GetCompanyID() uuid.UUID          { return t.CompanyID }
func (r *RecurringTransaction) GetCompanyID() uuid.UUID { return r.CompanyID }
func (c *TransactionCategory) GetCompanyID() uuid.UUID  { return c.CompanyID }
func (c *Contact) GetCompanyID() uuid.UUID              { return c.CompanyID }
