package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/recurrence"
	"github.com/diewo77/go-backoffice/internal/tenant"
	"github.com/diewo77/go-backoffice/validation"
)

// Transaction conflict codes.
const (
	CodeAlreadySettled = "already_settled"
	CodeCancelled      = "transaction_cancelled"
)

// TransactionInput is the payload of transaction Create and Update. Dates
// are YYYY-MM-DD; an empty Status means pending.
type TransactionInput struct {
	AccountID       string          `json:"accountId"`
	CategoryID      string          `json:"categoryId"`
	ContactID       string          `json:"contactId"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	TransactionDate string          `json:"transactionDate"`
	DueDate         string          `json:"dueDate"`
	PaymentDate     string          `json:"paymentDate"`
}

// TransactionFilter narrows List. Zero fields match everything.
type TransactionFilter struct {
	Type      models.TransactionType
	Status    models.TransactionStatus
	AccountID *uuid.UUID
	From, To  *time.Time
}

// TransactionService manages payables and receivables of a tenant.
type TransactionService struct {
	Deps
}

func NewTransactionService(d Deps) *TransactionService {
	return &TransactionService{Deps: d}
}

// statusMatchesType rejects settled statuses of the wrong direction.
func statusMatchesType(status models.TransactionStatus, typ models.TransactionType) bool {
	switch status {
	case models.StatusReceived:
		return typ == models.TypeIncome
	case models.StatusPaid:
		return typ != models.TypeIncome
	}
	return true
}

// checkRefs validates the account, category and contact of a row of company.
// It returns the account so callers can copy its currency.
func checkRefs(tx *gorm.DB, company uuid.UUID, accountID uuid.UUID, categoryID, contactID *uuid.UUID, typ models.TransactionType, v validation.Violations) (*models.FinancialAccount, error) {
	var account models.FinancialAccount
	if accountID != uuid.Nil {
		err := findOwned(tx, company, accountID, &account)
		switch {
		case notFound(err):
			v.Add("accountId", "unknown_account")
		case err != nil:
			return nil, fmt.Errorf("load account: %w", err)
		}
	}
	if categoryID != nil {
		var cat models.TransactionCategory
		err := findOwned(tx, company, *categoryID, &cat)
		switch {
		case notFound(err):
			v.Add("categoryId", "unknown_category")
		case err != nil:
			return nil, fmt.Errorf("load category: %w", err)
		case typ != models.TypeTransfer && cat.Type != typ:
			v.Add("categoryId", "category_type_mismatch")
		}
	}
	if err := checkOwned(tx, &models.Contact{}, company, contactID, "contactId", "unknown_contact", v); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *TransactionService) build(tx *gorm.DB, company uuid.UUID, in TransactionInput, t *models.Transaction) error {
	v := validation.Violations{}
	validation.OneOf("type", in.Type, models.TransactionTypes, v)
	status := in.Status
	if status == "" {
		status = string(models.StatusPending)
	}
	validation.OneOf("status", status, models.TransactionStatuses, v)
	validation.PositiveDecimal("amount", in.Amount, v)
	validation.MaxLength("description", strings.TrimSpace(in.Description), 255, v)
	accountID := validation.UUID("accountId", in.AccountID, v)
	categoryID := validation.OptionalUUID("categoryId", in.CategoryID, v)
	contactID := validation.OptionalUUID("contactId", in.ContactID, v)
	date := validation.Date("transactionDate", in.TransactionDate, v)
	due := validation.OptionalDate("dueDate", in.DueDate, v)
	paid := validation.OptionalDate("paymentDate", in.PaymentDate, v)

	typ := models.TransactionType(in.Type)
	st := models.TransactionStatus(status)
	if !statusMatchesType(st, typ) {
		v.Add("status", "status_type_mismatch")
	}
	account, err := checkRefs(tx, company, accountID, categoryID, contactID, typ, v)
	if err != nil {
		return err
	}
	if err := invalid(v); err != nil {
		return err
	}

	t.CompanyID = company
	t.AccountID = accountID
	t.CurrencyCode = account.CurrencyCode
	t.CategoryID = categoryID
	t.ContactID = contactID
	t.Type = typ
	t.Status = st
	t.Amount = in.Amount
	t.Description = strings.TrimSpace(in.Description)
	t.TransactionDate = date
	t.DueDate = due
	t.PaymentDate = paid
	if t.IsSettled() && t.PaymentDate == nil {
		d := date
		t.PaymentDate = &d
	}
	if !t.IsSettled() {
		t.PaymentDate = nil
	}
	return nil
}

// List returns the tenant's transactions, newest first.
func (s *TransactionService) List(ctx context.Context, tc tenant.Context, f TransactionFilter) ([]models.Transaction, error) {
	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	q := owned(s.DB.WithContext(ctx), company)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AccountID != nil {
		q = q.Where("account_id = ?", *f.AccountID)
	}
	if f.From != nil {
		q = q.Where("transaction_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("transaction_date <= ?", *f.To)
	}
	var out []models.Transaction
	if err := q.Order("transaction_date DESC, created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

func (s *TransactionService) Get(ctx context.Context, tc tenant.Context, rawID string) (*models.Transaction, error) {
	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	var t models.Transaction
	if err := findOwned(s.DB.WithContext(ctx), company, id, &t); err != nil {
		return nil, dbError(err, "get transaction", "", "")
	}
	return &t, nil
}

func (s *TransactionService) Create(ctx context.Context, tc tenant.Context, in TransactionInput) (t *models.Transaction, err error) {
	defer func() { s.done(ctx, "transaction", "create", err, logrus.Fields{"user_id": tc.UserID, "type": in.Type}) }()

	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	t = &models.Transaction{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.build(tx, company, in, t); err != nil {
			return err
		}
		return dbError(tx.Create(t).Error, "create transaction", "", "")
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Update replaces the editable fields of a transaction. The link to a
// recurring template is kept.
func (s *TransactionService) Update(ctx context.Context, tc tenant.Context, rawID string, in TransactionInput) (t *models.Transaction, err error) {
	defer func() {
		s.done(ctx, "transaction", "update", err, logrus.Fields{"user_id": tc.UserID, "transaction_id": rawID})
	}()

	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	t = &models.Transaction{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("company_id = ?", company).First(t, "id = ?", id).Error; err != nil {
			return dbError(err, "load transaction", "", "")
		}
		if err := s.build(tx, company, in, t); err != nil {
			return err
		}
		return dbError(tx.Save(t).Error, "update transaction", "", "")
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// MarkPaid settles a transaction: income becomes received, anything else
// paid. A zero paidOn means the transaction date.
func (s *TransactionService) MarkPaid(ctx context.Context, tc tenant.Context, rawID string, paidOn time.Time) (t *models.Transaction, err error) {
	defer func() {
		s.done(ctx, "transaction", "mark_paid", err, logrus.Fields{"user_id": tc.UserID, "transaction_id": rawID})
	}()

	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	t = &models.Transaction{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("company_id = ?", company).First(t, "id = ?", id).Error; err != nil {
			return dbError(err, "load transaction", "", "")
		}
		switch {
		case t.IsSettled():
			return &ConflictError{Field: "status", Code: CodeAlreadySettled}
		case t.Status == models.StatusCancelled:
			return &ConflictError{Field: "status", Code: CodeCancelled}
		}
		day := recurrence.Date(paidOn)
		if paidOn.IsZero() {
			day = t.TransactionDate
		}
		t.Status = models.SettledStatus(t.Type)
		t.PaymentDate = &day
		return dbError(tx.Model(t).Updates(map[string]any{"status": t.Status, "payment_date": day}).Error, "mark paid", "", "")
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TransactionService) Delete(ctx context.Context, tc tenant.Context, rawID string) (err error) {
	defer func() {
		s.done(ctx, "transaction", "delete", err, logrus.Fields{"user_id": tc.UserID, "transaction_id": rawID})
	}()

	company, err := tc.Company()
	if err != nil {
		return err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return err
	}
	res := owned(s.DB.WithContext(ctx), company).Delete(&models.Transaction{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
