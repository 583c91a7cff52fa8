package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/tenant"
	"github.com/diewo77/go-backoffice/validation"
)

// AccountInput is the payload of account Create and Update. Card fields are
// ignored unless Type is CREDIT_CARD.
type AccountInput struct {
	Name           string           `json:"name"`
	Type           string           `json:"type"`
	CurrencyCode   string           `json:"currencyCode"`
	Institution    string           `json:"institution"`
	InitialBalance decimal.Decimal  `json:"initialBalance"`
	IsActive       bool             `json:"isActive"`
	CardNetwork    string           `json:"cardNetwork"`
	CardLastFour   string           `json:"cardLastFour"`
	CreditLimit    *decimal.Decimal `json:"creditLimit"`
	StatementDay   *int             `json:"statementDay"`
	DueDay         *int             `json:"dueDay"`
}

func (in AccountInput) validate(tx *gorm.DB) error {
	v := validation.Violations{}
	validation.Length("name", in.Name, 2, 100, v)
	validation.OneOf("type", in.Type, models.AccountTypes, v)
	validation.MaxLength("institution", strings.TrimSpace(in.Institution), 100, v)
	code := strings.ToUpper(strings.TrimSpace(in.CurrencyCode))
	if ok, err := currencyExists(tx, code); err != nil {
		return fmt.Errorf("check currency: %w", err)
	} else if !ok {
		v.Add("currencyCode", "unknown_currency")
	}
	if models.AccountType(in.Type) == models.AccountCreditCard {
		if in.CardLastFour != "" {
			validation.LastFour("cardLastFour", in.CardLastFour, v)
		}
		validation.MaxLength("cardNetwork", strings.TrimSpace(in.CardNetwork), 30, v)
		if in.CreditLimit != nil {
			validation.NonNegativeDecimal("creditLimit", *in.CreditLimit, v)
		}
		if in.StatementDay != nil {
			validation.RangeInt("statementDay", *in.StatementDay, 1, 31, v)
		}
		if in.DueDay != nil {
			validation.RangeInt("dueDay", *in.DueDay, 1, 31, v)
		}
	}
	return invalid(v)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (in AccountInput) apply(a *models.FinancialAccount) {
	a.Name = strings.TrimSpace(in.Name)
	a.Type = models.AccountType(in.Type)
	a.CurrencyCode = strings.ToUpper(strings.TrimSpace(in.CurrencyCode))
	a.Institution = strings.TrimSpace(in.Institution)
	a.InitialBalance = in.InitialBalance
	a.IsActive = in.IsActive
	a.CardNetwork, a.CardLastFour = nil, nil
	a.CreditLimit = decimal.NullDecimal{}
	a.StatementDay, a.DueDay = nil, nil
	if a.Type != models.AccountCreditCard {
		return
	}
	a.CardNetwork = optionalString(in.CardNetwork)
	a.CardLastFour = optionalString(in.CardLastFour)
	if in.CreditLimit != nil {
		a.CreditLimit = decimal.NewNullDecimal(*in.CreditLimit)
	}
	a.StatementDay = in.StatementDay
	a.DueDay = in.DueDay
}

// AccountService manages the financial accounts of a tenant.
type AccountService struct {
	Deps
}

func NewAccountService(d Deps) *AccountService {
	return &AccountService{Deps: d}
}

// List returns the tenant's accounts ordered by name.
func (s *AccountService) List(ctx context.Context, tc tenant.Context) ([]models.FinancialAccount, error) {
	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	var out []models.FinancialAccount
	if err := owned(s.DB.WithContext(ctx), company).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

func (s *AccountService) Get(ctx context.Context, tc tenant.Context, rawID string) (*models.FinancialAccount, error) {
	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	var a models.FinancialAccount
	if err := findOwned(s.DB.WithContext(ctx), company, id, &a); err != nil {
		return nil, dbError(err, "get account", "", "")
	}
	return &a, nil
}

func (s *AccountService) Create(ctx context.Context, tc tenant.Context, in AccountInput) (a *models.FinancialAccount, err error) {
	defer func() { s.done(ctx, "account", "create", err, logrus.Fields{"user_id": tc.UserID, "name": in.Name}) }()

	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	if err := in.validate(db); err != nil {
		return nil, err
	}
	a = &models.FinancialAccount{CompanyID: company}
	in.apply(a)
	if err := db.Create(a).Error; err != nil {
		return nil, dbError(err, "create account", "", "")
	}
	return a, nil
}

func (s *AccountService) Update(ctx context.Context, tc tenant.Context, rawID string, in AccountInput) (a *models.FinancialAccount, err error) {
	defer func() { s.done(ctx, "account", "update", err, logrus.Fields{"user_id": tc.UserID, "account_id": rawID}) }()

	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	a = &models.FinancialAccount{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findOwned(tx, company, id, a); err != nil {
			return dbError(err, "load account", "", "")
		}
		if err := in.validate(tx); err != nil {
			return err
		}
		in.apply(a)
		return dbError(tx.Save(a).Error, "update account", "", "")
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes an account that no transaction or recurring template uses.
func (s *AccountService) Delete(ctx context.Context, tc tenant.Context, rawID string) (err error) {
	defer func() { s.done(ctx, "account", "delete", err, logrus.Fields{"user_id": tc.UserID, "account_id": rawID}) }()

	company, err := tc.Company()
	if err != nil {
		return err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.FinancialAccount
		if err := findOwned(tx, company, id, &a); err != nil {
			return dbError(err, "load account", "", "")
		}
		n, err := countReferences(tx, company, "account_id", id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &ReferentialError{Code: CodeAccountInUse, Count: n}
		}
		return dbError(owned(tx, company).Delete(&models.FinancialAccount{}, "id = ?", id).Error, "delete account", "", "")
	})
}
