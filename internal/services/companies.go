package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/validation"
)

// CompanyInput is the payload of Create and Update.
type CompanyInput struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

func (in CompanyInput) validate() error {
	v := validation.Violations{}
	validation.Length("name", in.Name, 2, 100, v)
	validation.MaxLength("document", strings.TrimSpace(in.Document), 30, v)
	if strings.TrimSpace(in.Email) != "" {
		validation.Email("email", in.Email, v)
	}
	validation.MaxLength("phone", strings.TrimSpace(in.Phone), 30, v)
	return invalid(v)
}

func (in CompanyInput) apply(c *models.Company) {
	c.Name = strings.TrimSpace(in.Name)
	c.Document = strings.TrimSpace(in.Document)
	c.Email = strings.TrimSpace(in.Email)
	c.Phone = strings.TrimSpace(in.Phone)
}

// CompanyService administers tenants.
type CompanyService struct {
	Deps
}

func NewCompanyService(d Deps) *CompanyService {
	return &CompanyService{Deps: d}
}

// List returns every company ordered by name.
func (s *CompanyService) List(ctx context.Context) ([]models.Company, error) {
	var out []models.Company
	if err := s.DB.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return out, nil
}

func (s *CompanyService) Get(ctx context.Context, rawID string) (*models.Company, error) {
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	var c models.Company
	if err := s.DB.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "get company", "", "")
	}
	return &c, nil
}

func (s *CompanyService) Create(ctx context.Context, in CompanyInput) (c *models.Company, err error) {
	defer func() { s.done(ctx, "company", "create", err, logrus.Fields{"name": in.Name}) }()

	if err := in.validate(); err != nil {
		return nil, err
	}
	c = &models.Company{}
	in.apply(c)
	if err := s.DB.WithContext(ctx).Create(c).Error; err != nil {
		return nil, dbError(err, "create company", "", "")
	}
	return c, nil
}

func (s *CompanyService) Update(ctx context.Context, rawID string, in CompanyInput) (c *models.Company, err error) {
	defer func() { s.done(ctx, "company", "update", err, logrus.Fields{"company_id": rawID}) }()

	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	c = &models.Company{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(c, "id = ?", id).Error; err != nil {
			return dbError(err, "load company", "", "")
		}
		in.apply(c)
		return dbError(tx.Save(c).Error, "update company", "", "")
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a company with no associated users and no tenant records.
func (s *CompanyService) Delete(ctx context.Context, rawID string) (err error) {
	defer func() { s.done(ctx, "company", "delete", err, logrus.Fields{"company_id": rawID}) }()

	id, err := parseID("id", rawID)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Company
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", id).Error; err != nil {
			return dbError(err, "load company", "", "")
		}
		var users int64
		if err := tx.Model(&models.Profile{}).Where("company_id = ?", id).Count(&users).Error; err != nil {
			return fmt.Errorf("count profiles: %w", err)
		}
		if users > 0 {
			return &ReferentialError{Code: CodeCompanyHasUsers, Count: users}
		}
		records, err := countTenantRecords(tx, id)
		if err != nil {
			return err
		}
		if records > 0 {
			return &ReferentialError{Code: CodeCompanyHasData, Count: records}
		}
		if err := tx.Delete(&models.Company{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete company: %w", err)
		}
		return nil
	})
}

// countTenantRecords counts the rows every tenant-scoped table holds for company.
func countTenantRecords(tx *gorm.DB, company uuid.UUID) (int64, error) {
	var total int64
	for _, m := range []models.TenantOwned{
		&models.FinancialAccount{},
		&models.Transaction{},
		&models.RecurringTransaction{},
		&models.TransactionCategory{},
		&models.Contact{},
	} {
		var n int64
		if err := owned(tx.Model(m), company).Count(&n).Error; err != nil {
			return 0, fmt.Errorf("count %T: %w", m, err)
		}
		total += n
	}
	return total, nil
}
