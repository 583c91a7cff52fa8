package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/tenant"
	"github.com/diewo77/go-backoffice/validation"
)

const CodeCategoryNameTaken = "category_name_taken"

// CategoryTypes are the transaction types a category may group.
var CategoryTypes = []string{string(models.TypeIncome), string(models.TypeExpense)}

var colorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// CategoryInput is the payload of category Create and Update.
type CategoryInput struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
}

func (in CategoryInput) validate() error {
	v := validation.Violations{}
	validation.Length("name", in.Name, 2, 100, v)
	validation.OneOf("type", in.Type, CategoryTypes, v)
	if c := strings.TrimSpace(in.Color); c != "" && !colorRe.MatchString(c) {
		v.Add("color", "invalid_color")
	}
	return invalid(v)
}

// CategoryService manages transaction categories of a tenant.
type CategoryService struct {
	Deps
}

func NewCategoryService(d Deps) *CategoryService {
	return &CategoryService{Deps: d}
}

// List returns the tenant's categories, optionally only those of type.
func (s *CategoryService) List(ctx context.Context, tc tenant.Context, typ string) ([]models.TransactionCategory, error) {
	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	q := owned(s.DB.WithContext(ctx), company)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	var out []models.TransactionCategory
	if err := q.Order("type, name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (s *CategoryService) Get(ctx context.Context, tc tenant.Context, rawID string) (*models.TransactionCategory, error) {
	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	var c models.TransactionCategory
	if err := findOwned(s.DB.WithContext(ctx), company, id, &c); err != nil {
		return nil, dbError(err, "get category", "", "")
	}
	return &c, nil
}

func nameTaken(tx *gorm.DB, model any, company uuid.UUID, name, typ string, except uuid.UUID) (bool, error) {
	return exists(tx, model, "company_id = ? AND name = ? AND type = ? AND id <> ?", company, name, typ, except)
}

func (s *CategoryService) Create(ctx context.Context, tc tenant.Context, in CategoryInput) (c *models.TransactionCategory, err error) {
	defer func() { s.done(ctx, "category", "create", err, logrus.Fields{"user_id": tc.UserID, "name": in.Name}) }()

	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	c = &models.TransactionCategory{
		CompanyID: company,
		Name:      strings.TrimSpace(in.Name),
		Type:      models.TransactionType(in.Type),
		Color:     strings.TrimSpace(in.Color),
		IsActive:  true,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := nameTaken(tx, &models.TransactionCategory{}, company, c.Name, in.Type, uuid.Nil)
		if err != nil {
			return fmt.Errorf("check category name: %w", err)
		}
		if taken {
			return &ConflictError{Field: "name", Code: CodeCategoryNameTaken}
		}
		return dbError(tx.Create(c).Error, "create category", "name", CodeCategoryNameTaken)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, tc tenant.Context, rawID string, in CategoryInput) (c *models.TransactionCategory, err error) {
	defer func() { s.done(ctx, "category", "update", err, logrus.Fields{"user_id": tc.UserID, "category_id": rawID}) }()

	company, err := tc.Company()
	if err != nil {
		return nil, err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	c = &models.TransactionCategory{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findOwned(tx, company, id, c); err != nil {
			return dbError(err, "load category", "", "")
		}
		name := strings.TrimSpace(in.Name)
		taken, err := nameTaken(tx, &models.TransactionCategory{}, company, name, in.Type, id)
		if err != nil {
			return fmt.Errorf("check category name: %w", err)
		}
		if taken {
			return &ConflictError{Field: "name", Code: CodeCategoryNameTaken}
		}
		c.Name = name
		c.Type = models.TransactionType(in.Type)
		c.Color = strings.TrimSpace(in.Color)
		return dbError(tx.Save(c).Error, "update category", "name", CodeCategoryNameTaken)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SetActive activates or deactivates a category without deleting it.
func (s *CategoryService) SetActive(ctx context.Context, tc tenant.Context, rawID string, active bool) (err error) {
	defer func() {
		s.done(ctx, "category", "set_active", err, logrus.Fields{"user_id": tc.UserID, "category_id": rawID, "active": active})
	}()

	company, err := tc.Company()
	if err != nil {
		return err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return err
	}
	res := owned(s.DB.WithContext(ctx).Model(&models.TransactionCategory{}), company).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return fmt.Errorf("set category active: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a category no transaction or template references.
func (s *CategoryService) Delete(ctx context.Context, tc tenant.Context, rawID string) (err error) {
	defer func() { s.done(ctx, "category", "delete", err, logrus.Fields{"user_id": tc.UserID, "category_id": rawID}) }()

	company, err := tc.Company()
	if err != nil {
		return err
	}
	id, err := parseID("id", rawID)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.TransactionCategory
		if err := findOwned(tx, company, id, &c); err != nil {
			return dbError(err, "load category", "", "")
		}
		n, err := countReferences(tx, company, "category_id", id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &ReferentialError{Code: CodeCategoryInUse, Count: n}
		}
		return dbError(owned(tx, company).Delete(&models.TransactionCategory{}, "id = ?", id).Error, "delete category", "", "")
	})
}

// countReferences counts transactions and templates of company whose column equals id.
func countReferences(tx *gorm.DB, company uuid.UUID, column string, id uuid.UUID) (int64, error) {
	var total int64
	for _, m := range []any{&models.Transaction{}, &models.RecurringTransaction{}} {
		var n int64
		if err := owned(tx.Model(m), company).Where(column+" = ?", id).Count(&n).Error; err != nil {
			return 0, fmt.Errorf("count %s references: %w", column, err)
		}
		total += n
	}
	return total, nil
}
