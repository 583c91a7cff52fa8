package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/validation"
)

// owned restricts q to rows of company.
func owned(q *gorm.DB, company uuid.UUID) *gorm.DB {
	return q.Where("company_id = ?", company)
}

// findOwned loads the row id of company into dst.
func findOwned(tx *gorm.DB, company, id uuid.UUID, dst any) error {
	return owned(tx, company).First(dst, "id = ?", id).Error
}

// checkOwned records code on field unless the row id belongs to company.
func checkOwned(tx *gorm.DB, model any, company uuid.UUID, id *uuid.UUID, field, code string, v validation.Violations) error {
	if id == nil {
		return nil
	}
	ok, err := exists(tx, model, "company_id = ? AND id = ?", company, *id)
	if err != nil {
		return fmt.Errorf("check %s: %w", field, err)
	}
	if !ok {
		v.Add(field, code)
	}
	return nil
}

// currencyExists reports whether code is in the currency catalog.
func currencyExists(tx *gorm.DB, code string) (bool, error) {
	return exists(tx, &models.Currency{}, "code = ?", code)
}
