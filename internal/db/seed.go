package db

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-backoffice/gate"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/screens"
)

// DefaultCurrencies is the read-only currency catalog.
var DefaultCurrencies = []models.Currency{
	{Code: "BRL", Name: "Real brasileiro", Symbol: "R$"},
	{Code: "USD", Name: "US Dollar", Symbol: "$"},
	{Code: "EUR", Name: "Euro", Symbol: "€"},
	{Code: "GBP", Name: "Pound sterling", Symbol: "£"},
	{Code: "ARS", Name: "Peso argentino", Symbol: "$"},
}

// Seed syncs the screen catalog, the currencies and the reserved admin role.
// Safe to run on every start.
func Seed(db *gorm.DB) error {
	if err := SeedScreens(db); err != nil {
		return err
	}
	currencies := append([]models.Currency(nil), DefaultCurrencies...)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&currencies).Error; err != nil {
		return fmt.Errorf("seed currencies: %w", err)
	}
	if _, err := EnsureAdminRole(db); err != nil {
		return err
	}
	return nil
}

// SeedScreens upserts every catalog screen by id.
func SeedScreens(db *gorm.DB) error {
	all := screens.All()
	rows := make([]models.Screen, 0, len(all))
	for _, s := range all {
		rows = append(rows, models.Screen{ID: s.ID, Path: s.Path, Name: s.Name, Module: s.Module})
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"path", "name", "module"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("seed screens: %w", err)
	}
	return nil
}

// EnsureAdminRole returns the role named admin, creating it as a master role
// when missing.
func EnsureAdminRole(db *gorm.DB) (*models.Role, error) {
	role := models.Role{Name: gate.AdminRoleName, IsMaster: true}
	if err := db.Where("name = ?", gate.AdminRoleName).FirstOrCreate(&role).Error; err != nil {
		return nil, fmt.Errorf("seed admin role: %w", err)
	}
	return &role, nil
}
