package services

import (
	"context"
	"fmt"

	"github.com/diewo77/go-backoffice/internal/models"
)

// CurrencyService reads the seeded currency catalog.
type CurrencyService struct {
	Deps
}

func NewCurrencyService(d Deps) *CurrencyService {
	return &CurrencyService{Deps: d}
}

func (s *CurrencyService) List(ctx context.Context) ([]models.Currency, error) {
	var out []models.Currency
	if err := s.DB.WithContext(ctx).Order("code").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	return out, nil
}
