package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, rate *TaxRate) error
	FindByCode(ctx context.Context, db *gorm.DB, code int) (*TaxRate, error)
	FindAll(ctx context.Context, db *gorm.DB) ([]TaxRate, error)
}
