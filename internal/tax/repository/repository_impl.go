package repository

import (
	"context"

	taxdomain "github.com/smallbiznis/tillpoint/internal/tax/domain"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() taxdomain.Repository {
	return &repository{}
}

func (r *repository) Create(ctx context.Context, db *gorm.DB, rate *taxdomain.TaxRate) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tax_rates (code, percent, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rate.Code,
		rate.Percent,
		rate.Name,
		rate.CreatedAt,
		rate.UpdatedAt,
	).Error
}

func (r *repository) FindByCode(ctx context.Context, db *gorm.DB, code int) (*taxdomain.TaxRate, error) {
	var rate taxdomain.TaxRate
	err := db.WithContext(ctx).Raw(
		`SELECT code, percent, name, created_at, updated_at
		 FROM tax_rates WHERE code = ?`,
		code,
	).Scan(&rate).Error
	if err != nil {
		return nil, err
	}
	if rate.Code == 0 {
		return nil, nil
	}
	return &rate, nil
}

func (r *repository) FindAll(ctx context.Context, db *gorm.DB) ([]taxdomain.TaxRate, error) {
	var items []taxdomain.TaxRate
	err := db.WithContext(ctx).Raw(
		`SELECT code, percent, name, created_at, updated_at
		 FROM tax_rates ORDER BY code ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
