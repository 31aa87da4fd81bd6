package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/tillpoint/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/tillpoint/internal/catalog/repository"
	taxdomain "github.com/smallbiznis/tillpoint/internal/tax/domain"
	taxrepo "github.com/smallbiznis/tillpoint/internal/tax/repository"
	"gorm.io/gorm"
)

var defaultTaxRates = []taxdomain.TaxRate{
	{Code: 8, Percent: 0.08, Name: "Reduced"},
	{Code: 10, Percent: 0.10, Name: "Standard"},
}

var demoProducts = []catalogdomain.Product{
	{Code: "4900000000017", Name: "Drip Coffee (Hot)", UnitPrice: 300},
	{Code: "4900000000024", Name: "Cafe Latte", UnitPrice: 400},
	{Code: "4900000000031", Name: "Butter Croissant", UnitPrice: 250},
}

// EnsureReferenceData seeds tax rates and demo products for startup
// bootstrap. Existing rows are left untouched.
func EnsureReferenceData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	taxRates := taxrepo.NewRepository()
	products := catalogrepo.Provide()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureTaxRatesTx(ctx, tx, taxRates); err != nil {
			return err
		}
		return ensureProductsTx(ctx, tx, products, node)
	})
}

func ensureTaxRatesTx(ctx context.Context, tx *gorm.DB, repo taxdomain.Repository) error {
	now := time.Now().UTC()
	for _, rate := range defaultTaxRates {
		existing, err := repo.FindByCode(ctx, tx, rate.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		rate.CreatedAt = now
		rate.UpdatedAt = now
		if err := repo.Create(ctx, tx, &rate); err != nil {
			return err
		}
	}
	return nil
}

func ensureProductsTx(ctx context.Context, tx *gorm.DB, repo catalogdomain.Repository, node *snowflake.Node) error {
	existing, err := repo.FindAll(ctx, tx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, product := range demoProducts {
		product.ID = node.Generate().Int64()
		product.Active = true
		product.CreatedAt = now
		product.UpdatedAt = now
		if err := repo.Create(ctx, tx, &product); err != nil {
			return err
		}
	}
	return nil
}
