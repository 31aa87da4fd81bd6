package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tillpoint/internal/cache"
	taxdomain "github.com/smallbiznis/tillpoint/internal/tax/domain"
	taxrepo "github.com/smallbiznis/tillpoint/internal/tax/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, refCache cache.ReferenceCache) (taxdomain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&taxdomain.TaxRate{}))
	require.NoError(t, db.Create(&taxdomain.TaxRate{Code: 10, Percent: 0.10, Name: "Standard"}).Error)

	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Repository: taxrepo.NewRepository(),
		Cache:      refCache,
	})
	return svc, db
}

func TestLookupRate(t *testing.T) {
	svc, _ := newTestService(t, nil)

	percent, err := svc.LookupRate(context.Background(), 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, percent, 1e-9)

	_, err = svc.LookupRate(context.Background(), 99)
	assert.ErrorIs(t, err, taxdomain.ErrNotFound)

	_, err = svc.LookupRate(context.Background(), 0)
	assert.ErrorIs(t, err, taxdomain.ErrInvalidTaxCode)
}

func TestLookupRate_RepeatedLookupsAreIdempotent(t *testing.T) {
	svc, _ := newTestService(t, cache.NewReferenceCache())

	first, err := svc.LookupRate(context.Background(), 10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := svc.LookupRate(context.Background(), 10)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestLookupRate_ServedFromCacheAfterFirstHit(t *testing.T) {
	svc, db := newTestService(t, cache.NewReferenceCache())

	_, err := svc.LookupRate(context.Background(), 10)
	require.NoError(t, err)

	// Out-of-band deletion; the cached rate keeps serving until expiry.
	require.NoError(t, db.Exec(`DELETE FROM tax_rates WHERE code = 10`).Error)

	percent, err := svc.LookupRate(context.Background(), 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, percent, 1e-9)
}

func TestList(t *testing.T) {
	svc, db := newTestService(t, nil)
	require.NoError(t, db.Create(&taxdomain.TaxRate{Code: 8, Percent: 0.08, Name: "Reduced"}).Error)

	rates, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, 8, rates[0].Code)
	assert.InDelta(t, 0.08, rates[0].Percent, 1e-9)
	assert.Equal(t, 10, rates[1].Code)
}

func TestComputeTaxExclusive(t *testing.T) {
	assert.Equal(t, int64(10), ComputeTaxExclusive(100, 0.10))
	assert.Equal(t, int64(8), ComputeTaxExclusive(100, 0.08))
	assert.Equal(t, int64(3), ComputeTaxExclusive(33, 0.10))
	assert.Equal(t, int64(0), ComputeTaxExclusive(0, 0.10))
	assert.Equal(t, int64(0), ComputeTaxExclusive(100, 0))
	assert.Equal(t, int64(0), ComputeTaxExclusive(-5, 0.10))
}
