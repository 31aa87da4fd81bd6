package service

import (
	"context"
	"math"

	"github.com/smallbiznis/tillpoint/internal/cache"
	taxdomain "github.com/smallbiznis/tillpoint/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repository taxdomain.Repository
	Cache      cache.ReferenceCache `optional:"true"`
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  taxdomain.Repository
	cache cache.ReferenceCache
}

func NewService(p Params) taxdomain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("tax.service"),
		repo:  p.Repository,
		cache: p.Cache,
	}
}

func (s *service) LookupRate(ctx context.Context, code int) (float64, error) {
	if code <= 0 {
		return 0, taxdomain.ErrInvalidTaxCode
	}

	if s.cache != nil {
		if percent, ok := s.cache.GetTaxRate(code); ok {
			return percent, nil
		}
	}

	rate, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return 0, err
	}
	if rate == nil {
		return 0, taxdomain.ErrNotFound
	}

	if s.cache != nil {
		s.cache.SetTaxRate(code, rate.Percent)
	}
	return rate.Percent, nil
}

func (s *service) List(ctx context.Context) ([]taxdomain.TaxRate, error) {
	return s.repo.FindAll(ctx, s.db)
}

// ComputeTaxExclusive calculates tax added on top of an ex-tax amount.
// Rounding happens only here to keep stored values integer-safe.
func ComputeTaxExclusive(amount int64, rate float64) int64 {
	if amount <= 0 || rate <= 0 {
		return 0
	}

	tax := float64(amount) * rate
	result := int64(math.Round(tax))
	if result < 0 {
		return 0
	}
	return result
}
