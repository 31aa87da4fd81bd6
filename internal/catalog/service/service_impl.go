package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/tillpoint/internal/cache"
	"github.com/smallbiznis/tillpoint/internal/catalog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repository domain.Repository
	Cache      cache.ReferenceCache `optional:"true"`
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	cache cache.ReferenceCache
}

func NewService(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		repo:  p.Repository,
		cache: p.Cache,
	}
}

func (s *service) LookupByID(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidID
	}

	if s.cache != nil {
		if product, ok := s.cache.GetProductByID(id); ok {
			return product, nil
		}
	}

	product, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}

	if s.cache != nil {
		s.cache.SetProduct(product)
	}
	return product, nil
}

func (s *service) LookupByCode(ctx context.Context, code string) (*domain.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	if s.cache != nil {
		if product, ok := s.cache.GetProductByCode(code); ok {
			return product, nil
		}
	}

	product, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}

	if s.cache != nil {
		s.cache.SetProduct(product)
	}
	return product, nil
}

func (s *service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.FindAll(ctx, s.db)
}
