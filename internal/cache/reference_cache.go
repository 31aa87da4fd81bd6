package cache

import (
	"strconv"
	"time"

	catalogdomain "github.com/smallbiznis/tillpoint/internal/catalog/domain"
)

const (
	defaultProductTTL = 10 * time.Minute
	defaultTaxRateTTL = 10 * time.Minute
)

// ReferenceCache stores hot-path reference lookups for order submission.
type ReferenceCache interface {
	GetProductByID(id int64) (*catalogdomain.Product, bool)
	GetProductByCode(code string) (*catalogdomain.Product, bool)
	SetProduct(product *catalogdomain.Product)
	GetTaxRate(code int) (float64, bool)
	SetTaxRate(code int, percent float64)
}

type referenceCache struct {
	productsByID   Cache[int64, *catalogdomain.Product]
	productsByCode Cache[string, *catalogdomain.Product]
	taxRates       Cache[string, float64]
	productTTL     time.Duration
	taxRateTTL     time.Duration
}

// NewReferenceCache returns an in-memory cache tuned for reference data.
func NewReferenceCache() ReferenceCache {
	return &referenceCache{
		productsByID:   NewTTLCache[int64, *catalogdomain.Product](),
		productsByCode: NewTTLCache[string, *catalogdomain.Product](),
		taxRates:       NewTTLCache[string, float64](),
		productTTL:     defaultProductTTL,
		taxRateTTL:     defaultTaxRateTTL,
	}
}

func (c *referenceCache) GetProductByID(id int64) (*catalogdomain.Product, bool) {
	return c.productsByID.Get(id)
}

func (c *referenceCache) GetProductByCode(code string) (*catalogdomain.Product, bool) {
	return c.productsByCode.Get(code)
}

func (c *referenceCache) SetProduct(product *catalogdomain.Product) {
	if product == nil || product.ID == 0 {
		return
	}
	c.productsByID.Set(product.ID, product, c.productTTL)
	if product.Code != "" {
		c.productsByCode.Set(product.Code, product, c.productTTL)
	}
}

func (c *referenceCache) GetTaxRate(code int) (float64, bool) {
	return c.taxRates.Get(strconv.Itoa(code))
}

func (c *referenceCache) SetTaxRate(code int, percent float64) {
	c.taxRates.Set(strconv.Itoa(code), percent, c.taxRateTTL)
}
