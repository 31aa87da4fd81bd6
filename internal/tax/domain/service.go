package domain

import "context"

// Service resolves tax percentages for the order processor.
type Service interface {
	// LookupRate returns the percentage fraction for code (0.10 for 10%).
	LookupRate(ctx context.Context, code int) (float64, error)
	List(ctx context.Context) ([]TaxRate, error)
}
