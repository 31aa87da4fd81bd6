package domain

import (
	"context"
	"errors"
)

// Service is the catalog lookup surface consumed by the order processor.
type Service interface {
	LookupByID(ctx context.Context, id int64) (*Product, error)
	LookupByCode(ctx context.Context, code string) (*Product, error)
	List(ctx context.Context) ([]Product, error)
}

var (
	ErrNotFound    = errors.New("not_found")
	ErrInvalidID   = errors.New("invalid_id")
	ErrInvalidCode = errors.New("invalid_code")
)
