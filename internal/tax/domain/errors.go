package domain

import "errors"

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidTaxCode = errors.New("invalid_tax_code")
	ErrInvalidTaxRate = errors.New("invalid_tax_rate")
)
