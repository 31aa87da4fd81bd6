package domain

import "errors"

var (
	// Recoverable by the caller: fix the request and resubmit.
	ErrEmptyCart       = errors.New("empty_cart")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrProductNotFound = errors.New("product_not_found")
	ErrTaxCodeNotFound = errors.New("tax_code_not_found")
	ErrTotalMismatch   = errors.New("total_mismatch")

	// Infrastructure faults: the whole submission is safe to retry.
	ErrAllocationFailed  = errors.New("allocation_failed")
	ErrPersistenceFailed = errors.New("persistence_failed")
)
