package domain

import "context"

// Service persists a cart as one order plus its lines, atomically.
type Service interface {
	// Submit resolves the cart, computes totals, allocates an order id
	// and writes the header with every line in a single transaction.
	// On any failure nothing attributable to the attempt survives.
	Submit(ctx context.Context, req SubmitRequest) (*Order, error)
}

// CartItem references a product by id with a positive quantity.
type CartItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// SubmitRequest carries the cart in caller order plus the tax code to
// apply. Declared totals are optional; when present they are checked
// against the server-computed totals.
type SubmitRequest struct {
	Items              []CartItem `json:"items"`
	TaxCode            int        `json:"tax_code"`
	DeclaredTotalWith  *int64     `json:"total_with_tax,omitempty"`
	DeclaredTotalExTax *int64     `json:"total_without_tax,omitempty"`
}
