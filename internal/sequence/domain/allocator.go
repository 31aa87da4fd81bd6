package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Allocator hands out order identifiers that are unique and strictly
// increasing in commit order under any number of concurrent callers.
//
// Reading MAX(id)+1 and inserting as two separate steps is a race: two
// callers can observe the same maximum before either writes. Allocate
// therefore reserves the id and runs the caller's writes inside one
// transaction, serialized through the allocator, with the primary-key
// constraint as the final arbiter. An id collision rolls the whole
// transaction back and a fresh id is reserved for the next attempt.
type Allocator interface {
	// Allocate opens a transaction, reserves the next order id, and
	// invokes commit with that id inside the same transaction. The
	// returned id is durably committed when error is nil.
	Allocate(ctx context.Context, commit func(tx *gorm.DB, id int64) error) (int64, error)
}

// ErrAllocationFailed reports an exhausted retry budget. The caller
// must abort the whole order; resubmitting later is safe.
var ErrAllocationFailed = errors.New("allocation_failed")
