package service

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/tillpoint/internal/config"
	obsmetrics "github.com/smallbiznis/tillpoint/internal/observability/metrics"
	seqdomain "github.com/smallbiznis/tillpoint/internal/sequence/domain"
	"github.com/smallbiznis/tillpoint/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Cfg     config.Config
	Locker  *Locker             `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type allocator struct {
	db      *gorm.DB
	log     *zap.Logger
	locker  *Locker
	metrics *obsmetrics.Metrics

	mu          sync.Mutex
	maxAttempts int
	lockTTL     time.Duration
}

func NewAllocator(p Params) seqdomain.Allocator {
	maxAttempts := p.Cfg.AllocatorMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	lockTTL := time.Duration(p.Cfg.AllocatorLockTTLMS) * time.Millisecond
	if lockTTL <= 0 {
		lockTTL = 2 * time.Second
	}

	return &allocator{
		db:          p.DB,
		log:         p.Log.Named("sequence.allocator"),
		locker:      p.Locker,
		metrics:     p.Metrics,
		maxAttempts: maxAttempts,
		lockTTL:     lockTTL,
	}
}

func (a *allocator) Allocate(ctx context.Context, commit func(tx *gorm.DB, id int64) error) (int64, error) {
	// Local callers serialize here; the reserve step below must not
	// interleave with another commit against the same table.
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.locker != nil {
		token, acquired := a.acquireLock(ctx)
		if acquired {
			defer func() {
				if err := a.locker.ReleaseAllocation(ctx, token); err != nil {
					a.log.Warn("failed to release allocation lock", zap.Error(err))
				}
			}()
		}
	}

	var allocated int64
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			id, err := nextOrderID(ctx, tx)
			if err != nil {
				return err
			}
			if err := commit(tx, id); err != nil {
				return err
			}
			allocated = id
			return nil
		})
		if err == nil {
			return allocated, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return 0, err
		}

		// Another writer claimed the same id first; reserve a fresh one.
		if a.metrics != nil {
			a.metrics.RecordAllocationRetry(ctx)
		}
		a.log.Warn("order id collision, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", a.maxAttempts),
		)
	}

	return 0, seqdomain.ErrAllocationFailed
}

// acquireLock spins briefly on the distributed lock. Failing to take it
// is not fatal: the primary-key constraint still guarantees uniqueness,
// the lock only reduces cross-instance collision retries.
func (a *allocator) acquireLock(ctx context.Context) (string, bool) {
	deadline := time.Now().Add(a.lockTTL)
	for {
		token, ok, err := a.locker.AcquireAllocation(ctx, a.lockTTL)
		if err != nil {
			a.log.Warn("allocation lock unavailable", zap.Error(err))
			return "", false
		}
		if ok {
			return token, true
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return "", false
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func nextOrderID(ctx context.Context, tx *gorm.DB) (int64, error) {
	var next int64
	err := tx.WithContext(ctx).
		Raw(`SELECT COALESCE(MAX(id), 0) + 1 FROM orders`).
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}
