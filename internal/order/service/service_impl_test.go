package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tillpoint/internal/cache"
	catalogdomain "github.com/smallbiznis/tillpoint/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/tillpoint/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/tillpoint/internal/catalog/service"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/config"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	seqdomain "github.com/smallbiznis/tillpoint/internal/sequence/domain"
	seqservice "github.com/smallbiznis/tillpoint/internal/sequence/service"
	taxdomain "github.com/smallbiznis/tillpoint/internal/tax/domain"
	taxrepo "github.com/smallbiznis/tillpoint/internal/tax/repository"
	taxservice "github.com/smallbiznis/tillpoint/internal/tax/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockAllocator struct {
	mock.Mock
}

func (m *mockAllocator) Allocate(ctx context.Context, commit func(tx *gorm.DB, id int64) error) (int64, error) {
	args := m.Called(ctx, commit)
	return args.Get(0).(int64), args.Error(1)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&catalogdomain.Product{},
		&taxdomain.TaxRate{},
		&orderdomain.Order{},
		&orderdomain.OrderLine{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	logger := zap.NewNop()
	cfg := config.Config{EmployeeRef: 10, StoreRef: 5, TerminalRef: 100, AllocatorMaxAttempts: 3}
	refCache := cache.NewReferenceCache()

	catalogSvc := catalogservice.NewService(catalogservice.Params{
		DB:         db,
		Log:        logger,
		Repository: catalogrepo.Provide(),
		Cache:      refCache,
	})
	taxSvc := taxservice.NewService(taxservice.Params{
		DB:         db,
		Log:        logger,
		Repository: taxrepo.NewRepository(),
		Cache:      refCache,
	})
	allocator := seqservice.NewAllocator(seqservice.Params{
		DB:  db,
		Log: logger,
		Cfg: cfg,
	})

	svc := NewService(Params{
		Log:       logger,
		Cfg:       cfg,
		Clock:     clock.NewFakeClock(time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)),
		GenID:     node,
		Allocator: allocator,
		Catalog:   catalogSvc,
		Tax:       taxSvc,
	})
	return svc.(*Service)
}

func seedReference(t *testing.T, db *gorm.DB) {
	t.Helper()

	require.NoError(t, db.Create(&taxdomain.TaxRate{Code: 10, Percent: 0.10, Name: "Standard"}).Error)
	require.NoError(t, db.Create(&catalogdomain.Product{ID: 1, Code: "4900000000017", Name: "Drip Coffee (Hot)", UnitPrice: 100, Active: true}).Error)
	require.NoError(t, db.Create(&catalogdomain.Product{ID: 2, Code: "4900000000024", Name: "Cafe Latte", UnitPrice: 50, Active: true}).Error)
}

func countRows(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Raw(fmt.Sprintf(`SELECT COUNT(1) FROM %s`, table)).Scan(&count).Error)
	return count
}

func TestSubmit_ComputesTotalsServerSide(t *testing.T) {
	db := newTestDB(t)
	seedReference(t, db)
	svc := newTestService(t, db)

	order, err := svc.Submit(context.Background(), orderdomain.SubmitRequest{
		Items: []orderdomain.CartItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
		TaxCode: 10,
	})
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, int64(1), order.ID)
	assert.Equal(t, int64(250), order.TotalExTax)
	assert.Equal(t, int64(275), order.TotalWithTax)
	assert.Equal(t, 10, order.EmployeeRef)
	assert.Equal(t, 5, order.StoreRef)
	assert.Equal(t, 100, order.TerminalRef)

	var stored orderdomain.Order
	require.NoError(t, db.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, int64(250), stored.TotalExTax)
	assert.Equal(t, int64(275), stored.TotalWithTax)
}

func TestSubmit_ExpandsQuantityIntoUnitLines(t *testing.T) {
	db := newTestDB(t)
	seedReference(t, db)
	svc := newTestService(t, db)

	order, err := svc.Submit(context.Background(), orderdomain.SubmitRequest{
		Items:   []orderdomain.CartItem{{ProductID: 1, Quantity: 3}},
		TaxCode: 10,
	})
	require.NoError(t, err)

	var lines []orderdomain.OrderLine
	require.NoError(t, db.Order("line_no ASC").Find(&lines, "order_id = ?", order.ID).Error)
	require.Len(t, lines, 3)
	for i, line := range lines {
		assert.Equal(t, i+1, line.LineNo)
		assert.Equal(t, int64(1), line.ProductID)
		assert.Equal(t, "4900000000017", line.ProductCode)
		assert.Equal(t, "Drip Coffee (Hot)", line.ProductName)
		assert.Equal(t, int64(100), line.UnitPrice)
		assert.Equal(t, 10, line.TaxCode)
	}
}

func TestSubmit_ProductNotFoundLeavesStorageUnchanged(t *testing.T) {
	db := newTestDB(t)
	seedReference(t, db)
	svc := newTestService(t, db)

	_, err := svc.Submit(context.Background(), orderdomain.SubmitRequest{
		Items: []orderdomain.CartItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 999, Quantity: 1},
		},
		TaxCode: 10,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, orderdomain.ErrProductNotFound)
	assert.ErrorContains(t, err, "product_id=999")

	assert.Equal(t, int64(0), countRows(t, db, "orders"))
	assert.Equal(t, int64(0), countRows(t, db, "order_lines"))
}

func TestSubmit_UnknownTaxCodeFailsBeforeWrites(t *testing.T) {
	db := newTestDB(t)
	seedReference(t, db)
	svc := newTestService(t, db)

	_, err := svc.Submit(context.Background(), orderdomain.SubmitRequest{
		Items:   []orderdomain.CartItem{{ProductID: 1, Quantity: 1}},
		TaxCode: 77,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, orderdomain.ErrTaxCodeNotFound)

	assert.Equal(t, int64(0), countRows(t, db, "orders"))
}

func TestSubmit_RejectsEmptyCartAndBadQuantities(t *testing.T) {
	db := newTestDB(t)
	seedReference(t, db)
	svc := newTestService(t, db)

	_, err := svc.Submit(context.Background(), orderdomain.SubmitRequest{TaxCode: 10})
	assert.ErrorIs(t, err, orderdomain.ErrEmptyCart)

	_, err = svc.Submit(context.Background(), orderdomain.SubmitRequest{
		Items:   []orderdomain.CartItem{{ProductID: 1, Quantity: 0}},
		TaxCode: 10,
	})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidQuantity)
}

func TestSubmit_DeclaredTotalsCheckedAgainstComputed(t *testing.T) {
	db := newTestDB(t)
	seedReference(t, db)
	svc := newTestService(t, db)

	exact := int64(275)
	order, err := svc.Submit(context.Background(), orderdomain.SubmitRequest{
		Items: []orderdomain.CartItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
		TaxCode:           10,
		DeclaredTotalWith: &exact,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(275), order.TotalWithTax)

	wayOff := int64(9999)
	_, err = svc.Submit(context.Background(), orderdomain.SubmitRequest{
		Items:             []orderdomain.CartItem{{ProductID: 1, Quantity: 1}},
		TaxCode:           10,
		DeclaredTotalWith: &wayOff,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, orderdomain.ErrTotalMismatch)
}

func TestSubmit_AllocationFailureIsReportedAsRetryable(t *testing.T) {
	db := newTestDB(t)
	seedReference(t, db)
	svc := newTestService(t, db)

	allocator := new(mockAllocator)
	allocator.On("Allocate", mock.Anything, mock.Anything).Return(int64(0), seqdomain.ErrAllocationFailed)
	svc.allocator = allocator

	_, err := svc.Submit(context.Background(), orderdomain.SubmitRequest{
		Items:   []orderdomain.CartItem{{ProductID: 1, Quantity: 1}},
		TaxCode: 10,
	})
	assert.ErrorIs(t, err, orderdomain.ErrAllocationFailed)
	allocator.AssertExpectations(t)
}

func TestSubmit_StorageFaultSurfacesAsPersistenceFailure(t *testing.T) {
	db := newTestDB(t)
	seedReference(t, db)
	svc := newTestService(t, db)

	allocator := new(mockAllocator)
	allocator.On("Allocate", mock.Anything, mock.Anything).Return(int64(0), fmt.Errorf("disk I/O error"))
	svc.allocator = allocator

	_, err := svc.Submit(context.Background(), orderdomain.SubmitRequest{
		Items:   []orderdomain.CartItem{{ProductID: 1, Quantity: 1}},
		TaxCode: 10,
	})
	assert.ErrorIs(t, err, orderdomain.ErrPersistenceFailed)
}

func TestSubmit_LineCollisionRollsBackWholeOrder(t *testing.T) {
	db := newTestDB(t)
	seedReference(t, db)
	svc := newTestService(t, db)

	// A stray line row already occupies (order_id=1, line_no=1), so the
	// line insert keeps violating the unique index until the allocator
	// gives up. Nothing from the attempt may survive.
	require.NoError(t, db.Exec(
		`INSERT INTO order_lines (id, order_id, line_no, product_id, product_code, product_name, unit_price, tax_code, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(42), int64(1), 1, int64(1), "stray", "stray", int64(1), 10, time.Now().UTC(),
	).Error)

	_, err := svc.Submit(context.Background(), orderdomain.SubmitRequest{
		Items:   []orderdomain.CartItem{{ProductID: 1, Quantity: 1}},
		TaxCode: 10,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, orderdomain.ErrAllocationFailed)

	assert.Equal(t, int64(0), countRows(t, db, "orders"))
	assert.Equal(t, int64(1), countRows(t, db, "order_lines"))
}

func TestSubmit_ConcurrentSubmissionsGetDistinctIDs(t *testing.T) {
	db := newTestDB(t)
	seedReference(t, db)
	svc := newTestService(t, db)

	const callers = 64

	var wg sync.WaitGroup
	ids := make(chan int64, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := svc.Submit(context.Background(), orderdomain.SubmitRequest{
				Items:   []orderdomain.CartItem{{ProductID: 1, Quantity: 1}},
				TaxCode: 10,
			})
			if err != nil {
				errs <- err
				return
			}
			ids <- order.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent submit failed: %v", err)
	}

	seen := make(map[int64]bool, callers)
	for id := range ids {
		assert.False(t, seen[id], "duplicate order id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, callers)
	assert.Equal(t, int64(callers), countRows(t, db, "orders"))
	assert.Equal(t, int64(callers), countRows(t, db, "order_lines"))
}

func TestSubmit_DeclaredExTaxCheckedAgainstComputed(t *testing.T) {
	db := newTestDB(t)
	seedReference(t, db)
	svc := newTestService(t, db)

	exact := int64(250)
	order, err := svc.Submit(context.Background(), orderdomain.SubmitRequest{
		Items: []orderdomain.CartItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
		TaxCode:            10,
		DeclaredTotalExTax: &exact,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250), order.TotalExTax)

	wayOff := int64(1)
	_, err = svc.Submit(context.Background(), orderdomain.SubmitRequest{
		Items:              []orderdomain.CartItem{{ProductID: 1, Quantity: 1}},
		TaxCode:            10,
		DeclaredTotalExTax: &wayOff,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, orderdomain.ErrTotalMismatch)
	assert.ErrorContains(t, err, "declared_ex_tax=1")

	assert.Equal(t, int64(1), countRows(t, db, "orders"))
}

func TestSubmit_CanceledContextLeavesStorageUnchanged(t *testing.T) {
	db := newTestDB(t)
	seedReference(t, db)
	svc := newTestService(t, db)

	// Warm the reference cache so cancellation lands on the write path
	// rather than on the first lookup.
	_, err := svc.tax.LookupRate(context.Background(), 10)
	require.NoError(t, err)
	_, err = svc.catalog.LookupByID(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.Submit(ctx, orderdomain.SubmitRequest{
		Items:   []orderdomain.CartItem{{ProductID: 1, Quantity: 2}},
		TaxCode: 10,
	})
	require.Error(t, err)

	assert.Equal(t, int64(0), countRows(t, db, "orders"))
	assert.Equal(t, int64(0), countRows(t, db, "order_lines"))
}
