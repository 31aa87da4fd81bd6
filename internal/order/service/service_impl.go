package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/tillpoint/internal/catalog/domain"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/config"
	obsmetrics "github.com/smallbiznis/tillpoint/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/tillpoint/internal/order/domain"
	seqdomain "github.com/smallbiznis/tillpoint/internal/sequence/domain"
	taxdomain "github.com/smallbiznis/tillpoint/internal/tax/domain"
	taxservice "github.com/smallbiznis/tillpoint/internal/tax/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Cfg       config.Config
	Clock     clock.Clock
	GenID     *snowflake.Node
	Allocator seqdomain.Allocator
	Catalog   catalogdomain.Service
	Tax       taxdomain.Service
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	cfg       config.Config
	clock     clock.Clock
	genID     *snowflake.Node
	allocator seqdomain.Allocator
	catalog   catalogdomain.Service
	tax       taxdomain.Service
	metrics   *obsmetrics.Metrics
}

func NewService(p Params) orderdomain.Service {
	return &Service{
		log:       p.Log.Named("order.service"),
		cfg:       p.Cfg,
		clock:     p.Clock,
		genID:     p.GenID,
		allocator: p.Allocator,
		catalog:   p.Catalog,
		tax:       p.Tax,
		metrics:   p.Metrics,
	}
}

type resolvedItem struct {
	product  *catalogdomain.Product
	quantity int
}

func (s *Service) Submit(ctx context.Context, req orderdomain.SubmitRequest) (*orderdomain.Order, error) {
	if len(req.Items) == 0 {
		return nil, s.fail(ctx, "empty_cart", orderdomain.ErrEmptyCart)
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, s.fail(ctx, "invalid_quantity",
				fmt.Errorf("%w: product_id=%d quantity=%d", orderdomain.ErrInvalidQuantity, item.ProductID, item.Quantity))
		}
	}

	// Resolution happens before any write so not-found failures never
	// touch the order tables.
	rate, err := s.tax.LookupRate(ctx, req.TaxCode)
	if err != nil {
		if errors.Is(err, taxdomain.ErrNotFound) || errors.Is(err, taxdomain.ErrInvalidTaxCode) {
			return nil, s.fail(ctx, "tax_code_not_found",
				fmt.Errorf("%w: tax_code=%d", orderdomain.ErrTaxCodeNotFound, req.TaxCode))
		}
		return nil, s.fail(ctx, "tax_lookup", fmt.Errorf("resolve tax rate: %w", err))
	}

	resolved := make([]resolvedItem, 0, len(req.Items))
	totalUnits := 0
	for _, item := range req.Items {
		product, err := s.catalog.LookupByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, catalogdomain.ErrNotFound) || errors.Is(err, catalogdomain.ErrInvalidID) {
				return nil, s.fail(ctx, "product_not_found",
					fmt.Errorf("%w: product_id=%d", orderdomain.ErrProductNotFound, item.ProductID))
			}
			return nil, s.fail(ctx, "product_lookup", fmt.Errorf("resolve product %d: %w", item.ProductID, err))
		}
		resolved = append(resolved, resolvedItem{product: product, quantity: item.Quantity})
		totalUnits += item.Quantity
	}

	// Totals are recomputed here from resolved unit prices; the stored
	// header never trusts caller arithmetic. With-tax amounts round per
	// unit so the header equals the sum over materialized lines.
	var totalExTax, totalWithTax int64
	for _, item := range resolved {
		unitWithTax := item.product.UnitPrice + taxservice.ComputeTaxExclusive(item.product.UnitPrice, rate)
		totalExTax += item.product.UnitPrice * int64(item.quantity)
		totalWithTax += unitWithTax * int64(item.quantity)
	}

	if err := checkDeclaredTotals(req, totalExTax, totalWithTax, int64(totalUnits)); err != nil {
		return nil, s.fail(ctx, "total_mismatch", err)
	}

	occurredAt := s.clock.Now()
	header := orderdomain.Order{
		OccurredAt:   occurredAt,
		EmployeeRef:  s.cfg.EmployeeRef,
		StoreRef:     s.cfg.StoreRef,
		TerminalRef:  s.cfg.TerminalRef,
		TaxCode:      req.TaxCode,
		TotalWithTax: totalWithTax,
		TotalExTax:   totalExTax,
		CreatedAt:    occurredAt,
	}

	orderID, err := s.allocator.Allocate(ctx, func(tx *gorm.DB, id int64) error {
		return s.persistOrder(ctx, tx, id, header, resolved)
	})
	if err != nil {
		if errors.Is(err, seqdomain.ErrAllocationFailed) {
			return nil, s.fail(ctx, "allocation_failed", orderdomain.ErrAllocationFailed)
		}
		return nil, s.fail(ctx, "persistence_failed",
			fmt.Errorf("%w: %v", orderdomain.ErrPersistenceFailed, err))
	}

	header.ID = orderID
	if s.metrics != nil {
		s.metrics.RecordOrderCreated(ctx)
		s.metrics.RecordOrderLines(ctx, int64(totalUnits))
	}
	s.log.Info("order committed",
		zap.Int64("order_id", orderID),
		zap.Int("lines", totalUnits),
		zap.Int64("total_with_tax", totalWithTax),
		zap.Int64("total_ex_tax", totalExTax),
	)
	return &header, nil
}

// persistOrder writes the header and one row per purchased unit inside
// the allocator's transaction. Line numbers are contiguous from 1 in
// cart order.
func (s *Service) persistOrder(ctx context.Context, tx *gorm.DB, orderID int64, header orderdomain.Order, resolved []resolvedItem) error {
	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, occurred_at, employee_ref, store_ref, terminal_ref, tax_code, total_with_tax, total_ex_tax, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		orderID,
		header.OccurredAt,
		header.EmployeeRef,
		header.StoreRef,
		header.TerminalRef,
		header.TaxCode,
		header.TotalWithTax,
		header.TotalExTax,
		header.CreatedAt,
	).Error; err != nil {
		return err
	}

	lineNo := 1
	for _, item := range resolved {
		for unit := 0; unit < item.quantity; unit++ {
			if err := tx.WithContext(ctx).Exec(
				`INSERT INTO order_lines (
					id, order_id, line_no, product_id, product_code, product_name, unit_price, tax_code, occurred_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				s.genID.Generate(),
				orderID,
				lineNo,
				item.product.ID,
				item.product.Code,
				item.product.Name,
				item.product.UnitPrice,
				header.TaxCode,
				header.OccurredAt,
			).Error; err != nil {
				return err
			}
			lineNo++
		}
	}

	return nil
}

func checkDeclaredTotals(req orderdomain.SubmitRequest, computedExTax, computedWithTax, tolerance int64) error {
	if req.DeclaredTotalExTax != nil {
		if diff := absInt64(*req.DeclaredTotalExTax - computedExTax); diff > tolerance {
			return fmt.Errorf("%w: declared_ex_tax=%d computed=%d", orderdomain.ErrTotalMismatch, *req.DeclaredTotalExTax, computedExTax)
		}
	}
	if req.DeclaredTotalWith != nil {
		if diff := absInt64(*req.DeclaredTotalWith - computedWithTax); diff > tolerance {
			return fmt.Errorf("%w: declared_with_tax=%d computed=%d", orderdomain.ErrTotalMismatch, *req.DeclaredTotalWith, computedWithTax)
		}
	}
	return nil
}

func (s *Service) fail(ctx context.Context, reason string, err error) error {
	if s.metrics != nil {
		s.metrics.RecordOrderFailure(ctx, reason)
	}
	s.log.Warn("order submission rejected", zap.String("reason", reason), zap.Error(err))
	return err
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
