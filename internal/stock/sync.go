package stock

import (
	"context"
	"log"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store"
)

// Synchronizer keeps the cached per-product counter consistent with the
// batch ledger. All writes go through conditional version-gated updates; the
// reconcile paths exist to repair drift after crashes or manual edits.
type Synchronizer struct {
	repo store.Repository
}

func NewSynchronizer(repo store.Repository) *Synchronizer {
	return &Synchronizer{repo: repo}
}

// Recompute returns the ground-truth stock level from the batch ledger.
func (s *Synchronizer) Recompute(ctx context.Context, productID string) (int, error) {
	if _, err := s.repo.GetProductByID(ctx, productID); err != nil {
		return 0, err
	}
	return s.repo.BatchQuantitySum(ctx, productID)
}

// ConditionalAdjust adds delta to the cached counter iff the stored version
// still matches expectedVersion. A nil expectedVersion applies
// unconditionally. Losing the version race returns
// domain.ErrConcurrentUpdate; the caller decides whether to retry.
func (s *Synchronizer) ConditionalAdjust(ctx context.Context, productID string, delta int, expectedVersion *int64) error {
	return s.repo.AdjustStock(ctx, domain.StockDelta{
		ProductID:       productID,
		Delta:           delta,
		ExpectedVersion: expectedVersion,
	})
}

// ReconcileOne forces the counter to the recomputed batch sum in a single
// atomic write, regardless of the current version.
func (s *Synchronizer) ReconcileOne(ctx context.Context, productID string) error {
	sum, err := s.Recompute(ctx, productID)
	if err != nil {
		return err
	}
	return s.repo.SetStock(ctx, productID, sum)
}

// ReconcileAll sweeps every product independently. A failure on one product
// is recorded in the report and the sweep continues.
func (s *Synchronizer) ReconcileAll(ctx context.Context) (domain.ReconcileReport, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.ReconcileReport{}, err
	}

	report := domain.ReconcileReport{Failures: map[string]string{}}
	for _, product := range products {
		report.Checked++
		sum, err := s.repo.BatchQuantitySum(ctx, product.ID)
		if err != nil {
			report.Failures[product.ID] = err.Error()
			continue
		}
		if sum == product.CurrentStock {
			continue
		}
		if err := s.repo.SetStock(ctx, product.ID, sum); err != nil {
			report.Failures[product.ID] = err.Error()
			continue
		}
		log.Printf("[stock-sync] repaired counter for %s: %d -> %d", product.SKU, product.CurrentStock, sum)
		report.Repaired++
	}
	if len(report.Failures) == 0 {
		report.Failures = nil
	}
	return report, nil
}
