package stock

import (
	"context"
	"strings"
	"time"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store"
)

// Ledger manages expiry-dated stock batches. Batches are the source of truth
// for how much stock exists; the cached counter on the product row is a
// performance projection maintained by the Synchronizer.
type Ledger struct {
	repo store.Repository
}

func NewLedger(repo store.Repository) *Ledger {
	return &Ledger{repo: repo}
}

func (l *Ledger) ReceiveBatch(ctx context.Context, req domain.ReceiveBatchRequest) (*domain.StockBatch, error) {
	if strings.TrimSpace(req.ProductID) == "" || req.Quantity < 1 {
		return nil, domain.ErrInvalidRequest
	}
	if _, err := l.repo.GetProductByID(ctx, req.ProductID); err != nil {
		return nil, err
	}

	batch := domain.StockBatch{
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		SupplierRef: strings.TrimSpace(req.SupplierRef),
		ReceivedAt:  time.Now().UTC(),
	}
	if strings.TrimSpace(req.ExpiryDate) != "" {
		expiry, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.ExpiryDate), time.UTC)
		if err != nil {
			return nil, domain.ErrInvalidRequest
		}
		batch.ExpiryDate = &expiry
	}

	// Insert and counter increment travel together so a failure can never
	// record stock the counter does not know about.
	return l.repo.ReceiveStockBatch(ctx, batch)
}

// AvailableBatches returns batches with remaining quantity in consumption
// order: soonest expiry first, never-expiring batches last, ties broken by
// receipt time.
func (l *Ledger) AvailableBatches(ctx context.Context, productID string) ([]domain.StockBatch, error) {
	return l.repo.AvailableBatches(ctx, productID)
}

// Allocate plans a FIFO allocation against the current batch state. The plan
// is applied later inside the repository commit, so callers holding a plan do
// not yet own the stock.
func (l *Ledger) Allocate(ctx context.Context, productID string, quantity int) ([]domain.BatchAllocation, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidRequest
	}
	batches, err := l.repo.AvailableBatches(ctx, productID)
	if err != nil {
		return nil, err
	}
	return PlanAllocation(batches, quantity)
}

// Available sums remaining quantity over a batch list. This live sum, not the
// cached counter, decides whether a sale is rejected.
func Available(batches []domain.StockBatch) int {
	sum := 0
	for _, batch := range batches {
		sum += batch.Quantity
	}
	return sum
}

// PlanAllocation greedily walks batches in the order given, draining each
// before moving to the next. It never splits below what is needed and never
// plans a batch negative.
func PlanAllocation(batches []domain.StockBatch, quantity int) ([]domain.BatchAllocation, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidRequest
	}

	remaining := quantity
	allocations := make([]domain.BatchAllocation, 0, 2)
	for _, batch := range batches {
		if remaining == 0 {
			break
		}
		if batch.Quantity < 1 {
			continue
		}
		used := remaining
		if used > batch.Quantity {
			used = batch.Quantity
		}
		allocations = append(allocations, domain.BatchAllocation{BatchID: batch.ID, Quantity: used})
		remaining -= used
	}
	if remaining > 0 {
		return nil, domain.ErrInsufficientStock
	}
	return allocations, nil
}
