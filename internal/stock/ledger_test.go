package stock

import (
	"context"
	"errors"
	"testing"
	"time"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store/memory"
)

func newTestProduct(t *testing.T, repo *memory.Store) *domain.Product {
	t.Helper()
	product, err := repo.CreateProduct(context.Background(), domain.Product{
		SKU:        "SKU-TEST-01",
		Name:       "Test Item",
		Category:   "grocery",
		PriceCents: 5000,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func receiveAt(t *testing.T, ledger *Ledger, productID string, qty int, expiry string) *domain.StockBatch {
	t.Helper()
	batch, err := ledger.ReceiveBatch(context.Background(), domain.ReceiveBatchRequest{
		ProductID:  productID,
		Quantity:   qty,
		ExpiryDate: expiry,
	})
	if err != nil {
		t.Fatalf("receive batch: %v", err)
	}
	return batch
}

func TestReceiveBatchUpdatesCounter(t *testing.T) {
	repo := memory.New()
	ledger := NewLedger(repo)
	product := newTestProduct(t, repo)

	receiveAt(t, ledger, product.ID, 30, "2027-01-15")

	got, err := repo.GetProductByID(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.CurrentStock != 30 {
		t.Fatalf("expected counter 30, got %d", got.CurrentStock)
	}
	if got.StockVersion != product.StockVersion+1 {
		t.Fatalf("expected version bump, got %d", got.StockVersion)
	}

	// The batch row and the counter land together; they can never disagree
	// after a receive.
	sum, err := repo.BatchQuantitySum(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("batch sum: %v", err)
	}
	if sum != got.CurrentStock {
		t.Fatalf("counter %d disagrees with batch sum %d", got.CurrentStock, sum)
	}
}

func TestReceiveBatchValidation(t *testing.T) {
	repo := memory.New()
	ledger := NewLedger(repo)
	product := newTestProduct(t, repo)

	if _, err := ledger.ReceiveBatch(context.Background(), domain.ReceiveBatchRequest{ProductID: product.ID, Quantity: 0}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for zero quantity, got %v", err)
	}
	if _, err := ledger.ReceiveBatch(context.Background(), domain.ReceiveBatchRequest{ProductID: "missing", Quantity: 5}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown product, got %v", err)
	}
	if _, err := ledger.ReceiveBatch(context.Background(), domain.ReceiveBatchRequest{ProductID: product.ID, Quantity: 5, ExpiryDate: "15-01-2027"}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad expiry format, got %v", err)
	}
}

func TestAvailableBatchesOrder(t *testing.T) {
	repo := memory.New()
	ledger := NewLedger(repo)
	product := newTestProduct(t, repo)

	noExpiry := receiveAt(t, ledger, product.ID, 10, "")
	far := receiveAt(t, ledger, product.ID, 10, "2027-06-01")
	near := receiveAt(t, ledger, product.ID, 10, "2026-12-01")

	batches, err := ledger.AvailableBatches(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("available batches: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if batches[0].ID != near.ID || batches[1].ID != far.ID || batches[2].ID != noExpiry.ID {
		t.Fatalf("wrong order: got %s, %s, %s", batches[0].ID, batches[1].ID, batches[2].ID)
	}
}

func TestPlanAllocationWalksExpiryOrder(t *testing.T) {
	now := time.Now().UTC()
	soon := now.AddDate(0, 0, 3)
	later := now.AddDate(0, 0, 10)
	batches := []domain.StockBatch{
		{ID: "b-near", Quantity: 10, ExpiryDate: &soon, ReceivedAt: now},
		{ID: "b-far", Quantity: 5, ExpiryDate: &later, ReceivedAt: now},
	}

	allocations, err := PlanAllocation(batches, 12)
	if err != nil {
		t.Fatalf("plan allocation: %v", err)
	}
	if len(allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(allocations))
	}
	if allocations[0].BatchID != "b-near" || allocations[0].Quantity != 10 {
		t.Fatalf("expected 10 from near batch, got %d from %s", allocations[0].Quantity, allocations[0].BatchID)
	}
	if allocations[1].BatchID != "b-far" || allocations[1].Quantity != 2 {
		t.Fatalf("expected 2 from far batch, got %d from %s", allocations[1].Quantity, allocations[1].BatchID)
	}
}

func TestPlanAllocationShortfall(t *testing.T) {
	batches := []domain.StockBatch{{ID: "b1", Quantity: 4}}

	if _, err := PlanAllocation(batches, 5); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if Available(batches) != 4 {
		t.Fatalf("expected available 4, got %d", Available(batches))
	}
}

func TestAllocateExactFit(t *testing.T) {
	repo := memory.New()
	ledger := NewLedger(repo)
	product := newTestProduct(t, repo)
	batch := receiveAt(t, ledger, product.ID, 7, "2027-03-01")

	allocations, err := ledger.Allocate(context.Background(), product.ID, 7)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if len(allocations) != 1 || allocations[0].BatchID != batch.ID || allocations[0].Quantity != 7 {
		t.Fatalf("unexpected allocation %+v", allocations)
	}
}
