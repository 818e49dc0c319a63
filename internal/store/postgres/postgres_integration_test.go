package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"retailpos/backend/internal/domain"
)

// Integration tests run only against a real database. Schema setup is handled
// by New; rows created here are deleted in cleanup.
func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("RETAILPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set RETAILPOS_TEST_DATABASE_URL to run postgres integration tests")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestCommitSaleAndVoidRoundTrip(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	sku := fmt.Sprintf("SKU-IT-%d", stamp)
	txID := fmt.Sprintf("tx-it-%d", stamp)

	product, err := s.CreateProduct(ctx, domain.Product{
		SKU:        sku,
		Name:       "Integration Item",
		Category:   "grocery",
		PriceCents: 5000,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM batch_allocations WHERE transaction_item_id IN (SELECT id FROM transaction_items WHERE transaction_id = $1)`, txID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transaction_items WHERE transaction_id = $1`, txID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, txID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_batches WHERE product_id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
	})

	batch, err := s.CreateStockBatch(ctx, domain.StockBatch{
		ProductID:  product.ID,
		Quantity:   10,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if err := s.AdjustStock(ctx, domain.StockDelta{ProductID: product.ID, Delta: 10}); err != nil {
		t.Fatalf("adjust stock: %v", err)
	}

	fresh, err := s.GetProductByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("reload product: %v", err)
	}

	commit := domain.SaleCommit{
		Transaction: domain.Transaction{
			ID:            txID,
			CashierID:     "it-cashier",
			SubtotalCents: 15000,
			TotalCents:    15000,
			PaymentMethod: "card",
			CreatedAt:     time.Now().UTC(),
			Items: []domain.TransactionItem{{
				ProductID:      product.ID,
				SKU:            sku,
				Quantity:       3,
				UnitPriceCents: 5000,
				LineTotalCents: 15000,
				Allocations:    []domain.BatchAllocation{{BatchID: batch.ID, Quantity: 3}},
			}},
		},
		StockDeltas: []domain.StockDelta{{
			ProductID:       product.ID,
			Delta:           -3,
			ExpectedVersion: &fresh.StockVersion,
		}},
	}

	if _, err := s.CommitSale(ctx, commit); err != nil {
		t.Fatalf("commit sale: %v", err)
	}

	sum, err := s.BatchQuantitySum(ctx, product.ID)
	if err != nil {
		t.Fatalf("batch sum: %v", err)
	}
	if sum != 7 {
		t.Fatalf("expected 7 units left in batches, got %d", sum)
	}

	// Replaying the same version gate must now fail.
	staleErr := s.AdjustStock(ctx, domain.StockDelta{ProductID: product.ID, Delta: -1, ExpectedVersion: &fresh.StockVersion})
	if !errors.Is(staleErr, domain.ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate on stale version, got %v", staleErr)
	}

	voided, err := s.CommitVoid(ctx, domain.VoidCommit{
		TransactionID: txID,
		Reason:        "integration test void",
		VoidedAt:      time.Now().UTC(),
		StockDeltas:   []domain.StockDelta{{ProductID: product.ID, Delta: 3}},
	})
	if err != nil {
		t.Fatalf("commit void: %v", err)
	}
	if !voided.Voided {
		t.Fatalf("expected transaction marked voided")
	}

	sum, err = s.BatchQuantitySum(ctx, product.ID)
	if err != nil {
		t.Fatalf("batch sum after void: %v", err)
	}
	if sum != 10 {
		t.Fatalf("expected batches restored to 10, got %d", sum)
	}

	restored, err := s.GetProductByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("reload product after void: %v", err)
	}
	if restored.CurrentStock != 10 {
		t.Fatalf("expected counter restored to 10, got %d", restored.CurrentStock)
	}
}

func TestReceiveStockBatchCountsAtomically(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	sku := fmt.Sprintf("SKU-RC-%d", stamp)

	product, err := s.CreateProduct(ctx, domain.Product{
		SKU:        sku,
		Name:       "Receipt Item",
		Category:   "grocery",
		PriceCents: 1500,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_batches WHERE product_id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
	})

	if _, err := s.ReceiveStockBatch(ctx, domain.StockBatch{
		ProductID:  product.ID,
		Quantity:   4,
		ReceivedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("receive batch: %v", err)
	}

	fresh, err := s.GetProductByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if fresh.CurrentStock != 4 {
		t.Fatalf("expected counter 4, got %d", fresh.CurrentStock)
	}
	if fresh.StockVersion != product.StockVersion+1 {
		t.Fatalf("expected version bump, got %d", fresh.StockVersion)
	}
	sum, err := s.BatchQuantitySum(ctx, product.ID)
	if err != nil {
		t.Fatalf("batch sum: %v", err)
	}
	if sum != fresh.CurrentStock {
		t.Fatalf("counter %d disagrees with batch sum %d", fresh.CurrentStock, sum)
	}

	if _, err := s.ReceiveStockBatch(ctx, domain.StockBatch{ProductID: "prod-missing", Quantity: 1}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown product, got %v", err)
	}
}

func TestCommitSaleBatchUnderflowRollsBack(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	sku := fmt.Sprintf("SKU-UF-%d", stamp)
	txID := fmt.Sprintf("tx-uf-%d", stamp)

	product, err := s.CreateProduct(ctx, domain.Product{
		SKU:        sku,
		Name:       "Underflow Item",
		Category:   "grocery",
		PriceCents: 2000,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_batches WHERE product_id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
	})

	batch, err := s.CreateStockBatch(ctx, domain.StockBatch{
		ProductID:  product.ID,
		Quantity:   2,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if err := s.AdjustStock(ctx, domain.StockDelta{ProductID: product.ID, Delta: 2}); err != nil {
		t.Fatalf("adjust stock: %v", err)
	}

	fresh, err := s.GetProductByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("reload product: %v", err)
	}

	// Allocation claims more than the batch holds; the guarded decrement must
	// fail and roll the whole commit back.
	_, err = s.CommitSale(ctx, domain.SaleCommit{
		Transaction: domain.Transaction{
			ID:            txID,
			CashierID:     "it-cashier",
			SubtotalCents: 10000,
			TotalCents:    10000,
			PaymentMethod: "card",
			CreatedAt:     time.Now().UTC(),
			Items: []domain.TransactionItem{{
				ProductID:      product.ID,
				SKU:            sku,
				Quantity:       5,
				UnitPriceCents: 2000,
				LineTotalCents: 10000,
				Allocations:    []domain.BatchAllocation{{BatchID: batch.ID, Quantity: 5}},
			}},
		},
		StockDeltas: []domain.StockDelta{{
			ProductID:       product.ID,
			Delta:           -5,
			ExpectedVersion: &fresh.StockVersion,
		}},
	})
	if !errors.Is(err, domain.ErrBatchUnderflow) {
		t.Fatalf("expected ErrBatchUnderflow, got %v", err)
	}

	sum, err := s.BatchQuantitySum(ctx, product.ID)
	if err != nil {
		t.Fatalf("batch sum: %v", err)
	}
	if sum != 2 {
		t.Fatalf("expected batch untouched at 2 after rollback, got %d", sum)
	}

	if _, err := s.FindTransactionByID(ctx, txID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no transaction row after rollback, got %v", err)
	}
}
