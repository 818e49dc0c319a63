package store

import (
	"context"
	"time"

	"retailpos/backend/internal/domain"
)

// Repository is the persistence contract. CommitSale and CommitVoid apply
// their whole payload all-or-nothing: every conditional stock delta must
// match its expected version and every guarded batch decrement must leave a
// non-negative quantity, or nothing is written and domain.ErrConcurrentUpdate
// (respectively domain.ErrBatchUnderflow) comes back.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	CreateStockBatch(ctx context.Context, batch domain.StockBatch) (*domain.StockBatch, error)
	// ReceiveStockBatch inserts the batch and bumps the cached counter in
	// one write, so a failure can never record stock without counting it.
	ReceiveStockBatch(ctx context.Context, batch domain.StockBatch) (*domain.StockBatch, error)
	// AvailableBatches returns quantity > 0 batches ordered by expiry date
	// ascending with NULLs last, then received time ascending.
	AvailableBatches(ctx context.Context, productID string) ([]domain.StockBatch, error)
	BatchQuantitySum(ctx context.Context, productID string) (int, error)
	AdjustStock(ctx context.Context, delta domain.StockDelta) error
	SetStock(ctx context.Context, productID string, qty int) error

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	ApplyLoyaltyUpdate(ctx context.Context, update domain.LoyaltyUpdate) error
	ListLoyaltyEntries(ctx context.Context, customerID string) ([]domain.LoyaltyEntry, error)

	FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Transaction, error)
	CommitSale(ctx context.Context, commit domain.SaleCommit) (*domain.Transaction, error)
	CommitVoid(ctx context.Context, commit domain.VoidCommit) (*domain.Transaction, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
