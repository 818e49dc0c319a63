package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/xid"
)

var _ store.Repository = (*Store)(nil)

type Store struct {
	mu               sync.RWMutex
	productsByID     map[string]domain.Product
	productIDBySKU   map[string]string
	batchesByProduct map[string][]domain.StockBatch
	customersByID    map[string]domain.Customer
	loyaltyEntries   map[string][]domain.LoyaltyEntry
	transactionsByID map[string]*domain.Transaction
	auditLogs        []domain.AuditLog
	usersByUsername  map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		productsByID:     map[string]domain.Product{},
		productIDBySKU:   map[string]string{},
		batchesByProduct: map[string][]domain.StockBatch{},
		customersByID:    map[string]domain.Customer{},
		loyaltyEntries:   map[string][]domain.LoyaltyEntry{},
		transactionsByID: map[string]*domain.Transaction{},
		auditLogs:        make([]domain.AuditLog, 0, 128),
		usersByUsername:  map[string]domain.UserAccount{},
	}
}

func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prod-mie-01", SKU: "SKU-MIE-01", Name: "Mie Goreng Instan", Category: "grocery", PriceCents: 3500, MinStockLevel: 24, Active: true},
		{ID: "prod-telur-01", SKU: "SKU-TELUR-01", Name: "Telur 10 Butir", Category: "grocery", PriceCents: 26500, MinStockLevel: 10, Active: true},
		{ID: "prod-susu-01", SKU: "SKU-SUSU-01", Name: "Susu UHT 1L", Category: "dairy", PriceCents: 18900, MinStockLevel: 12, Active: true},
		{ID: "prod-roti-01", SKU: "SKU-ROTI-01", Name: "Roti Tawar", Category: "bakery", PriceCents: 17800, MinStockLevel: 8, Active: true},
		{ID: "prod-kopi-01", SKU: "SKU-KOPI-01", Name: "Kopi Sachet", Category: "beverage", PriceCents: 2600, MinStockLevel: 40, Active: true},
		{ID: "prod-air-01", SKU: "SKU-AIR-01", Name: "Air Mineral 600ml", Category: "beverage", PriceCents: 3900, MinStockLevel: 48, Active: true},
		{ID: "prod-sabun-01", SKU: "SKU-SABUN-01", Name: "Sabun Mandi", Category: "household", PriceCents: 7400, MinStockLevel: 12, Active: true},
	}
	for _, p := range products {
		p.CurrentStock = 120
		p.CreatedAt = now
		s.productsByID[p.ID] = p
		s.productIDBySKU[p.SKU] = p.ID
		expiry := now.AddDate(0, 6, 0)
		s.batchesByProduct[p.ID] = []domain.StockBatch{{
			ID:          xid.New("batch"),
			ProductID:   p.ID,
			Quantity:    120,
			ExpiryDate:  &expiry,
			ReceivedAt:  now,
			SupplierRef: "SEED",
		}}
	}

	customers := []domain.Customer{
		{ID: "cust-andi", Name: "Andi Wijaya", Phone: "0812-1111-2222", LoyaltyTier: domain.TierBronze, Active: true, CreatedAt: now},
		{ID: "cust-sari", Name: "Sari Lestari", Phone: "0813-3333-4444", LoyaltyTier: domain.TierBronze, Active: true, CreatedAt: now},
	}
	for _, c := range customers {
		s.customersByID[c.ID] = c
	}

	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.SKU == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, domain.ErrInvalidRequest
	}
	if _, exists := s.productIDBySKU[product.SKU]; exists {
		return nil, domain.ErrInvalidRequest
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true
	product.CurrentStock = 0
	product.StockVersion = 0

	s.productsByID[product.ID] = product
	s.productIDBySKU[product.SKU] = product.ID
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsByID[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.productIDBySKU[sku]
	if !exists {
		return nil, domain.ErrNotFound
	}
	product := s.productsByID[id]
	copyProduct := product
	return &copyProduct, nil
}

// UpdateProduct rewrites catalog fields only. Stock counters and versions
// move exclusively through AdjustStock, SetStock and the commit methods.
func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.PriceCents < 1 {
		return nil, domain.ErrInvalidRequest
	}
	existing, exists := s.productsByID[product.ID]
	if !exists {
		return nil, domain.ErrNotFound
	}

	existing.Name = product.Name
	existing.Category = product.Category
	existing.PriceCents = product.PriceCents
	existing.MinStockLevel = product.MinStockLevel
	existing.Active = product.Active
	s.productsByID[product.ID] = existing
	updated := existing
	return &updated, nil
}

func (s *Store) CreateStockBatch(_ context.Context, batch domain.StockBatch) (*domain.StockBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if batch.ProductID == "" || batch.Quantity < 1 {
		return nil, domain.ErrInvalidRequest
	}
	if _, exists := s.productsByID[batch.ProductID]; !exists {
		return nil, domain.ErrNotFound
	}
	if batch.ID == "" {
		batch.ID = xid.New("batch")
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}

	s.batchesByProduct[batch.ProductID] = append(s.batchesByProduct[batch.ProductID], batch)
	created := cloneBatch(batch)
	return &created, nil
}

// ReceiveStockBatch records the batch and counts it in one step under the
// store lock, so readers never see a batch the counter does not know about.
func (s *Store) ReceiveStockBatch(_ context.Context, batch domain.StockBatch) (*domain.StockBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if batch.ProductID == "" || batch.Quantity < 1 {
		return nil, domain.ErrInvalidRequest
	}
	product, exists := s.productsByID[batch.ProductID]
	if !exists {
		return nil, domain.ErrNotFound
	}
	if batch.ID == "" {
		batch.ID = xid.New("batch")
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}

	s.batchesByProduct[batch.ProductID] = append(s.batchesByProduct[batch.ProductID], batch)
	product.CurrentStock += batch.Quantity
	product.StockVersion++
	s.productsByID[batch.ProductID] = product

	created := cloneBatch(batch)
	return &created, nil
}

func (s *Store) AvailableBatches(_ context.Context, productID string) ([]domain.StockBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.productsByID[productID]; !exists {
		return nil, domain.ErrNotFound
	}

	result := make([]domain.StockBatch, 0, len(s.batchesByProduct[productID]))
	for _, batch := range s.batchesByProduct[productID] {
		if batch.Quantity < 1 {
			continue
		}
		result = append(result, cloneBatch(batch))
	}
	slices.SortFunc(result, compareBatchFIFO)
	return result, nil
}

func (s *Store) BatchQuantitySum(_ context.Context, productID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.productsByID[productID]; !exists {
		return 0, domain.ErrNotFound
	}
	sum := 0
	for _, batch := range s.batchesByProduct[productID] {
		sum += batch.Quantity
	}
	return sum, nil
}

func (s *Store) AdjustStock(_ context.Context, delta domain.StockDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyStockDeltaLocked(delta)
}

func (s *Store) SetStock(_ context.Context, productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByID[productID]
	if !exists {
		return domain.ErrNotFound
	}
	product.CurrentStock = qty
	product.StockVersion++
	s.productsByID[productID] = product
	return nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		if !c.Active {
			continue
		}
		customers = append(customers, cloneCustomer(c))
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(customer.Name) == "" {
		return nil, domain.ErrInvalidRequest
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	if customer.LoyaltyTier == "" {
		customer.LoyaltyTier = domain.TierBronze
	}
	customer.Active = true

	s.customersByID[customer.ID] = customer
	created := cloneCustomer(customer)
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	copyCustomer := cloneCustomer(customer)
	return &copyCustomer, nil
}

func (s *Store) ApplyLoyaltyUpdate(_ context.Context, update domain.LoyaltyUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLoyaltyLocked(update)
}

func (s *Store) ListLoyaltyEntries(_ context.Context, customerID string) ([]domain.LoyaltyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.customersByID[customerID]; !exists {
		return nil, domain.ErrNotFound
	}
	entries := s.loyaltyEntries[customerID]
	result := make([]domain.LoyaltyEntry, len(entries))
	copy(result, entries)
	slices.SortFunc(result, func(a, b domain.LoyaltyEntry) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) FindTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactionsByID[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 64)
	for _, tx := range s.transactionsByID {
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		result = append(result, *cloneTransaction(tx))
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CommitSale applies the whole payload under one lock: first every
// precondition is checked (version gates, batch coverage), then everything is
// written. A failed precondition leaves the store untouched.
func (s *Store) CommitSale(_ context.Context, commit domain.SaleCommit) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := commit.Transaction
	if tx.ID == "" || len(tx.Items) == 0 {
		return nil, domain.ErrInvalidRequest
	}
	if _, exists := s.transactionsByID[tx.ID]; exists {
		return nil, domain.ErrInvalidRequest
	}

	for _, delta := range commit.StockDeltas {
		product, exists := s.productsByID[delta.ProductID]
		if !exists {
			return nil, domain.ErrNotFound
		}
		if delta.ExpectedVersion != nil && product.StockVersion != *delta.ExpectedVersion {
			return nil, domain.ErrConcurrentUpdate
		}
	}
	for _, item := range tx.Items {
		for _, alloc := range item.Allocations {
			batch := s.findBatchLocked(item.ProductID, alloc.BatchID)
			if batch == nil {
				return nil, domain.ErrNotFound
			}
			if batch.Quantity < alloc.Quantity {
				return nil, domain.ErrBatchUnderflow
			}
		}
	}
	if commit.Loyalty != nil {
		if _, exists := s.customersByID[commit.Loyalty.CustomerID]; !exists {
			return nil, domain.ErrNotFound
		}
	}

	for _, item := range tx.Items {
		for _, alloc := range item.Allocations {
			batch := s.findBatchLocked(item.ProductID, alloc.BatchID)
			batch.Quantity -= alloc.Quantity
		}
	}
	for _, delta := range commit.StockDeltas {
		if err := s.applyStockDeltaLocked(delta); err != nil {
			// Preconditions were checked above; a failure here is a bug.
			log.Printf("[memory-store] WARNING: stock delta failed mid-commit for %s: %v", delta.ProductID, err)
			return nil, err
		}
	}
	if commit.Loyalty != nil {
		if err := s.applyLoyaltyLocked(*commit.Loyalty); err != nil {
			return nil, err
		}
	}

	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	saved := cloneTransaction(&tx)
	s.transactionsByID[tx.ID] = saved
	return cloneTransaction(saved), nil
}

// CommitVoid mirrors CommitSale: restore recorded batch allocations, bump
// counters, reverse points, set the void flag, all under one lock.
func (s *Store) CommitVoid(_ context.Context, commit domain.VoidCommit) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactionsByID[commit.TransactionID]
	if !exists {
		return nil, domain.ErrNotFound
	}
	if tx.Voided {
		return nil, domain.ErrAlreadyVoided
	}

	for _, delta := range commit.StockDeltas {
		product, exists := s.productsByID[delta.ProductID]
		if !exists {
			return nil, domain.ErrNotFound
		}
		if delta.ExpectedVersion != nil && product.StockVersion != *delta.ExpectedVersion {
			return nil, domain.ErrConcurrentUpdate
		}
	}
	if commit.Loyalty != nil {
		if _, exists := s.customersByID[commit.Loyalty.CustomerID]; !exists {
			return nil, domain.ErrNotFound
		}
	}

	for _, item := range tx.Items {
		for _, alloc := range item.Allocations {
			batch := s.findBatchLocked(item.ProductID, alloc.BatchID)
			if batch == nil {
				// Batch rows are never deleted, so a recorded allocation
				// always resolves.
				return nil, domain.ErrNotFound
			}
			batch.Quantity += alloc.Quantity
		}
	}
	for _, delta := range commit.StockDeltas {
		if err := s.applyStockDeltaLocked(delta); err != nil {
			return nil, err
		}
	}
	if commit.Loyalty != nil {
		if err := s.applyLoyaltyLocked(*commit.Loyalty); err != nil {
			return nil, err
		}
	}

	at := commit.VoidedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	tx.Voided = true
	tx.VoidReason = commit.Reason
	tx.VoidedAt = &at

	return cloneTransaction(tx), nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return domain.ErrInvalidRequest
	}
	if _, exists := s.usersByUsername[username]; exists {
		return domain.ErrInvalidRequest
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return domain.ErrInvalidRequest
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return domain.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) applyStockDeltaLocked(delta domain.StockDelta) error {
	product, exists := s.productsByID[delta.ProductID]
	if !exists {
		return domain.ErrNotFound
	}
	if delta.ExpectedVersion != nil && product.StockVersion != *delta.ExpectedVersion {
		return domain.ErrConcurrentUpdate
	}
	product.CurrentStock += delta.Delta
	product.StockVersion++
	s.productsByID[delta.ProductID] = product
	return nil
}

func (s *Store) applyLoyaltyLocked(update domain.LoyaltyUpdate) error {
	customer, exists := s.customersByID[update.CustomerID]
	if !exists {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	for _, entry := range update.Entries {
		if entry.ID == "" {
			entry.ID = xid.New("loy")
		}
		if entry.CustomerID == "" {
			entry.CustomerID = update.CustomerID
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		s.loyaltyEntries[update.CustomerID] = append(s.loyaltyEntries[update.CustomerID], entry)
	}
	customer.LoyaltyPoints = update.NewBalance
	customer.LoyaltyTier = update.NewTier
	s.customersByID[update.CustomerID] = customer
	return nil
}

func (s *Store) findBatchLocked(productID string, batchID string) *domain.StockBatch {
	batches := s.batchesByProduct[productID]
	for i := range batches {
		if batches[i].ID == batchID {
			return &batches[i]
		}
	}
	return nil
}

func compareBatchFIFO(a domain.StockBatch, b domain.StockBatch) int {
	if a.ExpiryDate == nil && b.ExpiryDate != nil {
		return 1
	}
	if a.ExpiryDate != nil && b.ExpiryDate == nil {
		return -1
	}
	if a.ExpiryDate != nil && b.ExpiryDate != nil {
		if a.ExpiryDate.Before(*b.ExpiryDate) {
			return -1
		}
		if a.ExpiryDate.After(*b.ExpiryDate) {
			return 1
		}
	}
	if a.ReceivedAt.Before(b.ReceivedAt) {
		return -1
	}
	if a.ReceivedAt.After(b.ReceivedAt) {
		return 1
	}
	return cmpString(a.ID, b.ID)
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	if src == nil {
		return nil
	}
	dup := *src
	dupItems := make([]domain.TransactionItem, len(src.Items))
	for i, item := range src.Items {
		allocs := make([]domain.BatchAllocation, len(item.Allocations))
		copy(allocs, item.Allocations)
		item.Allocations = allocs
		dupItems[i] = item
	}
	dup.Items = dupItems
	if src.VoidedAt != nil {
		at := *src.VoidedAt
		dup.VoidedAt = &at
	}
	return &dup
}

func cloneCustomer(src domain.Customer) domain.Customer {
	dup := src
	if src.Birthday != nil {
		b := src.Birthday.UTC()
		dup.Birthday = &b
	}
	return dup
}

func cloneBatch(src domain.StockBatch) domain.StockBatch {
	dup := src
	if src.ExpiryDate != nil {
		expiry := src.ExpiryDate.UTC()
		dup.ExpiryDate = &expiry
	}
	return dup
}
