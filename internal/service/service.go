package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"retailpos/backend/internal/cache"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/loyalty"
	"retailpos/backend/internal/stock"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const (
	catalogCacheKey        = "catalog:products"
	defaultCatalogCacheTTL = 5 * time.Minute
)

// Service covers the administrative surface around the sale path: catalog,
// batch intake, customers and their loyalty history, and the audit trail.
// Checkout itself lives in the sales orchestrator.
type Service struct {
	repo       store.Repository
	catalog    cache.CatalogCache
	catalogTTL time.Duration
	batches    *stock.Ledger
	points     *loyalty.Ledger
}

func New(repo store.Repository, catalog cache.CatalogCache, batches *stock.Ledger, points *loyalty.Ledger) *Service {
	if catalog == nil {
		catalog = cache.NoopCatalogCache{}
	}

	return &Service{
		repo:       repo,
		catalog:    catalog,
		catalogTTL: defaultCatalogCacheTTL,
		batches:    batches,
		points:     points,
	}
}

// SetCatalogTTL overrides how long the product catalog stays cached.
func (s *Service) SetCatalogTTL(ttl time.Duration) {
	if ttl > 0 {
		s.catalogTTL = ttl
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	cached, hit, err := s.catalog.Get(ctx, catalogCacheKey)
	if err != nil {
		log.Printf("[service] WARN: catalog cache read failed: %v", err)
	}
	if hit {
		return cached, nil
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.Set(ctx, catalogCacheKey, products, s.catalogTTL); err != nil {
		log.Printf("[service] WARN: catalog cache write failed: %v", err)
	}
	return products, nil
}

func (s *Service) GetProductBySKU(ctx context.Context, sku string) (domain.Product, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return domain.Product{}, domain.ErrInvalidRequest
	}
	product, err := s.repo.GetProductBySKU(ctx, sku)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)

	if req.SKU == "" || req.Name == "" || req.Category == "" {
		return domain.Product{}, domain.ErrInvalidRequest
	}
	if req.PriceCents < 1 || req.MinStockLevel < 0 {
		return domain.Product{}, domain.ErrInvalidRequest
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		SKU:           req.SKU,
		Name:          req.Name,
		Category:      req.Category,
		PriceCents:    req.PriceCents,
		MinStockLevel: req.MinStockLevel,
		Active:        true,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "product.create", "product", created.SKU, fmt.Sprintf("name=%s,price=%d", created.Name, created.PriceCents))

	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, sku string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return domain.Product{}, domain.ErrInvalidRequest
	}

	existing, err := s.repo.GetProductBySKU(ctx, sku)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, domain.ErrInvalidRequest
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, domain.ErrInvalidRequest
		}
		updated.Category = category
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, domain.ErrInvalidRequest
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.MinStockLevel != nil {
		if *req.MinStockLevel < 0 {
			return domain.Product{}, domain.ErrInvalidRequest
		}
		updated.MinStockLevel = *req.MinStockLevel
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "product.update", "product", saved.SKU, fmt.Sprintf("active=%t,price=%d", saved.Active, saved.PriceCents))

	return *saved, nil
}

func (s *Service) ReceiveBatch(ctx context.Context, req domain.ReceiveBatchRequest) (domain.StockBatch, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.StockBatch{}, err
	}

	created, err := s.batches.ReceiveBatch(ctx, req)
	if err != nil {
		return domain.StockBatch{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "batch.receive", "stock_batch", created.ID, fmt.Sprintf("product=%s,qty=%d", created.ProductID, created.Quantity))

	return *created, nil
}

func (s *Service) ListBatches(ctx context.Context, productID string) ([]domain.StockBatch, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, domain.ErrInvalidRequest
	}
	return s.batches.AvailableBatches(ctx, productID)
}

// LowStockProducts reports active products whose cached counter sits at or
// below their minimum level. Reorder decisions read the counter because a
// slightly stale number is acceptable for a report.
func (s *Service) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	low := make([]domain.Product, 0)
	for _, product := range products {
		if !product.Active || product.MinStockLevel < 1 {
			continue
		}
		if product.CurrentStock <= product.MinStockLevel {
			low = append(low, product)
		}
	}
	return low, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Customer{}, domain.ErrInvalidRequest
	}
	customer, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, domain.ErrInvalidRequest
	}

	customer := domain.Customer{
		Name:  req.Name,
		Phone: strings.TrimSpace(req.Phone),
	}
	if strings.TrimSpace(req.Birthday) != "" {
		birthday, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.Birthday), time.UTC)
		if err != nil {
			return domain.Customer{}, domain.ErrInvalidRequest
		}
		customer.Birthday = &birthday
	}

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer.create", "customer", created.ID, "name="+created.Name)

	return *created, nil
}

func (s *Service) LoyaltyHistory(ctx context.Context, customerID string) ([]domain.LoyaltyEntry, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.ErrInvalidRequest
	}
	if _, err := s.repo.GetCustomerByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.points.Entries(ctx, customerID)
}

func (s *Service) AdjustLoyalty(ctx context.Context, customerID string, delta int, reason string) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" || delta == 0 {
		return domain.ErrInvalidRequest
	}

	if err := s.points.Adjust(ctx, customerID, delta, reason); err != nil {
		return err
	}

	s.logAudit(ctx, "loyalty.adjust", "customer", customerID, fmt.Sprintf("delta=%d,reason=%s", delta, reason))
	return nil
}

func (s *Service) ListTransactions(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Transaction, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -7)
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListTransactions(ctx, from, to, limit)
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Transaction{}, domain.ErrInvalidRequest
	}
	tx, err := s.repo.FindTransactionByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	return *tx, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -7)
	}
	if limit < 1 {
		limit = 200
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.ErrUnauthorized
	}
	return nil
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if err := s.catalog.Invalidate(ctx, catalogCacheKey); err != nil {
		log.Printf("[service] WARN: catalog cache invalidation failed: %v", err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
