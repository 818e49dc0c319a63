package sales

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/loyalty"
	"retailpos/backend/internal/stock"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/xid"
)

// voidWindow is how long after creation a transaction may still be voided.
const voidWindow = 5 * time.Minute

// redeemValueCents is the checkout value of one redeemed point.
const redeemValueCents = 100

// Orchestrator drives the createSale and voidSale workflows. It composes
// everything in memory first (validation, allocation plan, money, loyalty
// projection) and then hands the repository one commit payload to apply
// all-or-nothing. The orchestrator itself never retries; callers wrap it in
// a retry policy when they want one.
type Orchestrator struct {
	repo    store.Repository
	ledger  *stock.Ledger
	sync    *stock.Synchronizer
	loyalty *loyalty.Ledger
	now     func() time.Time
}

func NewOrchestrator(repo store.Repository, ledger *stock.Ledger, sync *stock.Synchronizer, points *loyalty.Ledger) *Orchestrator {
	return &Orchestrator{
		repo:    repo,
		ledger:  ledger,
		sync:    sync,
		loyalty: points,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the wall clock, for tests exercising the void window.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

func (o *Orchestrator) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (*domain.Transaction, error) {
	if strings.TrimSpace(req.CashierID) == "" || len(req.Items) == 0 {
		return nil, domain.ErrInvalidRequest
	}
	if req.PaymentMethod == "" {
		return nil, domain.ErrInvalidRequest
	}
	if req.DiscountCents < 0 || req.PointsToRedeem < 0 {
		return nil, domain.ErrInvalidRequest
	}
	if req.TaxRatePercent < 0 || req.TaxRatePercent > 100 {
		return nil, domain.ErrInvalidRequest
	}
	if req.PointsToRedeem > 0 && req.CustomerID == "" {
		return nil, domain.ErrInvalidRequest
	}

	var customer *domain.Customer
	if req.CustomerID != "" {
		var err error
		customer, err = o.repo.GetCustomerByID(ctx, req.CustomerID)
		if err != nil {
			return nil, err
		}

		// Birthday bonus lands before any totals so the elevated tier, if
		// the bonus crosses a boundary, applies to this very sale.
		awarded, err := o.loyalty.BirthdayBonus(ctx, customer.ID, o.now())
		if err != nil {
			return nil, err
		}
		if awarded > 0 {
			customer, err = o.repo.GetCustomerByID(ctx, req.CustomerID)
			if err != nil {
				return nil, err
			}
		}
	}

	// The balance gate runs before any stock work, so a cart that is short
	// on both stock and points reports the points problem.
	if req.PointsToRedeem > 0 && customer.LoyaltyPoints < req.PointsToRedeem {
		return nil, &domain.InsufficientPointsError{
			CustomerID: customer.ID,
			Requested:  req.PointsToRedeem,
			Balance:    customer.LoyaltyPoints,
		}
	}

	plan, err := o.planItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	subtotal := int64(0)
	itemDiscounts := int64(0)
	for _, item := range plan.items {
		subtotal += int64(item.Quantity) * item.UnitPriceCents
		itemDiscounts += item.DiscountCents
	}
	if req.DiscountCents > subtotal-itemDiscounts {
		return nil, domain.ErrInvalidRequest
	}

	discounted := subtotal - itemDiscounts - req.DiscountCents

	tier := domain.TierBronze
	if customer != nil {
		tier = customer.LoyaltyTier
	}
	tierDiscount := loyalty.TierDiscountCents(discounted, tier)

	redeemDiscount := int64(req.PointsToRedeem) * redeemValueCents

	total := discounted - tierDiscount - redeemDiscount
	if total < 0 {
		return nil, domain.ErrInvalidTotal
	}

	taxCents := int64(math.Round(float64(total) * req.TaxRatePercent / 100))
	total += taxCents

	changeCents := int64(0)
	if req.PaymentMethod == "cash" {
		if req.CashReceivedCents < total {
			return nil, domain.ErrInvalidRequest
		}
		changeCents = req.CashReceivedCents - total
	}

	// Earning uses the tier the customer walked in with; an upgrade from
	// this sale's points applies from the next transaction.
	pointsEarned := 0
	if customer != nil {
		pointsEarned = loyalty.PointsEarnedFor(total, tier)
	}

	now := o.now()
	tx := domain.Transaction{
		ID:                  xid.New("tx"),
		CashierID:           req.CashierID,
		CustomerID:          req.CustomerID,
		Items:               plan.items,
		SubtotalCents:       subtotal,
		DiscountCents:       req.DiscountCents,
		TierDiscountCents:   tierDiscount,
		RedeemDiscountCents: redeemDiscount,
		TaxRatePercent:      req.TaxRatePercent,
		TaxCents:            taxCents,
		TotalCents:          total,
		PaymentMethod:       req.PaymentMethod,
		CashReceivedCents:   req.CashReceivedCents,
		ChangeCents:         changeCents,
		PointsEarned:        pointsEarned,
		PointsRedeemed:      req.PointsToRedeem,
		CreatedAt:           now,
	}

	commit := domain.SaleCommit{
		Transaction: tx,
		StockDeltas: plan.deltas,
	}
	if customer != nil && (pointsEarned > 0 || req.PointsToRedeem > 0) {
		entries := make([]domain.LoyaltyEntry, 0, 2)
		if req.PointsToRedeem > 0 {
			entries = append(entries, domain.LoyaltyEntry{
				CustomerID:    customer.ID,
				Delta:         -req.PointsToRedeem,
				Type:          domain.LoyaltyRedeemed,
				TransactionID: tx.ID,
				Description:   "redeemed at checkout",
			})
		}
		if pointsEarned > 0 {
			entries = append(entries, domain.LoyaltyEntry{
				CustomerID:    customer.ID,
				Delta:         pointsEarned,
				Type:          domain.LoyaltyEarned,
				TransactionID: tx.ID,
				Description:   "earned on purchase",
			})
		}
		newBalance := customer.LoyaltyPoints - req.PointsToRedeem + pointsEarned
		commit.Loyalty = &domain.LoyaltyUpdate{
			CustomerID: customer.ID,
			NewBalance: newBalance,
			NewTier:    loyalty.TierForBalance(newBalance),
			Entries:    entries,
		}
	}

	created, err := o.repo.CommitSale(ctx, commit)
	if err != nil {
		return nil, err
	}

	o.checkCounters(ctx, plan.deltas)
	o.audit(ctx, req.CashierID, "sale.create", "transaction", created.ID,
		fmt.Sprintf("total=%d items=%d", created.TotalCents, len(created.Items)))

	return created, nil
}

// itemPlan is the in-memory result of validating and allocating every
// requested line against the live batch ledger.
type itemPlan struct {
	items  []domain.TransactionItem
	deltas []domain.StockDelta
}

func (o *Orchestrator) planItems(ctx context.Context, requested []domain.SaleItemRequest) (*itemPlan, error) {
	plan := &itemPlan{items: make([]domain.TransactionItem, 0, len(requested))}

	// Batches are loaded once per product and drained locally so two lines
	// of the same product cannot double-spend a batch.
	products := map[string]*domain.Product{}
	batchViews := map[string][]domain.StockBatch{}
	liveSums := map[string]int{}
	quantities := map[string]int{}
	short := map[string]int{}
	order := make([]string, 0, len(requested))

	for _, line := range requested {
		if line.Quantity < 1 || strings.TrimSpace(line.ProductID) == "" {
			return nil, domain.ErrInvalidRequest
		}
		if line.DiscountCents < 0 {
			return nil, domain.ErrInvalidRequest
		}

		product, seen := products[line.ProductID]
		if !seen {
			var err error
			product, err = o.repo.GetProductByID(ctx, line.ProductID)
			if err != nil {
				return nil, err
			}
			if !product.Active {
				return nil, domain.ErrProductInactive
			}
			batches, err := o.ledger.AvailableBatches(ctx, line.ProductID)
			if err != nil {
				return nil, err
			}
			products[line.ProductID] = product
			batchViews[line.ProductID] = batches
			liveSums[line.ProductID] = stock.Available(batches)
			order = append(order, line.ProductID)
		}

		lineGross := int64(line.Quantity) * product.PriceCents
		if line.DiscountCents > lineGross {
			return nil, domain.ErrInvalidRequest
		}

		quantities[line.ProductID] += line.Quantity

		// Rejection is decided by the live batch sum, never the cached
		// counter.
		view := batchViews[line.ProductID]
		if short[line.ProductID] > 0 || stock.Available(view) < line.Quantity {
			short[line.ProductID] += line.Quantity
			continue
		}

		allocations, err := stock.PlanAllocation(view, line.Quantity)
		if err != nil {
			return nil, err
		}
		batchViews[line.ProductID] = drainView(view, allocations)

		plan.items = append(plan.items, domain.TransactionItem{
			ProductID:      product.ID,
			SKU:            product.SKU,
			Quantity:       line.Quantity,
			UnitPriceCents: product.PriceCents,
			DiscountCents:  line.DiscountCents,
			LineTotalCents: lineGross - line.DiscountCents,
			Allocations:    allocations,
		})
	}

	if len(short) > 0 {
		shortfalls := make([]domain.StockShortfall, 0, len(short))
		for _, productID := range order {
			if short[productID] == 0 {
				continue
			}
			shortfalls = append(shortfalls, domain.StockShortfall{
				ProductID: productID,
				SKU:       products[productID].SKU,
				Requested: quantities[productID],
				Available: liveSums[productID],
			})
		}
		return nil, &domain.InsufficientStockError{Shortfalls: shortfalls}
	}

	for _, productID := range order {
		version := products[productID].StockVersion
		plan.deltas = append(plan.deltas, domain.StockDelta{
			ProductID:       productID,
			Delta:           -quantities[productID],
			ExpectedVersion: &version,
		})
	}
	return plan, nil
}

func (o *Orchestrator) VoidSale(ctx context.Context, transactionID string, actorID string, reason string) (*domain.Transaction, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.ErrInvalidRequest
	}

	tx, err := o.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Voided {
		return nil, domain.ErrAlreadyVoided
	}

	now := o.now()
	if now.Sub(tx.CreatedAt) > voidWindow {
		return nil, domain.ErrVoidWindowExpired
	}

	// Restores are unconditional: a concurrent sale must never block undoing
	// a committed one.
	quantities := map[string]int{}
	order := make([]string, 0, len(tx.Items))
	for _, item := range tx.Items {
		if _, seen := quantities[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}
	deltas := make([]domain.StockDelta, 0, len(order))
	for _, productID := range order {
		deltas = append(deltas, domain.StockDelta{ProductID: productID, Delta: quantities[productID]})
	}

	commit := domain.VoidCommit{
		TransactionID: transactionID,
		Reason:        strings.TrimSpace(reason),
		VoidedAt:      now,
		StockDeltas:   deltas,
	}

	if tx.CustomerID != "" && (tx.PointsEarned > 0 || tx.PointsRedeemed > 0) {
		customer, err := o.repo.GetCustomerByID(ctx, tx.CustomerID)
		if err != nil {
			return nil, err
		}
		// One ADJUSTMENT reverses the sale's net point effect; the original
		// EARNED/REDEEMED entries stay in the ledger untouched.
		reverse := tx.PointsRedeemed - tx.PointsEarned
		newBalance := customer.LoyaltyPoints + reverse
		if newBalance < 0 {
			// The customer already spent points this sale granted. Claw back
			// only what is left rather than fail the void.
			reverse = -customer.LoyaltyPoints
			newBalance = 0
		}
		update := &domain.LoyaltyUpdate{
			CustomerID: customer.ID,
			NewBalance: newBalance,
			NewTier:    loyalty.TierForBalance(newBalance),
		}
		if reverse != 0 {
			update.Entries = []domain.LoyaltyEntry{{
				CustomerID:    customer.ID,
				Delta:         reverse,
				Type:          domain.LoyaltyAdjustment,
				TransactionID: transactionID,
				Description:   "void reversal",
			}}
		}
		commit.Loyalty = update
	}

	voided, err := o.repo.CommitVoid(ctx, commit)
	if err != nil {
		return nil, err
	}

	o.audit(ctx, actorID, "sale.void", "transaction", transactionID, "reason="+commit.Reason)
	return voided, nil
}

// checkCounters inspects the cached counters a commit just touched and
// forces a reconcile on any that went negative. A negative counter is
// display-level damage only; the batch ledger stays correct.
func (o *Orchestrator) checkCounters(ctx context.Context, deltas []domain.StockDelta) {
	for _, delta := range deltas {
		product, err := o.repo.GetProductByID(ctx, delta.ProductID)
		if err != nil {
			continue
		}
		if product.CurrentStock >= 0 {
			continue
		}
		log.Printf("[sales] WARNING: negative counter on %s after commit, reconciling", product.SKU)
		if err := o.sync.ReconcileOne(ctx, delta.ProductID); err != nil {
			log.Printf("[sales] WARNING: reconcile failed for %s: %v", product.SKU, err)
		}
	}
}

func (o *Orchestrator) audit(ctx context.Context, actor string, action string, entityType string, entityID string, detail string) {
	err := o.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorUsername: actor,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
	})
	if err != nil {
		log.Printf("[sales] WARNING: audit write failed for %s %s: %v", action, entityID, err)
	}
}

func drainView(view []domain.StockBatch, allocations []domain.BatchAllocation) []domain.StockBatch {
	used := make(map[string]int, len(allocations))
	for _, alloc := range allocations {
		used[alloc.BatchID] += alloc.Quantity
	}
	next := make([]domain.StockBatch, 0, len(view))
	for _, batch := range view {
		batch.Quantity -= used[batch.ID]
		if batch.Quantity > 0 {
			next = append(next, batch)
		}
	}
	return next
}
