package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/xid"
)

var _ store.Repository = (*Store)(nil)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, name, category, price_cents, min_stock_level, current_stock, stock_version, active, created_at
		FROM products
		WHERE active = true
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.PriceCents, &p.MinStockLevel, &p.CurrentStock, &p.StockVersion, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, domain.ErrInvalidRequest
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, category, price_cents, min_stock_level, current_stock, stock_version, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,0,0,$7,$8,now())
	`, product.ID, product.SKU, product.Name, product.Category, product.PriceCents, product.MinStockLevel, product.Active, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrInvalidRequest
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return s.getProduct(ctx, "id", id)
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return s.getProduct(ctx, "sku", sku)
}

func (s *Store) getProduct(ctx context.Context, column string, value string) (*domain.Product, error) {
	query := `
		SELECT id, sku, name, category, price_cents, min_stock_level, current_stock, stock_version, active, created_at
		FROM products
		WHERE sku = $1
	`
	if column == "id" {
		query = strings.Replace(query, "WHERE sku", "WHERE id", 1)
	}

	var p domain.Product
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&p.ID, &p.SKU, &p.Name, &p.Category, &p.PriceCents, &p.MinStockLevel,
		&p.CurrentStock, &p.StockVersion, &p.Active, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, domain.ErrInvalidRequest
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price_cents = $4, min_stock_level = $5, active = $6, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.Category, product.PriceCents, product.MinStockLevel, product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrNotFound
	}

	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) CreateStockBatch(ctx context.Context, batch domain.StockBatch) (*domain.StockBatch, error) {
	if batch.ProductID == "" || batch.Quantity < 1 {
		return nil, domain.ErrInvalidRequest
	}
	if batch.ID == "" {
		batch.ID = xid.New("batch")
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_batches (id, product_id, quantity, expiry_date, supplier_ref, received_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, batch.ID, batch.ProductID, batch.Quantity, nullDate(batch.ExpiryDate), nullIfEmpty(batch.SupplierRef), batch.ReceivedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	created := batch
	return &created, nil
}

// ReceiveStockBatch inserts the batch row and bumps the cached counter in one
// transaction. Receiving is an unconditional increment: concurrent sales must
// not make a delivery disappear, so there is no version gate here.
func (s *Store) ReceiveStockBatch(ctx context.Context, batch domain.StockBatch) (*domain.StockBatch, error) {
	if batch.ProductID == "" || batch.Quantity < 1 {
		return nil, domain.ErrInvalidRequest
	}
	if batch.ID == "" {
		batch.ID = xid.New("batch")
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO stock_batches (id, product_id, quantity, expiry_date, supplier_ref, received_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, batch.ID, batch.ProductID, batch.Quantity, nullDate(batch.ExpiryDate), nullIfEmpty(batch.SupplierRef), batch.ReceivedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.ErrNotFound
		}
		return nil, txError(err)
	}

	if err := applyStockDelta(ctx, pgTx, domain.StockDelta{ProductID: batch.ProductID, Delta: batch.Quantity}); err != nil {
		return nil, txError(err)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, txError(err)
	}

	created := batch
	return &created, nil
}

func (s *Store) AvailableBatches(ctx context.Context, productID string) ([]domain.StockBatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, expiry_date, COALESCE(supplier_ref,''), received_at
		FROM stock_batches
		WHERE product_id = $1 AND quantity > 0
		ORDER BY expiry_date ASC NULLS LAST, received_at ASC
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]domain.StockBatch, 0, 8)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func (s *Store) BatchQuantitySum(ctx context.Context, productID string) (int, error) {
	var sum int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM stock_batches
		WHERE product_id = $1
	`, productID).Scan(&sum)
	if err != nil {
		return 0, err
	}
	return sum, nil
}

func (s *Store) AdjustStock(ctx context.Context, delta domain.StockDelta) error {
	return applyStockDelta(ctx, s.db, delta)
}

// SetStock forces the cached counter to qty in one statement, bumping the
// version so in-flight conditional writers lose cleanly.
func (s *Store) SetStock(ctx context.Context, productID string, qty int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET current_stock = $2, stock_version = stock_version + 1, updated_at = now()
		WHERE id = $1
	`, productID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone,''), loyalty_points, loyalty_tier, birthday, active, created_at
		FROM customers
		WHERE active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, loyalty_points, loyalty_tier, birthday, active, created_at, updated_at)
		VALUES ($1,$2,$3,0,$4,$5,$6,$7,now())
	`, customer.ID, customer.Name, nullIfEmpty(customer.Phone), string(customer.LoyaltyTier), nullDate(customer.Birthday), customer.Active, customer.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone,''), loyalty_points, loyalty_tier, birthday, active, created_at
		FROM customers
		WHERE id = $1
	`, id)

	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) ApplyLoyaltyUpdate(ctx context.Context, update domain.LoyaltyUpdate) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyLoyaltyUpdate(ctx, tx, update); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) ListLoyaltyEntries(ctx context.Context, customerID string) ([]domain.LoyaltyEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, delta, entry_type, COALESCE(transaction_id,''), description, created_at
		FROM loyalty_entries
		WHERE customer_id = $1
		ORDER BY created_at ASC, id ASC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LoyaltyEntry, 0, 32)
	for rows.Next() {
		var entry domain.LoyaltyEntry
		var entryType string
		if err := rows.Scan(&entry.ID, &entry.CustomerID, &entry.Delta, &entryType, &entry.TransactionID, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Type = domain.LoyaltyEntryType(entryType)
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	var customerID sql.NullString
	var voidReason sql.NullString
	var voidedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, cashier_id, customer_id, subtotal_cents, discount_cents, tier_discount_cents,
			redeem_discount_cents, tax_rate_percent, tax_cents, total_cents, payment_method,
			cash_received_cents, change_cents, points_earned, points_redeemed,
			voided, void_reason, voided_at, created_at
		FROM transactions
		WHERE id = $1
	`, id).Scan(
		&tx.ID,
		&tx.CashierID,
		&customerID,
		&tx.SubtotalCents,
		&tx.DiscountCents,
		&tx.TierDiscountCents,
		&tx.RedeemDiscountCents,
		&tx.TaxRatePercent,
		&tx.TaxCents,
		&tx.TotalCents,
		&tx.PaymentMethod,
		&tx.CashReceivedCents,
		&tx.ChangeCents,
		&tx.PointsEarned,
		&tx.PointsRedeemed,
		&tx.Voided,
		&voidReason,
		&voidedAt,
		&tx.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if customerID.Valid {
		tx.CustomerID = customerID.String
	}
	if voidReason.Valid {
		tx.VoidReason = voidReason.String
	}
	if voidedAt.Valid {
		at := voidedAt.Time.UTC()
		tx.VoidedAt = &at
	}
	tx.CreatedAt = tx.CreatedAt.UTC()

	items, err := s.loadTransactionItems(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	tx.Items = items

	return &tx, nil
}

func (s *Store) loadTransactionItems(ctx context.Context, transactionID string) ([]domain.TransactionItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.product_id, i.sku, i.quantity, i.unit_price_cents, i.discount_cents, i.line_total_cents
		FROM transaction_items i
		WHERE i.transaction_id = $1
		ORDER BY i.id ASC
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type itemRow struct {
		rowID int64
		item  domain.TransactionItem
	}
	itemRows := make([]itemRow, 0, 8)
	for rows.Next() {
		var r itemRow
		if err := rows.Scan(&r.rowID, &r.item.ProductID, &r.item.SKU, &r.item.Quantity, &r.item.UnitPriceCents, &r.item.DiscountCents, &r.item.LineTotalCents); err != nil {
			return nil, err
		}
		itemRows = append(itemRows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items := make([]domain.TransactionItem, 0, len(itemRows))
	for _, r := range itemRows {
		allocRows, err := s.db.QueryContext(ctx, `
			SELECT batch_id, quantity
			FROM batch_allocations
			WHERE transaction_item_id = $1
			ORDER BY id ASC
		`, r.rowID)
		if err != nil {
			return nil, err
		}
		allocs := make([]domain.BatchAllocation, 0, 4)
		for allocRows.Next() {
			var alloc domain.BatchAllocation
			if err := allocRows.Scan(&alloc.BatchID, &alloc.Quantity); err != nil {
				_ = allocRows.Close()
				return nil, err
			}
			allocs = append(allocs, alloc)
		}
		if err := allocRows.Err(); err != nil {
			_ = allocRows.Close()
			return nil, err
		}
		_ = allocRows.Close()
		r.item.Allocations = allocs
		items = append(items, r.item)
	}
	return items, nil
}

func (s *Store) ListTransactions(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Transaction, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id
		FROM transactions
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	result := make([]domain.Transaction, 0, len(ids))
	for _, id := range ids {
		tx, err := s.FindTransactionByID(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, *tx)
	}
	return result, nil
}

// CommitSale writes the whole payload in one serializable transaction:
// transaction rows, guarded batch decrements, version-gated counter updates,
// loyalty entries and the customer projection. Any guard matching zero rows
// rolls everything back.
func (s *Store) CommitSale(ctx context.Context, commit domain.SaleCommit) (*domain.Transaction, error) {
	tx := commit.Transaction
	if tx.ID == "" || len(tx.Items) == 0 {
		return nil, domain.ErrInvalidRequest
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, cashier_id, customer_id, subtotal_cents, discount_cents, tier_discount_cents,
			redeem_discount_cents, tax_rate_percent, tax_cents, total_cents, payment_method,
			cash_received_cents, change_cents, points_earned, points_redeemed,
			voided, void_reason, voided_at, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,false,NULL,NULL,$16)
	`, tx.ID, tx.CashierID, nullIfEmpty(tx.CustomerID), tx.SubtotalCents, tx.DiscountCents,
		tx.TierDiscountCents, tx.RedeemDiscountCents, tx.TaxRatePercent, tx.TaxCents, tx.TotalCents,
		tx.PaymentMethod, tx.CashReceivedCents, tx.ChangeCents, tx.PointsEarned, tx.PointsRedeemed,
		tx.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrInvalidRequest
		}
		return nil, txError(err)
	}

	for _, item := range tx.Items {
		var itemRowID int64
		err := pgTx.QueryRowContext(ctx, `
			INSERT INTO transaction_items (transaction_id, product_id, sku, quantity, unit_price_cents, discount_cents, line_total_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id
		`, tx.ID, item.ProductID, item.SKU, item.Quantity, item.UnitPriceCents, item.DiscountCents, item.LineTotalCents).Scan(&itemRowID)
		if err != nil {
			return nil, txError(err)
		}

		for _, alloc := range item.Allocations {
			_, err = pgTx.ExecContext(ctx, `
				INSERT INTO batch_allocations (transaction_item_id, batch_id, quantity)
				VALUES ($1,$2,$3)
			`, itemRowID, alloc.BatchID, alloc.Quantity)
			if err != nil {
				return nil, txError(err)
			}

			res, err := pgTx.ExecContext(ctx, `
				UPDATE stock_batches
				SET quantity = quantity - $1, updated_at = now()
				WHERE id = $2 AND quantity >= $1
			`, alloc.Quantity, alloc.BatchID)
			if err != nil {
				return nil, txError(err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return nil, err
			}
			if affected == 0 {
				return nil, domain.ErrBatchUnderflow
			}
		}
	}

	for _, delta := range commit.StockDeltas {
		if err := applyStockDelta(ctx, pgTx, delta); err != nil {
			return nil, txError(err)
		}
	}

	if commit.Loyalty != nil {
		if err := applyLoyaltyUpdate(ctx, pgTx, *commit.Loyalty); err != nil {
			return nil, txError(err)
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, txError(err)
	}

	return &tx, nil
}

// CommitVoid restores recorded batch allocations, bumps counters, reverses
// points and flips the void flag once, all in one serializable transaction.
func (s *Store) CommitVoid(ctx context.Context, commit domain.VoidCommit) (*domain.Transaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var voided bool
	err = pgTx.QueryRowContext(ctx, `
		SELECT voided
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, commit.TransactionID).Scan(&voided)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, txError(err)
	}
	if voided {
		return nil, domain.ErrAlreadyVoided
	}

	at := commit.VoidedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE transactions
		SET voided = true, void_reason = $2, voided_at = $3
		WHERE id = $1 AND voided = false
	`, commit.TransactionID, commit.Reason, at)
	if err != nil {
		return nil, txError(err)
	}

	allocRows, err := pgTx.QueryContext(ctx, `
		SELECT a.batch_id, a.quantity
		FROM batch_allocations a
		JOIN transaction_items i ON i.id = a.transaction_item_id
		WHERE i.transaction_id = $1
	`, commit.TransactionID)
	if err != nil {
		return nil, txError(err)
	}
	type restore struct {
		batchID string
		qty     int
	}
	restores := make([]restore, 0, 8)
	for allocRows.Next() {
		var r restore
		if err := allocRows.Scan(&r.batchID, &r.qty); err != nil {
			_ = allocRows.Close()
			return nil, err
		}
		restores = append(restores, r)
	}
	if err := allocRows.Err(); err != nil {
		_ = allocRows.Close()
		return nil, err
	}
	_ = allocRows.Close()

	for _, r := range restores {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE stock_batches
			SET quantity = quantity + $1, updated_at = now()
			WHERE id = $2
		`, r.qty, r.batchID)
		if err != nil {
			return nil, txError(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			// Batch rows are never deleted, so a recorded allocation
			// always resolves.
			return nil, domain.ErrNotFound
		}
	}

	for _, delta := range commit.StockDeltas {
		if err := applyStockDelta(ctx, pgTx, delta); err != nil {
			return nil, txError(err)
		}
	}

	if commit.Loyalty != nil {
		if err := applyLoyaltyUpdate(ctx, pgTx, *commit.Loyalty); err != nil {
			return nil, txError(err)
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, txError(err)
	}

	return s.FindTransactionByID(ctx, commit.TransactionID)
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return domain.ErrInvalidRequest
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,true,$4,now())
	`, user.Username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInvalidRequest
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return domain.ErrInvalidRequest
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// applyStockDelta runs the conditional counter update. With a nil expected
// version the update is unconditional but still bumps the version. Zero rows
// matched against a present version means somebody else won the race.
func applyStockDelta(ctx context.Context, db execer, delta domain.StockDelta) error {
	if delta.ExpectedVersion == nil {
		res, err := db.ExecContext(ctx, `
			UPDATE products
			SET current_stock = current_stock + $2, stock_version = stock_version + 1, updated_at = now()
			WHERE id = $1
		`, delta.ProductID, delta.Delta)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrNotFound
		}
		return nil
	}

	res, err := db.ExecContext(ctx, `
		UPDATE products
		SET current_stock = current_stock + $2, stock_version = stock_version + 1, updated_at = now()
		WHERE id = $1 AND stock_version = $3
	`, delta.ProductID, delta.Delta, *delta.ExpectedVersion)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

func applyLoyaltyUpdate(ctx context.Context, db execer, update domain.LoyaltyUpdate) error {
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
		_, err := db.ExecContext(ctx, `
			INSERT INTO loyalty_entries (id, customer_id, delta, entry_type, transaction_id, description, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, entry.ID, entry.CustomerID, entry.Delta, string(entry.Type), nullIfEmpty(entry.TransactionID), entry.Description, entry.CreatedAt)
		if err != nil {
			return err
		}
	}

	res, err := db.ExecContext(ctx, `
		UPDATE customers
		SET loyalty_points = $2, loyalty_tier = $3, updated_at = now()
		WHERE id = $1
	`, update.CustomerID, update.NewBalance, string(update.NewTier))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (domain.StockBatch, error) {
	var batch domain.StockBatch
	var expiry sql.NullTime
	if err := row.Scan(&batch.ID, &batch.ProductID, &batch.Quantity, &expiry, &batch.SupplierRef, &batch.ReceivedAt); err != nil {
		return domain.StockBatch{}, err
	}
	batch.ReceivedAt = batch.ReceivedAt.UTC()
	if expiry.Valid {
		e := dateUTC(expiry.Time)
		batch.ExpiryDate = &e
	}
	return batch, nil
}

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var c domain.Customer
	var tier string
	var birthday sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.LoyaltyPoints, &tier, &birthday, &c.Active, &c.CreatedAt); err != nil {
		return domain.Customer{}, err
	}
	c.LoyaltyTier = domain.Tier(tier)
	c.CreatedAt = c.CreatedAt.UTC()
	if birthday.Valid {
		b := dateUTC(birthday.Time)
		c.Birthday = &b
	}
	return c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// isSerializationFailure maps a serializable-isolation abort to the same
// conflict signal as a lost version gate, so callers retry uniformly.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

// txError normalizes errors raised inside a serializable transaction.
// Postgres can abort on any statement, not just on Commit; both read as the
// same transient conflict.
func txError(err error) error {
	if err == nil {
		return nil
	}
	if isSerializationFailure(err) {
		return domain.ErrConcurrentUpdate
	}
	return err
}

func dateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return dateUTC(*val)
}
