package domain

import "time"

type Product struct {
	ID            string    `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	PriceCents    int64     `json:"price_cents"`
	MinStockLevel int       `json:"min_stock_level"`
	CurrentStock  int       `json:"current_stock"`
	StockVersion  int64     `json:"stock_version"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	PriceCents    int64  `json:"price_cents"`
	MinStockLevel int    `json:"min_stock_level"`
}

type ProductUpdateRequest struct {
	Name          *string `json:"name,omitempty"`
	Category      *string `json:"category,omitempty"`
	PriceCents    *int64  `json:"price_cents,omitempty"`
	MinStockLevel *int    `json:"min_stock_level,omitempty"`
	Active        *bool   `json:"active,omitempty"`
}

// StockBatch is the source of truth for on-hand stock. Quantity reaches zero
// on full consumption; rows are kept so allocation history stays traceable.
type StockBatch struct {
	ID          string     `json:"id"`
	ProductID   string     `json:"product_id"`
	Quantity    int        `json:"quantity"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
	SupplierRef string     `json:"supplier_ref,omitempty"`
}

type ReceiveBatchRequest struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	ExpiryDate  string `json:"expiry_date,omitempty"`
	SupplierRef string `json:"supplier_ref,omitempty"`
}

// BatchAllocation records how much of a sale line was drawn from one batch.
type BatchAllocation struct {
	BatchID  string `json:"batch_id"`
	Quantity int    `json:"quantity"`
}

type TransactionItem struct {
	ProductID      string            `json:"product_id"`
	SKU            string            `json:"sku"`
	Quantity       int               `json:"quantity"`
	UnitPriceCents int64             `json:"unit_price_cents"`
	DiscountCents  int64             `json:"discount_cents"`
	LineTotalCents int64             `json:"line_total_cents"`
	Allocations    []BatchAllocation `json:"allocations"`
}

type Transaction struct {
	ID                  string            `json:"id"`
	CashierID           string            `json:"cashier_id"`
	CustomerID          string            `json:"customer_id,omitempty"`
	Items               []TransactionItem `json:"items"`
	SubtotalCents       int64             `json:"subtotal_cents"`
	DiscountCents       int64             `json:"discount_cents"`
	TierDiscountCents   int64             `json:"tier_discount_cents"`
	RedeemDiscountCents int64             `json:"redeem_discount_cents"`
	TaxRatePercent      float64           `json:"tax_rate_percent"`
	TaxCents            int64             `json:"tax_cents"`
	TotalCents          int64             `json:"total_cents"`
	PaymentMethod       string            `json:"payment_method"`
	CashReceivedCents   int64             `json:"cash_received_cents"`
	ChangeCents         int64             `json:"change_cents"`
	PointsEarned        int               `json:"points_earned"`
	PointsRedeemed      int               `json:"points_redeemed"`
	Voided              bool              `json:"voided"`
	VoidReason          string            `json:"void_reason,omitempty"`
	VoidedAt            *time.Time        `json:"voided_at,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

type Tier string

const (
	TierBronze Tier = "BRONZE"
	TierSilver Tier = "SILVER"
	TierGold   Tier = "GOLD"
)

type Customer struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone,omitempty"`
	LoyaltyPoints int        `json:"loyalty_points"`
	LoyaltyTier   Tier       `json:"loyalty_tier"`
	Birthday      *time.Time `json:"birthday,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Birthday string `json:"birthday,omitempty"`
}

type LoyaltyEntryType string

const (
	LoyaltyEarned     LoyaltyEntryType = "EARNED"
	LoyaltyRedeemed   LoyaltyEntryType = "REDEEMED"
	LoyaltyAdjustment LoyaltyEntryType = "ADJUSTMENT"
	LoyaltyExpired    LoyaltyEntryType = "EXPIRED"
)

// LoyaltyEntry is an append-only ledger record. The customer's cached balance
// must always equal the sum of deltas.
type LoyaltyEntry struct {
	ID            string           `json:"id"`
	CustomerID    string           `json:"customer_id"`
	Delta         int              `json:"delta"`
	Type          LoyaltyEntryType `json:"type"`
	TransactionID string           `json:"transaction_id,omitempty"`
	Description   string           `json:"description"`
	CreatedAt     time.Time        `json:"created_at"`
}

type SaleItemRequest struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	DiscountCents int64  `json:"discount_cents"`
}

type CreateSaleRequest struct {
	CashierID         string            `json:"cashier_id"`
	CustomerID        string            `json:"customer_id,omitempty"`
	Items             []SaleItemRequest `json:"items"`
	PaymentMethod     string            `json:"payment_method"`
	DiscountCents     int64             `json:"discount_cents"`
	PointsToRedeem    int               `json:"points_to_redeem"`
	TaxRatePercent    float64           `json:"tax_rate_percent"`
	CashReceivedCents int64             `json:"cash_received_cents"`
}

type VoidSaleRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
	ManagerPIN    string `json:"manager_pin"`
}

type VoidSaleResponse struct {
	TransactionID string `json:"transaction_id"`
	Voided        bool   `json:"voided"`
	VoidedAt      string `json:"voided_at"`
}

// StockDelta is one cached-counter mutation inside a commit. Nil
// ExpectedVersion means unconditional (void restores, reconcile jobs);
// otherwise the store must match the version or fail the whole commit.
type StockDelta struct {
	ProductID       string
	Delta           int
	ExpectedVersion *int64
}

// LoyaltyUpdate carries the projected balance/tier plus the ledger entries
// that justify it, applied atomically with the owning commit.
type LoyaltyUpdate struct {
	CustomerID string
	NewBalance int
	NewTier    Tier
	Entries    []LoyaltyEntry
}

type SaleCommit struct {
	Transaction Transaction
	StockDeltas []StockDelta
	Loyalty     *LoyaltyUpdate
}

type VoidCommit struct {
	TransactionID string
	Reason        string
	VoidedAt      time.Time
	StockDeltas   []StockDelta
	Loyalty       *LoyaltyUpdate
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReconcileReport collects per-entity outcomes of a reconcile sweep. One
// failure never aborts the rest of the sweep.
type ReconcileReport struct {
	Checked  int               `json:"checked"`
	Repaired int               `json:"repaired"`
	Failures map[string]string `json:"failures,omitempty"`
}

type ExpiryReport struct {
	CustomersAffected int `json:"customers_affected"`
	PointsExpired     int `json:"points_expired"`
}
