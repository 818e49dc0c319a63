package loyalty

import (
	"context"
	"errors"
	"testing"
	"time"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store/memory"
)

func newTestCustomer(t *testing.T, repo *memory.Store, birthday *time.Time) *domain.Customer {
	t.Helper()
	customer, err := repo.CreateCustomer(context.Background(), domain.Customer{
		Name:     "Test Customer",
		Birthday: birthday,
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return customer
}

func TestAwardCrossesTierInOneCommit(t *testing.T) {
	repo := memory.New()
	ledger := NewLedger(repo)
	customer := newTestCustomer(t, repo, nil)

	if err := ledger.Award(context.Background(), customer.ID, 180, "seed", ""); err != nil {
		t.Fatalf("award: %v", err)
	}
	got, err := repo.GetCustomerByID(context.Background(), customer.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if got.LoyaltyTier != domain.TierBronze {
		t.Fatalf("expected BRONZE at 180, got %s", got.LoyaltyTier)
	}

	if err := ledger.Award(context.Background(), customer.ID, 30, "sale", "tx-1"); err != nil {
		t.Fatalf("award: %v", err)
	}
	got, err = repo.GetCustomerByID(context.Background(), customer.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if got.LoyaltyPoints != 210 {
		t.Fatalf("expected 210 points, got %d", got.LoyaltyPoints)
	}
	if got.LoyaltyTier != domain.TierSilver {
		t.Fatalf("expected SILVER after crossing 200, got %s", got.LoyaltyTier)
	}
}

func TestAwardJumpsMultipleTiers(t *testing.T) {
	repo := memory.New()
	ledger := NewLedger(repo)
	customer := newTestCustomer(t, repo, nil)

	if err := ledger.Award(context.Background(), customer.ID, 600, "bulk import", ""); err != nil {
		t.Fatalf("award: %v", err)
	}
	got, _ := repo.GetCustomerByID(context.Background(), customer.ID)
	if got.LoyaltyTier != domain.TierGold {
		t.Fatalf("expected GOLD straight from BRONZE, got %s", got.LoyaltyTier)
	}
}

func TestRedeemInsufficientPoints(t *testing.T) {
	repo := memory.New()
	ledger := NewLedger(repo)
	customer := newTestCustomer(t, repo, nil)

	if err := ledger.Award(context.Background(), customer.ID, 50, "seed", ""); err != nil {
		t.Fatalf("award: %v", err)
	}

	err := ledger.Redeem(context.Background(), customer.ID, 80, "checkout")
	if !errors.Is(err, domain.ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
	var detail *domain.InsufficientPointsError
	if !errors.As(err, &detail) {
		t.Fatalf("expected structured error, got %T", err)
	}
	if detail.Requested != 80 || detail.Balance != 50 {
		t.Fatalf("unexpected detail %+v", detail)
	}

	// Failed redemption leaves the balance untouched.
	got, _ := repo.GetCustomerByID(context.Background(), customer.ID)
	if got.LoyaltyPoints != 50 {
		t.Fatalf("expected balance 50, got %d", got.LoyaltyPoints)
	}
}

func TestAdjustCannotGoNegative(t *testing.T) {
	repo := memory.New()
	ledger := NewLedger(repo)
	customer := newTestCustomer(t, repo, nil)

	if err := ledger.Award(context.Background(), customer.ID, 20, "seed", ""); err != nil {
		t.Fatalf("award: %v", err)
	}
	if err := ledger.Adjust(context.Background(), customer.ID, -30, "correction"); !errors.Is(err, domain.ErrInvalidAdjustment) {
		t.Fatalf("expected ErrInvalidAdjustment, got %v", err)
	}
	if err := ledger.Adjust(context.Background(), customer.ID, -20, "correction"); err != nil {
		t.Fatalf("adjust to zero should pass: %v", err)
	}
	got, _ := repo.GetCustomerByID(context.Background(), customer.ID)
	if got.LoyaltyPoints != 0 {
		t.Fatalf("expected 0 points, got %d", got.LoyaltyPoints)
	}
}

func TestBirthdayBonusIdempotentPerDay(t *testing.T) {
	repo := memory.New()
	ledger := NewLedger(repo)
	today := time.Now().UTC()
	birthday := time.Date(1990, today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	customer := newTestCustomer(t, repo, &birthday)

	awarded, err := ledger.BirthdayBonus(context.Background(), customer.ID, today)
	if err != nil {
		t.Fatalf("birthday bonus: %v", err)
	}
	if awarded != 10 {
		t.Fatalf("expected bronze bonus 10, got %d", awarded)
	}

	awarded, err = ledger.BirthdayBonus(context.Background(), customer.ID, today)
	if err != nil {
		t.Fatalf("birthday bonus second call: %v", err)
	}
	if awarded != 0 {
		t.Fatalf("expected no second bonus same day, got %d", awarded)
	}

	got, _ := repo.GetCustomerByID(context.Background(), customer.ID)
	if got.LoyaltyPoints != 10 {
		t.Fatalf("expected 10 points after duplicate call, got %d", got.LoyaltyPoints)
	}
}

func TestBirthdayBonusSkipsNonBirthday(t *testing.T) {
	repo := memory.New()
	ledger := NewLedger(repo)
	today := time.Now().UTC()
	notToday := today.AddDate(0, 0, 40)
	birthday := time.Date(1990, notToday.Month(), notToday.Day(), 0, 0, 0, 0, time.UTC)
	customer := newTestCustomer(t, repo, &birthday)

	awarded, err := ledger.BirthdayBonus(context.Background(), customer.ID, today)
	if err != nil {
		t.Fatalf("birthday bonus: %v", err)
	}
	if awarded != 0 {
		t.Fatalf("expected no bonus, got %d", awarded)
	}
}

func TestExpireOlderThanNetsConsumption(t *testing.T) {
	repo := memory.New()
	ledger := NewLedger(repo)
	customer := newTestCustomer(t, repo, nil)

	old := time.Now().UTC().AddDate(0, 0, -400)
	// 100 earned long ago, 40 already redeemed: only 60 may still expire.
	err := repo.ApplyLoyaltyUpdate(context.Background(), domain.LoyaltyUpdate{
		CustomerID: customer.ID,
		NewBalance: 60,
		NewTier:    domain.TierBronze,
		Entries: []domain.LoyaltyEntry{
			{CustomerID: customer.ID, Delta: 100, Type: domain.LoyaltyEarned, Description: "old purchase", CreatedAt: old},
			{CustomerID: customer.ID, Delta: -40, Type: domain.LoyaltyRedeemed, Description: "redeemed", CreatedAt: old.AddDate(0, 1, 0)},
		},
	})
	if err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	report, err := ledger.ExpireOlderThan(context.Background(), 365)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if report.CustomersAffected != 1 || report.PointsExpired != 60 {
		t.Fatalf("expected 60 expired for 1 customer, got %+v", report)
	}

	got, _ := repo.GetCustomerByID(context.Background(), customer.ID)
	if got.LoyaltyPoints != 0 {
		t.Fatalf("expected 0 after expiry, got %d", got.LoyaltyPoints)
	}

	// Running again must not expire consumed points a second time.
	report, err = ledger.ExpireOlderThan(context.Background(), 365)
	if err != nil {
		t.Fatalf("expire second run: %v", err)
	}
	if report.CustomersAffected != 0 {
		t.Fatalf("expected idempotent second run, got %+v", report)
	}
}

func TestExpireCapsAtBalance(t *testing.T) {
	repo := memory.New()
	ledger := NewLedger(repo)
	customer := newTestCustomer(t, repo, nil)

	old := time.Now().UTC().AddDate(0, 0, -400)
	// Balance drifted below what the ledger says is expirable; cap at it.
	err := repo.ApplyLoyaltyUpdate(context.Background(), domain.LoyaltyUpdate{
		CustomerID: customer.ID,
		NewBalance: 30,
		NewTier:    domain.TierBronze,
		Entries: []domain.LoyaltyEntry{
			{CustomerID: customer.ID, Delta: 100, Type: domain.LoyaltyEarned, Description: "old purchase", CreatedAt: old},
		},
	})
	if err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	report, err := ledger.ExpireOlderThan(context.Background(), 365)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if report.PointsExpired != 30 {
		t.Fatalf("expected expiry capped at balance 30, got %d", report.PointsExpired)
	}
}

func TestReconcileRepairsDriftedBalance(t *testing.T) {
	repo := memory.New()
	ledger := NewLedger(repo)
	customer := newTestCustomer(t, repo, nil)

	if err := ledger.Award(context.Background(), customer.ID, 120, "seed", ""); err != nil {
		t.Fatalf("award: %v", err)
	}
	// Drift the cached balance without touching the ledger.
	err := repo.ApplyLoyaltyUpdate(context.Background(), domain.LoyaltyUpdate{
		CustomerID: customer.ID,
		NewBalance: 999,
		NewTier:    domain.TierGold,
	})
	if err != nil {
		t.Fatalf("drift: %v", err)
	}

	report, err := ledger.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("reconcile all: %v", err)
	}
	if report.Repaired != 1 {
		t.Fatalf("expected 1 repaired, got %+v", report)
	}

	got, _ := repo.GetCustomerByID(context.Background(), customer.ID)
	if got.LoyaltyPoints != 120 {
		t.Fatalf("expected 120 after repair, got %d", got.LoyaltyPoints)
	}
	if got.LoyaltyTier != domain.TierBronze {
		t.Fatalf("expected BRONZE after repair, got %s", got.LoyaltyTier)
	}
}
