package loyalty

import (
	"testing"

	"retailpos/backend/internal/domain"
)

func TestTierForBalance(t *testing.T) {
	cases := []struct {
		points int
		want   domain.Tier
	}{
		{0, domain.TierBronze},
		{199, domain.TierBronze},
		{200, domain.TierSilver},
		{499, domain.TierSilver},
		{500, domain.TierGold},
		{10000, domain.TierGold},
	}
	for _, tc := range cases {
		if got := TierForBalance(tc.points); got != tc.want {
			t.Fatalf("TierForBalance(%d) = %s, want %s", tc.points, got, tc.want)
		}
	}
}

func TestPointsEarnedForFloors(t *testing.T) {
	// 10.50 currency units at bronze earns 10 points, never 10.5.
	if got := PointsEarnedFor(1050, domain.TierBronze); got != 10 {
		t.Fatalf("bronze: expected 10, got %d", got)
	}
	// 10.00 units at silver: 10 * 1.25 = 12.5 -> 12.
	if got := PointsEarnedFor(1000, domain.TierSilver); got != 12 {
		t.Fatalf("silver: expected 12, got %d", got)
	}
	// 10.00 units at gold: 10 * 1.5 = 15.
	if got := PointsEarnedFor(1000, domain.TierGold); got != 15 {
		t.Fatalf("gold: expected 15, got %d", got)
	}
	if got := PointsEarnedFor(0, domain.TierGold); got != 0 {
		t.Fatalf("zero total: expected 0, got %d", got)
	}
	if got := PointsEarnedFor(99, domain.TierBronze); got != 0 {
		t.Fatalf("sub-unit total: expected 0, got %d", got)
	}
	// The cents are dropped before the multiplier: 1.99 at gold is
	// floor(1) * 1.5 = 1, not floor(1.99 * 1.5) = 2.
	if got := PointsEarnedFor(199, domain.TierGold); got != 1 {
		t.Fatalf("fractional gold: expected 1, got %d", got)
	}
	// 10.50 at silver: floor(10) * 1.25 = 12.5 -> 12.
	if got := PointsEarnedFor(1050, domain.TierSilver); got != 12 {
		t.Fatalf("fractional silver: expected 12, got %d", got)
	}
}

func TestTierDiscountCents(t *testing.T) {
	if got := TierDiscountCents(10000, domain.TierBronze); got != 0 {
		t.Fatalf("bronze: expected 0, got %d", got)
	}
	if got := TierDiscountCents(10000, domain.TierSilver); got != 500 {
		t.Fatalf("silver: expected 500, got %d", got)
	}
	if got := TierDiscountCents(10000, domain.TierGold); got != 1000 {
		t.Fatalf("gold: expected 1000, got %d", got)
	}
	// 99 cents at silver: 4.95 -> floored to 4.
	if got := TierDiscountCents(99, domain.TierSilver); got != 4 {
		t.Fatalf("floor: expected 4, got %d", got)
	}
}

func TestBirthdayBonusPoints(t *testing.T) {
	if got := BirthdayBonusPoints(domain.TierBronze); got != 10 {
		t.Fatalf("bronze: expected 10, got %d", got)
	}
	if got := BirthdayBonusPoints(domain.TierSilver); got != 25 {
		t.Fatalf("silver: expected 25, got %d", got)
	}
	if got := BirthdayBonusPoints(domain.TierGold); got != 50 {
		t.Fatalf("gold: expected 50, got %d", got)
	}
}
