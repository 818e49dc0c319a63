package loyalty

import (
	"github.com/shopspring/decimal"

	"retailpos/backend/internal/domain"
)

// Tier thresholds in points. A customer's tier is a pure function of the
// cached balance and is re-evaluated after every balance mutation; a single
// large delta can jump more than one tier at once.
const (
	silverThreshold = 200
	goldThreshold   = 500
)

var (
	multipliers = map[domain.Tier]decimal.Decimal{
		domain.TierBronze: decimal.NewFromInt(1),
		domain.TierSilver: decimal.RequireFromString("1.25"),
		domain.TierGold:   decimal.RequireFromString("1.5"),
	}
	discountRates = map[domain.Tier]decimal.Decimal{
		domain.TierBronze: decimal.Zero,
		domain.TierSilver: decimal.RequireFromString("0.05"),
		domain.TierGold:   decimal.RequireFromString("0.10"),
	}
	birthdayBonuses = map[domain.Tier]int{
		domain.TierBronze: 10,
		domain.TierSilver: 25,
		domain.TierGold:   50,
	}
)

func TierForBalance(points int) domain.Tier {
	switch {
	case points >= goldThreshold:
		return domain.TierGold
	case points >= silverThreshold:
		return domain.TierSilver
	default:
		return domain.TierBronze
	}
}

// PointsEarnedFor converts a final total into earned points: whole currency
// units (fractional cents dropped first), scaled by the tier multiplier,
// floored again. Points are never fractional, and cents never earn on their
// own.
func PointsEarnedFor(totalCents int64, tier domain.Tier) int {
	if totalCents <= 0 {
		return 0
	}
	units := decimal.NewFromInt(totalCents).Div(decimal.NewFromInt(100)).Floor()
	earned := units.Mul(multiplierFor(tier)).Floor()
	return int(earned.IntPart())
}

// TierDiscountCents returns the automatic tier discount on a subtotal,
// floored to whole cents.
func TierDiscountCents(subtotalCents int64, tier domain.Tier) int64 {
	if subtotalCents <= 0 {
		return 0
	}
	discount := decimal.NewFromInt(subtotalCents).Mul(discountRateFor(tier)).Floor()
	return discount.IntPart()
}

func BirthdayBonusPoints(tier domain.Tier) int {
	if bonus, ok := birthdayBonuses[tier]; ok {
		return bonus
	}
	return birthdayBonuses[domain.TierBronze]
}

func multiplierFor(tier domain.Tier) decimal.Decimal {
	if m, ok := multipliers[tier]; ok {
		return m
	}
	return multipliers[domain.TierBronze]
}

func discountRateFor(tier domain.Tier) decimal.Decimal {
	if r, ok := discountRates[tier]; ok {
		return r
	}
	return discountRates[domain.TierBronze]
}
