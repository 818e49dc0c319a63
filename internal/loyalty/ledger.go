package loyalty

import (
	"context"
	"log"
	"strings"
	"time"

	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/store"
)

const birthdayBonusDescription = "birthday bonus"

// Ledger is the append-only point ledger. Every mutation appends an entry
// and updates the cached balance and tier in the same repository apply; the
// cached balance must always equal the sum of entry deltas.
type Ledger struct {
	repo store.Repository
}

func NewLedger(repo store.Repository) *Ledger {
	return &Ledger{repo: repo}
}

func (l *Ledger) Balance(ctx context.Context, customerID string) (int, error) {
	customer, err := l.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return 0, err
	}
	return customer.LoyaltyPoints, nil
}

func (l *Ledger) Entries(ctx context.Context, customerID string) ([]domain.LoyaltyEntry, error) {
	return l.repo.ListLoyaltyEntries(ctx, customerID)
}

func (l *Ledger) Award(ctx context.Context, customerID string, points int, description string, transactionID string) error {
	if points < 1 {
		return domain.ErrInvalidRequest
	}
	customer, err := l.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return err
	}

	newBalance := customer.LoyaltyPoints + points
	return l.repo.ApplyLoyaltyUpdate(ctx, domain.LoyaltyUpdate{
		CustomerID: customerID,
		NewBalance: newBalance,
		NewTier:    TierForBalance(newBalance),
		Entries: []domain.LoyaltyEntry{{
			CustomerID:    customerID,
			Delta:         points,
			Type:          domain.LoyaltyEarned,
			TransactionID: transactionID,
			Description:   description,
		}},
	})
}

func (l *Ledger) Redeem(ctx context.Context, customerID string, points int, description string) error {
	if points < 1 {
		return domain.ErrInvalidRequest
	}
	customer, err := l.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return err
	}
	if customer.LoyaltyPoints < points {
		return &domain.InsufficientPointsError{
			CustomerID: customerID,
			Requested:  points,
			Balance:    customer.LoyaltyPoints,
		}
	}

	newBalance := customer.LoyaltyPoints - points
	return l.repo.ApplyLoyaltyUpdate(ctx, domain.LoyaltyUpdate{
		CustomerID: customerID,
		NewBalance: newBalance,
		NewTier:    TierForBalance(newBalance),
		Entries: []domain.LoyaltyEntry{{
			CustomerID:  customerID,
			Delta:       -points,
			Type:        domain.LoyaltyRedeemed,
			Description: description,
		}},
	})
}

// Adjust applies a manual correction in either direction. The balance may
// never go negative.
func (l *Ledger) Adjust(ctx context.Context, customerID string, delta int, description string) error {
	if delta == 0 {
		return domain.ErrInvalidRequest
	}
	customer, err := l.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return err
	}
	newBalance := customer.LoyaltyPoints + delta
	if newBalance < 0 {
		return domain.ErrInvalidAdjustment
	}

	return l.repo.ApplyLoyaltyUpdate(ctx, domain.LoyaltyUpdate{
		CustomerID: customerID,
		NewBalance: newBalance,
		NewTier:    TierForBalance(newBalance),
		Entries: []domain.LoyaltyEntry{{
			CustomerID:  customerID,
			Delta:       delta,
			Type:        domain.LoyaltyAdjustment,
			Description: description,
		}},
	})
}

// BirthdayBonus awards the tier-dependent bonus if today (UTC) is the
// customer's birthday and no bonus has been granted yet on this calendar
// day. The duplicate check reads the ledger itself, so it survives restarts.
// Returns the points awarded, zero when nothing was due.
func (l *Ledger) BirthdayBonus(ctx context.Context, customerID string, today time.Time) (int, error) {
	customer, err := l.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return 0, err
	}
	if customer.Birthday == nil {
		return 0, nil
	}

	today = today.UTC()
	if customer.Birthday.Month() != today.Month() || customer.Birthday.Day() != today.Day() {
		return 0, nil
	}

	entries, err := l.repo.ListLoyaltyEntries(ctx, customerID)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if entry.Type != domain.LoyaltyEarned || !strings.HasPrefix(entry.Description, birthdayBonusDescription) {
			continue
		}
		if sameUTCDay(entry.CreatedAt, today) {
			return 0, nil
		}
	}

	bonus := BirthdayBonusPoints(customer.LoyaltyTier)
	newBalance := customer.LoyaltyPoints + bonus
	err = l.repo.ApplyLoyaltyUpdate(ctx, domain.LoyaltyUpdate{
		CustomerID: customerID,
		NewBalance: newBalance,
		NewTier:    TierForBalance(newBalance),
		Entries: []domain.LoyaltyEntry{{
			CustomerID:  customerID,
			Delta:       bonus,
			Type:        domain.LoyaltyEarned,
			Description: birthdayBonusDescription,
		}},
	})
	if err != nil {
		return 0, err
	}
	return bonus, nil
}

// ExpireOlderThan expires points earned more than the given number of days
// ago, one EXPIRED entry per affected customer. Points already consumed by
// redemptions, prior expirations or negative adjustments count against the
// oldest earnings first and are never expired a second time. The expiration
// is additionally capped at the current balance.
func (l *Ledger) ExpireOlderThan(ctx context.Context, days int) (domain.ExpiryReport, error) {
	if days < 1 {
		return domain.ExpiryReport{}, domain.ErrInvalidRequest
	}

	customers, err := l.repo.ListCustomers(ctx)
	if err != nil {
		return domain.ExpiryReport{}, err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	report := domain.ExpiryReport{}
	for _, customer := range customers {
		entries, err := l.repo.ListLoyaltyEntries(ctx, customer.ID)
		if err != nil {
			log.Printf("[loyalty] WARNING: expiry skipped for %s: %v", customer.ID, err)
			continue
		}

		expire := expirablePoints(entries, cutoff, customer.LoyaltyPoints)
		if expire < 1 {
			continue
		}

		newBalance := customer.LoyaltyPoints - expire
		err = l.repo.ApplyLoyaltyUpdate(ctx, domain.LoyaltyUpdate{
			CustomerID: customer.ID,
			NewBalance: newBalance,
			NewTier:    TierForBalance(newBalance),
			Entries: []domain.LoyaltyEntry{{
				CustomerID:  customer.ID,
				Delta:       -expire,
				Type:        domain.LoyaltyExpired,
				Description: "points expired",
			}},
		})
		if err != nil {
			log.Printf("[loyalty] WARNING: expiry apply failed for %s: %v", customer.ID, err)
			continue
		}
		report.CustomersAffected++
		report.PointsExpired += expire
	}
	return report, nil
}

// expirablePoints nets consumption against the oldest earnings: everything
// earned before the cutoff minus everything ever consumed, floored at zero
// and capped at the live balance.
func expirablePoints(entries []domain.LoyaltyEntry, cutoff time.Time, balance int) int {
	earnedBeforeCutoff := 0
	consumed := 0
	for _, entry := range entries {
		if entry.Delta > 0 {
			if entry.CreatedAt.Before(cutoff) {
				earnedBeforeCutoff += entry.Delta
			}
			continue
		}
		consumed += -entry.Delta
	}

	expire := earnedBeforeCutoff - consumed
	if expire < 0 {
		expire = 0
	}
	if expire > balance {
		expire = balance
	}
	return expire
}

// ReconcileOne repairs a cached balance that drifted from the ledger sum.
func (l *Ledger) ReconcileOne(ctx context.Context, customerID string) error {
	customer, err := l.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return err
	}
	entries, err := l.repo.ListLoyaltyEntries(ctx, customerID)
	if err != nil {
		return err
	}

	sum := 0
	for _, entry := range entries {
		sum += entry.Delta
	}
	if sum == customer.LoyaltyPoints && TierForBalance(sum) == customer.LoyaltyTier {
		return nil
	}

	log.Printf("[loyalty] repaired balance for %s: %d -> %d", customerID, customer.LoyaltyPoints, sum)
	return l.repo.ApplyLoyaltyUpdate(ctx, domain.LoyaltyUpdate{
		CustomerID: customerID,
		NewBalance: sum,
		NewTier:    TierForBalance(sum),
	})
}

func (l *Ledger) ReconcileAll(ctx context.Context) (domain.ReconcileReport, error) {
	customers, err := l.repo.ListCustomers(ctx)
	if err != nil {
		return domain.ReconcileReport{}, err
	}

	report := domain.ReconcileReport{Failures: map[string]string{}}
	for _, customer := range customers {
		report.Checked++
		entries, err := l.repo.ListLoyaltyEntries(ctx, customer.ID)
		if err != nil {
			report.Failures[customer.ID] = err.Error()
			continue
		}
		sum := 0
		for _, entry := range entries {
			sum += entry.Delta
		}
		if sum == customer.LoyaltyPoints && TierForBalance(sum) == customer.LoyaltyTier {
			continue
		}
		err = l.repo.ApplyLoyaltyUpdate(ctx, domain.LoyaltyUpdate{
			CustomerID: customer.ID,
			NewBalance: sum,
			NewTier:    TierForBalance(sum),
		})
		if err != nil {
			report.Failures[customer.ID] = err.Error()
			continue
		}
		report.Repaired++
	}
	if len(report.Failures) == 0 {
		report.Failures = nil
	}
	return report, nil
}

func sameUTCDay(a time.Time, b time.Time) bool {
	a = a.UTC()
	b = b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
