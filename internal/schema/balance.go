package schema

import "github.com/shopspring/decimal"

// BalanceSnapshot reports one currency's holdings on a venue.
// Invariant: Total == Available + Reserved. Venues reporting otherwise are
// normalized at the boundary via NewBalanceSnapshot.
type BalanceSnapshot struct {
	Currency  string
	Available decimal.Decimal
	Reserved  decimal.Decimal
	Total     decimal.Decimal
}

// NewBalanceSnapshot builds a snapshot enforcing the total invariant.
// Venues report either (available, reserved), (available, total), or all three;
// the missing leg is derived and an inconsistent total is recomputed.
func NewBalanceSnapshot(currency string, available, reserved, total decimal.Decimal) BalanceSnapshot {
	if total.IsZero() && (!available.IsZero() || !reserved.IsZero()) {
		total = available.Add(reserved)
	}
	if reserved.IsZero() && total.GreaterThan(available) {
		reserved = total.Sub(available)
	}
	if !total.Equal(available.Add(reserved)) {
		total = available.Add(reserved)
	}
	return BalanceSnapshot{
		Currency:  currency,
		Available: available,
		Reserved:  reserved,
		Total:     total,
	}
}
