/*
aggregator.go - Folding a transaction history into a LedgerEntry

PURPOSE:
  The aggregator answers "where do we stand with this profile?". It folds
  a profile's (already filtered) transaction set into taken/given totals,
  outstanding balance, and net position.

KEY INSIGHT:
  Rounding happened once, per transaction, in the calculator. The
  aggregator only sums already-rounded integer totals, so recomputing
  over the same transaction set is idempotent: bit-identical Money values
  every time, no accumulated drift.

SIGN CONVENTION (applied uniformly, see types.go):
  Balance > 0  profile owes the operator  ("They owe")
  Balance < 0  operator owes the profile  ("You owe")

  An uplink is owed for points taken: Balance = −TotalTaken.
  A downline owes for points given (commission already folded into each
  transaction total): Balance = +TotalGiven.

FILTERING:
  The caller pre-filters transactions to a period window. The aggregator
  does not re-filter; divergent filtering logic living in two places is
  how totals and row lists drift apart.

SEE ALSO:
  - calculator.go: Per-transaction rounding
  - service/service.go: Loads the snapshot and calls Aggregate
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Aggregate folds the profile's transactions into a LedgerEntry for the
// given period. An empty transaction set is valid and yields a zero entry.
// The transactions must all belong to the profile and already be filtered
// to the period window by the caller.
func Aggregate(profile Profile, txs []Transaction, period Period, now time.Time) LedgerEntry {
	var (
		totalTaken  Money
		totalGiven  Money
		commission  Money
		totalPoints int64
		baseAmount  Money // Σ points×rate, for the weighted average rate
	)

	for _, tx := range txs {
		switch tx.Direction {
		case TxTaken:
			totalTaken = totalTaken.Add(tx.TotalAmount)
		case TxGiven:
			totalGiven = totalGiven.Add(tx.TotalAmount)
			commission = commission.Add(tx.CommissionAmount())
		}
		totalPoints += tx.Points
		baseAmount = baseAmount.Add(NewMoneyFromDecimal(
			tx.RatePerPoint.Mul(decimal.NewFromInt(tx.Points))))
	}

	entry := LedgerEntry{
		ProfileID:       profile.ID,
		Period:          period,
		TotalTaken:      totalTaken,
		TotalGiven:      totalGiven,
		NetPosition:     totalGiven.Sub(totalTaken),
		TotalPoints:     totalPoints,
		AverageRate:     averageRate(baseAmount, totalPoints),
		CommissionTotal: commission,
		CalculatedAt:    now.UTC(),
	}

	switch profile.Direction {
	case DirectionUplink:
		// Amount owed TO the uplink for points taken.
		entry.Outstanding = totalTaken
		entry.Balance = totalTaken.Neg()
	case DirectionDownline:
		// Amount owed BY the downline for points given.
		entry.Outstanding = totalGiven
		entry.Balance = totalGiven
	}

	return entry
}

// GlobalPosition is the operator-wide net-profit view across profiles of
// both directions.
type GlobalPosition struct {
	TotalTaken   Money
	TotalGiven   Money
	NetPosition  Money // TotalGiven − TotalTaken
	ProfileCount int
	CalculatedAt time.Time
}

// AggregateAll combines per-profile entries into the global view.
func AggregateAll(entries []LedgerEntry, now time.Time) GlobalPosition {
	pos := GlobalPosition{ProfileCount: len(entries), CalculatedAt: now.UTC()}
	for _, e := range entries {
		pos.TotalTaken = pos.TotalTaken.Add(e.TotalTaken)
		pos.TotalGiven = pos.TotalGiven.Add(e.TotalGiven)
	}
	pos.NetPosition = pos.TotalGiven.Sub(pos.TotalTaken)
	return pos
}

// averageRate is the points-weighted mean rate: Σ(points×rate) / Σpoints,
// rounded half-to-even to currency precision. Zero when no points moved.
func averageRate(baseAmount Money, totalPoints int64) decimal.Decimal {
	if totalPoints == 0 {
		return decimal.Zero
	}
	return baseAmount.Decimal().
		Div(decimal.NewFromInt(totalPoints)).
		RoundBank(minorUnitPlaces)
}
