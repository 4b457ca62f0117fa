/*
calculator.go - Transaction total computation

PURPOSE:
  Computes a transaction's total monetary value from point count, rate,
  direction, and optional commission. This is a pure function: no I/O,
  no hidden state, identical inputs always produce identical Money.

ALGORITHM:
  base = points × ratePerPoint
  total = base × (1 + commission/100)   when direction == given and commission > 0
  total = base                          otherwise

ROUNDING:
  The product is carried in decimal.Decimal and rounded to the currency
  minor unit exactly once, with round-half-to-even. Aggregation later sums
  the already-rounded integer totals, so repeated recomputation cannot
  drift.

INVARIANTS:
  - Validation happens before any computation; failures have no side effects.
  - The result is non-negative for valid inputs.
  - totalAmount is never accepted from callers; it is always derived here.

SEE ALSO:
  - money.go: Rounding rules
  - aggregator.go: Consumes the rounded totals
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeTotal computes a transaction's total amount.
//
// points must be a positive integer, rate a positive decimal with at most
// two fractional digits. commission, when non-nil, must be in [0, 100] and
// only applies to the given direction (downline markup).
func ComputeTotal(direction TxDirection, points int64, rate decimal.Decimal, commission *decimal.Decimal) (Money, error) {
	if points <= 0 {
		return Money{}, ErrInvalidQuantity
	}
	if !ValidRate(rate) {
		return Money{}, ErrInvalidRate
	}
	if commission != nil && !validCommission(*commission) {
		return Money{}, ErrInvalidCommission
	}

	base := rate.Mul(decimal.NewFromInt(points))
	total := base
	if direction == TxGiven && commission != nil && commission.IsPositive() {
		markup := decimal.NewFromInt(1).Add(commission.Div(hundred))
		total = base.Mul(markup)
	}
	return NewMoneyFromDecimal(total), nil
}

// ReversalTotal returns the offsetting amount for a reversal of the given
// transaction: the exact negation of the original rounded total. The
// original is never recomputed, so the pair always nets to zero.
func ReversalTotal(original Transaction) Money {
	return original.TotalAmount.Neg()
}

func validCommission(c decimal.Decimal) bool {
	return !c.IsNegative() && c.LessThanOrEqual(hundred)
}
