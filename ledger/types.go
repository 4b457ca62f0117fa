/*
Package ledger provides the core ledger aggregation and settlement engine.

PURPOSE:
  This package contains the domain types and algorithms that turn a stream
  of point-transfer transactions into per-profile financial truth:
  transaction totals, outstanding balances, net position, and settlement
  state.

KEY CONCEPTS IN THIS FILE (types.go):
  - Profile: A counterparty (uplink supplier or downline reseller)
  - Transaction: An immutable point transfer with a snapshotted rate
  - LedgerEntry: A computed snapshot of a profile's position for a period
  - Settlement: A rendered statement with its own delivery status

DESIGN PRINCIPLES:
  1. Immutability: Transaction totals are engine-computed at create time
     and never mutated; corrections are offsetting transactions.
  2. Precision: Money is integer minor units; rounding happens exactly
     once, in the total calculator.
  3. Snapshots: Rate and commission are copied onto the transaction at
     creation. The aggregator never re-reads the profile's current rate,
     so history stays accurate after a rate change.
  4. Derived labels: The "You owe"/"They owe" status is a pure projection
     of the signed balance, never stored independently.

SEE ALSO:
  - calculator.go: Transaction total computation
  - aggregator.go: Folding transactions into a LedgerEntry
  - settlement.go: Settlement state machine
  - audit.go: Append-only audit recording
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProfileID string
type TransactionID string
type SettlementID string

// =============================================================================
// DIRECTIONS
// =============================================================================

// ProfileDirection tells which side of the operator a counterparty sits on.
type ProfileDirection string

const (
	// DirectionUplink is a supplier the operator takes points from.
	DirectionUplink ProfileDirection = "uplink"

	// DirectionDownline is a reseller the operator gives points to,
	// typically with a commission markup.
	DirectionDownline ProfileDirection = "downline"
)

// TxDirection tells which way points moved in a single transaction.
type TxDirection string

const (
	// TxTaken records points taken from an uplink.
	TxTaken TxDirection = "taken"

	// TxGiven records points given to a downline.
	TxGiven TxDirection = "given"
)

// =============================================================================
// PROFILE - A counterparty
// =============================================================================

// Profile is a counterparty the operator trades points with.
//
// INVARIANTS:
//   - RatePerPoint > 0
//   - CommissionPct, when set, is in [0, 100] and only meaningful for
//     downline profiles.
//
// Profiles are referenced immutably by ID from transactions; historical
// transactions carry their own rate/commission snapshot.
type Profile struct {
	ID            ProfileID
	Direction     ProfileDirection
	Name          string
	Contact       string
	RatePerPoint  decimal.Decimal
	CommissionPct *decimal.Decimal
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the profile invariants.
func (p Profile) Validate() error {
	if p.Direction != DirectionUplink && p.Direction != DirectionDownline {
		return &FieldError{Field: "direction", Message: "must be uplink or downline"}
	}
	if !ValidRate(p.RatePerPoint) {
		return ErrInvalidRate
	}
	if p.CommissionPct != nil && !validCommission(*p.CommissionPct) {
		return ErrInvalidCommission
	}
	return nil
}

// =============================================================================
// TRANSACTION - A single point transfer
// =============================================================================

// Transaction records one point transfer. Rate and commission are
// snapshotted at creation time; TotalAmount is engine-computed by
// ComputeTotal and immutable thereafter.
type Transaction struct {
	ID            TransactionID
	ProfileID     ProfileID
	Direction     TxDirection
	Date          time.Time
	Points        int64
	RatePerPoint  decimal.Decimal
	CommissionPct *decimal.Decimal
	TotalAmount   Money
	Notes         string

	// ReversalOf links an offsetting transaction back to the original.
	// Financial corrections are reversals, never in-place edits.
	ReversalOf TransactionID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsReversal reports whether this transaction offsets an earlier one.
func (t Transaction) IsReversal() bool { return t.ReversalOf != "" }

// CommissionAmount returns the commission component folded into
// TotalAmount: total − points×rate, already rounded. Zero for taken
// transactions and for transactions without commission. Reversals carry
// negative points; the arithmetic holds unchanged.
func (t Transaction) CommissionAmount() Money {
	base := NewMoneyFromDecimal(t.RatePerPoint.Mul(decimal.NewFromInt(t.Points)))
	return t.TotalAmount.Sub(base)
}

// =============================================================================
// LEDGER ENTRY - Computed position for a (profile, period)
// =============================================================================

// LedgerEntry is a snapshot of a profile's financial position for a period.
// It is always recomputable from the transaction set for the period, and
// recomputation is idempotent: the same transactions yield bit-identical
// Money values.
//
// SIGN CONVENTION (fixed, applied uniformly):
//   Balance > 0  the profile owes the operator (downline owes for points given)
//   Balance < 0  the operator owes the profile (uplink is owed for points taken)
type LedgerEntry struct {
	ProfileID ProfileID
	Period    Period

	TotalTaken  Money // Σ totals of taken transactions
	TotalGiven  Money // Σ totals of given transactions
	Outstanding Money // magnitude owed between operator and profile
	Balance     Money // signed, per the convention above
	NetPosition Money // TotalGiven − TotalTaken

	TotalPoints     int64
	AverageRate     decimal.Decimal
	CommissionTotal Money

	CalculatedAt time.Time
}

// BalanceStatus is the presentational label derived from the signed
// balance. It is re-derived on every read and never persisted, so it
// cannot drift from the number it describes.
type BalanceStatus string

const (
	StatusTheyOwe BalanceStatus = "They owe"
	StatusYouOwe  BalanceStatus = "You owe"
	StatusNeutral BalanceStatus = "Neutral"
)

// Status projects the signed balance onto its display label.
func (e LedgerEntry) Status() BalanceStatus {
	return StatusForBalance(e.Balance)
}

// StatusForBalance maps a signed balance to its label.
func StatusForBalance(balance Money) BalanceStatus {
	switch {
	case balance.IsPositive():
		return StatusTheyOwe
	case balance.IsNegative():
		return StatusYouOwe
	default:
		return StatusNeutral
	}
}

// =============================================================================
// SETTLEMENT - A communicated statement of a LedgerEntry
// =============================================================================

type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementSent    SettlementStatus = "sent"
	SettlementFailed  SettlementStatus = "failed"
)

// Settlement is a rendered statement of a ledger period for one profile.
// Status only moves forward (pending → sent, pending → failed,
// failed → pending on retry); a sent settlement is immutable.
type Settlement struct {
	ID            SettlementID
	ProfileID     ProfileID
	Period        Period
	Amount        Money
	Message       string
	Status        SettlementStatus
	FailureReason string
	SentAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether the settlement still awaits a terminal outcome.
func (s Settlement) Active() bool { return s.Status != SettlementSent }
