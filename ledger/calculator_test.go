package ledger_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/point-ledger/ledger"
)

func pct(s string) *decimal.Decimal {
	d := ledger.MustParseDecimal(s)
	return &d
}

// =============================================================================
// TOTAL COMPUTATION
// =============================================================================

func TestComputeTotal_TakenNoCommission(t *testing.T) {
	// GIVEN: 1000 points taken at 1.50 per point
	// WHEN: Computing the total
	// THEN: Total is exactly 1500.00, no commission applied

	total, err := ledger.ComputeTotal(ledger.TxTaken, 1000, ledger.MustParseDecimal("1.50"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total.String() != "1500.00" {
		t.Errorf("total = %s, want 1500.00", total)
	}
}

func TestComputeTotal_GivenWithCommission(t *testing.T) {
	// GIVEN: 1000 points given at 1.50 with 5% commission
	// WHEN: Computing the total
	// THEN: Total is 1500 × 1.05 = 1575.00

	total, err := ledger.ComputeTotal(ledger.TxGiven, 1000, ledger.MustParseDecimal("1.50"), pct("5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total.String() != "1575.00" {
		t.Errorf("total = %s, want 1575.00", total)
	}
}

func TestComputeTotal_CommissionIgnoredForTaken(t *testing.T) {
	// Commission is a downline markup; it never applies to taken points
	// even when a value is present.
	total, err := ledger.ComputeTotal(ledger.TxTaken, 1000, ledger.MustParseDecimal("1.50"), pct("5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total.String() != "1500.00" {
		t.Errorf("total = %s, want 1500.00", total)
	}
}

func TestComputeTotal_ZeroCommissionIsBase(t *testing.T) {
	total, err := ledger.ComputeTotal(ledger.TxGiven, 500, ledger.MustParseDecimal("2.00"), pct("0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total.String() != "1000.00" {
		t.Errorf("total = %s, want 1000.00", total)
	}
}

func TestComputeTotal_Deterministic(t *testing.T) {
	// Same inputs must yield bit-identical Money on every call.
	first, err := ledger.ComputeTotal(ledger.TxGiven, 333, ledger.MustParseDecimal("1.37"), pct("7.5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 1000; i++ {
		again, err := ledger.ComputeTotal(ledger.TxGiven, 333, ledger.MustParseDecimal("1.37"), pct("7.5"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again.Cents() != first.Cents() {
			t.Fatalf("run %d: total = %s, first run = %s", i, again, first)
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestComputeTotal_Validation(t *testing.T) {
	rate := ledger.MustParseDecimal("1.50")

	cases := []struct {
		name       string
		direction  ledger.TxDirection
		points     int64
		rate       decimal.Decimal
		commission *decimal.Decimal
		want       error
	}{
		{"zero points", ledger.TxTaken, 0, rate, nil, ledger.ErrInvalidQuantity},
		{"negative points", ledger.TxTaken, -10, rate, nil, ledger.ErrInvalidQuantity},
		{"zero rate", ledger.TxTaken, 100, decimal.Zero, nil, ledger.ErrInvalidRate},
		{"negative rate", ledger.TxTaken, 100, ledger.MustParseDecimal("-1.50"), nil, ledger.ErrInvalidRate},
		{"sub-cent rate", ledger.TxTaken, 100, ledger.MustParseDecimal("1.505"), nil, ledger.ErrInvalidRate},
		{"negative commission", ledger.TxGiven, 100, rate, pct("-5"), ledger.ErrInvalidCommission},
		{"commission over 100", ledger.TxGiven, 100, rate, pct("101"), ledger.ErrInvalidCommission},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.ComputeTotal(tc.direction, tc.points, tc.rate, tc.commission)
			if !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
			if !ledger.IsClientError(err) {
				t.Errorf("error %v should be a client error", err)
			}
		})
	}
}

// =============================================================================
// REVERSALS
// =============================================================================

func TestReversalTotal_ExactNegation(t *testing.T) {
	// GIVEN: An original with a commission-marked-up total
	// WHEN: Computing the reversal amount
	// THEN: It is the exact negation of the stored total, never recomputed

	original := ledger.Transaction{
		ID:            "tx-1",
		Direction:     ledger.TxGiven,
		Points:        1000,
		RatePerPoint:  ledger.MustParseDecimal("1.50"),
		CommissionPct: pct("5"),
		TotalAmount:   ledger.MustParseMoney("1575.00"),
	}

	rev := ledger.ReversalTotal(original)
	if rev.String() != "-1575.00" {
		t.Errorf("reversal = %s, want -1575.00", rev)
	}
	if !original.TotalAmount.Add(rev).IsZero() {
		t.Error("original + reversal must net to zero")
	}
}
