package ledger_test

import (
	"testing"
	"time"

	"github.com/warp/point-ledger/ledger"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

var aggNow = time.Date(2025, time.June, 30, 12, 0, 0, 0, time.UTC)

func uplinkProfile() ledger.Profile {
	return ledger.Profile{
		ID:           "up-1",
		Direction:    ledger.DirectionUplink,
		Name:         "Main Supplier",
		RatePerPoint: ledger.MustParseDecimal("1.50"),
		Active:       true,
	}
}

func downlineProfile() ledger.Profile {
	return ledger.Profile{
		ID:            "down-1",
		Direction:     ledger.DirectionDownline,
		Name:          "Reseller A",
		RatePerPoint:  ledger.MustParseDecimal("2.00"),
		CommissionPct: pct("10"),
		Active:        true,
	}
}

func mustTx(id string, profileID ledger.ProfileID, dir ledger.TxDirection, points int64, rate string, commission *string) ledger.Transaction {
	r := ledger.MustParseDecimal(rate)
	tx := ledger.Transaction{
		ID:           ledger.TransactionID(id),
		ProfileID:    profileID,
		Direction:    dir,
		Date:         aggNow,
		Points:       points,
		RatePerPoint: r,
	}
	if commission != nil {
		tx.CommissionPct = pct(*commission)
	}
	total, err := ledger.ComputeTotal(dir, points, r, tx.CommissionPct)
	if err != nil {
		panic(err)
	}
	tx.TotalAmount = total
	return tx
}

func strPtr(s string) *string { return &s }

// =============================================================================
// SIGN CONVENTION
// =============================================================================

func TestAggregate_UplinkOwedNegativeBalance(t *testing.T) {
	// GIVEN: 1000 points taken from an uplink at 1.50
	// WHEN: Aggregating the period
	// THEN: Outstanding 1500.00, Balance -1500.00 ("You owe")

	txs := []ledger.Transaction{
		mustTx("tx-1", "up-1", ledger.TxTaken, 1000, "1.50", nil),
	}
	entry := ledger.Aggregate(uplinkProfile(), txs, "2025-06", aggNow)

	if entry.TotalTaken.String() != "1500.00" {
		t.Errorf("TotalTaken = %s, want 1500.00", entry.TotalTaken)
	}
	if entry.Outstanding.String() != "1500.00" {
		t.Errorf("Outstanding = %s, want 1500.00", entry.Outstanding)
	}
	if entry.Balance.String() != "-1500.00" {
		t.Errorf("Balance = %s, want -1500.00", entry.Balance)
	}
	if entry.Status() != ledger.StatusYouOwe {
		t.Errorf("Status = %s, want %s", entry.Status(), ledger.StatusYouOwe)
	}
}

func TestAggregate_DownlineOwesPositiveBalance(t *testing.T) {
	// GIVEN: 500 points given to a downline at 2.00 with 10% commission
	// WHEN: Aggregating the period
	// THEN: TotalGiven 1100.00, Balance +1100.00 ("They owe"),
	//       commission component 100.00

	txs := []ledger.Transaction{
		mustTx("tx-1", "down-1", ledger.TxGiven, 500, "2.00", strPtr("10")),
	}
	entry := ledger.Aggregate(downlineProfile(), txs, "2025-06", aggNow)

	if entry.TotalGiven.String() != "1100.00" {
		t.Errorf("TotalGiven = %s, want 1100.00", entry.TotalGiven)
	}
	if entry.Balance.String() != "1100.00" {
		t.Errorf("Balance = %s, want 1100.00", entry.Balance)
	}
	if entry.Status() != ledger.StatusTheyOwe {
		t.Errorf("Status = %s, want %s", entry.Status(), ledger.StatusTheyOwe)
	}
	if entry.CommissionTotal.String() != "100.00" {
		t.Errorf("CommissionTotal = %s, want 100.00", entry.CommissionTotal)
	}
}

func TestAggregate_EmptySetIsNeutralZero(t *testing.T) {
	entry := ledger.Aggregate(uplinkProfile(), nil, "2025-06", aggNow)

	if !entry.Balance.IsZero() || !entry.TotalTaken.IsZero() || !entry.TotalGiven.IsZero() {
		t.Errorf("empty aggregation must be all-zero, got %+v", entry)
	}
	if entry.Status() != ledger.StatusNeutral {
		t.Errorf("Status = %s, want %s", entry.Status(), ledger.StatusNeutral)
	}
	if !entry.AverageRate.IsZero() {
		t.Errorf("AverageRate = %s, want 0", entry.AverageRate)
	}
}

// =============================================================================
// IDEMPOTENCY AND NETTING
// =============================================================================

func TestAggregate_RecomputationIsIdempotent(t *testing.T) {
	// GIVEN: A fixed transaction set with awkward rates
	// WHEN: Aggregating it repeatedly
	// THEN: Every run yields bit-identical Money values

	txs := []ledger.Transaction{
		mustTx("tx-1", "down-1", ledger.TxGiven, 333, "1.37", strPtr("7.5")),
		mustTx("tx-2", "down-1", ledger.TxGiven, 77, "2.13", strPtr("7.5")),
		mustTx("tx-3", "down-1", ledger.TxGiven, 1001, "0.99", nil),
	}

	first := ledger.Aggregate(downlineProfile(), txs, "2025-06", aggNow)
	for i := 0; i < 100; i++ {
		again := ledger.Aggregate(downlineProfile(), txs, "2025-06", aggNow)
		if again.Balance.Cents() != first.Balance.Cents() ||
			again.TotalGiven.Cents() != first.TotalGiven.Cents() ||
			again.CommissionTotal.Cents() != first.CommissionTotal.Cents() ||
			!again.AverageRate.Equal(first.AverageRate) {
			t.Fatalf("run %d diverged: %+v vs %+v", i, again, first)
		}
	}
}

func TestAggregate_ReversalNetsToZero(t *testing.T) {
	// GIVEN: A transaction and its reversal in the same period
	// WHEN: Aggregating
	// THEN: The pair cancels exactly

	orig := mustTx("tx-1", "down-1", ledger.TxGiven, 500, "2.00", strPtr("10"))
	rev := orig
	rev.ID = "tx-2"
	rev.Points = -orig.Points
	rev.TotalAmount = ledger.ReversalTotal(orig)
	rev.ReversalOf = orig.ID

	entry := ledger.Aggregate(downlineProfile(), []ledger.Transaction{orig, rev}, "2025-06", aggNow)

	if !entry.Balance.IsZero() {
		t.Errorf("Balance = %s, want zero", entry.Balance)
	}
	if !entry.TotalGiven.IsZero() {
		t.Errorf("TotalGiven = %s, want zero", entry.TotalGiven)
	}
	if !entry.CommissionTotal.IsZero() {
		t.Errorf("CommissionTotal = %s, want zero", entry.CommissionTotal)
	}
	if entry.TotalPoints != 0 {
		t.Errorf("TotalPoints = %d, want 0", entry.TotalPoints)
	}
}

// =============================================================================
// AVERAGE RATE
// =============================================================================

func TestAggregate_AverageRateIsPointsWeighted(t *testing.T) {
	// 100 pts at 1.00 and 300 pts at 2.00: (100 + 600) / 400 = 1.75.
	// Commission must not skew the average; it uses the base rate only.
	txs := []ledger.Transaction{
		mustTx("tx-1", "down-1", ledger.TxGiven, 100, "1.00", strPtr("10")),
		mustTx("tx-2", "down-1", ledger.TxGiven, 300, "2.00", strPtr("10")),
	}
	entry := ledger.Aggregate(downlineProfile(), txs, "2025-06", aggNow)

	if !entry.AverageRate.Equal(ledger.MustParseDecimal("1.75")) {
		t.Errorf("AverageRate = %s, want 1.75", entry.AverageRate)
	}
	if entry.TotalPoints != 400 {
		t.Errorf("TotalPoints = %d, want 400", entry.TotalPoints)
	}
}

// =============================================================================
// GLOBAL POSITION
// =============================================================================

func TestAggregateAll_NetProfit(t *testing.T) {
	// GIVEN: An uplink entry (taken 1500.00) and a downline entry (given 1100.00)
	// WHEN: Combining into the global view
	// THEN: NetPosition = 1100.00 - 1500.00 = -400.00

	up := ledger.Aggregate(uplinkProfile(), []ledger.Transaction{
		mustTx("tx-1", "up-1", ledger.TxTaken, 1000, "1.50", nil),
	}, "2025-06", aggNow)
	down := ledger.Aggregate(downlineProfile(), []ledger.Transaction{
		mustTx("tx-2", "down-1", ledger.TxGiven, 500, "2.00", strPtr("10")),
	}, "2025-06", aggNow)

	pos := ledger.AggregateAll([]ledger.LedgerEntry{up, down}, aggNow)

	if pos.TotalTaken.String() != "1500.00" {
		t.Errorf("TotalTaken = %s, want 1500.00", pos.TotalTaken)
	}
	if pos.TotalGiven.String() != "1100.00" {
		t.Errorf("TotalGiven = %s, want 1100.00", pos.TotalGiven)
	}
	if pos.NetPosition.String() != "-400.00" {
		t.Errorf("NetPosition = %s, want -400.00", pos.NetPosition)
	}
	if pos.ProfileCount != 2 {
		t.Errorf("ProfileCount = %d, want 2", pos.ProfileCount)
	}
}
