package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/warp/point-ledger/ledger"
	"github.com/warp/point-ledger/ledger/store"
)

var memNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

func newProfile(id string) ledger.Profile {
	return ledger.Profile{
		ID:           ledger.ProfileID(id),
		Direction:    ledger.DirectionDownline,
		Name:         "Reseller " + id,
		RatePerPoint: ledger.MustParseDecimal("2.00"),
		Active:       true,
		CreatedAt:    memNow,
	}
}

func newTx(id string, profileID string, date time.Time) ledger.Transaction {
	return ledger.Transaction{
		ID:           ledger.TransactionID(id),
		ProfileID:    ledger.ProfileID(profileID),
		Direction:    ledger.TxGiven,
		Date:         date,
		Points:       100,
		RatePerPoint: ledger.MustParseDecimal("2.00"),
		TotalAmount:  ledger.MustParseMoney("200.00"),
		CreatedAt:    date,
	}
}

func newSettlement(id, profileID string, period ledger.Period) ledger.Settlement {
	return ledger.Settlement{
		ID:        ledger.SettlementID(id),
		ProfileID: ledger.ProfileID(profileID),
		Period:    period,
		Amount:    ledger.MustParseMoney("200.00"),
		Message:   "statement",
		Status:    ledger.SettlementPending,
		CreatedAt: memNow,
		UpdatedAt: memNow,
	}
}

// =============================================================================
// PROFILES AND TRANSACTIONS
// =============================================================================

func TestMemory_ProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	if _, err := m.GetProfile(ctx, "missing"); !errors.Is(err, ledger.ErrProfileNotFound) {
		t.Errorf("error = %v, want ErrProfileNotFound", err)
	}

	if err := m.SaveProfile(ctx, newProfile("p-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := m.GetProfile(ctx, "p-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Reseller p-1" {
		t.Errorf("name = %s", got.Name)
	}
}

func TestMemory_LoadTransactions_NewestFirstAndFiltered(t *testing.T) {
	// GIVEN: Transactions appended out of date order
	// WHEN: Loading with and without a range filter
	// THEN: Results come back date-descending and respect the window

	ctx := context.Background()
	m := store.NewMemory()

	d1 := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC)
	for _, tx := range []ledger.Transaction{
		newTx("tx-2", "p-1", d2),
		newTx("tx-3", "p-1", d3),
		newTx("tx-1", "p-1", d1),
	} {
		if err := m.AppendTransaction(ctx, tx); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := m.LoadTransactions(ctx, "p-1", ledger.TxFilter{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].ID != "tx-3" || all[1].ID != "tx-2" || all[2].ID != "tx-1" {
		t.Errorf("order = %s, %s, %s; want newest first", all[0].ID, all[1].ID, all[2].ID)
	}

	windowed, err := m.LoadTransactions(ctx, "p-1", ledger.TxFilter{
		Range: ledger.DateRange{From: d2, To: d2},
	})
	if err != nil {
		t.Fatalf("load windowed: %v", err)
	}
	if len(windowed) != 1 || windowed[0].ID != "tx-2" {
		t.Errorf("windowed = %v, want only tx-2", windowed)
	}
}

func TestMemory_WindowKeepsFractionalSecondBoundaryDates(t *testing.T) {
	// GIVEN: Transactions dated inside the first and last second of a period,
	// with sub-second precision
	ctx := context.Background()
	m := store.NewMemory()

	first := time.Date(2025, time.June, 1, 0, 0, 0, 500_000_000, time.UTC)
	last := time.Date(2025, time.June, 30, 23, 59, 59, 250_000_000, time.UTC)
	outside := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	for _, tx := range []ledger.Transaction{
		newTx("tx-first", "p-1", first),
		newTx("tx-last", "p-1", last),
		newTx("tx-july", "p-1", outside),
	} {
		if err := m.AppendTransaction(ctx, tx); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	// WHEN: Loading with the period window
	june, err := ledger.RangeForPeriod("2025-06")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	got, err := m.LoadTransactions(ctx, "p-1", ledger.TxFilter{Range: june})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// THEN: Both boundary transactions are in the window, newest first
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "tx-last" || got[1].ID != "tx-first" {
		t.Errorf("order = %s, %s; want tx-last then tx-first", got[0].ID, got[1].ID)
	}
}

// =============================================================================
// SETTLEMENT UNIQUENESS AND CAS
// =============================================================================

func TestMemory_CreateSettlement_Uniqueness(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	if err := m.CreateSettlement(ctx, newSettlement("s-1", "p-1", "2025-06")); err != nil {
		t.Fatalf("create: %v", err)
	}

	// An active settlement already exists for the pair.
	err := m.CreateSettlement(ctx, newSettlement("s-2", "p-1", "2025-06"))
	if !errors.Is(err, ledger.ErrDuplicateSettlement) {
		t.Errorf("error = %v, want ErrDuplicateSettlement", err)
	}

	// Other periods and profiles are unaffected.
	if err := m.CreateSettlement(ctx, newSettlement("s-3", "p-1", "2025-07")); err != nil {
		t.Errorf("other period: %v", err)
	}
	if err := m.CreateSettlement(ctx, newSettlement("s-4", "p-2", "2025-06")); err != nil {
		t.Errorf("other profile: %v", err)
	}
}

func TestMemory_CreateSettlement_SentPeriodIsClosed(t *testing.T) {
	// GIVEN: A sent settlement for (p-1, 2025-06)
	// WHEN: Creating another settlement for the same pair
	// THEN: ErrAlreadySettled, not ErrDuplicateSettlement

	ctx := context.Background()
	m := store.NewMemory()

	s := newSettlement("s-1", "p-1", "2025-06")
	if err := m.CreateSettlement(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}
	sent, err := ledger.MarkSent(s, memNow)
	if err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := m.UpdateSettlementStatus(ctx, sent, ledger.SettlementPending); err != nil {
		t.Fatalf("update: %v", err)
	}

	err = m.CreateSettlement(ctx, newSettlement("s-2", "p-1", "2025-06"))
	if !errors.Is(err, ledger.ErrAlreadySettled) {
		t.Errorf("error = %v, want ErrAlreadySettled", err)
	}
}

func TestMemory_UpdateSettlementStatus_CAS(t *testing.T) {
	// GIVEN: Two writers that both read the settlement as pending
	// WHEN: Both try to transition it
	// THEN: The second write loses with ErrConcurrencyConflict

	ctx := context.Background()
	m := store.NewMemory()

	s := newSettlement("s-1", "p-1", "2025-06")
	if err := m.CreateSettlement(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	sent, _ := ledger.MarkSent(s, memNow)
	if err := m.UpdateSettlementStatus(ctx, sent, ledger.SettlementPending); err != nil {
		t.Fatalf("first writer: %v", err)
	}

	failed, _ := ledger.MarkFailed(s, "late failure", memNow)
	err := m.UpdateSettlementStatus(ctx, failed, ledger.SettlementPending)
	if !errors.Is(err, ledger.ErrConcurrencyConflict) {
		t.Errorf("second writer error = %v, want ErrConcurrencyConflict", err)
	}

	// The winner's state survived.
	got, err := m.GetSettlement(ctx, "s-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != ledger.SettlementSent {
		t.Errorf("status = %s, want sent", got.Status)
	}
}

func TestMemory_UpdateSettlementStatus_NotFound(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	err := m.UpdateSettlementStatus(ctx, newSettlement("ghost", "p-1", "2025-06"), ledger.SettlementPending)
	if !errors.Is(err, ledger.ErrSettlementNotFound) {
		t.Errorf("error = %v, want ErrSettlementNotFound", err)
	}
}

// =============================================================================
// AUDIT QUERIES
// =============================================================================

func TestMemory_QueryAudit_FilterAndPaginate(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	for i := 0; i < 5; i++ {
		actor := "alice"
		if i%2 == 1 {
			actor = "bob"
		}
		err := m.AppendAudit(ctx, ledger.AuditEntry{
			ID:        fmt.Sprintf("a-%d", i),
			Actor:     actor,
			Action:    ledger.AuditCreate,
			Resource:  ledger.ResourceTransaction,
			Timestamp: memNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	// Newest first, limited.
	page, total, err := m.QueryAudit(ctx, ledger.AuditFilter{}, 0, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 || page[0].ID != "a-4" || page[1].ID != "a-3" {
		t.Errorf("page = %v, want a-4 then a-3", page)
	}

	// Actor filter.
	alice, total, err := m.QueryAudit(ctx, ledger.AuditFilter{Actor: "alice"}, 0, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 3 || len(alice) != 3 {
		t.Errorf("alice total = %d len = %d, want 3/3", total, len(alice))
	}

	// Offset past the end is an empty page, not an error.
	empty, total, err := m.QueryAudit(ctx, ledger.AuditFilter{}, 10, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(empty) != 0 || total != 5 {
		t.Errorf("past-end page = %v total = %d", empty, total)
	}
}

// =============================================================================
// TRANSACTIONAL SEMANTICS
// =============================================================================

func TestMemory_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that appends data then fails
	// WHEN: WithTx returns the error
	// THEN: Nothing it wrote survives

	ctx := context.Background()
	m := store.NewMemory()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(s ledger.Store) error {
		if err := s.AppendTransaction(ctx, newTx("tx-1", "p-1", memNow)); err != nil {
			return err
		}
		if err := s.AppendAudit(ctx, ledger.AuditEntry{ID: "a-1", Timestamp: memNow}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}

	if _, err := m.GetTransaction(ctx, "tx-1"); !errors.Is(err, ledger.ErrTransactionNotFound) {
		t.Errorf("transaction survived rollback: %v", err)
	}
	_, total, err := m.QueryAudit(ctx, ledger.AuditFilter{}, 0, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 0 {
		t.Errorf("audit entries survived rollback: %d", total)
	}
}

func TestMemory_WithTx_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	err := m.WithTx(ctx, func(s ledger.Store) error {
		if err := s.AppendTransaction(ctx, newTx("tx-1", "p-1", memNow)); err != nil {
			return err
		}
		return s.AppendAudit(ctx, ledger.AuditEntry{ID: "a-1", Timestamp: memNow})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.GetTransaction(ctx, "tx-1"); err != nil {
		t.Errorf("committed transaction missing: %v", err)
	}
	_, total, _ := m.QueryAudit(ctx, ledger.AuditFilter{}, 0, 10)
	if total != 1 {
		t.Errorf("audit total = %d, want 1", total)
	}
}
