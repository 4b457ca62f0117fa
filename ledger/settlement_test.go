package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/point-ledger/ledger"
)

var settleNow = time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC)

func pendingSettlement() ledger.Settlement {
	entry := ledger.Aggregate(downlineProfile(), []ledger.Transaction{
		mustTx("tx-1", "down-1", ledger.TxGiven, 500, "2.00", strPtr("10")),
	}, "2025-06", settleNow)
	return ledger.NewSettlement("down-1", "2025-06", entry, "", "$", settleNow)
}

// =============================================================================
// CREATION AND RENDERING
// =============================================================================

func TestNewSettlement_PendingWithRenderedMessage(t *testing.T) {
	// GIVEN: A downline owing 1100.00 for 2025-06
	// WHEN: Creating a settlement with the default template
	// THEN: It is pending and the message carries period, formatted
	//       balance, and derived status

	s := pendingSettlement()

	if s.Status != ledger.SettlementPending {
		t.Errorf("status = %s, want pending", s.Status)
	}
	if s.Amount.String() != "1100.00" {
		t.Errorf("amount = %s, want 1100.00", s.Amount)
	}
	want := "Statement for 2025-06: balance $1,100.00 (They owe)"
	if s.Message != want {
		t.Errorf("message = %q, want %q", s.Message, want)
	}
	if s.SentAt != nil {
		t.Error("SentAt must be nil before sending")
	}
}

func TestRenderSettlementMessage_CustomTemplate(t *testing.T) {
	entry := ledger.Aggregate(uplinkProfile(), []ledger.Transaction{
		mustTx("tx-1", "up-1", ledger.TxTaken, 1000, "1.50", nil),
	}, "2025-06", settleNow)

	got := ledger.RenderSettlementMessage(
		"{period}/{status}/{balance}", "2025-06", entry, "$")
	want := "2025-06/You owe/-$1,500.00"
	if got != want {
		t.Errorf("rendered = %q, want %q", got, want)
	}
}

func TestRenderSettlementMessage_NoPlaceholders(t *testing.T) {
	entry := ledger.LedgerEntry{}
	got := ledger.RenderSettlementMessage("fixed text", "2025-06", entry, "$")
	if got != "fixed text" {
		t.Errorf("rendered = %q, want unchanged template", got)
	}
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestSettlement_PendingToSent(t *testing.T) {
	s := pendingSettlement()

	sent, err := ledger.MarkSent(s, settleNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent.Status != ledger.SettlementSent {
		t.Errorf("status = %s, want sent", sent.Status)
	}
	if sent.SentAt == nil || !sent.SentAt.Equal(settleNow) {
		t.Errorf("SentAt = %v, want %v", sent.SentAt, settleNow)
	}
	if sent.Active() {
		t.Error("sent settlement must not be active")
	}
}

func TestSettlement_FailRetryResend(t *testing.T) {
	// GIVEN: A pending settlement whose delivery fails
	// WHEN: Failing, retrying, then sending
	// THEN: Each step is legal and the failure reason is cleared on retry

	s := pendingSettlement()

	failed, err := ledger.MarkFailed(s, "smtp timeout", settleNow)
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if failed.Status != ledger.SettlementFailed || failed.FailureReason != "smtp timeout" {
		t.Errorf("failed = %+v", failed)
	}

	retried, err := ledger.Retry(failed, settleNow)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if retried.Status != ledger.SettlementPending || retried.FailureReason != "" {
		t.Errorf("retried = %+v", retried)
	}

	if _, err := ledger.MarkSent(retried, settleNow); err != nil {
		t.Fatalf("MarkSent after retry: %v", err)
	}
}

func TestSettlement_FailedCanSendDirectly(t *testing.T) {
	s := pendingSettlement()
	failed, _ := ledger.MarkFailed(s, "bounced", settleNow)

	if _, err := ledger.MarkSent(failed, settleNow); err != nil {
		t.Fatalf("failed -> sent must be legal: %v", err)
	}
}

func TestSettlement_SentIsTerminal(t *testing.T) {
	// Every transition out of sent must fail with ErrAlreadySettled.
	s := pendingSettlement()
	sent, _ := ledger.MarkSent(s, settleNow)

	if _, err := ledger.MarkSent(sent, settleNow); !errors.Is(err, ledger.ErrAlreadySettled) {
		t.Errorf("re-send error = %v, want ErrAlreadySettled", err)
	}
	if _, err := ledger.MarkFailed(sent, "x", settleNow); !errors.Is(err, ledger.ErrAlreadySettled) {
		t.Errorf("fail-after-send error = %v, want ErrAlreadySettled", err)
	}
	if _, err := ledger.Retry(sent, settleNow); !errors.Is(err, ledger.ErrAlreadySettled) {
		t.Errorf("retry-after-send error = %v, want ErrAlreadySettled", err)
	}
}

func TestSettlement_RetryFromPendingIsIllegal(t *testing.T) {
	s := pendingSettlement()

	_, err := ledger.Retry(s, settleNow)
	if !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
	var te *ledger.TransitionError
	if !errors.As(err, &te) {
		t.Fatal("error must carry transition detail")
	}
	if te.From != ledger.SettlementPending || te.To != ledger.SettlementPending {
		t.Errorf("transition detail = %s -> %s", te.From, te.To)
	}
}

func TestCanTransition_Table(t *testing.T) {
	cases := []struct {
		from, to ledger.SettlementStatus
		want     bool
	}{
		{ledger.SettlementPending, ledger.SettlementSent, true},
		{ledger.SettlementPending, ledger.SettlementFailed, true},
		{ledger.SettlementFailed, ledger.SettlementPending, true},
		{ledger.SettlementFailed, ledger.SettlementSent, true},
		{ledger.SettlementSent, ledger.SettlementPending, false},
		{ledger.SettlementSent, ledger.SettlementFailed, false},
		{ledger.SettlementSent, ledger.SettlementSent, false},
		{ledger.SettlementPending, ledger.SettlementPending, false},
	}
	for _, tc := range cases {
		if got := ledger.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
