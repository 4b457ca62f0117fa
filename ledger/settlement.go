/*
settlement.go - Settlement state machine and message rendering

PURPOSE:
  Builds settlement records from aggregated ledger data and governs their
  status transitions.

STATE MACHINE:
  pending → sent     (markSent; sets SentAt, terminal)
  pending → failed   (markFailed; records reason)
  failed  → pending  (retry)
  failed  → sent     (markSent after a failed delivery attempt)

  sent is terminal. Transitions out of sent fail with ErrAlreadySettled;
  everything else illegal fails with ErrInvalidTransition. The machine is
  pure: persistence and the CAS that guards concurrent transitions live in
  the store, orchestrated by the service layer.

MESSAGE RENDERING:
  The template substitutes {period}, {balance} and {status} with the
  LedgerEntry's values; the balance is formatted with the configured
  currency symbol and thousands grouping.

SEE ALSO:
  - types.go: Settlement, SettlementStatus
  - store.go: CAS contract (UpdateSettlementStatus)
  - service/service.go: Per-(profile, period) locking around creation
*/
package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Placeholders recognized by settlement message templates.
const (
	PlaceholderPeriod  = "{period}"
	PlaceholderBalance = "{balance}"
	PlaceholderStatus  = "{status}"
)

// DefaultSettlementTemplate is used when the caller supplies none.
const DefaultSettlementTemplate = "Statement for {period}: balance {balance} ({status})"

// NewSettlement renders the message template against the ledger entry and
// returns a pending settlement for the (profile, period). The caller is
// responsible for uniqueness: at most one active settlement per
// (profile, period).
func NewSettlement(profileID ProfileID, period Period, entry LedgerEntry, template, currencySymbol string, now time.Time) Settlement {
	if template == "" {
		template = DefaultSettlementTemplate
	}
	now = now.UTC()
	return Settlement{
		ID:        SettlementID(uuid.NewString()),
		ProfileID: profileID,
		Period:    period,
		Amount:    entry.Outstanding,
		Message:   RenderSettlementMessage(template, period, entry, currencySymbol),
		Status:    SettlementPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RenderSettlementMessage substitutes the template placeholders.
func RenderSettlementMessage(template string, period Period, entry LedgerEntry, currencySymbol string) string {
	r := strings.NewReplacer(
		PlaceholderPeriod, period.String(),
		PlaceholderBalance, entry.Balance.Format(currencySymbol),
		PlaceholderStatus, string(entry.Status()),
	)
	return r.Replace(template)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to SettlementStatus) bool {
	switch from {
	case SettlementPending:
		return to == SettlementSent || to == SettlementFailed
	case SettlementFailed:
		return to == SettlementSent || to == SettlementPending
	default:
		return false
	}
}

// MarkSent transitions the settlement to sent, stamping SentAt. Legal from
// pending or failed. A settlement already sent must not be silently
// re-sent; callers get ErrAlreadySettled via the TransitionError.
func MarkSent(s Settlement, now time.Time) (Settlement, error) {
	if !CanTransition(s.Status, SettlementSent) {
		return s, &TransitionError{SettlementID: s.ID, From: s.Status, To: SettlementSent}
	}
	sentAt := now.UTC()
	s.Status = SettlementSent
	s.SentAt = &sentAt
	s.UpdatedAt = sentAt
	return s, nil
}

// MarkFailed records a failure reason. Always legal from pending, and from
// failed (a repeated failure updates the reason).
func MarkFailed(s Settlement, reason string, now time.Time) (Settlement, error) {
	if s.Status == SettlementSent {
		return s, &TransitionError{SettlementID: s.ID, From: s.Status, To: SettlementFailed}
	}
	s.Status = SettlementFailed
	s.FailureReason = reason
	s.UpdatedAt = now.UTC()
	return s, nil
}

// Retry moves a failed settlement back to pending for another delivery
// attempt. The existing record is reused rather than duplicated, keeping
// at most one active settlement per (profile, period).
func Retry(s Settlement, now time.Time) (Settlement, error) {
	if !CanTransition(s.Status, SettlementPending) {
		return s, &TransitionError{SettlementID: s.ID, From: s.Status, To: SettlementPending}
	}
	s.Status = SettlementPending
	s.FailureReason = ""
	s.UpdatedAt = now.UTC()
	return s, nil
}
