/*
audit.go - Append-only audit recording

PURPOSE:
  Every mutating operation on financial state produces exactly one audit
  entry: who did it, what kind of action, which resource, and a
  human-readable detail string.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. SYNCHRONOUS: Entries are written with the mutation they describe.
     A failed audit write fails the mutation — callers run both inside
     the store's WithTx so neither lands without the other.

SEE ALSO:
  - store.go: AuditStore interface
  - service/service.go: Wraps mutations and audit writes in one transaction
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// AUDIT VOCABULARY
// =============================================================================

// AuditAction is the fixed vocabulary of mutating actions.
type AuditAction string

const (
	AuditCreate    AuditAction = "CREATE"
	AuditUpdate    AuditAction = "UPDATE"
	AuditDelete    AuditAction = "DELETE"
	AuditLogin     AuditAction = "LOGIN"
	AuditCalculate AuditAction = "CALCULATE"
)

// AuditResource identifies the entity type an action affected.
type AuditResource string

const (
	ResourceProfile     AuditResource = "Profile"
	ResourceTransaction AuditResource = "Transaction"
	ResourceLedger      AuditResource = "Ledger"
	ResourceSettlement  AuditResource = "Settlement"
	ResourceUser        AuditResource = "User"
)

// AuditEntry is one append-only record of a mutating action.
type AuditEntry struct {
	ID         string
	Actor      string
	Action     AuditAction
	Resource   AuditResource
	ResourceID string
	Detail     string
	Origin     string // request origin address, if known
	Timestamp  time.Time
}

// AuditFilter narrows an audit query. Nil/zero fields match everything.
type AuditFilter struct {
	Actor  string
	Action AuditAction
	From   time.Time
	To     time.Time
}

// =============================================================================
// RECORDER
// =============================================================================

// Recorder writes audit entries through an AuditStore, filling in the
// entry id and timestamp.
type Recorder struct {
	Store AuditStore
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store AuditStore) *Recorder {
	return &Recorder{Store: store}
}

// Record persists one entry and returns it. A persistence failure is
// surfaced as ErrAuditWriteFailed so callers treat it as a mutation
// failure, not a best-effort log line.
func (r *Recorder) Record(ctx context.Context, entry AuditEntry) (AuditEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := r.Store.AppendAudit(ctx, entry); err != nil {
		return AuditEntry{}, fmt.Errorf("%w: %v", ErrAuditWriteFailed, err)
	}
	return entry, nil
}
