/*
store.go - Persistence interfaces for the engine

PURPOSE:
  Defines the boundary between the engine and whatever database backs it.
  The engine components depend only on these interfaces, never on a
  concrete map or SQL handle, so a transactional store serves production
  and an in-memory one serves tests.

KEY INTERFACES:
  ProfileStore:     Read-mostly counterparty lookup
  TransactionStore: Append-only point transfers
  LedgerEntryStore: Materialized per-(profile, period) snapshots
  SettlementStore:  Settlement records with CAS status updates
  AuditStore:       Append-only audit log
  Store:            All of the above plus WithTx for atomic multi-writes

APPEND-ONLY CONTRACT:
  Transactions and audit entries have no Update or Delete methods.
  Financial corrections are offsetting transactions.

CAS FOR SETTLEMENTS:
  UpdateSettlementStatus applies a transition only when the stored status
  still equals the expected one. Two racers for the same settlement see
  exactly one winner; the loser observes the now-current state.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite in WAL mode, for production

SEE ALSO:
  - service/service.go: The only component holding a Store
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// PROFILE STORE
// =============================================================================

// ProfileStore looks up and saves counterparties. The engine reads
// profiles for direction context; transaction history never re-reads the
// profile's current rate.
type ProfileStore interface {
	// GetProfile returns the profile or ErrProfileNotFound.
	GetProfile(ctx context.Context, id ProfileID) (Profile, error)

	// ListProfiles returns all profiles, active first, name ascending.
	ListProfiles(ctx context.Context) ([]Profile, error)

	// SaveProfile inserts or updates a profile record.
	SaveProfile(ctx context.Context, p Profile) error
}

// =============================================================================
// TRANSACTION STORE - Append-only
// =============================================================================

// TxFilter narrows a transaction load. A zero filter loads everything for
// the profile.
type TxFilter struct {
	Range DateRange
}

// TransactionStore persists point transfers. Append-only: corrections are
// reversal transactions, never edits.
type TransactionStore interface {
	// AppendTransaction persists one transaction. The TotalAmount must
	// already be engine-computed; the store never recalculates it.
	AppendTransaction(ctx context.Context, tx Transaction) error

	// GetTransaction returns the transaction or ErrTransactionNotFound.
	GetTransaction(ctx context.Context, id TransactionID) (Transaction, error)

	// LoadTransactions returns the profile's transactions matching the
	// filter, ordered by date descending (newest first).
	LoadTransactions(ctx context.Context, profileID ProfileID, f TxFilter) ([]Transaction, error)
}

// =============================================================================
// LEDGER ENTRY STORE - Materialized snapshots
// =============================================================================

// LedgerEntryStore caches computed entries per (profile, period). Entries
// are always recomputable from the transaction set; the snapshot exists
// for display and for the recompute-then-settle path.
type LedgerEntryStore interface {
	// SaveLedgerEntry upserts the snapshot for (entry.ProfileID, entry.Period).
	SaveLedgerEntry(ctx context.Context, entry LedgerEntry) error

	// GetLedgerEntry returns the stored snapshot, or ok=false when none
	// has been materialized yet.
	GetLedgerEntry(ctx context.Context, profileID ProfileID, period Period) (LedgerEntry, bool, error)
}

// =============================================================================
// SETTLEMENT STORE
// =============================================================================

// SettlementStore persists settlements and guards their transitions.
type SettlementStore interface {
	// CreateSettlement inserts a pending settlement. Fails with
	// ErrDuplicateSettlement when an active (non-sent) settlement exists
	// for the (profile, period), and ErrAlreadySettled when a sent one does.
	CreateSettlement(ctx context.Context, s Settlement) error

	// GetSettlement returns the settlement or ErrSettlementNotFound.
	GetSettlement(ctx context.Context, id SettlementID) (Settlement, error)

	// ListSettlements returns the profile's settlements, newest first.
	// An empty profile id lists all settlements.
	ListSettlements(ctx context.Context, profileID ProfileID) ([]Settlement, error)

	// UpdateSettlementStatus applies the updated record only if the stored
	// status still equals expect (compare-and-swap). On a lost race it
	// returns ErrConcurrencyConflict; callers reload and re-validate.
	UpdateSettlementStatus(ctx context.Context, updated Settlement, expect SettlementStatus) error
}

// =============================================================================
// AUDIT STORE - Append-only
// =============================================================================

// AuditStore persists audit entries. Append-only; entries are never
// updated or removed.
type AuditStore interface {
	// AppendAudit persists one entry.
	AppendAudit(ctx context.Context, entry AuditEntry) error

	// QueryAudit returns entries matching the filter, newest first,
	// paginated. total is the match count across all pages.
	QueryAudit(ctx context.Context, f AuditFilter, offset, limit int) (entries []AuditEntry, total int, err error)
}

// =============================================================================
// COMPOSED STORE
// =============================================================================

// Store is the full persistence surface the service layer depends on.
type Store interface {
	ProfileStore
	TransactionStore
	LedgerEntryStore
	SettlementStore
	AuditStore

	// WithTx executes fn atomically: if fn returns an error, every write
	// it performed is rolled back. Used to couple financial mutations
	// with their audit entries.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Clock abstracts time for deterministic tests.
type Clock func() time.Time
