// Package store provides the in-memory ledger.Store implementation used
// by tests and development. Production uses store/sqlite.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/warp/point-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	profiles     map[ledger.ProfileID]ledger.Profile
	transactions map[ledger.ProfileID][]ledger.Transaction
	entries      map[entryKey]ledger.LedgerEntry
	settlements  map[ledger.SettlementID]ledger.Settlement
	audit        []ledger.AuditEntry
}

type entryKey struct {
	ProfileID ledger.ProfileID
	Period    ledger.Period
}

func NewMemory() *Memory {
	return &Memory{
		profiles:     make(map[ledger.ProfileID]ledger.Profile),
		transactions: make(map[ledger.ProfileID][]ledger.Transaction),
		entries:      make(map[entryKey]ledger.LedgerEntry),
		settlements:  make(map[ledger.SettlementID]ledger.Settlement),
	}
}

var _ ledger.Store = (*Memory)(nil)

// -----------------------------------------------------------------------------
// Profiles
// -----------------------------------------------------------------------------

func (m *Memory) GetProfile(_ context.Context, id ledger.ProfileID) (ledger.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getProfileLocked(id)
}

func (m *Memory) getProfileLocked(id ledger.ProfileID) (ledger.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return ledger.Profile{}, ledger.ErrProfileNotFound
	}
	return p, nil
}

func (m *Memory) ListProfiles(_ context.Context) ([]ledger.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listProfilesLocked()
}

func (m *Memory) listProfilesLocked() ([]ledger.Profile, error) {
	result := make([]ledger.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Active != result[j].Active {
			return result[i].Active
		}
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}

func (m *Memory) SaveProfile(_ context.Context, p ledger.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	return nil
}

// -----------------------------------------------------------------------------
// Transactions (append-only)
// -----------------------------------------------------------------------------

func (m *Memory) AppendTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendTransactionLocked(tx)
}

func (m *Memory) appendTransactionLocked(tx ledger.Transaction) error {
	txs := m.transactions[tx.ProfileID]

	// Keep slices ordered by date descending (newest first), the order
	// LoadTransactions promises. Binary search for the insertion point.
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].Date.Before(tx.Date)
	})
	txs = append(txs, ledger.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	m.transactions[tx.ProfileID] = txs
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getTransactionLocked(id)
}

func (m *Memory) getTransactionLocked(id ledger.TransactionID) (ledger.Transaction, error) {
	for _, txs := range m.transactions {
		for _, tx := range txs {
			if tx.ID == id {
				return tx, nil
			}
		}
	}
	return ledger.Transaction{}, ledger.ErrTransactionNotFound
}

func (m *Memory) LoadTransactions(_ context.Context, profileID ledger.ProfileID, f ledger.TxFilter) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadTransactionsLocked(profileID, f)
}

func (m *Memory) loadTransactionsLocked(profileID ledger.ProfileID, f ledger.TxFilter) ([]ledger.Transaction, error) {
	var result []ledger.Transaction
	for _, tx := range m.transactions[profileID] {
		if f.Range.Contains(tx.Date) {
			result = append(result, tx)
		}
	}
	return result, nil
}

// -----------------------------------------------------------------------------
// Ledger entries (snapshots)
// -----------------------------------------------------------------------------

func (m *Memory) SaveLedgerEntry(_ context.Context, entry ledger.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entryKey{entry.ProfileID, entry.Period}] = entry
	return nil
}

func (m *Memory) GetLedgerEntry(_ context.Context, profileID ledger.ProfileID, period ledger.Period) (ledger.LedgerEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[entryKey{profileID, period}]
	return e, ok, nil
}

// -----------------------------------------------------------------------------
// Settlements
// -----------------------------------------------------------------------------

func (m *Memory) CreateSettlement(_ context.Context, s ledger.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createSettlementLocked(s)
}

func (m *Memory) createSettlementLocked(s ledger.Settlement) error {
	for _, existing := range m.settlements {
		if existing.ProfileID != s.ProfileID || existing.Period != s.Period {
			continue
		}
		if existing.Status == ledger.SettlementSent {
			return ledger.ErrAlreadySettled
		}
		return ledger.ErrDuplicateSettlement
	}
	m.settlements[s.ID] = s
	return nil
}

func (m *Memory) GetSettlement(_ context.Context, id ledger.SettlementID) (ledger.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSettlementLocked(id)
}

func (m *Memory) getSettlementLocked(id ledger.SettlementID) (ledger.Settlement, error) {
	s, ok := m.settlements[id]
	if !ok {
		return ledger.Settlement{}, ledger.ErrSettlementNotFound
	}
	return s, nil
}

func (m *Memory) ListSettlements(_ context.Context, profileID ledger.ProfileID) ([]ledger.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []ledger.Settlement
	for _, s := range m.settlements {
		if profileID == "" || s.ProfileID == profileID {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) UpdateSettlementStatus(_ context.Context, updated ledger.Settlement, expect ledger.SettlementStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSettlementStatusLocked(updated, expect)
}

func (m *Memory) updateSettlementStatusLocked(updated ledger.Settlement, expect ledger.SettlementStatus) error {
	current, ok := m.settlements[updated.ID]
	if !ok {
		return ledger.ErrSettlementNotFound
	}
	// Compare-and-swap: the stored status must still match what the
	// caller read. A lost race surfaces as a conflict, never a silent
	// double-transition.
	if current.Status != expect {
		return ledger.ErrConcurrencyConflict
	}
	m.settlements[updated.ID] = updated
	return nil
}

// -----------------------------------------------------------------------------
// Audit (append-only)
// -----------------------------------------------------------------------------

func (m *Memory) AppendAudit(_ context.Context, entry ledger.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendAuditLocked(entry)
	return nil
}

func (m *Memory) appendAuditLocked(entry ledger.AuditEntry) {
	m.audit = append(m.audit, entry)
}

func (m *Memory) QueryAudit(_ context.Context, f ledger.AuditFilter, offset, limit int) ([]ledger.AuditEntry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryAuditLocked(f, offset, limit)
}

func (m *Memory) queryAuditLocked(f ledger.AuditFilter, offset, limit int) ([]ledger.AuditEntry, int, error) {
	var matched []ledger.AuditEntry
	for _, e := range m.audit {
		if auditMatches(f, e) {
			matched = append(matched, e)
		}
	}
	// Newest first.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	if offset >= total {
		return []ledger.AuditEntry{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func auditMatches(f ledger.AuditFilter, e ledger.AuditEntry) bool {
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}

// =============================================================================
// TRANSACTIONS (WithTx)
// =============================================================================

// WithTx executes fn atomically. For the memory store this is simulated
// with a snapshot taken under the write lock; if fn fails, the snapshot
// is restored so no partial write survives.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	view := &txMemoryView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	profiles     map[ledger.ProfileID]ledger.Profile
	transactions map[ledger.ProfileID][]ledger.Transaction
	entries      map[entryKey]ledger.LedgerEntry
	settlements  map[ledger.SettlementID]ledger.Settlement
	auditLen     int
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		profiles:     make(map[ledger.ProfileID]ledger.Profile, len(m.profiles)),
		transactions: make(map[ledger.ProfileID][]ledger.Transaction, len(m.transactions)),
		entries:      make(map[entryKey]ledger.LedgerEntry, len(m.entries)),
		settlements:  make(map[ledger.SettlementID]ledger.Settlement, len(m.settlements)),
		auditLen:     len(m.audit),
	}
	for k, v := range m.profiles {
		s.profiles[k] = v
	}
	for k, v := range m.transactions {
		s.transactions[k] = append([]ledger.Transaction{}, v...)
	}
	for k, v := range m.entries {
		s.entries[k] = v
	}
	for k, v := range m.settlements {
		s.settlements[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.profiles = s.profiles
	m.transactions = s.transactions
	m.entries = s.entries
	m.settlements = s.settlements
	m.audit = m.audit[:s.auditLen]
}

// txMemoryView routes calls to the parent's locked methods. The parent's
// write lock is held for the whole WithTx, so the view must not re-lock.
type txMemoryView struct {
	parent *Memory
}

var _ ledger.Store = (*txMemoryView)(nil)

func (tv *txMemoryView) GetProfile(_ context.Context, id ledger.ProfileID) (ledger.Profile, error) {
	return tv.parent.getProfileLocked(id)
}

func (tv *txMemoryView) ListProfiles(_ context.Context) ([]ledger.Profile, error) {
	return tv.parent.listProfilesLocked()
}

func (tv *txMemoryView) SaveProfile(_ context.Context, p ledger.Profile) error {
	tv.parent.profiles[p.ID] = p
	return nil
}

func (tv *txMemoryView) AppendTransaction(_ context.Context, tx ledger.Transaction) error {
	return tv.parent.appendTransactionLocked(tx)
}

func (tv *txMemoryView) GetTransaction(_ context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	return tv.parent.getTransactionLocked(id)
}

func (tv *txMemoryView) LoadTransactions(_ context.Context, profileID ledger.ProfileID, f ledger.TxFilter) ([]ledger.Transaction, error) {
	return tv.parent.loadTransactionsLocked(profileID, f)
}

func (tv *txMemoryView) SaveLedgerEntry(_ context.Context, entry ledger.LedgerEntry) error {
	tv.parent.entries[entryKey{entry.ProfileID, entry.Period}] = entry
	return nil
}

func (tv *txMemoryView) GetLedgerEntry(_ context.Context, profileID ledger.ProfileID, period ledger.Period) (ledger.LedgerEntry, bool, error) {
	e, ok := tv.parent.entries[entryKey{profileID, period}]
	return e, ok, nil
}

func (tv *txMemoryView) CreateSettlement(_ context.Context, s ledger.Settlement) error {
	return tv.parent.createSettlementLocked(s)
}

func (tv *txMemoryView) GetSettlement(_ context.Context, id ledger.SettlementID) (ledger.Settlement, error) {
	return tv.parent.getSettlementLocked(id)
}

func (tv *txMemoryView) ListSettlements(ctx context.Context, profileID ledger.ProfileID) ([]ledger.Settlement, error) {
	var result []ledger.Settlement
	for _, s := range tv.parent.settlements {
		if profileID == "" || s.ProfileID == profileID {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (tv *txMemoryView) UpdateSettlementStatus(_ context.Context, updated ledger.Settlement, expect ledger.SettlementStatus) error {
	return tv.parent.updateSettlementStatusLocked(updated, expect)
}

func (tv *txMemoryView) AppendAudit(_ context.Context, entry ledger.AuditEntry) error {
	tv.parent.appendAuditLocked(entry)
	return nil
}

func (tv *txMemoryView) QueryAudit(_ context.Context, f ledger.AuditFilter, offset, limit int) ([]ledger.AuditEntry, int, error) {
	return tv.parent.queryAuditLocked(f, offset, limit)
}

func (tv *txMemoryView) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	// Already inside a transaction; nested calls run in the same scope.
	return fn(tv)
}
