/*
Package sqlite provides the SQLite-backed implementation of ledger.Store.

PURPOSE:
  Production persistence for profiles, transactions, ledger snapshots,
  settlements, and the audit log. The same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements exist for transactions or audit_log.
  - Corrections are reversal transactions.

CAS FOR SETTLEMENTS:
  UpdateSettlementStatus runs
    UPDATE settlements SET ... WHERE id = ? AND status = ?
  and treats zero affected rows as a lost race (ErrConcurrencyConflict).
  Concurrent transitions therefore produce exactly one winner.

WAL MODE:
  The database is opened with WAL so readers don't block during writes
  and recovery is crash-safe.

SEE ALSO:
  - ledger/store.go: Interface contracts
  - ledger/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/point-ledger/ledger"
)

// Store implements ledger.Store on SQLite.
type Store struct {
	db *sql.DB
	c  conn
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	// surprises under concurrent settlement transitions.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, c: conn{q: db}}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	-- Counterparties
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		direction TEXT NOT NULL,
		name TEXT NOT NULL,
		contact TEXT,
		rate_per_point TEXT NOT NULL,
		commission_pct TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Point transfers (append-only; no UPDATE/DELETE ever issued)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL REFERENCES profiles(id),
		direction TEXT NOT NULL,
		date TEXT NOT NULL,
		points INTEGER NOT NULL,
		rate_per_point TEXT NOT NULL,
		commission_pct TEXT,
		total_cents INTEGER NOT NULL,
		notes TEXT,
		reversal_of TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_profile_date
		ON transactions(profile_id, date DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_reversal
		ON transactions(reversal_of) WHERE reversal_of IS NOT NULL;

	-- Materialized ledger snapshots per (profile, period)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		profile_id TEXT NOT NULL REFERENCES profiles(id),
		period TEXT NOT NULL,
		total_taken_cents INTEGER NOT NULL,
		total_given_cents INTEGER NOT NULL,
		outstanding_cents INTEGER NOT NULL,
		balance_cents INTEGER NOT NULL,
		net_cents INTEGER NOT NULL,
		total_points INTEGER NOT NULL,
		average_rate TEXT NOT NULL,
		commission_cents INTEGER NOT NULL,
		calculated_at TEXT NOT NULL,
		PRIMARY KEY (profile_id, period)
	);

	-- Settlements; status transitions go through the CAS update only
	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL REFERENCES profiles(id),
		period TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		message TEXT NOT NULL,
		status TEXT NOT NULL,
		failure_reason TEXT,
		sent_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_settlements_profile_period
		ON settlements(profile_id, period);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		resource TEXT NOT NULL,
		resource_id TEXT,
		detail TEXT,
		origin TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_timestamp
		ON audit_log(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_actor
		ON audit_log(actor);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERYER - Shared between the pool and an open transaction
// =============================================================================

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements every store operation against a queryer, so the same
// code serves both direct calls and WithTx views.
type conn struct {
	q queryer
}

// -----------------------------------------------------------------------------
// Profiles
// -----------------------------------------------------------------------------

func (c conn) GetProfile(ctx context.Context, id ledger.ProfileID) (ledger.Profile, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT id, direction, name, contact, rate_per_point, commission_pct, active, created_at, updated_at
		FROM profiles WHERE id = ?`, string(id))
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Profile{}, ledger.ErrProfileNotFound
	}
	return p, err
}

func (c conn) ListProfiles(ctx context.Context) ([]ledger.Profile, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, direction, name, contact, rate_per_point, commission_pct, active, created_at, updated_at
		FROM profiles ORDER BY active DESC, LOWER(name) ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []ledger.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (c conn) SaveProfile(ctx context.Context, p ledger.Profile) error {
	var commission sql.NullString
	if p.CommissionPct != nil {
		commission = sql.NullString{String: p.CommissionPct.String(), Valid: true}
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO profiles (id, direction, name, contact, rate_per_point, commission_pct, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			direction = excluded.direction,
			name = excluded.name,
			contact = excluded.contact,
			rate_per_point = excluded.rate_per_point,
			commission_pct = excluded.commission_pct,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		string(p.ID), string(p.Direction), p.Name, p.Contact,
		p.RatePerPoint.String(), commission, boolToInt(p.Active),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	return err
}

// -----------------------------------------------------------------------------
// Transactions (append-only)
// -----------------------------------------------------------------------------

func (c conn) AppendTransaction(ctx context.Context, tx ledger.Transaction) error {
	var commission sql.NullString
	if tx.CommissionPct != nil {
		commission = sql.NullString{String: tx.CommissionPct.String(), Valid: true}
	}
	var reversalOf sql.NullString
	if tx.ReversalOf != "" {
		reversalOf = sql.NullString{String: string(tx.ReversalOf), Valid: true}
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO transactions (id, profile_id, direction, date, points, rate_per_point, commission_pct, total_cents, notes, reversal_of, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(tx.ID), string(tx.ProfileID), string(tx.Direction),
		formatTime(tx.Date), tx.Points, tx.RatePerPoint.String(), commission,
		tx.TotalAmount.Cents(), tx.Notes, reversalOf,
		formatTime(tx.CreatedAt), formatTime(tx.UpdatedAt))
	return err
}

func (c conn) GetTransaction(ctx context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT id, profile_id, direction, date, points, rate_per_point, commission_pct, total_cents, notes, reversal_of, created_at, updated_at
		FROM transactions WHERE id = ?`, string(id))
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	return tx, err
}

func (c conn) LoadTransactions(ctx context.Context, profileID ledger.ProfileID, f ledger.TxFilter) ([]ledger.Transaction, error) {
	query := `
		SELECT id, profile_id, direction, date, points, rate_per_point, commission_pct, total_cents, notes, reversal_of, created_at, updated_at
		FROM transactions WHERE profile_id = ?`
	args := []any{string(profileID)}

	if !f.Range.From.IsZero() {
		query += " AND date >= ?"
		args = append(args, formatTime(f.Range.From))
	}
	if !f.Range.To.IsZero() {
		query += " AND date <= ?"
		args = append(args, formatTime(f.Range.To))
	}
	query += " ORDER BY date DESC, created_at DESC"

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// -----------------------------------------------------------------------------
// Ledger entries
// -----------------------------------------------------------------------------

func (c conn) SaveLedgerEntry(ctx context.Context, e ledger.LedgerEntry) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO ledger_entries (profile_id, period, total_taken_cents, total_given_cents, outstanding_cents, balance_cents, net_cents, total_points, average_rate, commission_cents, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(profile_id, period) DO UPDATE SET
			total_taken_cents = excluded.total_taken_cents,
			total_given_cents = excluded.total_given_cents,
			outstanding_cents = excluded.outstanding_cents,
			balance_cents = excluded.balance_cents,
			net_cents = excluded.net_cents,
			total_points = excluded.total_points,
			average_rate = excluded.average_rate,
			commission_cents = excluded.commission_cents,
			calculated_at = excluded.calculated_at`,
		string(e.ProfileID), e.Period.String(),
		e.TotalTaken.Cents(), e.TotalGiven.Cents(), e.Outstanding.Cents(),
		e.Balance.Cents(), e.NetPosition.Cents(), e.TotalPoints,
		e.AverageRate.String(), e.CommissionTotal.Cents(), formatTime(e.CalculatedAt))
	return err
}

func (c conn) GetLedgerEntry(ctx context.Context, profileID ledger.ProfileID, period ledger.Period) (ledger.LedgerEntry, bool, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT profile_id, period, total_taken_cents, total_given_cents, outstanding_cents, balance_cents, net_cents, total_points, average_rate, commission_cents, calculated_at
		FROM ledger_entries WHERE profile_id = ? AND period = ?`,
		string(profileID), period.String())

	var (
		e                                   ledger.LedgerEntry
		pid, per, avgRate, calculatedAt     string
		taken, given, outstanding, bal, net int64
		commissionCents                     int64
	)
	err := row.Scan(&pid, &per, &taken, &given, &outstanding, &bal, &net, &e.TotalPoints, &avgRate, &commissionCents, &calculatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.LedgerEntry{}, false, nil
	}
	if err != nil {
		return ledger.LedgerEntry{}, false, err
	}

	e.ProfileID = ledger.ProfileID(pid)
	e.Period = ledger.Period(per)
	e.TotalTaken = ledger.NewMoneyFromCents(taken)
	e.TotalGiven = ledger.NewMoneyFromCents(given)
	e.Outstanding = ledger.NewMoneyFromCents(outstanding)
	e.Balance = ledger.NewMoneyFromCents(bal)
	e.NetPosition = ledger.NewMoneyFromCents(net)
	e.AverageRate, err = decimal.NewFromString(avgRate)
	if err != nil {
		return ledger.LedgerEntry{}, false, fmt.Errorf("corrupt average_rate %q: %w", avgRate, err)
	}
	e.CommissionTotal = ledger.NewMoneyFromCents(commissionCents)
	e.CalculatedAt, err = parseTime(calculatedAt)
	if err != nil {
		return ledger.LedgerEntry{}, false, err
	}
	return e, true, nil
}

// -----------------------------------------------------------------------------
// Settlements
// -----------------------------------------------------------------------------

func (c conn) CreateSettlement(ctx context.Context, s ledger.Settlement) error {
	// Uniqueness policy: at most one active settlement per (profile,
	// period), and a sent period cannot be settled again.
	rows, err := c.q.QueryContext(ctx,
		`SELECT status FROM settlements WHERE profile_id = ? AND period = ?`,
		string(s.ProfileID), s.Period.String())
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return err
		}
		if ledger.SettlementStatus(status) == ledger.SettlementSent {
			return ledger.ErrAlreadySettled
		}
		return ledger.ErrDuplicateSettlement
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = c.q.ExecContext(ctx, `
		INSERT INTO settlements (id, profile_id, period, amount_cents, message, status, failure_reason, sent_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(s.ID), string(s.ProfileID), s.Period.String(),
		s.Amount.Cents(), s.Message, string(s.Status), s.FailureReason,
		nullTime(s.SentAt), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	return err
}

func (c conn) GetSettlement(ctx context.Context, id ledger.SettlementID) (ledger.Settlement, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT id, profile_id, period, amount_cents, message, status, failure_reason, sent_at, created_at, updated_at
		FROM settlements WHERE id = ?`, string(id))
	s, err := scanSettlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Settlement{}, ledger.ErrSettlementNotFound
	}
	return s, err
}

func (c conn) ListSettlements(ctx context.Context, profileID ledger.ProfileID) ([]ledger.Settlement, error) {
	query := `
		SELECT id, profile_id, period, amount_cents, message, status, failure_reason, sent_at, created_at, updated_at
		FROM settlements`
	var args []any
	if profileID != "" {
		query += " WHERE profile_id = ?"
		args = append(args, string(profileID))
	}
	query += " ORDER BY created_at DESC"

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settlements []ledger.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}

func (c conn) UpdateSettlementStatus(ctx context.Context, updated ledger.Settlement, expect ledger.SettlementStatus) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE settlements
		SET status = ?, failure_reason = ?, sent_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(updated.Status), updated.FailureReason, nullTime(updated.SentAt),
		formatTime(updated.UpdatedAt), string(updated.ID), string(expect))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the id is unknown or the status moved under us.
		row := c.q.QueryRowContext(ctx, `SELECT 1 FROM settlements WHERE id = ?`, string(updated.ID))
		var one int
		if scanErr := row.Scan(&one); errors.Is(scanErr, sql.ErrNoRows) {
			return ledger.ErrSettlementNotFound
		}
		return ledger.ErrConcurrencyConflict
	}
	return nil
}

// -----------------------------------------------------------------------------
// Audit (append-only)
// -----------------------------------------------------------------------------

func (c conn) AppendAudit(ctx context.Context, e ledger.AuditEntry) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO audit_log (id, actor, action, resource, resource_id, detail, origin, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Actor, string(e.Action), string(e.Resource), e.ResourceID,
		e.Detail, e.Origin, formatTime(e.Timestamp))
	return err
}

func (c conn) QueryAudit(ctx context.Context, f ledger.AuditFilter, offset, limit int) ([]ledger.AuditEntry, int, error) {
	var where []string
	var args []any
	if f.Actor != "" {
		where = append(where, "actor = ?")
		args = append(args, f.Actor)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, string(f.Action))
	}
	if !f.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, formatTime(f.To))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := c.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log"+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, actor, action, resource, resource_id, detail, origin, timestamp
		FROM audit_log` + clause + " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	if limit <= 0 {
		limit = total
	}
	args = append(args, limit, offset)

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []ledger.AuditEntry
	for rows.Next() {
		var e ledger.AuditEntry
		var action, resource, ts string
		var resourceID, detail, origin sql.NullString
		if err := rows.Scan(&e.ID, &e.Actor, &action, &resource, &resourceID, &detail, &origin, &ts); err != nil {
			return nil, 0, err
		}
		e.Action = ledger.AuditAction(action)
		e.Resource = ledger.AuditResource(resource)
		e.ResourceID = resourceID.String
		e.Detail = detail.String
		e.Origin = origin.String
		e.Timestamp, err = parseTime(ts)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// =============================================================================
// STORE WIRING
// =============================================================================

func (s *Store) GetProfile(ctx context.Context, id ledger.ProfileID) (ledger.Profile, error) {
	return s.c.GetProfile(ctx, id)
}
func (s *Store) ListProfiles(ctx context.Context) ([]ledger.Profile, error) {
	return s.c.ListProfiles(ctx)
}
func (s *Store) SaveProfile(ctx context.Context, p ledger.Profile) error {
	return s.c.SaveProfile(ctx, p)
}
func (s *Store) AppendTransaction(ctx context.Context, tx ledger.Transaction) error {
	return s.c.AppendTransaction(ctx, tx)
}
func (s *Store) GetTransaction(ctx context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	return s.c.GetTransaction(ctx, id)
}
func (s *Store) LoadTransactions(ctx context.Context, profileID ledger.ProfileID, f ledger.TxFilter) ([]ledger.Transaction, error) {
	return s.c.LoadTransactions(ctx, profileID, f)
}
func (s *Store) SaveLedgerEntry(ctx context.Context, e ledger.LedgerEntry) error {
	return s.c.SaveLedgerEntry(ctx, e)
}
func (s *Store) GetLedgerEntry(ctx context.Context, profileID ledger.ProfileID, period ledger.Period) (ledger.LedgerEntry, bool, error) {
	return s.c.GetLedgerEntry(ctx, profileID, period)
}
func (s *Store) CreateSettlement(ctx context.Context, set ledger.Settlement) error {
	return s.c.CreateSettlement(ctx, set)
}
func (s *Store) GetSettlement(ctx context.Context, id ledger.SettlementID) (ledger.Settlement, error) {
	return s.c.GetSettlement(ctx, id)
}
func (s *Store) ListSettlements(ctx context.Context, profileID ledger.ProfileID) ([]ledger.Settlement, error) {
	return s.c.ListSettlements(ctx, profileID)
}
func (s *Store) UpdateSettlementStatus(ctx context.Context, updated ledger.Settlement, expect ledger.SettlementStatus) error {
	return s.c.UpdateSettlementStatus(ctx, updated, expect)
}
func (s *Store) AppendAudit(ctx context.Context, e ledger.AuditEntry) error {
	return s.c.AppendAudit(ctx, e)
}
func (s *Store) QueryAudit(ctx context.Context, f ledger.AuditFilter, offset, limit int) ([]ledger.AuditEntry, int, error) {
	return s.c.QueryAudit(ctx, f, offset, limit)
}

// WithTx executes fn within one SQL transaction. An error from fn rolls
// back everything it wrote; mutation and audit entry land together or
// not at all.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	view := &txView{c: conn{q: tx}}
	if err := fn(view); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// txView adapts a conn bound to an open *sql.Tx to the full Store
// interface. Nested WithTx runs in the same transaction.
type txView struct {
	c conn
}

var _ ledger.Store = (*txView)(nil)

func (v *txView) GetProfile(ctx context.Context, id ledger.ProfileID) (ledger.Profile, error) {
	return v.c.GetProfile(ctx, id)
}
func (v *txView) ListProfiles(ctx context.Context) ([]ledger.Profile, error) {
	return v.c.ListProfiles(ctx)
}
func (v *txView) SaveProfile(ctx context.Context, p ledger.Profile) error {
	return v.c.SaveProfile(ctx, p)
}
func (v *txView) AppendTransaction(ctx context.Context, tx ledger.Transaction) error {
	return v.c.AppendTransaction(ctx, tx)
}
func (v *txView) GetTransaction(ctx context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	return v.c.GetTransaction(ctx, id)
}
func (v *txView) LoadTransactions(ctx context.Context, profileID ledger.ProfileID, f ledger.TxFilter) ([]ledger.Transaction, error) {
	return v.c.LoadTransactions(ctx, profileID, f)
}
func (v *txView) SaveLedgerEntry(ctx context.Context, e ledger.LedgerEntry) error {
	return v.c.SaveLedgerEntry(ctx, e)
}
func (v *txView) GetLedgerEntry(ctx context.Context, profileID ledger.ProfileID, period ledger.Period) (ledger.LedgerEntry, bool, error) {
	return v.c.GetLedgerEntry(ctx, profileID, period)
}
func (v *txView) CreateSettlement(ctx context.Context, set ledger.Settlement) error {
	return v.c.CreateSettlement(ctx, set)
}
func (v *txView) GetSettlement(ctx context.Context, id ledger.SettlementID) (ledger.Settlement, error) {
	return v.c.GetSettlement(ctx, id)
}
func (v *txView) ListSettlements(ctx context.Context, profileID ledger.ProfileID) ([]ledger.Settlement, error) {
	return v.c.ListSettlements(ctx, profileID)
}
func (v *txView) UpdateSettlementStatus(ctx context.Context, updated ledger.Settlement, expect ledger.SettlementStatus) error {
	return v.c.UpdateSettlementStatus(ctx, updated, expect)
}
func (v *txView) AppendAudit(ctx context.Context, e ledger.AuditEntry) error {
	return v.c.AppendAudit(ctx, e)
}
func (v *txView) QueryAudit(ctx context.Context, f ledger.AuditFilter, offset, limit int) ([]ledger.AuditEntry, int, error) {
	return v.c.QueryAudit(ctx, f, offset, limit)
}
func (v *txView) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	return fn(v)
}

// =============================================================================
// SCANNERS AND HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(r rowScanner) (ledger.Profile, error) {
	var (
		p                    ledger.Profile
		id, direction        string
		contact              sql.NullString
		rate                 string
		commission           sql.NullString
		active               int
		createdAt, updatedAt string
	)
	if err := r.Scan(&id, &direction, &p.Name, &contact, &rate, &commission, &active, &createdAt, &updatedAt); err != nil {
		return ledger.Profile{}, err
	}
	p.ID = ledger.ProfileID(id)
	p.Direction = ledger.ProfileDirection(direction)
	p.Contact = contact.String
	p.Active = active != 0

	var err error
	p.RatePerPoint, err = decimal.NewFromString(rate)
	if err != nil {
		return ledger.Profile{}, fmt.Errorf("corrupt rate_per_point %q: %w", rate, err)
	}
	if commission.Valid {
		c, err := decimal.NewFromString(commission.String)
		if err != nil {
			return ledger.Profile{}, fmt.Errorf("corrupt commission_pct %q: %w", commission.String, err)
		}
		p.CommissionPct = &c
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return ledger.Profile{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return ledger.Profile{}, err
	}
	return p, nil
}

func scanTransaction(r rowScanner) (ledger.Transaction, error) {
	var (
		tx                   ledger.Transaction
		id, profileID, dir   string
		date                 string
		rate                 string
		commission           sql.NullString
		totalCents           int64
		notes, reversalOf    sql.NullString
		createdAt, updatedAt string
	)
	if err := r.Scan(&id, &profileID, &dir, &date, &tx.Points, &rate, &commission, &totalCents, &notes, &reversalOf, &createdAt, &updatedAt); err != nil {
		return ledger.Transaction{}, err
	}
	tx.ID = ledger.TransactionID(id)
	tx.ProfileID = ledger.ProfileID(profileID)
	tx.Direction = ledger.TxDirection(dir)
	tx.TotalAmount = ledger.NewMoneyFromCents(totalCents)
	tx.Notes = notes.String
	tx.ReversalOf = ledger.TransactionID(reversalOf.String)

	var err error
	tx.RatePerPoint, err = decimal.NewFromString(rate)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("corrupt rate_per_point %q: %w", rate, err)
	}
	if commission.Valid {
		c, err := decimal.NewFromString(commission.String)
		if err != nil {
			return ledger.Transaction{}, fmt.Errorf("corrupt commission_pct %q: %w", commission.String, err)
		}
		tx.CommissionPct = &c
	}
	if tx.Date, err = parseTime(date); err != nil {
		return ledger.Transaction{}, err
	}
	if tx.CreatedAt, err = parseTime(createdAt); err != nil {
		return ledger.Transaction{}, err
	}
	if tx.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

func scanSettlement(r rowScanner) (ledger.Settlement, error) {
	var (
		s                     ledger.Settlement
		id, profileID, period string
		amountCents           int64
		status                string
		failureReason         sql.NullString
		sentAt                sql.NullString
		createdAt, updatedAt  string
	)
	if err := r.Scan(&id, &profileID, &period, &amountCents, &s.Message, &status, &failureReason, &sentAt, &createdAt, &updatedAt); err != nil {
		return ledger.Settlement{}, err
	}
	s.ID = ledger.SettlementID(id)
	s.ProfileID = ledger.ProfileID(profileID)
	s.Period = ledger.Period(period)
	s.Amount = ledger.NewMoneyFromCents(amountCents)
	s.Status = ledger.SettlementStatus(status)
	s.FailureReason = failureReason.String

	var err error
	if sentAt.Valid {
		t, err := parseTime(sentAt.String)
		if err != nil {
			return ledger.Settlement{}, err
		}
		s.SentAt = &t
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return ledger.Settlement{}, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return ledger.Settlement{}, err
	}
	return s, nil
}

// timeLayout is RFC 3339 in UTC with fixed-width nanoseconds. Range filters
// and ORDER BY compare these columns as text, so the encoding must keep
// lexicographic order aligned with temporal order; variable-width fractions
// would break that ('.' sorts before 'Z').
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
