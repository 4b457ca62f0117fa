/*
Package service orchestrates the ledger engine: it is the only component
that touches the store, acquires locks, and couples financial mutations
with their audit entries.

PURPOSE:
  The pure calculators (ledger.ComputeTotal, ledger.Aggregate) perform no
  I/O and cannot suspend. Everything that can block - store reads/writes,
  lock acquisition, context cancellation - happens here, in one place.

RESPONSIBILITIES:
  - Ledger queries: aggregation over the FULL filtered transaction set,
    plus pagination of the raw rows backing the aggregate
  - Transaction recording: engine-computed totals, rate/commission
    snapshotted from the profile at creation time
  - Settlement lifecycle: per-(profile, period) lock with bounded wait,
    recompute-then-settle against a fresh snapshot, CAS transitions
  - Audit: every mutating action writes exactly one entry, atomically
    with the mutation (store.WithTx)

CONCURRENCY:
  Two concurrent settlement creations for the same (profile, period)
  serialize on the lock table; the second caller either waits its turn
  and observes the existing settlement, or times out with
  ErrConcurrencyConflict. Status transitions additionally CAS on the
  stored status so racing markSent calls produce exactly one sent record.

SEE ALSO:
  - ledger/store.go: The persistence surface
  - locks.go: Bounded per-key lock table
  - scheduler.go: Periodic background recomputation
*/
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/point-ledger/ledger"
)

// DefaultLockTimeout bounds the wait for a per-(profile, period) lock.
const DefaultLockTimeout = 3 * time.Second

// DefaultPageLimit is used when a query supplies no page size.
const DefaultPageLimit = 20

// Service is the ledger query/command boundary.
type Service struct {
	store       ledger.Store
	log         zerolog.Logger
	locks       *lockTable
	lockTimeout time.Duration
	currency    string
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLockTimeout overrides the bounded lock wait.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) { s.lockTimeout = d }
}

// WithClock injects a deterministic clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service over the given store. currencySymbol is used when
// rendering settlement messages.
func New(store ledger.Store, log zerolog.Logger, currencySymbol string, opts ...Option) *Service {
	s := &Service{
		store:       store,
		log:         log,
		locks:       newLockTable(),
		lockTimeout: DefaultLockTimeout,
		currency:    currencySymbol,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// LEDGER QUERY
// =============================================================================

// SummaryQuery scopes a ledger query. Period and Range are alternatives;
// when Period is set it wins. A zero query covers the full history.
type SummaryQuery struct {
	Period ledger.Period
	Range  ledger.DateRange
	Page   int
	Limit  int
}

// TransactionPage is one page of the raw rows backing an aggregate.
type TransactionPage struct {
	Data        []ledger.Transaction
	CurrentPage int
	TotalPages  int
	TotalItems  int
}

// LedgerSummary is the ledger-query output: totals over the ENTIRE
// filtered set plus one page of the transactions behind them.
type LedgerSummary struct {
	Entry        ledger.LedgerEntry
	Status       ledger.BalanceStatus
	Transactions TransactionPage
}

// Summary aggregates a profile's transactions and paginates the backing
// rows. The totals always reflect the full filtered set, whatever page is
// requested. The computed entry is persisted as the period snapshot and
// the recomputation is audited.
func (s *Service) Summary(ctx context.Context, profileID ledger.ProfileID, q SummaryQuery) (*LedgerSummary, error) {
	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	dateRange, period, err := resolveWindow(q, s.now())
	if err != nil {
		return nil, err
	}

	txs, err := s.store.LoadTransactions(ctx, profileID, ledger.TxFilter{Range: dateRange})
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	entry := ledger.Aggregate(profile, txs, period, s.now())

	// Snapshot + audit land together or not at all.
	err = s.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.SaveLedgerEntry(ctx, entry); err != nil {
			return err
		}
		_, err := ledger.NewRecorder(tx).Record(ctx, ledger.AuditEntry{
			Actor:      "system",
			Action:     ledger.AuditCalculate,
			Resource:   ledger.ResourceLedger,
			ResourceID: string(profileID),
			Detail:     fmt.Sprintf("recomputed ledger for period %s: balance %s", period, entry.Balance),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return &LedgerSummary{
		Entry:        entry,
		Status:       entry.Status(),
		Transactions: paginate(txs, q.Page, q.Limit),
	}, nil
}

// Overview computes the operator-wide net position across all profiles.
func (s *Service) Overview(ctx context.Context) (ledger.GlobalPosition, error) {
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return ledger.GlobalPosition{}, err
	}

	now := s.now()
	entries := make([]ledger.LedgerEntry, 0, len(profiles))
	for _, p := range profiles {
		txs, err := s.store.LoadTransactions(ctx, p.ID, ledger.TxFilter{})
		if err != nil {
			return ledger.GlobalPosition{}, fmt.Errorf("load transactions for %s: %w", p.ID, err)
		}
		entries = append(entries, ledger.Aggregate(p, txs, ledger.PeriodOf(now), now))
	}
	return ledger.AggregateAll(entries, now), nil
}

// =============================================================================
// TRANSACTION RECORDING
// =============================================================================

// TransactionInput describes a point transfer to record. The total is
// never part of the input: the engine computes it.
type TransactionInput struct {
	ProfileID ledger.ProfileID
	Direction ledger.TxDirection
	Date      time.Time
	Points    int64
	Notes     string
	Actor     string
	Origin    string
}

// RecordTransaction computes the total, snapshots the profile's current
// rate and commission onto the transaction, and persists it together with
// its audit entry. Historical aggregation will use the snapshot, never the
// profile's future rate.
func (s *Service) RecordTransaction(ctx context.Context, in TransactionInput) (ledger.Transaction, error) {
	profile, err := s.store.GetProfile(ctx, in.ProfileID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if err := validateDirection(profile, in.Direction); err != nil {
		return ledger.Transaction{}, err
	}

	var commission *decimal.Decimal
	if in.Direction == ledger.TxGiven && profile.CommissionPct != nil {
		c := *profile.CommissionPct
		commission = &c
	}

	total, err := ledger.ComputeTotal(in.Direction, in.Points, profile.RatePerPoint, commission)
	if err != nil {
		return ledger.Transaction{}, err
	}

	now := s.now().UTC()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	tx := ledger.Transaction{
		ID:            ledger.TransactionID(uuid.NewString()),
		ProfileID:     in.ProfileID,
		Direction:     in.Direction,
		Date:          date.UTC(),
		Points:        in.Points,
		RatePerPoint:  profile.RatePerPoint,
		CommissionPct: commission,
		TotalAmount:   total,
		Notes:         in.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		if err := st.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		_, err := ledger.NewRecorder(st).Record(ctx, ledger.AuditEntry{
			Actor:      in.Actor,
			Action:     ledger.AuditCreate,
			Resource:   ledger.ResourceTransaction,
			ResourceID: string(tx.ID),
			Detail:     fmt.Sprintf("%s %d points @ %s = %s", tx.Direction, tx.Points, tx.RatePerPoint, tx.TotalAmount),
			Origin:     in.Origin,
		})
		return err
	})
	if err != nil {
		return ledger.Transaction{}, err
	}

	s.log.Info().
		Str("profile_id", string(in.ProfileID)).
		Str("direction", string(in.Direction)).
		Int64("points", in.Points).
		Str("total", total.String()).
		Msg("transaction recorded")
	return tx, nil
}

// ReverseTransaction appends an offsetting transaction for the original.
// Financial deletes are reversals; both records stay in the ledger and
// net to zero.
func (s *Service) ReverseTransaction(ctx context.Context, id ledger.TransactionID, actor, origin string) (ledger.Transaction, error) {
	original, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if original.IsReversal() {
		return ledger.Transaction{}, &ledger.FieldError{Field: "id", Message: "cannot reverse a reversal"}
	}

	now := s.now().UTC()
	reversal := ledger.Transaction{
		ID:            ledger.TransactionID(uuid.NewString()),
		ProfileID:     original.ProfileID,
		Direction:     original.Direction,
		Date:          now,
		Points:        -original.Points,
		RatePerPoint:  original.RatePerPoint,
		CommissionPct: original.CommissionPct,
		TotalAmount:   ledger.ReversalTotal(original),
		Notes:         "reversal of " + string(original.ID),
		ReversalOf:    original.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		if err := st.AppendTransaction(ctx, reversal); err != nil {
			return err
		}
		_, err := ledger.NewRecorder(st).Record(ctx, ledger.AuditEntry{
			Actor:      actor,
			Action:     ledger.AuditCreate,
			Resource:   ledger.ResourceTransaction,
			ResourceID: string(reversal.ID),
			Detail:     fmt.Sprintf("reversal of %s (%s)", original.ID, reversal.TotalAmount),
			Origin:     origin,
		})
		return err
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return reversal, nil
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

// CreateSettlement recomputes the profile's ledger for the period against
// a fresh snapshot and creates a pending settlement, all under the
// per-(profile, period) lock. A second concurrent caller either times out
// with ErrConcurrencyConflict or observes the existing settlement.
func (s *Service) CreateSettlement(ctx context.Context, profileID ledger.ProfileID, period ledger.Period, template, actor, origin string) (ledger.Settlement, error) {
	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return ledger.Settlement{}, err
	}

	release, err := s.locks.acquire(ctx, lockKey{ProfileID: profileID, Period: period}, s.lockTimeout)
	if err != nil {
		return ledger.Settlement{}, err
	}
	defer release()

	dateRange, err := ledger.RangeForPeriod(period)
	if err != nil {
		return ledger.Settlement{}, err
	}

	// Recompute-then-settle: the aggregate must include every write
	// already acknowledged to the caller, so this read happens under the
	// lock, never from a stale cache.
	txs, err := s.store.LoadTransactions(ctx, profileID, ledger.TxFilter{Range: dateRange})
	if err != nil {
		return ledger.Settlement{}, fmt.Errorf("load transactions: %w", err)
	}
	entry := ledger.Aggregate(profile, txs, period, s.now())
	settlement := ledger.NewSettlement(profileID, period, entry, template, s.currency, s.now())

	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		if err := st.SaveLedgerEntry(ctx, entry); err != nil {
			return err
		}
		if err := st.CreateSettlement(ctx, settlement); err != nil {
			return err
		}
		_, err := ledger.NewRecorder(st).Record(ctx, ledger.AuditEntry{
			Actor:      actor,
			Action:     ledger.AuditCreate,
			Resource:   ledger.ResourceSettlement,
			ResourceID: string(settlement.ID),
			Detail:     fmt.Sprintf("settlement created for %s period %s, amount %s", profileID, period, settlement.Amount),
			Origin:     origin,
		})
		return err
	})
	if err != nil {
		return ledger.Settlement{}, err
	}

	s.log.Info().
		Str("settlement_id", string(settlement.ID)).
		Str("profile_id", string(profileID)).
		Str("period", period.String()).
		Msg("settlement created")
	return settlement, nil
}

// MarkSettlementSent transitions pending/failed → sent. The store-level
// CAS guarantees exactly one winner under concurrency; a loser whose
// settlement meanwhile became sent observes ErrAlreadySettled.
func (s *Service) MarkSettlementSent(ctx context.Context, id ledger.SettlementID, actor, origin string) (ledger.Settlement, error) {
	return s.transition(ctx, id, actor, origin, func(current ledger.Settlement) (ledger.Settlement, error) {
		return ledger.MarkSent(current, s.now())
	})
}

// MarkSettlementFailed records a delivery failure with its reason.
func (s *Service) MarkSettlementFailed(ctx context.Context, id ledger.SettlementID, reason, actor, origin string) (ledger.Settlement, error) {
	return s.transition(ctx, id, actor, origin, func(current ledger.Settlement) (ledger.Settlement, error) {
		return ledger.MarkFailed(current, reason, s.now())
	})
}

// RetrySettlement moves a failed settlement back to pending.
func (s *Service) RetrySettlement(ctx context.Context, id ledger.SettlementID, actor, origin string) (ledger.Settlement, error) {
	return s.transition(ctx, id, actor, origin, func(current ledger.Settlement) (ledger.Settlement, error) {
		return ledger.Retry(current, s.now())
	})
}

// GetSettlement returns a settlement by id.
func (s *Service) GetSettlement(ctx context.Context, id ledger.SettlementID) (ledger.Settlement, error) {
	return s.store.GetSettlement(ctx, id)
}

// ListSettlements returns a profile's settlements, newest first. An empty
// profile id lists everything.
func (s *Service) ListSettlements(ctx context.Context, profileID ledger.ProfileID) ([]ledger.Settlement, error) {
	return s.store.ListSettlements(ctx, profileID)
}

func (s *Service) transition(ctx context.Context, id ledger.SettlementID, actor, origin string, step func(ledger.Settlement) (ledger.Settlement, error)) (ledger.Settlement, error) {
	current, err := s.store.GetSettlement(ctx, id)
	if err != nil {
		return ledger.Settlement{}, err
	}

	updated, err := step(current)
	if err != nil {
		return ledger.Settlement{}, err
	}

	err = s.store.WithTx(ctx, func(st ledger.Store) error {
		if err := st.UpdateSettlementStatus(ctx, updated, current.Status); err != nil {
			return err
		}
		_, err := ledger.NewRecorder(st).Record(ctx, ledger.AuditEntry{
			Actor:      actor,
			Action:     ledger.AuditUpdate,
			Resource:   ledger.ResourceSettlement,
			ResourceID: string(id),
			Detail:     fmt.Sprintf("settlement %s -> %s", current.Status, updated.Status),
			Origin:     origin,
		})
		return err
	})
	if errors.Is(err, ledger.ErrConcurrencyConflict) {
		// Lost the CAS race. Report the now-current state: if someone
		// else already sent it, that is AlreadySettled, not a retryable
		// conflict.
		latest, getErr := s.store.GetSettlement(ctx, id)
		if getErr == nil && latest.Status == ledger.SettlementSent {
			return ledger.Settlement{}, ledger.ErrAlreadySettled
		}
		return ledger.Settlement{}, err
	}
	if err != nil {
		return ledger.Settlement{}, err
	}
	return updated, nil
}

// =============================================================================
// AUDIT QUERY
// =============================================================================

// AuditPage is one page of audit entries, newest first.
type AuditPage struct {
	Data        []ledger.AuditEntry
	CurrentPage int
	TotalPages  int
	TotalItems  int
}

// AuditTrail queries the audit log with pagination.
func (s *Service) AuditTrail(ctx context.Context, f ledger.AuditFilter, page, limit int) (AuditPage, error) {
	page, limit = normalizePage(page, limit)
	entries, total, err := s.store.QueryAudit(ctx, f, (page-1)*limit, limit)
	if err != nil {
		return AuditPage{}, err
	}
	return AuditPage{
		Data:        entries,
		CurrentPage: page,
		TotalPages:  totalPages(total, limit),
		TotalItems:  total,
	}, nil
}

// =============================================================================
// BACKGROUND RECOMPUTATION
// =============================================================================

// RecomputeAll refreshes the current-period snapshot for every active
// profile. Stale reads are acceptable here; the settle path always
// recomputes under its lock.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return 0, err
	}

	period := ledger.PeriodOf(s.now())
	dateRange, err := ledger.RangeForPeriod(period)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, p := range profiles {
		if !p.Active {
			continue
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}
		txs, err := s.store.LoadTransactions(ctx, p.ID, ledger.TxFilter{Range: dateRange})
		if err != nil {
			return count, fmt.Errorf("load transactions for %s: %w", p.ID, err)
		}
		entry := ledger.Aggregate(p, txs, period, s.now())
		profileID := p.ID
		err = s.store.WithTx(ctx, func(st ledger.Store) error {
			if err := st.SaveLedgerEntry(ctx, entry); err != nil {
				return err
			}
			_, err := ledger.NewRecorder(st).Record(ctx, ledger.AuditEntry{
				Actor:      "system",
				Action:     ledger.AuditCalculate,
				Resource:   ledger.ResourceLedger,
				ResourceID: string(profileID),
				Detail:     fmt.Sprintf("periodic recompute for %s: balance %s", period, entry.Balance),
			})
			return err
		})
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// =============================================================================
// PROFILES (collaborator surface)
// =============================================================================

// ProfileInput describes a counterparty to register.
type ProfileInput struct {
	Name          string
	Direction     ledger.ProfileDirection
	Contact       string
	RatePerPoint  decimal.Decimal
	CommissionPct *decimal.Decimal
	Actor         string
	Origin        string
}

// CreateProfile registers a counterparty and audits the creation.
func (s *Service) CreateProfile(ctx context.Context, in ProfileInput) (ledger.Profile, error) {
	now := s.now().UTC()
	p := ledger.Profile{
		ID:            ledger.ProfileID(uuid.NewString()),
		Direction:     in.Direction,
		Name:          in.Name,
		Contact:       in.Contact,
		RatePerPoint:  in.RatePerPoint,
		CommissionPct: in.CommissionPct,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := p.Validate(); err != nil {
		return ledger.Profile{}, err
	}

	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		if err := st.SaveProfile(ctx, p); err != nil {
			return err
		}
		_, err := ledger.NewRecorder(st).Record(ctx, ledger.AuditEntry{
			Actor:      in.Actor,
			Action:     ledger.AuditCreate,
			Resource:   ledger.ResourceProfile,
			ResourceID: string(p.ID),
			Detail:     fmt.Sprintf("%s profile %q registered", p.Direction, p.Name),
			Origin:     in.Origin,
		})
		return err
	})
	if err != nil {
		return ledger.Profile{}, err
	}
	return p, nil
}

// GetProfile returns a profile by id.
func (s *Service) GetProfile(ctx context.Context, id ledger.ProfileID) (ledger.Profile, error) {
	return s.store.GetProfile(ctx, id)
}

// ListProfiles returns all registered profiles.
func (s *Service) ListProfiles(ctx context.Context) ([]ledger.Profile, error) {
	return s.store.ListProfiles(ctx)
}

// =============================================================================
// HELPERS
// =============================================================================

func resolveWindow(q SummaryQuery, now time.Time) (ledger.DateRange, ledger.Period, error) {
	if q.Period != "" {
		r, err := ledger.RangeForPeriod(q.Period)
		if err != nil {
			return ledger.DateRange{}, "", err
		}
		return r, q.Period, nil
	}
	if err := q.Range.Validate(); err != nil {
		return ledger.DateRange{}, "", err
	}
	// Free-form or unbounded ranges snapshot under the current period.
	return q.Range, ledger.PeriodOf(now), nil
}

func validateDirection(p ledger.Profile, d ledger.TxDirection) error {
	switch d {
	case ledger.TxTaken:
		if p.Direction != ledger.DirectionUplink {
			return &ledger.FieldError{Field: "direction", Message: "taken transactions require an uplink profile"}
		}
	case ledger.TxGiven:
		if p.Direction != ledger.DirectionDownline {
			return &ledger.FieldError{Field: "direction", Message: "given transactions require a downline profile"}
		}
	default:
		return &ledger.FieldError{Field: "direction", Message: "must be taken or given"}
	}
	return nil
}

func paginate(txs []ledger.Transaction, page, limit int) TransactionPage {
	page, limit = normalizePage(page, limit)
	total := len(txs)

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	data := make([]ledger.Transaction, end-start)
	copy(data, txs[start:end])

	return TransactionPage{
		Data:        data,
		CurrentPage: page,
		TotalPages:  totalPages(total, limit),
		TotalItems:  total,
	}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	return page, limit
}

func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
