/*
handlers.go - HTTP handlers for the ledger engine

PURPOSE:
  Exposes the ledger query/command boundary over REST. Handlers parse
  and validate HTTP input, delegate to the service layer, and map engine
  errors onto status codes. No financial logic lives here.

ENDPOINTS:
  Profiles:
    GET    /api/profiles                      List profiles
    POST   /api/profiles                      Register profile
    GET    /api/profiles/{id}                 Get profile
    GET    /api/profiles/{id}/ledger          Ledger summary + paginated rows
    POST   /api/profiles/{id}/transactions    Record transaction
    POST   /api/profiles/{id}/settlements     Create settlement

  Transactions:
    POST   /api/transactions/{id}/reverse     Offsetting reversal

  Settlements:
    GET    /api/settlements                   List (optionally by profile)
    GET    /api/settlements/{id}              Get settlement
    POST   /api/settlements/{id}/sent         Mark sent
    POST   /api/settlements/{id}/failed       Mark failed
    POST   /api/settlements/{id}/retry        Failed -> pending

  Ledger:
    GET    /api/ledger/overview               Global net position

  Audit:
    GET    /api/audit                         Paginated audit trail

ERROR HANDLING:
  400 validation, 404 not found, 409 conflict/invalid transition
  (concurrency conflicts are retryable and reported as such),
  500 persistence - without leaking storage internals.

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Router and middleware
  - service/service.go: The logic these handlers call
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/point-ledger/ledger"
	"github.com/warp/point-ledger/service"
)

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	Svc *service.Service
}

// NewHandler creates a handler over the service.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{Svc: svc}
}

// actor identifies the caller for audit purposes. There is no auth layer
// (out of scope); the header is a convention for operator tooling.
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "operator"
}

// =============================================================================
// PROFILE HANDLERS
// =============================================================================

// ListProfiles returns all registered profiles.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.Svc.ListProfiles(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list profiles", err)
		return
	}
	dtos := make([]ProfileDTO, len(profiles))
	for i, p := range profiles {
		dtos[i] = toProfileDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProfile registers a counterparty.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rate, err := decimal.NewFromString(req.RatePerPoint)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate_per_point", err)
		return
	}
	var commission *decimal.Decimal
	if req.CommissionPct != nil {
		c, err := decimal.NewFromString(*req.CommissionPct)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid commission_pct", err)
			return
		}
		commission = &c
	}

	profile, err := h.Svc.CreateProfile(r.Context(), service.ProfileInput{
		Name:          req.Name,
		Direction:     ledger.ProfileDirection(req.Direction),
		Contact:       req.Contact,
		RatePerPoint:  rate,
		CommissionPct: commission,
		Actor:         actor(r),
		Origin:        r.RemoteAddr,
	})
	if err != nil {
		writeDomainError(w, "Failed to create profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileDTO(profile))
}

// GetProfile returns a single profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Svc.GetProfile(r.Context(), ledger.ProfileID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(profile))
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// GetLedger returns a profile's aggregated ledger plus one page of the
// transactions backing it. Totals cover the entire filtered set
// regardless of the page requested.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	profileID := ledger.ProfileID(chi.URLParam(r, "id"))

	q := service.SummaryQuery{
		Page:  queryInt(r, "page", 1),
		Limit: queryInt(r, "limit", service.DefaultPageLimit),
	}
	if p := r.URL.Query().Get("period"); p != "" {
		period, err := ledger.ParsePeriod(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
			return
		}
		q.Period = period
	} else {
		var err error
		if q.Range, err = queryRange(r); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date bounds (use YYYY-MM-DD)", err)
			return
		}
	}

	summary, err := h.Svc.Summary(r.Context(), profileID, q)
	if err != nil {
		writeDomainError(w, "Failed to compute ledger", err)
		return
	}
	ledgerRecomputes.Inc()
	writeJSON(w, http.StatusOK, toLedgerSummaryDTO(summary))
}

// GetOverview returns the operator-wide net position.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	pos, err := h.Svc.Overview(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to compute overview", err)
		return
	}
	writeJSON(w, http.StatusOK, OverviewDTO{
		TotalTakenAmount: pos.TotalTaken,
		TotalGivenAmount: pos.TotalGiven,
		NetPosition:      pos.NetPosition,
		ProfileCount:     pos.ProfileCount,
		CalculatedAt:     pos.CalculatedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// RecordTransaction records a point transfer. The total amount is always
// engine-computed; any client-supplied total is ignored by construction.
func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	profileID := ledger.ProfileID(chi.URLParam(r, "id"))

	var req RecordTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var date time.Time
	if req.Date != "" {
		var err error
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	tx, err := h.Svc.RecordTransaction(r.Context(), service.TransactionInput{
		ProfileID: profileID,
		Direction: ledger.TxDirection(req.Direction),
		Date:      date,
		Points:    req.Points,
		Notes:     req.Notes,
		Actor:     actor(r),
		Origin:    r.RemoteAddr,
	})
	if err != nil {
		writeDomainError(w, "Failed to record transaction", err)
		return
	}
	transactionsRecorded.WithLabelValues(string(tx.Direction)).Inc()
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// ReverseTransaction appends an offsetting transaction.
func (h *Handler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))
	reversal, err := h.Svc.ReverseTransaction(r.Context(), id, actor(r), r.RemoteAddr)
	if err != nil {
		writeDomainError(w, "Failed to reverse transaction", err)
		return
	}
	transactionsReversed.Inc()
	writeJSON(w, http.StatusCreated, toTransactionDTO(reversal))
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// CreateSettlement recomputes the period ledger and creates a pending
// settlement with the rendered message.
func (h *Handler) CreateSettlement(w http.ResponseWriter, r *http.Request) {
	profileID := ledger.ProfileID(chi.URLParam(r, "id"))

	var req CreateSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := ledger.ParsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
		return
	}

	settlement, err := h.Svc.CreateSettlement(r.Context(), profileID, period, req.Template, actor(r), r.RemoteAddr)
	if err != nil {
		writeDomainError(w, "Failed to create settlement", err)
		return
	}
	settlementTransitions.WithLabelValues(string(ledger.SettlementPending)).Inc()
	writeJSON(w, http.StatusCreated, toSettlementDTO(settlement))
}

// ListSettlements lists settlements, optionally scoped to a profile.
func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	profileID := ledger.ProfileID(r.URL.Query().Get("profile_id"))
	settlements, err := h.Svc.ListSettlements(r.Context(), profileID)
	if err != nil {
		writeDomainError(w, "Failed to list settlements", err)
		return
	}
	dtos := make([]SettlementDTO, len(settlements))
	for i, s := range settlements {
		dtos[i] = toSettlementDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSettlement returns a settlement by id.
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	s, err := h.Svc.GetSettlement(r.Context(), ledger.SettlementID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// MarkSettlementSent transitions a settlement to sent.
func (h *Handler) MarkSettlementSent(w http.ResponseWriter, r *http.Request) {
	id := ledger.SettlementID(chi.URLParam(r, "id"))
	s, err := h.Svc.MarkSettlementSent(r.Context(), id, actor(r), r.RemoteAddr)
	if err != nil {
		writeDomainError(w, "Failed to mark settlement sent", err)
		return
	}
	settlementTransitions.WithLabelValues(string(ledger.SettlementSent)).Inc()
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// MarkSettlementFailed records a delivery failure.
func (h *Handler) MarkSettlementFailed(w http.ResponseWriter, r *http.Request) {
	id := ledger.SettlementID(chi.URLParam(r, "id"))

	var req FailSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, err := h.Svc.MarkSettlementFailed(r.Context(), id, req.Reason, actor(r), r.RemoteAddr)
	if err != nil {
		writeDomainError(w, "Failed to mark settlement failed", err)
		return
	}
	settlementTransitions.WithLabelValues(string(ledger.SettlementFailed)).Inc()
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// RetrySettlement moves a failed settlement back to pending.
func (h *Handler) RetrySettlement(w http.ResponseWriter, r *http.Request) {
	id := ledger.SettlementID(chi.URLParam(r, "id"))
	s, err := h.Svc.RetrySettlement(r.Context(), id, actor(r), r.RemoteAddr)
	if err != nil {
		writeDomainError(w, "Failed to retry settlement", err)
		return
	}
	settlementTransitions.WithLabelValues(string(ledger.SettlementPending)).Inc()
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// GetAuditTrail returns the audit log, newest first, paginated.
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	f := ledger.AuditFilter{
		Actor:  r.URL.Query().Get("actor"),
		Action: ledger.AuditAction(r.URL.Query().Get("action")),
	}
	var err error
	if f.From, f.To, err = queryDates(r); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date bounds (use YYYY-MM-DD)", err)
		return
	}

	page, err := h.Svc.AuditTrail(r.Context(), f,
		queryInt(r, "page", 1), queryInt(r, "limit", service.DefaultPageLimit))
	if err != nil {
		writeDomainError(w, "Failed to query audit log", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(page.Data))
	for i, e := range page.Data {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, AuditPageDTO{
		Data:        dtos,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
		TotalItems:  page.TotalItems,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	requestErrors.WithLabelValues(strconv.Itoa(status)).Inc()
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusRequestTimeout, message, nil)
	default:
		// Persistence errors are transient to the caller; internals stay
		// out of the response.
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func queryDates(r *http.Request) (from, to time.Time, err error) {
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse("2006-01-02", v); err != nil {
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse("2006-01-02", v); err != nil {
			return
		}
		// Inclusive end of day.
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	return
}

func queryRange(r *http.Request) (ledger.DateRange, error) {
	from, to, err := queryDates(r)
	if err != nil {
		return ledger.DateRange{}, err
	}
	dr := ledger.DateRange{From: from, To: to}
	return dr, dr.Validate()
}
