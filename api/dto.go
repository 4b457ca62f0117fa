/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  JSON shapes exchanged with clients. Money fields serialize as fixed
  two-decimal strings (see ledger.Money.MarshalJSON); totals are never
  floats on the wire.

SEE ALSO:
  - handlers.go: Uses these DTOs
*/
package api

import (
	"time"

	"github.com/warp/point-ledger/ledger"
	"github.com/warp/point-ledger/service"
)

// =============================================================================
// REQUESTS
// =============================================================================

type CreateProfileRequest struct {
	Name          string  `json:"name"`
	Direction     string  `json:"direction"`
	Contact       string  `json:"contact,omitempty"`
	RatePerPoint  string  `json:"rate_per_point"`
	CommissionPct *string `json:"commission_pct,omitempty"`
}

type RecordTransactionRequest struct {
	Direction string `json:"direction"`
	Date      string `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
	Points    int64  `json:"points"`
	Notes     string `json:"notes,omitempty"`
}

type CreateSettlementRequest struct {
	Period   string `json:"period"` // YYYY-MM
	Template string `json:"template,omitempty"`
}

type FailSettlementRequest struct {
	Reason string `json:"reason"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type ProfileDTO struct {
	ID            string  `json:"id"`
	Direction     string  `json:"direction"`
	Name          string  `json:"name"`
	Contact       string  `json:"contact,omitempty"`
	RatePerPoint  string  `json:"rate_per_point"`
	CommissionPct *string `json:"commission_pct,omitempty"`
	Active        bool    `json:"active"`
	CreatedAt     string  `json:"created_at"`
}

type TransactionDTO struct {
	ID            string       `json:"id"`
	ProfileID     string       `json:"profile_id"`
	Direction     string       `json:"direction"`
	Date          string       `json:"date"`
	Points        int64        `json:"points"`
	RatePerPoint  string       `json:"rate_per_point"`
	CommissionPct *string      `json:"commission_pct,omitempty"`
	TotalAmount   ledger.Money `json:"total_amount"`
	Notes         string       `json:"notes,omitempty"`
	ReversalOf    string       `json:"reversal_of,omitempty"`
	CreatedAt     string       `json:"created_at"`
}

type TransactionListDTO struct {
	Data        []TransactionDTO `json:"data"`
	CurrentPage int              `json:"currentPage"`
	TotalPages  int              `json:"totalPages"`
	TotalItems  int              `json:"totalItems"`
}

type LedgerSummaryDTO struct {
	ProfileID          string             `json:"profile_id"`
	Period             string             `json:"period"`
	TotalTakenAmount   ledger.Money       `json:"totalTakenAmount"`
	TotalGivenAmount   ledger.Money       `json:"totalGivenAmount"`
	OutstandingBalance ledger.Money       `json:"outstandingBalance"`
	Balance            ledger.Money       `json:"balance"`
	NetPosition        ledger.Money       `json:"netPosition"`
	TotalPoints        int64              `json:"totalPoints"`
	AverageRate        string             `json:"averageRate"`
	CommissionTotal    ledger.Money       `json:"commissionTotal"`
	Status             string             `json:"status"`
	CalculatedAt       string             `json:"calculatedAt"`
	TransactionList    TransactionListDTO `json:"transactionList"`
}

type OverviewDTO struct {
	TotalTakenAmount ledger.Money `json:"totalTakenAmount"`
	TotalGivenAmount ledger.Money `json:"totalGivenAmount"`
	NetPosition      ledger.Money `json:"netPosition"`
	ProfileCount     int          `json:"profileCount"`
	CalculatedAt     string       `json:"calculatedAt"`
}

type SettlementDTO struct {
	ID            string       `json:"id"`
	ProfileID     string       `json:"profile_id"`
	Period        string       `json:"period"`
	Amount        ledger.Money `json:"amount"`
	Message       string       `json:"message"`
	Status        string       `json:"status"`
	FailureReason string       `json:"failure_reason,omitempty"`
	SentAt        *string      `json:"sent_at,omitempty"`
	CreatedAt     string       `json:"created_at"`
}

type AuditEntryDTO struct {
	ID         string `json:"id"`
	Actor      string `json:"actor"`
	Action     string `json:"action"`
	Resource   string `json:"resource"`
	ResourceID string `json:"resource_id,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Origin     string `json:"origin,omitempty"`
	Timestamp  string `json:"timestamp"`
}

type AuditPageDTO struct {
	Data        []AuditEntryDTO `json:"data"`
	CurrentPage int             `json:"currentPage"`
	TotalPages  int             `json:"totalPages"`
	TotalItems  int             `json:"totalItems"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toProfileDTO(p ledger.Profile) ProfileDTO {
	dto := ProfileDTO{
		ID:           string(p.ID),
		Direction:    string(p.Direction),
		Name:         p.Name,
		Contact:      p.Contact,
		RatePerPoint: p.RatePerPoint.String(),
		Active:       p.Active,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
	if p.CommissionPct != nil {
		s := p.CommissionPct.String()
		dto.CommissionPct = &s
	}
	return dto
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:           string(tx.ID),
		ProfileID:    string(tx.ProfileID),
		Direction:    string(tx.Direction),
		Date:         tx.Date.Format("2006-01-02"),
		Points:       tx.Points,
		RatePerPoint: tx.RatePerPoint.String(),
		TotalAmount:  tx.TotalAmount,
		Notes:        tx.Notes,
		ReversalOf:   string(tx.ReversalOf),
		CreatedAt:    tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.CommissionPct != nil {
		s := tx.CommissionPct.String()
		dto.CommissionPct = &s
	}
	return dto
}

func toTransactionListDTO(page service.TransactionPage) TransactionListDTO {
	data := make([]TransactionDTO, len(page.Data))
	for i, tx := range page.Data {
		data[i] = toTransactionDTO(tx)
	}
	return TransactionListDTO{
		Data:        data,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
		TotalItems:  page.TotalItems,
	}
}

func toLedgerSummaryDTO(s *service.LedgerSummary) LedgerSummaryDTO {
	e := s.Entry
	return LedgerSummaryDTO{
		ProfileID:          string(e.ProfileID),
		Period:             e.Period.String(),
		TotalTakenAmount:   e.TotalTaken,
		TotalGivenAmount:   e.TotalGiven,
		OutstandingBalance: e.Outstanding,
		Balance:            e.Balance,
		NetPosition:        e.NetPosition,
		TotalPoints:        e.TotalPoints,
		AverageRate:        e.AverageRate.String(),
		CommissionTotal:    e.CommissionTotal,
		Status:             string(s.Status),
		CalculatedAt:       e.CalculatedAt.Format(time.RFC3339),
		TransactionList:    toTransactionListDTO(s.Transactions),
	}
}

func toSettlementDTO(s ledger.Settlement) SettlementDTO {
	dto := SettlementDTO{
		ID:            string(s.ID),
		ProfileID:     string(s.ProfileID),
		Period:        s.Period.String(),
		Amount:        s.Amount,
		Message:       s.Message,
		Status:        string(s.Status),
		FailureReason: s.FailureReason,
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
	}
	if s.SentAt != nil {
		t := s.SentAt.Format(time.RFC3339)
		dto.SentAt = &t
	}
	return dto
}

func toAuditEntryDTO(e ledger.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:         e.ID,
		Actor:      e.Actor,
		Action:     string(e.Action),
		Resource:   string(e.Resource),
		ResourceID: e.ResourceID,
		Detail:     e.Detail,
		Origin:     e.Origin,
		Timestamp:  e.Timestamp.Format(time.RFC3339),
	}
}
