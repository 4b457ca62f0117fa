package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/point-ledger/ledger"
)

func TestParsePeriod(t *testing.T) {
	p, err := ledger.ParsePeriod("2025-06")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.String() != "2025-06" {
		t.Errorf("period = %s, want 2025-06", p)
	}

	for _, bad := range []string{"2025", "2025-13", "06-2025", "2025-6", "garbage"} {
		if _, err := ledger.ParsePeriod(bad); !errors.Is(err, ledger.ErrInvalidPeriod) {
			t.Errorf("ParsePeriod(%q) error = %v, want ErrInvalidPeriod", bad, err)
		}
	}
}

func TestPeriod_BoundsAndContains(t *testing.T) {
	p := ledger.Period("2025-06")

	start, end, err := p.Bounds()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Day() != 1 || start.Month() != time.June {
		t.Errorf("start = %v, want June 1", start)
	}
	if end.Month() != time.July {
		t.Errorf("end = %v, want July 1 (exclusive)", end)
	}

	if !p.Contains(time.Date(2025, time.June, 30, 23, 59, 59, 0, time.UTC)) {
		t.Error("last instant of June must be inside the period")
	}
	if p.Contains(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("July 1 must be outside the period")
	}
	if p.Contains(time.Date(2025, time.May, 31, 23, 59, 59, 0, time.UTC)) {
		t.Error("May 31 must be outside the period")
	}
}

func TestPeriod_NextPreviousAcrossYearBoundary(t *testing.T) {
	dec := ledger.Period("2024-12")
	if dec.Next() != "2025-01" {
		t.Errorf("Next(2024-12) = %s, want 2025-01", dec.Next())
	}
	jan := ledger.Period("2025-01")
	if jan.Previous() != "2024-12" {
		t.Errorf("Previous(2025-01) = %s, want 2024-12", jan.Previous())
	}
}

func TestDateRange_Validate(t *testing.T) {
	from := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)

	if err := (ledger.DateRange{From: from, To: to}).Validate(); err != nil {
		t.Errorf("valid range rejected: %v", err)
	}
	if err := (ledger.DateRange{From: to, To: from}).Validate(); !errors.Is(err, ledger.ErrInvalidPeriod) {
		t.Errorf("inverted range error = %v, want ErrInvalidPeriod", err)
	}
	// Half-open and fully unbounded windows are fine.
	if err := (ledger.DateRange{From: from}).Validate(); err != nil {
		t.Errorf("open-ended range rejected: %v", err)
	}
	if err := (ledger.DateRange{}).Validate(); err != nil {
		t.Errorf("unbounded range rejected: %v", err)
	}
}

func TestRangeForPeriod_InclusiveBounds(t *testing.T) {
	r, err := ledger.RangeForPeriod("2025-06")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Contains(time.Date(2025, time.June, 30, 23, 59, 59, 0, time.UTC)) {
		t.Error("range must include the last instant of the month")
	}
	if r.Contains(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("range must exclude the first instant of the next month")
	}
}
