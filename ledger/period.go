package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Date-range bucket for ledger and settlement purposes
// =============================================================================

// Period is a month key like "2025-06". Transactions are bucketed into
// periods for ledger snapshots and settlements. The key form keeps
// (profile, period) uniqueness checks a plain string comparison.
type Period string

const periodLayout = "2006-01"

// PeriodOf returns the period containing the given date.
func PeriodOf(t time.Time) Period {
	return Period(t.UTC().Format(periodLayout))
}

// CurrentPeriod returns the period containing now.
func CurrentPeriod() Period {
	return PeriodOf(time.Now())
}

// ParsePeriod validates a period key.
func ParsePeriod(s string) (Period, error) {
	if _, err := time.Parse(periodLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q is not a YYYY-MM key", ErrInvalidPeriod, s)
	}
	return Period(s), nil
}

// Bounds returns the inclusive start and exclusive end of the period.
func (p Period) Bounds() (start, end time.Time, err error) {
	start, err = time.Parse(periodLayout, string(p))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	start, end, err := p.Bounds()
	if err != nil {
		return false
	}
	t = t.UTC()
	return !t.Before(start) && t.Before(end)
}

// Next returns the following period.
func (p Period) Next() Period {
	start, _, err := p.Bounds()
	if err != nil {
		return p
	}
	return PeriodOf(start.AddDate(0, 1, 0))
}

// Previous returns the preceding period.
func (p Period) Previous() Period {
	start, _, err := p.Bounds()
	if err != nil {
		return p
	}
	return PeriodOf(start.AddDate(0, -1, 0))
}

func (p Period) String() string { return string(p) }

// =============================================================================
// DATE RANGE - Optional query window for aggregation
// =============================================================================

// DateRange bounds a transaction query. Zero fields mean unbounded.
type DateRange struct {
	From time.Time // inclusive
	To   time.Time // inclusive
}

// Validate rejects ranges that end before they start.
func (r DateRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return fmt.Errorf("%w: end before start", ErrInvalidPeriod)
	}
	return nil
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// IsZero reports whether the range is unbounded on both sides.
func (r DateRange) IsZero() bool { return r.From.IsZero() && r.To.IsZero() }

// RangeForPeriod converts a period key into the equivalent DateRange.
func RangeForPeriod(p Period) (DateRange, error) {
	start, end, err := p.Bounds()
	if err != nil {
		return DateRange{}, err
	}
	// End is exclusive in Bounds; the range is inclusive, so step back.
	return DateRange{From: start, To: end.Add(-time.Nanosecond)}, nil
}
