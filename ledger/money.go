/*
money.go - Fixed-precision monetary value type

PURPOSE:
  Money is the single representation of currency amounts used by every
  calculation in the engine. It stores an integer count of minor units
  (cents), so summing already-rounded totals is exact integer arithmetic
  with no accumulated drift.

KEY DECISIONS:
  1. Integer minor units: float64 is never used for money. Rates and
     intermediate products use decimal.Decimal; the result is rounded to
     the minor unit exactly once, at transaction-total time.
  2. Round-half-to-even: banker's rounding keeps repeated aggregation
     stable (decimal.RoundBank).
  3. Value semantics: Money is a small immutable value, safe to copy.

USAGE:
  m, _ := ledger.ParseMoney("1575.00")
  total := m.Add(ledger.NewMoneyFromCents(2500))
  total.String()          // "1600.00"
  total.Format("$")       // "$1,600.00"

SEE ALSO:
  - calculator.go: The only place rounding to Money happens
  - aggregator.go: Sums Money values (exact, no re-rounding)
*/
package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// minorUnitPlaces is the number of fractional digits in the currency.
const minorUnitPlaces = 2

// =============================================================================
// MONEY - Integer minor-unit amount
// =============================================================================

// Money is a currency amount in minor units (cents).
// The zero value is a valid zero amount.
type Money struct {
	cents int64
}

// NewMoneyFromCents builds a Money from a raw minor-unit count.
func NewMoneyFromCents(cents int64) Money {
	return Money{cents: cents}
}

// NewMoneyFromDecimal rounds d to the minor unit using round-half-to-even
// and returns the resulting Money. This is the ONLY rounding step in the
// engine; callers must not round again.
func NewMoneyFromDecimal(d decimal.Decimal) Money {
	rounded := d.RoundBank(minorUnitPlaces)
	return Money{cents: rounded.Shift(minorUnitPlaces).IntPart()}
}

// ParseMoney parses a decimal string like "1575.00" into Money.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	if d.Exponent() < -minorUnitPlaces {
		return Money{}, fmt.Errorf("parse money %q: more than %d fractional digits", s, minorUnitPlaces)
	}
	return NewMoneyFromDecimal(d), nil
}

// MustParseMoney is ParseMoney for literals in tests and fixtures.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Arithmetic. All operations are exact integer math.
func (m Money) Add(o Money) Money { return Money{cents: m.cents + o.cents} }
func (m Money) Sub(o Money) Money { return Money{cents: m.cents - o.cents} }
func (m Money) Neg() Money        { return Money{cents: -m.cents} }

// Predicates and comparison.
func (m Money) IsZero() bool     { return m.cents == 0 }
func (m Money) IsNegative() bool { return m.cents < 0 }
func (m Money) IsPositive() bool { return m.cents > 0 }

// Cmp returns -1, 0 or +1 comparing m to o.
func (m Money) Cmp(o Money) int {
	switch {
	case m.cents < o.cents:
		return -1
	case m.cents > o.cents:
		return 1
	default:
		return 0
	}
}

// Cents returns the raw minor-unit count.
func (m Money) Cents() int64 { return m.cents }

// Decimal returns the amount as a decimal.Decimal (e.g. 1575.00).
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.cents, -minorUnitPlaces)
}

// String renders the amount with a fixed two-digit fraction: "1575.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(minorUnitPlaces)
}

// Format renders the amount with a currency symbol and thousands grouping,
// the way settlement messages display balances: "$1,575.00".
// Negative amounts keep the sign ahead of the symbol: "-$250.00".
func (m Money) Format(symbol string) string {
	s := m.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	dot := strings.IndexByte(s, '.')
	whole, frac := s[:dot], s[dot:]
	var b strings.Builder
	b.WriteString(sign)
	b.WriteString(symbol)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}

// MarshalJSON encodes Money as a JSON string ("1575.00") so clients never
// see float artifacts.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts either a quoted or bare decimal literal.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// =============================================================================
// RATE HELPERS
// =============================================================================

// ValidRate reports whether d is a usable rate-per-point: strictly positive
// with at most two fractional digits of currency precision.
func ValidRate(d decimal.Decimal) bool {
	if !d.IsPositive() {
		return false
	}
	return d.Equal(d.Truncate(minorUnitPlaces))
}

// MustParseDecimal parses a decimal literal, returning zero on failure.
// Intended for fixtures where the input is known-good.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
