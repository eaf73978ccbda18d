/*
Package engine provides the shared core for the marketplace financial rules.

PURPOSE:
  This package contains the primitives every pricing decision is built from:
  integer-cent money, half-hour duration rounding, and percent conventions.
  Whether splitting a co-staffed job, carving a loyalty bonus out of the
  platform fee, or computing a partial refund, the same two rounding
  functions are used everywhere money or time is derived.

KEY CONCEPTS IN THIS FILE (money.go):
  - Cents: An amount of money in integer minor-currency units
  - RoundToCents: decimal -> Cents with round-half-up
  - RoundUpToHalfHour: duration rounding to the smallest billable increment
  - Percent conventions: literal percent (5 = 5%) vs 0..1 fraction (0.05)

DESIGN PRINCIPLES:
  1. Integer cents at rest: No float ever touches a stored amount
  2. Decimal in flight: Fractional math uses decimal.Decimal, never float64
  3. One rounding direction: Half-up for money, always up for billable time
  4. Documented multipliers: Every percent field states its convention

USAGE:
  pay := engine.RoundToCents(decimal.NewFromInt(int64(rate)).Mul(hours))
  adjusted := engine.RoundUpToHalfHour(base.Div(decimal.NewFromInt(3)))

SEE ALSO:
  - errors.go: Centralized error types
  - pricing/: Pay splitting built on these primitives
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CENTS - Money as integer minor-currency units
// =============================================================================

// Cents is a money amount in integer minor-currency units (e.g. US cents).
// All amounts that cross a storage or API boundary are Cents; fractional
// intermediate values live in decimal.Decimal only.
type Cents int64

func (c Cents) Decimal() decimal.Decimal { return decimal.NewFromInt(int64(c)) }
func (c Cents) IsZero() bool             { return c == 0 }
func (c Cents) IsNegative() bool         { return c < 0 }

// =============================================================================
// ROUNDING - The only two places time/money get rounded
// =============================================================================

var two = decimal.NewFromInt(2)

// RoundToCents converts a decimal cent amount to Cents using round-half-up.
// This is the single rounding point for all derived money: hourly pay,
// percentage pay, bonuses, refunds.
func RoundToCents(d decimal.Decimal) Cents {
	// decimal.Round uses half-away-from-zero, which is half-up for the
	// non-negative amounts this engine produces.
	return Cents(d.Round(0).IntPart())
}

// RoundUpToHalfHour rounds a duration in hours UP to the nearest half hour,
// the business's smallest billable increment. Splitting a job never rounds
// a worker's billable time down.
//
//	RoundUpToHalfHour(0.667) = 1.0
//	RoundUpToHalfHour(1.25)  = 1.5
//	RoundUpToHalfHour(1.5)   = 1.5
func RoundUpToHalfHour(hours decimal.Decimal) decimal.Decimal {
	return hours.Mul(two).Ceil().Div(two)
}

// =============================================================================
// PERCENT HELPERS
// =============================================================================
// Two conventions exist in the wild and must never be mixed within a field:
//   - Literal percent: 5 means 5%. Used by tier BonusPercent and the
//     Percentage pay-term rate.
//   - Fraction: 0.05 means 5%. Used by cancellation PartialRefundRate.

var hundred = decimal.NewFromInt(100)

// ApplyPercent applies a literal percent (5 = 5%) to a cent amount,
// rounding half-up.
func ApplyPercent(amount Cents, percent decimal.Decimal) Cents {
	return RoundToCents(amount.Decimal().Mul(percent).Div(hundred))
}

// ApplyFraction applies a 0..1 fraction (0.5 = 50%) to a cent amount,
// rounding half-up.
func ApplyFraction(amount Cents, fraction decimal.Decimal) Cents {
	return RoundToCents(amount.Decimal().Mul(fraction))
}
