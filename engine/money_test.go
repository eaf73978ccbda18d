/*
money_test.go - Tests for the two rounding points of the engine

CORE DESIGN:
- RoundToCents is half-up, the single rounding point for derived money
- RoundUpToHalfHour only rounds up; billable time is never rounded down
*/
package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/marketplace-engine/engine"
)

func TestRoundToCents_HalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want engine.Cents
	}{
		{"0", 0},
		{"2998.4", 2998},
		{"2998.5", 2999},
		{"2998.6", 2999},
		{"74.999", 75},
		{"75.0", 75},
	}
	for _, tc := range cases {
		d, err := decimal.NewFromString(tc.in)
		assert.NoError(t, err)
		assert.Equal(t, tc.want, engine.RoundToCents(d), "in=%s", tc.in)
	}
}

func TestRoundUpToHalfHour(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0.1, "0.5"},
		{0.5, "0.5"},
		{0.667, "1"},
		{1.0, "1"},
		{1.01, "1.5"},
		{1.25, "1.5"},
		{1.5, "1.5"},
		{2.75, "3"},
	}
	for _, tc := range cases {
		got := engine.RoundUpToHalfHour(decimal.NewFromFloat(tc.in))
		want, _ := decimal.NewFromString(tc.want)
		assert.True(t, got.Equal(want), "in=%v got=%s want=%s", tc.in, got, want)
	}
}

func TestApplyPercent_LiteralConvention(t *testing.T) {
	// GIVEN: A 1500-cent platform fee and a 5 (= 5%) bonus percent
	// WHEN: Applying
	// THEN: 75 cents; the percent is literal, never a fraction

	got := engine.ApplyPercent(1500, decimal.NewFromInt(5))
	assert.Equal(t, engine.Cents(75), got)

	// Odd base exercises the half-up rounding: 999 x 5% = 49.95 -> 50.
	assert.Equal(t, engine.Cents(50), engine.ApplyPercent(999, decimal.NewFromInt(5)))
}

func TestApplyFraction_FractionConvention(t *testing.T) {
	// GIVEN: A 9999-cent price and a 0.5 refund fraction
	// WHEN: Applying
	// THEN: 5000 cents after half-up rounding

	got := engine.ApplyFraction(9999, decimal.NewFromFloat(0.5))
	assert.Equal(t, engine.Cents(5000), got)
}

func TestCents_Predicates(t *testing.T) {
	assert.True(t, engine.Cents(0).IsZero())
	assert.False(t, engine.Cents(1).IsZero())
	assert.True(t, engine.Cents(-1).IsNegative())
	assert.False(t, engine.Cents(1).IsNegative())
	assert.True(t, engine.Cents(250).Decimal().Equal(decimal.NewFromInt(250)))
}
