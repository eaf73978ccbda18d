/*
resolver.go - Pure tier resolution

PURPOSE:
  Maps a preferred-relationship count plus the active threshold config to a
  perk bundle. Pure and idempotent: the same count and config always produce
  a byte-identical bundle.

RESOLUTION RULE:
  Levels are ordered by ascending MinCount; the resolver selects the HIGHEST
  level whose minimum the count satisfies. A count below every minimum (or a
  missing config) resolves to the zero-perk bundle so checkout and payout
  never block on configuration.

DOWNGRADES:
  A count decrease demotes the tier for FUTURE payouts only. Completed
  payouts keep their historical tier snapshot; see payout/ledger.go.
*/
package tiers

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ZeroPerks is the documented fallback when no tier applies or no config
// is active: base tier, no bonus, default payout window, no early access.
func ZeroPerks() PerkBundle {
	return PerkBundle{
		TierLevel:    "bronze",
		BonusPercent: decimal.Zero,
		PayoutHours:  DefaultPayoutHours,
	}
}

// Resolve selects the highest tier whose MinCount the preferred count
// satisfies and returns that tier's perks. A nil config or an unmatched
// count yields ZeroPerks.
func Resolve(preferredCount int, config *ThresholdConfig) PerkBundle {
	if config == nil || len(config.Levels) == 0 || preferredCount < 0 {
		return ZeroPerks()
	}

	levels := make([]TierLevel, len(config.Levels))
	copy(levels, config.Levels)
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].MinCount < levels[j].MinCount })

	var matched *TierLevel
	for i := range levels {
		if preferredCount >= levels[i].MinCount {
			matched = &levels[i]
		}
	}
	if matched == nil {
		return ZeroPerks()
	}

	bundle := PerkBundle{
		TierLevel:          matched.Tier,
		BonusPercent:       matched.BonusPercent,
		FasterPayouts:      matched.FasterPayouts,
		PayoutHours:        matched.PayoutHours,
		EarlyAccess:        matched.EarlyAccess,
		EarlyAccessMinutes: matched.EarlyAccessMinutes,
	}
	if bundle.PayoutHours <= 0 {
		bundle.PayoutHours = DefaultPayoutHours
	}
	return bundle
}

// DefaultLevels is the seed tier table used when an operator has not yet
// activated a version of their own.
func DefaultLevels() []TierLevel {
	return []TierLevel{
		{Tier: "bronze", MinCount: 0, BonusPercent: decimal.Zero, PayoutHours: 48},
		{Tier: "silver", MinCount: 3, BonusPercent: decimal.NewFromInt(2), PayoutHours: 48},
		{Tier: "gold", MinCount: 5, BonusPercent: decimal.NewFromInt(5), FasterPayouts: true, PayoutHours: 24},
		{Tier: "platinum", MinCount: 10, BonusPercent: decimal.NewFromInt(8), FasterPayouts: true, PayoutHours: 24, EarlyAccess: true, EarlyAccessMinutes: 30},
	}
}
