/*
earlyaccess.go - Time-windowed job visibility gate

PURPOSE:
  Newly published appointments can carry an early-access window during which
  only top-tier workers see them. The gate is a stateless filter re-evaluated
  per query - visibility flips automatically when the window lapses, with no
  cache to invalidate.

VISIBILITY RULE:
  visible = window unset
         OR now >= window end
         OR requester holds the early-access perk
*/
package tiers

import "time"

// EarlyAccessUntil computes the appointment's early-access window end:
// publish time + the active config's EarlyAccessMinutes. Returns nil when
// early access is disabled for the top tier, meaning the appointment is
// visible to everyone immediately.
func EarlyAccessUntil(publishedAt time.Time, config *ThresholdConfig) *time.Time {
	if config == nil {
		return nil
	}
	top := topLevel(config)
	if top == nil || !top.EarlyAccess || top.EarlyAccessMinutes <= 0 {
		return nil
	}
	until := publishedAt.Add(time.Duration(top.EarlyAccessMinutes) * time.Minute)
	return &until
}

// IsVisible reports whether an appointment with the given early-access
// window end is visible to a requester at time now.
func IsVisible(earlyAccessUntil *time.Time, requesterHasEarlyAccess bool, now time.Time) bool {
	if earlyAccessUntil == nil {
		return true
	}
	if !now.Before(*earlyAccessUntil) {
		return true
	}
	return requesterHasEarlyAccess
}

func topLevel(config *ThresholdConfig) *TierLevel {
	var top *TierLevel
	for i := range config.Levels {
		if top == nil || config.Levels[i].MinCount > top.MinCount {
			top = &config.Levels[i]
		}
	}
	return top
}
