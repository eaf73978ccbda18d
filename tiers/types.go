/*
Package tiers resolves loyalty tiers and the perks they unlock.

PURPOSE:
  Workers accumulate preferred relationships (explicit worker<->client-location
  bindings). Crossing operator-configured thresholds unlocks a named tier
  (bronze/silver/gold/platinum) with a perk bundle: bonus pay carved from the
  platform fee, faster payouts, and early visibility of newly published jobs.

KEY CONCEPTS IN THIS FILE (types.go):
  - ThresholdConfig: Versioned, operator-controlled tier table
  - TierLevel: One row of the table (min count + perks)
  - PerkBundle: Resolved perks for a specific worker
  - Status: Derived per-worker cache, recomputed on relationship changes

CONFIG VERSIONING:
  Exactly one ThresholdConfig version is active at a time. Updates insert a
  new version and deactivate the prior one in a single transaction - never
  in-place edits. The version history is an append-only audit trail.

PERK INDEPENDENCE:
  No tier boundary is hard-coded. An operator can disable a single perk
  (e.g. gold fasterPayouts=false) without touching boundaries.

SEE ALSO:
  - resolver.go: count + active config -> perk bundle
  - earlyaccess.go: Time-windowed job visibility
  - service.go: Recompute on relationship change
*/
package tiers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// THRESHOLD CONFIG - Versioned operator-controlled tier table
// =============================================================================

// ThresholdConfig is one version of the tier table. Immutable once stored.
type ThresholdConfig struct {
	Version     int
	Levels      []TierLevel // maintained in ascending MinCount order
	ActivatedAt time.Time
	Active      bool
}

// TierLevel is one row of the tier table.
type TierLevel struct {
	Tier     string // "bronze", "silver", "gold", "platinum"
	MinCount int    // preferred relationships needed to unlock

	// BonusPercent is a literal percent (5 = 5%) of the platform fee on a
	// job, granted when the worker holds preferred status at its location.
	BonusPercent decimal.Decimal

	FasterPayouts bool
	PayoutHours   int // expected hours to payout; 0 means the 48h default

	EarlyAccess        bool
	EarlyAccessMinutes int
}

// =============================================================================
// PERK BUNDLE - Resolution output
// =============================================================================

// PerkBundle is the resolved perk set for a worker at a point in time.
type PerkBundle struct {
	TierLevel          string
	BonusPercent       decimal.Decimal
	FasterPayouts      bool
	PayoutHours        int
	EarlyAccess        bool
	EarlyAccessMinutes int
}

// DefaultPayoutHours applies when a tier config omits payout timing.
const DefaultPayoutHours = 48

// =============================================================================
// STATUS - Derived per-worker cache
// =============================================================================

// Status caches a worker's resolved tier. Always re-derivable from the
// preferred count and the active config; recomputed on every relationship
// change. Historical payouts snapshot their own copy and are never touched
// by a recompute.
type Status struct {
	WorkerID           string
	TierLevel          string
	PreferredHomeCount int
	BonusPercent       decimal.Decimal
	FasterPayouts      bool
	PayoutHours        int
	EarlyAccess        bool
	LastCalculatedAt   time.Time
}

// =============================================================================
// STORE INTERFACES - Implemented by store/sqlite and store/memory
// =============================================================================

// ConfigStore persists versioned tier tables. Append-only: ActivateConfig
// inserts a new version and deactivates the prior one atomically.
type ConfigStore interface {
	// ActiveConfig returns the currently active version, or
	// engine.ErrNoActiveConfig when none exists.
	ActiveConfig(ctx context.Context) (*ThresholdConfig, error)

	// ActivateConfig stores levels as a new version, deactivates the
	// previous active version in the same transaction, and returns the
	// stored config.
	ActivateConfig(ctx context.Context, levels []TierLevel) (*ThresholdConfig, error)

	// ConfigHistory returns all versions, newest first.
	ConfigHistory(ctx context.Context) ([]ThresholdConfig, error)
}

// RelationshipStore is the preferred-relationship bookkeeping boundary.
// The tier engine reads counts and location membership; opt-in/opt-out
// writes are owned by the relationship collaborator.
type RelationshipStore interface {
	// PreferredCount returns the number of distinct client locations the
	// worker holds preferred status with.
	PreferredCount(ctx context.Context, workerID string) (int, error)

	// IsPreferred reports whether the worker holds preferred status at a
	// specific location. Gates the payout bonus.
	IsPreferred(ctx context.Context, workerID, locationID string) (bool, error)
}

// RelationshipWriter mutates preferred bindings. Writes are owned by the
// relationship-bookkeeping side; the tier engine only needs them so that
// opt-in/opt-out can trigger a recompute. Both return whether the binding
// set actually changed (false on duplicate add / missing remove).
type RelationshipWriter interface {
	AddPreferred(ctx context.Context, workerID, locationID string) (bool, error)
	RemovePreferred(ctx context.Context, workerID, locationID string) (bool, error)
}

// StatusStore caches derived tier statuses.
type StatusStore interface {
	SaveStatus(ctx context.Context, status Status) error
	GetStatus(ctx context.Context, workerID string) (*Status, error)
}
