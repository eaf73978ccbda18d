/*
service.go - Tier status recomputation

PURPOSE:
  Keeps the derived per-worker Status cache in sync with preferred
  relationships. Any create/destroy of a preferred binding triggers a
  recompute: read the count, resolve against the active config, save.

GUARANTEES:
  - Idempotent: unchanged count + config produce an identical status
  - Downgrade-safe: a demotion affects future payouts only; completed
    payouts keep their historical snapshot
  - Config-missing tolerant: resolves to zero perks instead of failing
*/
package tiers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/marketplace-engine/engine"
)

// Service recomputes and serves worker tier statuses.
type Service struct {
	Configs       ConfigStore
	Relationships RelationshipStore
	Statuses      StatusStore

	// Now is swappable for tests. Defaults to time.Now.
	Now func() time.Time
}

func NewService(configs ConfigStore, relationships RelationshipStore, statuses StatusStore) *Service {
	return &Service{
		Configs:       configs,
		Relationships: relationships,
		Statuses:      statuses,
		Now:           time.Now,
	}
}

// Recompute re-derives the worker's tier status from their current
// preferred count and the active config, then saves the cache entry.
// Called on every relationship opt-in/opt-out.
func (s *Service) Recompute(ctx context.Context, workerID string) (*Status, error) {
	count, err := s.Relationships.PreferredCount(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count preferred relationships: %w", err)
	}

	bundle, err := s.ResolveForCount(ctx, count)
	if err != nil {
		return nil, err
	}

	status := Status{
		WorkerID:           workerID,
		TierLevel:          bundle.TierLevel,
		PreferredHomeCount: count,
		BonusPercent:       bundle.BonusPercent,
		FasterPayouts:      bundle.FasterPayouts,
		PayoutHours:        bundle.PayoutHours,
		EarlyAccess:        bundle.EarlyAccess,
		LastCalculatedAt:   s.Now(),
	}

	if err := s.Statuses.SaveStatus(ctx, status); err != nil {
		return nil, fmt.Errorf("failed to save tier status: %w", err)
	}
	return &status, nil
}

// ResolveForCount resolves a perk bundle against the active config,
// falling back to zero perks when no config version is active.
func (s *Service) ResolveForCount(ctx context.Context, count int) (PerkBundle, error) {
	config, err := s.Configs.ActiveConfig(ctx)
	if err != nil {
		if errors.Is(err, engine.ErrNoActiveConfig) {
			return Resolve(count, nil), nil
		}
		return PerkBundle{}, fmt.Errorf("failed to load active config: %w", err)
	}
	return Resolve(count, config), nil
}

// CurrentStatus returns the cached status, recomputing when no cache entry
// exists yet (e.g. a worker who never had a relationship change).
func (s *Service) CurrentStatus(ctx context.Context, workerID string) (*Status, error) {
	status, err := s.Statuses.GetStatus(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if status != nil {
		return status, nil
	}
	return s.Recompute(ctx, workerID)
}
