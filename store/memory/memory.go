// Package memory provides in-memory store implementations (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/marketplace-engine/cancellation"
	"github.com/warp/marketplace-engine/engine"
	"github.com/warp/marketplace-engine/payout"
	"github.com/warp/marketplace-engine/tiers"
)

// =============================================================================
// MEMORY STORE - Implements every persistence interface of the engine
// =============================================================================

type Store struct {
	mu sync.RWMutex

	payouts      map[string]payout.PendingPayout // by payout id
	byAssignment map[string]string               // assignment id -> payout id

	configs       []tiers.ThresholdConfig
	statuses      map[string]tiers.Status
	relationships map[relKey]bool

	bills []cancellation.BillEntry
}

type relKey struct {
	WorkerID   string
	LocationID string
}

func New() *Store {
	return &Store{
		payouts:       make(map[string]payout.PendingPayout),
		byAssignment:  make(map[string]string),
		statuses:      make(map[string]tiers.Status),
		relationships: make(map[relKey]bool),
	}
}

// =============================================================================
// PAYOUT STORE (payout.Store interface)
// =============================================================================

func (m *Store) Create(_ context.Context, p payout.PendingPayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byAssignment[p.AssignmentID]; exists {
		return engine.ErrDuplicateAssignment
	}
	m.payouts[p.ID] = p
	m.byAssignment[p.AssignmentID] = p.ID
	return nil
}

func (m *Store) Get(_ context.Context, id string) (*payout.PendingPayout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payouts[id]
	if !ok {
		return nil, engine.ErrPayoutNotFound
	}
	return &p, nil
}

func (m *Store) GetByAssignment(_ context.Context, assignmentID string) (*payout.PendingPayout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byAssignment[assignmentID]
	if !ok {
		return nil, engine.ErrPayoutNotFound
	}
	p := m.payouts[id]
	return &p, nil
}

// Transition applies the compare-and-swap under the store lock, mirroring
// the row-level UPDATE ... WHERE status = ? the SQL store issues.
func (m *Store) Transition(_ context.Context, id string, from, to payout.Status, meta payout.TransitionMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payouts[id]
	if !ok {
		return engine.ErrPayoutNotFound
	}
	if p.Status != from {
		return engine.ErrConcurrentModification
	}

	p.Status = to
	if meta.TransferID != "" {
		p.TransferID = meta.TransferID
	}
	if meta.FailureReason != "" {
		p.FailureReason = meta.FailureReason
	}
	if meta.PaidAt != nil {
		p.PaidAt = meta.PaidAt
	}
	p.UpdatedAt = time.Now()

	m.payouts[id] = p
	return nil
}

func (m *Store) Query(_ context.Context, filter payout.QueryFilter) ([]payout.PendingPayout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payout.PendingPayout
	for _, p := range m.payouts {
		if filter.WorkerID != "" && p.WorkerID != filter.WorkerID {
			continue
		}
		if filter.OwnerID != "" && p.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.DueOnOrBefore != nil && p.ScheduledPayoutDate.After(*filter.DueOnOrBefore) {
			continue
		}
		out = append(out, p)
	}

	// High priority first, then oldest scheduled date.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PayoutPriority != out[j].PayoutPriority {
			return out[i].PayoutPriority == payout.PriorityHigh
		}
		return out[i].ScheduledPayoutDate.Before(out[j].ScheduledPayoutDate)
	})
	return out, nil
}

func (m *Store) PendingTotalsForWorker(_ context.Context, workerID string) (payout.PendingTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var totals payout.PendingTotals
	for _, p := range m.payouts {
		if p.WorkerID == workerID && p.Status == payout.StatusPending {
			totals.Count++
			totals.AmountCents += p.AmountCents
		}
	}
	return totals, nil
}

func (m *Store) PendingTotalsForOwner(_ context.Context, ownerID string) (payout.PendingTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var totals payout.PendingTotals
	for _, p := range m.payouts {
		if p.OwnerID == ownerID && p.Status == payout.StatusPending {
			totals.Count++
			totals.AmountCents += p.AmountCents
		}
	}
	return totals, nil
}

// =============================================================================
// TIER CONFIG STORE (tiers.ConfigStore interface)
// =============================================================================

func (m *Store) ActiveConfig(_ context.Context) (*tiers.ThresholdConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.configs) - 1; i >= 0; i-- {
		if m.configs[i].Active {
			cfg := m.configs[i]
			return &cfg, nil
		}
	}
	return nil, engine.ErrNoActiveConfig
}

func (m *Store) ActivateConfig(_ context.Context, levels []tiers.TierLevel) (*tiers.ThresholdConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Deactivate prior version and append the new one in one critical
	// section - the in-memory equivalent of the SQL transaction.
	for i := range m.configs {
		m.configs[i].Active = false
	}

	cfg := tiers.ThresholdConfig{
		Version:     len(m.configs) + 1,
		Levels:      append([]tiers.TierLevel(nil), levels...),
		ActivatedAt: time.Now(),
		Active:      true,
	}
	m.configs = append(m.configs, cfg)
	return &cfg, nil
}

func (m *Store) ConfigHistory(_ context.Context) ([]tiers.ThresholdConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]tiers.ThresholdConfig, len(m.configs))
	copy(out, m.configs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// =============================================================================
// RELATIONSHIP STORE (tiers.RelationshipStore + tiers.RelationshipWriter)
// =============================================================================

func (m *Store) PreferredCount(_ context.Context, workerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for k := range m.relationships {
		if k.WorkerID == workerID {
			count++
		}
	}
	return count, nil
}

func (m *Store) IsPreferred(_ context.Context, workerID, locationID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.relationships[relKey{workerID, locationID}], nil
}

func (m *Store) AddPreferred(_ context.Context, workerID, locationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := relKey{workerID, locationID}
	if m.relationships[k] {
		return false, nil
	}
	m.relationships[k] = true
	return true, nil
}

func (m *Store) RemovePreferred(_ context.Context, workerID, locationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := relKey{workerID, locationID}
	if !m.relationships[k] {
		return false, nil
	}
	delete(m.relationships, k)
	return true, nil
}

// =============================================================================
// STATUS STORE (tiers.StatusStore interface)
// =============================================================================

func (m *Store) SaveStatus(_ context.Context, status tiers.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[status.WorkerID] = status
	return nil
}

func (m *Store) GetStatus(_ context.Context, workerID string) (*tiers.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[workerID]
	if !ok {
		return nil, nil
	}
	return &status, nil
}

// =============================================================================
// BILL STORE (cancellation.BillStore interface)
// =============================================================================

func (m *Store) AddBillEntry(_ context.Context, entry cancellation.BillEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bills = append(m.bills, entry)
	return nil
}

// BillEntries returns a user's outstanding bill entries, oldest first.
func (m *Store) BillEntries(_ context.Context, userID string) ([]cancellation.BillEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []cancellation.BillEntry
	for _, e := range m.bills {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
