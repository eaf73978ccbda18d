/*
sqlite_test.go - Tests for the SQLite store

FOCUS:
  The concurrency guarantees the schema enforces: assignment uniqueness,
  compare-and-swap transitions, and atomic config version activation.
  Pure rule logic is tested in its own packages; these tests exercise the
  persistence boundary itself.
*/
package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/marketplace-engine/cancellation"
	"github.com/warp/marketplace-engine/engine"
	"github.com/warp/marketplace-engine/payout"
	"github.com/warp/marketplace-engine/pricing"
	"github.com/warp/marketplace-engine/store/sqlite"
	"github.com/warp/marketplace-engine/tiers"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testPayout(id, assignmentID string) payout.PendingPayout {
	earned := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)
	return payout.PendingPayout{
		ID:           id,
		WorkerID:     "w1",
		OwnerID:      "owner-1",
		AssignmentID: assignmentID,

		AmountCents: 4500,
		PayKind:     pricing.PayHourly,
		HoursWorked: decimal.NewFromFloat(1.5),
		Status:      payout.StatusPending,

		PayoutPriority:        payout.PriorityNormal,
		ExpectedPayoutHours:   48,
		PreferredBonusPercent: decimal.Zero,
		TierAtPayout:          "bronze",

		ScheduledPayoutDate: earned.Add(48 * time.Hour),
		EarnedAt:            earned,
		CreatedAt:           earned,
		UpdatedAt:           earned,
	}
}

// =============================================================================
// PAYOUT PERSISTENCE TESTS
// =============================================================================

func TestCreate_RoundTrip(t *testing.T) {
	// GIVEN: A payout with a full tier snapshot
	// WHEN: Inserting and reading back by id and by assignment
	// THEN: Every field survives the round trip

	store := newTestStore(t)
	ctx := context.Background()

	p := testPayout("p1", "a1")
	p.PreferredBonusApplied = true
	p.PreferredBonusPercent = decimal.NewFromInt(5)
	p.PreferredBonusCents = 75
	p.AmountCents = 4575
	p.TierAtPayout = "gold"
	p.PayoutPriority = payout.PriorityHigh
	require.NoError(t, store.Create(ctx, p))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, engine.Cents(4575), got.AmountCents)
	assert.True(t, got.PreferredBonusApplied)
	assert.True(t, got.PreferredBonusPercent.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, engine.Cents(75), got.PreferredBonusCents)
	assert.Equal(t, "gold", got.TierAtPayout)
	assert.Equal(t, payout.PriorityHigh, got.PayoutPriority)
	assert.True(t, got.HoursWorked.Equal(decimal.NewFromFloat(1.5)))
	assert.Equal(t, p.ScheduledPayoutDate, got.ScheduledPayoutDate)
	assert.Nil(t, got.PaidAt)

	byAssignment, err := store.GetByAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "p1", byAssignment.ID)
}

func TestCreate_DuplicateAssignment_UniqueIndex(t *testing.T) {
	// GIVEN: A payout stored for assignment a1
	// WHEN: A second payout for a1 arrives (different id, racing report)
	// THEN: The unique index rejects it with ErrDuplicateAssignment

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testPayout("p1", "a1")))

	err := store.Create(ctx, testPayout("p2", "a1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrDuplicateAssignment))

	// The first row is untouched.
	got, err := store.GetByAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
}

func TestGet_Missing_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, engine.ErrPayoutNotFound))

	_, err = store.GetByAssignment(context.Background(), "nope")
	assert.True(t, errors.Is(err, engine.ErrPayoutNotFound))
}

// =============================================================================
// COMPARE-AND-SWAP TRANSITION TESTS
// =============================================================================

func TestTransition_CAS(t *testing.T) {
	// GIVEN: A pending payout
	// WHEN: Two actors race the pending -> processing claim
	// THEN: The first wins; the second gets ErrConcurrentModification

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, testPayout("p1", "a1")))

	err := store.Transition(ctx, "p1", payout.StatusPending, payout.StatusProcessing, payout.TransitionMeta{})
	require.NoError(t, err)

	err = store.Transition(ctx, "p1", payout.StatusPending, payout.StatusProcessing, payout.TransitionMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrConcurrentModification))
}

func TestTransition_MissingRow_NotFound(t *testing.T) {
	// GIVEN: No such payout
	// WHEN: Transitioning
	// THEN: The CAS miss resolves to not-found, not a phantom conflict

	store := newTestStore(t)

	err := store.Transition(context.Background(), "nope", payout.StatusPending, payout.StatusProcessing, payout.TransitionMeta{})
	assert.True(t, errors.Is(err, engine.ErrPayoutNotFound))
}

func TestTransition_WritesTerminalFields(t *testing.T) {
	// GIVEN: A processing payout
	// WHEN: Completing with a transfer id and paid-at
	// THEN: The terminal fields persist; earlier fields are untouched

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, testPayout("p1", "a1")))
	require.NoError(t, store.Transition(ctx, "p1", payout.StatusPending, payout.StatusProcessing, payout.TransitionMeta{}))

	paidAt := time.Date(2026, time.April, 3, 9, 0, 0, 0, time.UTC)
	err := store.Transition(ctx, "p1", payout.StatusProcessing, payout.StatusCompleted, payout.TransitionMeta{
		TransferID: "tr_1",
		PaidAt:     &paidAt,
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, payout.StatusCompleted, got.Status)
	assert.Equal(t, "tr_1", got.TransferID)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, paidAt, *got.PaidAt)
	assert.Equal(t, engine.Cents(4500), got.AmountCents)
}

// =============================================================================
// QUERY TESTS
// =============================================================================

func TestQuery_FiltersAndOrdering(t *testing.T) {
	// GIVEN: A mix of payouts across workers, statuses, and priorities
	// WHEN: Querying with filters
	// THEN: Filters compose; high priority sorts before normal

	store := newTestStore(t)
	ctx := context.Background()

	early := testPayout("p1", "a1")
	require.NoError(t, store.Create(ctx, early))

	fast := testPayout("p2", "a2")
	fast.PayoutPriority = payout.PriorityHigh
	fast.ScheduledPayoutDate = early.ScheduledPayoutDate.Add(time.Hour)
	require.NoError(t, store.Create(ctx, fast))

	other := testPayout("p3", "a3")
	other.WorkerID = "w2"
	require.NoError(t, store.Create(ctx, other))

	mine, err := store.Query(ctx, payout.QueryFilter{WorkerID: "w1"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "p2", mine[0].ID, "high priority first despite later schedule")
	assert.Equal(t, "p1", mine[1].ID)

	due := early.ScheduledPayoutDate
	dueList, err := store.Query(ctx, payout.QueryFilter{Status: payout.StatusPending, DueOnOrBefore: &due})
	require.NoError(t, err)
	require.Len(t, dueList, 2) // p1 and p3 share the schedule; p2 is an hour later
	for _, p := range dueList {
		assert.False(t, p.ScheduledPayoutDate.After(due))
	}
}

func TestPendingTotals_OnlyPendingRows(t *testing.T) {
	// GIVEN: Pending and completed payouts for the same worker
	// WHEN: Summing pending totals
	// THEN: Completed rows are excluded; an empty set sums to zero

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testPayout("p1", "a1")))
	done := testPayout("p2", "a2")
	done.AmountCents = 9999
	require.NoError(t, store.Create(ctx, done))
	require.NoError(t, store.Transition(ctx, "p2", payout.StatusPending, payout.StatusProcessing, payout.TransitionMeta{}))
	paidAt := time.Now().UTC()
	require.NoError(t, store.Transition(ctx, "p2", payout.StatusProcessing, payout.StatusCompleted, payout.TransitionMeta{TransferID: "tr_1", PaidAt: &paidAt}))

	totals, err := store.PendingTotalsForWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Count)
	assert.Equal(t, engine.Cents(4500), totals.AmountCents)

	empty, err := store.PendingTotalsForWorker(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, payout.PendingTotals{}, empty)
}

// =============================================================================
// TIER CONFIG TESTS
// =============================================================================

func TestActivateConfig_VersionsAppendOnly(t *testing.T) {
	// GIVEN: Two activations
	// WHEN: Reading the active config and the history
	// THEN: Only the newest is active; both versions remain in history

	store := newTestStore(t)
	ctx := context.Background()

	v1, err := store.ActivateConfig(ctx, tiers.DefaultLevels())
	require.NoError(t, err)

	stricter := tiers.DefaultLevels()
	for i := range stricter {
		stricter[i].MinCount *= 2
	}
	v2, err := store.ActivateConfig(ctx, stricter)
	require.NoError(t, err)
	assert.Greater(t, v2.Version, v1.Version)

	active, err := store.ActiveConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, v2.Version, active.Version)
	require.Len(t, active.Levels, 4)
	assert.Equal(t, 20, active.Levels[3].MinCount)
	assert.True(t, active.Levels[3].BonusPercent.Equal(decimal.NewFromInt(8)))

	history, err := store.ConfigHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, v2.Version, history[0].Version)
	assert.True(t, history[0].Active)
	assert.False(t, history[1].Active)
}

func TestActiveConfig_NoneActivated(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ActiveConfig(context.Background())
	assert.True(t, errors.Is(err, engine.ErrNoActiveConfig))
}

// =============================================================================
// RELATIONSHIP TESTS
// =============================================================================

func TestRelationships_CountAndMembership(t *testing.T) {
	// GIVEN: A worker preferred at two locations
	// WHEN: Counting and checking membership
	// THEN: Distinct locations count once; duplicate adds are no-ops

	store := newTestStore(t)
	ctx := context.Background()

	changed, err := store.AddPreferred(ctx, "w1", "loc-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.AddPreferred(ctx, "w1", "loc-1")
	require.NoError(t, err)
	assert.False(t, changed, "duplicate add must not change the set")

	_, err = store.AddPreferred(ctx, "w1", "loc-2")
	require.NoError(t, err)

	count, err := store.PreferredCount(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	preferred, err := store.IsPreferred(ctx, "w1", "loc-1")
	require.NoError(t, err)
	assert.True(t, preferred)

	preferred, err = store.IsPreferred(ctx, "w1", "loc-9")
	require.NoError(t, err)
	assert.False(t, preferred)

	changed, err = store.RemovePreferred(ctx, "w1", "loc-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.RemovePreferred(ctx, "w1", "loc-1")
	require.NoError(t, err)
	assert.False(t, changed, "removing a missing binding must report no change")
}

// =============================================================================
// STATUS CACHE TESTS
// =============================================================================

func TestStatusCache_UpsertAndRead(t *testing.T) {
	// GIVEN: A saved status, then a demoting overwrite
	// WHEN: Reading back
	// THEN: The latest write wins; an unknown worker reads as nil

	store := newTestStore(t)
	ctx := context.Background()

	status := tiers.Status{
		WorkerID:           "w1",
		TierLevel:          "gold",
		PreferredHomeCount: 5,
		BonusPercent:       decimal.NewFromInt(5),
		FasterPayouts:      true,
		PayoutHours:        24,
		LastCalculatedAt:   time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveStatus(ctx, status))

	got, err := store.GetStatus(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "gold", got.TierLevel)
	assert.True(t, got.BonusPercent.Equal(decimal.NewFromInt(5)))

	status.TierLevel = "bronze"
	status.PreferredHomeCount = 1
	status.BonusPercent = decimal.Zero
	status.FasterPayouts = false
	status.PayoutHours = 48
	require.NoError(t, store.SaveStatus(ctx, status))

	got, err = store.GetStatus(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "bronze", got.TierLevel)

	missing, err := store.GetStatus(ctx, "w2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// BILL ENTRY TESTS
// =============================================================================

func TestBillEntries_PerUserOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"b2", "b1"} {
		require.NoError(t, store.AddBillEntry(ctx, cancellation.BillEntry{
			ID:            id,
			UserID:        "u1",
			AppointmentID: "appt-" + id,
			AmountCents:   2500,
			Reason:        "cancellation fee",
			CreatedAt:     base.Add(time.Duration(1-i) * time.Hour),
		}))
	}
	require.NoError(t, store.AddBillEntry(ctx, cancellation.BillEntry{
		ID: "b3", UserID: "u2", AppointmentID: "appt-x", AmountCents: 100,
		Reason: "cancellation fee", CreatedAt: base,
	}))

	entries, err := store.BillEntries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b1", entries[0].ID, "oldest first")
	assert.Equal(t, "b2", entries[1].ID)
}
