/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements every persistence interface of the rules engine (payout.Store,
  tiers.ConfigStore, tiers.RelationshipStore/Writer, tiers.StatusStore,
  cancellation.BillStore) using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

CONCURRENCY GUARANTEES ENFORCED HERE:
  - At-most-one payout per assignment: UNIQUE index on assignment_id.
    Racing completion reports lose with ErrDuplicateAssignment; no second
    row is ever written.
  - Compare-and-swap transitions: UPDATE ... WHERE id = ? AND status = ?.
    Zero rows affected means either the row vanished or a concurrent actor
    already moved it; the two cases are distinguished with a follow-up read.
  - Versioned tier configs: activation deactivates the prior version and
    inserts the new one inside a single transaction. Versions are never
    edited in place - the history is the audit trail.

KEY TABLES:
  payouts:                 The money-owed records and their lifecycle state
  tier_configs:            Append-only versioned tier tables
  tier_statuses:           Derived per-worker tier cache
  preferred_relationships: Worker <-> client-location bindings
  bill_entries:            Cancellation fees that fell back to the bill

INDEXES:
  - idx_payouts_assignment (UNIQUE): the creation race guard
  - idx_payouts_status_due: batch runs over due payouts (hot path)
  - idx_payouts_worker_status / idx_payouts_owner_status: pending totals

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/marketplace.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - payout/types.go: Interface definitions and the transition table
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/marketplace-engine/cancellation"
	"github.com/warp/marketplace-engine/engine"
	"github.com/warp/marketplace-engine/payout"
	"github.com/warp/marketplace-engine/pricing"
	"github.com/warp/marketplace-engine/tiers"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Payouts (one per completed assignment, lifecycle-managed)
	CREATE TABLE IF NOT EXISTS payouts (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		assignment_id TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		pay_kind TEXT NOT NULL,
		hours_worked TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		payout_priority TEXT NOT NULL DEFAULT 'normal',
		expected_payout_hours INTEGER NOT NULL DEFAULT 48,
		preferred_bonus_applied BOOLEAN NOT NULL DEFAULT FALSE,
		preferred_bonus_percent TEXT NOT NULL DEFAULT '0',
		preferred_bonus_cents INTEGER NOT NULL DEFAULT 0,
		tier_at_payout TEXT NOT NULL DEFAULT 'bronze',
		scheduled_payout_date TEXT NOT NULL,
		transfer_id TEXT,
		failure_reason TEXT,
		earned_at TEXT NOT NULL,
		paid_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one payout per assignment, enforced here rather
	-- than with application locking. Racing completion reports hit this.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payouts_assignment
		ON payouts(assignment_id);

	-- Batch runs over due payouts (hot path)
	CREATE INDEX IF NOT EXISTS idx_payouts_status_due
		ON payouts(status, scheduled_payout_date);

	-- Pending totals per worker/owner
	CREATE INDEX IF NOT EXISTS idx_payouts_worker_status
		ON payouts(worker_id, status);
	CREATE INDEX IF NOT EXISTS idx_payouts_owner_status
		ON payouts(owner_id, status);

	-- Tier configs (append-only version history; exactly one active)
	CREATE TABLE IF NOT EXISTS tier_configs (
		version INTEGER PRIMARY KEY AUTOINCREMENT,
		levels_json TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		activated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tier_configs_active
		ON tier_configs(active);

	-- Derived per-worker tier cache
	CREATE TABLE IF NOT EXISTS tier_statuses (
		worker_id TEXT PRIMARY KEY,
		tier_level TEXT NOT NULL,
		preferred_home_count INTEGER NOT NULL,
		bonus_percent TEXT NOT NULL,
		faster_payouts BOOLEAN NOT NULL,
		payout_hours INTEGER NOT NULL,
		early_access BOOLEAN NOT NULL,
		last_calculated_at TEXT NOT NULL
	);

	-- Preferred worker <-> client-location bindings
	CREATE TABLE IF NOT EXISTS preferred_relationships (
		worker_id TEXT NOT NULL,
		location_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (worker_id, location_id)
	);

	CREATE INDEX IF NOT EXISTS idx_relationships_worker
		ON preferred_relationships(worker_id);

	-- Outstanding bill entries (cancellation fee fallback)
	CREATE TABLE IF NOT EXISTS bill_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		appointment_id TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		reason TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bill_entries_user
		ON bill_entries(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PAYOUT STORE (payout.Store interface)
// =============================================================================

const payoutColumns = `id, worker_id, owner_id, assignment_id, amount_cents, pay_kind,
	hours_worked, status, payout_priority, expected_payout_hours,
	preferred_bonus_applied, preferred_bonus_percent, preferred_bonus_cents,
	tier_at_payout, scheduled_payout_date, transfer_id, failure_reason,
	earned_at, paid_at, created_at, updated_at`

// Create inserts the payout. The unique index on assignment_id turns a
// racing duplicate into ErrDuplicateAssignment.
func (s *Store) Create(ctx context.Context, p payout.PendingPayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payouts (` + payoutColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.WorkerID, p.OwnerID, p.AssignmentID,
		int64(p.AmountCents), string(p.PayKind), p.HoursWorked.String(),
		string(p.Status), string(p.PayoutPriority), p.ExpectedPayoutHours,
		p.PreferredBonusApplied, p.PreferredBonusPercent.String(), int64(p.PreferredBonusCents),
		p.TierAtPayout, p.ScheduledPayoutDate.UTC().Format(time.RFC3339),
		nullString(p.TransferID), nullString(p.FailureReason),
		p.EarnedAt.UTC().Format(time.RFC3339), nullTime(p.PaidAt),
		p.CreatedAt.UTC().Format(time.RFC3339), p.UpdatedAt.UTC().Format(time.RFC3339),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateAssignment
		}
		return fmt.Errorf("failed to insert payout: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*payout.PendingPayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPayout(ctx, "id = ?", id)
}

func (s *Store) GetByAssignment(ctx context.Context, assignmentID string) (*payout.PendingPayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPayout(ctx, "assignment_id = ?", assignmentID)
}

func (s *Store) getPayout(ctx context.Context, where string, arg any) (*payout.PendingPayout, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+payoutColumns+" FROM payouts WHERE "+where, arg)
	p, err := scanPayout(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrPayoutNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Transition performs the compare-and-swap status update: the new state is
// written only if the row still holds the expected one. Zero rows affected
// means the precondition no longer held.
func (s *Store) Transition(ctx context.Context, id string, from, to payout.Status, meta payout.TransitionMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE payouts
		SET status = ?,
		    transfer_id = COALESCE(?, transfer_id),
		    failure_reason = COALESCE(?, failure_reason),
		    paid_at = COALESCE(?, paid_at),
		    updated_at = ?
		WHERE id = ? AND status = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		string(to),
		nullString(meta.TransferID),
		nullString(meta.FailureReason),
		nullTime(meta.PaidAt),
		time.Now().UTC().Format(time.RFC3339),
		id, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update payout status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	// CAS miss: distinguish a missing row from a concurrent move.
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payouts WHERE id = ?", id).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return engine.ErrPayoutNotFound
	}
	return engine.ErrConcurrentModification
}

// Query returns payouts matching the filter, high priority first, then by
// scheduled date.
func (s *Store) Query(ctx context.Context, filter payout.QueryFilter) ([]payout.PendingPayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conditions []string
	var args []any

	if filter.WorkerID != "" {
		conditions = append(conditions, "worker_id = ?")
		args = append(args, filter.WorkerID)
	}
	if filter.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.DueOnOrBefore != nil {
		conditions = append(conditions, "scheduled_payout_date <= ?")
		args = append(args, filter.DueOnOrBefore.UTC().Format(time.RFC3339))
	}

	query := "SELECT " + payoutColumns + " FROM payouts"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY CASE payout_priority WHEN 'high' THEN 0 ELSE 1 END,
		scheduled_payout_date ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payouts: %w", err)
	}
	defer rows.Close()

	var payouts []payout.PendingPayout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

func (s *Store) PendingTotalsForWorker(ctx context.Context, workerID string) (payout.PendingTotals, error) {
	return s.pendingTotals(ctx, "worker_id", workerID)
}

func (s *Store) PendingTotalsForOwner(ctx context.Context, ownerID string) (payout.PendingTotals, error) {
	return s.pendingTotals(ctx, "owner_id", ownerID)
}

func (s *Store) pendingTotals(ctx context.Context, column, id string) (payout.PendingTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals payout.PendingTotals
	var amount sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), SUM(amount_cents) FROM payouts WHERE "+column+" = ? AND status = 'pending'",
		id,
	).Scan(&totals.Count, &amount)
	if err != nil {
		return totals, err
	}
	totals.AmountCents = engine.Cents(amount.Int64)
	return totals, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayout(row rowScanner) (*payout.PendingPayout, error) {
	var (
		p                  payout.PendingPayout
		amountCents        int64
		payKind            string
		hoursWorked        string
		status, priority   string
		bonusPercent       string
		bonusCents         int64
		scheduled          string
		transferID         sql.NullString
		failureReason      sql.NullString
		earnedAt           string
		paidAt             sql.NullString
		createdAt, updated string
	)

	err := row.Scan(
		&p.ID, &p.WorkerID, &p.OwnerID, &p.AssignmentID, &amountCents, &payKind,
		&hoursWorked, &status, &priority, &p.ExpectedPayoutHours,
		&p.PreferredBonusApplied, &bonusPercent, &bonusCents,
		&p.TierAtPayout, &scheduled, &transferID, &failureReason,
		&earnedAt, &paidAt, &createdAt, &updated,
	)
	if err != nil {
		return nil, err
	}

	p.AmountCents = engine.Cents(amountCents)
	p.PayKind = pricing.PayKind(payKind)
	p.HoursWorked = mustDecimal(hoursWorked)
	p.Status = payout.Status(status)
	p.PayoutPriority = payout.Priority(priority)
	p.PreferredBonusPercent = mustDecimal(bonusPercent)
	p.PreferredBonusCents = engine.Cents(bonusCents)
	p.ScheduledPayoutDate = parseTime(scheduled)
	p.TransferID = transferID.String
	p.FailureReason = failureReason.String
	p.EarnedAt = parseTime(earnedAt)
	if paidAt.Valid {
		t := parseTime(paidAt.String)
		p.PaidAt = &t
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

// =============================================================================
// TIER CONFIG STORE (tiers.ConfigStore interface)
// =============================================================================

// ActiveConfig returns the active tier table version.
func (s *Store) ActiveConfig(ctx context.Context) (*tiers.ThresholdConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT version, levels_json, active, activated_at FROM tier_configs WHERE active = TRUE ORDER BY version DESC LIMIT 1")
	cfg, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNoActiveConfig
	}
	return cfg, err
}

// ActivateConfig deactivates the prior version and inserts the new one in a
// single transaction. Stored versions are never edited in place.
func (s *Store) ActivateConfig(ctx context.Context, levels []tiers.TierLevel) (*tiers.ThresholdConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	levelsJSON, err := json.Marshal(levels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tier levels: %w", err)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx,
		"UPDATE tier_configs SET active = FALSE WHERE active = TRUE"); err != nil {
		return nil, fmt.Errorf("failed to deactivate prior config: %w", err)
	}

	activatedAt := time.Now().UTC()
	res, err := sqlTx.ExecContext(ctx,
		"INSERT INTO tier_configs (levels_json, active, activated_at) VALUES (?, TRUE, ?)",
		string(levelsJSON), activatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to insert config version: %w", err)
	}
	version, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, err
	}

	return &tiers.ThresholdConfig{
		Version:     int(version),
		Levels:      append([]tiers.TierLevel(nil), levels...),
		ActivatedAt: activatedAt,
		Active:      true,
	}, nil
}

// ConfigHistory returns all versions, newest first.
func (s *Store) ConfigHistory(ctx context.Context) ([]tiers.ThresholdConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT version, levels_json, active, activated_at FROM tier_configs ORDER BY version DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []tiers.ThresholdConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

func scanConfig(row rowScanner) (*tiers.ThresholdConfig, error) {
	var cfg tiers.ThresholdConfig
	var levelsJSON, activatedAt string

	if err := row.Scan(&cfg.Version, &levelsJSON, &cfg.Active, &activatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(levelsJSON), &cfg.Levels); err != nil {
		return nil, fmt.Errorf("failed to decode tier levels: %w", err)
	}
	cfg.ActivatedAt = parseTime(activatedAt)
	return &cfg, nil
}

// =============================================================================
// RELATIONSHIP STORE (tiers.RelationshipStore + tiers.RelationshipWriter)
// =============================================================================

func (s *Store) PreferredCount(ctx context.Context, workerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM preferred_relationships WHERE worker_id = ?",
		workerID,
	).Scan(&count)
	return count, err
}

func (s *Store) IsPreferred(ctx context.Context, workerID, locationID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM preferred_relationships WHERE worker_id = ? AND location_id = ?",
		workerID, locationID,
	).Scan(&count)
	return count > 0, err
}

func (s *Store) AddPreferred(ctx context.Context, workerID, locationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO preferred_relationships (worker_id, location_id, created_at) VALUES (?, ?, ?)",
		workerID, locationID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (s *Store) RemovePreferred(ctx context.Context, workerID, locationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM preferred_relationships WHERE worker_id = ? AND location_id = ?",
		workerID, locationID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// =============================================================================
// STATUS STORE (tiers.StatusStore interface)
// =============================================================================

func (s *Store) SaveStatus(ctx context.Context, status tiers.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO tier_statuses (worker_id, tier_level, preferred_home_count,
			bonus_percent, faster_payouts, payout_hours, early_access, last_calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(worker_id) DO UPDATE SET
			tier_level = excluded.tier_level,
			preferred_home_count = excluded.preferred_home_count,
			bonus_percent = excluded.bonus_percent,
			faster_payouts = excluded.faster_payouts,
			payout_hours = excluded.payout_hours,
			early_access = excluded.early_access,
			last_calculated_at = excluded.last_calculated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		status.WorkerID, status.TierLevel, status.PreferredHomeCount,
		status.BonusPercent.String(), status.FasterPayouts, status.PayoutHours,
		status.EarlyAccess, status.LastCalculatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetStatus(ctx context.Context, workerID string) (*tiers.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		status       tiers.Status
		bonusPercent string
		calculatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT worker_id, tier_level, preferred_home_count, bonus_percent,
			faster_payouts, payout_hours, early_access, last_calculated_at
		 FROM tier_statuses WHERE worker_id = ?`,
		workerID,
	).Scan(&status.WorkerID, &status.TierLevel, &status.PreferredHomeCount,
		&bonusPercent, &status.FasterPayouts, &status.PayoutHours,
		&status.EarlyAccess, &calculatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	status.BonusPercent = mustDecimal(bonusPercent)
	status.LastCalculatedAt = parseTime(calculatedAt)
	return &status, nil
}

// =============================================================================
// BILL STORE (cancellation.BillStore interface)
// =============================================================================

func (s *Store) AddBillEntry(ctx context.Context, entry cancellation.BillEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO bill_entries (id, user_id, appointment_id, amount_cents, reason, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		entry.ID, entry.UserID, entry.AppointmentID, int64(entry.AmountCents),
		entry.Reason, entry.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// BillEntries returns a user's outstanding bill entries, oldest first.
func (s *Store) BillEntries(ctx context.Context, userID string) ([]cancellation.BillEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, appointment_id, amount_cents, reason, created_at FROM bill_entries WHERE user_id = ? ORDER BY created_at ASC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []cancellation.BillEntry
	for rows.Next() {
		var e cancellation.BillEntry
		var amount int64
		var createdAt string
		if err := rows.Scan(&e.ID, &e.UserID, &e.AppointmentID, &amount, &e.Reason, &createdAt); err != nil {
			return nil, err
		}
		e.AmountCents = engine.Cents(amount)
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
