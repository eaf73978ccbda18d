/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND PERCENT CONVENTIONS ON THE WIRE:
  - All money fields are integer minor-currency units (cents)
  - bonus_percent and percentage pay rates are literal percents (5 = 5%)
  - partial_refund_rate is a 0..1 fraction (0.5 = half refund)
  - Durations are fractional hours (float), converted to decimal internally

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/marketplace-engine/payout"
	"github.com/warp/marketplace-engine/tiers"
)

// =============================================================================
// PRICING
// =============================================================================

// SplitWorkerRequest is one worker on a split request.
type SplitWorkerRequest struct {
	WorkerID  string  `json:"worker_id"`
	PayType   string  `json:"pay_type"`   // hourly | flat_rate | per_job | percentage | self
	RateValue float64 `json:"rate_value"` // cents/hour, cents, or literal percent per pay_type
}

// ComputeSplitRequest asks for a co-staffed job split.
type ComputeSplitRequest struct {
	BaseDurationHours float64              `json:"base_duration_hours"`
	JobPriceCents     int64                `json:"job_price_cents"`
	FallbackRateCents int64                `json:"fallback_rate_cents,omitempty"`
	Workers           []SplitWorkerRequest `json:"workers"`
}

// WorkerShareDTO is one worker's split outcome.
type WorkerShareDTO struct {
	WorkerID              string  `json:"worker_id"`
	AdjustedDurationHours float64 `json:"adjusted_duration_hours"`
	PayCents              int64   `json:"pay_cents"`
	PayType               string  `json:"pay_type"`
}

// ComputeSplitResponse carries the shared adjusted duration and shares.
type ComputeSplitResponse struct {
	AdjustedDurationHours float64          `json:"adjusted_duration_hours"`
	Shares                []WorkerShareDTO `json:"shares"`
}

// =============================================================================
// TIERS
// =============================================================================

// ResolveTierRequest resolves perks for a raw preferred count.
type ResolveTierRequest struct {
	PreferredCount int `json:"preferred_count"`
}

// PerkBundleDTO is a resolved perk bundle.
type PerkBundleDTO struct {
	TierLevel          string  `json:"tier_level"`
	BonusPercent       float64 `json:"bonus_percent"` // literal percent
	FasterPayouts      bool    `json:"faster_payouts"`
	PayoutHours        int     `json:"payout_hours"`
	EarlyAccess        bool    `json:"early_access"`
	EarlyAccessMinutes int     `json:"early_access_minutes"`
}

// TierStatusDTO is a worker's cached tier status.
type TierStatusDTO struct {
	WorkerID           string  `json:"worker_id"`
	TierLevel          string  `json:"tier_level"`
	PreferredHomeCount int     `json:"preferred_home_count"`
	BonusPercent       float64 `json:"bonus_percent"`
	FasterPayouts      bool    `json:"faster_payouts"`
	PayoutHours        int     `json:"payout_hours"`
	EarlyAccess        bool    `json:"early_access"`
	LastCalculatedAt   string  `json:"last_calculated_at"`
}

// TierLevelRequest is one row of a config activation request.
type TierLevelRequest struct {
	Tier               string  `json:"tier"`
	MinCount           int     `json:"min_count"`
	BonusPercent       float64 `json:"bonus_percent"` // literal percent
	FasterPayouts      bool    `json:"faster_payouts"`
	PayoutHours        int     `json:"payout_hours"`
	EarlyAccess        bool    `json:"early_access"`
	EarlyAccessMinutes int     `json:"early_access_minutes"`
}

// ActivateConfigRequest activates a new tier table version.
type ActivateConfigRequest struct {
	Levels []TierLevelRequest `json:"levels"`
}

// TierConfigDTO is one stored config version.
type TierConfigDTO struct {
	Version     int                `json:"version"`
	Levels      []TierLevelRequest `json:"levels"`
	Active      bool               `json:"active"`
	ActivatedAt string             `json:"activated_at"`
}

// RelationshipRequest opts a worker in/out of preferred status at a location.
type RelationshipRequest struct {
	WorkerID   string `json:"worker_id"`
	LocationID string `json:"location_id"`
}

// =============================================================================
// EARLY ACCESS
// =============================================================================

// VisibilityRequest asks whether an appointment is visible to a requester.
// Exactly one of early_access_until / published_at should be set; when
// published_at is given the window end is derived from the active config.
type VisibilityRequest struct {
	EarlyAccessUntil        *time.Time `json:"early_access_until,omitempty"`
	PublishedAt             *time.Time `json:"published_at,omitempty"`
	RequesterHasEarlyAccess bool       `json:"requester_has_early_access"`
	Now                     *time.Time `json:"now,omitempty"` // defaults to server time
}

// VisibilityResponse is the gate's verdict.
type VisibilityResponse struct {
	Visible          bool       `json:"visible"`
	EarlyAccessUntil *time.Time `json:"early_access_until,omitempty"`
}

// =============================================================================
// CANCELLATION
// =============================================================================

// EvaluateCancellationRequest carries cancellation facts.
type EvaluateCancellationRequest struct {
	DaysUntilAppointment int     `json:"days_until_appointment"`
	WindowDays           *int    `json:"window_days,omitempty"` // default 7
	HasCleanerAssigned   bool    `json:"has_cleaner_assigned"`
	HasPaymentMethod     bool    `json:"has_payment_method"`
	PriceCents           int64   `json:"price_cents"`
	PartialRefundRate    float64 `json:"partial_refund_rate"` // 0..1 fraction
}

// CollectFeeRequest evaluates a cancellation and, when the decision says a
// fee is owed, collects it: processor charge first, outstanding-bill
// fallback on decline.
type CollectFeeRequest struct {
	UserID        string `json:"user_id"`
	AppointmentID string `json:"appointment_id"`
	FeeCents      int64  `json:"fee_cents"`

	DaysUntilAppointment int     `json:"days_until_appointment"`
	WindowDays           *int    `json:"window_days,omitempty"` // default 7
	HasCleanerAssigned   bool    `json:"has_cleaner_assigned"`
	HasPaymentMethod     bool    `json:"has_payment_method"`
	PriceCents           int64   `json:"price_cents"`
	PartialRefundRate    float64 `json:"partial_refund_rate"` // 0..1 fraction
}

// FeeOutcomeDTO reports which leg collected the fee, if any.
type FeeOutcomeDTO struct {
	Charged      bool   `json:"charged"`
	ChargeRef    string `json:"charge_ref,omitempty"`
	BilledToUser bool   `json:"billed_to_user"`
	BillEntryID  string `json:"bill_entry_id,omitempty"`
}

// CollectFeeResponse pairs the decision with the collection outcome.
type CollectFeeResponse struct {
	Decision CancellationDecisionDTO `json:"decision"`
	Outcome  FeeOutcomeDTO           `json:"outcome"`
}

// CancellationDecisionDTO is the evaluator's decision.
type CancellationDecisionDTO struct {
	IsWithinFeeWindow     bool  `json:"is_within_fee_window"`
	HasCleanerAssigned    bool  `json:"has_cleaner_assigned"`
	WillChargeFee         bool  `json:"will_charge_fee"`
	RefundAmountCents     int64 `json:"refund_amount_cents"`
	RequiresPaymentMethod bool  `json:"requires_payment_method"`
}

// =============================================================================
// PAYOUTS
// =============================================================================

// CreatePayoutRequest records a completed assignment's earnings.
type CreatePayoutRequest struct {
	AssignmentID string `json:"assignment_id"`
	WorkerID     string `json:"worker_id"`
	OwnerID      string `json:"owner_id"`
	LocationID   string `json:"location_id"`

	PayType               string  `json:"pay_type"`
	PayCents              int64   `json:"pay_cents"`
	AdjustedDurationHours float64 `json:"adjusted_duration_hours"`
	PlatformFeeCents      int64   `json:"platform_fee_cents"`

	EarnedAt *time.Time `json:"earned_at,omitempty"` // defaults to now
}

// TransitionPayoutRequest applies one lifecycle transition.
type TransitionPayoutRequest struct {
	FromStatus    string `json:"from_status"`
	ToStatus      string `json:"to_status"`
	TransferID    string `json:"transfer_id,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// PayoutDTO is a payout in API responses.
type PayoutDTO struct {
	ID           string `json:"id"`
	WorkerID     string `json:"worker_id"`
	OwnerID      string `json:"owner_id"`
	AssignmentID string `json:"assignment_id"`

	AmountCents int64   `json:"amount_cents"`
	PayType     string  `json:"pay_type"`
	HoursWorked float64 `json:"hours_worked"`
	Status      string  `json:"status"`

	PayoutPriority        string  `json:"payout_priority"`
	ExpectedPayoutHours   int     `json:"expected_payout_hours"`
	PreferredBonusApplied bool    `json:"preferred_bonus_applied"`
	PreferredBonusPercent float64 `json:"preferred_bonus_percent"`
	PreferredBonusCents   int64   `json:"preferred_bonus_cents"`
	TierAtPayout          string  `json:"tier_at_payout"`

	ScheduledPayoutDate string  `json:"scheduled_payout_date"`
	TransferID          string  `json:"transfer_id,omitempty"`
	FailureReason       string  `json:"failure_reason,omitempty"`
	EarnedAt            string  `json:"earned_at"`
	PaidAt              *string `json:"paid_at,omitempty"`
}

// PendingTotalsDTO summarizes outstanding money.
type PendingTotalsDTO struct {
	Count       int   `json:"count"`
	AmountCents int64 `json:"amount_cents"`
}

// BatchResultDTO summarizes one payout batch run.
type BatchResultDTO struct {
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// =============================================================================
// BILLS
// =============================================================================

// BillEntryDTO is one outstanding bill entry.
type BillEntryDTO struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	AppointmentID string `json:"appointment_id"`
	AmountCents   int64  `json:"amount_cents"`
	Reason        string `json:"reason"`
	CreatedAt     string `json:"created_at"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toPayoutDTO(p *payout.PendingPayout) PayoutDTO {
	hours, _ := p.HoursWorked.Float64()
	bonusPct, _ := p.PreferredBonusPercent.Float64()

	dto := PayoutDTO{
		ID:           p.ID,
		WorkerID:     p.WorkerID,
		OwnerID:      p.OwnerID,
		AssignmentID: p.AssignmentID,

		AmountCents: int64(p.AmountCents),
		PayType:     string(p.PayKind),
		HoursWorked: hours,
		Status:      string(p.Status),

		PayoutPriority:        string(p.PayoutPriority),
		ExpectedPayoutHours:   p.ExpectedPayoutHours,
		PreferredBonusApplied: p.PreferredBonusApplied,
		PreferredBonusPercent: bonusPct,
		PreferredBonusCents:   int64(p.PreferredBonusCents),
		TierAtPayout:          p.TierAtPayout,

		ScheduledPayoutDate: p.ScheduledPayoutDate.Format(time.RFC3339),
		TransferID:          p.TransferID,
		FailureReason:       p.FailureReason,
		EarnedAt:            p.EarnedAt.Format(time.RFC3339),
	}
	if p.PaidAt != nil {
		paidAt := p.PaidAt.Format(time.RFC3339)
		dto.PaidAt = &paidAt
	}
	return dto
}

func toPerkBundleDTO(b tiers.PerkBundle) PerkBundleDTO {
	pct, _ := b.BonusPercent.Float64()
	return PerkBundleDTO{
		TierLevel:          b.TierLevel,
		BonusPercent:       pct,
		FasterPayouts:      b.FasterPayouts,
		PayoutHours:        b.PayoutHours,
		EarlyAccess:        b.EarlyAccess,
		EarlyAccessMinutes: b.EarlyAccessMinutes,
	}
}

func toConfigDTO(cfg tiers.ThresholdConfig) TierConfigDTO {
	levels := make([]TierLevelRequest, len(cfg.Levels))
	for i, l := range cfg.Levels {
		pct, _ := l.BonusPercent.Float64()
		levels[i] = TierLevelRequest{
			Tier:               l.Tier,
			MinCount:           l.MinCount,
			BonusPercent:       pct,
			FasterPayouts:      l.FasterPayouts,
			PayoutHours:        l.PayoutHours,
			EarlyAccess:        l.EarlyAccess,
			EarlyAccessMinutes: l.EarlyAccessMinutes,
		}
	}
	return TierConfigDTO{
		Version:     cfg.Version,
		Levels:      levels,
		Active:      cfg.Active,
		ActivatedAt: cfg.ActivatedAt.Format(time.RFC3339),
	}
}
