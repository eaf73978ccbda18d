/*
handlers.go - HTTP API handlers for the financial rules engine

PURPOSE:
  Exposes the rules engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Pricing:
    POST   /api/pricing/split             Compute a co-staffed job split

  Tiers:
    POST   /api/tiers/resolve             Resolve perks for a raw count
    GET    /api/tiers/workers/{id}        Worker's cached tier status
    POST   /api/tiers/workers/{id}/recompute  Force recompute
    GET    /api/tiers/config/active       Active tier table version
    GET    /api/tiers/config/history      All versions, newest first
    POST   /api/tiers/config              Activate a new version

  Relationships:
    POST   /api/relationships             Preferred opt-in (+ recompute)
    DELETE /api/relationships             Preferred opt-out (+ recompute)

  Appointments:
    POST   /api/appointments/visibility   Early-access gate check

  Cancellations:
    POST   /api/cancellations/evaluate    Fee/refund decision
    POST   /api/cancellations/collect     Evaluate + charge/bill the fee

  Payouts:
    POST   /api/payouts                   Create pending payout
    GET    /api/payouts                   Query (worker/owner/status/due)
    GET    /api/payouts/{id}              Fetch one
    POST   /api/payouts/{id}/transition   Apply a lifecycle transition
    GET    /api/workers/{id}/pending      Pending totals for a worker
    GET    /api/owners/{id}/pending       Pending totals for an owner

  Admin:
    POST   /api/admin/process-payouts     Trigger a batch run now
    GET    /api/users/{id}/bill           Outstanding bill entries

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, illegal transitions
  - 404: Payout not found
  - 409: Duplicate assignment, CAS conflict
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/marketplace-engine/cancellation"
	"github.com/warp/marketplace-engine/engine"
	"github.com/warp/marketplace-engine/payout"
	"github.com/warp/marketplace-engine/pricing"
	"github.com/warp/marketplace-engine/store/sqlite"
	"github.com/warp/marketplace-engine/tiers"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Tiers     *tiers.Service
	Ledger    *payout.Ledger
	Processor *payout.Processor
	Collector *cancellation.Collector
}

// NewHandler creates a new handler wired to the given store and collaborators.
func NewHandler(store *sqlite.Store, transfer payout.TransferClient, processor cancellation.Processor) *Handler {
	tierSvc := tiers.NewService(store, store, store)
	ledger := payout.NewLedger(store, tierSvc, store)

	return &Handler{
		Store:     store,
		Tiers:     tierSvc,
		Ledger:    ledger,
		Processor: payout.NewProcessor(ledger, transfer),
		Collector: cancellation.NewCollector(processor, store),
	}
}

// =============================================================================
// PRICING HANDLERS
// =============================================================================

// ComputeSplit splits a job's duration and pay across its workers.
// POST /api/pricing/split
func (h *Handler) ComputeSplit(w http.ResponseWriter, r *http.Request) {
	var req ComputeSplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	workers := make([]pricing.Worker, len(req.Workers))
	for i, wr := range req.Workers {
		workers[i] = pricing.Worker{
			WorkerID: wr.WorkerID,
			Terms: pricing.TermsFromRaw(wr.PayType,
				decimal.NewFromFloat(wr.RateValue),
				engine.Cents(req.FallbackRateCents)),
		}
	}

	result, err := pricing.Split(pricing.SplitInput{
		BaseDurationHours: decimal.NewFromFloat(req.BaseDurationHours),
		JobPriceCents:     engine.Cents(req.JobPriceCents),
		Workers:           workers,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid split input", err)
		return
	}

	adjusted, _ := result.AdjustedDurationHours.Float64()
	resp := ComputeSplitResponse{AdjustedDurationHours: adjusted}
	for _, share := range result.Shares {
		hours, _ := share.AdjustedDurationHours.Float64()
		resp.Shares = append(resp.Shares, WorkerShareDTO{
			WorkerID:              share.WorkerID,
			AdjustedDurationHours: hours,
			PayCents:              int64(share.PayCents),
			PayType:               string(share.PayKind),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// TIER HANDLERS
// =============================================================================

// ResolveTier resolves a perk bundle for a raw preferred count.
// POST /api/tiers/resolve
func (h *Handler) ResolveTier(w http.ResponseWriter, r *http.Request) {
	var req ResolveTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	bundle, err := h.Tiers.ResolveForCount(r.Context(), req.PreferredCount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve tier", err)
		return
	}

	writeJSON(w, http.StatusOK, toPerkBundleDTO(bundle))
}

// GetTierStatus returns a worker's cached tier status.
// GET /api/tiers/workers/{id}
func (h *Handler) GetTierStatus(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "id")

	status, err := h.Tiers.CurrentStatus(r.Context(), workerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load tier status", err)
		return
	}

	writeJSON(w, http.StatusOK, toStatusDTO(status))
}

// RecomputeTierStatus forces a tier recompute for a worker.
// POST /api/tiers/workers/{id}/recompute
func (h *Handler) RecomputeTierStatus(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "id")

	status, err := h.Tiers.Recompute(r.Context(), workerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to recompute tier status", err)
		return
	}

	writeJSON(w, http.StatusOK, toStatusDTO(status))
}

// GetActiveConfig returns the active tier table version.
// GET /api/tiers/config/active
func (h *Handler) GetActiveConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Store.ActiveConfig(r.Context())
	if err != nil {
		if errors.Is(err, engine.ErrNoActiveConfig) {
			writeError(w, http.StatusNotFound, "No active tier configuration", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load config", err)
		return
	}

	writeJSON(w, http.StatusOK, toConfigDTO(*cfg))
}

// GetConfigHistory returns all config versions, newest first.
// GET /api/tiers/config/history
func (h *Handler) GetConfigHistory(w http.ResponseWriter, r *http.Request) {
	configs, err := h.Store.ConfigHistory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load config history", err)
		return
	}

	dtos := make([]TierConfigDTO, len(configs))
	for i, cfg := range configs {
		dtos[i] = toConfigDTO(cfg)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ActivateConfig stores a new tier table version and deactivates the prior
// one atomically.
// POST /api/tiers/config
func (h *Handler) ActivateConfig(w http.ResponseWriter, r *http.Request) {
	var req ActivateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Levels) == 0 {
		writeError(w, http.StatusBadRequest, "At least one tier level is required", nil)
		return
	}

	levels := make([]tiers.TierLevel, len(req.Levels))
	for i, l := range req.Levels {
		levels[i] = tiers.TierLevel{
			Tier:               l.Tier,
			MinCount:           l.MinCount,
			BonusPercent:       decimal.NewFromFloat(l.BonusPercent),
			FasterPayouts:      l.FasterPayouts,
			PayoutHours:        l.PayoutHours,
			EarlyAccess:        l.EarlyAccess,
			EarlyAccessMinutes: l.EarlyAccessMinutes,
		}
	}

	cfg, err := h.Store.ActivateConfig(r.Context(), levels)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to activate config", err)
		return
	}

	writeJSON(w, http.StatusCreated, toConfigDTO(*cfg))
}

// =============================================================================
// RELATIONSHIP HANDLERS
// =============================================================================

// OptInPreferred creates a preferred binding and recomputes the tier.
// POST /api/relationships
func (h *Handler) OptInPreferred(w http.ResponseWriter, r *http.Request) {
	h.changeRelationship(w, r, h.Store.AddPreferred)
}

// OptOutPreferred removes a preferred binding and recomputes the tier.
// DELETE /api/relationships
func (h *Handler) OptOutPreferred(w http.ResponseWriter, r *http.Request) {
	h.changeRelationship(w, r, h.Store.RemovePreferred)
}

func (h *Handler) changeRelationship(w http.ResponseWriter, r *http.Request,
	mutate func(ctx context.Context, workerID, locationID string) (bool, error)) {

	var req RelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.WorkerID == "" || req.LocationID == "" {
		writeError(w, http.StatusBadRequest, "worker_id and location_id are required", nil)
		return
	}

	ctx := r.Context()
	changed, err := mutate(ctx, req.WorkerID, req.LocationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update relationship", err)
		return
	}

	// Any binding change triggers a recompute; a no-op change still
	// returns the (unchanged) status, keeping the endpoint idempotent.
	status, err := h.Tiers.Recompute(ctx, req.WorkerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to recompute tier status", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Changed bool          `json:"changed"`
		Status  TierStatusDTO `json:"status"`
	}{Changed: changed, Status: toStatusDTO(status)})
}

// =============================================================================
// EARLY ACCESS HANDLER
// =============================================================================

// CheckVisibility applies the early-access gate to an appointment.
// POST /api/appointments/visibility
func (h *Handler) CheckVisibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	until := req.EarlyAccessUntil
	if until == nil && req.PublishedAt != nil {
		cfg, err := h.Store.ActiveConfig(r.Context())
		if err != nil && !errors.Is(err, engine.ErrNoActiveConfig) {
			writeError(w, http.StatusInternalServerError, "Failed to load config", err)
			return
		}
		until = tiers.EarlyAccessUntil(*req.PublishedAt, cfg)
	}

	now := time.Now()
	if req.Now != nil {
		now = *req.Now
	}

	writeJSON(w, http.StatusOK, VisibilityResponse{
		Visible:          tiers.IsVisible(until, req.RequesterHasEarlyAccess, now),
		EarlyAccessUntil: until,
	})
}

// =============================================================================
// CANCELLATION HANDLER
// =============================================================================

// EvaluateCancellation computes the fee/refund decision.
// POST /api/cancellations/evaluate
func (h *Handler) EvaluateCancellation(w http.ResponseWriter, r *http.Request) {
	var req EvaluateCancellationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	windowDays := cancellation.DefaultWindowDays
	if req.WindowDays != nil {
		windowDays = *req.WindowDays
	}

	decision := cancellation.Evaluate(cancellation.Input{
		DaysUntilAppointment: req.DaysUntilAppointment,
		WindowDays:           windowDays,
		HasCleanerAssigned:   req.HasCleanerAssigned,
		HasPaymentMethod:     req.HasPaymentMethod,
		PriceCents:           engine.Cents(req.PriceCents),
		PartialRefundRate:    decimal.NewFromFloat(req.PartialRefundRate),
	})

	writeJSON(w, http.StatusOK, CancellationDecisionDTO{
		IsWithinFeeWindow:     decision.IsWithinFeeWindow,
		HasCleanerAssigned:    decision.HasCleanerAssigned,
		WillChargeFee:         decision.WillChargeFee,
		RefundAmountCents:     int64(decision.RefundAmountCents),
		RequiresPaymentMethod: decision.RequiresPaymentMethod,
	})
}

// CollectCancellationFee evaluates a cancellation and collects the fee when
// one is owed: processor charge, outstanding-bill fallback on decline.
// POST /api/cancellations/collect
func (h *Handler) CollectCancellationFee(w http.ResponseWriter, r *http.Request) {
	var req CollectFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.AppointmentID == "" {
		writeError(w, http.StatusBadRequest, "user_id and appointment_id are required", nil)
		return
	}

	windowDays := cancellation.DefaultWindowDays
	if req.WindowDays != nil {
		windowDays = *req.WindowDays
	}

	decision := cancellation.Evaluate(cancellation.Input{
		DaysUntilAppointment: req.DaysUntilAppointment,
		WindowDays:           windowDays,
		HasCleanerAssigned:   req.HasCleanerAssigned,
		HasPaymentMethod:     req.HasPaymentMethod,
		PriceCents:           engine.Cents(req.PriceCents),
		PartialRefundRate:    decimal.NewFromFloat(req.PartialRefundRate),
	})

	outcome, err := h.Collector.CollectFee(r.Context(), req.UserID, req.AppointmentID,
		decision, engine.Cents(req.FeeCents))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Fee collection failed", err)
		return
	}

	writeJSON(w, http.StatusOK, CollectFeeResponse{
		Decision: CancellationDecisionDTO{
			IsWithinFeeWindow:     decision.IsWithinFeeWindow,
			HasCleanerAssigned:    decision.HasCleanerAssigned,
			WillChargeFee:         decision.WillChargeFee,
			RefundAmountCents:     int64(decision.RefundAmountCents),
			RequiresPaymentMethod: decision.RequiresPaymentMethod,
		},
		Outcome: FeeOutcomeDTO{
			Charged:      outcome.Charged,
			ChargeRef:    outcome.ChargeRef,
			BilledToUser: outcome.BilledToUser,
			BillEntryID:  outcome.BillEntryID,
		},
	})
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// CreatePayout creates the pending payout for a completed assignment.
// POST /api/payouts
func (h *Handler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	var req CreatePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	earnedAt := time.Time{}
	if req.EarnedAt != nil {
		earnedAt = *req.EarnedAt
	}

	p, err := h.Ledger.CreatePendingPayout(r.Context(), payout.CreateInput{
		AssignmentID: req.AssignmentID,
		WorkerID:     req.WorkerID,
		OwnerID:      req.OwnerID,
		LocationID:   req.LocationID,
		Share: pricing.WorkerShare{
			WorkerID:              req.WorkerID,
			AdjustedDurationHours: decimal.NewFromFloat(req.AdjustedDurationHours),
			PayCents:              engine.Cents(req.PayCents),
			PayKind:               pricing.PayKind(req.PayType),
		},
		PlatformFeeCents: engine.Cents(req.PlatformFeeCents),
		EarnedAt:         earnedAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrDuplicateAssignment):
			writeError(w, http.StatusConflict, "Payout already exists for assignment", err)
		case engine.IsClientError(err):
			writeError(w, http.StatusBadRequest, "Invalid payout input", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to create payout", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toPayoutDTO(p))
}

// GetPayout fetches one payout.
// GET /api/payouts/{id}
func (h *Handler) GetPayout(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if engine.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Payout not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load payout", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTO(p))
}

// TransitionPayout applies one lifecycle transition.
// POST /api/payouts/{id}/transition
func (h *Handler) TransitionPayout(w http.ResponseWriter, r *http.Request) {
	var req TransitionPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Ledger.Transition(r.Context(), chi.URLParam(r, "id"),
		payout.Status(req.FromStatus), payout.Status(req.ToStatus),
		payout.TransitionMeta{
			TransferID:    req.TransferID,
			FailureReason: req.FailureReason,
		})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrInvalidTransition):
			writeError(w, http.StatusBadRequest, "Illegal transition", err)
		case errors.Is(err, engine.ErrConcurrentModification):
			writeError(w, http.StatusConflict, "Payout was modified concurrently", err)
		case engine.IsNotFound(err):
			writeError(w, http.StatusNotFound, "Payout not found", nil)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to transition payout", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toPayoutDTO(p))
}

// QueryPayouts lists payouts by worker/owner/status/due date.
// GET /api/payouts?worker_id=&owner_id=&status=&due_before=
func (h *Handler) QueryPayouts(w http.ResponseWriter, r *http.Request) {
	filter := payout.QueryFilter{
		WorkerID: r.URL.Query().Get("worker_id"),
		OwnerID:  r.URL.Query().Get("owner_id"),
		Status:   payout.Status(r.URL.Query().Get("status")),
	}
	if due := r.URL.Query().Get("due_before"); due != "" {
		t, err := time.Parse(time.RFC3339, due)
		if err != nil {
			writeError(w, http.StatusBadRequest, "due_before must be RFC3339", err)
			return
		}
		filter.DueOnOrBefore = &t
	}

	payouts, err := h.Ledger.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query payouts", err)
		return
	}

	dtos := make([]PayoutDTO, len(payouts))
	for i := range payouts {
		dtos[i] = toPayoutDTO(&payouts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// WorkerPendingTotals sums pending payouts for a worker.
// GET /api/workers/{id}/pending
func (h *Handler) WorkerPendingTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Ledger.PendingForWorker(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load pending totals", err)
		return
	}
	writeJSON(w, http.StatusOK, PendingTotalsDTO{Count: totals.Count, AmountCents: int64(totals.AmountCents)})
}

// OwnerPendingTotals sums pending payouts across an owner's business.
// GET /api/owners/{id}/pending
func (h *Handler) OwnerPendingTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Ledger.PendingForOwner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load pending totals", err)
		return
	}
	writeJSON(w, http.StatusOK, PendingTotalsDTO{Count: totals.Count, AmountCents: int64(totals.AmountCents)})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ProcessPayouts triggers a batch run over due payouts now.
// POST /api/admin/process-payouts
func (h *Handler) ProcessPayouts(w http.ResponseWriter, r *http.Request) {
	result, err := h.Processor.ProcessDue(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Batch run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, BatchResultDTO{
		Claimed:   result.Claimed,
		Completed: result.Completed,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
	})
}

// GetBill returns a user's outstanding bill entries.
// GET /api/users/{id}/bill
func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.BillEntries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load bill", err)
		return
	}

	dtos := make([]BillEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = BillEntryDTO{
			ID:            e.ID,
			UserID:        e.UserID,
			AppointmentID: e.AppointmentID,
			AmountCents:   int64(e.AmountCents),
			Reason:        e.Reason,
			CreatedAt:     e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func toStatusDTO(s *tiers.Status) TierStatusDTO {
	pct, _ := s.BonusPercent.Float64()
	return TierStatusDTO{
		WorkerID:           s.WorkerID,
		TierLevel:          s.TierLevel,
		PreferredHomeCount: s.PreferredHomeCount,
		BonusPercent:       pct,
		FasterPayouts:      s.FasterPayouts,
		PayoutHours:        s.PayoutHours,
		EarlyAccess:        s.EarlyAccess,
		LastCalculatedAt:   s.LastCalculatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
