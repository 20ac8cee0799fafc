package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kpm-monitor/pkg/models"
	"kpm-monitor/pkg/repository"

	"go.uber.org/zap"
)

// CycleService owns the cycle state machine:
//
//	PENDING -> DATA_COLLECTION -> UNDER_REVIEW -> PENDING_APPROVAL -> APPROVED
//
// with CANCELLED reachable from any non-terminal state. Every
// transition runs inside one transaction holding the cycle row lock, so
// concurrent actors serialize and guards always see current state.
type CycleService struct {
	store  repository.TxRunner
	logger *zap.Logger
	opts   Options
}

func NewCycleService(store repository.TxRunner, logger *zap.Logger, opts Options) *CycleService {
	return &CycleService{store: store, logger: logger, opts: opts.withDefaults()}
}

// Create opens a new cycle in PENDING with no bound version.
func (s *CycleService) Create(ctx context.Context, actor models.Actor, planID string, req models.CreateCycleRequest) (*models.MonitoringCycle, error) {
	if !actor.CanCreateCycle {
		return nil, models.NewAuthorizationError("create_cycle")
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, models.NewValidationError("period_end", "period end must be after period start")
	}

	submissionDue, reportDue := DueDates(req.PeriodEnd, s.opts)
	if req.SubmissionDue != nil {
		submissionDue = *req.SubmissionDue
	}
	if req.ReportDue != nil {
		reportDue = *req.ReportDue
	}

	cycle := &models.MonitoringCycle{
		CycleID:       repository.GenerateID(),
		PlanID:        planID,
		Status:        models.StatusPending,
		PeriodStart:   req.PeriodStart,
		PeriodEnd:     req.PeriodEnd,
		SubmissionDue: submissionDue,
		ReportDue:     reportDue,
		Notes:         req.Notes,
	}

	err := s.store.InTx(ctx, func(r repository.Repositories) error {
		if _, err := r.Plans.Get(ctx, planID); err != nil {
			return err
		}
		return r.Cycles.Create(ctx, cycle)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cycle created",
		zap.String("plan_id", planID),
		zap.String("cycle_id", cycle.CycleID))
	return cycle, nil
}

// Transition validates and applies one lifecycle action atomically.
func (s *CycleService) Transition(ctx context.Context, actor models.Actor, cycleID string, req models.TransitionRequest) (*models.MonitoringCycle, error) {
	var out *models.MonitoringCycle
	err := s.store.InTx(ctx, func(r repository.Repositories) error {
		cycle, err := r.Cycles.GetForUpdate(ctx, cycleID)
		if err != nil {
			return err
		}

		switch req.Action {
		case models.ActionStart:
			err = s.start(ctx, r, actor, cycle)
		case models.ActionSubmit:
			err = s.submit(ctx, r, actor, cycle)
		case models.ActionRequestApproval:
			err = s.requestApproval(ctx, r, actor, cycle)
		case models.ActionCancel:
			err = s.cancel(ctx, r, actor, cycle, req.Reason)
		default:
			err = models.NewValidationError("action", fmt.Sprintf("unknown transition %q", req.Action))
		}
		if err != nil {
			return err
		}

		out = cycle
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cycle transitioned",
		zap.String("cycle_id", cycleID),
		zap.String("action", string(req.Action)),
		zap.String("status", string(out.Status)))
	return out, nil
}

// start binds the plan's active version and moves to DATA_COLLECTION.
// The bound version never changes for the life of the cycle. A plan
// that has never published a version starts in live-metrics mode: the
// version stays unbound and results validate against the live
// definitions.
func (s *CycleService) start(ctx context.Context, r repository.Repositories, actor models.Actor, cycle *models.MonitoringCycle) error {
	if !actor.CanStartCycle {
		return models.NewAuthorizationError("start_cycle")
	}
	if cycle.Status != models.StatusPending {
		return models.NewStateError("cycle", string(cycle.Status), "only a pending cycle can be started")
	}

	version, err := r.Versions.Active(ctx, cycle.PlanID)
	if err != nil {
		return err
	}
	if version != nil {
		cycle.VersionID = &version.VersionID
	} else {
		s.logger.Warn("cycle starting against live metrics; plan has no published version",
			zap.String("cycle_id", cycle.CycleID),
			zap.String("plan_id", cycle.PlanID))
	}

	cycle.Status = models.StatusDataCollection
	return r.Cycles.Update(ctx, cycle)
}

// submit moves to UNDER_REVIEW once every required metric has a result
// (a value or an explained skip). Missing metrics are enumerated in the
// returned error.
func (s *CycleService) submit(ctx context.Context, r repository.Repositories, actor models.Actor, cycle *models.MonitoringCycle) error {
	if !actor.CanSubmitCycle {
		return models.NewAuthorizationError("submit_cycle")
	}
	if cycle.Status != models.StatusDataCollection {
		return models.NewStateError("cycle", string(cycle.Status), "only a cycle in data collection can be submitted")
	}

	required, err := requiredMetrics(ctx, r, cycle)
	if err != nil {
		return err
	}

	results, err := r.Results.ListByCycle(ctx, cycle.CycleID)
	if err != nil {
		return err
	}
	recorded := make(map[string]bool, len(results))
	for _, res := range results {
		recorded[res.MetricID] = true
	}

	var missing []string
	for _, m := range required {
		if !recorded[m.id] {
			missing = append(missing, m.name)
		}
	}
	if len(missing) > 0 {
		return &models.StateError{
			Entity:  "cycle",
			Current: string(cycle.Status),
			Message: "required metrics have no result",
			Unmet:   missing,
		}
	}

	now := time.Now().UTC()
	cycle.Status = models.StatusUnderReview
	cycle.SubmittedBy = &actor.ID
	cycle.SubmittedAt = &now
	return r.Cycles.Update(ctx, cycle)
}

// requestApproval creates one approval requirement per required scope
// (Global plus one per region touched by the cycle's models) and moves
// to PENDING_APPROVAL. On re-entry after a rejection, scopes whose
// latest entry is Rejected get a fresh Pending row; Approved entries
// from the prior round are preserved.
func (s *CycleService) requestApproval(ctx context.Context, r repository.Repositories, actor models.Actor, cycle *models.MonitoringCycle) error {
	if !actor.CanRequestApproval {
		return models.NewAuthorizationError("request_approval")
	}
	if cycle.Status != models.StatusUnderReview {
		return models.NewStateError("cycle", string(cycle.Status), "only a cycle under review can request approval")
	}

	regions, err := r.Models.RegionsForPlan(ctx, cycle.PlanID)
	if err != nil {
		return err
	}

	existing, err := r.Approvals.ListByCycle(ctx, cycle.CycleID)
	if err != nil {
		return err
	}
	latest, _ := approvalLedger(existing)

	scopes := []models.CycleApproval{{Scope: models.ScopeGlobal}}
	for _, region := range regions {
		scopes = append(scopes, models.CycleApproval{Scope: models.ScopeRegional, Region: region})
	}

	var fresh []models.CycleApproval
	for _, scope := range scopes {
		if prev, ok := latest[scope.ScopeKey()]; ok && prev.Status != models.ApprovalRejected {
			continue
		}
		scope.ApprovalID = repository.GenerateID()
		scope.CycleID = cycle.CycleID
		scope.Status = models.ApprovalPending
		fresh = append(fresh, scope)
	}
	if len(fresh) > 0 {
		if err := r.Approvals.CreateAll(ctx, fresh); err != nil {
			return err
		}
	}

	approvals, err := r.Approvals.ListByCycle(ctx, cycle.CycleID)
	if err != nil {
		return err
	}
	_, progress := approvalLedger(approvals)
	cycle.RequiredApprovals = progress.Total
	cycle.CompletedApprovals = progress.Completed
	cycle.Status = models.StatusPendingApproval
	return r.Cycles.Update(ctx, cycle)
}

// cancel is terminal, unconditional, and not itself cancellable. All
// still-pending approvals are implicitly voided.
func (s *CycleService) cancel(ctx context.Context, r repository.Repositories, actor models.Actor, cycle *models.MonitoringCycle, reason string) error {
	if !actor.CanCancelCycle {
		return models.NewAuthorizationError("cancel_cycle")
	}
	if cycle.Status.Terminal() {
		return models.NewStateError("cycle", string(cycle.Status), "a terminal cycle cannot be cancelled")
	}
	if strings.TrimSpace(reason) == "" {
		return models.NewValidationError("reason", "cancelling a cycle requires a reason")
	}

	if err := r.Approvals.VoidPendingByCycle(ctx, cycle.CycleID, actor.ID, "cycle cancelled: "+reason); err != nil {
		return err
	}

	approvals, err := r.Approvals.ListByCycle(ctx, cycle.CycleID)
	if err != nil {
		return err
	}
	_, progress := approvalLedger(approvals)
	cycle.RequiredApprovals = progress.Total
	cycle.CompletedApprovals = progress.Completed

	now := time.Now().UTC()
	cycle.Status = models.StatusCancelled
	cycle.CancelledBy = &actor.ID
	cycle.CancelledAt = &now
	cycle.CancelReason = reason
	return r.Cycles.Update(ctx, cycle)
}

// Get returns the cycle with its results, approvals, and derived
// approval progress.
func (s *CycleService) Get(ctx context.Context, cycleID string) (*models.CycleDetail, error) {
	r := s.store.Repos()

	cycle, err := r.Cycles.Get(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	results, err := r.Results.ListByCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	approvals, err := r.Approvals.ListByCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	_, progress := approvalLedger(approvals)

	return &models.CycleDetail{
		Cycle:       *cycle,
		LiveMetrics: cycle.LiveMetrics(),
		Results:     results,
		Approvals:   approvals,
		Progress:    progress,
	}, nil
}

// requiredMetric is one metric the cycle must record a result for
type requiredMetric struct {
	id         string
	name       string
	kind       models.EvaluationKind
	thresholds models.Thresholds
}

// requiredMetrics resolves the metric set the cycle evaluates against:
// the bound version's snapshot, or the plan's live active definitions
// when the cycle runs in live-metrics mode.
func requiredMetrics(ctx context.Context, r repository.Repositories, cycle *models.MonitoringCycle) ([]requiredMetric, error) {
	if cycle.VersionID != nil {
		version, err := r.Versions.GetByID(ctx, *cycle.VersionID)
		if err != nil {
			return nil, err
		}
		metrics := make([]requiredMetric, 0, len(version.Metrics))
		for _, m := range version.Metrics {
			metrics = append(metrics, requiredMetric{id: m.MetricID, name: m.Name, kind: m.Kind, thresholds: m.Thresholds})
		}
		return metrics, nil
	}

	defs, err := r.Metrics.ActiveByPlan(ctx, cycle.PlanID)
	if err != nil {
		return nil, err
	}
	metrics := make([]requiredMetric, 0, len(defs))
	for _, d := range defs {
		metrics = append(metrics, requiredMetric{id: d.MetricID, name: d.Name, kind: d.Kind, thresholds: d.Thresholds})
	}
	return metrics, nil
}
