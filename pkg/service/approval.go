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

// ApprovalService manages the required approvals of a cycle and drives
// the automatic finalize and return transitions. Every action locks the
// cycle row, so two approvers acting at once serialize: the last writer
// to satisfy completion applies the finalize transition exactly once.
type ApprovalService struct {
	store  repository.TxRunner
	logger *zap.Logger
}

func NewApprovalService(store repository.TxRunner, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{store: store, logger: logger}
}

// Act applies one approve/reject/void action to an approval.
func (s *ApprovalService) Act(ctx context.Context, actor models.Actor, approvalID string, req models.ApprovalActionRequest) (*models.CycleApproval, error) {
	var out *models.CycleApproval
	err := s.store.InTx(ctx, func(r repository.Repositories) error {
		approval, err := r.Approvals.Get(ctx, approvalID)
		if err != nil {
			return err
		}
		cycle, err := r.Cycles.GetForUpdate(ctx, approval.CycleID)
		if err != nil {
			return err
		}
		// Re-read under the cycle lock: a concurrent action on the same
		// approval may have committed between the first read and the lock.
		approval, err = r.Approvals.Get(ctx, approvalID)
		if err != nil {
			return err
		}

		switch req.Action {
		case models.ApprovalActionApprove:
			err = s.approve(ctx, r, actor, cycle, approval, req.Comments)
		case models.ApprovalActionReject:
			err = s.reject(ctx, r, actor, cycle, approval, req.Reason)
		case models.ApprovalActionVoid:
			err = s.void(ctx, r, actor, cycle, approval, req.Reason)
		default:
			err = models.NewValidationError("action", fmt.Sprintf("unknown approval action %q", req.Action))
		}
		if err != nil {
			return err
		}

		out = approval
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("approval acted on",
		zap.String("approval_id", approvalID),
		zap.String("action", string(req.Action)),
		zap.String("scope", out.ScopeKey()))
	return out, nil
}

func (s *ApprovalService) approve(ctx context.Context, r repository.Repositories, actor models.Actor, cycle *models.MonitoringCycle, approval *models.CycleApproval, comments string) error {
	if err := actionable(cycle, approval); err != nil {
		return err
	}
	if !actor.CanApprove(approval.Scope, approval.Region) {
		return models.NewAuthorizationError("approve:" + approval.ScopeKey())
	}

	now := time.Now().UTC()
	approval.Status = models.ApprovalApproved
	approval.ApproverID = &actor.ID
	approval.Comments = comments
	approval.ActedAt = &now
	if err := r.Approvals.Update(ctx, approval); err != nil {
		return err
	}

	return s.settle(ctx, r, cycle)
}

// reject returns the cycle to UNDER_REVIEW. The rejected row stays on
// record, and already-approved entries are not reset; the next approval
// round only re-collects the scopes that rejected.
func (s *ApprovalService) reject(ctx context.Context, r repository.Repositories, actor models.Actor, cycle *models.MonitoringCycle, approval *models.CycleApproval, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return models.NewValidationError("reason", "rejecting an approval requires a reason")
	}
	if err := actionable(cycle, approval); err != nil {
		return err
	}
	if !actor.CanApprove(approval.Scope, approval.Region) {
		return models.NewAuthorizationError("approve:" + approval.ScopeKey())
	}

	now := time.Now().UTC()
	approval.Status = models.ApprovalRejected
	approval.ApproverID = &actor.ID
	approval.Comments = reason
	approval.ActedAt = &now
	if err := r.Approvals.Update(ctx, approval); err != nil {
		return err
	}

	cycle.Status = models.StatusUnderReview
	return s.refreshAndUpdate(ctx, r, cycle)
}

// void marks the approval permanently excluded from completion
// accounting without changing its status. Voiding the last blocking
// approval can itself complete the cycle.
func (s *ApprovalService) void(ctx context.Context, r repository.Repositories, actor models.Actor, cycle *models.MonitoringCycle, approval *models.CycleApproval, reason string) error {
	if !actor.CanVoidApprovals {
		return models.NewAuthorizationError("void_approvals")
	}
	if strings.TrimSpace(reason) == "" {
		return models.NewValidationError("reason", "voiding an approval requires a reason")
	}
	if approval.Voided {
		return models.NewStateError("approval", string(approval.Status), "approval is already voided")
	}

	approval.Voided = true
	approval.VoidReason = reason
	approval.VoidedBy = &actor.ID
	if err := r.Approvals.Update(ctx, approval); err != nil {
		return err
	}

	return s.settle(ctx, r, cycle)
}

// actionable guards approve/reject: the approval must be pending and
// live, the cycle must be awaiting approval.
func actionable(cycle *models.MonitoringCycle, approval *models.CycleApproval) error {
	if approval.Voided {
		return models.NewStateError("approval", string(approval.Status), "approval is voided")
	}
	if approval.Status != models.ApprovalPending {
		return models.NewStateError("approval", string(approval.Status), "approval has already been decided")
	}
	if cycle.Status != models.StatusPendingApproval {
		return models.NewStateError("cycle", string(cycle.Status), "cycle is not awaiting approval")
	}
	return nil
}

// settle refreshes the cached approval counters and applies the
// finalize transition when every required, non-voided approval is
// approved.
func (s *ApprovalService) settle(ctx context.Context, r repository.Repositories, cycle *models.MonitoringCycle) error {
	approvals, err := r.Approvals.ListByCycle(ctx, cycle.CycleID)
	if err != nil {
		return err
	}
	_, progress := approvalLedger(approvals)
	cycle.RequiredApprovals = progress.Total
	cycle.CompletedApprovals = progress.Completed

	if cycle.Status == models.StatusPendingApproval && progress.Total > 0 && progress.Completed == progress.Total {
		now := time.Now().UTC()
		cycle.Status = models.StatusApproved
		cycle.CompletedAt = &now
		s.logger.Info("cycle finalized",
			zap.String("cycle_id", cycle.CycleID),
			zap.Int("approvals", progress.Total))
	}
	return r.Cycles.Update(ctx, cycle)
}

func (s *ApprovalService) refreshAndUpdate(ctx context.Context, r repository.Repositories, cycle *models.MonitoringCycle) error {
	approvals, err := r.Approvals.ListByCycle(ctx, cycle.CycleID)
	if err != nil {
		return err
	}
	_, progress := approvalLedger(approvals)
	cycle.RequiredApprovals = progress.Total
	cycle.CompletedApprovals = progress.Completed
	return r.Cycles.Update(ctx, cycle)
}
