package service

import (
	"context"
	"testing"

	"kpm-monitor/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestApproveLastScopeFinalizesCycle(t *testing.T) {
	f := newFixture()
	svc := NewApprovalService(f.store, f.logger)

	cycle := &models.MonitoringCycle{CycleID: "c1", PlanID: "plan-1", Status: models.StatusPendingApproval}
	approval := &models.CycleApproval{ApprovalID: "a2", CycleID: "c1", Scope: models.ScopeGlobal, Status: models.ApprovalPending}

	f.approvals.On("Get", mock.Anything, "a2").Return(approval, nil)
	f.cycles.On("GetForUpdate", mock.Anything, "c1").Return(cycle, nil)
	f.approvals.On("Update", mock.Anything, approval).Return(nil)
	f.approvals.On("ListByCycle", mock.Anything, "c1").Return([]models.CycleApproval{
		{ApprovalID: "a1", CycleID: "c1", Scope: models.ScopeRegional, Region: "EU", Status: models.ApprovalApproved},
		{ApprovalID: "a2", CycleID: "c1", Scope: models.ScopeGlobal, Status: models.ApprovalApproved},
	}, nil)
	f.cycles.On("Update", mock.Anything, cycle).Return(nil)

	out, err := svc.Act(context.Background(), fullActor(), "a2", models.ApprovalActionRequest{
		Action:   models.ApprovalActionApprove,
		Comments: "metrics within tolerance",
	})

	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, out.Status)
	require.NotNil(t, out.ApproverID)
	assert.Equal(t, "actor-1", *out.ApproverID)
	assert.NotNil(t, out.ActedAt)

	assert.Equal(t, models.StatusApproved, cycle.Status)
	assert.NotNil(t, cycle.CompletedAt)
	assert.Equal(t, 2, cycle.RequiredApprovals)
	assert.Equal(t, 2, cycle.CompletedApprovals)
}

func TestApproveWithScopesOutstandingLeavesCycleOpen(t *testing.T) {
	f := newFixture()
	svc := NewApprovalService(f.store, f.logger)

	cycle := &models.MonitoringCycle{CycleID: "c1", Status: models.StatusPendingApproval}
	approval := &models.CycleApproval{ApprovalID: "a1", CycleID: "c1", Scope: models.ScopeRegional, Region: "EU", Status: models.ApprovalPending}

	f.approvals.On("Get", mock.Anything, "a1").Return(approval, nil)
	f.cycles.On("GetForUpdate", mock.Anything, "c1").Return(cycle, nil)
	f.approvals.On("Update", mock.Anything, approval).Return(nil)
	f.approvals.On("ListByCycle", mock.Anything, "c1").Return([]models.CycleApproval{
		{ApprovalID: "a1", CycleID: "c1", Scope: models.ScopeRegional, Region: "EU", Status: models.ApprovalApproved},
		{ApprovalID: "a2", CycleID: "c1", Scope: models.ScopeGlobal, Status: models.ApprovalPending},
	}, nil)
	f.cycles.On("Update", mock.Anything, cycle).Return(nil)

	_, err := svc.Act(context.Background(), fullActor(), "a1", models.ApprovalActionRequest{Action: models.ApprovalActionApprove})

	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingApproval, cycle.Status)
	assert.Nil(t, cycle.CompletedAt)
	assert.Equal(t, 2, cycle.RequiredApprovals)
	assert.Equal(t, 1, cycle.CompletedApprovals)
}

func TestApproveAlreadyDecidedApproval(t *testing.T) {
	f := newFixture()
	svc := NewApprovalService(f.store, f.logger)

	cycle := &models.MonitoringCycle{CycleID: "c1", Status: models.StatusPendingApproval}
	approval := &models.CycleApproval{ApprovalID: "a1", CycleID: "c1", Scope: models.ScopeGlobal, Status: models.ApprovalApproved}

	f.approvals.On("Get", mock.Anything, "a1").Return(approval, nil)
	f.cycles.On("GetForUpdate", mock.Anything, "c1").Return(cycle, nil)

	_, err := svc.Act(context.Background(), fullActor(), "a1", models.ApprovalActionRequest{Action: models.ApprovalActionApprove})

	var serr *models.StateError
	require.ErrorAs(t, err, &serr)
	f.approvals.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestApproveOutsideApproverRegion(t *testing.T) {
	f := newFixture()
	svc := NewApprovalService(f.store, f.logger)

	cycle := &models.MonitoringCycle{CycleID: "c1", Status: models.StatusPendingApproval}
	approval := &models.CycleApproval{ApprovalID: "a1", CycleID: "c1", Scope: models.ScopeRegional, Region: "APAC", Status: models.ApprovalPending}

	f.approvals.On("Get", mock.Anything, "a1").Return(approval, nil)
	f.cycles.On("GetForUpdate", mock.Anything, "c1").Return(cycle, nil)

	_, err := svc.Act(context.Background(), fullActor(), "a1", models.ApprovalActionRequest{Action: models.ApprovalActionApprove})

	var aerr *models.AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, models.ApprovalPending, approval.Status)
}

func TestApproveWhileCycleNotAwaitingApproval(t *testing.T) {
	f := newFixture()
	svc := NewApprovalService(f.store, f.logger)

	cycle := &models.MonitoringCycle{CycleID: "c1", Status: models.StatusUnderReview}
	approval := &models.CycleApproval{ApprovalID: "a1", CycleID: "c1", Scope: models.ScopeGlobal, Status: models.ApprovalPending}

	f.approvals.On("Get", mock.Anything, "a1").Return(approval, nil)
	f.cycles.On("GetForUpdate", mock.Anything, "c1").Return(cycle, nil)

	_, err := svc.Act(context.Background(), fullActor(), "a1", models.ApprovalActionRequest{Action: models.ApprovalActionApprove})

	var serr *models.StateError
	require.ErrorAs(t, err, &serr)
}

func TestRejectReturnsCycleToReview(t *testing.T) {
	f := newFixture()
	svc := NewApprovalService(f.store, f.logger)

	cycle := &models.MonitoringCycle{CycleID: "c1", Status: models.StatusPendingApproval}
	approval := &models.CycleApproval{ApprovalID: "a2", CycleID: "c1", Scope: models.ScopeRegional, Region: "EU", Status: models.ApprovalPending}

	f.approvals.On("Get", mock.Anything, "a2").Return(approval, nil)
	f.cycles.On("GetForUpdate", mock.Anything, "c1").Return(cycle, nil)
	f.approvals.On("Update", mock.Anything, approval).Return(nil)
	f.approvals.On("ListByCycle", mock.Anything, "c1").Return([]models.CycleApproval{
		{ApprovalID: "a1", CycleID: "c1", Scope: models.ScopeGlobal, Status: models.ApprovalApproved},
		{ApprovalID: "a2", CycleID: "c1", Scope: models.ScopeRegional, Region: "EU", Status: models.ApprovalRejected},
	}, nil)
	f.cycles.On("Update", mock.Anything, cycle).Return(nil)

	out, err := svc.Act(context.Background(), fullActor(), "a2", models.ApprovalActionRequest{
		Action: models.ApprovalActionReject,
		Reason: "drift narrative does not cover Q1 retraining",
	})

	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, out.Status)
	assert.Equal(t, "drift narrative does not cover Q1 retraining", out.Comments)

	// The rejected row stays on record; the earlier global approval is
	// untouched and still counts toward the next round.
	assert.Equal(t, models.StatusUnderReview, cycle.Status)
	assert.Equal(t, 2, cycle.RequiredApprovals)
	assert.Equal(t, 1, cycle.CompletedApprovals)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture()
	svc := NewApprovalService(f.store, f.logger)

	cycle := &models.MonitoringCycle{CycleID: "c1", Status: models.StatusPendingApproval}
	approval := &models.CycleApproval{ApprovalID: "a1", CycleID: "c1", Scope: models.ScopeGlobal, Status: models.ApprovalPending}

	f.approvals.On("Get", mock.Anything, "a1").Return(approval, nil)
	f.cycles.On("GetForUpdate", mock.Anything, "c1").Return(cycle, nil)

	_, err := svc.Act(context.Background(), fullActor(), "a1", models.ApprovalActionRequest{Action: models.ApprovalActionReject})

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reason", verr.Field)
	assert.Equal(t, models.ApprovalPending, approval.Status)
}

func TestVoidLastBlockingApprovalFinalizes(t *testing.T) {
	f := newFixture()
	svc := NewApprovalService(f.store, f.logger)

	cycle := &models.MonitoringCycle{CycleID: "c1", Status: models.StatusPendingApproval}
	approval := &models.CycleApproval{ApprovalID: "a2", CycleID: "c1", Scope: models.ScopeRegional, Region: "EU", Status: models.ApprovalPending}

	f.approvals.On("Get", mock.Anything, "a2").Return(approval, nil)
	f.cycles.On("GetForUpdate", mock.Anything, "c1").Return(cycle, nil)
	f.approvals.On("Update", mock.Anything, approval).Return(nil)
	f.approvals.On("ListByCycle", mock.Anything, "c1").Return([]models.CycleApproval{
		{ApprovalID: "a1", CycleID: "c1", Scope: models.ScopeGlobal, Status: models.ApprovalApproved},
		{ApprovalID: "a2", CycleID: "c1", Scope: models.ScopeRegional, Region: "EU", Status: models.ApprovalPending, Voided: true},
	}, nil)
	f.cycles.On("Update", mock.Anything, cycle).Return(nil)

	out, err := svc.Act(context.Background(), fullActor(), "a2", models.ApprovalActionRequest{
		Action: models.ApprovalActionVoid,
		Reason: "EU model retired mid-cycle",
	})

	require.NoError(t, err)
	assert.True(t, out.Voided)
	assert.Equal(t, "EU model retired mid-cycle", out.VoidReason)
	require.NotNil(t, out.VoidedBy)
	assert.Equal(t, "actor-1", *out.VoidedBy)

	// The voided requirement drops out of the accounting entirely.
	assert.Equal(t, models.StatusApproved, cycle.Status)
	assert.Equal(t, 1, cycle.RequiredApprovals)
	assert.Equal(t, 1, cycle.CompletedApprovals)
}

func TestVoidRequiresPrivilege(t *testing.T) {
	f := newFixture()
	svc := NewApprovalService(f.store, f.logger)

	cycle := &models.MonitoringCycle{CycleID: "c1", Status: models.StatusPendingApproval}
	approval := &models.CycleApproval{ApprovalID: "a1", CycleID: "c1", Scope: models.ScopeGlobal, Status: models.ApprovalPending}

	f.approvals.On("Get", mock.Anything, "a1").Return(approval, nil)
	f.cycles.On("GetForUpdate", mock.Anything, "c1").Return(cycle, nil)

	actor := fullActor()
	actor.CanVoidApprovals = false
	_, err := svc.Act(context.Background(), actor, "a1", models.ApprovalActionRequest{Action: models.ApprovalActionVoid, Reason: "cleanup"})

	var aerr *models.AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.False(t, approval.Voided)
}

func TestVoidAlreadyVoidedApproval(t *testing.T) {
	f := newFixture()
	svc := NewApprovalService(f.store, f.logger)

	cycle := &models.MonitoringCycle{CycleID: "c1", Status: models.StatusPendingApproval}
	approval := &models.CycleApproval{ApprovalID: "a1", CycleID: "c1", Scope: models.ScopeGlobal, Status: models.ApprovalPending, Voided: true}

	f.approvals.On("Get", mock.Anything, "a1").Return(approval, nil)
	f.cycles.On("GetForUpdate", mock.Anything, "c1").Return(cycle, nil)

	_, err := svc.Act(context.Background(), fullActor(), "a1", models.ApprovalActionRequest{Action: models.ApprovalActionVoid, Reason: "again"})

	var serr *models.StateError
	require.ErrorAs(t, err, &serr)
	f.approvals.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestActUnknownAction(t *testing.T) {
	f := newFixture()
	svc := NewApprovalService(f.store, f.logger)

	cycle := &models.MonitoringCycle{CycleID: "c1", Status: models.StatusPendingApproval}
	approval := &models.CycleApproval{ApprovalID: "a1", CycleID: "c1", Scope: models.ScopeGlobal, Status: models.ApprovalPending}

	f.approvals.On("Get", mock.Anything, "a1").Return(approval, nil)
	f.cycles.On("GetForUpdate", mock.Anything, "c1").Return(cycle, nil)

	_, err := svc.Act(context.Background(), fullActor(), "a1", models.ApprovalActionRequest{Action: "escalate"})

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}
