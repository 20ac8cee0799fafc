package models

import (
	"time"
)

// EvaluationKind defines how a metric's submitted result is classified
type EvaluationKind string

const (
	KindQuantitative EvaluationKind = "QUANTITATIVE" // numeric value vs threshold bands
	KindQualitative  EvaluationKind = "QUALITATIVE"  // operator selects an outcome per guidance
	KindOutcomeOnly  EvaluationKind = "OUTCOME_ONLY" // operator selects an outcome, no guidance text
)

// Classification is the derived risk rating of a metric result
type Classification string

const (
	ClassGreen  Classification = "GREEN"
	ClassYellow Classification = "YELLOW"
	ClassRed    Classification = "RED"
)

// ValidClassification reports whether s is a recognized outcome code.
func ValidClassification(s string) bool {
	switch Classification(s) {
	case ClassGreen, ClassYellow, ClassRed:
		return true
	}
	return false
}

// CycleStatus is the lifecycle state of a monitoring cycle
type CycleStatus string

const (
	StatusPending         CycleStatus = "PENDING"
	StatusDataCollection  CycleStatus = "DATA_COLLECTION"
	StatusUnderReview     CycleStatus = "UNDER_REVIEW"
	StatusPendingApproval CycleStatus = "PENDING_APPROVAL"
	StatusApproved        CycleStatus = "APPROVED"  // terminal
	StatusCancelled       CycleStatus = "CANCELLED" // terminal
)

// Terminal reports whether no further transitions are possible.
func (s CycleStatus) Terminal() bool {
	return s == StatusApproved || s == StatusCancelled
}

// TransitionAction is a requested cycle transition
type TransitionAction string

const (
	ActionStart           TransitionAction = "start"
	ActionSubmit          TransitionAction = "submit"
	ActionRequestApproval TransitionAction = "request-approval"
	ActionCancel          TransitionAction = "cancel"
)

// ApprovalScope distinguishes global sign-off from per-region sign-off
type ApprovalScope string

const (
	ScopeGlobal   ApprovalScope = "GLOBAL"
	ScopeRegional ApprovalScope = "REGIONAL"
)

// ApprovalStatus is the state of a single approval requirement
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// ApprovalAction is a requested action on an approval
type ApprovalAction string

const (
	ApprovalActionApprove ApprovalAction = "approve"
	ApprovalActionReject  ApprovalAction = "reject"
	ApprovalActionVoid    ApprovalAction = "void"
)

// Plan is a monitoring plan owning metric definitions and cycles
type Plan struct {
	PlanID    string    `json:"plan_id" db:"plan_id"`
	Name      string    `json:"name" db:"name"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MonitoredModel is a model covered by a plan; its deployment region
// drives the regional approval requirements of the plan's cycles.
type MonitoredModel struct {
	ModelID string `json:"model_id" db:"model_id"`
	PlanID  string `json:"plan_id" db:"plan_id"`
	Name    string `json:"name" db:"name"`
	Region  string `json:"region" db:"region"`
	Active  bool   `json:"active" db:"active"`
}

// Thresholds are the nullable classification bounds of a quantitative
// metric. A nil bound means that side of the band is open.
type Thresholds struct {
	YellowMin *float64 `json:"yellow_min" db:"yellow_min"`
	YellowMax *float64 `json:"yellow_max" db:"yellow_max"`
	RedMin    *float64 `json:"red_min" db:"red_min"`
	RedMax    *float64 `json:"red_max" db:"red_max"`
}

// MetricDefinition is a plan's live KPM configuration, mutable until
// frozen into a version
type MetricDefinition struct {
	MetricID string         `json:"metric_id" db:"metric_id"`
	PlanID   string         `json:"plan_id" db:"plan_id"`
	Name     string         `json:"name" db:"name"`
	Kind     EvaluationKind `json:"kind" db:"kind"`
	Thresholds
	Guidance  string    `json:"guidance" db:"guidance"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PlanVersion is an immutable snapshot of a plan's active metrics.
// Created once at publish time, never mutated; cycles bind to it.
type PlanVersion struct {
	VersionID     string            `json:"version_id" db:"version_id"`
	PlanID        string            `json:"plan_id" db:"plan_id"`
	VersionNumber int               `json:"version_number" db:"version_number"`
	Name          string            `json:"name" db:"name"`
	Description   string            `json:"description" db:"description"`
	EffectiveDate time.Time         `json:"effective_date" db:"effective_date"`
	PublishedAt   time.Time         `json:"published_at" db:"published_at"`
	PublishedBy   string            `json:"published_by" db:"published_by"`
	Active        bool              `json:"active" db:"active"`
	Metrics       []VersionedMetric `json:"metrics"`
}

// VersionedMetric is one metric's frozen configuration inside a
// PlanVersion. MetricID references the live definition it was copied
// from; the copied fields never change after publish.
type VersionedMetric struct {
	ID        string         `json:"id" db:"id"`
	VersionID string         `json:"version_id" db:"version_id"`
	MetricID  string         `json:"metric_id" db:"metric_id"`
	Name      string         `json:"name" db:"name"`
	Kind      EvaluationKind `json:"kind" db:"kind"`
	Thresholds
	Guidance string `json:"guidance" db:"guidance"`
}

// MonitoringCycle is one evaluation period for a plan
type MonitoringCycle struct {
	CycleID   string      `json:"cycle_id" db:"cycle_id"`
	PlanID    string      `json:"plan_id" db:"plan_id"`
	VersionID *string     `json:"version_id" db:"version_id"` // nil until start; stays nil in live-metrics mode
	Status    CycleStatus `json:"status" db:"status"`

	PeriodStart   time.Time `json:"period_start" db:"period_start"`
	PeriodEnd     time.Time `json:"period_end" db:"period_end"`
	SubmissionDue time.Time `json:"submission_due" db:"submission_due"`
	ReportDue     time.Time `json:"report_due" db:"report_due"`
	Notes         string    `json:"notes" db:"notes"`

	// Cached counters, refreshed in the same transaction as every
	// result/approval mutation. The rows are the source of truth.
	GreenCount         int `json:"green_count" db:"green_count"`
	YellowCount        int `json:"yellow_count" db:"yellow_count"`
	RedCount           int `json:"red_count" db:"red_count"`
	RequiredApprovals  int `json:"required_approvals" db:"required_approvals"`
	CompletedApprovals int `json:"completed_approvals" db:"completed_approvals"`

	SubmittedBy  *string    `json:"submitted_by" db:"submitted_by"`
	SubmittedAt  *time.Time `json:"submitted_at" db:"submitted_at"`
	CompletedAt  *time.Time `json:"completed_at" db:"completed_at"`
	CancelledBy  *string    `json:"cancelled_by" db:"cancelled_by"`
	CancelledAt  *time.Time `json:"cancelled_at" db:"cancelled_at"`
	CancelReason string     `json:"cancel_reason" db:"cancel_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LiveMetrics reports whether the cycle evaluates against the plan's
// live (unversioned) metric definitions. True only for cycles started
// before the plan ever published a version.
func (c *MonitoringCycle) LiveMetrics() bool {
	return c.Status != StatusPending && c.VersionID == nil
}

// MetricResult is one submitted value per (cycle, metric) pair
type MetricResult struct {
	ResultID       string          `json:"result_id" db:"result_id"`
	CycleID        string          `json:"cycle_id" db:"cycle_id"`
	MetricID       string          `json:"metric_id" db:"metric_id"`
	Value          *float64        `json:"value" db:"value"`
	OutcomeCode    *string         `json:"outcome_code" db:"outcome_code"`
	Narrative      string          `json:"narrative" db:"narrative"`
	Skipped        bool            `json:"skipped" db:"skipped"`
	Classification *Classification `json:"classification" db:"classification"`
	RecordedBy     string          `json:"recorded_by" db:"recorded_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// CycleApproval is one approval requirement for a cycle. Rows are never
// deleted; voiding is the only retraction mechanism.
type CycleApproval struct {
	ApprovalID string         `json:"approval_id" db:"approval_id"`
	CycleID    string         `json:"cycle_id" db:"cycle_id"`
	Scope      ApprovalScope  `json:"scope" db:"scope"`
	Region     string         `json:"region" db:"region"` // empty for GLOBAL
	Status     ApprovalStatus `json:"status" db:"status"`
	ApproverID *string        `json:"approver_id" db:"approver_id"`
	Comments   string         `json:"comments" db:"comments"`
	ActedAt    *time.Time     `json:"acted_at" db:"acted_at"`
	Voided     bool           `json:"voided" db:"voided"`
	VoidReason string         `json:"void_reason" db:"void_reason"`
	VoidedBy   *string        `json:"voided_by" db:"voided_by"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// ScopeKey identifies the approval requirement this row satisfies
// (GLOBAL, or REGIONAL:<region>).
func (a CycleApproval) ScopeKey() string {
	if a.Scope == ScopeGlobal {
		return string(ScopeGlobal)
	}
	return string(ScopeRegional) + ":" + a.Region
}

// Actor is the opaque capability set supplied by the external identity
// collaborator. The engine never derives roles itself.
type Actor struct {
	ID                 string   `json:"id"`
	CanManageMetrics   bool     `json:"can_manage_metrics"`
	CanPublishVersion  bool     `json:"can_publish_version"`
	CanCreateCycle     bool     `json:"can_create_cycle"`
	CanStartCycle      bool     `json:"can_start_cycle"`
	CanSubmitCycle     bool     `json:"can_submit_cycle"`
	CanRequestApproval bool     `json:"can_request_approval"`
	CanCancelCycle     bool     `json:"can_cancel_cycle"`
	CanRecordResults   bool     `json:"can_record_results"`
	CanVoidApprovals   bool     `json:"can_void_approvals"`
	GlobalApprover     bool     `json:"global_approver"`
	ApproverRegions    []string `json:"approver_regions"`
}

// CanApproveRegion reports whether the actor may act on a REGIONAL
// approval for the given region.
func (a Actor) CanApproveRegion(region string) bool {
	for _, r := range a.ApproverRegions {
		if r == region {
			return true
		}
	}
	return false
}

// CanApprove reports whether the actor may approve/reject the given scope.
func (a Actor) CanApprove(scope ApprovalScope, region string) bool {
	if scope == ScopeGlobal {
		return a.GlobalApprover
	}
	return a.CanApproveRegion(region)
}

// ApprovalProgress is the derived completion state of a cycle's
// approvals: completed / total over required, non-voided entries.
type ApprovalProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// CycleDetail is the full read model of a cycle
type CycleDetail struct {
	Cycle       MonitoringCycle  `json:"cycle"`
	LiveMetrics bool             `json:"live_metrics"`
	Results     []MetricResult   `json:"results"`
	Approvals   []CycleApproval  `json:"approvals"`
	Progress    ApprovalProgress `json:"approval_progress"`
}

// MetricSummary aggregates one metric's classifications across cycles
type MetricSummary struct {
	MetricID    string `json:"metric_id"`
	MetricName  string `json:"metric_name"`
	GreenCount  int    `json:"green_count"`
	YellowCount int    `json:"yellow_count"`
	RedCount    int    `json:"red_count"`
	SkipCount   int    `json:"skip_count"`
}

// PerformanceSummary is the per-plan rollup over recent closed cycles
type PerformanceSummary struct {
	PlanID   string          `json:"plan_id"`
	Cycles   int             `json:"cycles"`
	ByMetric []MetricSummary `json:"by_metric"`
	Totals   MetricSummary   `json:"totals"`
}

// PublishVersionRequest is the API payload for publishing a version
type PublishVersionRequest struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	EffectiveDate *time.Time `json:"effective_date"`
}

// UpsertMetricRequest is the API payload for metric definition writes
type UpsertMetricRequest struct {
	Name      string         `json:"name" validate:"required"`
	Kind      EvaluationKind `json:"kind" validate:"required,oneof=QUANTITATIVE QUALITATIVE OUTCOME_ONLY"`
	YellowMin *float64       `json:"yellow_min"`
	YellowMax *float64       `json:"yellow_max"`
	RedMin    *float64       `json:"red_min"`
	RedMax    *float64       `json:"red_max"`
	Guidance  string         `json:"guidance"`
	Active    *bool          `json:"active"`
}

// CreateCycleRequest is the API payload for cycle creation
type CreateCycleRequest struct {
	PeriodStart   time.Time  `json:"period_start" validate:"required"`
	PeriodEnd     time.Time  `json:"period_end" validate:"required"`
	SubmissionDue *time.Time `json:"submission_due"`
	ReportDue     *time.Time `json:"report_due"`
	Notes         string     `json:"notes"`
}

// TransitionRequest is the API payload for a cycle transition
type TransitionRequest struct {
	Action TransitionAction `json:"action" validate:"required,oneof=start submit request-approval cancel"`
	Reason string           `json:"reason"`
}

// UpsertResultRequest is the API payload for recording a metric result
type UpsertResultRequest struct {
	Value       *float64 `json:"value"`
	OutcomeCode *string  `json:"outcome_code"`
	Narrative   string   `json:"narrative"`
	Skipped     bool     `json:"skipped"`
}

// ApprovalActionRequest is the API payload for acting on an approval
type ApprovalActionRequest struct {
	Action   ApprovalAction `json:"action" validate:"required,oneof=approve reject void"`
	Comments string         `json:"comments"`
	Reason   string         `json:"reason"`
}
