package service

import (
	"time"

	"kpm-monitor/pkg/models"
	"kpm-monitor/pkg/repository"

	"go.uber.org/zap"
)

// Options configures engine behavior that is not fixed by domain
// semantics. Zero values fall back to defaults.
type Options struct {
	SubmissionDueDays int // days after period end until results are due
	ReportDueDays     int // days after period end until the report is due
	SummaryCycles     int // default cycle count for performance summaries
}

func (o Options) withDefaults() Options {
	if o.SubmissionDueDays <= 0 {
		o.SubmissionDueDays = 10
	}
	if o.ReportDueDays <= 0 {
		o.ReportDueDays = 20
	}
	if o.SummaryCycles <= 0 {
		o.SummaryCycles = 6
	}
	return o
}

// Services bundles the engine's components over one store
type Services struct {
	Metrics   *MetricService
	Versions  *VersionService
	Cycles    *CycleService
	Results   *ResultService
	Approvals *ApprovalService
	Summary   *SummaryService
}

func New(store repository.TxRunner, logger *zap.Logger, opts Options) *Services {
	opts = opts.withDefaults()
	cycles := NewCycleService(store, logger, opts)
	return &Services{
		Metrics:   NewMetricService(store, logger),
		Versions:  NewVersionService(store, logger),
		Cycles:    cycles,
		Results:   NewResultService(store, logger),
		Approvals: NewApprovalService(store, logger),
		Summary:   NewSummaryService(store, opts),
	}
}

// DueDates computes submission and report due dates from the period
// end. Pure; there is no scheduler behind it.
func DueDates(periodEnd time.Time, opts Options) (submission, report time.Time) {
	opts = opts.withDefaults()
	submission = periodEnd.AddDate(0, 0, opts.SubmissionDueDays)
	report = periodEnd.AddDate(0, 0, opts.ReportDueDays)
	return submission, report
}

// approvalLedger reduces a cycle's approval rows to the latest
// non-voided entry per required scope. Rejected entries stay on record
// for audit, but once a fresh approval is created for the same scope the
// newer row is the one that counts.
func approvalLedger(approvals []models.CycleApproval) (map[string]models.CycleApproval, models.ApprovalProgress) {
	latest := make(map[string]models.CycleApproval)
	for _, a := range approvals { // rows arrive in creation order
		if a.Voided {
			continue
		}
		latest[a.ScopeKey()] = a
	}

	progress := models.ApprovalProgress{Total: len(latest)}
	for _, a := range latest {
		if a.Status == models.ApprovalApproved {
			progress.Completed++
		}
	}
	return latest, progress
}

// refreshClassificationCounts recomputes the cycle's cached result
// counters from the result rows.
func refreshClassificationCounts(cycle *models.MonitoringCycle, results []models.MetricResult) {
	cycle.GreenCount, cycle.YellowCount, cycle.RedCount = 0, 0, 0
	for _, r := range results {
		if r.Classification == nil {
			continue
		}
		switch *r.Classification {
		case models.ClassGreen:
			cycle.GreenCount++
		case models.ClassYellow:
			cycle.YellowCount++
		case models.ClassRed:
			cycle.RedCount++
		}
	}
}
