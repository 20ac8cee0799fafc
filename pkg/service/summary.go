package service

import (
	"context"
	"sort"

	"kpm-monitor/pkg/models"
	"kpm-monitor/pkg/repository"
)

// SummaryService rolls up result classifications across a plan's most
// recently approved cycles.
type SummaryService struct {
	store repository.TxRunner
	opts  Options
}

func NewSummaryService(store repository.TxRunner, opts Options) *SummaryService {
	return &SummaryService{store: store, opts: opts.withDefaults()}
}

// Performance aggregates classifications per metric over the last
// cycleCount approved cycles of the plan.
func (s *SummaryService) Performance(ctx context.Context, planID string, cycleCount int) (*models.PerformanceSummary, error) {
	if cycleCount <= 0 {
		cycleCount = s.opts.SummaryCycles
	}

	r := s.store.Repos()
	if _, err := r.Plans.Get(ctx, planID); err != nil {
		return nil, err
	}

	cycles, err := r.Cycles.RecentClosed(ctx, planID, cycleCount)
	if err != nil {
		return nil, err
	}

	cycleIDs := make([]string, 0, len(cycles))
	for _, c := range cycles {
		cycleIDs = append(cycleIDs, c.CycleID)
	}

	results, err := r.Results.ListByCycles(ctx, cycleIDs)
	if err != nil {
		return nil, err
	}

	// Metric names come from the live catalog; metrics that only exist
	// in old version snapshots fall back to their identifier.
	names := make(map[string]string)
	defs, err := r.Metrics.ListByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	for _, d := range defs {
		names[d.MetricID] = d.Name
	}

	byMetric := make(map[string]*models.MetricSummary)
	summary := &models.PerformanceSummary{PlanID: planID, Cycles: len(cycles)}

	for _, res := range results {
		m, ok := byMetric[res.MetricID]
		if !ok {
			name := names[res.MetricID]
			if name == "" {
				name = res.MetricID
			}
			m = &models.MetricSummary{MetricID: res.MetricID, MetricName: name}
			byMetric[res.MetricID] = m
		}
		tally(m, &summary.Totals, res)
	}

	for _, m := range byMetric {
		summary.ByMetric = append(summary.ByMetric, *m)
	}
	sort.Slice(summary.ByMetric, func(i, j int) bool {
		return summary.ByMetric[i].MetricName < summary.ByMetric[j].MetricName
	})

	return summary, nil
}

func tally(m, totals *models.MetricSummary, res models.MetricResult) {
	if res.Skipped || res.Classification == nil {
		m.SkipCount++
		totals.SkipCount++
		return
	}
	switch *res.Classification {
	case models.ClassGreen:
		m.GreenCount++
		totals.GreenCount++
	case models.ClassYellow:
		m.YellowCount++
		totals.YellowCount++
	case models.ClassRed:
		m.RedCount++
		totals.RedCount++
	}
}
