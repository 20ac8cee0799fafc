package service

import (
	"context"
	"strings"

	"kpm-monitor/pkg/evaluator"
	"kpm-monitor/pkg/models"
	"kpm-monitor/pkg/repository"

	"go.uber.org/zap"
)

// ResultService records, updates, and deletes per-metric results for a
// cycle. The stored classification is always derived here from the
// bound configuration, never trusted from the caller.
type ResultService struct {
	store  repository.TxRunner
	logger *zap.Logger
}

func NewResultService(store repository.TxRunner, logger *zap.Logger) *ResultService {
	return &ResultService{store: store, logger: logger}
}

// Upsert writes the single result for (cycle, metric). Permitted only
// while the cycle is in DATA_COLLECTION or UNDER_REVIEW.
func (s *ResultService) Upsert(ctx context.Context, actor models.Actor, cycleID, metricID string, req models.UpsertResultRequest) (*models.MetricResult, error) {
	if !actor.CanRecordResults {
		return nil, models.NewAuthorizationError("record_results")
	}

	var out *models.MetricResult
	err := s.store.InTx(ctx, func(r repository.Repositories) error {
		cycle, err := r.Cycles.GetForUpdate(ctx, cycleID)
		if err != nil {
			return err
		}
		if err := resultsOpen(ctx, r, cycle); err != nil {
			return err
		}

		metric, err := resolveMetric(ctx, r, cycle, metricID)
		if err != nil {
			return err
		}

		result := &models.MetricResult{
			ResultID:   repository.GenerateID(),
			CycleID:    cycleID,
			MetricID:   metricID,
			Narrative:  req.Narrative,
			Skipped:    req.Skipped,
			RecordedBy: actor.ID,
		}

		if req.Skipped {
			if strings.TrimSpace(req.Narrative) == "" {
				return models.NewValidationError("narrative", "skipping a metric requires an explanation")
			}
			// skipped results carry no value and no classification
		} else {
			result.Value = req.Value
			result.OutcomeCode = req.OutcomeCode
			classification, err := evaluator.Classify(metric.kind, metric.thresholds, req.Value, req.OutcomeCode)
			if err != nil {
				return err
			}
			result.Classification = classification
		}

		if err := r.Results.Upsert(ctx, result); err != nil {
			return err
		}

		results, err := r.Results.ListByCycle(ctx, cycleID)
		if err != nil {
			return err
		}
		refreshClassificationCounts(cycle, results)
		if err := r.Cycles.Update(ctx, cycle); err != nil {
			return err
		}

		out = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("result recorded",
		zap.String("cycle_id", cycleID),
		zap.String("metric_id", metricID),
		zap.Bool("skipped", out.Skipped))
	return out, nil
}

// Delete removes a result. Permitted only while the owning cycle still
// accepts result entry.
func (s *ResultService) Delete(ctx context.Context, actor models.Actor, resultID string) error {
	if !actor.CanRecordResults {
		return models.NewAuthorizationError("record_results")
	}

	return s.store.InTx(ctx, func(r repository.Repositories) error {
		result, err := r.Results.Get(ctx, resultID)
		if err != nil {
			return err
		}
		cycle, err := r.Cycles.GetForUpdate(ctx, result.CycleID)
		if err != nil {
			return err
		}
		if err := resultsOpen(ctx, r, cycle); err != nil {
			return err
		}

		if err := r.Results.Delete(ctx, resultID); err != nil {
			return err
		}

		results, err := r.Results.ListByCycle(ctx, cycle.CycleID)
		if err != nil {
			return err
		}
		refreshClassificationCounts(cycle, results)
		return r.Cycles.Update(ctx, cycle)
	})
}

// resultsOpen checks that the cycle's status permits result entry, and
// that a live-metrics cycle still qualifies for the fallback (the plan
// must not have published a version in the meantime).
func resultsOpen(ctx context.Context, r repository.Repositories, cycle *models.MonitoringCycle) error {
	if cycle.Status != models.StatusDataCollection && cycle.Status != models.StatusUnderReview {
		return models.NewStateError("cycle", string(cycle.Status), "results may only change during data collection or review")
	}

	if cycle.VersionID == nil {
		active, err := r.Versions.Active(ctx, cycle.PlanID)
		if err != nil {
			return err
		}
		if active != nil {
			return models.NewStateError("cycle", string(cycle.Status),
				"plan has published a version; this unversioned cycle no longer accepts results")
		}
	}
	return nil
}

// resolveMetric finds the metric's evaluation configuration in the
// cycle's bound version, or in the live definitions for an unversioned
// cycle.
func resolveMetric(ctx context.Context, r repository.Repositories, cycle *models.MonitoringCycle, metricID string) (*requiredMetric, error) {
	metrics, err := requiredMetrics(ctx, r, cycle)
	if err != nil {
		return nil, err
	}
	for i := range metrics {
		if metrics[i].id == metricID {
			return &metrics[i], nil
		}
	}
	return nil, models.NewNotFoundError("metric", metricID)
}
