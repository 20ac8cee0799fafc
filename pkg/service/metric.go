package service

import (
	"context"

	"kpm-monitor/pkg/evaluator"
	"kpm-monitor/pkg/models"
	"kpm-monitor/pkg/repository"

	"go.uber.org/zap"
)

// MetricService handles live metric definition writes. Catalog
// management mostly lives outside this engine; this surface exists so
// threshold bands are validated at write time, before a version can
// freeze them.
type MetricService struct {
	store  repository.TxRunner
	logger *zap.Logger
}

func NewMetricService(store repository.TxRunner, logger *zap.Logger) *MetricService {
	return &MetricService{store: store, logger: logger}
}

// Upsert creates or updates a live metric definition. Inverted or
// degenerate threshold bands are rejected here, never at evaluation.
func (s *MetricService) Upsert(ctx context.Context, actor models.Actor, planID, metricID string, req models.UpsertMetricRequest) (*models.MetricDefinition, error) {
	if !actor.CanManageMetrics {
		return nil, models.NewAuthorizationError("manage_metrics")
	}

	thresholds := models.Thresholds{
		YellowMin: req.YellowMin,
		YellowMax: req.YellowMax,
		RedMin:    req.RedMin,
		RedMax:    req.RedMax,
	}
	if err := evaluator.ValidateThresholds(thresholds); err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	def := &models.MetricDefinition{
		MetricID:   metricID,
		PlanID:     planID,
		Name:       req.Name,
		Kind:       req.Kind,
		Thresholds: thresholds,
		Guidance:   req.Guidance,
		Active:     active,
	}

	err := s.store.InTx(ctx, func(r repository.Repositories) error {
		if _, err := r.Plans.Get(ctx, planID); err != nil {
			return err
		}
		return r.Metrics.Upsert(ctx, def)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("metric definition saved",
		zap.String("plan_id", planID),
		zap.String("metric_id", metricID),
		zap.String("kind", string(def.Kind)))
	return def, nil
}
