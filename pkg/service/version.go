package service

import (
	"context"
	"fmt"
	"time"

	"kpm-monitor/pkg/models"
	"kpm-monitor/pkg/repository"

	"go.uber.org/zap"
)

// VersionService publishes immutable snapshots of a plan's active
// metric configuration and tracks version lineage.
type VersionService struct {
	store  repository.TxRunner
	logger *zap.Logger
}

func NewVersionService(store repository.TxRunner, logger *zap.Logger) *VersionService {
	return &VersionService{store: store, logger: logger}
}

// Publish freezes every active metric definition of the plan into a new
// version with the next sequential number, marks it active, and
// supersedes the previously active version. Supersession only clears
// the active flag; prior snapshots stay retrievable and keep governing
// cycles already bound to them.
func (s *VersionService) Publish(ctx context.Context, actor models.Actor, planID string, req models.PublishVersionRequest) (*models.PlanVersion, error) {
	if !actor.CanPublishVersion {
		return nil, models.NewAuthorizationError("publish_version")
	}

	var published *models.PlanVersion
	err := s.store.InTx(ctx, func(r repository.Repositories) error {
		if _, err := r.Plans.Get(ctx, planID); err != nil {
			return err
		}

		metrics, err := r.Metrics.ActiveByPlan(ctx, planID)
		if err != nil {
			return err
		}
		if len(metrics) == 0 {
			return models.NewValidationError("metrics", "plan has no active metrics to publish")
		}

		number, err := r.Versions.NextNumber(ctx, planID)
		if err != nil {
			return err
		}
		if err := r.Versions.DeactivateAll(ctx, planID); err != nil {
			return err
		}

		name := req.Name
		if name == "" {
			name = fmt.Sprintf("v%d", number)
		}
		effective := time.Now().UTC().Truncate(24 * time.Hour)
		if req.EffectiveDate != nil {
			effective = *req.EffectiveDate
		}

		version := &models.PlanVersion{
			VersionID:     repository.GenerateID(),
			PlanID:        planID,
			VersionNumber: number,
			Name:          name,
			Description:   req.Description,
			EffectiveDate: effective,
			PublishedBy:   actor.ID,
			Active:        true,
		}
		for _, m := range metrics {
			version.Metrics = append(version.Metrics, models.VersionedMetric{
				ID:         repository.GenerateID(),
				VersionID:  version.VersionID,
				MetricID:   m.MetricID,
				Name:       m.Name,
				Kind:       m.Kind,
				Thresholds: m.Thresholds,
				Guidance:   m.Guidance,
			})
		}

		if err := r.Versions.Create(ctx, version); err != nil {
			return err
		}
		published = version
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("plan version published",
		zap.String("plan_id", planID),
		zap.String("version_id", published.VersionID),
		zap.Int("version_number", published.VersionNumber),
		zap.Int("metrics", len(published.Metrics)))
	return published, nil
}

// Get returns a published snapshot read-only. Published versions have
// no update or delete operation.
func (s *VersionService) Get(ctx context.Context, planID, versionID string) (*models.PlanVersion, error) {
	return s.store.Repos().Versions.Get(ctx, planID, versionID)
}
