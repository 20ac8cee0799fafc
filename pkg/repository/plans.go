package repository

import (
	"context"
	"database/sql"
	"fmt"

	"kpm-monitor/pkg/models"
)

// PostgresPlanRepository implements PlanRepository
type PostgresPlanRepository struct {
	q Querier
}

func NewPostgresPlanRepository(q Querier) *PostgresPlanRepository {
	return &PostgresPlanRepository{q: q}
}

func (r *PostgresPlanRepository) Get(ctx context.Context, planID string) (*models.Plan, error) {
	query := `
		SELECT plan_id, name, active, created_at
		FROM plans
		WHERE plan_id = $1
	`

	var plan models.Plan
	err := r.q.QueryRowContext(ctx, query, planID).Scan(
		&plan.PlanID,
		&plan.Name,
		&plan.Active,
		&plan.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("plan", planID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return &plan, nil
}

// PostgresMetricRepository implements MetricRepository
type PostgresMetricRepository struct {
	q Querier
}

func NewPostgresMetricRepository(q Querier) *PostgresMetricRepository {
	return &PostgresMetricRepository{q: q}
}

const metricColumns = `
	metric_id, plan_id, name, kind,
	yellow_min, yellow_max, red_min, red_max,
	guidance, active, created_at, updated_at
`

func (r *PostgresMetricRepository) scanMetric(row interface{ Scan(...interface{}) error }) (*models.MetricDefinition, error) {
	var def models.MetricDefinition
	err := row.Scan(
		&def.MetricID,
		&def.PlanID,
		&def.Name,
		&def.Kind,
		&def.YellowMin,
		&def.YellowMax,
		&def.RedMin,
		&def.RedMax,
		&def.Guidance,
		&def.Active,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *PostgresMetricRepository) Get(ctx context.Context, metricID string) (*models.MetricDefinition, error) {
	query := `SELECT ` + metricColumns + ` FROM metric_definitions WHERE metric_id = $1`

	def, err := r.scanMetric(r.q.QueryRowContext(ctx, query, metricID))
	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("metric", metricID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metric: %w", err)
	}
	return def, nil
}

func (r *PostgresMetricRepository) ActiveByPlan(ctx context.Context, planID string) ([]models.MetricDefinition, error) {
	query := `SELECT ` + metricColumns + ` FROM metric_definitions WHERE plan_id = $1 AND active ORDER BY name`
	return r.list(ctx, query, planID)
}

func (r *PostgresMetricRepository) ListByPlan(ctx context.Context, planID string) ([]models.MetricDefinition, error) {
	query := `SELECT ` + metricColumns + ` FROM metric_definitions WHERE plan_id = $1 ORDER BY name`
	return r.list(ctx, query, planID)
}

func (r *PostgresMetricRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.MetricDefinition, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var defs []models.MetricDefinition
	for rows.Next() {
		def, err := r.scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		defs = append(defs, *def)
	}

	return defs, rows.Err()
}

func (r *PostgresMetricRepository) Upsert(ctx context.Context, def *models.MetricDefinition) error {
	query := `
		INSERT INTO metric_definitions (
			metric_id, plan_id, name, kind,
			yellow_min, yellow_max, red_min, red_max,
			guidance, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (metric_id) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			yellow_min = EXCLUDED.yellow_min,
			yellow_max = EXCLUDED.yellow_max,
			red_min = EXCLUDED.red_min,
			red_max = EXCLUDED.red_max,
			guidance = EXCLUDED.guidance,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRowContext(ctx, query,
		def.MetricID,
		def.PlanID,
		def.Name,
		def.Kind,
		def.YellowMin,
		def.YellowMax,
		def.RedMin,
		def.RedMax,
		def.Guidance,
		def.Active,
	).Scan(&def.CreatedAt, &def.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert metric: %w", err)
	}
	return nil
}

// PostgresModelRepository implements ModelRepository
type PostgresModelRepository struct {
	q Querier
}

func NewPostgresModelRepository(q Querier) *PostgresModelRepository {
	return &PostgresModelRepository{q: q}
}

func (r *PostgresModelRepository) RegionsForPlan(ctx context.Context, planID string) ([]string, error) {
	query := `
		SELECT DISTINCT region
		FROM monitored_models
		WHERE plan_id = $1 AND active AND region <> ''
		ORDER BY region
	`

	rows, err := r.q.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query model regions: %w", err)
	}
	defer rows.Close()

	var regions []string
	for rows.Next() {
		var region string
		if err := rows.Scan(&region); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		regions = append(regions, region)
	}

	return regions, rows.Err()
}
