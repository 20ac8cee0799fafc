package repository

import (
	"context"
	"database/sql"
	"fmt"

	"kpm-monitor/pkg/models"
)

// PostgresVersionRepository implements VersionRepository
type PostgresVersionRepository struct {
	q Querier
}

func NewPostgresVersionRepository(q Querier) *PostgresVersionRepository {
	return &PostgresVersionRepository{q: q}
}

func (r *PostgresVersionRepository) Create(ctx context.Context, version *models.PlanVersion) error {
	query := `
		INSERT INTO plan_versions (
			version_id, plan_id, version_number, name, description,
			effective_date, published_at, published_by, active
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7, $8)
		RETURNING published_at
	`

	err := r.q.QueryRowContext(ctx, query,
		version.VersionID,
		version.PlanID,
		version.VersionNumber,
		version.Name,
		version.Description,
		version.EffectiveDate,
		version.PublishedBy,
		version.Active,
	).Scan(&version.PublishedAt)
	if err != nil {
		return fmt.Errorf("failed to create version: %w", err)
	}

	metricQuery := `
		INSERT INTO version_metrics (
			id, version_id, metric_id, name, kind,
			yellow_min, yellow_max, red_min, red_max, guidance
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for i := range version.Metrics {
		m := &version.Metrics[i]
		if _, err := r.q.ExecContext(ctx, metricQuery,
			m.ID,
			m.VersionID,
			m.MetricID,
			m.Name,
			m.Kind,
			m.YellowMin,
			m.YellowMax,
			m.RedMin,
			m.RedMax,
			m.Guidance,
		); err != nil {
			return fmt.Errorf("failed to snapshot metric %s: %w", m.MetricID, err)
		}
	}

	return nil
}

const versionColumns = `
	version_id, plan_id, version_number, name, description,
	effective_date, published_at, published_by, active
`

func (r *PostgresVersionRepository) scanVersion(row interface{ Scan(...interface{}) error }) (*models.PlanVersion, error) {
	var v models.PlanVersion
	err := row.Scan(
		&v.VersionID,
		&v.PlanID,
		&v.VersionNumber,
		&v.Name,
		&v.Description,
		&v.EffectiveDate,
		&v.PublishedAt,
		&v.PublishedBy,
		&v.Active,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *PostgresVersionRepository) Get(ctx context.Context, planID, versionID string) (*models.PlanVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM plan_versions WHERE plan_id = $1 AND version_id = $2`

	v, err := r.scanVersion(r.q.QueryRowContext(ctx, query, planID, versionID))
	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("version", versionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	if err := r.loadMetrics(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *PostgresVersionRepository) GetByID(ctx context.Context, versionID string) (*models.PlanVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM plan_versions WHERE version_id = $1`

	v, err := r.scanVersion(r.q.QueryRowContext(ctx, query, versionID))
	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("version", versionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	if err := r.loadMetrics(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Active returns the plan's currently active version, or nil when the
// plan has never published one.
func (r *PostgresVersionRepository) Active(ctx context.Context, planID string) (*models.PlanVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM plan_versions WHERE plan_id = $1 AND active`

	v, err := r.scanVersion(r.q.QueryRowContext(ctx, query, planID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active version: %w", err)
	}

	if err := r.loadMetrics(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *PostgresVersionRepository) loadMetrics(ctx context.Context, v *models.PlanVersion) error {
	query := `
		SELECT id, version_id, metric_id, name, kind,
		       yellow_min, yellow_max, red_min, red_max, guidance
		FROM version_metrics
		WHERE version_id = $1
		ORDER BY name
	`

	rows, err := r.q.QueryContext(ctx, query, v.VersionID)
	if err != nil {
		return fmt.Errorf("failed to query version metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.VersionedMetric
		err := rows.Scan(
			&m.ID,
			&m.VersionID,
			&m.MetricID,
			&m.Name,
			&m.Kind,
			&m.YellowMin,
			&m.YellowMax,
			&m.RedMin,
			&m.RedMax,
			&m.Guidance,
		)
		if err != nil {
			return fmt.Errorf("failed to scan version metric: %w", err)
		}
		v.Metrics = append(v.Metrics, m)
	}

	return rows.Err()
}

func (r *PostgresVersionRepository) NextNumber(ctx context.Context, planID string) (int, error) {
	query := `SELECT COALESCE(MAX(version_number), 0) + 1 FROM plan_versions WHERE plan_id = $1`

	var next int
	if err := r.q.QueryRowContext(ctx, query, planID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to get next version number: %w", err)
	}
	return next, nil
}

// DeactivateAll clears the active flag on every version of the plan.
// Supersession touches only the flag; snapshot rows are never mutated.
func (r *PostgresVersionRepository) DeactivateAll(ctx context.Context, planID string) error {
	query := `UPDATE plan_versions SET active = FALSE WHERE plan_id = $1 AND active`

	if _, err := r.q.ExecContext(ctx, query, planID); err != nil {
		return fmt.Errorf("failed to deactivate versions: %w", err)
	}
	return nil
}
