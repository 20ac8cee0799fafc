package repository

import (
	"context"
	"database/sql"
	"fmt"

	"kpm-monitor/pkg/models"

	"github.com/lib/pq"
)

// PostgresResultRepository implements ResultRepository
type PostgresResultRepository struct {
	q Querier
}

func NewPostgresResultRepository(q Querier) *PostgresResultRepository {
	return &PostgresResultRepository{q: q}
}

const resultColumns = `
	result_id, cycle_id, metric_id, value, outcome_code,
	narrative, skipped, classification, recorded_by,
	created_at, updated_at
`

func (r *PostgresResultRepository) scanResult(row interface{ Scan(...interface{}) error }) (*models.MetricResult, error) {
	var res models.MetricResult
	err := row.Scan(
		&res.ResultID,
		&res.CycleID,
		&res.MetricID,
		&res.Value,
		&res.OutcomeCode,
		&res.Narrative,
		&res.Skipped,
		&res.Classification,
		&res.RecordedBy,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Upsert writes the result keyed by (cycle_id, metric_id), so repeated
// submissions for the same metric update the single existing row.
func (r *PostgresResultRepository) Upsert(ctx context.Context, result *models.MetricResult) error {
	query := `
		INSERT INTO metric_results (
			result_id, cycle_id, metric_id, value, outcome_code,
			narrative, skipped, classification, recorded_by,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (cycle_id, metric_id) DO UPDATE SET
			value = EXCLUDED.value,
			outcome_code = EXCLUDED.outcome_code,
			narrative = EXCLUDED.narrative,
			skipped = EXCLUDED.skipped,
			classification = EXCLUDED.classification,
			recorded_by = EXCLUDED.recorded_by,
			updated_at = NOW()
		RETURNING result_id, created_at, updated_at
	`

	err := r.q.QueryRowContext(ctx, query,
		result.ResultID,
		result.CycleID,
		result.MetricID,
		result.Value,
		result.OutcomeCode,
		result.Narrative,
		result.Skipped,
		result.Classification,
		result.RecordedBy,
	).Scan(&result.ResultID, &result.CreatedAt, &result.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert result: %w", err)
	}
	return nil
}

func (r *PostgresResultRepository) Get(ctx context.Context, resultID string) (*models.MetricResult, error) {
	query := `SELECT ` + resultColumns + ` FROM metric_results WHERE result_id = $1`

	res, err := r.scanResult(r.q.QueryRowContext(ctx, query, resultID))
	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("result", resultID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return res, nil
}

func (r *PostgresResultRepository) ListByCycle(ctx context.Context, cycleID string) ([]models.MetricResult, error) {
	query := `SELECT ` + resultColumns + ` FROM metric_results WHERE cycle_id = $1 ORDER BY created_at`
	return r.list(ctx, query, cycleID)
}

func (r *PostgresResultRepository) ListByCycles(ctx context.Context, cycleIDs []string) ([]models.MetricResult, error) {
	if len(cycleIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + resultColumns + ` FROM metric_results WHERE cycle_id = ANY($1) ORDER BY created_at`
	return r.list(ctx, query, pq.Array(cycleIDs))
}

func (r *PostgresResultRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.MetricResult, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []models.MetricResult
	for rows.Next() {
		res, err := r.scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, *res)
	}

	return results, rows.Err()
}

func (r *PostgresResultRepository) Delete(ctx context.Context, resultID string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM metric_results WHERE result_id = $1`, resultID)
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete: %w", err)
	}
	if affected == 0 {
		return models.NewNotFoundError("result", resultID)
	}
	return nil
}
