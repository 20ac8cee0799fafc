package repository

import (
	"context"
	"database/sql"
	"fmt"

	"kpm-monitor/pkg/models"
)

// PostgresCycleRepository implements CycleRepository
type PostgresCycleRepository struct {
	q Querier
}

func NewPostgresCycleRepository(q Querier) *PostgresCycleRepository {
	return &PostgresCycleRepository{q: q}
}

const cycleColumns = `
	cycle_id, plan_id, version_id, status,
	period_start, period_end, submission_due, report_due, notes,
	green_count, yellow_count, red_count,
	required_approvals, completed_approvals,
	submitted_by, submitted_at, completed_at,
	cancelled_by, cancelled_at, cancel_reason,
	created_at, updated_at
`

func (r *PostgresCycleRepository) scanCycle(row interface{ Scan(...interface{}) error }) (*models.MonitoringCycle, error) {
	var c models.MonitoringCycle
	err := row.Scan(
		&c.CycleID,
		&c.PlanID,
		&c.VersionID,
		&c.Status,
		&c.PeriodStart,
		&c.PeriodEnd,
		&c.SubmissionDue,
		&c.ReportDue,
		&c.Notes,
		&c.GreenCount,
		&c.YellowCount,
		&c.RedCount,
		&c.RequiredApprovals,
		&c.CompletedApprovals,
		&c.SubmittedBy,
		&c.SubmittedAt,
		&c.CompletedAt,
		&c.CancelledBy,
		&c.CancelledAt,
		&c.CancelReason,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresCycleRepository) Create(ctx context.Context, cycle *models.MonitoringCycle) error {
	query := `
		INSERT INTO monitoring_cycles (
			cycle_id, plan_id, version_id, status,
			period_start, period_end, submission_due, report_due, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRowContext(ctx, query,
		cycle.CycleID,
		cycle.PlanID,
		cycle.VersionID,
		cycle.Status,
		cycle.PeriodStart,
		cycle.PeriodEnd,
		cycle.SubmissionDue,
		cycle.ReportDue,
		cycle.Notes,
	).Scan(&cycle.CreatedAt, &cycle.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create cycle: %w", err)
	}
	return nil
}

func (r *PostgresCycleRepository) Get(ctx context.Context, cycleID string) (*models.MonitoringCycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM monitoring_cycles WHERE cycle_id = $1`
	return r.get(ctx, query, cycleID)
}

func (r *PostgresCycleRepository) GetForUpdate(ctx context.Context, cycleID string) (*models.MonitoringCycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM monitoring_cycles WHERE cycle_id = $1 FOR UPDATE`
	return r.get(ctx, query, cycleID)
}

func (r *PostgresCycleRepository) get(ctx context.Context, query, cycleID string) (*models.MonitoringCycle, error) {
	c, err := r.scanCycle(r.q.QueryRowContext(ctx, query, cycleID))
	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("cycle", cycleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle: %w", err)
	}
	return c, nil
}

func (r *PostgresCycleRepository) Update(ctx context.Context, cycle *models.MonitoringCycle) error {
	query := `
		UPDATE monitoring_cycles SET
			version_id = $2,
			status = $3,
			notes = $4,
			green_count = $5,
			yellow_count = $6,
			red_count = $7,
			required_approvals = $8,
			completed_approvals = $9,
			submitted_by = $10,
			submitted_at = $11,
			completed_at = $12,
			cancelled_by = $13,
			cancelled_at = $14,
			cancel_reason = $15,
			updated_at = NOW()
		WHERE cycle_id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRowContext(ctx, query,
		cycle.CycleID,
		cycle.VersionID,
		cycle.Status,
		cycle.Notes,
		cycle.GreenCount,
		cycle.YellowCount,
		cycle.RedCount,
		cycle.RequiredApprovals,
		cycle.CompletedApprovals,
		cycle.SubmittedBy,
		cycle.SubmittedAt,
		cycle.CompletedAt,
		cycle.CancelledBy,
		cycle.CancelledAt,
		cycle.CancelReason,
	).Scan(&cycle.UpdatedAt)

	if err == sql.ErrNoRows {
		return models.NewNotFoundError("cycle", cycle.CycleID)
	}
	if err != nil {
		return fmt.Errorf("failed to update cycle: %w", err)
	}
	return nil
}

// RecentClosed returns the plan's most recently approved cycles, newest
// first, for performance summaries.
func (r *PostgresCycleRepository) RecentClosed(ctx context.Context, planID string, limit int) ([]models.MonitoringCycle, error) {
	query := `
		SELECT ` + cycleColumns + `
		FROM monitoring_cycles
		WHERE plan_id = $1 AND status = $2
		ORDER BY period_end DESC
		LIMIT $3
	`

	rows, err := r.q.QueryContext(ctx, query, planID, models.StatusApproved, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	var cycles []models.MonitoringCycle
	for rows.Next() {
		c, err := r.scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		cycles = append(cycles, *c)
	}

	return cycles, rows.Err()
}
