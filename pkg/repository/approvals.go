package repository

import (
	"context"
	"database/sql"
	"fmt"

	"kpm-monitor/pkg/models"
)

// PostgresApprovalRepository implements ApprovalRepository
type PostgresApprovalRepository struct {
	q Querier
}

func NewPostgresApprovalRepository(q Querier) *PostgresApprovalRepository {
	return &PostgresApprovalRepository{q: q}
}

const approvalColumns = `
	approval_id, cycle_id, scope, region, status,
	approver_id, comments, acted_at,
	voided, void_reason, voided_by, created_at
`

func (r *PostgresApprovalRepository) scanApproval(row interface{ Scan(...interface{}) error }) (*models.CycleApproval, error) {
	var a models.CycleApproval
	err := row.Scan(
		&a.ApprovalID,
		&a.CycleID,
		&a.Scope,
		&a.Region,
		&a.Status,
		&a.ApproverID,
		&a.Comments,
		&a.ActedAt,
		&a.Voided,
		&a.VoidReason,
		&a.VoidedBy,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresApprovalRepository) CreateAll(ctx context.Context, approvals []models.CycleApproval) error {
	query := `
		INSERT INTO cycle_approvals (
			approval_id, cycle_id, scope, region, status, comments, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`

	for i := range approvals {
		a := &approvals[i]
		err := r.q.QueryRowContext(ctx, query,
			a.ApprovalID,
			a.CycleID,
			a.Scope,
			a.Region,
			a.Status,
			a.Comments,
		).Scan(&a.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create approval for scope %s: %w", a.ScopeKey(), err)
		}
	}
	return nil
}

func (r *PostgresApprovalRepository) Get(ctx context.Context, approvalID string) (*models.CycleApproval, error) {
	query := `SELECT ` + approvalColumns + ` FROM cycle_approvals WHERE approval_id = $1`

	a, err := r.scanApproval(r.q.QueryRowContext(ctx, query, approvalID))
	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("approval", approvalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return a, nil
}

func (r *PostgresApprovalRepository) ListByCycle(ctx context.Context, cycleID string) ([]models.CycleApproval, error) {
	query := `SELECT ` + approvalColumns + ` FROM cycle_approvals WHERE cycle_id = $1 ORDER BY created_at`

	rows, err := r.q.QueryContext(ctx, query, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	var approvals []models.CycleApproval
	for rows.Next() {
		a, err := r.scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, *a)
	}

	return approvals, rows.Err()
}

func (r *PostgresApprovalRepository) Update(ctx context.Context, approval *models.CycleApproval) error {
	query := `
		UPDATE cycle_approvals SET
			status = $2,
			approver_id = $3,
			comments = $4,
			acted_at = $5,
			voided = $6,
			void_reason = $7,
			voided_by = $8
		WHERE approval_id = $1
	`

	res, err := r.q.ExecContext(ctx, query,
		approval.ApprovalID,
		approval.Status,
		approval.ApproverID,
		approval.Comments,
		approval.ActedAt,
		approval.Voided,
		approval.VoidReason,
		approval.VoidedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update approval: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if affected == 0 {
		return models.NewNotFoundError("approval", approval.ApprovalID)
	}
	return nil
}

// VoidPendingByCycle voids every still-pending approval of a cycle, used
// when the cycle is cancelled. Rows are kept for audit.
func (r *PostgresApprovalRepository) VoidPendingByCycle(ctx context.Context, cycleID, actorID, reason string) error {
	query := `
		UPDATE cycle_approvals SET
			voided = TRUE,
			void_reason = $3,
			voided_by = $2
		WHERE cycle_id = $1 AND status = $4 AND NOT voided
	`

	if _, err := r.q.ExecContext(ctx, query, cycleID, actorID, reason, models.ApprovalPending); err != nil {
		return fmt.Errorf("failed to void pending approvals: %w", err)
	}
	return nil
}
