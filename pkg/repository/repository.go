package repository

import (
	"context"
	"database/sql"
	"fmt"

	"kpm-monitor/pkg/models"

	"github.com/google/uuid"
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories are built over it so the same implementations serve both
// plain reads and transactional mutations.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PlanRepository reads monitoring plans
type PlanRepository interface {
	Get(ctx context.Context, planID string) (*models.Plan, error)
}

// MetricRepository handles live metric definitions
type MetricRepository interface {
	Get(ctx context.Context, metricID string) (*models.MetricDefinition, error)
	ActiveByPlan(ctx context.Context, planID string) ([]models.MetricDefinition, error)
	ListByPlan(ctx context.Context, planID string) ([]models.MetricDefinition, error)
	Upsert(ctx context.Context, def *models.MetricDefinition) error
}

// ModelRepository reads monitored models; regions drive approval scopes
type ModelRepository interface {
	RegionsForPlan(ctx context.Context, planID string) ([]string, error)
}

// VersionRepository handles immutable plan version snapshots. There is
// deliberately no update or delete for a published version.
type VersionRepository interface {
	Create(ctx context.Context, version *models.PlanVersion) error
	Get(ctx context.Context, planID, versionID string) (*models.PlanVersion, error)
	GetByID(ctx context.Context, versionID string) (*models.PlanVersion, error)
	Active(ctx context.Context, planID string) (*models.PlanVersion, error) // nil, nil when none published
	NextNumber(ctx context.Context, planID string) (int, error)
	DeactivateAll(ctx context.Context, planID string) error
}

// CycleRepository handles monitoring cycles
type CycleRepository interface {
	Create(ctx context.Context, cycle *models.MonitoringCycle) error
	Get(ctx context.Context, cycleID string) (*models.MonitoringCycle, error)
	// GetForUpdate locks the cycle row for the current transaction so
	// concurrent transitions and approval actions serialize on it.
	GetForUpdate(ctx context.Context, cycleID string) (*models.MonitoringCycle, error)
	Update(ctx context.Context, cycle *models.MonitoringCycle) error
	RecentClosed(ctx context.Context, planID string, limit int) ([]models.MonitoringCycle, error)
}

// ResultRepository handles per-metric results for a cycle
type ResultRepository interface {
	Upsert(ctx context.Context, result *models.MetricResult) error
	Get(ctx context.Context, resultID string) (*models.MetricResult, error)
	ListByCycle(ctx context.Context, cycleID string) ([]models.MetricResult, error)
	ListByCycles(ctx context.Context, cycleIDs []string) ([]models.MetricResult, error)
	Delete(ctx context.Context, resultID string) error
}

// ApprovalRepository handles cycle approvals. Rows are never deleted.
type ApprovalRepository interface {
	CreateAll(ctx context.Context, approvals []models.CycleApproval) error
	Get(ctx context.Context, approvalID string) (*models.CycleApproval, error)
	ListByCycle(ctx context.Context, cycleID string) ([]models.CycleApproval, error)
	Update(ctx context.Context, approval *models.CycleApproval) error
	VoidPendingByCycle(ctx context.Context, cycleID, actorID, reason string) error
}

// Repositories bundles every repository over one Querier. A bundle built
// over a *sql.Tx shares that transaction across all of them.
type Repositories struct {
	Plans     PlanRepository
	Metrics   MetricRepository
	Models    ModelRepository
	Versions  VersionRepository
	Cycles    CycleRepository
	Results   ResultRepository
	Approvals ApprovalRepository
}

// New builds a repository bundle over the given Querier.
func New(q Querier) Repositories {
	return Repositories{
		Plans:     NewPostgresPlanRepository(q),
		Metrics:   NewPostgresMetricRepository(q),
		Models:    NewPostgresModelRepository(q),
		Versions:  NewPostgresVersionRepository(q),
		Cycles:    NewPostgresCycleRepository(q),
		Results:   NewPostgresResultRepository(q),
		Approvals: NewPostgresApprovalRepository(q),
	}
}

// TxRunner scopes a repository bundle to a single database transaction.
// Every state-mutating engine operation runs inside InTx so that guard
// validation, mutation, and cached-counter refresh commit atomically.
type TxRunner interface {
	InTx(ctx context.Context, fn func(r Repositories) error) error
	Repos() Repositories
}

// Store is the Postgres-backed TxRunner
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Repos returns a non-transactional bundle for plain reads.
func (s *Store) Repos() Repositories {
	return New(s.db)
}

// InTx runs fn inside one transaction, rolling back on any error.
func (s *Store) InTx(ctx context.Context, fn func(r Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(New(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GenerateID generates a new UUID
func GenerateID() string {
	return uuid.New().String()
}
