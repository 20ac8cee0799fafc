package service

import (
	"context"

	"kpm-monitor/pkg/models"
	"kpm-monitor/pkg/repository"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// stubStore runs transactional closures directly against the mock
// repositories; atomicity is the real store's concern, not the tests'.
type stubStore struct {
	repos repository.Repositories
}

func (s *stubStore) InTx(ctx context.Context, fn func(r repository.Repositories) error) error {
	return fn(s.repos)
}

func (s *stubStore) Repos() repository.Repositories {
	return s.repos
}

// MockPlanRepository is a mock implementation for testing
type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) Get(ctx context.Context, planID string) (*models.Plan, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

// MockMetricRepository is a mock implementation for testing
type MockMetricRepository struct {
	mock.Mock
}

func (m *MockMetricRepository) Get(ctx context.Context, metricID string) (*models.MetricDefinition, error) {
	args := m.Called(ctx, metricID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MetricDefinition), args.Error(1)
}

func (m *MockMetricRepository) ActiveByPlan(ctx context.Context, planID string) ([]models.MetricDefinition, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MetricDefinition), args.Error(1)
}

func (m *MockMetricRepository) ListByPlan(ctx context.Context, planID string) ([]models.MetricDefinition, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MetricDefinition), args.Error(1)
}

func (m *MockMetricRepository) Upsert(ctx context.Context, def *models.MetricDefinition) error {
	args := m.Called(ctx, def)
	return args.Error(0)
}

// MockModelRepository is a mock implementation for testing
type MockModelRepository struct {
	mock.Mock
}

func (m *MockModelRepository) RegionsForPlan(ctx context.Context, planID string) ([]string, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockVersionRepository is a mock implementation for testing
type MockVersionRepository struct {
	mock.Mock
}

func (m *MockVersionRepository) Create(ctx context.Context, version *models.PlanVersion) error {
	args := m.Called(ctx, version)
	return args.Error(0)
}

func (m *MockVersionRepository) Get(ctx context.Context, planID, versionID string) (*models.PlanVersion, error) {
	args := m.Called(ctx, planID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlanVersion), args.Error(1)
}

func (m *MockVersionRepository) GetByID(ctx context.Context, versionID string) (*models.PlanVersion, error) {
	args := m.Called(ctx, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlanVersion), args.Error(1)
}

func (m *MockVersionRepository) Active(ctx context.Context, planID string) (*models.PlanVersion, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlanVersion), args.Error(1)
}

func (m *MockVersionRepository) NextNumber(ctx context.Context, planID string) (int, error) {
	args := m.Called(ctx, planID)
	return args.Int(0), args.Error(1)
}

func (m *MockVersionRepository) DeactivateAll(ctx context.Context, planID string) error {
	args := m.Called(ctx, planID)
	return args.Error(0)
}

// MockCycleRepository is a mock implementation for testing
type MockCycleRepository struct {
	mock.Mock
}

func (m *MockCycleRepository) Create(ctx context.Context, cycle *models.MonitoringCycle) error {
	args := m.Called(ctx, cycle)
	return args.Error(0)
}

func (m *MockCycleRepository) Get(ctx context.Context, cycleID string) (*models.MonitoringCycle, error) {
	args := m.Called(ctx, cycleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MonitoringCycle), args.Error(1)
}

func (m *MockCycleRepository) GetForUpdate(ctx context.Context, cycleID string) (*models.MonitoringCycle, error) {
	args := m.Called(ctx, cycleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MonitoringCycle), args.Error(1)
}

func (m *MockCycleRepository) Update(ctx context.Context, cycle *models.MonitoringCycle) error {
	args := m.Called(ctx, cycle)
	return args.Error(0)
}

func (m *MockCycleRepository) RecentClosed(ctx context.Context, planID string, limit int) ([]models.MonitoringCycle, error) {
	args := m.Called(ctx, planID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MonitoringCycle), args.Error(1)
}

// MockResultRepository is a mock implementation for testing
type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) Upsert(ctx context.Context, result *models.MetricResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockResultRepository) Get(ctx context.Context, resultID string) (*models.MetricResult, error) {
	args := m.Called(ctx, resultID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MetricResult), args.Error(1)
}

func (m *MockResultRepository) ListByCycle(ctx context.Context, cycleID string) ([]models.MetricResult, error) {
	args := m.Called(ctx, cycleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MetricResult), args.Error(1)
}

func (m *MockResultRepository) ListByCycles(ctx context.Context, cycleIDs []string) ([]models.MetricResult, error) {
	args := m.Called(ctx, cycleIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MetricResult), args.Error(1)
}

func (m *MockResultRepository) Delete(ctx context.Context, resultID string) error {
	args := m.Called(ctx, resultID)
	return args.Error(0)
}

// MockApprovalRepository is a mock implementation for testing
type MockApprovalRepository struct {
	mock.Mock
}

func (m *MockApprovalRepository) CreateAll(ctx context.Context, approvals []models.CycleApproval) error {
	args := m.Called(ctx, approvals)
	return args.Error(0)
}

func (m *MockApprovalRepository) Get(ctx context.Context, approvalID string) (*models.CycleApproval, error) {
	args := m.Called(ctx, approvalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CycleApproval), args.Error(1)
}

func (m *MockApprovalRepository) ListByCycle(ctx context.Context, cycleID string) ([]models.CycleApproval, error) {
	args := m.Called(ctx, cycleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CycleApproval), args.Error(1)
}

func (m *MockApprovalRepository) Update(ctx context.Context, approval *models.CycleApproval) error {
	args := m.Called(ctx, approval)
	return args.Error(0)
}

func (m *MockApprovalRepository) VoidPendingByCycle(ctx context.Context, cycleID, actorID, reason string) error {
	args := m.Called(ctx, cycleID, actorID, reason)
	return args.Error(0)
}

// fixture bundles the mocks behind a stub store for service tests
type fixture struct {
	plans     *MockPlanRepository
	metrics   *MockMetricRepository
	mdls      *MockModelRepository
	versions  *MockVersionRepository
	cycles    *MockCycleRepository
	results   *MockResultRepository
	approvals *MockApprovalRepository
	store     *stubStore
	logger    *zap.Logger
}

func newFixture() *fixture {
	f := &fixture{
		plans:     new(MockPlanRepository),
		metrics:   new(MockMetricRepository),
		mdls:      new(MockModelRepository),
		versions:  new(MockVersionRepository),
		cycles:    new(MockCycleRepository),
		results:   new(MockResultRepository),
		approvals: new(MockApprovalRepository),
		logger:    zap.NewNop(),
	}
	f.store = &stubStore{repos: repository.Repositories{
		Plans:     f.plans,
		Metrics:   f.metrics,
		Models:    f.mdls,
		Versions:  f.versions,
		Cycles:    f.cycles,
		Results:   f.results,
		Approvals: f.approvals,
	}}
	return f
}

func fullActor() models.Actor {
	return models.Actor{
		ID:                 "actor-1",
		CanManageMetrics:   true,
		CanPublishVersion:  true,
		CanCreateCycle:     true,
		CanStartCycle:      true,
		CanSubmitCycle:     true,
		CanRequestApproval: true,
		CanCancelCycle:     true,
		CanRecordResults:   true,
		CanVoidApprovals:   true,
		GlobalApprover:     true,
		ApproverRegions:    []string{"EU", "US"},
	}
}

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }
