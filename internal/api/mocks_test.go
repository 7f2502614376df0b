package api_test

import (
	"context"

	"github.com/sysprohq/automation/internal/engine"
	"github.com/sysprohq/automation/internal/models"
	"github.com/sysprohq/automation/internal/worker"
)

// mockRuleService implements api.RuleService for testing.
type mockRuleService struct {
	createFn func(ctx context.Context, tenantSlug string, req models.CreateRuleRequest) (*models.Rule, error)
	getFn    func(ctx context.Context, tenantSlug, id string) (*models.Rule, error)
	listFn   func(ctx context.Context, tenantSlug string) ([]models.Rule, error)
	updateFn func(ctx context.Context, tenantSlug, id string, req models.UpdateRuleRequest) (*models.Rule, error)
	deleteFn func(ctx context.Context, tenantSlug, id string) error
	countFn  func(ctx context.Context, tenantSlug string) (int, int, error)
}

func (m *mockRuleService) Create(ctx context.Context, tenantSlug string, req models.CreateRuleRequest) (*models.Rule, error) {
	return m.createFn(ctx, tenantSlug, req)
}

func (m *mockRuleService) Get(ctx context.Context, tenantSlug, id string) (*models.Rule, error) {
	return m.getFn(ctx, tenantSlug, id)
}

func (m *mockRuleService) List(ctx context.Context, tenantSlug string) ([]models.Rule, error) {
	return m.listFn(ctx, tenantSlug)
}

func (m *mockRuleService) Update(ctx context.Context, tenantSlug, id string, req models.UpdateRuleRequest) (*models.Rule, error) {
	return m.updateFn(ctx, tenantSlug, id, req)
}

func (m *mockRuleService) Delete(ctx context.Context, tenantSlug, id string) error {
	return m.deleteFn(ctx, tenantSlug, id)
}

func (m *mockRuleService) Count(ctx context.Context, tenantSlug string) (int, int, error) {
	return m.countFn(ctx, tenantSlug)
}

// mockAuditService implements api.AuditService for testing.
type mockAuditService struct {
	listFn   func(ctx context.Context, tenantSlug string, opts models.AuditQueryOpts) ([]models.RuleAudit, bool, error)
	countsFn func(ctx context.Context, tenantSlug string) (models.AuditCounts, error)
}

func (m *mockAuditService) List(ctx context.Context, tenantSlug string, opts models.AuditQueryOpts) ([]models.RuleAudit, bool, error) {
	return m.listFn(ctx, tenantSlug, opts)
}

func (m *mockAuditService) Counts(ctx context.Context, tenantSlug string) (models.AuditCounts, error) {
	return m.countsFn(ctx, tenantSlug)
}

// mockQueueService implements api.QueueService for testing.
type mockQueueService struct {
	countsFn func(ctx context.Context, tenantSlug string) (models.QueueCounts, error)
}

func (m *mockQueueService) CountByStatus(ctx context.Context, tenantSlug string) (models.QueueCounts, error) {
	return m.countsFn(ctx, tenantSlug)
}

// mockReportService implements api.ReportService for testing.
type mockReportService struct {
	getFn     func(ctx context.Context, tenantSlug, reportID string) (*models.Report, error)
	enqueueFn func(ctx context.Context, tenantSlug, reportID, requestedBy string, filters map[string]any) (*models.ReportJob, error)
	jobsFn    func(ctx context.Context, tenantSlug, reportID string, limit int) ([]models.ReportJob, error)
}

func (m *mockReportService) GetReport(ctx context.Context, tenantSlug, reportID string) (*models.Report, error) {
	return m.getFn(ctx, tenantSlug, reportID)
}

func (m *mockReportService) EnqueueJob(ctx context.Context, tenantSlug, reportID, requestedBy string, filters map[string]any) (*models.ReportJob, error) {
	return m.enqueueFn(ctx, tenantSlug, reportID, requestedBy, filters)
}

func (m *mockReportService) ListJobs(ctx context.Context, tenantSlug, reportID string, limit int) ([]models.ReportJob, error) {
	return m.jobsFn(ctx, tenantSlug, reportID, limit)
}

// mockDispatcher implements api.EventDispatcher for testing.
type mockDispatcher struct {
	handleFn func(ctx context.Context, event engine.Event) (*engine.EventResult, error)
}

func (m *mockDispatcher) HandleEvent(ctx context.Context, event engine.Event) (*engine.EventResult, error) {
	return m.handleFn(ctx, event)
}

// mockProcessor implements api.QueueProcessor for testing.
type mockProcessor struct {
	runFn func(ctx context.Context) (worker.Summary, error)
}

func (m *mockProcessor) RunOnce(ctx context.Context) (worker.Summary, error) {
	return m.runFn(ctx)
}
