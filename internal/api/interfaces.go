package api

import (
	"context"

	"github.com/sysprohq/automation/internal/engine"
	"github.com/sysprohq/automation/internal/models"
	"github.com/sysprohq/automation/internal/worker"
)

// RuleService is the rule store surface the handlers depend on.
type RuleService interface {
	Create(ctx context.Context, tenantSlug string, req models.CreateRuleRequest) (*models.Rule, error)
	Get(ctx context.Context, tenantSlug, id string) (*models.Rule, error)
	List(ctx context.Context, tenantSlug string) ([]models.Rule, error)
	Update(ctx context.Context, tenantSlug, id string, req models.UpdateRuleRequest) (*models.Rule, error)
	Delete(ctx context.Context, tenantSlug, id string) error
	Count(ctx context.Context, tenantSlug string) (total, enabled int, err error)
}

// AuditService reads the rule evaluation trail.
type AuditService interface {
	List(ctx context.Context, tenantSlug string, opts models.AuditQueryOpts) ([]models.RuleAudit, bool, error)
	Counts(ctx context.Context, tenantSlug string) (models.AuditCounts, error)
}

// QueueService exposes queue depth for the summary endpoint.
type QueueService interface {
	CountByStatus(ctx context.Context, tenantSlug string) (models.QueueCounts, error)
}

// ReportService runs saved reports and lists their jobs.
type ReportService interface {
	GetReport(ctx context.Context, tenantSlug, reportID string) (*models.Report, error)
	EnqueueJob(ctx context.Context, tenantSlug, reportID, requestedBy string, filters map[string]any) (*models.ReportJob, error)
	ListJobs(ctx context.Context, tenantSlug, reportID string, limit int) ([]models.ReportJob, error)
}

// EventDispatcher evaluates an incoming event against the tenant's rules.
type EventDispatcher interface {
	HandleEvent(ctx context.Context, event engine.Event) (*engine.EventResult, error)
}

// QueueProcessor runs one worker pass on demand.
type QueueProcessor interface {
	RunOnce(ctx context.Context) (worker.Summary, error)
}
