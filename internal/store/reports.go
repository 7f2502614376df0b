package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sysprohq/automation/internal/models"
)

// ReportStore provides data access for the reports and report_jobs tables.
type ReportStore struct {
	Base
}

// NewReportStore creates a ReportStore.
func NewReportStore(base Base) *ReportStore {
	return &ReportStore{Base: base}
}

// GetReport returns one report definition, scoped to the tenant.
func (s *ReportStore) GetReport(ctx context.Context, tenantSlug, reportID string) (*models.Report, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var report models.Report
	var definition, filtersJSON []byte
	var schedule *string

	err := s.Pool.QueryRow(ctx, `
		SELECT id, tenant_slug, name, report_type, definition, filters, schedule, enabled, created_at, updated_at
		FROM reports WHERE tenant_slug = $1 AND id = $2`,
		tenantSlug, reportID,
	).Scan(
		&report.ID, &report.TenantSlug, &report.Name, &report.ReportType,
		&definition, &filtersJSON, &schedule, &report.Enabled,
		&report.CreatedAt, &report.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrReportNotFound
		}
		return nil, fmt.Errorf("loading report: %w", err)
	}

	report.Definition = json.RawMessage(definition)
	if schedule != nil {
		report.Schedule = *schedule
	}
	unmarshalJSON(filtersJSON, &report.Filters, "report filters", s.Log)

	return &report, nil
}

// EnqueueJob inserts one queued run of a report. Job filters default to the
// report's saved filters when the request carries none.
func (s *ReportStore) EnqueueJob(ctx context.Context, tenantSlug, reportID, requestedBy string, filters map[string]any) (*models.ReportJob, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	report, err := s.GetReport(ctx, tenantSlug, reportID)
	if err != nil {
		return nil, err
	}
	if filters == nil {
		filters = report.Filters
	}

	filtersJSON, err := marshalJSON(filters, "job filters")
	if err != nil {
		return nil, err
	}

	row := s.Pool.QueryRow(ctx, `
		INSERT INTO report_jobs (id, report_id, tenant_slug, requested_by, status, filters)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+jobColumns,
		uuid.New().String(), reportID, tenantSlug, requestedBy, models.ReportStatusQueued, filtersJSON,
	)

	job, err := s.scanJobRow(row)
	if err != nil {
		return nil, fmt.Errorf("inserting report job: %w", err)
	}
	return job, nil
}

const jobColumns = `id, report_id, tenant_slug, requested_by, status, filters,
	output_location, error, attempt_count, created_at, started_at, completed_at`

// ClaimQueued atomically claims up to limit queued jobs, moving them to
// running with started_at stamped and attempt_count incremented. Same
// skip-locked shape as the action queue claim.
func (s *ReportStore) ClaimQueued(ctx context.Context, limit, maxAttempts int) ([]models.ReportJob, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `
		WITH claimed AS (
			SELECT id FROM report_jobs
			WHERE status = $1 AND attempt_count < $2
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE report_jobs j
		SET status = $4, attempt_count = attempt_count + 1, started_at = NOW()
		FROM claimed
		WHERE j.id = claimed.id
		RETURNING `+prefixColumns("j", jobColumns),
		models.ReportStatusQueued, maxAttempts, limit, models.ReportStatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming queued report jobs: %w", err)
	}

	return collectRows(rows, s.scanJob, "report job")
}

// MarkSucceeded finishes a running job with its output location.
func (s *ReportStore) MarkSucceeded(ctx context.Context, id, outputLocation string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx, `
		UPDATE report_jobs
		SET status = $1, output_location = $2, error = NULL, completed_at = NOW()
		WHERE id = $3 AND status = $4`,
		models.ReportStatusSucceeded, outputLocation, id, models.ReportStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("marking report job succeeded: %w", err)
	}
	return nil
}

// MarkFailed finishes a running job with a failure reason.
func (s *ReportStore) MarkFailed(ctx context.Context, id, reason string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx, `
		UPDATE report_jobs
		SET status = $1, error = $2, completed_at = NOW()
		WHERE id = $3 AND status = $4`,
		models.ReportStatusFailed, reason, id, models.ReportStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("marking report job failed: %w", err)
	}
	return nil
}

// ListJobs returns a report's runs, newest first.
func (s *ReportStore) ListJobs(ctx context.Context, tenantSlug, reportID string, limit int) ([]models.ReportJob, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT `+jobColumns+` FROM report_jobs
		WHERE tenant_slug = $1 AND report_id = $2
		ORDER BY created_at DESC LIMIT $3`,
		tenantSlug, reportID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying report jobs: %w", err)
	}

	return collectRows(rows, s.scanJob, "report job")
}

// ReapStale resets jobs stuck in running longer than olderThan back to
// queued. Returns the number of reset rows.
func (s *ReportStore) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, `
		UPDATE report_jobs
		SET status = $1, started_at = NULL
		WHERE status = $2 AND started_at < NOW() - make_interval(secs => $3)`,
		models.ReportStatusQueued, models.ReportStatusRunning, olderThan.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("reaping stale report jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *ReportStore) scanJob(rows pgx.Rows) (models.ReportJob, error) {
	job, err := s.scanJobRow(rows)
	if err != nil {
		return models.ReportJob{}, err
	}
	return *job, nil
}

func (s *ReportStore) scanJobRow(row pgx.Row) (*models.ReportJob, error) {
	var job models.ReportJob
	var requestedBy, outputLocation, errMsg *string
	var filtersJSON []byte

	err := row.Scan(
		&job.ID, &job.ReportID, &job.TenantSlug, &requestedBy, &job.Status,
		&filtersJSON, &outputLocation, &errMsg, &job.AttemptCount,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if requestedBy != nil {
		job.RequestedBy = *requestedBy
	}
	if outputLocation != nil {
		job.OutputLocation = *outputLocation
	}
	if errMsg != nil {
		job.Error = *errMsg
	}
	unmarshalJSON(filtersJSON, &job.Filters, "job filters", s.Log)

	return &job, nil
}
