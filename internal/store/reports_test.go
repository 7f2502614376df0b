package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sysprohq/automation/internal/models"
	"github.com/sysprohq/automation/internal/store"
)

func insertTestReport(t *testing.T, base store.Base, tenantSlug string) string {
	t.Helper()

	id := uuid.New().String()
	_, err := base.Pool.Exec(context.Background(), `
		INSERT INTO reports (id, tenant_slug, name, report_type, definition, filters)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, tenantSlug, "Open invoices", "invoices",
		`{"columns":["id","amount"]}`, `{"status":"open"}`,
	)
	if err != nil {
		t.Fatalf("inserting report: %v", err)
	}
	return id
}

func TestReportJobLifecycle(t *testing.T) {
	base, slug := setupTestBase(t)
	reports := store.NewReportStore(base)
	ctx := context.Background()

	reportID := insertTestReport(t, base, slug)

	got, err := reports.GetReport(ctx, slug, reportID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.Name != "Open invoices" || got.Filters["status"] != "open" {
		t.Fatalf("unexpected report %+v", got)
	}

	job, err := reports.EnqueueJob(ctx, slug, reportID, "user-1", nil)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if job.Status != models.ReportStatusQueued {
		t.Fatalf("status = %q, want queued", job.Status)
	}
	// Nil request filters inherit the report's saved filters.
	if job.Filters["status"] != "open" {
		t.Fatalf("job filters = %v", job.Filters)
	}

	claimed, err := reports.ClaimQueued(ctx, 10, 3)
	if err != nil {
		t.Fatalf("ClaimQueued: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("claimed %d jobs, want 1", len(claimed))
	}
	if claimed[0].Status != models.ReportStatusRunning || claimed[0].AttemptCount != 1 {
		t.Fatalf("claimed job = %+v", claimed[0])
	}
	if claimed[0].StartedAt == nil {
		t.Fatal("started_at not stamped")
	}

	if err := reports.MarkSucceeded(ctx, claimed[0].ID, "https://reports.example.com/out.json"); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}

	jobs, err := reports.ListJobs(ctx, slug, reportID, 10)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("listed %d jobs, want 1", len(jobs))
	}
	if jobs[0].Status != models.ReportStatusSucceeded {
		t.Fatalf("status = %q, want succeeded", jobs[0].Status)
	}
	if jobs[0].OutputLocation != "https://reports.example.com/out.json" {
		t.Fatalf("output location = %q", jobs[0].OutputLocation)
	}
	if jobs[0].CompletedAt == nil {
		t.Fatal("completed_at not stamped")
	}
}

func TestReportJobFailure(t *testing.T) {
	base, slug := setupTestBase(t)
	reports := store.NewReportStore(base)
	ctx := context.Background()

	reportID := insertTestReport(t, base, slug)
	if _, err := reports.EnqueueJob(ctx, slug, reportID, "user-1", map[string]any{"status": "overdue"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	claimed, err := reports.ClaimQueued(ctx, 10, 3)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimQueued: %v (%d jobs)", err, len(claimed))
	}
	if claimed[0].Filters["status"] != "overdue" {
		t.Fatalf("explicit filters lost: %v", claimed[0].Filters)
	}

	if err := reports.MarkFailed(ctx, claimed[0].ID, "upload failed 403"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	jobs, err := reports.ListJobs(ctx, slug, reportID, 10)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if jobs[0].Status != models.ReportStatusFailed || jobs[0].Error != "upload failed 403" {
		t.Fatalf("job = %+v", jobs[0])
	}
}

func TestReportEnqueueJobUnknownReport(t *testing.T) {
	base, slug := setupTestBase(t)
	reports := store.NewReportStore(base)

	_, err := reports.EnqueueJob(context.Background(), slug, uuid.New().String(), "user-1", nil)
	if !errors.Is(err, models.ErrReportNotFound) {
		t.Fatalf("EnqueueJob = %v, want ErrReportNotFound", err)
	}
}

func TestReportReapStale(t *testing.T) {
	base, slug := setupTestBase(t)
	reports := store.NewReportStore(base)
	ctx := context.Background()

	reportID := insertTestReport(t, base, slug)
	if _, err := reports.EnqueueJob(ctx, slug, reportID, "user-1", nil); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	claimed, err := reports.ClaimQueued(ctx, 10, 3)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("ClaimQueued: %v (%d jobs)", err, len(claimed))
	}

	n, err := reports.ReapStale(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ReapStale: %v", err)
	}
	if n != 0 {
		t.Fatalf("reaped %d fresh jobs, want 0", n)
	}

	n, err = reports.ReapStale(ctx, 0)
	if err != nil {
		t.Fatalf("ReapStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("reaped %d jobs, want 1", n)
	}

	reclaimed, err := reports.ClaimQueued(ctx, 10, 3)
	if err != nil {
		t.Fatalf("ClaimQueued after reap: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0].AttemptCount != 2 {
		t.Fatalf("reclaim = %+v", reclaimed)
	}
}
