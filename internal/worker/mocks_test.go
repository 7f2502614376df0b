package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sysprohq/automation/internal/action"
	"github.com/sysprohq/automation/internal/models"
	"github.com/sysprohq/automation/internal/policy"
)

type fakeActionQueue struct {
	mu        sync.Mutex
	items     []models.QueueItem
	claimErr  error
	completed []string
	failed    map[string]string
	reaped    int
}

func newFakeActionQueue(items ...models.QueueItem) *fakeActionQueue {
	return &fakeActionQueue{items: items, failed: make(map[string]string)}
}

func (q *fakeActionQueue) ClaimPending(_ context.Context, limit, _ int) ([]models.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimErr != nil {
		return nil, q.claimErr
	}
	if len(q.items) > limit {
		return q.items[:limit], nil
	}
	return q.items, nil
}

func (q *fakeActionQueue) MarkCompleted(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, id)
	return nil
}

func (q *fakeActionQueue) MarkFailed(_ context.Context, id, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[id] = reason
	return nil
}

func (q *fakeActionQueue) ReapStale(_ context.Context, _ time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reaped++
	return 0, nil
}

type fakeReportQueue struct {
	mu        sync.Mutex
	jobs      []models.ReportJob
	reports   map[string]*models.Report
	claimErr  error
	getErr    error
	succeeded map[string]string
	failed    map[string]string
	reaped    int
}

func newFakeReportQueue(jobs ...models.ReportJob) *fakeReportQueue {
	return &fakeReportQueue{
		jobs:      jobs,
		reports:   make(map[string]*models.Report),
		succeeded: make(map[string]string),
		failed:    make(map[string]string),
	}
}

func (q *fakeReportQueue) ClaimQueued(_ context.Context, limit, _ int) ([]models.ReportJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimErr != nil {
		return nil, q.claimErr
	}
	if len(q.jobs) > limit {
		return q.jobs[:limit], nil
	}
	return q.jobs, nil
}

func (q *fakeReportQueue) GetReport(_ context.Context, _, reportID string) (*models.Report, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.getErr != nil {
		return nil, q.getErr
	}
	report, ok := q.reports[reportID]
	if !ok {
		return nil, models.ErrReportNotFound
	}
	return report, nil
}

func (q *fakeReportQueue) MarkSucceeded(_ context.Context, id, outputLocation string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.succeeded[id] = outputLocation
	return nil
}

func (q *fakeReportQueue) MarkFailed(_ context.Context, id, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[id] = reason
	return nil
}

func (q *fakeReportQueue) ReapStale(_ context.Context, _ time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reaped++
	return 0, nil
}

type fakeDecider struct {
	decision policy.Decision
	err      error
	calls    int
}

func (d *fakeDecider) Decide(_ context.Context, _, _ string, _ map[string]any) (policy.Decision, error) {
	d.calls++
	if d.err != nil {
		return policy.Decision{}, d.err
	}
	return d.decision, nil
}

type fakeExecutor struct {
	actionType string
	fn         func(ctx context.Context, inv action.Invocation) error
	calls      int
}

func (e *fakeExecutor) Type() string { return e.actionType }

func (e *fakeExecutor) Execute(ctx context.Context, inv action.Invocation) error {
	e.calls++
	if e.fn == nil {
		return nil
	}
	return e.fn(ctx, inv)
}

type fakeRenderer struct {
	err   error
	calls int
}

func (r *fakeRenderer) Render(job models.ReportJob, report models.Report) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out, _ := json.Marshal(map[string]any{"reportId": job.ReportID, "name": report.Name})
	return out, nil
}

type fakeSink struct {
	location string
	err      error
	calls    int
}

func (s *fakeSink) Upload(_ context.Context, _ models.ReportJob, _ []byte) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.location, nil
}
