// Package worker drains the automation action queue and the report job
// queue. It is stateless and safe to run from many processes at once:
// mutual exclusion comes entirely from the stores' skip-locked claiming.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/action"
	"github.com/sysprohq/automation/internal/metrics"
	"github.com/sysprohq/automation/internal/models"
	"github.com/sysprohq/automation/internal/policy"
)

// Config carries the worker tuning knobs.
type Config struct {
	ActionBatchSize   int
	ReportBatchSize   int
	ActionMaxRetries  int
	ReportMaxRetries  int
	RetryDelay        time.Duration
	ActionMaxAttempts int
	ReportMaxAttempts int
	// ReapAfter, when positive, resets items stuck in a claimed state for
	// longer than this back to due before each pass. Zero disables reaping.
	ReapAfter time.Duration
}

// ActionQueue is the durable action queue the worker drains. Claimed items
// come back already marked processing with their attempt count incremented.
type ActionQueue interface {
	ClaimPending(ctx context.Context, limit, maxAttempts int) ([]models.QueueItem, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
	ReapStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// ReportQueue is the durable report job queue.
type ReportQueue interface {
	ClaimQueued(ctx context.Context, limit, maxAttempts int) ([]models.ReportJob, error)
	GetReport(ctx context.Context, tenantSlug, reportID string) (*models.Report, error)
	MarkSucceeded(ctx context.Context, id, outputLocation string) error
	MarkFailed(ctx context.Context, id, reason string) error
	ReapStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Decider gates action execution behind the policy decision engine.
type Decider interface {
	Decide(ctx context.Context, tenantSlug, policyKey string, decisionCtx map[string]any) (policy.Decision, error)
}

// Renderer produces the report payload bytes for a claimed job.
type Renderer interface {
	Render(job models.ReportJob, report models.Report) ([]byte, error)
}

// Sink uploads a rendered report payload and returns its location.
type Sink interface {
	Upload(ctx context.Context, job models.ReportJob, payload []byte) (string, error)
}

// QueueSummary counts outcomes for one queue in one pass.
type QueueSummary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Summary is the combined result of one worker pass.
type Summary struct {
	Actions QueueSummary `json:"actions"`
	Reports QueueSummary `json:"reports"`
}

// TotalFailed returns the number of failed items across both queues. The
// worker process exits non-zero iff this is positive.
func (s Summary) TotalFailed() int {
	return s.Actions.Failed + s.Reports.Failed
}

// Worker executes one claim/execute/record pass per RunOnce call.
type Worker struct {
	queue    ActionQueue
	reports  ReportQueue
	registry *action.Registry
	decider  Decider
	renderer Renderer
	sink     Sink
	cfg      Config
	log      *logrus.Logger
}

// New creates a Worker.
func New(queue ActionQueue, reports ReportQueue, registry *action.Registry, decider Decider, renderer Renderer, sink Sink, cfg Config, log *logrus.Logger) *Worker {
	return &Worker{
		queue:    queue,
		reports:  reports,
		registry: registry,
		decider:  decider,
		renderer: renderer,
		sink:     sink,
		cfg:      cfg,
		log:      log,
	}
}

// RunOnce performs one full pass: the action queue first, then the report
// queue. A failure in one pass is collected and does not abort the other.
func (w *Worker) RunOnce(ctx context.Context) (Summary, error) {
	var summary Summary
	var errs []error

	if w.cfg.ReapAfter > 0 {
		w.reapStale(ctx)
	}

	actions, err := w.runActionPass(ctx)
	summary.Actions = actions
	if err != nil {
		errs = append(errs, fmt.Errorf("action pass: %w", err))
	}

	reports, err := w.runReportPass(ctx)
	summary.Reports = reports
	if err != nil {
		errs = append(errs, fmt.Errorf("report pass: %w", err))
	}

	w.log.WithFields(logrus.Fields{
		"actions": summary.Actions,
		"reports": summary.Reports,
		"failed":  summary.TotalFailed(),
	}).Info("worker pass complete")

	return summary, errors.Join(errs...)
}

// reapStale resets items abandoned by crashed workers. Best-effort: a
// reaping failure only logs.
func (w *Worker) reapStale(ctx context.Context) {
	if n, err := w.queue.ReapStale(ctx, w.cfg.ReapAfter); err != nil {
		w.log.WithError(err).Warn("reaping stale action items")
	} else if n > 0 {
		w.log.WithField("count", n).Warn("reset stale processing actions to pending")
	}

	if n, err := w.reports.ReapStale(ctx, w.cfg.ReapAfter); err != nil {
		w.log.WithError(err).Warn("reaping stale report jobs")
	} else if n > 0 {
		w.log.WithField("count", n).Warn("reset stale running report jobs to queued")
	}
}

func (w *Worker) runActionPass(ctx context.Context) (QueueSummary, error) {
	var stats QueueSummary

	items, err := w.queue.ClaimPending(ctx, w.cfg.ActionBatchSize, w.cfg.ActionMaxAttempts)
	if err != nil {
		return stats, fmt.Errorf("claiming pending actions: %w", err)
	}

	stats.Processed = len(items)
	metrics.ClaimBatchSize.WithLabelValues("action").Observe(float64(len(items)))

	for _, item := range items {
		w.processAction(ctx, item, &stats)
	}
	return stats, nil
}

// processAction executes one claimed item and records its terminal state
// for this attempt. Panics inside handlers are converted to failures so a
// single bad item cannot crash the pass.
func (w *Worker) processAction(ctx context.Context, item models.QueueItem, stats *QueueSummary) {
	// Raced rows can arrive over the ceiling despite the claim filter;
	// they fail permanently without executing.
	if item.AttemptCount > w.cfg.ActionMaxAttempts {
		w.markActionFailed(ctx, item, "max attempts exceeded")
		stats.Skipped++
		metrics.QueueItems.WithLabelValues("action", "skipped").Inc()
		w.log.WithFields(logrus.Fields{"item_id": item.ID, "attempts": item.AttemptCount}).
			Warn("action max attempts exceeded")
		return
	}

	err := w.guardedExecute(ctx, item)
	if err != nil {
		w.markActionFailed(ctx, item, err.Error())
		stats.Failed++
		metrics.QueueItems.WithLabelValues("action", "failed").Inc()
		w.log.WithError(err).WithFields(logrus.Fields{
			"item_id":     item.ID,
			"tenant_slug": item.TenantSlug,
			"action_type": item.ActionType,
			"attempt":     item.AttemptCount,
		}).Error("action failed")
		return
	}

	if err := w.queue.MarkCompleted(ctx, item.ID); err != nil {
		w.log.WithError(err).WithField("item_id", item.ID).Error("marking action completed")
	}
	stats.Succeeded++
	metrics.QueueItems.WithLabelValues("action", "succeeded").Inc()
}

// guardedExecute runs the policy gate and handler dispatch inside the
// in-process retry loop, converting panics to errors.
func (w *Worker) guardedExecute(ctx context.Context, item models.QueueItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return retry.Do(ctx, w.backoff(w.cfg.ActionMaxRetries), func(ctx context.Context) error {
		return w.executeAction(ctx, item)
	})
}

func (w *Worker) executeAction(ctx context.Context, item models.QueueItem) error {
	if policyKey, ok := item.Payload["policyKey"].(string); ok && policyKey != "" {
		decisionCtx, _ := item.Payload["context"].(map[string]any)
		decision, err := w.decider.Decide(ctx, item.TenantSlug, policyKey, decisionCtx)
		if err != nil {
			return fmt.Errorf("policy check: %w", err)
		}
		if !decision.Allowed {
			return errors.New(decision.Reason)
		}
	}

	executor, ok := w.registry.Get(item.ActionType)
	if !ok {
		return fmt.Errorf("No handler for %s", item.ActionType)
	}

	return executor.Execute(ctx, action.Invocation{
		TenantSlug: item.TenantSlug,
		ActionType: item.ActionType,
		Payload:    item.Payload,
	})
}

func (w *Worker) markActionFailed(ctx context.Context, item models.QueueItem, reason string) {
	if err := w.queue.MarkFailed(ctx, item.ID, reason); err != nil {
		w.log.WithError(err).WithField("item_id", item.ID).Error("marking action failed")
	}
}

func (w *Worker) runReportPass(ctx context.Context) (QueueSummary, error) {
	var stats QueueSummary

	jobs, err := w.reports.ClaimQueued(ctx, w.cfg.ReportBatchSize, w.cfg.ReportMaxAttempts)
	if err != nil {
		return stats, fmt.Errorf("claiming queued report jobs: %w", err)
	}

	stats.Processed = len(jobs)
	metrics.ClaimBatchSize.WithLabelValues("report").Observe(float64(len(jobs)))

	for _, job := range jobs {
		w.processReportJob(ctx, job, &stats)
	}
	return stats, nil
}

func (w *Worker) processReportJob(ctx context.Context, job models.ReportJob, stats *QueueSummary) {
	if job.AttemptCount > w.cfg.ReportMaxAttempts {
		w.markReportFailed(ctx, job, "max attempts exceeded")
		stats.Skipped++
		metrics.QueueItems.WithLabelValues("report", "skipped").Inc()
		w.log.WithFields(logrus.Fields{"job_id": job.ID, "attempts": job.AttemptCount}).
			Warn("report max attempts exceeded")
		return
	}

	location, err := w.guardedRunReport(ctx, job)
	if err != nil {
		w.markReportFailed(ctx, job, err.Error())
		stats.Failed++
		metrics.QueueItems.WithLabelValues("report", "failed").Inc()
		w.log.WithError(err).WithFields(logrus.Fields{
			"job_id":      job.ID,
			"tenant_slug": job.TenantSlug,
			"report_id":   job.ReportID,
		}).Error("report job failed")
		return
	}

	if err := w.reports.MarkSucceeded(ctx, job.ID, location); err != nil {
		w.log.WithError(err).WithField("job_id", job.ID).Error("marking report succeeded")
	}
	stats.Succeeded++
	metrics.QueueItems.WithLabelValues("report", "succeeded").Inc()
}

func (w *Worker) guardedRunReport(ctx context.Context, job models.ReportJob) (location string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("report panic: %v", r)
		}
	}()

	err = retry.Do(ctx, w.backoff(w.cfg.ReportMaxRetries), func(ctx context.Context) error {
		location, err = w.runReport(ctx, job)
		return err
	})
	return location, err
}

func (w *Worker) runReport(ctx context.Context, job models.ReportJob) (string, error) {
	report, err := w.reports.GetReport(ctx, job.TenantSlug, job.ReportID)
	if err != nil {
		if errors.Is(err, models.ErrReportNotFound) {
			return "", errors.New("report not found")
		}
		return "", retry.RetryableError(fmt.Errorf("loading report: %w", err))
	}

	payload, err := w.renderer.Render(job, *report)
	if err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}

	location, err := w.sink.Upload(ctx, job, payload)
	if err != nil {
		return "", err
	}
	return location, nil
}

func (w *Worker) markReportFailed(ctx context.Context, job models.ReportJob, reason string) {
	if err := w.reports.MarkFailed(ctx, job.ID, reason); err != nil {
		w.log.WithError(err).WithField("job_id", job.ID).Error("marking report failed")
	}
}

// backoff builds the in-process retry policy: linear delay growth
// (base, 2*base, 3*base, ...) bounded by maxRetries.
func (w *Worker) backoff(maxRetries int) retry.Backoff {
	attempt := 0
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return w.cfg.RetryDelay * time.Duration(attempt), false
	})
	return retry.WithMaxRetries(uint64(maxRetries), linear)
}
