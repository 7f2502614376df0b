package main

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/action"
	"github.com/sysprohq/automation/internal/config"
	"github.com/sysprohq/automation/internal/dbpool"
	"github.com/sysprohq/automation/internal/engine"
	"github.com/sysprohq/automation/internal/policy"
	"github.com/sysprohq/automation/internal/report"
	"github.com/sysprohq/automation/internal/store"
	"github.com/sysprohq/automation/internal/worker"
)

// deps is the fully wired object graph shared by the serve and worker
// commands.
type deps struct {
	pool     *dbpool.Pool
	base     *store.Base
	rules    *store.RuleStore
	audits   *store.AuditStore
	queue    *store.QueueStore
	policies *store.PolicyStore
	reports  *store.ReportStore
	engine   *engine.Engine
	worker   *worker.Worker
}

// buildDeps connects to the database and wires stores, engine and worker.
func buildDeps(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*deps, error) {
	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value())
	if err != nil {
		return nil, err
	}

	base := store.Base{Pool: pool, Log: log}
	d := &deps{
		pool:     pool,
		base:     &base,
		rules:    store.NewRuleStore(base),
		audits:   store.NewAuditStore(base),
		queue:    store.NewQueueStore(base),
		policies: store.NewPolicyStore(base),
		reports:  store.NewReportStore(base),
	}

	d.engine = engine.New(d.rules, d.audits, d.queue, log)

	httpClient := &http.Client{Timeout: 30 * time.Second}

	registry := action.NewRegistry()
	registry.Register(action.NewLogNotifyExecutor(log))
	registry.Register(action.NewEmailExecutor(log))
	registry.Register(action.NewTaskExecutor(log))
	registry.Register(action.NewWebhookExecutor(httpClient, log))

	decider := policy.NewEngine(d.policies, log)
	renderer := report.NewJSONRenderer()
	sink := report.NewSink(report.SinkConfig{
		BaseURL: cfg.ReportUploadBaseURL,
		URL:     cfg.ReportUploadURL,
		Method:  cfg.ReportUploadMethod,
		Headers: cfg.ReportUploadHeaders,
	}, httpClient, log)

	d.worker = worker.New(d.queue, d.reports, registry, decider, renderer, sink, worker.Config{
		ActionBatchSize:   cfg.ActionBatchSize,
		ReportBatchSize:   cfg.ReportBatchSize,
		ActionMaxRetries:  cfg.ActionMaxRetries,
		ReportMaxRetries:  cfg.ReportMaxRetries,
		RetryDelay:        cfg.RetryDelay,
		ActionMaxAttempts: cfg.ActionMaxAttempts,
		ReportMaxAttempts: cfg.ReportMaxAttempts,
		ReapAfter:         cfg.WorkerReapAfter,
	}, log)

	return d, nil
}

func (d *deps) Close() {
	d.pool.Close()
}
