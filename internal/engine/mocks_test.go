package engine

import (
	"context"
	"sync"

	"github.com/sysprohq/automation/internal/models"
)

// mockRuleSource returns configured rules.
type mockRuleSource struct {
	rules []models.Rule
	err   error
}

func (m *mockRuleSource) ListEnabledByEvent(_ context.Context, _, _ string) ([]models.Rule, error) {
	return m.rules, m.err
}

// mockAuditSink records evaluation audits.
type mockAuditSink struct {
	mu     sync.Mutex
	audits []models.RuleAudit
	err    error
}

func (m *mockAuditSink) RecordEvaluation(_ context.Context, audit models.RuleAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, audit)
	return m.err
}

func (m *mockAuditSink) recorded() []models.RuleAudit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.RuleAudit(nil), m.audits...)
}

// mockEnqueuer records queue inserts.
type mockEnqueuer struct {
	mu      sync.Mutex
	inserts []models.QueueInsert
	err     error
}

func (m *mockEnqueuer) Enqueue(_ context.Context, items []models.QueueInsert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.inserts = append(m.inserts, items...)
	return nil
}

func (m *mockEnqueuer) enqueued() []models.QueueInsert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.QueueInsert(nil), m.inserts...)
}
