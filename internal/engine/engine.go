// Package engine matches incoming domain events against tenant automation
// rules, records an audit trail, and enqueues the actions of matched rules
// as durable queue items for the worker.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/condition"
	"github.com/sysprohq/automation/internal/metrics"
	"github.com/sysprohq/automation/internal/models"
)

// Event is one domain occurrence delivered by an upstream producer.
type Event struct {
	TenantSlug string         `json:"tenantSlug"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	Actor      string         `json:"actor,omitempty"`
}

// RuleSource loads the enabled rules for a tenant and event type.
type RuleSource interface {
	ListEnabledByEvent(ctx context.Context, tenantSlug, eventType string) ([]models.Rule, error)
}

// AuditSink appends rule evaluation records.
type AuditSink interface {
	RecordEvaluation(ctx context.Context, audit models.RuleAudit) error
}

// ActionEnqueuer inserts pending queue items.
type ActionEnqueuer interface {
	Enqueue(ctx context.Context, items []models.QueueInsert) error
}

// RuleOutcome is the per-rule result of one event dispatch.
type RuleOutcome struct {
	RuleID   string                  `json:"ruleId"`
	RuleName string                  `json:"ruleName"`
	Matched  bool                    `json:"matched"`
	Enqueued int                     `json:"enqueued"`
	Error    string                  `json:"error,omitempty"`
	Details  []condition.TraceEntry  `json:"details,omitempty"`
}

// EventResult summarizes one HandleEvent call.
type EventResult struct {
	Evaluated int           `json:"evaluated"`
	Matched   int           `json:"matched"`
	Enqueued  int           `json:"enqueued"`
	Outcomes  []RuleOutcome `json:"outcomes"`
}

// Engine is the rule matcher/enqueuer.
type Engine struct {
	rules   RuleSource
	audits  AuditSink
	queue   ActionEnqueuer
	log     *logrus.Logger
	nowFunc func() time.Time
}

// New creates an Engine.
func New(rules RuleSource, audits AuditSink, queue ActionEnqueuer, log *logrus.Logger) *Engine {
	return &Engine{
		rules:   rules,
		audits:  audits,
		queue:   queue,
		log:     log,
		nowFunc: time.Now,
	}
}

// HandleEvent evaluates every enabled rule registered for the event's
// (tenant, type) pair. Each rule gets an audit record whether it matched or
// not; matched non-simulation rules have their actions enqueued. A failure
// in one rule never blocks its siblings.
func (e *Engine) HandleEvent(ctx context.Context, event Event) (*EventResult, error) {
	rules, err := e.rules.ListEnabledByEvent(ctx, event.TenantSlug, event.Type)
	if err != nil {
		return nil, fmt.Errorf("loading rules for %s/%s: %w", event.TenantSlug, event.Type, err)
	}

	result := &EventResult{Outcomes: make([]RuleOutcome, 0, len(rules))}

	for _, rule := range rules {
		outcome := e.dispatchRule(ctx, rule, event)
		result.Evaluated++
		if outcome.Matched {
			result.Matched++
		}
		result.Enqueued += outcome.Enqueued
		result.Outcomes = append(result.Outcomes, outcome)
	}

	e.log.WithFields(logrus.Fields{
		"tenant_slug": event.TenantSlug,
		"event_type":  event.Type,
		"evaluated":   result.Evaluated,
		"matched":     result.Matched,
		"enqueued":    result.Enqueued,
	}).Info("event dispatched")

	return result, nil
}

// dispatchRule evaluates one rule, writes its audit record and enqueues its
// actions. All failures are captured into the outcome.
func (e *Engine) dispatchRule(ctx context.Context, rule models.Rule, event Event) RuleOutcome {
	outcome := RuleOutcome{RuleID: rule.ID, RuleName: rule.Name}

	node, err := condition.Parse(rule.Condition)
	if err != nil {
		outcome.Error = fmt.Sprintf("malformed condition: %v", err)
		e.log.WithError(err).WithField("rule_id", rule.ID).Warn("skipping rule with malformed condition")
		e.writeAudit(ctx, rule, event, outcome)
		return outcome
	}

	matched, details := condition.EvaluateTrace(node, evaluationContext(event))
	outcome.Matched = matched
	outcome.Details = details

	if matched {
		metrics.RulesEvaluated.WithLabelValues("matched").Inc()
	} else {
		metrics.RulesEvaluated.WithLabelValues("unmatched").Inc()
	}

	if matched && !rule.SimulationOnly {
		inserts := e.buildInserts(rule, event)
		if err := e.queue.Enqueue(ctx, inserts); err != nil {
			outcome.Error = fmt.Sprintf("enqueue failed: %v", err)
			e.log.WithError(err).WithField("rule_id", rule.ID).Error("enqueueing rule actions")
		} else {
			outcome.Enqueued = len(inserts)
		}
	}

	e.writeAudit(ctx, rule, event, outcome)
	return outcome
}

// evaluationContext is the shape rule conditions address: the event payload
// under "payload", plus type and actor.
func evaluationContext(event Event) map[string]any {
	return map[string]any{
		"payload": event.Payload,
		"type":    event.Type,
		"actor":   event.Actor,
	}
}

// buildInserts turns the rule's action specs into queue inserts. An action
// with DelaySeconds is scheduled into the future; everything else is due
// immediately.
func (e *Engine) buildInserts(rule models.Rule, event Event) []models.QueueInsert {
	now := e.nowFunc()
	inserts := make([]models.QueueInsert, 0, len(rule.Actions))

	for _, spec := range rule.Actions {
		payload := map[string]any{
			"params":       spec.Params,
			"targetModule": spec.TargetModule,
			"event": map[string]any{
				"type":       event.Type,
				"payload":    event.Payload,
				"actor":      event.Actor,
				"tenantSlug": event.TenantSlug,
			},
		}
		if spec.PolicyKey != "" {
			payload["policyKey"] = spec.PolicyKey
			payload["context"] = event.Payload
		}

		scheduledFor := now
		if spec.DelaySeconds > 0 {
			scheduledFor = now.Add(time.Duration(spec.DelaySeconds) * time.Second)
		}

		inserts = append(inserts, models.QueueInsert{
			RuleID:       rule.ID,
			TenantSlug:   event.TenantSlug,
			ActionType:   spec.Type,
			Payload:      payload,
			ScheduledFor: scheduledFor,
		})
	}
	return inserts
}

// writeAudit appends the evaluation record. Audit failures are logged, not
// propagated; the audit trail is observability, not control flow.
func (e *Engine) writeAudit(ctx context.Context, rule models.Rule, event Event, outcome RuleOutcome) {
	resultDoc := map[string]any{
		"matched":  outcome.Matched,
		"enqueued": outcome.Enqueued,
		"details":  outcome.Details,
	}
	if outcome.Error != "" {
		resultDoc["error"] = outcome.Error
	}

	audit := models.RuleAudit{
		RuleID:     rule.ID,
		TenantSlug: event.TenantSlug,
		TriggerEvent: map[string]any{
			"type":    event.Type,
			"payload": event.Payload,
			"actor":   event.Actor,
		},
		Matched:    outcome.Matched,
		Result:     resultDoc,
		Actor:      event.Actor,
		Scope:      rule.Scope,
		Simulation: rule.SimulationOnly,
	}

	if err := e.audits.RecordEvaluation(ctx, audit); err != nil {
		e.log.WithError(err).WithField("rule_id", rule.ID).Error("recording rule audit")
	}
}

// Simulate is a pure dry run of one rule against one event: no audit rows,
// no queue writes. Disabled rules and event type mismatches report as
// unmatched, mirroring what HandleEvent would do.
func Simulate(rule models.Rule, event Event) RuleOutcome {
	outcome := RuleOutcome{RuleID: rule.ID, RuleName: rule.Name}

	if !rule.Enabled {
		return outcome
	}
	if rule.EventType != "" && rule.EventType != event.Type {
		return outcome
	}

	node, err := condition.Parse(rule.Condition)
	if err != nil {
		outcome.Error = fmt.Sprintf("malformed condition: %v", err)
		return outcome
	}

	outcome.Matched, outcome.Details = condition.EvaluateTrace(node, evaluationContext(event))
	return outcome
}
