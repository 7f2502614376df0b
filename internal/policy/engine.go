// Package policy implements the allow/deny decision engine that gates queued
// actions independently of the rule that produced them.
//
// Decisions are strictly deny-overrides-allow: any matching deny entry wins,
// then a non-empty allow list requires at least one match, then the document
// default applies. Absent or unpublished policies never block an action.
package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/condition"
	"github.com/sysprohq/automation/internal/models"
)

// Decision is the verdict for one gate check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// VersionSource fetches the authoritative (highest-versioned) policy
// document for a tenant and key.
type VersionSource interface {
	LatestVersion(ctx context.Context, tenantSlug, policyKey string) (*models.PolicyVersion, error)
}

// Engine evaluates policy documents against decision contexts.
type Engine struct {
	versions VersionSource
	log      *logrus.Logger
}

// NewEngine creates an Engine backed by the given version source.
func NewEngine(versions VersionSource, log *logrus.Logger) *Engine {
	return &Engine{versions: versions, log: log}
}

// Decide fetches the latest policy version for (tenantSlug, policyKey) and
// applies it to decisionCtx. Store errors other than not-found are returned
// so callers can distinguish infrastructure failures from verdicts.
func (e *Engine) Decide(ctx context.Context, tenantSlug, policyKey string, decisionCtx map[string]any) (Decision, error) {
	pv, err := e.versions.LatestVersion(ctx, tenantSlug, policyKey)
	if err != nil {
		if errors.Is(err, models.ErrPolicyNotFound) {
			return Decision{Allowed: true, Reason: "no policy"}, nil
		}
		return Decision{}, fmt.Errorf("fetching policy %s/%s: %w", tenantSlug, policyKey, err)
	}

	if pv.Status != models.PolicyStatusPublished {
		return Decision{Allowed: true, Reason: "policy not published"}, nil
	}

	// Policy conditions address the decision context through a "context"
	// prefix ({"field": "context.amount", ...}).
	return e.apply(pv, map[string]any{"context": decisionCtx}), nil
}

// apply evaluates a published policy document. Malformed documents fail
// open with an explanatory reason rather than blocking the queue.
func (e *Engine) apply(pv *models.PolicyVersion, decisionCtx map[string]any) Decision {
	if len(pv.Document) == 0 {
		return Decision{Allowed: true, Reason: "no policy document"}
	}

	var doc models.PolicyDocument
	if err := json.Unmarshal(pv.Document, &doc); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"tenant_slug": pv.TenantSlug,
			"policy_key":  pv.PolicyKey,
			"version":     pv.Version,
		}).Warn("invalid policy document")
		return Decision{Allowed: true, Reason: "invalid policy document"}
	}

	// Deny always wins, regardless of list order.
	if e.anyMatches(pv, doc.Deny, decisionCtx) {
		return Decision{Allowed: false, Reason: "deny condition matched"}
	}

	if len(doc.Allow) > 0 {
		if e.anyMatches(pv, doc.Allow, decisionCtx) {
			return Decision{Allowed: true, Reason: "allow condition matched"}
		}
		return Decision{Allowed: false, Reason: "no allow condition matched"}
	}

	// Empty allow list is NOT deny-all: fall through to the document
	// default. Changing this would change the security posture of every
	// existing policy.
	def := doc.Default
	if def != models.PolicyDefaultDeny {
		def = models.PolicyDefaultAllow
	}
	return Decision{Allowed: def == models.PolicyDefaultAllow, Reason: def + " by default"}
}

// anyMatches evaluates each entry as its own condition tree. Entries that
// fail to parse are skipped (and logged) so one bad entry cannot flip a
// whole policy.
func (e *Engine) anyMatches(pv *models.PolicyVersion, entries []json.RawMessage, decisionCtx map[string]any) bool {
	for i, raw := range entries {
		node, err := condition.Parse(raw)
		if err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{
				"tenant_slug": pv.TenantSlug,
				"policy_key":  pv.PolicyKey,
				"entry":       i,
			}).Warn("skipping malformed policy condition")
			continue
		}
		if condition.Evaluate(node, decisionCtx) {
			return true
		}
	}
	return false
}
