package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sysprohq/automation/internal/models"
)

// AuditStore provides data access for the automation_rule_audits table.
// The table is append-only; there is no update or delete path.
type AuditStore struct {
	Base
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(base Base) *AuditStore {
	return &AuditStore{Base: base}
}

// RecordEvaluation appends one evaluation record.
func (s *AuditStore) RecordEvaluation(ctx context.Context, audit models.RuleAudit) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	triggerJSON, err := marshalJSON(audit.TriggerEvent, "trigger event")
	if err != nil {
		return err
	}
	resultJSON, err := marshalJSON(audit.Result, "audit result")
	if err != nil {
		return err
	}
	scopeJSON, err := marshalJSON(audit.Scope, "audit scope")
	if err != nil {
		return err
	}

	_, err = s.Pool.Exec(ctx, `
		INSERT INTO automation_rule_audits
			(id, rule_id, tenant_slug, trigger_event, matched, result, actor, scope, simulation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New().String(), audit.RuleID, audit.TenantSlug, triggerJSON,
		audit.Matched, resultJSON, audit.Actor, scopeJSON, audit.Simulation,
	)
	if err != nil {
		return fmt.Errorf("inserting rule audit: %w", err)
	}
	return nil
}

// buildAuditFilter builds WHERE clauses and args from AuditQueryOpts. The
// tenant filter is always first.
func buildAuditFilter(tenantSlug string, opts models.AuditQueryOpts) (where string, args []any, nextArg int) {
	conditions := []string{"tenant_slug = $1"}
	args = append(args, tenantSlug)
	argIdx := 2

	if opts.RuleID != "" {
		conditions = append(conditions, "rule_id = $"+strconv.Itoa(argIdx))
		args = append(args, opts.RuleID)
		argIdx++
	}
	if opts.Matched != nil {
		conditions = append(conditions, "matched = $"+strconv.Itoa(argIdx))
		args = append(args, *opts.Matched)
		argIdx++
	}

	return "WHERE " + strings.Join(conditions, " AND "), args, argIdx
}

// List returns audit entries matching the filters, newest first. Returns
// entries, a hasMore flag, and any error.
func (s *AuditStore) List(ctx context.Context, tenantSlug string, opts models.AuditQueryOpts) ([]models.RuleAudit, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	where, args, argIdx := buildAuditFilter(tenantSlug, opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT id, rule_id, tenant_slug, trigger_event, matched, result, actor, scope, simulation, created_at
		FROM automation_rule_audits %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1,
	)
	args = append(args, limit+1, opts.Offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("querying rule audits: %w", err)
	}

	entries, err := collectRows(rows, s.scanAudit, "rule audit")
	if err != nil {
		return nil, false, err
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}
	return entries, hasMore, nil
}

// Counts aggregates evaluation outcomes for the summary endpoint.
func (s *AuditStore) Counts(ctx context.Context, tenantSlug string) (models.AuditCounts, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var counts models.AuditCounts
	err := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE matched)
		FROM automation_rule_audits WHERE tenant_slug = $1`,
		tenantSlug,
	).Scan(&counts.Total, &counts.Matched)
	if err != nil {
		return models.AuditCounts{}, fmt.Errorf("counting rule audits: %w", err)
	}
	counts.Unmatched = counts.Total - counts.Matched
	return counts, nil
}

func (s *AuditStore) scanAudit(rows pgx.Rows) (models.RuleAudit, error) {
	var a models.RuleAudit
	var triggerJSON, resultJSON, scopeJSON []byte
	var actor *string

	err := rows.Scan(
		&a.ID, &a.RuleID, &a.TenantSlug, &triggerJSON, &a.Matched,
		&resultJSON, &actor, &scopeJSON, &a.Simulation, &a.CreatedAt,
	)
	if err != nil {
		return models.RuleAudit{}, err
	}

	if actor != nil {
		a.Actor = *actor
	}
	unmarshalJSON(triggerJSON, &a.TriggerEvent, "trigger event", s.Log)
	unmarshalJSON(resultJSON, &a.Result, "audit result", s.Log)
	unmarshalJSON(scopeJSON, &a.Scope, "audit scope", s.Log)

	return a, nil
}
