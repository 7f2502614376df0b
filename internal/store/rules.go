package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sysprohq/automation/internal/models"
)

// RuleStore provides data access for the automation_rules table.
type RuleStore struct {
	Base
}

// NewRuleStore creates a RuleStore.
func NewRuleStore(base Base) *RuleStore {
	return &RuleStore{Base: base}
}

const ruleColumns = `id, tenant_slug, name, description, event_type, condition,
	actions, scope, enabled, simulation_only, version, created_at, updated_at`

// Create inserts a new rule and returns it.
func (s *RuleStore) Create(ctx context.Context, tenantSlug string, req models.CreateRuleRequest) (*models.Rule, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	actionsJSON, err := marshalJSON(req.Actions, "rule actions")
	if err != nil {
		return nil, err
	}
	scopeJSON, err := marshalJSON(req.Scope, "rule scope")
	if err != nil {
		return nil, err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	row := s.Pool.QueryRow(ctx, `
		INSERT INTO automation_rules
			(id, tenant_slug, name, description, event_type, condition, actions, scope, enabled, simulation_only)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+ruleColumns,
		uuid.New().String(), tenantSlug, req.Name, req.Description, req.EventType,
		[]byte(req.Condition), actionsJSON, scopeJSON, enabled, req.SimulationOnly,
	)

	rule, err := s.scanRule(row)
	if err != nil {
		return nil, fmt.Errorf("inserting rule: %w", mapError(err))
	}
	return rule, nil
}

// Get returns one rule by id, scoped to the tenant.
func (s *RuleStore) Get(ctx context.Context, tenantSlug, id string) (*models.Rule, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.Pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM automation_rules WHERE tenant_slug = $1 AND id = $2`,
		tenantSlug, id,
	)

	rule, err := s.scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrRuleNotFound
		}
		return nil, fmt.Errorf("loading rule: %w", err)
	}
	return rule, nil
}

// List returns the tenant's rules, newest first.
func (s *RuleStore) List(ctx context.Context, tenantSlug string) ([]models.Rule, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		`SELECT `+ruleColumns+` FROM automation_rules WHERE tenant_slug = $1 ORDER BY created_at DESC`,
		tenantSlug,
	)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}

	return collectRows(rows, func(rows pgx.Rows) (models.Rule, error) {
		rule, err := s.scanRule(rows)
		if err != nil {
			return models.Rule{}, err
		}
		return *rule, nil
	}, "rule")
}

// ListEnabledByEvent returns the enabled rules bound to one event type.
func (s *RuleStore) ListEnabledByEvent(ctx context.Context, tenantSlug, eventType string) ([]models.Rule, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `
		SELECT `+ruleColumns+` FROM automation_rules
		WHERE tenant_slug = $1 AND event_type = $2 AND enabled = TRUE
		ORDER BY created_at`,
		tenantSlug, eventType,
	)
	if err != nil {
		return nil, fmt.Errorf("querying enabled rules: %w", err)
	}

	return collectRows(rows, func(rows pgx.Rows) (models.Rule, error) {
		rule, err := s.scanRule(rows)
		if err != nil {
			return models.Rule{}, err
		}
		return *rule, nil
	}, "rule")
}

// buildRuleUpdate builds SET clauses and args from the non-nil fields of a
// partial update. Every value travels as a bind parameter.
func buildRuleUpdate(req models.UpdateRuleRequest) (clauses []string, args []any, err error) {
	argIdx := 1
	add := func(column string, value any) {
		clauses = append(clauses, column+" = $"+strconv.Itoa(argIdx))
		args = append(args, value)
		argIdx++
	}

	if req.Name != nil {
		add("name", *req.Name)
	}
	if req.Description != nil {
		add("description", *req.Description)
	}
	if req.EventType != nil {
		add("event_type", *req.EventType)
	}
	if len(req.Condition) > 0 {
		add("condition", []byte(req.Condition))
	}
	if req.Actions != nil {
		actionsJSON, err := marshalJSON(req.Actions, "rule actions")
		if err != nil {
			return nil, nil, err
		}
		add("actions", actionsJSON)
	}
	if req.Scope != nil {
		scopeJSON, err := marshalJSON(req.Scope, "rule scope")
		if err != nil {
			return nil, nil, err
		}
		add("scope", scopeJSON)
	}
	if req.Enabled != nil {
		add("enabled", *req.Enabled)
	}
	if req.SimulationOnly != nil {
		add("simulation_only", *req.SimulationOnly)
	}

	return clauses, args, nil
}

// Update applies a partial update and bumps version/updated_at. A request
// with no changed fields returns the rule unchanged.
func (s *RuleStore) Update(ctx context.Context, tenantSlug, id string, req models.UpdateRuleRequest) (*models.Rule, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	clauses, args, err := buildRuleUpdate(req)
	if err != nil {
		return nil, err
	}
	if len(clauses) == 0 {
		return s.Get(ctx, tenantSlug, id)
	}

	clauses = append(clauses, "version = version + 1", "updated_at = NOW()")

	argIdx := len(args) + 1
	query := fmt.Sprintf(
		"UPDATE automation_rules SET %s WHERE tenant_slug = $%d AND id = $%d RETURNING %s",
		strings.Join(clauses, ", "), argIdx, argIdx+1, ruleColumns,
	)
	args = append(args, tenantSlug, id)

	rule, err := s.scanRule(s.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrRuleNotFound
		}
		return nil, fmt.Errorf("updating rule: %w", mapError(err))
	}
	return rule, nil
}

// Delete removes a rule.
func (s *RuleStore) Delete(ctx context.Context, tenantSlug, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx,
		"DELETE FROM automation_rules WHERE tenant_slug = $1 AND id = $2",
		tenantSlug, id,
	)
	if err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrRuleNotFound
	}
	return nil
}

// Count returns the tenant's rule totals for the summary endpoint.
func (s *RuleStore) Count(ctx context.Context, tenantSlug string) (total, enabled int, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err = s.Pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE enabled)
		FROM automation_rules WHERE tenant_slug = $1`,
		tenantSlug,
	).Scan(&total, &enabled)
	if err != nil {
		return 0, 0, fmt.Errorf("counting rules: %w", err)
	}
	return total, enabled, nil
}

// scanRule scans one rule row (works for both QueryRow and Rows).
func (s *RuleStore) scanRule(row pgx.Row) (*models.Rule, error) {
	var rule models.Rule
	var description *string
	var condition, actionsJSON, scopeJSON []byte

	err := row.Scan(
		&rule.ID, &rule.TenantSlug, &rule.Name, &description, &rule.EventType,
		&condition, &actionsJSON, &scopeJSON, &rule.Enabled, &rule.SimulationOnly,
		&rule.Version, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description != nil {
		rule.Description = *description
	}
	rule.Condition = json.RawMessage(condition)
	unmarshalJSON(actionsJSON, &rule.Actions, "rule actions", s.Log)
	unmarshalJSON(scopeJSON, &rule.Scope, "rule scope", s.Log)

	return &rule, nil
}
