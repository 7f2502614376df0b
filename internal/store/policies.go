package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sysprohq/automation/internal/models"
)

// PolicyStore reads published policy documents for the decision engine.
// Authoring happens outside this service; this store is read-only.
type PolicyStore struct {
	Base
}

// NewPolicyStore creates a PolicyStore.
func NewPolicyStore(base Base) *PolicyStore {
	return &PolicyStore{Base: base}
}

// LatestVersion returns the highest-versioned document for a (tenant,
// policyKey) pair regardless of status; the decision engine decides what an
// unpublished version means. A policy row with no versions reports as not
// found.
func (s *PolicyStore) LatestVersion(ctx context.Context, tenantSlug, policyKey string) (*models.PolicyVersion, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var version models.PolicyVersion
	var document []byte

	err := s.Pool.QueryRow(ctx, `
		SELECT p.policy_key, p.tenant_slug, v.status, v.document, v.version
		FROM policies p
		JOIN policy_versions v ON v.policy_id = p.id
		WHERE p.tenant_slug = $1 AND p.policy_key = $2
		ORDER BY v.version DESC
		LIMIT 1`,
		tenantSlug, policyKey,
	).Scan(&version.PolicyKey, &version.TenantSlug, &version.Status, &document, &version.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPolicyNotFound
		}
		return nil, fmt.Errorf("loading policy version: %w", err)
	}

	version.Document = document
	return &version, nil
}
