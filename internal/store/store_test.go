package store_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/dbpool"
	"github.com/sysprohq/automation/internal/store"
)

// testEnv holds shared test infrastructure (single pool across all tests).
type testEnv struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

var sharedEnv *testEnv

func getTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if sharedEnv != nil {
		return sharedEnv
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	pool, err := dbpool.NewPool(ctx, dbURL)
	if err != nil {
		t.Fatalf("connecting to test DB: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	sharedEnv = &testEnv{
		pool: pool,
		log:  log,
	}

	return sharedEnv
}

// setupTestBase creates a Base with a fresh test tenant, cleaned up after the test.
func setupTestBase(t *testing.T) (_ store.Base, _ string) {
	t.Helper()

	env := getTestEnv(t)
	slug := "t-" + uuid.New().String()[:8]
	ctx := context.Background()

	apiKey := "test-key-" + slug
	hash := sha256.Sum256([]byte(apiKey))
	apiKeyHash := hex.EncodeToString(hash[:])

	_, err := env.pool.Exec(ctx,
		"INSERT INTO tenants (slug, name, api_key_hash) VALUES ($1, $2, $3)",
		slug, fmt.Sprintf("test-tenant-%s", slug), apiKeyHash,
	)
	if err != nil {
		t.Fatalf("creating test tenant: %v", err)
	}

	t.Cleanup(func() {
		cleanCtx := context.Background()
		// Delete in dependency order: jobs, queue, audits, reports, rules,
		// policy versions, policies, tenant.
		env.pool.Exec(cleanCtx, "DELETE FROM report_jobs WHERE tenant_slug = $1", slug)                                                 //nolint:errcheck // best-effort cleanup
		env.pool.Exec(cleanCtx, "DELETE FROM automation_action_queue WHERE tenant_slug = $1", slug)                                    //nolint:errcheck // best-effort cleanup
		env.pool.Exec(cleanCtx, "DELETE FROM automation_rule_audits WHERE tenant_slug = $1", slug)                                     //nolint:errcheck // best-effort cleanup
		env.pool.Exec(cleanCtx, "DELETE FROM reports WHERE tenant_slug = $1", slug)                                                    //nolint:errcheck // best-effort cleanup
		env.pool.Exec(cleanCtx, "DELETE FROM automation_rules WHERE tenant_slug = $1", slug)                                           //nolint:errcheck // best-effort cleanup
		env.pool.Exec(cleanCtx, "DELETE FROM policy_versions WHERE policy_id IN (SELECT id FROM policies WHERE tenant_slug = $1)", slug) //nolint:errcheck // best-effort cleanup
		env.pool.Exec(cleanCtx, "DELETE FROM policies WHERE tenant_slug = $1", slug)                                                   //nolint:errcheck // best-effort cleanup
		env.pool.Exec(cleanCtx, "DELETE FROM tenants WHERE slug = $1", slug)                                                           //nolint:errcheck // best-effort cleanup
	})

	base := store.Base{Pool: env.pool, Log: env.log}

	return base, slug
}

func TestGetTenantByAPIKey(t *testing.T) {
	base, slug := setupTestBase(t)
	ctx := context.Background()

	got, err := base.GetTenantByAPIKey(ctx, "test-key-"+slug)
	if err != nil {
		t.Fatalf("GetTenantByAPIKey: %v", err)
	}
	if got != slug {
		t.Fatalf("tenant = %q, want %q", got, slug)
	}

	if _, err := base.GetTenantByAPIKey(ctx, "wrong-key"); err == nil {
		t.Fatal("expected error for unknown API key")
	}
}
