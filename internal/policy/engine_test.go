package policy

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/models"
)

type stubVersions struct {
	pv  *models.PolicyVersion
	err error
}

func (s *stubVersions) LatestVersion(_ context.Context, _, _ string) (*models.PolicyVersion, error) {
	return s.pv, s.err
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func published(doc string) *models.PolicyVersion {
	return &models.PolicyVersion{
		PolicyKey:  "spend.limit",
		TenantSlug: "acme",
		Status:     models.PolicyStatusPublished,
		Document:   json.RawMessage(doc),
		Version:    3,
	}
}

func decide(t *testing.T, src VersionSource, ctx map[string]any) Decision {
	t.Helper()
	d, err := NewEngine(src, testLogger()).Decide(context.Background(), "acme", "spend.limit", ctx)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	return d
}

func TestDecide_NoPolicyFailsOpen(t *testing.T) {
	t.Parallel()

	d := decide(t, &stubVersions{err: models.ErrPolicyNotFound}, map[string]any{"amount": 1})
	if !d.Allowed || d.Reason != "no policy" {
		t.Errorf("decision = %+v, want fail-open with reason 'no policy'", d)
	}
}

func TestDecide_UnpublishedFailsOpen(t *testing.T) {
	t.Parallel()

	pv := published(`{"deny":[{"field":"context.amount","op":"gt","value":0}]}`)
	pv.Status = models.PolicyStatusDraft

	d := decide(t, &stubVersions{pv: pv}, map[string]any{"amount": 100})
	if !d.Allowed || d.Reason != "policy not published" {
		t.Errorf("decision = %+v, want fail-open for draft policy", d)
	}
}

func TestDecide_StoreErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	_, err := NewEngine(&stubVersions{err: boom}, testLogger()).
		Decide(context.Background(), "acme", "spend.limit", nil)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}

func TestDecide_DenyWins(t *testing.T) {
	t.Parallel()

	// Context matches both an allow and a deny entry: deny must win
	// regardless of order.
	doc := `{
		"allow": [{"field":"context.amount","op":"gt","value":0}],
		"deny":  [{"field":"context.amount","op":"gt","value":1000000}],
		"default": "allow"
	}`

	d := decide(t, &stubVersions{pv: published(doc)}, map[string]any{"amount": 2000000})
	if d.Allowed {
		t.Errorf("decision = %+v, want denied", d)
	}
	if d.Reason != "deny condition matched" {
		t.Errorf("reason = %q", d.Reason)
	}
}

func TestDecide_SpendLimitScenario(t *testing.T) {
	t.Parallel()

	doc := `{"deny":[{"field":"context.amount","op":"gt","value":1000000}],"default":"allow"}`
	src := &stubVersions{pv: published(doc)}

	if d := decide(t, src, map[string]any{"amount": 2000000}); d.Allowed {
		t.Errorf("amount 2000000: decision = %+v, want denied", d)
	}
	if d := decide(t, src, map[string]any{"amount": 500}); !d.Allowed {
		t.Errorf("amount 500: decision = %+v, want allowed", d)
	}
}

func TestDecide_AllowListRequiresMatch(t *testing.T) {
	t.Parallel()

	doc := `{"allow":[{"field":"context.region","op":"eq","value":"eu"}],"default":"allow"}`
	src := &stubVersions{pv: published(doc)}

	if d := decide(t, src, map[string]any{"region": "eu"}); !d.Allowed || d.Reason != "allow condition matched" {
		t.Errorf("eu: decision = %+v", d)
	}
	if d := decide(t, src, map[string]any{"region": "us"}); d.Allowed || d.Reason != "no allow condition matched" {
		t.Errorf("us: decision = %+v", d)
	}
}

func TestDecide_EmptyAllowFallsBackToDefault(t *testing.T) {
	t.Parallel()

	// Empty allow list is not deny-all: the document default decides when
	// no deny matches.
	deny := `"deny":[{"field":"context.amount","op":"gt","value":100}]`

	d := decide(t, &stubVersions{pv: published(`{` + deny + `,"default":"allow"}`)}, map[string]any{"amount": 50})
	if !d.Allowed || d.Reason != "allow by default" {
		t.Errorf("default allow: decision = %+v", d)
	}

	d = decide(t, &stubVersions{pv: published(`{` + deny + `,"default":"deny"}`)}, map[string]any{"amount": 50})
	if d.Allowed || d.Reason != "deny by default" {
		t.Errorf("default deny: decision = %+v", d)
	}

	// Unspecified default is allow.
	d = decide(t, &stubVersions{pv: published(`{`+deny+`}`)}, map[string]any{"amount": 50})
	if !d.Allowed {
		t.Errorf("unspecified default: decision = %+v, want allowed", d)
	}
}

func TestDecide_MalformedDocumentFailsOpen(t *testing.T) {
	t.Parallel()

	d := decide(t, &stubVersions{pv: published(`{"deny": 42`)}, map[string]any{"amount": 1})
	if !d.Allowed || d.Reason != "invalid policy document" {
		t.Errorf("decision = %+v, want fail-open on malformed document", d)
	}
}

func TestDecide_MalformedEntrySkipped(t *testing.T) {
	t.Parallel()

	// One bad deny entry must not block evaluation of the good one.
	doc := `{"deny":[{"field":"context.x","op":"bogus"},{"field":"context.amount","op":"gt","value":10}]}`

	d := decide(t, &stubVersions{pv: published(doc)}, map[string]any{"amount": 20})
	if d.Allowed {
		t.Errorf("decision = %+v, want denied by the valid entry", d)
	}
}
