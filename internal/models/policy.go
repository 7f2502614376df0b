package models

import "encoding/json"

// Policy publication states. Anything other than published is treated as
// permissive by the decision engine.
const (
	PolicyStatusDraft     = "draft"
	PolicyStatusPublished = "published"
)

// Policy document defaults.
const (
	PolicyDefaultAllow = "allow"
	PolicyDefaultDeny  = "deny"
)

// PolicyVersion is the highest-versioned document for a (tenant, policyKey)
// pair. The engine only ever reads these; authoring happens elsewhere.
type PolicyVersion struct {
	PolicyKey  string          `json:"policyKey"`
	TenantSlug string          `json:"tenantSlug"`
	Status     string          `json:"status"`
	Document   json.RawMessage `json:"document"`
	Version    int             `json:"version"`
}

// PolicyDocument is the decoded allow/deny rule set. Allow and Deny entries
// are condition trees in the same wire shape the rule engine uses.
type PolicyDocument struct {
	Allow   []json.RawMessage `json:"allow"`
	Deny    []json.RawMessage `json:"deny"`
	Default string            `json:"default"`
}
