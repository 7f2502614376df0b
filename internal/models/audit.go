package models

import "time"

// RuleAudit is one append-only record of a rule's evaluation against one
// event, written whether or not the rule matched.
type RuleAudit struct {
	ID           string         `json:"id"`
	RuleID       string         `json:"ruleId"`
	TenantSlug   string         `json:"tenantSlug"`
	TriggerEvent map[string]any `json:"triggerEvent"`
	Matched      bool           `json:"matched"`
	Result       map[string]any `json:"result,omitempty"`
	Actor        string         `json:"actor,omitempty"`
	Scope        map[string]any `json:"scope,omitempty"`
	Simulation   bool           `json:"simulation"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// AuditQueryOpts filters audit listings.
type AuditQueryOpts struct {
	RuleID  string
	Matched *bool
	Limit   int
	Offset  int
}

// AuditCounts aggregates evaluation outcomes for the summary endpoint.
type AuditCounts struct {
	Total     int `json:"total"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
}
