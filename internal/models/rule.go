package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Rule field length limits enforced at the API boundary.
const (
	MaxNameLength      = 200
	MaxEventTypeLength = 100
)

// ActionSpec describes one side effect a matched rule produces. The engine
// treats Params as opaque; only the worker's handler registry interprets them.
type ActionSpec struct {
	Type         string         `json:"type"`
	Params       map[string]any `json:"params,omitempty"`
	TargetModule string         `json:"targetModule,omitempty"`
	// DelaySeconds defers execution by scheduling the queue item into the future.
	DelaySeconds int `json:"delaySeconds,omitempty"`
	// PolicyKey, when set, makes the worker consult the policy decision
	// engine before dispatching this action.
	PolicyKey string `json:"policyKey,omitempty"`
}

// Rule is a tenant-defined binding of an event type, a condition tree and a
// list of actions. The engine never mutates rules; writes come from the
// admin API.
type Rule struct {
	ID             string          `json:"id"`
	TenantSlug     string          `json:"tenantSlug"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	EventType      string          `json:"eventType"`
	Condition      json.RawMessage `json:"condition"`
	Actions        []ActionSpec    `json:"actions"`
	Scope          map[string]any  `json:"scope,omitempty"`
	Enabled        bool            `json:"enabled"`
	SimulationOnly bool            `json:"simulationOnly"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// CreateRuleRequest is the payload for POST /api/rules.
type CreateRuleRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	EventType      string          `json:"eventType"`
	Condition      json.RawMessage `json:"condition"`
	Actions        []ActionSpec    `json:"actions"`
	Scope          map[string]any  `json:"scope"`
	Enabled        *bool           `json:"enabled"`
	SimulationOnly bool            `json:"simulationOnly"`
}

// Validate checks required fields and length limits.
func (r *CreateRuleRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrMissingName
	}
	if len(r.Name) > MaxNameLength {
		return ErrFieldTooLong("name", MaxNameLength)
	}
	if strings.TrimSpace(r.EventType) == "" {
		return ErrMissingEventType
	}
	if len(r.EventType) > MaxEventTypeLength {
		return ErrFieldTooLong("eventType", MaxEventTypeLength)
	}
	if len(r.Condition) == 0 {
		return ErrMissingCondition
	}
	if len(r.Actions) == 0 && !r.SimulationOnly {
		return ErrMissingActions
	}
	for _, a := range r.Actions {
		if strings.TrimSpace(a.Type) == "" {
			return ErrMissingActionType
		}
	}
	return nil
}

// UpdateRuleRequest carries partial updates for PATCH /api/rules/:id.
// Nil pointers mean "leave unchanged".
type UpdateRuleRequest struct {
	Name           *string         `json:"name"`
	Description    *string         `json:"description"`
	EventType      *string         `json:"eventType"`
	Condition      json.RawMessage `json:"condition"`
	Actions        []ActionSpec    `json:"actions"`
	Scope          map[string]any  `json:"scope"`
	Enabled        *bool           `json:"enabled"`
	SimulationOnly *bool           `json:"simulationOnly"`
}
