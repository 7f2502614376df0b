package models

import "time"

// Queue item lifecycle. Completed and failed are terminal; no item ever
// transitions out of a terminal state.
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusCompleted  = "completed"
	QueueStatusFailed     = "failed"
)

// QueueItem is one durable, retryable unit of work produced by a matched
// rule. ActionType and Payload are immutable after insert; the worker only
// ever touches status, error and attempt_count.
type QueueItem struct {
	ID           string         `json:"id"`
	RuleID       string         `json:"ruleId"`
	TenantSlug   string         `json:"tenantSlug"`
	ActionType   string         `json:"actionType"`
	Payload      map[string]any `json:"actionPayload"`
	Status       string         `json:"status"`
	Error        string         `json:"error,omitempty"`
	ScheduledFor time.Time      `json:"scheduledFor"`
	AttemptCount int            `json:"attemptCount"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// QueueInsert is the payload for enqueueing a new pending item.
type QueueInsert struct {
	RuleID       string
	TenantSlug   string
	ActionType   string
	Payload      map[string]any
	ScheduledFor time.Time
}

// QueueCounts aggregates queue depth by status for the summary endpoint.
type QueueCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
