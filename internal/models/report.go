package models

import (
	"encoding/json"
	"time"
)

// Report job lifecycle. Succeeded and failed are terminal.
const (
	ReportStatusQueued    = "queued"
	ReportStatusRunning   = "running"
	ReportStatusSucceeded = "succeeded"
	ReportStatusFailed    = "failed"
)

// Report is a saved report definition a tenant can run on a schedule or on
// demand. Definition is opaque to the queue machinery; the renderer embeds
// it into the generated payload.
type Report struct {
	ID         string          `json:"id"`
	TenantSlug string          `json:"tenantSlug"`
	Name       string          `json:"name"`
	ReportType string          `json:"reportType"`
	Definition json.RawMessage `json:"definition"`
	Filters    map[string]any  `json:"filters,omitempty"`
	Schedule   string          `json:"schedule,omitempty"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// ReportJob is one queued run of a report. Same claim/retry lifecycle shape
// as QueueItem, with run timestamps and an output location on success.
type ReportJob struct {
	ID             string         `json:"id"`
	ReportID       string         `json:"reportId"`
	TenantSlug     string         `json:"tenantSlug"`
	RequestedBy    string         `json:"requestedBy,omitempty"`
	Status         string         `json:"status"`
	Filters        map[string]any `json:"filters,omitempty"`
	OutputLocation string         `json:"outputLocation,omitempty"`
	Error          string         `json:"error,omitempty"`
	AttemptCount   int            `json:"attemptCount"`
	CreatedAt      time.Time      `json:"createdAt"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
}
