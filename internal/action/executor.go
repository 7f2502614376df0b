// Package action defines the handler registry the queue worker dispatches
// through. Executors are external collaborators identified by action type;
// the queue delivers at least once, so executors should be idempotent.
package action

import "context"

// Invocation is one delivery of a queued action to its executor.
type Invocation struct {
	TenantSlug string
	ActionType string
	Payload    map[string]any
}

// Executor handles one action type. Execute returns nil on success. Errors
// wrapped with retry.RetryableError are retried in-process by the worker;
// plain errors fail the attempt immediately.
type Executor interface {
	Type() string
	Execute(ctx context.Context, inv Invocation) error
}

// param reads a string-valued key from the invocation payload's params map.
func param(payload map[string]any, key string) (string, bool) {
	params, ok := payload["params"].(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := params[key].(string)
	return s, ok
}
