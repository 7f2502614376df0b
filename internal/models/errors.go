package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation.
var (
	ErrMissingName       = errors.New("name is required")
	ErrMissingEventType  = errors.New("eventType is required")
	ErrMissingCondition  = errors.New("condition is required")
	ErrMissingActions    = errors.New("at least one action is required")
	ErrMissingActionType = errors.New("action type is required")
)

// Sentinel errors for entity lookups.
var (
	ErrRuleNotFound   = errors.New("rule not found")
	ErrReportNotFound = errors.New("report not found")
	ErrPolicyNotFound = errors.New("policy not found")
)

// ErrDuplicateKey indicates a unique constraint violation (maps to HTTP 409 Conflict).
var ErrDuplicateKey = errors.New("duplicate key")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}
