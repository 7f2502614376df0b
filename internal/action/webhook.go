package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

const webhookTimeout = 30 * time.Second

// WebhookExecutor posts the action payload to a tenant-configured URL.
// Params: url (required), method (default POST), headers (object), body
// (any JSON value; defaults to the full invocation payload).
type WebhookExecutor struct {
	client *http.Client
	log    *logrus.Logger
}

// NewWebhookExecutor creates a WebhookExecutor. A nil client gets a default
// with a request timeout.
func NewWebhookExecutor(client *http.Client, log *logrus.Logger) *WebhookExecutor {
	if client == nil {
		client = &http.Client{Timeout: webhookTimeout}
	}
	return &WebhookExecutor{client: client, log: log}
}

// Type implements Executor.
func (e *WebhookExecutor) Type() string { return "webhook:post" }

// Execute sends the HTTP request. Transport failures are retryable; a
// non-2xx response is a permanent failure for this attempt (the remote saw
// the request, re-sending blindly risks duplication).
func (e *WebhookExecutor) Execute(ctx context.Context, inv Invocation) error {
	url, ok := param(inv.Payload, "url")
	if !ok || url == "" {
		return fmt.Errorf("webhook:post requires params.url")
	}

	method := http.MethodPost
	if m, ok := param(inv.Payload, "method"); ok && m != "" {
		method = m
	}

	var body any = inv.Payload
	if params, ok := inv.Payload["params"].(map[string]any); ok {
		if b, ok := params["body"]; ok {
			body = b
		}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if params, ok := inv.Payload["params"].(map[string]any); ok {
		if headers, ok := params["headers"].(map[string]any); ok {
			for k, v := range headers {
				if s, ok := v.(string); ok {
					req.Header.Set(k, s)
				}
			}
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("webhook request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}

	e.log.WithFields(logrus.Fields{
		"tenant_slug": inv.TenantSlug,
		"url":         url,
		"status":      resp.StatusCode,
	}).Debug("webhook delivered")

	return nil
}
