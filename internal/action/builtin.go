package action

import (
	"context"

	"github.com/sirupsen/logrus"
)

// The notification, email and task executors are log-backed collaborator
// stubs: they honor the payload contract and record the delivery, while the
// actual transport (SMTP relay, task system) lives outside this service.

// LogNotifyExecutor handles notify:log actions.
type LogNotifyExecutor struct {
	log *logrus.Logger
}

// NewLogNotifyExecutor creates a LogNotifyExecutor.
func NewLogNotifyExecutor(log *logrus.Logger) *LogNotifyExecutor {
	return &LogNotifyExecutor{log: log}
}

// Type implements Executor.
func (e *LogNotifyExecutor) Type() string { return "notify:log" }

// Execute implements Executor.
func (e *LogNotifyExecutor) Execute(_ context.Context, inv Invocation) error {
	message, _ := param(inv.Payload, "message")
	e.log.WithFields(logrus.Fields{
		"tenant_slug": inv.TenantSlug,
		"message":     message,
	}).Info("automation notify")
	return nil
}

// EmailExecutor handles email:send actions.
type EmailExecutor struct {
	log *logrus.Logger
}

// NewEmailExecutor creates an EmailExecutor.
func NewEmailExecutor(log *logrus.Logger) *EmailExecutor {
	return &EmailExecutor{log: log}
}

// Type implements Executor.
func (e *EmailExecutor) Type() string { return "email:send" }

// Execute implements Executor.
func (e *EmailExecutor) Execute(_ context.Context, inv Invocation) error {
	to, _ := param(inv.Payload, "to")
	subject, _ := param(inv.Payload, "subject")
	e.log.WithFields(logrus.Fields{
		"tenant_slug": inv.TenantSlug,
		"to":          to,
		"subject":     subject,
	}).Info("automation email")
	return nil
}

// TaskExecutor handles task:create actions.
type TaskExecutor struct {
	log *logrus.Logger
}

// NewTaskExecutor creates a TaskExecutor.
func NewTaskExecutor(log *logrus.Logger) *TaskExecutor {
	return &TaskExecutor{log: log}
}

// Type implements Executor.
func (e *TaskExecutor) Type() string { return "task:create" }

// Execute implements Executor.
func (e *TaskExecutor) Execute(_ context.Context, inv Invocation) error {
	title, _ := param(inv.Payload, "title")
	e.log.WithFields(logrus.Fields{
		"tenant_slug":   inv.TenantSlug,
		"title":         title,
		"target_module": inv.Payload["targetModule"],
	}).Info("automation task created")
	return nil
}

// RegisterBuiltins registers the built-in executors on the registry.
func RegisterBuiltins(r *Registry, log *logrus.Logger) {
	r.Register(NewWebhookExecutor(nil, log))
	r.Register(NewLogNotifyExecutor(log))
	r.Register(NewEmailExecutor(log))
	r.Register(NewTaskExecutor(log))
}
