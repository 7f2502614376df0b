package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sysprohq/automation/internal/models"
)

// QueueStore provides data access for the automation_action_queue table.
type QueueStore struct {
	Base
}

// NewQueueStore creates a QueueStore.
func NewQueueStore(base Base) *QueueStore {
	return &QueueStore{Base: base}
}

// Enqueue inserts a batch of pending items in one transaction and signals
// the queue channel so a listening worker wakes immediately.
func (s *QueueStore) Enqueue(ctx context.Context, items []models.QueueInsert) error {
	if len(items) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	for _, item := range items {
		payloadJSON, err := marshalJSON(item.Payload, "queue payload")
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO automation_action_queue
				(id, rule_id, tenant_slug, action_type, payload, status, scheduled_for)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New().String(), item.RuleID, item.TenantSlug, item.ActionType,
			payloadJSON, models.QueueStatusPending, item.ScheduledFor,
		)
		if err != nil {
			return fmt.Errorf("inserting queue item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing queue insert: %w", err)
	}

	s.notifyQueue(items[0].TenantSlug, len(items))
	return nil
}

const queueColumns = `id, rule_id, tenant_slug, action_type, payload, status,
	error, scheduled_for, attempt_count, created_at, updated_at`

// ClaimPending atomically claims up to limit due items. The locking SELECT
// and the transition to processing happen in one statement, so a row is
// either fully claimed (status processing, attempt_count incremented) or
// untouched; SKIP LOCKED keeps concurrent workers from blocking on or
// double-claiming the same rows.
func (s *QueueStore) ClaimPending(ctx context.Context, limit, maxAttempts int) ([]models.QueueItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `
		WITH claimed AS (
			SELECT id FROM automation_action_queue
			WHERE status = $1 AND scheduled_for <= NOW() AND attempt_count < $2
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE automation_action_queue q
		SET status = $4, attempt_count = attempt_count + 1, updated_at = NOW()
		FROM claimed
		WHERE q.id = claimed.id
		RETURNING `+prefixColumns("q", queueColumns),
		models.QueueStatusPending, maxAttempts, limit, models.QueueStatusProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming pending items: %w", err)
	}

	return collectRows(rows, s.scanItem, "queue item")
}

// MarkCompleted transitions a claimed item to completed. Guarded on
// processing so a reaped-and-reclaimed row cannot be finished twice.
func (s *QueueStore) MarkCompleted(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx, `
		UPDATE automation_action_queue
		SET status = $1, error = NULL, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		models.QueueStatusCompleted, id, models.QueueStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("marking item completed: %w", err)
	}
	return nil
}

// MarkFailed transitions a claimed item to failed with a reason. Failed is
// terminal; nothing re-pends a failed item.
func (s *QueueStore) MarkFailed(ctx context.Context, id, reason string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx, `
		UPDATE automation_action_queue
		SET status = $1, error = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		models.QueueStatusFailed, reason, id, models.QueueStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("marking item failed: %w", err)
	}
	return nil
}

// CountByStatus aggregates queue depth for the summary endpoint.
func (s *QueueStore) CountByStatus(ctx context.Context, tenantSlug string) (models.QueueCounts, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var counts models.QueueCounts
	err := s.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM automation_action_queue WHERE tenant_slug = $1`,
		tenantSlug,
	).Scan(&counts.Pending, &counts.Processing, &counts.Completed, &counts.Failed)
	if err != nil {
		return models.QueueCounts{}, fmt.Errorf("counting queue items: %w", err)
	}
	return counts, nil
}

// ReapStale resets items stuck in processing longer than olderThan back to
// pending, so work abandoned by a crashed worker becomes claimable again.
// Returns the number of reset rows.
func (s *QueueStore) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, `
		UPDATE automation_action_queue
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND updated_at < NOW() - make_interval(secs => $3)`,
		models.QueueStatusPending, models.QueueStatusProcessing, olderThan.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("reaping stale items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *QueueStore) scanItem(rows pgx.Rows) (models.QueueItem, error) {
	var item models.QueueItem
	var payloadJSON []byte
	var errMsg *string

	err := rows.Scan(
		&item.ID, &item.RuleID, &item.TenantSlug, &item.ActionType, &payloadJSON,
		&item.Status, &errMsg, &item.ScheduledFor, &item.AttemptCount,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return models.QueueItem{}, err
	}

	if errMsg != nil {
		item.Error = *errMsg
	}
	unmarshalJSON(payloadJSON, &item.Payload, "queue payload", s.Log)

	return item, nil
}
