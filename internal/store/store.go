// Package store provides focused, single-concern data access stores for the
// automation engine.
//
// Each store owns one domain (rules, audits, queue, policies, reports) and
// embeds shared helpers (Pool, logger) via the Base struct. Stores never
// import each other; shared logic lives in this file.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/dbpool"
	"github.com/sysprohq/automation/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// QueueChannel is the pg_notify channel queue inserts signal on. The looping
// worker listens here to wake early instead of sleeping the full interval.
const QueueChannel = "automation_queue"

// Base contains shared dependencies for all stores.
// Embed this in each store struct.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// notifyQueue sends a pg_notify on the queue channel (best-effort,
// post-insert).
func (b *Base) notifyQueue(tenantSlug string, count int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, _ := json.Marshal(map[string]any{ //nolint:errcheck // static keys, cannot fail.
		"tenant_slug": tenantSlug,
		"count":       count,
	})
	if _, err := b.Pool.Exec(ctx, "SELECT pg_notify($1, $2)", QueueChannel, string(payload)); err != nil {
		b.Log.WithError(err).Warn("failed to send queue notification")
	}
}

// GetTenantByAPIKey looks up a tenant slug by API key hash.
func (b *Base) GetTenantByAPIKey(ctx context.Context, apiKey string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	hash := sha256.Sum256([]byte(apiKey))
	apiKeyHash := hex.EncodeToString(hash[:])

	var slug string

	err := b.Pool.QueryRow(ctx, "SELECT slug FROM tenants WHERE api_key_hash = $1", apiKeyHash).Scan(&slug)
	if err != nil {
		return "", fmt.Errorf("looking up tenant by API key: %w", err)
	}

	return slug, nil
}

// mapError converts driver errors into model sentinels where the callers
// care about the distinction.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return models.ErrDuplicateKey
	}
	return err
}

// marshalJSON encodes v for a jsonb column; nil maps become SQL NULL.
func marshalJSON(v any, what string) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	switch m := v.(type) {
	case map[string]any:
		if m == nil {
			return nil, nil
		}
	case json.RawMessage:
		if len(m) == 0 {
			return nil, nil
		}
		return m, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", what, err)
	}
	return data, nil
}

// unmarshalJSON decodes a jsonb column into dst, tolerating NULL.
func unmarshalJSON(data []byte, dst any, what string, log *logrus.Logger) {
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.WithError(err).Warn("failed to unmarshal " + what)
	}
}

// prefixColumns qualifies a comma-separated column list with a table alias,
// for RETURNING clauses on aliased UPDATEs.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// collectRows drains rows through scan, wrapping scan failures.
func collectRows[T any](rows pgx.Rows, scan func(pgx.Rows) (T, error), what string) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", what, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s rows: %w", what, err)
	}
	return out, nil
}
