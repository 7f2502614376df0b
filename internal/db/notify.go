package db

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/dbpool"
)

// validChannel matches safe PostgreSQL LISTEN channel names.
var validChannel = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const (
	initialBackoff    = 1 * time.Second
	maxBackoff        = 30 * time.Second
	backoffMultiplier = 2
)

// WakeListener subscribes to PostgreSQL LISTEN/NOTIFY on the queue channel
// and turns each notification into a wake signal for the looping worker, so
// freshly enqueued work is picked up immediately instead of waiting out the
// poll interval.
type WakeListener struct {
	log     *logrus.Logger
	pool    *dbpool.Pool
	channel string
	wake    chan struct{}
}

// NewWakeListener creates a WakeListener on the given channel.
func NewWakeListener(log *logrus.Logger, pool *dbpool.Pool, channel string) *WakeListener {
	return &WakeListener{
		log:     log,
		pool:    pool,
		channel: channel,
		// Buffer of one: notifications arriving while the worker is mid-pass
		// coalesce into a single pending wake.
		wake: make(chan struct{}, 1),
	}
}

// Wake returns the channel that fires when queue work arrives.
func (l *WakeListener) Wake() <-chan struct{} {
	return l.wake
}

// Start launches the LISTEN loop in a background goroutine. It verifies the
// database is reachable before returning; the goroutine handles reconnection
// for subsequent failures.
func (l *WakeListener) Start(ctx context.Context) error {
	if !validChannel.MatchString(l.channel) {
		return fmt.Errorf("wake listener: invalid channel name %q", l.channel)
	}

	if err := l.pool.Ping(ctx); err != nil {
		return fmt.Errorf("wake listener: database not reachable: %w", err)
	}

	go l.listen(ctx)

	return nil
}

// listen acquires a connection, subscribes, and processes notifications
// until the context is cancelled, reconnecting with backoff on failure.
func (l *WakeListener) listen(ctx context.Context) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		err := l.subscribe(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		l.log.WithError(err).WithField("retry_in", backoff).
			Warn("wake listener connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff = nextBackoff(backoff)
	}
}

// subscribe issues LISTEN on a dedicated connection and blocks on
// notifications until the connection fails or the context is cancelled.
func (l *WakeListener) subscribe(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	// LISTEN requires the channel name inline (not a parameter), so use
	// pgx.Identifier to safely quote it.
	sanitized := pgx.Identifier{l.channel}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+sanitized); err != nil {
		return fmt.Errorf("executing LISTEN: %w", err)
	}

	l.log.WithField("channel", l.channel).Info("wake listener subscribed")

	for {
		// Set a 2-minute read deadline so we periodically check ctx cancellation.
		if err := conn.Conn().PgConn().Conn().SetReadDeadline(time.Now().Add(2 * time.Minute)); err != nil {
			return fmt.Errorf("setting read deadline: %w", err)
		}

		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// On timeout, loop back to check context and retry.
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			return fmt.Errorf("waiting for notification: %w", err)
		}

		l.log.WithFields(logrus.Fields{
			"channel": notification.Channel,
			"pid":     notification.PID,
		}).Debug("queue notification received")

		select {
		case l.wake <- struct{}{}:
		default: // a wake is already pending
		}
	}
}

// nextBackoff doubles the current backoff duration with random jitter (±25%),
// capped at maxBackoff. Jitter prevents thundering herd on reconnect.
func nextBackoff(current time.Duration) time.Duration {
	next := current * backoffMultiplier
	if next > maxBackoff {
		next = maxBackoff
	}

	jitter := float64(next) * (0.75 + rand.Float64()*0.5) //nolint:gosec // jitter doesn't need crypto rand.

	return time.Duration(jitter)
}
