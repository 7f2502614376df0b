package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sysprohq/automation/internal/db"
	"github.com/sysprohq/automation/internal/store"
)

func newWorkerCmd() *cobra.Command {
	var loop bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Drain the action and report queues",
		Long: `Runs one claim/execute/record pass over the action and report queues and
exits. With --loop it keeps running, waking on the configured interval or as
soon as new work is enqueued.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), loop, interval)
		},
	}
	cmd.Flags().BoolVar(&loop, "loop", false, "run continuously instead of a single pass")
	cmd.Flags().DurationVar(&interval, "interval", 0, "pass interval in loop mode (defaults to WORKER_INTERVAL)")

	return cmd
}

func runWorker(parent context.Context, loop bool, interval time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()

	if !loop {
		summary, err := d.worker.RunOnce(ctx)
		if err != nil {
			return err
		}
		if failed := summary.TotalFailed(); failed > 0 {
			return fmt.Errorf("%d queue items failed", failed)
		}

		return nil
	}

	if interval <= 0 {
		interval = cfg.WorkerInterval
	}

	// Wake early on pg_notify instead of sleeping the full interval. The
	// listener is best-effort; the ticker alone keeps the queue draining.
	listener := db.NewWakeListener(log, d.pool, store.QueueChannel)
	if err := listener.Start(ctx); err != nil {
		log.WithError(err).Warn("queue wake listener unavailable, polling only")
	}

	log.WithField("interval", interval.String()).Info("worker loop starting")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := d.worker.RunOnce(ctx); err != nil {
			log.WithError(err).Error("worker pass")
		}

		select {
		case <-ctx.Done():
			log.Info("worker loop stopping")

			return nil
		case <-ticker.C:
		case <-listener.Wake():
		}
	}
}
