// Package workers runs the background loops: scheduled-message delivery,
// message and attachment expiry, and rate-limit bucket sweeping.
package workers

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pushbolt/pushbolt/pkg/pipeline"
	"github.com/pushbolt/pushbolt/pkg/ratelimit"
	"github.com/pushbolt/pushbolt/pkg/store"
)

const (
	scheduledPeriod  = 10 * time.Second
	messagePeriod    = 5 * time.Minute
	attachmentPeriod = time.Hour
	bucketPeriod     = 5 * time.Minute
)

// Runner owns the worker goroutines. All loops share one cancellation
// signal and exit promptly on Stop.
type Runner struct {
	store    *store.Store
	pipeline *pipeline.Pipeline
	limiter  *ratelimit.Limiter
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewRunner(st *store.Store, pl *pipeline.Pipeline, limiter *ratelimit.Limiter) *Runner {
	return &Runner{
		store:    st,
		pipeline: pl,
		limiter:  limiter,
		logger:   slog.With("component", "workers"),
	}
}

// Start launches every loop. Call Stop to shut them down.
func (r *Runner) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel

	r.spawn(ctx, "scheduled_delivery", scheduledPeriod, r.deliverDue)
	r.spawn(ctx, "message_expiry", messagePeriod, r.reapMessages)
	r.spawn(ctx, "attachment_expiry", attachmentPeriod, r.reapAttachments)
	r.spawn(ctx, "bucket_sweep", bucketPeriod, r.sweepBuckets)

	r.logger.Info("workers started")
}

// Stop cancels all loops and waits for them to exit.
func (r *Runner) Stop() {
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
		r.logger.Info("workers stopped")
	})
}

func (r *Runner) spawn(ctx context.Context, name string, period time.Duration, tick func(context.Context, *slog.Logger)) {
	r.wg.Add(1)
	logger := r.logger.With("worker", name)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick(ctx, logger)
			}
		}
	}()
}

// deliverDue claims due scheduled messages in one atomic statement and
// fans each out. The claim is the de-duplication fence: a row is returned
// to exactly one sweep.
func (r *Runner) deliverDue(ctx context.Context, logger *slog.Logger) {
	claimed, err := r.store.Messages.ClaimDue(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("claiming due messages", "error", err)
		return
	}
	for _, msg := range claimed {
		if err := r.pipeline.Deliver(ctx, msg); err != nil {
			logger.Error("delivering scheduled message", "message_id", msg.ID, "error", err)
		}
	}
	if len(claimed) > 0 {
		logger.Info("delivered scheduled messages", "count", len(claimed))
	}
}

func (r *Runner) reapMessages(ctx context.Context, logger *slog.Logger) {
	n, err := r.store.Messages.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("deleting expired messages", "error", err)
		return
	}
	if n > 0 {
		logger.Info("reaped expired messages", "count", n)
	}
}

// reapAttachments deletes the on-disk file first, best-effort, then the
// row. A file that is already gone is not an error.
func (r *Runner) reapAttachments(ctx context.Context, logger *slog.Logger) {
	expired, err := r.store.Attachments.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("listing expired attachments", "error", err)
		return
	}
	for _, att := range expired {
		if err := os.Remove(att.StoragePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("removing attachment file", "path", att.StoragePath, "error", err)
		}
		if err := r.store.Attachments.Delete(ctx, att.ID); err != nil {
			logger.Error("deleting attachment row", "attachment_id", att.ID, "error", err)
		}
	}
	if len(expired) > 0 {
		logger.Info("reaped expired attachments", "count", len(expired))
	}
}

func (r *Runner) sweepBuckets(_ context.Context, logger *slog.Logger) {
	if n := r.limiter.Sweep(); n > 0 {
		logger.Debug("swept rate-limit buckets", "removed", n)
	}
}
