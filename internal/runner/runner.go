package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"docpipe/internal/catalog"
	"docpipe/internal/fileutil"
	"docpipe/internal/logging"
	"docpipe/internal/progress"
	"docpipe/internal/services"
)

// ErrInterrupted distinguishes cooperative cancellation from failure so the
// CLI can exit with a resume-is-possible status.
var ErrInterrupted = errors.New("run interrupted")

// ProcessFunc performs the stage-specific work for one item. It must write
// its output atomically before returning; the runner records the done mark
// only afterwards.
type ProcessFunc func(ctx context.Context, item catalog.WorkItem) (progress.Meta, error)

// Config controls retry, pacing, and resource-guard behavior.
type Config struct {
	// Attempts bounds process_one tries per item, including the first.
	Attempts uint
	// RetryBaseDelay seeds the exponential backoff between attempts.
	RetryBaseDelay time.Duration
	// RetryMaxDelay caps the backoff.
	RetryMaxDelay time.Duration
	// MinFreeBytes aborts the batch when the output filesystem has less free
	// space than this before an item is processed.
	MinFreeBytes uint64
	// ItemDelay inserts a politeness pause between processed items.
	ItemDelay time.Duration
	// OutputRoot is the tree holding stage outputs; used for the free-space
	// guard and the orphan temp-file sweep.
	OutputRoot string
	// FreeSpace reports available bytes for a path. Defaults to
	// fileutil.FreeSpace; tests substitute a fake.
	FreeSpace func(path string) (uint64, error)
}

// ItemFailure itemizes one failed item for the operator.
type ItemFailure struct {
	Key    string
	Reason string
}

// Summary reports the outcome of one stage run.
type Summary struct {
	Stage    string
	RunID    string
	Done     int
	Skipped  int
	Failed   int
	Failures []ItemFailure
	Cause    progress.Cause
}

// Runner drives one stage over a catalog: it skips items already done,
// retries transient failures with backoff, isolates per-item errors, checks
// free disk space, and flushes durable progress after every item.
type Runner struct {
	store  *progress.Store
	cfg    Config
	logger *slog.Logger
}

// New constructs a Runner. A nil logger is replaced with a no-op logger.
func New(store *progress.Store, cfg Config, logger *slog.Logger) *Runner {
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.FreeSpace == nil {
		cfg.FreeSpace = fileutil.FreeSpace
	}
	return &Runner{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "runner"),
	}
}

// Run processes items in catalog order, previously failed items first.
// It returns ErrInterrupted on cooperative cancellation and a fatal error
// when the batch had to abort; per-item failures are only reflected in the
// summary.
func (r *Runner) Run(ctx context.Context, stage string, items []catalog.WorkItem, process ProcessFunc) (Summary, error) {
	runID := uuid.NewString()
	ctx = services.WithStage(services.WithRunID(ctx, runID), stage)
	log := logging.WithContext(ctx, r.logger)

	summary := Summary{Stage: stage, RunID: runID}

	if removed, err := fileutil.RemoveOrphanTemps(r.cfg.OutputRoot); err != nil {
		log.Warn("orphan temp sweep failed", logging.Error(err))
	} else if removed > 0 {
		log.Info("removed orphan temp files", logging.Int("count", removed))
	}

	r.store.BeginRun(runID)

	if err := r.checkDiskSpace(log); err != nil {
		summary.Cause = progress.CauseDiskFull
		r.store.EndRun(progress.CauseDiskFull, "", services.Details(err))
		if flushErr := r.store.Flush(); flushErr != nil {
			log.Error("failed to flush state after disk guard", logging.Error(flushErr))
		}
		return summary, err
	}

	ordered := r.failedFirst(items)

	log.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("items", len(ordered)))

	for _, item := range ordered {
		if err := ctx.Err(); err != nil {
			return r.interrupt(log, summary, item.Key)
		}

		itemCtx := services.WithItemKey(ctx, item.Key)
		itemLog := logging.WithContext(itemCtx, r.logger)

		if r.store.IsDone(item.Key, item) {
			summary.Skipped++
			itemLog.Debug("item already done, skipping")
			continue
		}

		if err := r.checkDiskSpace(itemLog); err != nil {
			summary.Cause = progress.CauseDiskFull
			r.store.EndRun(progress.CauseDiskFull, item.Key, services.Details(err))
			if flushErr := r.store.Flush(); flushErr != nil {
				itemLog.Error("failed to flush state after disk guard", logging.Error(flushErr))
			}
			return summary, err
		}

		if err := r.store.Mark(item.Key, progress.StatusInProgress, progress.Meta{}, ""); err != nil {
			return summary, services.Wrap(services.ErrFatal, stage, "persist progress", "", err)
		}

		meta, err := r.processWithRetry(itemCtx, item, process)
		switch {
		case err == nil:
			// Output is already on disk atomically; the done mark follows.
			if markErr := r.store.Mark(item.Key, progress.StatusDone, meta, ""); markErr != nil {
				return summary, services.Wrap(services.ErrFatal, stage, "persist progress", "", markErr)
			}
			summary.Done++
			itemLog.Info("item completed",
				logging.String(logging.FieldEventType, "item_done"),
				logging.Int64("bytes", meta.Bytes))
		case services.IsCanceled(err):
			return r.interrupt(log, summary, item.Key)
		case services.IsFatal(err):
			reason := services.Details(err)
			if markErr := r.store.Mark(item.Key, progress.StatusFailed, progress.Meta{}, reason); markErr != nil {
				itemLog.Error("failed to persist fatal failure", logging.Error(markErr))
			}
			summary.Cause = progress.CauseFatal
			r.store.EndRun(progress.CauseFatal, item.Key, reason)
			if flushErr := r.store.Flush(); flushErr != nil {
				itemLog.Error("failed to flush state after fatal error", logging.Error(flushErr))
			}
			return summary, err
		default:
			// Content errors and exhausted transient retries stay per-item.
			reason := services.Details(err)
			if markErr := r.store.Mark(item.Key, progress.StatusFailed, progress.Meta{}, reason); markErr != nil {
				return summary, services.Wrap(services.ErrFatal, stage, "persist progress", "", markErr)
			}
			summary.Failed++
			summary.Failures = append(summary.Failures, ItemFailure{Key: item.Key, Reason: reason})
			itemLog.Error("item failed",
				logging.String(logging.FieldEventType, "item_failed"),
				logging.String("reason", reason))
		}

		if r.cfg.ItemDelay > 0 {
			select {
			case <-ctx.Done():
				// The delay is a suspension point like any other item boundary.
			case <-time.After(r.cfg.ItemDelay):
			}
		}
	}

	summary.Cause = progress.CauseCompleted
	r.store.EndRun(progress.CauseCompleted, "", "")
	if err := r.store.Flush(); err != nil {
		return summary, services.Wrap(services.ErrFatal, stage, "persist progress", "", err)
	}

	log.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("done", summary.Done),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed))
	return summary, nil
}

func (r *Runner) processWithRetry(ctx context.Context, item catalog.WorkItem, process ProcessFunc) (progress.Meta, error) {
	var meta progress.Meta
	err := retry.Do(
		func() error {
			m, err := process(ctx, item)
			if err == nil {
				meta = m
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(r.cfg.Attempts),
		retry.Delay(r.cfg.RetryBaseDelay),
		retry.MaxDelay(r.cfg.RetryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(services.IsTransient),
		retry.LastErrorOnly(true),
	)
	return meta, err
}

// failedFirst orders previously failed items ahead of new work, preserving
// catalog order within each group.
func (r *Runner) failedFirst(items []catalog.WorkItem) []catalog.WorkItem {
	failed := r.store.FailedKeys()
	if len(failed) == 0 {
		return items
	}
	ordered := make([]catalog.WorkItem, 0, len(items))
	var rest []catalog.WorkItem
	for _, item := range items {
		if _, ok := failed[item.Key]; ok {
			ordered = append(ordered, item)
		} else {
			rest = append(rest, item)
		}
	}
	return append(ordered, rest...)
}

func (r *Runner) interrupt(log *slog.Logger, summary Summary, cursor string) (Summary, error) {
	summary.Cause = progress.CauseCanceled
	r.store.EndRun(progress.CauseCanceled, cursor, "canceled by operator")
	if err := r.store.Flush(); err != nil {
		log.Error("failed to flush state on interrupt", logging.Error(err))
	}
	log.Warn("stage interrupted, progress saved",
		logging.String(logging.FieldEventType, "stage_interrupted"),
		logging.String("cursor", cursor))
	return summary, fmt.Errorf("%w at %s", ErrInterrupted, cursor)
}

func (r *Runner) checkDiskSpace(log *slog.Logger) error {
	if r.cfg.MinFreeBytes == 0 {
		return nil
	}
	free, err := r.cfg.FreeSpace(r.cfg.OutputRoot)
	if err != nil {
		log.Warn("free space check failed", logging.Error(err))
		return nil
	}
	if free < r.cfg.MinFreeBytes {
		return services.Wrap(services.ErrFatal, "", "disk space guard",
			fmt.Sprintf("free space %d MiB below required minimum %d MiB",
				free/(1<<20), r.cfg.MinFreeBytes/(1<<20)), nil)
	}
	if free < 2*r.cfg.MinFreeBytes {
		log.Warn("disk space running low",
			logging.Uint64("free_mib", free/(1<<20)),
			logging.Uint64("min_mib", r.cfg.MinFreeBytes/(1<<20)))
	}
	return nil
}
