package investigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/legitcheck/internal/storage"
)

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// Runner executes one investigation run.
type Runner interface {
	Run(ctx context.Context, id, token string) (storage.Investigation, error)
}

// Worker processes investigation_run jobs from the SQLite job queue.
type Worker struct {
	store  JobStore
	runner Runner
	poll   time.Duration
	logger *slog.Logger

	sweep      func()
	sweepEvery time.Duration
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, runner Runner, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:  store,
		runner: runner,
		poll:   pollInterval,
		logger: logger,
	}
}

// WithSweep makes Run call fn at most once per interval between jobs.
func (w *Worker) WithSweep(interval time.Duration, fn func()) *Worker {
	w.sweep = fn
	w.sweepEvery = interval
	return w
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	var lastSweep time.Time
	for {
		if ctx.Err() != nil {
			return
		}

		if w.sweep != nil && time.Since(lastSweep) >= w.sweepEvery {
			w.sweep()
			lastSweep = time.Now()
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single investigation_run job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		if permanent(err) {
			w.logger.Info("job dropped", "job_id", job.ID, "reason", err)
		} else {
			w.logger.Warn("job failed", "job_id", job.ID, "attempt", job.Attempts+1, "error", err)
			if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
				w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
			}
			return true, nil
		}
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// permanent errors mean another run owns the record, or it is gone, so
// retrying the job cannot help.
func permanent(err error) bool {
	return errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrAlreadyCompleted) ||
		errors.Is(err, storage.ErrRunInProgress) ||
		errors.Is(err, errBadPayload)
}

var errBadPayload = errors.New("invalid job payload")

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload runPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	if payload.InvestigationID == "" || payload.RunToken == "" {
		return fmt.Errorf("%w: missing investigation_id or run_token", errBadPayload)
	}

	_, err := w.runner.Run(ctx, payload.InvestigationID, payload.RunToken)
	return err
}
