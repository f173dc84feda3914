package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Runner executes a claimed job. The orchestrator satisfies this via a
// small adapter in cmd/sentinel-server, keeping this package free of a
// direct import on internal/orchestrator.
type Runner interface {
	RunIngest(ctx context.Context, url string) error
	RunHeal(ctx context.Context) error
}

// Worker polls the queue and dispatches claimed jobs to a Runner.
type Worker struct {
	queue   *Queue
	runner  Runner
	logger  *zap.Logger
	pollGap time.Duration
}

// NewWorker builds a Worker that polls the queue every pollGap.
func NewWorker(queue *Queue, runner Runner, pollGap time.Duration, logger *zap.Logger) *Worker {
	return &Worker{queue: queue, runner: runner, pollGap: pollGap, logger: logger}
}

// Run polls until ctx is cancelled, executing one job per claim.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollGap)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				w.logger.Error("job drain failed", zap.Error(err))
			}
		}
	}
}

// drainOnce claims and runs jobs until the queue reports empty.
func (w *Worker) drainOnce(ctx context.Context) error {
	for {
		job, ok, err := w.queue.Dequeue(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		w.logger.Info("job claimed", zap.String("kind", string(job.Kind)), zap.String("target", job.Target))

		var runErr error
		switch job.Kind {
		case KindIngest:
			runErr = w.runner.RunIngest(ctx, job.Target)
		case KindHeal:
			runErr = w.runner.RunHeal(ctx)
		default:
			runErr = fmt.Errorf("jobs: unknown kind %q", job.Kind)
		}

		if runErr != nil {
			w.logger.Warn("job failed", zap.String("kind", string(job.Kind)), zap.Error(runErr))
			if err := w.queue.MarkFailed(ctx, job.ID, runErr); err != nil {
				return err
			}
			continue
		}
		if err := w.queue.MarkDone(ctx, job.ID); err != nil {
			return err
		}
	}
}
