package history

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hashreel/hashreel-agent/internal/pipeline"
)

// RunExecutor is the single-run pipeline interface the Runner drives.
// Each pending run gets a fresh executor from the factory.
type RunExecutor interface {
	Events() <-chan pipeline.Event
	Run(ctx context.Context, hashtag string, count int) pipeline.Outcome
}

type ExecutorFactory func() RunExecutor

// Runner polls for pending runs and executes them one at a time.
type Runner struct {
	repo         Repository
	newExecutor  ExecutorFactory
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(repo Repository, factory ExecutorFactory, logger *slog.Logger) *Runner {
	return &Runner{
		repo:         repo,
		newExecutor:  factory,
		logger:       logger.With(slog.String("component", "run_runner")),
		pollInterval: 5 * time.Second,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("run runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("run runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextRun(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("run runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("run runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) processNextRun(ctx context.Context) {
	pending, err := r.repo.ListPendingRuns(ctx)
	if err != nil {
		r.logger.Error("failed to list pending runs", "error", err)
		return
	}

	if len(pending) == 0 {
		return
	}

	run := pending[0]
	r.logger.Info("processing run", "run_id", run.ID, "hashtag", run.Hashtag)

	if err := r.repo.UpdateRunStatus(ctx, run.ID, RunStatusRunning, ""); err != nil {
		r.logger.Error("failed to mark run running", "run_id", run.ID, "error", err)
		return
	}

	exec := r.newExecutor()

	outcomeCh := make(chan pipeline.Outcome, 1)
	go func() {
		outcomeCh <- exec.Run(ctx, run.Hashtag, run.Requested)
	}()

	for ev := range exec.Events() {
		switch ev.Kind {
		case pipeline.EventProgress:
			if err := r.repo.UpdateRunProgress(ctx, run.ID, int(ev.Progress*100)); err != nil {
				r.logger.Warn("failed to update run progress", "run_id", run.ID, "error", err)
			}
		case pipeline.EventStatus:
			r.logger.Info(ev.Message, "run_id", run.ID)
		case pipeline.EventLog:
			r.logger.Log(ctx, ev.Level, ev.Message, "run_id", run.ID)
		}
	}

	outcome := <-outcomeCh
	r.recordOutcome(ctx, run, outcome)
}

func (r *Runner) recordOutcome(ctx context.Context, run *Run, outcome pipeline.Outcome) {
	for _, item := range outcome.Items {
		rec := &RunItem{
			RunID:      run.ID,
			VideoID:    item.ID,
			SourceURL:  item.URL,
			Status:     string(item.Status),
			OutputPath: item.OutputPath,
			Error:      item.Err,
			CreatedAt:  time.Now().UTC(),
		}
		if err := r.repo.CreateRunItem(ctx, rec); err != nil {
			r.logger.Warn("failed to record run item", "run_id", run.ID, "video_id", item.ID, "error", err)
		}
	}

	if err := r.repo.UpdateRunCounts(ctx, run.ID, outcome.Attempted, outcome.Succeeded, outcome.Failed); err != nil {
		r.logger.Warn("failed to update run counts", "run_id", run.ID, "error", err)
	}

	if outcome.Fatal != nil {
		r.repo.UpdateRunStatus(ctx, run.ID, RunStatusFailed, outcome.Fatal.Error())
		r.logger.Error("run failed", "run_id", run.ID, "error", outcome.Fatal)
		return
	}

	r.repo.UpdateRunProgress(ctx, run.ID, 100)
	r.repo.UpdateRunStatus(ctx, run.ID, RunStatusCompleted, "")
	r.logger.Info("run completed",
		"run_id", run.ID,
		"succeeded", outcome.Succeeded,
		"failed", outcome.Failed)
}

// GetActiveRunCount reports how many recent runs are currently executing.
func (r *Runner) GetActiveRunCount(ctx context.Context) int {
	runs, err := r.repo.ListRuns(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, run := range runs {
		if run.Status == RunStatusRunning {
			count++
		}
	}
	return count
}
