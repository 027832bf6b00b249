package service

import (
	"context"

	"go.uber.org/zap"

	"paperPatent/api/models"
	"paperPatent/api/repository"
	"paperPatent/worker/pool"
)

// Dispatcher hands created tasks to the worker pool. Runs are bound to ctx,
// which lives as long as the server, never to the submitting request.
type Dispatcher struct {
	ctx     context.Context
	pool    *pool.WorkerPool
	proc    *Processor
	store   repository.Store
	journal repository.Journal
	logger  *zap.Logger
}

func NewDispatcher(ctx context.Context, wp *pool.WorkerPool, proc *Processor, store repository.Store, journal repository.Journal, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{ctx: ctx, pool: wp, proc: proc, store: store, journal: journal, logger: logger}
}

func (d *Dispatcher) Dispatch(taskID string) {
	d.pool.Submit(d.ctx, taskID, d.handle, d.drop)
}

func (d *Dispatcher) handle(ctx context.Context, taskID string) {
	if err := d.proc.Process(ctx, taskID); err != nil {
		d.logger.Warn("Task ended with error", zap.String("task_id", taskID), zap.Error(err))
	}
}

// drop fails a task that never got a worker before shutdown.
func (d *Dispatcher) drop(taskID string) {
	const msg = "server shut down before the task started"
	ctx := context.Background()

	if err := d.store.Finish(ctx, taskID, models.StatusFailed, msg); err != nil {
		d.logger.Error("Failed to fail dropped task", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	if d.journal != nil {
		_ = d.journal.StatusChanged(ctx, taskID, models.StatusFailed, msg)
	}
	d.logger.Warn("Task dropped", zap.String("task_id", taskID))
}

// Wait blocks until every dispatched task has finished or been dropped.
func (d *Dispatcher) Wait() {
	d.pool.Wait()
}
