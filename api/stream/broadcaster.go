// Package stream serves a task's progress log to live observers.
package stream

import (
	"context"
	"time"

	"go.uber.org/zap"

	"paperPatent/api/models"
	"paperPatent/api/repository"
)

// Frame is one item delivered to an observer: either a log entry or an inert
// keep-alive.
type Frame struct {
	Event     models.Event
	Heartbeat bool
}

// Broadcaster lets any number of observers tail the same progress log. Each
// attachment owns its cursor; observers never share or affect one another.
type Broadcaster struct {
	store     repository.Store
	heartbeat time.Duration
	logger    *zap.Logger
}

func NewBroadcaster(store repository.Store, heartbeat time.Duration, logger *zap.Logger) *Broadcaster {
	if heartbeat <= 0 {
		heartbeat = 10 * time.Second
	}
	return &Broadcaster{store: store, heartbeat: heartbeat, logger: logger}
}

// Attach starts a fresh cursor at the beginning of the log. The returned
// channel replays history, then follows new entries, and is closed right after
// the done entry or when ctx is cancelled.
func (b *Broadcaster) Attach(ctx context.Context, taskID string) (<-chan Frame, error) {
	first, err := b.store.Read(ctx, taskID, 0)
	if err != nil {
		return nil, err
	}

	out := make(chan Frame)
	go b.follow(ctx, taskID, first, out)
	return out, nil
}

func (b *Broadcaster) follow(ctx context.Context, taskID string, p repository.Progress, out chan<- Frame) {
	defer close(out)

	cursor := 0
	idle := time.NewTimer(b.heartbeat)
	defer idle.Stop()

	send := func(f Frame) bool {
		select {
		case out <- f:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		for _, ev := range p.Events {
			if !send(Frame{Event: ev}) {
				return
			}
			cursor++
			if _, done := ev.(models.DoneEvent); done {
				return
			}
		}
		if len(p.Events) > 0 {
			resetTimer(idle, b.heartbeat)
		}

		if p.Status.Terminal() {
			// Terminal tasks always end their log with done; this only guards
			// against a store that did not.
			task, err := b.store.Get(ctx, taskID)
			if err != nil {
				b.logger.Warn("Task vanished while streaming", zap.String("task_id", taskID), zap.Error(err))
				return
			}
			send(Frame{Event: repository.DoneFor(task)})
			return
		}

		select {
		case <-p.Wait:
		case <-idle.C:
			if !send(Frame{Heartbeat: true}) {
				return
			}
			idle.Reset(b.heartbeat)
		case <-ctx.Done():
			return
		}

		next, err := b.store.Read(ctx, taskID, cursor)
		if err != nil {
			b.logger.Warn("Progress read failed", zap.String("task_id", taskID), zap.Error(err))
			return
		}
		p = next
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
