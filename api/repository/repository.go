package repository

import (
	"context"

	"paperPatent/api/models"
)

// Progress is what an observer gets back from one Read: the log entries after
// its cursor, the task status at that moment, and a channel that is closed on
// the next append.
type Progress struct {
	Events []models.Event
	Status models.TaskStatus
	Wait   <-chan struct{}
}

// Store holds all task state. Each task has a single writer (its Runner) and
// any number of readers; every mutation is atomic from a reader's view.
type Store interface {
	Create(ctx context.Context, inputs models.Inputs) (models.Task, error)
	Get(ctx context.Context, id string) (models.Task, error)
	SetStatus(ctx context.Context, id string, status models.TaskStatus) error
	SetStep(ctx context.Context, id string, step models.StepID, label string) error
	AppendEvent(ctx context.Context, id string, ev models.Event) error
	SetArtifact(ctx context.Context, id string, kind models.ArtifactKind, path string) error
	AppendFigure(ctx context.Context, id string, path string, planned int) (int, error)
	Finish(ctx context.Context, id string, status models.TaskStatus, errMsg string) error
	Read(ctx context.Context, id string, cursor int) (Progress, error)
}

// Journal mirrors task lifecycle changes to an external system. Journals are
// write-only; the Store stays authoritative.
type Journal interface {
	TaskCreated(ctx context.Context, task models.Task) error
	StatusChanged(ctx context.Context, taskID string, status models.TaskStatus, errMsg string) error
}
