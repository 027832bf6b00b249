package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"paperPatent/api/models"
)

// MemoryStore keeps every task for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*entry
	now   func() time.Time
}

type entry struct {
	mu      sync.Mutex
	task    models.Task
	log     []models.Event
	changed chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]*entry),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(ctx context.Context, inputs models.Inputs) (models.Task, error) {
	samples := make(map[models.SampleKind]string, len(inputs.Samples))
	for k, v := range inputs.Samples {
		samples[k] = v
	}
	inputs.Samples = samples

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	for _, exists := s.tasks[id]; exists; _, exists = s.tasks[id] {
		id = uuid.NewString()
	}

	e := &entry{
		task: models.Task{
			ID:        id,
			Status:    models.StatusQueued,
			Step:      models.StepExtract,
			StepLabel: "Queued",
			Artifacts: map[models.ArtifactKind]string{},
			Inputs:    inputs,
			CreatedAt: now,
			UpdatedAt: now,
		},
		changed: make(chan struct{}),
	}
	s.tasks[id] = e

	return e.task.Clone(), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.Task, error) {
	e, err := s.entry(id)
	if err != nil {
		return models.Task{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task.Clone(), nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, id string, status models.TaskStatus) error {
	if status.Terminal() {
		return fmt.Errorf("%w: use Finish for %s", models.ErrInvalidTransition, status)
	}
	return s.update(id, func(e *entry) error {
		if !e.task.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, e.task.Status, status)
		}
		e.task.Status = status
		return nil
	})
}

func (s *MemoryStore) SetStep(ctx context.Context, id string, step models.StepID, label string) error {
	return s.update(id, func(e *entry) error {
		if e.task.Status.Terminal() {
			return fmt.Errorf("%w: task is %s", models.ErrInvalidTransition, e.task.Status)
		}
		e.task.Step = step
		e.task.StepLabel = label
		e.append(models.StepEvent{Step: step, Label: label})
		return nil
	})
}

func (s *MemoryStore) AppendEvent(ctx context.Context, id string, ev models.Event) error {
	return s.update(id, func(e *entry) error {
		if e.task.Status.Terminal() {
			return fmt.Errorf("%w: task is %s", models.ErrInvalidTransition, e.task.Status)
		}
		e.append(ev)
		return nil
	})
}

func (s *MemoryStore) SetArtifact(ctx context.Context, id string, kind models.ArtifactKind, path string) error {
	return s.update(id, func(e *entry) error {
		if e.task.Status.Terminal() {
			return fmt.Errorf("%w: task is %s", models.ErrInvalidTransition, e.task.Status)
		}
		if _, exists := e.task.Artifacts[kind]; exists {
			return fmt.Errorf("%w: %s", models.ErrArtifactExists, kind)
		}
		e.task.Artifacts[kind] = path
		e.append(models.FileReadyEvent{Kind: kind})
		return nil
	})
}

func (s *MemoryStore) AppendFigure(ctx context.Context, id string, path string, planned int) (int, error) {
	var index int
	err := s.update(id, func(e *entry) error {
		if e.task.Status.Terminal() {
			return fmt.Errorf("%w: task is %s", models.ErrInvalidTransition, e.task.Status)
		}
		e.task.Figures = append(e.task.Figures, path)
		index = len(e.task.Figures) - 1
		e.append(models.FigureReadyEvent{Index: index, Total: len(e.task.Figures), Planned: planned})
		return nil
	})
	return index, err
}

// Finish moves the task to a terminal status and closes its log with an
// optional error entry followed by the done entry, all in one step.
func (s *MemoryStore) Finish(ctx context.Context, id string, status models.TaskStatus, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %s is not terminal", models.ErrInvalidTransition, status)
	}
	return s.update(id, func(e *entry) error {
		if !e.task.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, e.task.Status, status)
		}
		now := s.now()
		e.task.Status = status
		e.task.Error = errMsg
		e.task.CompletedAt = &now
		if status == models.StatusCompleted {
			e.task.StepLabel = "Completed"
		}
		if status == models.StatusFailed {
			e.append(models.ErrorEvent{Message: errMsg})
		}
		e.append(DoneFor(e.task))
		return nil
	})
}

func (s *MemoryStore) Read(ctx context.Context, id string, cursor int) (Progress, error) {
	e, err := s.entry(id)
	if err != nil {
		return Progress{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if cursor < 0 {
		cursor = 0
	}
	var events []models.Event
	if cursor < len(e.log) {
		events = append(events, e.log[cursor:]...)
	}
	return Progress{Events: events, Status: e.task.Status, Wait: e.changed}, nil
}

func (s *MemoryStore) entry(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.tasks[id]
	if !ok {
		return nil, models.ErrTaskNotFound
	}
	return e, nil
}

func (s *MemoryStore) update(id string, fn func(e *entry) error) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := fn(e); err != nil {
		return err
	}
	e.task.UpdatedAt = s.now()
	return nil
}

// append must be called with e.mu held.
func (e *entry) append(ev models.Event) {
	e.log = append(e.log, ev)
	e.task.EventCount = len(e.log)
	close(e.changed)
	e.changed = make(chan struct{})
}

// DoneFor builds the terminal event for a task snapshot.
func DoneFor(task models.Task) models.DoneEvent {
	files := make(map[models.ArtifactKind]string, len(task.Artifacts))
	for k, v := range task.Artifacts {
		files[k] = v
	}
	return models.DoneEvent{
		Status:  task.Status,
		Files:   files,
		Figures: len(task.Figures),
		Error:   task.Error,
	}
}
