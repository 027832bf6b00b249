package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"paperPatent/api/models"
)

// Journals fans lifecycle changes out to every configured mirror. Mirror
// failures are logged and swallowed.
type Journals struct {
	sinks  []namedJournal
	logger *zap.Logger
}

type namedJournal struct {
	name    string
	journal Journal
}

func NewJournals(logger *zap.Logger) *Journals {
	return &Journals{logger: logger}
}

func (j *Journals) Add(name string, journal Journal) {
	j.sinks = append(j.sinks, namedJournal{name: name, journal: journal})
}

func (j *Journals) Len() int {
	return len(j.sinks)
}

func (j *Journals) TaskCreated(ctx context.Context, task models.Task) error {
	for _, s := range j.sinks {
		if err := s.journal.TaskCreated(ctx, task); err != nil {
			j.logger.Warn("Journal write failed",
				zap.String("journal", s.name),
				zap.String("task_id", task.ID),
				zap.String("op", "created"),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (j *Journals) StatusChanged(ctx context.Context, taskID string, status models.TaskStatus, errMsg string) error {
	for _, s := range j.sinks {
		if err := s.journal.StatusChanged(ctx, taskID, status, errMsg); err != nil {
			j.logger.Warn("Journal write failed",
				zap.String("journal", s.name),
				zap.String("task_id", taskID),
				zap.String("op", fmt.Sprintf("status:%s", status)),
				zap.Error(err),
			)
		}
	}
	return nil
}
