package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paperPatent/api/dto"
	"paperPatent/api/models"
	"paperPatent/api/repository"
)

// Dispatcher schedules a created task for execution without blocking.
type Dispatcher interface {
	Dispatch(taskID string)
}

type TaskService struct {
	store       repository.Store
	journal     repository.Journal
	dispatcher  Dispatcher
	credentials *Credentials
	uploadDir   string
	logger      *zap.Logger
}

func NewTaskService(
	store repository.Store,
	journal repository.Journal,
	dispatcher Dispatcher,
	credentials *Credentials,
	uploadDir string,
	logger *zap.Logger,
) *TaskService {
	return &TaskService{
		store:       store,
		journal:     journal,
		dispatcher:  dispatcher,
		credentials: credentials,
		uploadDir:   uploadDir,
		logger:      logger,
	}
}

// CreateTask stages the uploads, captures the current default credential and
// hands the new task to the dispatcher. The task is still queued on return.
func (s *TaskService) CreateTask(ctx context.Context, traceID string, req *dto.CreateTaskRequest) (*dto.SubmitResponse, error) {
	dir := filepath.Join(s.uploadDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	sourcePath, err := stage(dir, "source", req.Source)
	if err != nil {
		return nil, err
	}

	samples := make(map[models.SampleKind]string, len(req.Samples))
	for kind, upload := range req.Samples {
		path, err := stage(dir, string(kind), upload)
		if err != nil {
			return nil, err
		}
		samples[kind] = path
	}

	task, err := s.store.Create(ctx, models.Inputs{
		SourcePath:       sourcePath,
		OriginalFilename: filepath.Base(req.Source.Filename),
		Samples:          samples,
		APIKey:           s.credentials.Current(),
		TraceID:          traceID,
	})
	if err != nil {
		return nil, err
	}

	if s.journal != nil {
		_ = s.journal.TaskCreated(ctx, task)
	}
	s.dispatcher.Dispatch(task.ID)

	s.logger.Info("Task created",
		zap.String("trace_id", traceID),
		zap.String("task_id", task.ID),
		zap.String("filename", task.Inputs.OriginalFilename),
		zap.Int("samples", len(samples)),
		zap.Bool("has_api_key", task.Inputs.APIKey != ""),
	)

	return &dto.SubmitResponse{TaskID: task.ID, Status: string(task.Status)}, nil
}

func (s *TaskService) GetTaskStatus(ctx context.Context, taskID string) (*dto.StatusResponse, error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(task), nil
}

// ArtifactPath returns the file for an artifact that has been produced.
func (s *TaskService) ArtifactPath(ctx context.Context, taskID string, kind models.ArtifactKind) (string, error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return "", err
	}
	path, ok := task.Artifacts[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", models.ErrArtifactNotFound, kind)
	}
	if !fileExists(path) {
		return "", fmt.Errorf("%w: %s file missing", models.ErrArtifactNotFound, kind)
	}
	return path, nil
}

// FigurePath returns the image for a zero-based figure index.
func (s *TaskService) FigurePath(ctx context.Context, taskID string, index int) (string, error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(task.Figures) {
		return "", fmt.Errorf("%w: index %d of %d", models.ErrFigureNotFound, index, len(task.Figures))
	}
	path := task.Figures[index]
	if !fileExists(path) {
		return "", fmt.Errorf("%w: index %d file missing", models.ErrFigureNotFound, index)
	}
	return path, nil
}

// SetCredential changes the key captured by tasks created from now on.
func (s *TaskService) SetCredential(apiKey string) error {
	if err := s.credentials.Set(apiKey); err != nil {
		return err
	}
	s.logger.Info("Default API key updated")
	return nil
}

func (s *TaskService) toResponse(task models.Task) *dto.StatusResponse {
	files := make(map[string]bool, len(models.ArtifactKinds))
	for _, kind := range models.ArtifactKinds {
		_, ok := task.Artifacts[kind]
		files[string(kind)] = ok
	}

	var completedAt *string
	if task.CompletedAt != nil {
		formatted := task.CompletedAt.Format("2006-01-02T15:04:05Z")
		completedAt = &formatted
	}

	return &dto.StatusResponse{
		TaskID:      task.ID,
		Status:      string(task.Status),
		Step:        string(task.Step),
		StepLabel:   task.StepLabel,
		Error:       task.Error,
		Files:       files,
		Figures:     len(task.Figures),
		CreatedAt:   task.CreatedAt.Format("2006-01-02T15:04:05Z"),
		CompletedAt: completedAt,
	}
}

func stage(dir, name string, upload dto.Upload) (string, error) {
	path := filepath.Join(dir, name+filepath.Ext(filepath.Base(upload.Filename)))

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, upload.Body); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
