package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"paperPatent/api/dto"
	"paperPatent/api/middleware"
	"paperPatent/api/models"
	"paperPatent/api/service"
	"paperPatent/api/stream"
	"paperPatent/api/validation"
)

type TaskService interface {
	CreateTask(ctx context.Context, traceID string, req *dto.CreateTaskRequest) (*dto.SubmitResponse, error)
	GetTaskStatus(ctx context.Context, taskID string) (*dto.StatusResponse, error)
	ArtifactPath(ctx context.Context, taskID string, kind models.ArtifactKind) (string, error)
	FigurePath(ctx context.Context, taskID string, index int) (string, error)
	SetCredential(apiKey string) error
}

type ProgressSource interface {
	Attach(ctx context.Context, taskID string) (<-chan stream.Frame, error)
}

type TaskHandler struct {
	service     TaskService
	progress    ProgressSource
	maxFileSize int64
	logger      *zap.Logger
}

func NewTaskHandler(service TaskService, progress ProgressSource, maxFileSize int64, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service:     service,
		progress:    progress,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

func (h *TaskHandler) Config(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	var req dto.ConfigRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		h.handleError(w, "Invalid request body", err, traceID, http.StatusBadRequest)
		return
	}

	if err := h.service.SetCredential(req.APIKey); err != nil {
		if errors.Is(err, service.ErrEmptyCredential) {
			h.handleError(w, "API key must not be empty", err, traceID, http.StatusBadRequest)
			return
		}
		h.handleError(w, "Failed to update API key", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.ConfigResponse{Status: "ok", Message: "API key updated"})
}

func (h *TaskHandler) Upload(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.handleError(w, "Failed to parse form", err, traceID, http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.handleError(w, "Failed to get file", err, traceID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := validation.ValidateSource(header.Filename, header.Size, h.maxFileSize, file); err != nil {
		h.handleError(w, "Invalid file: "+err.Error(), err, traceID, http.StatusBadRequest)
		return
	}

	req := &dto.CreateTaskRequest{
		Source:  dto.Upload{Filename: header.Filename, Size: header.Size, Body: file},
		Samples: map[models.SampleKind]dto.Upload{},
	}

	for _, kind := range models.SampleKinds {
		sample, sampleHeader, err := r.FormFile(string(kind))
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			h.handleError(w, "Failed to get "+string(kind), err, traceID, http.StatusBadRequest)
			return
		}
		defer sample.Close()

		if err := validation.ValidateSample(sampleHeader.Filename, sampleHeader.Size, h.maxFileSize, sample); err != nil {
			h.handleError(w, "Invalid "+string(kind)+": "+err.Error(), err, traceID, http.StatusBadRequest)
			return
		}
		req.Samples[kind] = dto.Upload{Filename: sampleHeader.Filename, Size: sampleHeader.Size, Body: sample}
	}

	resp, err := h.service.CreateTask(r.Context(), traceID, req)
	if err != nil {
		h.handleError(w, "Failed to create task", err, traceID, http.StatusInternalServerError)
		return
	}

	h.logger.Info("File uploaded",
		zap.String("trace_id", traceID),
		zap.String("task_id", resp.TaskID),
		zap.String("filename", header.Filename),
		zap.Int("samples", len(req.Samples)),
	)

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	taskID := chi.URLParam(r, "taskID")
	if taskID == "" {
		h.handleError(w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.GetTaskStatus(r.Context(), taskID)
	if err != nil {
		h.handleLookupError(w, "Task not found", "Failed to get task status", err, traceID)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// Download serves a rendered artifact as an attachment.
func (h *TaskHandler) Download(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	kind, ok := models.ParseArtifactKind(chi.URLParam(r, "kind"))
	if !ok {
		h.handleError(w, "Unknown document type", nil, traceID, http.StatusNotFound)
		return
	}

	path, err := h.service.ArtifactPath(r.Context(), chi.URLParam(r, "taskID"), kind)
	if err != nil {
		h.handleLookupError(w, "Document not found", "Failed to get document", err, traceID)
		return
	}

	w.Header().Set("Content-Type", contentType(path))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (h *TaskHandler) Image(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	index, err := parseIndex(chi.URLParam(r, "index"))
	if err != nil {
		h.handleError(w, "Figure not found", err, traceID, http.StatusNotFound)
		return
	}

	path, err := h.service.FigurePath(r.Context(), chi.URLParam(r, "taskID"), index)
	if err != nil {
		h.handleLookupError(w, "Figure not found", "Failed to get figure", err, traceID)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}

func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *TaskHandler) handleLookupError(w http.ResponseWriter, notFound, other string, err error, traceID string) {
	if errors.Is(err, models.ErrNotFound) {
		h.handleError(w, notFound, err, traceID, http.StatusNotFound)
		return
	}
	h.handleError(w, other, err, traceID, http.StatusInternalServerError)
}

func (h *TaskHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int) {
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, zap.String("trace_id", traceID), zap.Error(err))
	} else {
		h.logger.Warn(message, zap.String("trace_id", traceID), zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	})
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
