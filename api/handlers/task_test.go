package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"paperPatent/api/dto"
	"paperPatent/api/middleware"
	"paperPatent/api/models"
	"paperPatent/api/service"
	"paperPatent/api/stream"
)

type mockTaskService struct {
	createTaskFunc    func(ctx context.Context, traceID string, req *dto.CreateTaskRequest) (*dto.SubmitResponse, error)
	getTaskFunc       func(ctx context.Context, taskID string) (*dto.StatusResponse, error)
	artifactPathFunc  func(ctx context.Context, taskID string, kind models.ArtifactKind) (string, error)
	figurePathFunc    func(ctx context.Context, taskID string, index int) (string, error)
	setCredentialFunc func(apiKey string) error
}

func (m *mockTaskService) CreateTask(ctx context.Context, traceID string, req *dto.CreateTaskRequest) (*dto.SubmitResponse, error) {
	if m.createTaskFunc != nil {
		return m.createTaskFunc(ctx, traceID, req)
	}
	return &dto.SubmitResponse{TaskID: uuid.New().String(), Status: string(models.StatusQueued)}, nil
}

func (m *mockTaskService) GetTaskStatus(ctx context.Context, taskID string) (*dto.StatusResponse, error) {
	if m.getTaskFunc != nil {
		return m.getTaskFunc(ctx, taskID)
	}
	return &dto.StatusResponse{TaskID: taskID, Status: string(models.StatusCompleted)}, nil
}

func (m *mockTaskService) ArtifactPath(ctx context.Context, taskID string, kind models.ArtifactKind) (string, error) {
	if m.artifactPathFunc != nil {
		return m.artifactPathFunc(ctx, taskID, kind)
	}
	return "", models.ErrArtifactNotFound
}

func (m *mockTaskService) FigurePath(ctx context.Context, taskID string, index int) (string, error) {
	if m.figurePathFunc != nil {
		return m.figurePathFunc(ctx, taskID, index)
	}
	return "", models.ErrFigureNotFound
}

func (m *mockTaskService) SetCredential(apiKey string) error {
	if m.setCredentialFunc != nil {
		return m.setCredentialFunc(apiKey)
	}
	return nil
}

type mockProgress struct {
	frames []stream.Frame
	err    error
}

func (m *mockProgress) Attach(ctx context.Context, taskID string) (<-chan stream.Frame, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(chan stream.Frame, len(m.frames))
	for _, f := range m.frames {
		out <- f
	}
	close(out)
	return out, nil
}

func newTestRouter(t *testing.T, svc TaskService, progress ProgressSource) http.Handler {
	logger := zaptest.NewLogger(t)
	return NewRouter(NewTaskHandler(svc, progress, 1<<20, logger), []string{"*"}, logger)
}

func multipartBody(t *testing.T, files map[string]struct {
	name    string
	content []byte
}) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for field, f := range files {
		part, err := writer.CreateFormFile(field, f.name)
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		if _, err := part.Write(f.content); err != nil {
			t.Fatalf("Failed to write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestTaskHandler_Upload_Success(t *testing.T) {
	var got *dto.CreateTaskRequest
	var gotTrace string
	var sourceBytes []byte

	svc := &mockTaskService{
		createTaskFunc: func(ctx context.Context, traceID string, req *dto.CreateTaskRequest) (*dto.SubmitResponse, error) {
			got = req
			gotTrace = traceID
			sourceBytes, _ = io.ReadAll(req.Source.Body)
			return &dto.SubmitResponse{TaskID: "task-1", Status: string(models.StatusQueued)}, nil
		},
	}

	body, ct := multipartBody(t, map[string]struct {
		name    string
		content []byte
	}{
		"file":          {"paper.pdf", []byte("%PDF-1.7 body")},
		"claims_sample": {"claims.md", []byte("1. A method.")},
	})

	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(middleware.TraceHeader, "trace-upload")
	rec := httptest.NewRecorder()

	newTestRouter(t, svc, &mockProgress{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got == nil {
		t.Fatal("Expected CreateTask to be called")
	}
	if got.Source.Filename != "paper.pdf" || string(sourceBytes) != "%PDF-1.7 body" {
		t.Errorf("Unexpected source upload: %q %q", got.Source.Filename, sourceBytes)
	}
	if _, ok := got.Samples[models.SampleClaims]; !ok || len(got.Samples) != 1 {
		t.Errorf("Expected only the claims sample, got %v", got.Samples)
	}
	if gotTrace != "trace-upload" {
		t.Errorf("Expected trace id to reach the service, got %q", gotTrace)
	}

	var resp dto.SubmitResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.TaskID != "task-1" || resp.Status != "queued" {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestTaskHandler_Upload_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		field string
		file  string
		data  []byte
	}{
		{"no file", "other", "paper.pdf", []byte("%PDF-1.7")},
		{"not a pdf", "file", "paper.pdf", []byte("plain text")},
		{"wrong extension", "file", "paper.doc", []byte("%PDF-1.7")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockTaskService{
				createTaskFunc: func(ctx context.Context, traceID string, req *dto.CreateTaskRequest) (*dto.SubmitResponse, error) {
					called = true
					return nil, nil
				},
			}

			body, ct := multipartBody(t, map[string]struct {
				name    string
				content []byte
			}{tt.field: {tt.file, tt.data}})

			req := httptest.NewRequest("POST", "/api/upload", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			newTestRouter(t, svc, &mockProgress{}).ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rec.Code)
			}
			if called {
				t.Error("Expected no task to be created")
			}
		})
	}
}

func TestTaskHandler_Config(t *testing.T) {
	var stored string
	svc := &mockTaskService{
		setCredentialFunc: func(apiKey string) error {
			if strings.TrimSpace(apiKey) == "" {
				return service.ErrEmptyCredential
			}
			stored = apiKey
			return nil
		},
	}
	router := newTestRouter(t, svc, &mockProgress{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/config", strings.NewReader(`{"api_key":"sk-test"}`)))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if stored != "sk-test" {
		t.Errorf("Expected key to be stored, got %q", stored)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/config", strings.NewReader(`{"api_key":"  "}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for blank key, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/config", strings.NewReader(`not json`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed body, got %d", rec.Code)
	}
}

func TestTaskHandler_Status(t *testing.T) {
	svc := &mockTaskService{
		getTaskFunc: func(ctx context.Context, id string) (*dto.StatusResponse, error) {
			if id != "known" {
				return nil, models.ErrTaskNotFound
			}
			return &dto.StatusResponse{TaskID: id, Status: "processing", Step: "3", StepLabel: "Claims"}, nil
		},
	}
	router := newTestRouter(t, svc, &mockProgress{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status/known", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}
	var resp dto.StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Step != "3" || resp.StepLabel != "Claims" {
		t.Errorf("Unexpected status %+v", resp)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"trace_id"`) {
		t.Errorf("Expected error envelope with trace_id, got %s", rec.Body.String())
	}
}

func TestTaskHandler_Stream(t *testing.T) {
	progress := &mockProgress{frames: []stream.Frame{
		{Event: models.StepEvent{Step: models.StepExtract, Label: "PDF preprocessing"}},
		{Heartbeat: true},
		{Event: models.ContentEvent{Step: models.StepExtract, Text: "PDF parsed"}},
		{Event: models.DoneEvent{Status: models.StatusFailed, Error: "boom"}},
	}}

	rec := httptest.NewRecorder()
	newTestRouter(t, &mockTaskService{}, progress).ServeHTTP(rec, httptest.NewRequest("GET", "/api/stream/t1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream, got %s", ct)
	}

	body := rec.Body.String()
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	if len(frames) != 4 {
		t.Fatalf("Expected 4 frames, got %d: %q", len(frames), body)
	}
	if frames[1] != ": heartbeat" {
		t.Errorf("Expected heartbeat comment, got %q", frames[1])
	}

	var last map[string]any
	if err := json.Unmarshal([]byte(strings.TrimPrefix(frames[3], "data: ")), &last); err != nil {
		t.Fatalf("Failed to decode done frame: %v", err)
	}
	if last["type"] != "done" || last["status"] != "failed" || last["error"] != "boom" {
		t.Errorf("Unexpected done frame %v", last)
	}
	if !strings.HasPrefix(frames[0], `data: {"type":"step"`) {
		t.Errorf("Expected step frame first, got %q", frames[0])
	}
}

func TestTaskHandler_Stream_UnknownTask(t *testing.T) {
	rec := httptest.NewRecorder()
	router := newTestRouter(t, &mockTaskService{}, &mockProgress{err: models.ErrTaskNotFound})
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stream/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON error, got %s", ct)
	}
}

func TestTaskHandler_Download(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claims.docx")
	if err := os.WriteFile(path, []byte("PK\x03\x04docx"), 0644); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}

	svc := &mockTaskService{
		artifactPathFunc: func(ctx context.Context, taskID string, kind models.ArtifactKind) (string, error) {
			if kind == models.ArtifactClaims {
				return path, nil
			}
			return "", models.ErrArtifactNotFound
		},
	}
	router := newTestRouter(t, svc, &mockProgress{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/download/t1/claims", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "claims.docx") {
		t.Errorf("Expected attachment filename, got %q", cd)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/vnd.openxmlformats") {
		t.Errorf("Unexpected Content-Type %q", rec.Header().Get("Content-Type"))
	}

	for _, target := range []string{"/api/download/t1/abstract", "/api/download/t1/bogus"} {
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", target, rec.Code)
		}
	}
}

func TestTaskHandler_Image(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "figure_1.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0644); err != nil {
		t.Fatalf("Failed to write figure: %v", err)
	}

	svc := &mockTaskService{
		figurePathFunc: func(ctx context.Context, taskID string, index int) (string, error) {
			if index == 0 {
				return path, nil
			}
			return "", models.ErrFigureNotFound
		},
	}
	router := newTestRouter(t, svc, &mockProgress{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/image/t1/0", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}

	for _, target := range []string{"/api/image/t1/1", "/api/image/t1/-1", "/api/image/t1/x"} {
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", target, rec.Code)
		}
	}
}

func TestTaskHandler_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, &mockTaskService{}, &mockProgress{}).ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}
