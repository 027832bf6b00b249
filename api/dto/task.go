package dto

import (
	"io"

	"paperPatent/api/models"
)

// Upload is one file received from the client.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

type CreateTaskRequest struct {
	Source  Upload
	Samples map[models.SampleKind]Upload
}

type ConfigRequest struct {
	APIKey string `json:"api_key"`
}

type ConfigResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type SubmitResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type StatusResponse struct {
	TaskID      string          `json:"task_id"`
	Status      string          `json:"status"`
	Step        string          `json:"step"`
	StepLabel   string          `json:"step_label"`
	Error       string          `json:"error,omitempty"`
	Files       map[string]bool `json:"files"`
	Figures     int             `json:"figures"`
	CreatedAt   string          `json:"created_at"`
	CompletedAt *string         `json:"completed_at,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}
