package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"paperPatent/api/middleware"
)

// Stream tails a task's progress log as Server-Sent Events. Only an unknown
// task is an HTTP error; everything else arrives in-band.
func (h *TaskHandler) Stream(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())
	taskID := chi.URLParam(r, "taskID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.handleError(w, "Streaming unsupported", nil, traceID, http.StatusInternalServerError)
		return
	}

	frames, err := h.progress.Attach(r.Context(), taskID)
	if err != nil {
		h.handleLookupError(w, "Task not found", "Failed to open stream", err, traceID)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sent := 0
	for frame := range frames {
		if frame.Heartbeat {
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				break
			}
			flusher.Flush()
			continue
		}

		data, err := json.Marshal(frame.Event)
		if err != nil {
			h.logger.Error("Failed to encode event",
				zap.String("trace_id", traceID),
				zap.String("task_id", taskID),
				zap.Error(err),
			)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			break
		}
		flusher.Flush()
		sent++
	}

	h.logger.Debug("Stream closed",
		zap.String("trace_id", traceID),
		zap.String("task_id", taskID),
		zap.Int("events", sent),
	)
}
