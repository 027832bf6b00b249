package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"paperPatent/api/middleware"
)

func NewRouter(h *TaskHandler, allowedOrigins []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.TraceID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(allowedOrigins))
	r.Use(chimw.CleanPath)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/config", h.Config)
		r.Post("/upload", h.Upload)
		r.Get("/status/{taskID}", h.Status)
		r.Get("/stream/{taskID}", h.Stream)
		r.Get("/download/{taskID}/{kind}", h.Download)
		r.Get("/image/{taskID}/{index}", h.Image)
	})

	return r
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func parseIndex(raw string) (int, error) {
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if index < 0 {
		return 0, errors.New("negative figure index")
	}
	return index, nil
}
