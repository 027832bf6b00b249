package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrTaskNotFound     = fmt.Errorf("task %w", ErrNotFound)
	ErrArtifactNotFound = fmt.Errorf("artifact %w", ErrNotFound)
	ErrFigureNotFound   = fmt.Errorf("figure %w", ErrNotFound)

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrArtifactExists    = errors.New("artifact already registered")
)

// ErrorKind classifies failures that end a pipeline run.
type ErrorKind string

const (
	ErrorKindInput      ErrorKind = "input"
	ErrorKindGeneration ErrorKind = "generation"
	ErrorKindRender     ErrorKind = "render"
)

// PipelineError is a failure raised by one of the pipeline collaborators.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func NewPipelineError(kind ErrorKind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

// InputError: unreadable source, or no usable credential.
func InputError(message string, err error) *PipelineError {
	return NewPipelineError(ErrorKindInput, message, err)
}

// GenerationFailure: the backend errored or returned something unusable.
func GenerationFailure(message string, err error) *PipelineError {
	return NewPipelineError(ErrorKindGeneration, message, err)
}

// RenderFailure: text was generated but could not be persisted.
func RenderFailure(message string, err error) *PipelineError {
	return NewPipelineError(ErrorKindRender, message, err)
}

// KindOf returns the pipeline error kind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
