package models

import (
	"encoding/json"
)

// EventType is the discriminant carried in every serialized event.
type EventType string

const (
	EventStep        EventType = "step"
	EventContent     EventType = "content"
	EventLog         EventType = "log"
	EventFileReady   EventType = "file_ready"
	EventFigureReady EventType = "figure_ready"
	EventError       EventType = "error"
	EventDone        EventType = "done"
)

// Event is one entry of a task's progress log. The set of implementations is
// closed; consumers switch on the concrete type.
type Event interface {
	Type() EventType
	isEvent()
}

// StepEvent marks a step transition.
type StepEvent struct {
	Step  StepID `json:"step"`
	Label string `json:"label"`
}

// ContentEvent carries one generated text fragment of a step.
type ContentEvent struct {
	Step StepID `json:"step"`
	Text string `json:"text"`
}

// LogEvent is a human-facing diagnostic line.
type LogEvent struct {
	Message string `json:"message"`
}

type FileReadyEvent struct {
	Kind ArtifactKind `json:"doc_type"`
}

// FigureReadyEvent reports a stored figure. Index is the zero-based fetch
// index, Total the number of figures stored so far, Planned the number of
// parsed figure prompts.
type FigureReadyEvent struct {
	Index   int `json:"index"`
	Total   int `json:"total"`
	Planned int `json:"planned"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

// DoneEvent is the terminal entry of every progress log.
type DoneEvent struct {
	Status  TaskStatus              `json:"status"`
	Files   map[ArtifactKind]string `json:"files"`
	Figures int                     `json:"figures"`
	Error   string                  `json:"error"`
}

func (StepEvent) Type() EventType        { return EventStep }
func (ContentEvent) Type() EventType     { return EventContent }
func (LogEvent) Type() EventType         { return EventLog }
func (FileReadyEvent) Type() EventType   { return EventFileReady }
func (FigureReadyEvent) Type() EventType { return EventFigureReady }
func (ErrorEvent) Type() EventType       { return EventError }
func (DoneEvent) Type() EventType        { return EventDone }

func (StepEvent) isEvent()        {}
func (ContentEvent) isEvent()     {}
func (LogEvent) isEvent()         {}
func (FileReadyEvent) isEvent()   {}
func (FigureReadyEvent) isEvent() {}
func (ErrorEvent) isEvent()       {}
func (DoneEvent) isEvent()        {}

func (e StepEvent) MarshalJSON() ([]byte, error) {
	type plain StepEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.Type(), plain(e)})
}

func (e ContentEvent) MarshalJSON() ([]byte, error) {
	type plain ContentEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.Type(), plain(e)})
}

func (e LogEvent) MarshalJSON() ([]byte, error) {
	type plain LogEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.Type(), plain(e)})
}

func (e FileReadyEvent) MarshalJSON() ([]byte, error) {
	type plain FileReadyEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.Type(), plain(e)})
}

func (e FigureReadyEvent) MarshalJSON() ([]byte, error) {
	type plain FigureReadyEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.Type(), plain(e)})
}

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	type plain ErrorEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.Type(), plain(e)})
}

func (e DoneEvent) MarshalJSON() ([]byte, error) {
	type plain DoneEvent
	if e.Files == nil {
		e.Files = map[ArtifactKind]string{}
	}
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.Type(), plain(e)})
}
