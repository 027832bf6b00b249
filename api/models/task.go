package models

import (
	"time"
)

type TaskStatus string

const (
	StatusQueued     TaskStatus = "queued"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition enforces queued -> processing -> (completed | failed).
// A queued task may also fail directly when it never gets to run.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// StepID identifies a pipeline stage, "0" through "6".
type StepID string

const (
	StepExtract       StepID = "0"
	StepBaseStructure StepID = "1"
	StepEmbodiments   StepID = "2"
	StepClaims        StepID = "3"
	StepAbstract      StepID = "4"
	StepVisualPrompts StepID = "5"
	StepFigures       StepID = "6"
)

type ArtifactKind string

const (
	ArtifactSpecification ArtifactKind = "specification"
	ArtifactClaims        ArtifactKind = "claims"
	ArtifactAbstract      ArtifactKind = "abstract"
	ArtifactVisualPrompts ArtifactKind = "visual_prompts"
)

// ArtifactKinds lists every kind produced by steps 1-5, in production order.
var ArtifactKinds = []ArtifactKind{
	ArtifactSpecification,
	ArtifactClaims,
	ArtifactAbstract,
	ArtifactVisualPrompts,
}

func ParseArtifactKind(s string) (ArtifactKind, bool) {
	for _, k := range ArtifactKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

type SampleKind string

const (
	SampleSpecification SampleKind = "spec_sample"
	SampleClaims        SampleKind = "claims_sample"
	SampleAbstract      SampleKind = "abstract_sample"
)

var SampleKinds = []SampleKind{SampleSpecification, SampleClaims, SampleAbstract}

// Inputs are captured when a task is created and never change afterwards.
type Inputs struct {
	SourcePath       string
	OriginalFilename string
	Samples          map[SampleKind]string
	APIKey           string
	TraceID          string
}

type Task struct {
	ID          string
	Status      TaskStatus
	Step        StepID
	StepLabel   string
	Error       string
	Artifacts   map[ArtifactKind]string
	Figures     []string
	Inputs      Inputs
	EventCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Clone returns a copy that shares no mutable state with t.
func (t Task) Clone() Task {
	out := t
	out.Artifacts = make(map[ArtifactKind]string, len(t.Artifacts))
	for k, v := range t.Artifacts {
		out.Artifacts[k] = v
	}
	out.Figures = append([]string(nil), t.Figures...)
	out.Inputs.Samples = make(map[SampleKind]string, len(t.Inputs.Samples))
	for k, v := range t.Inputs.Samples {
		out.Inputs.Samples[k] = v
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		out.CompletedAt = &at
	}
	return out
}
