package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"paperPatent/api/models"
	"paperPatent/api/repository"
	"paperPatent/worker/config"
	"paperPatent/worker/extractor"
	"paperPatent/worker/llm"
	"paperPatent/worker/prompts"
)

// Backend is the generation service. llm.Client satisfies it.
type Backend interface {
	Stream(ctx context.Context, req llm.Request, resultCh chan<- string) error
	GenerateImage(ctx context.Context, req llm.Request) ([]byte, error)
}

// Renderer persists step output. render.Renderer satisfies it.
type Renderer interface {
	Render(ctx context.Context, kind models.ArtifactKind, text, dir string) (string, error)
	SaveFigure(ctx context.Context, index int, data []byte, dir string) (string, error)
}

var stepLabels = map[models.StepID]string{
	models.StepExtract:       "PDF preprocessing",
	models.StepBaseStructure: "Base structure and terminology",
	models.StepEmbodiments:   "Detailed embodiments",
	models.StepClaims:        "Claims",
	models.StepAbstract:      "Abstract",
	models.StepVisualPrompts: "Figure prompts",
	models.StepFigures:       "Figure generation",
}

func StepLabel(step models.StepID) string {
	return stepLabels[step]
}

// Processor runs the generation pipeline for one task at a time. It is the
// only writer for the task it is processing.
type Processor struct {
	store     repository.Store
	journal   repository.Journal
	extractor extractor.Extractor
	backend   Backend
	renderer  Renderer
	cfg       *config.Config
	logger    *zap.Logger
}

func NewProcessor(
	store repository.Store,
	journal repository.Journal,
	ext extractor.Extractor,
	backend Backend,
	renderer Renderer,
	cfg *config.Config,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		store:     store,
		journal:   journal,
		extractor: ext,
		backend:   backend,
		renderer:  renderer,
		cfg:       cfg,
		logger:    logger,
	}
}

// run carries what one pipeline execution needs besides the Processor.
type run struct {
	task   models.Task
	dir    string
	logger *zap.Logger
}

// Process drives a queued task to completed or failed. The returned error is
// informational; the task's terminal state is already recorded when it returns.
func (p *Processor) Process(ctx context.Context, taskID string) (err error) {
	task, err := p.store.Get(ctx, taskID)
	if err != nil {
		return err
	}

	r := &run{
		task: task,
		dir:  filepath.Join(p.cfg.OutputDir, task.ID),
		logger: p.logger.With(
			zap.String("task_id", task.ID),
			zap.String("trace_id", task.Inputs.TraceID),
		),
	}

	if err := p.store.SetStatus(ctx, taskID, models.StatusProcessing); err != nil {
		return err
	}
	p.statusChanged(ctx, taskID, models.StatusProcessing, "")

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Pipeline panic", zap.Any("panic", rec), zap.Stack("stack"))
			err = p.fail(ctx, r, fmt.Errorf("internal error: %v", rec))
		}
	}()

	r.logger.Info("Pipeline started", zap.String("source", task.Inputs.SourcePath))
	if runErr := p.execute(ctx, r); runErr != nil {
		return p.fail(ctx, r, runErr)
	}

	p.log(ctx, r, "Pipeline finished")
	if err := p.store.Finish(ctx, taskID, models.StatusCompleted, ""); err != nil {
		return err
	}
	p.statusChanged(ctx, taskID, models.StatusCompleted, "")
	r.logger.Info("Pipeline completed")
	return nil
}

func (p *Processor) fail(ctx context.Context, r *run, cause error) error {
	// A cancelled run must still record its failure.
	ctx = context.WithoutCancel(ctx)

	msg := cause.Error()
	var pe *models.PipelineError
	if errors.As(cause, &pe) {
		msg = pe.Message
		if pe.Err != nil {
			msg = fmt.Sprintf("%s: %v", pe.Message, pe.Err)
		}
	}

	r.logger.Error("Pipeline failed", zap.Error(cause))
	p.log(ctx, r, "Pipeline error: "+msg)
	if err := p.store.Finish(ctx, r.task.ID, models.StatusFailed, msg); err != nil {
		r.logger.Error("Failed to record failure", zap.Error(err))
		return errors.Join(cause, err)
	}
	p.statusChanged(ctx, r.task.ID, models.StatusFailed, msg)
	return cause
}

func (p *Processor) execute(ctx context.Context, r *run) error {
	in := r.task.Inputs
	p.log(ctx, r, "Pipeline started")

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return models.RenderFailure("create output directory", err)
	}

	// Step 0
	p.step(ctx, r, models.StepExtract)
	p.log(ctx, r, "Parsing PDF: "+in.OriginalFilename)
	paper, err := p.extractor.Extract(ctx, in.SourcePath, in.APIKey)
	if err != nil {
		return err
	}
	if strings.TrimSpace(paper) == "" {
		return models.InputError("no text could be extracted from the PDF", nil)
	}
	chars := utf8.RuneCountInString(paper)
	p.emit(ctx, r, models.ContentEvent{Step: models.StepExtract, Text: fmt.Sprintf("PDF parsed, %d characters\n", chars)})
	p.log(ctx, r, fmt.Sprintf("PDF parsed, extracted %d characters", chars))

	samples := p.loadSamples(ctx, r)

	// Step 1
	partOne, err := p.generate(ctx, r, models.StepBaseStructure, p.cfg.TextModel,
		prompts.BasicStructure(paper, samples[models.SampleSpecification]))
	if err != nil {
		return err
	}
	terms := firstRunes(partOne, p.cfg.TermAnchorChars)

	// Step 2
	partTwo, err := p.generate(ctx, r, models.StepEmbodiments, p.cfg.TextModel,
		prompts.Embodiments(partOne, terms, samples[models.SampleSpecification]))
	if err != nil {
		return err
	}

	fullSpec := partOne + "\n\n" + p.cfg.SectionHeading + "\n\n" + partTwo
	if err := p.render(ctx, r, models.ArtifactSpecification, fullSpec); err != nil {
		return err
	}

	// Step 3
	claims, err := p.generate(ctx, r, models.StepClaims, p.cfg.TextModel,
		prompts.Claims(fullSpec, samples[models.SampleClaims]))
	if err != nil {
		return err
	}
	if err := p.render(ctx, r, models.ArtifactClaims, claims); err != nil {
		return err
	}

	// Step 4
	abstract, err := p.generate(ctx, r, models.StepAbstract, p.cfg.TextModel,
		prompts.Abstract(fullSpec, samples[models.SampleAbstract]))
	if err != nil {
		return err
	}
	if err := p.render(ctx, r, models.ArtifactAbstract, abstract); err != nil {
		return err
	}

	// Step 5
	visual, err := p.generate(ctx, r, models.StepVisualPrompts, p.cfg.PromptModel,
		prompts.VisualPrompts(fullSpec, p.cfg.FigureCount))
	if err != nil {
		return err
	}
	if err := p.render(ctx, r, models.ArtifactVisualPrompts, visual); err != nil {
		return err
	}

	// Step 6
	p.figures(ctx, r, ParseFigurePrompts(visual))
	return nil
}

func (p *Processor) loadSamples(ctx context.Context, r *run) map[models.SampleKind]string {
	out := make(map[models.SampleKind]string, len(models.SampleKinds))
	for _, kind := range models.SampleKinds {
		path, ok := r.task.Inputs.Samples[kind]
		if !ok || path == "" {
			out[kind] = prompts.Placeholder
			continue
		}

		text, err := ReadSample(path)
		if err != nil || strings.TrimSpace(text) == "" {
			r.logger.Warn("Sample unreadable, using placeholder",
				zap.String("sample", string(kind)),
				zap.Error(err),
			)
			p.log(ctx, r, fmt.Sprintf("Could not read %s, continuing without it", kind))
			out[kind] = prompts.Placeholder
			continue
		}

		out[kind] = text
		p.log(ctx, r, fmt.Sprintf("Loaded %s: %d characters", kind, utf8.RuneCountInString(text)))
	}
	return out
}

// generate streams one step's text, publishing every fragment as it arrives.
func (p *Processor) generate(ctx context.Context, r *run, step models.StepID, model, prompt string) (string, error) {
	p.step(ctx, r, step)
	p.log(ctx, r, "Calling model: "+model)

	resultCh := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(resultCh)
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Stream panic", zap.Any("panic", rec), zap.Stack("stack"))
				errCh <- models.GenerationFailure(fmt.Sprintf("stream panic: %v", rec), nil)
			}
		}()
		errCh <- p.backend.Stream(ctx, llm.Request{
			Step:   step,
			Model:  model,
			Prompt: prompt,
			APIKey: r.task.Inputs.APIKey,
		}, resultCh)
	}()

	var b strings.Builder
	for chunk := range resultCh {
		b.WriteString(chunk)
		p.emit(ctx, r, models.ContentEvent{Step: step, Text: chunk})
	}
	if err := <-errCh; err != nil {
		if _, ok := models.KindOf(err); ok {
			return "", err
		}
		return "", models.GenerationFailure(fmt.Sprintf("step %s", step), err)
	}

	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", models.GenerationFailure(fmt.Sprintf("model returned no text for step %s", step), nil)
	}

	p.log(ctx, r, fmt.Sprintf("Step %s finished, generated %d characters", step, utf8.RuneCountInString(text)))
	return text, nil
}

func (p *Processor) render(ctx context.Context, r *run, kind models.ArtifactKind, text string) error {
	path, err := p.renderer.Render(ctx, kind, text, r.dir)
	if err != nil {
		if _, ok := models.KindOf(err); ok {
			return err
		}
		return models.RenderFailure(fmt.Sprintf("render %s", kind), err)
	}
	if err := p.store.SetArtifact(ctx, r.task.ID, kind, path); err != nil {
		return models.RenderFailure(fmt.Sprintf("register %s", kind), err)
	}
	p.log(ctx, r, fmt.Sprintf("Saved %s: %s", kind, filepath.Base(path)))
	return nil
}

// figures generates one image per prompt. A failed figure is logged once and
// skipped; it never fails the task.
func (p *Processor) figures(ctx context.Context, r *run, figurePrompts []string) {
	p.step(ctx, r, models.StepFigures)
	p.log(ctx, r, "Calling model: "+p.cfg.ImageModel)
	p.log(ctx, r, fmt.Sprintf("Parsed %d figure prompts", len(figurePrompts)))

	planned := len(figurePrompts)
	saved := 0
	for i, prompt := range figurePrompts {
		p.emit(ctx, r, models.ContentEvent{
			Step: models.StepFigures,
			Text: fmt.Sprintf("\nGenerating figure %d/%d...\n", i+1, planned),
		})

		path, err := p.figure(ctx, r, i, prompt)
		if err != nil {
			r.logger.Warn("Figure skipped", zap.Int("figure", i+1), zap.Error(err))
			p.log(ctx, r, fmt.Sprintf("Figure %d failed, skipped: %v", i+1, err))
			continue
		}

		if _, err := p.store.AppendFigure(ctx, r.task.ID, path, planned); err != nil {
			r.logger.Error("Failed to register figure", zap.Int("figure", i+1), zap.Error(err))
			continue
		}
		saved++
		p.log(ctx, r, fmt.Sprintf("Figure %d saved: %s", i+1, filepath.Base(path)))
	}

	p.log(ctx, r, fmt.Sprintf("Figure generation finished, %d of %d figures", saved, planned))
}

func (p *Processor) figure(ctx context.Context, r *run, i int, prompt string) (string, error) {
	data, err := p.backend.GenerateImage(ctx, llm.Request{
		Step:   models.StepFigures,
		Model:  p.cfg.ImageModel,
		Prompt: prompts.Figure(prompt),
		APIKey: r.task.Inputs.APIKey,
	})
	if err != nil {
		return "", err
	}
	return p.renderer.SaveFigure(ctx, i, data, r.dir)
}

func (p *Processor) step(ctx context.Context, r *run, step models.StepID) {
	label := StepLabel(step)
	if err := p.store.SetStep(ctx, r.task.ID, step, label); err != nil {
		r.logger.Warn("Failed to record step", zap.String("step", string(step)), zap.Error(err))
	}
	p.log(ctx, r, fmt.Sprintf(">>> Entering step %s: %s", step, label))
	r.logger.Info("Entering step", zap.String("step", string(step)), zap.String("label", label))
}

func (p *Processor) log(ctx context.Context, r *run, message string) {
	p.emit(ctx, r, models.LogEvent{Message: message})
}

func (p *Processor) emit(ctx context.Context, r *run, ev models.Event) {
	if err := p.store.AppendEvent(ctx, r.task.ID, ev); err != nil {
		r.logger.Warn("Failed to append event", zap.String("type", string(ev.Type())), zap.Error(err))
	}
}

func (p *Processor) statusChanged(ctx context.Context, taskID string, status models.TaskStatus, errMsg string) {
	if p.journal == nil {
		return
	}
	_ = p.journal.StatusChanged(ctx, taskID, status, errMsg)
}

func firstRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
