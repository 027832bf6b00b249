// Package extractor turns a source PDF into plain text.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"paperPatent/api/models"
	"paperPatent/worker/converter"
	"paperPatent/worker/llm"
	"paperPatent/worker/prompts"
)

type Extractor interface {
	Extract(ctx context.Context, path, apiKey string) (string, error)
}

// FitzExtractor reads the embedded text layer of each page.
type FitzExtractor struct {
	logger *zap.Logger
}

func NewFitzExtractor(logger *zap.Logger) *FitzExtractor {
	return &FitzExtractor{logger: logger}
}

func (e *FitzExtractor) Extract(ctx context.Context, path, _ string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", models.InputError("failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return "", models.InputError("PDF has no pages", nil)
	}

	pages := make([]string, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := doc.Text(pageNum)
		if err != nil {
			return "", models.InputError(fmt.Sprintf("failed to read page %d", pageNum+1), err)
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	e.logger.Debug("Text layer extracted",
		zap.String("path", path),
		zap.Int("pages", pageCount),
		zap.Int("pages_with_text", len(pages)),
	)
	return strings.Join(pages, "\n\n"), nil
}

// Transcriber streams a completion; llm.Client satisfies it.
type Transcriber interface {
	Stream(ctx context.Context, req llm.Request, resultCh chan<- string) error
}

// VisionExtractor rasterises pages and has a vision model transcribe them.
// It is the fallback for scanned papers that carry no text layer.
type VisionExtractor struct {
	transcriber Transcriber
	converter   *converter.Converter
	model       string
	maxPages    int
	maxWidth    int
	logger      *zap.Logger
}

func NewVisionExtractor(t Transcriber, conv *converter.Converter, model string, maxPages, maxWidth int, logger *zap.Logger) *VisionExtractor {
	return &VisionExtractor{
		transcriber: t,
		converter:   conv,
		model:       model,
		maxPages:    maxPages,
		maxWidth:    maxWidth,
		logger:      logger,
	}
}

func (e *VisionExtractor) Extract(ctx context.Context, path, apiKey string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", models.InputError("failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if e.maxPages > 0 && pageCount > e.maxPages {
		pageCount = e.maxPages
	}

	pages := make([]string, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		img, err := doc.Image(pageNum)
		if err != nil {
			return "", models.InputError(fmt.Sprintf("failed to render page %d", pageNum+1), err)
		}
		jpeg, err := e.converter.PageJPEG(img, e.maxWidth)
		if err != nil {
			return "", models.InputError(fmt.Sprintf("failed to encode page %d", pageNum+1), err)
		}

		text, err := e.transcribe(ctx, jpeg, apiKey)
		if err != nil {
			return "", err
		}

		e.logger.Debug("Page transcribed",
			zap.Int("page", pageNum+1),
			zap.Int("chars", utf8.RuneCountInString(text)),
		)
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func (e *VisionExtractor) transcribe(ctx context.Context, jpeg []byte, apiKey string) (string, error) {
	resultCh := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(resultCh)
		defer func() {
			if rec := recover(); rec != nil {
				e.logger.Error("Transcription panic", zap.Any("panic", rec), zap.Stack("stack"))
				errCh <- models.GenerationFailure(fmt.Sprintf("transcription panic: %v", rec), nil)
			}
		}()
		errCh <- e.transcriber.Stream(ctx, llm.Request{
			Step:   models.StepExtract,
			Model:  e.model,
			Prompt: prompts.Transcribe,
			Image:  jpeg,
			APIKey: apiKey,
		}, resultCh)
	}()

	var b strings.Builder
	for chunk := range resultCh {
		b.WriteString(chunk)
	}
	if err := <-errCh; err != nil {
		return "", err
	}
	return b.String(), nil
}

// Chain prefers the primary extractor and falls back when its text is shorter
// than minChars.
type Chain struct {
	primary  Extractor
	fallback Extractor
	minChars int
	logger   *zap.Logger
}

func NewChain(primary, fallback Extractor, minChars int, logger *zap.Logger) *Chain {
	return &Chain{primary: primary, fallback: fallback, minChars: minChars, logger: logger}
}

func (c *Chain) Extract(ctx context.Context, path, apiKey string) (string, error) {
	text, err := c.primary.Extract(ctx, path, apiKey)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) >= c.minChars {
		return text, nil
	}

	if c.fallback != nil {
		c.logger.Info("Text layer too short, trying fallback extractor",
			zap.String("path", path),
			zap.Int("chars", utf8.RuneCountInString(text)),
			zap.Int("min_chars", c.minChars),
		)
		fallback, ferr := c.fallback.Extract(ctx, path, apiKey)
		fallback = strings.TrimSpace(fallback)
		switch {
		case ferr == nil && fallback != "":
			return fallback, nil
		case ferr != nil:
			c.logger.Warn("Fallback extractor failed", zap.String("path", path), zap.Error(ferr))
			if text == "" {
				return "", unreadable(ferr)
			}
		}
	}

	if text == "" {
		return "", unreadable(nil)
	}
	return text, nil
}

func unreadable(cause error) error {
	var pe *models.PipelineError
	if errors.As(cause, &pe) && pe.Kind == models.ErrorKindInput {
		return pe
	}
	return models.InputError("no text could be extracted from the PDF", cause)
}
