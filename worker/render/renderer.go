// Package render persists generated text and figures into a task's output
// directory.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"paperPatent/api/models"
	"paperPatent/worker/converter"
)

const titleMaxRunes = 25

var sectionKeywords = []string{
	"Technical Field", "Background", "Summary", "Beneficial Effects", "Advantageous Effects",
	"Description of Drawings", "Description of the Drawings", "Detailed Description",
	"技术领域", "背景技术", "发明内容", "有益效果", "附图说明", "具体实施方式",
}

// headingMaxRunes keeps keyword matching to short standalone lines.
const headingMaxRunes = 48

type Renderer struct {
	converter *converter.Converter
	maxWidth  int
	logger    *zap.Logger
}

func NewRenderer(conv *converter.Converter, figureMaxWidth int, logger *zap.Logger) *Renderer {
	return &Renderer{converter: conv, maxWidth: figureMaxWidth, logger: logger}
}

// FileName returns the file an artifact kind is written to.
func FileName(kind models.ArtifactKind) string {
	if kind == models.ArtifactVisualPrompts {
		return string(kind) + ".txt"
	}
	return string(kind) + ".docx"
}

// Render writes text for kind into dir and returns the file path.
func (r *Renderer) Render(ctx context.Context, kind models.ArtifactKind, text, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", models.RenderFailure("render cancelled", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", models.RenderFailure("create output dir", err)
	}

	path := filepath.Join(dir, FileName(kind))

	var err error
	switch kind {
	case models.ArtifactSpecification:
		err = specification(CleanMarkdown(text)).save(path)
	case models.ArtifactClaims:
		err = titled("Claims", CleanMarkdown(text), false).save(path)
	case models.ArtifactAbstract:
		err = titled("Abstract", CleanMarkdown(text), true).save(path)
	case models.ArtifactVisualPrompts:
		err = os.WriteFile(path, []byte(text), 0o644)
	default:
		return "", models.RenderFailure(fmt.Sprintf("unknown artifact kind %q", kind), nil)
	}
	if err != nil {
		return "", models.RenderFailure(fmt.Sprintf("write %s", kind), err)
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return "", models.RenderFailure(fmt.Sprintf("%s was not written", kind), err)
	}

	r.logger.Info("Artifact rendered",
		zap.String("kind", string(kind)),
		zap.String("path", path),
		zap.Int64("size", info.Size()),
	)
	return path, nil
}

// SaveFigure stores the image for the zero-based index as figure_<index+1>.png.
func (r *Renderer) SaveFigure(ctx context.Context, index int, data []byte, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("figure_%d.png", index+1))
	if err := r.converter.SaveFigure(data, path, r.maxWidth); err != nil {
		return "", err
	}
	return path, nil
}

// Title is the first non-empty line, cut to titleMaxRunes.
func Title(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > titleMaxRunes {
			line = string([]rune(line)[:titleMaxRunes])
		}
		return line
	}
	return ""
}

func specification(text string) *document {
	doc := &document{}
	title := Title(text)
	doc.add(title, true, true)

	counter := 1
	skippedTitle := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !skippedTitle && strings.HasPrefix(line, title) {
			skippedTitle = true
			continue
		}
		if isHeading(line) {
			doc.add(line, true, false)
			continue
		}
		doc.add(fmt.Sprintf("[%04d] %s", counter, line), false, false)
		counter++
	}
	return doc
}

func titled(title, text string, single bool) *document {
	doc := &document{}
	doc.add(title, true, true)
	if single {
		doc.add(strings.TrimSpace(text), false, false)
		return doc
	}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			doc.add(line, false, false)
		}
	}
	return doc
}

func isHeading(line string) bool {
	if utf8.RuneCountInString(line) > headingMaxRunes {
		return false
	}
	for _, kw := range sectionKeywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}
