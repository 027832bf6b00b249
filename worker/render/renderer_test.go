package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"paperPatent/api/models"
	"paperPatent/worker/converter"
)

func newRenderer(t *testing.T) *Renderer {
	logger := zaptest.NewLogger(t)
	return NewRenderer(converter.NewConverter(logger), 1024, logger)
}

func TestCleanMarkdown(t *testing.T) {
	in := "## Technical Field\n\n**Bold** and *italic* and ***both***\n- first\n* second\n1. kept\n\n---\n\n\n\n" +
		"See [the docs](https://example.com) and ![chart](c.png)\n```go\ncode()\n```"

	out := CleanMarkdown(in)

	assert.Equal(t, strings.Join([]string{
		"Technical Field",
		"",
		"Bold and italic and both",
		"first",
		"second",
		"1. kept",
		"",
		"See the docs and (Image: chart)",
		"",
		"code()",
	}, "\n"), out)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Short title", Title("\n\n  Short title  \nbody"))
	assert.Equal(t, "一种基于深度学习的多模态医学图像分割方法及系统装置", Title("一种基于深度学习的多模态医学图像分割方法及系统装置与存储介质\n正文"))
	assert.Equal(t, 25, len([]rune(Title(strings.Repeat("x", 40)))))
	assert.Equal(t, "", Title("   \n  "))
}

func TestRenderer_Specification(t *testing.T) {
	r := newRenderer(t)
	dir := t.TempDir()

	text := "# Adaptive Segmentation\n\nTechnical Field\n\nThe invention relates to imaging.\n\n" +
		"Background\n\nPrior methods are slow.\n\nDetailed Description of Embodiments\n\nStep one resizes the input."

	path, err := r.Render(context.Background(), models.ArtifactSpecification, text, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "specification.docx"), path)

	got, err := ReadDocxText(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"Adaptive Segmentation",
		"Technical Field",
		"[0001] The invention relates to imaging.",
		"Background",
		"[0002] Prior methods are slow.",
		"Detailed Description of Embodiments",
		"[0003] Step one resizes the input.",
	}, "\n"), got)
}

func TestRenderer_ClaimsAndAbstract(t *testing.T) {
	r := newRenderer(t)
	dir := t.TempDir()
	ctx := context.Background()

	path, err := r.Render(ctx, models.ArtifactClaims, "1. A method <with> & symbols.\n\n2. The method of claim 1.", dir)
	require.NoError(t, err)
	got, err := ReadDocxText(path)
	require.NoError(t, err)
	assert.Equal(t, "Claims\n1. A method <with> & symbols.\n2. The method of claim 1.", got)

	path, err = r.Render(ctx, models.ArtifactAbstract, "**A method** for segmenting images.", dir)
	require.NoError(t, err)
	got, err = ReadDocxText(path)
	require.NoError(t, err)
	assert.Equal(t, "Abstract\nA method for segmenting images.", got)
}

func TestRenderer_VisualPromptsVerbatim(t *testing.T) {
	r := newRenderer(t)
	dir := t.TempDir()
	raw := "Figure 1: **overall** flow\nFigure 2: module diagram\n"

	path, err := r.Render(context.Background(), models.ArtifactVisualPrompts, raw, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "visual_prompts.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, string(data))
}

func TestRenderer_UnknownKind(t *testing.T) {
	r := newRenderer(t)

	_, err := r.Render(context.Background(), models.ArtifactKind("drawings"), "x", t.TempDir())
	kind, ok := models.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, models.ErrorKindRender, kind)
}

func TestRenderer_SaveFigureRejectsGarbage(t *testing.T) {
	r := newRenderer(t)

	_, err := r.SaveFigure(context.Background(), 0, []byte("not an image"), t.TempDir())
	assert.Error(t, err)
}

func TestReadDocxText_NotADocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.docx")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := ReadDocxText(path)
	assert.Error(t, err)
}
