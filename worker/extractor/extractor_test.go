package extractor

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"paperPatent/api/models"
	"paperPatent/worker/llm"
)

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, path, apiKey string) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestChain_PrimaryLongEnough(t *testing.T) {
	primary := &fakeExtractor{text: strings.Repeat("a", 300)}
	fallback := &fakeExtractor{text: "ocr"}
	chain := NewChain(primary, fallback, 200, zaptest.NewLogger(t))

	text, err := chain.Extract(context.Background(), "paper.pdf", "k")
	require.NoError(t, err)
	assert.Len(t, text, 300)
	assert.Equal(t, 0, fallback.calls)
}

func TestChain_ShortPrimaryUsesFallback(t *testing.T) {
	primary := &fakeExtractor{text: "  abstract only  "}
	fallback := &fakeExtractor{text: "full transcription"}
	chain := NewChain(primary, fallback, 200, zaptest.NewLogger(t))

	text, err := chain.Extract(context.Background(), "paper.pdf", "k")
	require.NoError(t, err)
	assert.Equal(t, "full transcription", text)
}

func TestChain_FallbackFailureKeepsPrimaryText(t *testing.T) {
	primary := &fakeExtractor{text: "abstract only"}
	fallback := &fakeExtractor{err: models.GenerationFailure("vision model down", nil)}
	chain := NewChain(primary, fallback, 200, zaptest.NewLogger(t))

	text, err := chain.Extract(context.Background(), "paper.pdf", "k")
	require.NoError(t, err)
	assert.Equal(t, "abstract only", text)
}

func TestChain_NothingExtracted(t *testing.T) {
	tests := []struct {
		name     string
		fallback Extractor
	}{
		{"no fallback", nil},
		{"fallback empty", &fakeExtractor{text: "   "}},
		{"fallback fails", &fakeExtractor{err: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := NewChain(&fakeExtractor{text: "\n\n"}, tt.fallback, 200, zaptest.NewLogger(t))

			_, err := chain.Extract(context.Background(), "paper.pdf", "k")
			kind, ok := models.KindOf(err)
			require.True(t, ok)
			assert.Equal(t, models.ErrorKindInput, kind)
		})
	}
}

func TestChain_PrimaryErrorIsFatal(t *testing.T) {
	primary := &fakeExtractor{err: models.InputError("failed to open PDF", nil)}
	fallback := &fakeExtractor{text: "never used"}
	chain := NewChain(primary, fallback, 200, zaptest.NewLogger(t))

	_, err := chain.Extract(context.Background(), "paper.pdf", "k")
	require.Error(t, err)
	assert.Equal(t, 0, fallback.calls)
}

func TestFitzExtractor_MissingFile(t *testing.T) {
	e := NewFitzExtractor(zaptest.NewLogger(t))

	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), "")
	kind, ok := models.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, models.ErrorKindInput, kind)
}

type panickingTranscriber struct{}

func (panickingTranscriber) Stream(ctx context.Context, req llm.Request, resultCh chan<- string) error {
	resultCh <- "page one"
	panic("vision stream exploded")
}

func TestVisionExtractor_TranscribePanicBecomesFailure(t *testing.T) {
	e := NewVisionExtractor(panickingTranscriber{}, nil, "vision-model", 1, 800, zaptest.NewLogger(t))

	_, err := e.transcribe(context.Background(), []byte{0xFF, 0xD8}, "key")
	require.Error(t, err)
	kind, ok := models.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, models.ErrorKindGeneration, kind)
	assert.Contains(t, err.Error(), "vision stream exploded")
}
