package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"paperPatent/api/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{URL: srv.URL, SiteName: "test", Timeout: 5 * time.Second}, zaptest.NewLogger(t))
}

func drain(t *testing.T, c *Client, req Request) ([]string, error) {
	t.Helper()
	resultCh := make(chan string, 100)
	err := c.Stream(context.Background(), req, resultCh)
	close(resultCh)
	var out []string
	for chunk := range resultCh {
		out = append(out, chunk)
	}
	return out, err
}

func TestClient_StreamForwardsFragmentsInOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-task", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Stream)
		assert.Equal(t, "text-model", body.Model)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		for _, part := range []string{"Title", " of the", " invention"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	chunks, err := drain(t, c, Request{Model: "text-model", Prompt: "write", APIKey: "sk-task"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Title", " of the", " invention"}, chunks)
}

func TestClient_StreamWithoutCredential(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := drain(t, c, Request{Model: "m", Prompt: "p"})
	kind, ok := models.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, models.ErrorKindInput, kind)
	assert.False(t, called)
}

func TestClient_StreamHTTPErrorIsGenerationFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	})

	_, err := drain(t, c, Request{Model: "m", Prompt: "p", APIKey: "k"})
	kind, ok := models.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, models.ErrorKindGeneration, kind)
	assert.Contains(t, err.Error(), "429")
}

func TestClient_StreamInBandError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"provider overloaded\"}}\n\n")
	})

	chunks, err := drain(t, c, Request{Model: "m", Prompt: "p", APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider overloaded")
	assert.Equal(t, []string{"partial"}, chunks)
}

func TestClient_StreamAttachesImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Messages[0].Content, 2)
		assert.True(t, strings.HasPrefix(body.Messages[0].Content[1].ImageURL.URL, "data:image/jpeg;base64,"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	_, err := drain(t, c, Request{Model: "vision", Prompt: "transcribe", Image: []byte{0xFF, 0xD8}, APIKey: "k"})
	require.NoError(t, err)
}

func TestClient_GenerateImage(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"image", "text"}, body.Modalities)
		assert.False(t, body.Stream)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"content":"","images":[
			{"type":"image_url","image_url":{"url":"https://example.com/not-inline.png"}},
			{"type":"image_url","image_url":{"url":"data:image/png;base64,%s"}}]}}]}`,
			base64.StdEncoding.EncodeToString(png))
	})

	data, err := c.GenerateImage(context.Background(), Request{Model: "img", Prompt: "flowchart", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, png, data)
}

func TestClient_GenerateImageWithoutImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"I cannot draw that"}}]}`)
	})

	_, err := c.GenerateImage(context.Background(), Request{Model: "img", Prompt: "p", APIKey: "k"})
	kind, ok := models.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, models.ErrorKindGeneration, kind)
}
