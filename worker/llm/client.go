package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperPatent/api/models"
)

// Client talks to an OpenRouter-compatible chat completions endpoint. It never
// retries; any failure is reported to the caller as is.
type Client struct {
	url        string
	siteURL    string
	siteName   string
	httpClient *http.Client
	logger     *zap.Logger
}

type Options struct {
	URL      string
	SiteURL  string
	SiteName string
	Timeout  time.Duration
}

// Request is one generation call. The credential travels with the request so
// each task uses the key it captured at creation.
type Request struct {
	Step   models.StepID
	Model  string
	Prompt string
	Image  []byte // optional JPEG attached after the prompt
	APIKey string
}

type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model      string    `json:"model"`
	Messages   []Message `json:"messages"`
	Stream     bool      `json:"stream"`
	Modalities []string  `json:"modalities,omitempty"`
}

type Response struct {
	ID      string     `json:"id"`
	Choices []Choice   `json:"choices"`
	Error   *wireError `json:"error,omitempty"`
}

type Choice struct {
	Delta        Delta  `json:"delta"`
	Message      Delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type Delta struct {
	Content string      `json:"content"`
	Role    string      `json:"role"`
	Images  []ImagePart `json:"images,omitempty"`
}

type ImagePart struct {
	Type     string   `json:"type"`
	ImageURL ImageURL `json:"image_url"`
}

type wireError struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	return &Client{
		url:        opts.URL,
		siteURL:    opts.SiteURL,
		siteName:   opts.SiteName,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger,
	}
}

// Stream sends a streaming completion and forwards text fragments to resultCh
// in arrival order. resultCh is not closed.
func (c *Client) Stream(ctx context.Context, req Request, resultCh chan<- string) error {
	resp, err := c.post(ctx, req.APIKey, chatRequest{
		Model:    req.Model,
		Messages: []Message{userMessage(req.Prompt, req.Image)},
		Stream:   true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := NewStreamParser(resp.Body).ParseAll(resultCh); err != nil {
		return models.GenerationFailure(fmt.Sprintf("stream from %s broke off", req.Model), err)
	}
	return nil
}

// GenerateImage asks an image-capable model for one picture and returns the
// decoded bytes of the first image in the reply.
func (c *Client) GenerateImage(ctx context.Context, req Request) ([]byte, error) {
	resp, err := c.post(ctx, req.APIKey, chatRequest{
		Model:      req.Model,
		Messages:   []Message{userMessage(req.Prompt, nil)},
		Modalities: []string{"image", "text"},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, models.GenerationFailure("decode image response", err)
	}
	if body.Error != nil {
		return nil, models.GenerationFailure(body.Error.Message, nil)
	}
	if len(body.Choices) == 0 {
		return nil, models.GenerationFailure("image response has no choices", nil)
	}

	for _, img := range body.Choices[0].Message.Images {
		data, err := decodeDataURL(img.ImageURL.URL)
		if err != nil {
			c.logger.Debug("Skipping undecodable image part", zap.Error(err))
			continue
		}
		return data, nil
	}
	return nil, models.GenerationFailure("image response carries no image", nil)
}

func (c *Client) post(ctx context.Context, apiKey string, payload chatRequest) (*http.Response, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, models.InputError("no generation credential configured", nil)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, models.GenerationFailure("marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, models.GenerationFailure("build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	if c.siteURL != "" {
		httpReq.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		httpReq.Header.Set("X-Title", c.siteName)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, models.GenerationFailure(fmt.Sprintf("request to %s failed", payload.Model), err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, models.GenerationFailure(
			fmt.Sprintf("%s returned status %d: %s", payload.Model, resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}

	c.logger.Debug("Generation call accepted",
		zap.String("model", payload.Model),
		zap.Bool("stream", payload.Stream),
		zap.Duration("latency", time.Since(start)),
	)
	return resp, nil
}

func userMessage(prompt string, image []byte) Message {
	parts := []ContentPart{{Type: "text", Text: prompt}}
	if len(image) > 0 {
		parts = append(parts, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)},
		})
	}
	return Message{Role: "user", Content: parts}
}

func decodeDataURL(url string) ([]byte, error) {
	if !strings.HasPrefix(url, "data:") {
		return nil, fmt.Errorf("not a data url")
	}
	comma := strings.IndexByte(url, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data url")
	}
	meta := url[len("data:"):comma]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data url is not base64")
	}
	return base64.StdEncoding.DecodeString(url[comma+1:])
}
