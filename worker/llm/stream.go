package llm

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// StreamParser reads an OpenAI-style Server-Sent Events body.
type StreamParser struct {
	scanner *bufio.Scanner
}

func NewStreamParser(reader io.Reader) *StreamParser {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &StreamParser{scanner: scanner}
}

type StreamChunk struct {
	Content      string
	FinishReason string
	Done         bool
}

// Next returns the next chunk. An in-band error object ends the stream with
// an error; malformed lines are skipped.
func (p *StreamParser) Next() (*StreamChunk, error) {
	for p.scanner.Scan() {
		line := strings.TrimRight(p.scanner.Text(), "\r")

		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		if data == "[DONE]" {
			return &StreamChunk{Done: true}, nil
		}

		var resp Response
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			continue
		}

		if resp.Error != nil {
			return nil, errors.New(resp.Error.Message)
		}

		if len(resp.Choices) > 0 {
			choice := resp.Choices[0]
			return &StreamChunk{
				Content:      choice.Delta.Content,
				FinishReason: choice.FinishReason,
				Done:         choice.FinishReason != "",
			}, nil
		}
	}

	if err := p.scanner.Err(); err != nil {
		return nil, err
	}

	return &StreamChunk{Done: true}, nil
}

// ParseAll forwards every non-empty fragment to resultCh until the stream ends.
func (p *StreamParser) ParseAll(resultCh chan<- string) error {
	for {
		chunk, err := p.Next()
		if err != nil {
			return err
		}

		if chunk.Content != "" {
			resultCh <- chunk.Content
		}

		if chunk.Done {
			return nil
		}
	}
}
