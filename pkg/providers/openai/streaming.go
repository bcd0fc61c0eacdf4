package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"mercator-hq/conduit/pkg/providers"
)

const maxStreamLine = 1024 * 1024

// streamReader iterates the data items of an SSE chat completions stream.
type streamReader struct {
	provider string
	body     io.ReadCloser
	scanner  *bufio.Scanner
	done     bool
}

func newStreamReader(provider string, body io.ReadCloser) *streamReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	return &streamReader{
		provider: provider,
		body:     body,
		scanner:  scanner,
	}
}

// Next returns the next item. It returns io.EOF at [DONE] or end of body.
func (s *streamReader) Next() (*StreamItem, error) {
	if s.done {
		return nil, io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			// Blank separators, comments and event names.
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			s.done = true
			return nil, io.EOF
		}

		var item StreamItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, &providers.ParseError{
				Provider:    s.provider,
				RawResponse: data,
				Cause:       fmt.Errorf("failed to parse stream item: %w", err),
			}
		}
		return &item, nil
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return nil, &providers.StreamError{
			Provider: s.provider,
			Message:  "failed to read stream",
			Cause:    err,
		}
	}
	return nil, io.EOF
}

// Close releases the response body.
func (s *streamReader) Close() error {
	s.done = true
	return s.body.Close()
}

// pump forwards items from r to out until the stream ends, fails or ctx is
// done. A failure is sent as the final chunk.
//
// The chunk carrying the finish reason is held back one item: with
// include_usage the vendor sends a usage-only item after it, and that usage is
// folded into the finish chunk so the terminal chunk carries both.
func (p *Provider) pump(ctx context.Context, r *streamReader, out chan<- *providers.StreamChunk) {
	defer func() {
		if v := recover(); v != nil {
			providers.SendChunk(ctx, out, &providers.StreamChunk{Error: p.HandleError(v)})
		}
	}()

	var id, model string
	var pending *providers.StreamChunk
	flush := func() bool {
		if pending == nil {
			return true
		}
		chunk := pending
		pending = nil
		return providers.SendChunk(ctx, out, chunk)
	}

	for {
		item, err := r.Next()
		if err == io.EOF {
			flush()
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !flush() {
				return
			}
			p.Logger().Warn("stream failed", "error", err)
			providers.SendChunk(ctx, out, &providers.StreamChunk{ID: id, Model: model, Error: err})
			return
		}

		chunk := ChunkFromStream(item)
		if chunk.ID != "" {
			id = chunk.ID
		}
		if chunk.Model != "" {
			model = chunk.Model
		}

		if pending != nil && usageOnly(chunk) {
			pending.Usage = chunk.Usage
			if !flush() {
				return
			}
			continue
		}
		if !flush() {
			return
		}
		if chunk.FinishReason != "" {
			pending = chunk
			continue
		}
		if !providers.SendChunk(ctx, out, chunk) {
			return
		}
	}
}

func usageOnly(c *providers.StreamChunk) bool {
	return c.Usage != nil && c.Content == "" && c.FinishReason == "" && len(c.ToolCalls) == 0
}
