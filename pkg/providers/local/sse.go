package local

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/providers/openai"
)

const readSize = 4096

// lineBuffer splits a byte stream on '\n'. An incomplete trailing line is held
// and prefixed onto the next write.
type lineBuffer struct {
	partial []byte
}

// feed appends p and returns every complete line, without the newline and any
// trailing '\r'.
func (b *lineBuffer) feed(p []byte) []string {
	b.partial = append(b.partial, p...)

	var lines []string
	for {
		i := bytes.IndexByte(b.partial, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, strings.TrimSuffix(string(b.partial[:i]), "\r"))
		b.partial = b.partial[i+1:]
	}

	if len(b.partial) == 0 {
		b.partial = nil
	}
	return lines
}

// rest returns and clears the held partial line.
func (b *lineBuffer) rest() string {
	s := strings.TrimSuffix(string(b.partial), "\r")
	b.partial = nil
	return s
}

// eventResult is what one framed line means to the stream loop.
type eventResult int

const (
	eventSkip eventResult = iota
	eventChunk
	eventDone
)

// parseLine interprets one SSE line. Only "data: " lines carry events;
// payloads that are not valid JSON are discarded.
func parseLine(line string) (*openai.StreamItem, eventResult) {
	if !strings.HasPrefix(line, "data: ") {
		return nil, eventSkip
	}

	data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
	if data == "[DONE]" {
		return nil, eventDone
	}

	var item openai.StreamItem
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, eventSkip
	}
	return &item, eventChunk
}

// pump reads body incrementally and forwards one chunk per data event.
// parent is the caller's context; ctx additionally carries the call timeout.
func (p *Provider) pump(parent, ctx context.Context, timeout time.Duration, body io.Reader, out chan<- *providers.StreamChunk) {
	defer func() {
		if v := recover(); v != nil {
			providers.SendChunk(parent, out, &providers.StreamChunk{Error: p.HandleError(v)})
		}
	}()

	streamID := ""
	var model string
	var lines lineBuffer
	buf := make([]byte, readSize)

	// emit reports false when the stream must stop.
	emit := func(line string) bool {
		item, result := parseLine(line)
		switch result {
		case eventDone:
			return false
		case eventSkip:
			if strings.HasPrefix(line, "data: ") {
				p.Logger().Debug("discarding malformed stream line", "line", line)
			}
			return true
		}

		chunk := openai.ChunkFromStream(item)
		if chunk.ID == "" {
			if streamID == "" {
				streamID = "local-" + uuid.NewString()
			}
			chunk.ID = streamID
		}
		if chunk.Model == "" {
			chunk.Model = model
		} else {
			model = chunk.Model
		}
		return providers.SendChunk(parent, out, chunk)
	}

	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, line := range lines.feed(buf[:n]) {
				if !emit(line) {
					return
				}
			}
		}

		if errors.Is(err, io.EOF) {
			if rest := lines.rest(); rest != "" {
				emit(rest)
			}
			return
		}
		if err != nil {
			p.streamFailed(parent, ctx, timeout, out, streamID, err)
			return
		}
	}
}

// streamFailed reports a read failure as the final chunk. A consumer that
// cancelled gets nothing; an expired call timeout becomes a TimeoutError.
func (p *Provider) streamFailed(parent, ctx context.Context, timeout time.Duration, out chan<- *providers.StreamChunk, id string, err error) {
	if parent.Err() != nil {
		return
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = &providers.TimeoutError{Provider: p.Name(), Timeout: timeout, Cause: ctxErr}
	} else {
		err = &providers.StreamError{Provider: p.Name(), Message: "failed to read stream", Cause: err}
	}

	p.Logger().Warn("stream failed", "error", err)
	providers.SendChunk(parent, out, &providers.StreamChunk{ID: id, Error: err})
}
