package anthropic

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"mercator-hq/conduit/pkg/providers"
)

// streamEvent is the union of the messages API SSE event payloads.
type streamEvent struct {
	Type string `json:"type"`

	// message_start
	Message *MessagesResponse `json:"message,omitempty"`

	// content_block_start, content_block_delta, content_block_stop
	Index        int           `json:"index"`
	ContentBlock *ContentBlock `json:"content_block,omitempty"`

	// content_block_delta and message_delta share the "delta" key
	Delta *eventDelta `json:"delta,omitempty"`

	// message_delta
	Usage *Usage `json:"usage,omitempty"`

	// error
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type eventDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// messageStream parses a messages API event stream and emits events to
// registered handlers: one text event per text delta, then exactly one
// terminal event, either the accumulated message or an error.
//
// Handlers run on the stream's own goroutine and must not block.
type messageStream struct {
	provider string
	body     io.ReadCloser
	logger   *slog.Logger

	onText    func(text string)
	onMessage func(msg *MessagesResponse)
	onError   func(err error)

	// accumulated state; touched only by the emitter goroutine
	message  MessagesResponse
	partials map[int]*strings.Builder
}

func newMessageStream(provider string, body io.ReadCloser, logger *slog.Logger) *messageStream {
	return &messageStream{
		provider: provider,
		body:     body,
		logger:   logger,
		partials: make(map[int]*strings.Builder),
	}
}

// OnText registers the handler for text deltas.
func (s *messageStream) OnText(fn func(text string)) { s.onText = fn }

// OnMessage registers the handler for the final accumulated message.
func (s *messageStream) OnMessage(fn func(msg *MessagesResponse)) { s.onMessage = fn }

// OnError registers the handler for a failed stream.
func (s *messageStream) OnError(fn func(err error)) { s.onError = fn }

// ID returns the message id seen so far. Call only from a handler.
func (s *messageStream) ID() string { return s.message.ID }

// Model returns the model seen so far. Call only from a handler.
func (s *messageStream) Model() string { return s.message.Model }

// Close aborts the underlying read.
func (s *messageStream) Close() error {
	return s.body.Close()
}

// Start runs the emitter on a new goroutine.
func (s *messageStream) Start() {
	go s.run()
}

func (s *messageStream) run() {
	defer func() {
		if v := recover(); v != nil {
			err, ok := v.(error)
			if !ok {
				err = &providers.PanicError{Provider: s.provider, Value: v}
			}
			s.fail(err)
		}
	}()

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if data.Len() == 0 {
				eventName = ""
				continue
			}
			done, err := s.dispatch(eventName, data.String())
			eventName = ""
			data.Reset()
			if err != nil {
				s.fail(err)
				return
			}
			if done {
				return
			}
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := scanner.Err(); err != nil {
		s.fail(&providers.StreamError{Provider: s.provider, Message: "failed to read stream", Cause: err})
		return
	}

	// A trailing event without a blank line.
	if data.Len() > 0 {
		done, err := s.dispatch(eventName, data.String())
		if err != nil {
			s.fail(err)
			return
		}
		if done {
			return
		}
	}

	s.fail(&providers.StreamError{Provider: s.provider, Message: "stream ended before message_stop"})
}

// dispatch applies one event. It reports true once the terminal event fired.
func (s *messageStream) dispatch(name, data string) (bool, error) {
	var ev streamEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return false, &providers.ParseError{
			Provider:    s.provider,
			RawResponse: data,
			Cause:       fmt.Errorf("failed to parse stream event: %w", err),
		}
	}
	if ev.Type == "" {
		ev.Type = name
	}

	switch ev.Type {
	case "message_start":
		if ev.Message != nil {
			s.message.ID = ev.Message.ID
			s.message.Model = ev.Message.Model
			s.message.Role = ev.Message.Role
			s.message.Usage = ev.Message.Usage
		}

	case "content_block_start":
		block := ContentBlock{Type: "text"}
		if ev.ContentBlock != nil {
			block = *ev.ContentBlock
		}
		for len(s.message.Content) <= ev.Index {
			s.message.Content = append(s.message.Content, ContentBlock{})
		}
		s.message.Content[ev.Index] = block

	case "content_block_delta":
		if ev.Delta == nil {
			return false, nil
		}
		for len(s.message.Content) <= ev.Index {
			s.message.Content = append(s.message.Content, ContentBlock{Type: "text"})
		}
		switch ev.Delta.Type {
		case "text_delta":
			s.message.Content[ev.Index].Text += ev.Delta.Text
			if ev.Delta.Text != "" && s.onText != nil {
				s.onText(ev.Delta.Text)
			}
		case "input_json_delta":
			b, ok := s.partials[ev.Index]
			if !ok {
				b = &strings.Builder{}
				s.partials[ev.Index] = b
			}
			b.WriteString(ev.Delta.PartialJSON)
		}

	case "content_block_stop":
		if b, ok := s.partials[ev.Index]; ok && ev.Index < len(s.message.Content) {
			input := b.String()
			if strings.TrimSpace(input) == "" {
				input = "{}"
			}
			if !json.Valid([]byte(input)) {
				return false, &providers.ParseError{
					Provider:    s.provider,
					RawResponse: input,
					Cause:       fmt.Errorf("tool_use block %d has invalid JSON input", ev.Index),
				}
			}
			s.message.Content[ev.Index].Input = json.RawMessage(input)
			delete(s.partials, ev.Index)
		}

	case "message_delta":
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			s.message.StopReason = ev.Delta.StopReason
		}
		if ev.Usage != nil {
			s.message.Usage.OutputTokens = ev.Usage.OutputTokens
			if ev.Usage.InputTokens > 0 {
				s.message.Usage.InputTokens = ev.Usage.InputTokens
			}
		}

	case "message_stop":
		s.message.Type = "message"
		if s.onMessage != nil {
			final := s.message
			s.onMessage(&final)
		}
		return true, nil

	case "error":
		msg := "stream error event"
		if ev.Error != nil {
			msg = ev.Error.Type + ": " + ev.Error.Message
		}
		return false, &providers.StreamError{Provider: s.provider, Message: msg}

	case "ping":

	default:
		s.logger.Debug("ignoring unknown stream event", "event", ev.Type)
	}

	return false, nil
}

func (s *messageStream) fail(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

// finalChunk converts the accumulated message into the terminal chunk. Tool
// calls are carried as complete fragments so collectors can rebuild them.
func finalChunk(msg *MessagesResponse) *providers.StreamChunk {
	usage := providers.NewTokenUsage(msg.Usage.InputTokens, msg.Usage.OutputTokens)
	chunk := &providers.StreamChunk{
		ID:           msg.ID,
		Model:        msg.Model,
		FinishReason: normalizeStopReason(msg.StopReason),
		Usage:        &usage,
	}

	index := 0
	for _, block := range msg.Content {
		if block.Type != "tool_use" {
			continue
		}
		chunk.ToolCalls = append(chunk.ToolCalls, providers.ToolCallDelta{
			Index: index,
			ID:    block.ID,
			Type:  providers.ToolTypeFunction,
			Function: providers.FunctionCall{
				Name:      block.Name,
				Arguments: compactJSON(block.Input),
			},
		})
		index++
	}
	return chunk
}
