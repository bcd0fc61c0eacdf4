package providers

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ToolCallAccumulator merges streamed ToolCallDelta fragments into complete
// tool calls. Fragments are keyed by Index, or by ID when an already seen ID
// reappears under another index. The first non-empty ID, Type and Name win and
// argument text is concatenated in arrival order.
type ToolCallAccumulator struct {
	calls map[int]*pendingToolCall
	byID  map[string]*pendingToolCall
}

type pendingToolCall struct {
	id   string
	typ  string
	name string
	args strings.Builder
}

// NewToolCallAccumulator returns an empty accumulator.
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{
		calls: make(map[int]*pendingToolCall),
		byID:  make(map[string]*pendingToolCall),
	}
}

// Add folds one chunk's fragments into the accumulator.
func (a *ToolCallAccumulator) Add(deltas []ToolCallDelta) {
	for _, d := range deltas {
		call, ok := a.byID[d.ID]
		if !ok {
			call, ok = a.calls[d.Index]
			if !ok {
				call = &pendingToolCall{}
				a.calls[d.Index] = call
			}
		}
		if call.id == "" && d.ID != "" {
			call.id = d.ID
			a.byID[d.ID] = call
		}
		if call.typ == "" {
			call.typ = d.Type
		}
		if call.name == "" {
			call.name = d.Function.Name
		}
		call.args.WriteString(d.Function.Arguments)
	}
}

// Len returns the number of distinct tool calls seen.
func (a *ToolCallAccumulator) Len() int {
	return len(a.calls)
}

// ToolCalls returns the merged calls ordered by index. Empty argument text
// becomes "{}". A *ParseError is returned if any call's arguments are not
// valid JSON.
func (a *ToolCallAccumulator) ToolCalls() ([]ToolCall, error) {
	if len(a.calls) == 0 {
		return nil, nil
	}

	indexes := make([]int, 0, len(a.calls))
	for idx := range a.calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	result := make([]ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		call := a.calls[idx]
		args := call.args.String()
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			return nil, &ParseError{
				RawResponse: args,
				Cause:       fmt.Errorf("tool call %d (%s) has invalid JSON arguments", idx, call.name),
			}
		}
		typ := call.typ
		if typ == "" {
			typ = ToolTypeFunction
		}
		result = append(result, ToolCall{
			ID:       call.id,
			Type:     typ,
			Function: FunctionCall{Name: call.name, Arguments: args},
		})
	}
	return result, nil
}

// Collect drains a stream into a CompletionResponse. Content is concatenated,
// tool call fragments are merged, and the last finish reason and usage seen
// are kept. The first chunk error stops collection and is returned together
// with what was gathered so far.
func Collect(chunks <-chan *StreamChunk) (*CompletionResponse, error) {
	resp := &CompletionResponse{}
	acc := NewToolCallAccumulator()
	var content strings.Builder

	for chunk := range chunks {
		if resp.ID == "" {
			resp.ID = chunk.ID
		}
		if resp.Model == "" {
			resp.Model = chunk.Model
		}
		if chunk.Error != nil {
			resp.Content = content.String()
			resp.FinishReason = FinishReasonError
			// Drain so the producer can finish.
			for range chunks {
			}
			return resp, chunk.Error
		}
		content.WriteString(chunk.Content)
		acc.Add(chunk.ToolCalls)
		if chunk.FinishReason != "" {
			resp.FinishReason = chunk.FinishReason
		}
		if chunk.Usage != nil {
			resp.Usage = *chunk.Usage
		}
	}

	resp.Content = content.String()
	calls, err := acc.ToolCalls()
	if err != nil {
		return resp, err
	}
	resp.ToolCalls = calls
	return resp, nil
}
