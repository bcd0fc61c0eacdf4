package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer is a mock vendor HTTP server for testing provider adapters.
// It serves canned responses per path and records every request body.
type MockServer struct {
	server       *httptest.Server
	responses    map[string]MockResponse
	sequences    map[string][]MockResponse
	requests     []RecordedRequest
	requestCount int
	mu           sync.Mutex
}

// MockResponse defines a mock response configuration.
type MockResponse struct {
	StatusCode int
	Body       interface{}
	Delay      time.Duration
	Headers    map[string]string

	// StreamChunks are sent as "data: <chunk>\n\n" followed by [DONE].
	StreamChunks []string

	// RawStream, when set, is written verbatim in order with a flush after each
	// element. It takes precedence over StreamChunks.
	RawStream []string
}

// RecordedRequest is a request seen by the mock server.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// NewMockServer creates a new mock server.
func NewMockServer() *MockServer {
	ms := &MockServer{
		responses: make(map[string]MockResponse),
		sequences: make(map[string][]MockResponse),
	}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// URL returns the mock server's base URL.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Close closes the mock server.
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetResponse sets the response served for path.
func (ms *MockServer) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.responses[path] = response
}

// SetSequence queues responses for path. Each request consumes one; once the
// queue is empty the response set with SetResponse (if any) is served.
func (ms *MockServer) SetSequence(path string, responses ...MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.sequences[path] = append([]MockResponse(nil), responses...)
}

// GetRequestCount returns the number of requests received.
func (ms *MockServer) GetRequestCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return ms.requestCount
}

// Requests returns a copy of all recorded requests.
func (ms *MockServer) Requests() []RecordedRequest {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return append([]RecordedRequest(nil), ms.requests...)
}

// LastRequestJSON decodes the body of the most recent request into a map.
func (ms *MockServer) LastRequestJSON() (map[string]interface{}, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if len(ms.requests) == 0 {
		return nil, fmt.Errorf("no requests recorded")
	}
	var body map[string]interface{}
	if err := json.Unmarshal(ms.requests[len(ms.requests)-1].Body, &body); err != nil {
		return nil, fmt.Errorf("failed to decode request body: %w", err)
	}
	return body, nil
}

func (ms *MockServer) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	ms.mu.Lock()
	ms.requestCount++
	ms.requests = append(ms.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})

	response, ok := ms.responses[r.URL.Path]
	if queue := ms.sequences[r.URL.Path]; len(queue) > 0 {
		response, ok = queue[0], true
		ms.sequences[r.URL.Path] = queue[1:]
	}
	ms.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		select {
		case <-time.After(response.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	if len(response.RawStream) > 0 || len(response.StreamChunks) > 0 {
		ms.handleStream(w, r, response)
		return
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	if response.Body != nil {
		switch v := response.Body.(type) {
		case string:
			_, _ = w.Write([]byte(v))
		case []byte:
			_, _ = w.Write(v)
		default:
			_ = json.NewEncoder(w).Encode(response.Body)
		}
	}
}

// handleStream writes a Server-Sent Events body.
func (ms *MockServer) handleStream(w http.ResponseWriter, r *http.Request, response MockResponse) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)

	if len(response.RawStream) > 0 {
		for _, part := range response.RawStream {
			if r.Context().Err() != nil {
				return
			}
			_, _ = io.WriteString(w, part)
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
		return
	}

	for _, chunk := range response.StreamChunks {
		if r.Context().Err() != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()
		time.Sleep(5 * time.Millisecond)
	}

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// MockOpenAIResponse creates a chat completion response body.
func MockOpenAIResponse(content string, model string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-123",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     10,
			"completion_tokens": 20,
			"total_tokens":      30,
		},
	}
}

// MockOpenAIToolCallResponse creates a chat completion response whose first
// choice requests one tool call.
func MockOpenAIToolCallResponse(model, callID, name, arguments string) map[string]interface{} {
	resp := MockOpenAIResponse("", model)
	resp["choices"] = []map[string]interface{}{
		{
			"index": 0,
			"message": map[string]interface{}{
				"role":    "assistant",
				"content": nil,
				"tool_calls": []map[string]interface{}{
					{
						"id":   callID,
						"type": "function",
						"function": map[string]interface{}{
							"name":      name,
							"arguments": arguments,
						},
					},
				},
			},
			"finish_reason": "tool_calls",
		},
	}
	return resp
}

// MockOpenAIStreamChunk creates a streaming item with a content delta.
// An empty finishReason is encoded as null.
func MockOpenAIStreamChunk(delta string, finishReason string) string {
	var reason interface{}
	if finishReason != "" {
		reason = finishReason
	}
	chunk := map[string]interface{}{
		"id":      "chatcmpl-123",
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   "gpt-4o",
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"delta": map[string]interface{}{
					"content": delta,
				},
				"finish_reason": reason,
			},
		},
	}

	data, _ := json.Marshal(chunk)
	return string(data)
}

// MockOpenAIToolCallChunk creates a streaming item carrying one tool call fragment.
func MockOpenAIToolCallChunk(index int, id, name, arguments string) string {
	fn := map[string]interface{}{"arguments": arguments}
	if name != "" {
		fn["name"] = name
	}
	call := map[string]interface{}{
		"index":    index,
		"function": fn,
	}
	if id != "" {
		call["id"] = id
		call["type"] = "function"
	}
	chunk := map[string]interface{}{
		"id":    "chatcmpl-123",
		"model": "gpt-4o",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"delta":         map[string]interface{}{"tool_calls": []interface{}{call}},
				"finish_reason": nil,
			},
		},
	}

	data, _ := json.Marshal(chunk)
	return string(data)
}

// MockOpenAIUsageChunk creates the trailing usage-only streaming item.
func MockOpenAIUsageChunk(prompt, completion int) string {
	chunk := map[string]interface{}{
		"id":      "chatcmpl-123",
		"model":   "gpt-4o",
		"choices": []interface{}{},
		"usage": map[string]interface{}{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      prompt + completion,
		},
	}

	data, _ := json.Marshal(chunk)
	return string(data)
}

// MockModelList creates a model listing body with the given ids.
func MockModelList(ids ...string) map[string]interface{} {
	data := make([]map[string]interface{}, len(ids))
	for i, id := range ids {
		data[i] = map[string]interface{}{"id": id, "object": "model"}
	}
	return map[string]interface{}{"object": "list", "data": data}
}

// MockAnthropicResponse creates a messages API response body.
func MockAnthropicResponse(content string, model string) map[string]interface{} {
	return map[string]interface{}{
		"id":   "msg_123",
		"type": "message",
		"role": "assistant",
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": content,
			},
		},
		"model":       model,
		"stop_reason": "end_turn",
		"usage": map[string]interface{}{
			"input_tokens":  10,
			"output_tokens": 20,
		},
	}
}

// MockAnthropicEvent formats one named SSE event.
func MockAnthropicEvent(eventType string, data interface{}) string {
	payload, _ := json.Marshal(data)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload)
}

// MockAnthropicTextStream builds a complete event stream that emits the given
// text deltas and ends with stopReason.
func MockAnthropicTextStream(model string, stopReason string, deltas ...string) []string {
	events := []string{
		MockAnthropicEvent("message_start", map[string]interface{}{
			"type": "message_start",
			"message": map[string]interface{}{
				"id":      "msg_stream",
				"type":    "message",
				"role":    "assistant",
				"model":   model,
				"content": []interface{}{},
				"usage":   map[string]interface{}{"input_tokens": 12, "output_tokens": 1},
			},
		}),
		MockAnthropicEvent("content_block_start", map[string]interface{}{
			"type":          "content_block_start",
			"index":         0,
			"content_block": map[string]interface{}{"type": "text", "text": ""},
		}),
	}
	for _, d := range deltas {
		events = append(events, MockAnthropicEvent("content_block_delta", map[string]interface{}{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]interface{}{"type": "text_delta", "text": d},
		}))
	}
	events = append(events,
		MockAnthropicEvent("content_block_stop", map[string]interface{}{"type": "content_block_stop", "index": 0}),
		MockAnthropicEvent("message_delta", map[string]interface{}{
			"type":  "message_delta",
			"delta": map[string]interface{}{"stop_reason": stopReason},
			"usage": map[string]interface{}{"output_tokens": 7},
		}),
		MockAnthropicEvent("message_stop", map[string]interface{}{"type": "message_stop"}),
	)
	return events
}

// MockErrorResponse creates a vendor-style error response.
func MockErrorResponse(statusCode int, message string) MockResponse {
	body := map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "server_error",
			"code":    statusCode,
		},
	}

	return MockResponse{
		StatusCode: statusCode,
		Body:       body,
	}
}

// MockAuthError creates a 401 authentication error response.
func MockAuthError() MockResponse {
	return MockErrorResponse(http.StatusUnauthorized, "Invalid API key")
}

// MockRateLimitError creates a 429 rate limit error response.
func MockRateLimitError(retryAfter int) MockResponse {
	response := MockErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded")
	response.Headers = map[string]string{
		"Retry-After": fmt.Sprintf("%d", retryAfter),
	}
	return response
}

// MockServerError creates a 500 internal server error response.
func MockServerError() MockResponse {
	return MockErrorResponse(http.StatusInternalServerError, "Internal server error")
}

// ExpectHeader checks if a request has a specific header value.
func ExpectHeader(r RecordedRequest, key, value string) error {
	actual := r.Header.Get(key)
	if !strings.Contains(actual, value) {
		return fmt.Errorf("header %q mismatch: expected %q, got %q", key, value, actual)
	}
	return nil
}
