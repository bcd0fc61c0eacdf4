package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	testhelpers "mercator-hq/conduit/internal/providers"
	"mercator-hq/conduit/pkg/catalog"
	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/telemetry/health"
)

// result captures one command execution.
type result struct {
	stdout string
	stderr string
	err    error
}

// execute runs the root command with args, feeding stdin when non-empty.
func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// writeConfig writes a config with one local provider pointed at baseURL,
// followed by extra YAML.
func writeConfig(t *testing.T, baseURL, extra string) string {
	t.Helper()

	content := fmt.Sprintf(`providers:
  local:
    base_url: %s
    max_retries: 1
telemetry:
  logging:
    level: error
%s`, baseURL, extra)

	path := filepath.Join(t.TempDir(), "conduit.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newChatServer(t *testing.T, content string) *testhelpers.MockServer {
	t.Helper()
	mock := testhelpers.NewMockServer()
	t.Cleanup(mock.Close)
	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		Body: testhelpers.MockOpenAIResponse(content, "llama3.1"),
	})
	return mock
}

func TestVersionCommand(t *testing.T) {
	res := execute(t, "", "version")
	if res.err != nil {
		t.Fatalf("version failed: %v", res.err)
	}
	if !strings.HasPrefix(res.stdout, "Conduit "+Version) {
		t.Errorf("unexpected output %q", res.stdout)
	}

	res = execute(t, "", "version", "-o", "json")
	var info versionInfo
	if err := json.Unmarshal([]byte(res.stdout), &info); err != nil {
		t.Fatalf("invalid JSON %q: %v", res.stdout, err)
	}
	if info.Version != Version || info.GoVersion == "" {
		t.Errorf("unexpected version info %+v", info)
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	res := execute(t, "", "version", "-o", "xml")
	if code := cli.ExitCode(res.err); code != cli.ExitConfig {
		t.Errorf("expected exit code %d, got %d (%v)", cli.ExitConfig, code, res.err)
	}
}

func TestModelsCatalog(t *testing.T) {
	res := execute(t, "", "models")
	if res.err != nil {
		t.Fatalf("models failed: %v", res.err)
	}
	for _, id := range []string{"gpt-4o", "claude-3-5-sonnet-20241022", "llama3.1"} {
		if !strings.Contains(res.stdout, id) {
			t.Errorf("expected %s in catalog listing:\n%s", id, res.stdout)
		}
	}

	res = execute(t, "", "models", "--provider", "anthropic", "-o", "json")
	if res.err != nil {
		t.Fatalf("models failed: %v", res.err)
	}
	var models []catalog.ModelInfo
	if err := json.Unmarshal([]byte(res.stdout), &models); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(models) == 0 {
		t.Fatal("expected anthropic models")
	}
	for _, m := range models {
		if m.Provider != "anthropic" {
			t.Errorf("unexpected provider %q for %s", m.Provider, m.ID)
		}
	}
}

func TestModelsCatalogFile(t *testing.T) {
	dir := t.TempDir()
	modelsPath := filepath.Join(dir, "models.yaml")
	err := os.WriteFile(modelsPath, []byte(`models:
  - id: team-finetune
    provider: local
    context_window: 8192
    cost_per_1k_input: 0.001
    cost_per_1k_output: 0.002
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	cfg := writeConfig(t, "http://localhost:11434", "catalog:\n  file: "+modelsPath+"\n")

	res := execute(t, "", "models", "--config", cfg, "--provider", "local")
	if res.err != nil {
		t.Fatalf("models failed: %v", res.err)
	}
	if !strings.Contains(res.stdout, "team-finetune") || !strings.Contains(res.stdout, "0.002") {
		t.Errorf("expected file entry in listing:\n%s", res.stdout)
	}
}

func TestModelsRemote(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/models", testhelpers.MockResponse{
		Body: testhelpers.MockModelList("llama3.1", "qwen2.5"),
	})

	res := execute(t, "", "models", "--remote", "--config", writeConfig(t, mock.URL(), ""))
	if res.err != nil {
		t.Fatalf("models --remote failed: %v", res.err)
	}
	if !strings.Contains(res.stdout, "qwen2.5") || !strings.Contains(res.stdout, "local") {
		t.Errorf("unexpected remote listing:\n%s", res.stdout)
	}
}

func TestComplete(t *testing.T) {
	mock := newChatServer(t, "Hello from local!")

	res := execute(t, "", "complete", "--config", writeConfig(t, mock.URL(), ""), "say", "hello")
	if res.err != nil {
		t.Fatalf("complete failed: %v", res.err)
	}
	if res.stdout != "Hello from local!\n" {
		t.Errorf("unexpected stdout %q", res.stdout)
	}
	if !strings.Contains(res.stderr, "[local/llama3.1] finish=stop tokens=30") {
		t.Errorf("expected usage line on stderr, got %q", res.stderr)
	}
}

func TestComplete_StdinAndJSON(t *testing.T) {
	mock := newChatServer(t, "pong")
	cfg := writeConfig(t, mock.URL(), "")

	res := execute(t, "ping from stdin\n", "complete", "--config", cfg,
		"--system", "be brief", "--temperature", "0.2", "-o", "json")
	if res.err != nil {
		t.Fatalf("complete failed: %v", res.err)
	}

	var out struct {
		Provider  string `json:"provider"`
		Content   string `json:"content"`
		LatencyMs int64  `json:"latency_ms"`
		Usage     struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", res.stdout, err)
	}
	if out.Provider != "local" || out.Content != "pong" || out.Usage.TotalTokens != 30 {
		t.Errorf("unexpected result %+v", out)
	}

	body, err := mock.LastRequestJSON()
	if err != nil {
		t.Fatal(err)
	}
	messages, _ := body["messages"].([]interface{})
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %v", body["messages"])
	}
	user, _ := messages[1].(map[string]interface{})
	if user["content"] != "ping from stdin" {
		t.Errorf("expected trimmed stdin prompt, got %v", user["content"])
	}
	if body["temperature"] != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", body["temperature"])
	}
	if _, ok := body["max_tokens"]; ok {
		t.Error("expected unset max_tokens to be omitted")
	}
}

func TestComplete_FromEnvironment(t *testing.T) {
	mock := newChatServer(t, "configured by env")
	t.Setenv("CONDUIT_LOCAL_BASE_URL", mock.URL())
	t.Setenv("CONDUIT_LOG_LEVEL", "error")

	res := execute(t, "", "complete", "hi")
	if res.err != nil {
		t.Fatalf("complete failed: %v", res.err)
	}
	if res.stdout != "configured by env\n" {
		t.Errorf("unexpected stdout %q", res.stdout)
	}
}

func TestComplete_Errors(t *testing.T) {
	mock := newChatServer(t, "unused")
	cfg := writeConfig(t, mock.URL(), "")

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  int
	}{
		{"empty prompt", "  \n", []string{"complete", "--config", cfg}, cli.ExitConfig},
		{"provider not configured", "", []string{"complete", "--config", cfg, "-p", "anthropic", "hi"}, cli.ExitConfig},
		{"model resolves to missing provider", "", []string{"complete", "--config", cfg, "-m", "claude-3-5-haiku-20241022", "hi"}, cli.ExitConfig},
		{"missing config file", "", []string{"complete", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "hi"}, cli.ExitConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execute(t, tt.stdin, tt.args...)
			if code := cli.ExitCode(res.err); code != tt.want {
				t.Errorf("expected exit code %d, got %d (%v)", tt.want, code, res.err)
			}
		})
	}

	if n := mock.GetRequestCount(); n != 0 {
		t.Errorf("expected no vendor requests, got %d", n)
	}
}

func TestComplete_AuthFailure(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/chat/completions", testhelpers.MockAuthError())

	res := execute(t, "", "complete", "--config", writeConfig(t, mock.URL(), ""), "hi")
	if code := cli.ExitCode(res.err); code != cli.ExitAuth {
		t.Errorf("expected exit code %d, got %d (%v)", cli.ExitAuth, code, res.err)
	}
	if n := mock.GetRequestCount(); n != 1 {
		t.Errorf("expected authentication failures not to be retried, got %d requests", n)
	}
}

func TestStream(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StreamChunks: []string{
			testhelpers.MockOpenAIStreamChunk("Hel", ""),
			testhelpers.MockOpenAIStreamChunk("lo", ""),
			testhelpers.MockOpenAIStreamChunk("", "stop"),
		},
	})
	cfg := writeConfig(t, mock.URL(), "")

	res := execute(t, "", "stream", "--config", cfg, "greet me")
	if res.err != nil {
		t.Fatalf("stream failed: %v", res.err)
	}
	if res.stdout != "Hello\n" {
		t.Errorf("unexpected stdout %q", res.stdout)
	}
	if !strings.Contains(res.stderr, "finish=stop") {
		t.Errorf("expected summary on stderr, got %q", res.stderr)
	}

	res = execute(t, "", "stream", "--config", cfg, "-o", "json", "greet me")
	if res.err != nil {
		t.Fatalf("stream failed: %v", res.err)
	}
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	var content strings.Builder
	for _, line := range lines {
		var ev struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		content.WriteString(ev.Content)
	}
	if content.String() != "Hello" {
		t.Errorf("expected chunks to spell Hello, got %q", content.String())
	}
}

func TestValidate(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/models", testhelpers.MockResponse{Body: testhelpers.MockModelList("llama3.1")})
	cfg := writeConfig(t, mock.URL(), "")

	res := execute(t, "", "validate", "--config", cfg, "--offline")
	if res.err != nil {
		t.Fatalf("validate --offline failed: %v", res.err)
	}
	if !strings.Contains(res.stdout, "Configuration OK") || mock.GetRequestCount() != 0 {
		t.Errorf("unexpected offline validation: %q (%d requests)", res.stdout, mock.GetRequestCount())
	}

	res = execute(t, "", "validate", "--config", cfg)
	if res.err != nil {
		t.Fatalf("validate failed: %v", res.err)
	}
	if !strings.Contains(res.stdout, "ok") {
		t.Errorf("expected accepted credentials, got %q", res.stdout)
	}

	mock.SetResponse("/v1/models", testhelpers.MockAuthError())
	res = execute(t, "", "validate", "--config", cfg, "-o", "json")
	if res.err == nil || cli.ExitCode(res.err) != cli.ExitFailure {
		t.Fatalf("expected rejected credentials to fail with exit 1, got %v", res.err)
	}
	var report validationReport
	if err := json.Unmarshal([]byte(res.stdout), &report); err != nil {
		t.Fatalf("invalid JSON %q: %v", res.stdout, err)
	}
	if ok, present := report.Credentials["local"]; !present || ok {
		t.Errorf("expected local rejected, got %v", report.Credentials)
	}
}

func TestValidate_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("providers:\n  mistral:\n    api_key: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := execute(t, "", "validate", "--config", path, "--offline")
	if code := cli.ExitCode(res.err); code != cli.ExitConfig {
		t.Errorf("expected exit code %d, got %d (%v)", cli.ExitConfig, code, res.err)
	}
	if res.err != nil && !strings.Contains(res.err.Error(), "providers.mistral") {
		t.Errorf("expected the offending field in the error, got %v", res.err)
	}
}

func TestUsageLedger(t *testing.T) {
	mock := newChatServer(t, "counted")
	dbPath := filepath.Join(t.TempDir(), "usage.db")
	cfg := writeConfig(t, mock.URL(), fmt.Sprintf(`usage:
  enabled: true
  backend: sqlite
  path: %s
`, dbPath))

	for i := 0; i < 2; i++ {
		if res := execute(t, "", "complete", "--config", cfg, "count me"); res.err != nil {
			t.Fatalf("complete failed: %v", res.err)
		}
	}

	res := execute(t, "", "usage", "--config", cfg, "--records", "1", "-o", "json")
	if res.err != nil {
		t.Fatalf("usage failed: %v", res.err)
	}
	var report struct {
		Requests    int `json:"requests"`
		TotalTokens int `json:"total_tokens"`
		ByModel     []struct {
			Provider string `json:"provider"`
			Model    string `json:"model"`
		} `json:"by_model"`
		Records []struct {
			Model string `json:"model"`
		} `json:"records"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &report); err != nil {
		t.Fatalf("invalid JSON %q: %v", res.stdout, err)
	}
	if report.Requests != 2 || report.TotalTokens != 60 {
		t.Errorf("expected 2 requests and 60 tokens, got %+v", report)
	}
	if len(report.ByModel) != 1 || report.ByModel[0].Provider != "local" || report.ByModel[0].Model != "llama3.1" {
		t.Errorf("unexpected per-model totals %+v", report.ByModel)
	}
	if len(report.Records) != 1 {
		t.Errorf("expected 1 record, got %d", len(report.Records))
	}

	res = execute(t, "", "usage", "--config", cfg)
	if res.err != nil || !strings.Contains(res.stdout, "requests: 2") {
		t.Errorf("unexpected text summary %q (%v)", res.stdout, res.err)
	}
}

func TestUsageDisabled(t *testing.T) {
	res := execute(t, "", "usage", "--config", writeConfig(t, "http://localhost:11434", ""))
	if code := cli.ExitCode(res.err); code != cli.ExitConfig {
		t.Errorf("expected exit code %d, got %d (%v)", cli.ExitConfig, code, res.err)
	}
}

func TestMonitorMux(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/models", testhelpers.MockResponse{Body: testhelpers.MockModelList("llama3.1")})

	g := &globalOptions{cfgFile: writeConfig(t, mock.URL(), "  metrics:\n    enabled: true\n")}
	cfg, err := g.loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	cmd := newRootCmd()
	cmd.SetErr(io.Discard)
	a, err := g.setupWith(cmd, cfg, true)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	monitor := health.NewMonitor(a.dispatcher, a.metrics, cfg.Telemetry.Health)
	monitor.Probe(context.Background())

	server := httptest.NewServer(newMonitorMux(a, monitor))
	defer server.Close()

	resp, err := http.Get(server.URL + "/ready")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected /ready 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + cfg.Telemetry.Metrics.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `conduit_llm_provider_health{provider="local"} 1`) {
		t.Errorf("expected provider health gauge in metrics output:\n%s", body)
	}
}
