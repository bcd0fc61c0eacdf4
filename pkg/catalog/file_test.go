package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/conduit/pkg/providers"
)

const sampleFile = `
models:
  - id: my-finetune
    provider: openai
    context_window: 16000
    max_output_tokens: 2048
    supports_tools: true
    cost_per_1k_input: 0.003
    cost_per_1k_output: 0.012
  - id: gpt-4o
    provider: openai
    context_window: 64000
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	writeFile(t, path, sampleFile)

	c := NewDefault()
	n, err := c.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 models loaded, got %d", n)
	}

	info, ok := c.Get("my-finetune")
	if !ok {
		t.Fatal("expected my-finetune to be registered")
	}
	if info.Provider != providers.KindOpenAI || info.ContextWindow != 16000 || !info.SupportsTools {
		t.Errorf("unexpected entry %+v", info)
	}
	if cost, ok := c.EstimateCost("my-finetune", 1000, 1000); !ok || !approxEqual(cost, 0.015) {
		t.Errorf("expected cost 0.015, got %v (%v)", cost, ok)
	}

	// The file entry replaces the built-in one entirely.
	gpt, _ := c.Get("gpt-4o")
	if gpt.ContextWindow != 64000 || gpt.CostPer1kInput != nil {
		t.Errorf("expected gpt-4o overwritten by file entry, got %+v", gpt)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "models: [", "failed to parse"},
		{"missing id", "models:\n  - provider: local\n    context_window: 10\n", "id is required"},
		{"unknown provider", "models:\n  - id: x\n    provider: azure\n    context_window: 10\n", "unknown provider"},
		{"no context window", "models:\n  - id: x\n    provider: local\n", "context_window"},
		{"negative price", "models:\n  - id: x\n    provider: local\n    context_window: 10\n    cost_per_1k_input: -1\n", "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			writeFile(t, path, tt.content)

			c := New()
			_, err := c.LoadFile(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if c.Len() != 0 {
				t.Errorf("expected nothing registered on error, got %d", c.Len())
			}
		})
	}

	if _, err := New().LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func fsnotifyEvent(name string) fsnotify.Event {
	return fsnotify.Event{Name: name, Op: fsnotify.Write}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	writeFile(t, path, "models: []\n")

	c := New()
	w, err := NewWatcher(c, path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	var reloads atomic.Int32
	w.OnReload = func(int, error) { reloads.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, sampleFile)

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := c.Get("my-finetune"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("catalog was not reloaded after file write")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if reloads.Load() == 0 {
		t.Error("expected OnReload to be called")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Watch returned error: %v", err)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	writeFile(t, path, "models: []\n")

	w, err := NewWatcher(New(), path, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Stop()

	if w.relevant(fsnotifyEvent(filepath.Join(dir, "other.yaml"))) {
		t.Error("expected events for other files to be ignored")
	}
	if !w.relevant(fsnotifyEvent(path)) {
		t.Error("expected writes to the catalog file to be relevant")
	}
}

func TestWatcher_StopWithoutWatch(t *testing.T) {
	w, err := NewWatcher(New(), filepath.Join(t.TempDir(), "models.yaml"), 0, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func TestDebouncer_CollapsesBursts(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)
	defer d.stop()

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.trigger(func() { calls.Add(1) })
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call after a burst, got %d", got)
	}
}
