package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/syncdispatch/internal/cliconfig"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

func TestWatcher_LoadsInitialConfigOnStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`service_url = "http://initial.example.com"`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var mu sync.Mutex
	var got cliconfig.FileConfig
	calls := 0

	w := New(DefaultConfig(path), func(fc cliconfig.FileConfig) {
		mu.Lock()
		defer mu.Unlock()
		got = fc
		calls++
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected 1 reload call from Start, got %d", calls)
	}
	if got.ServiceURL != "http://initial.example.com" {
		t.Errorf("ServiceURL = %v, want http://initial.example.com", got.ServiceURL)
	}
}

func TestWatcher_ReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`service_url = "http://initial.example.com"`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var mu sync.Mutex
	var got cliconfig.FileConfig

	cfg := DefaultConfig(path)
	cfg.DebounceDelay = 10 * time.Millisecond

	w := New(cfg, func(fc cliconfig.FileConfig) {
		mu.Lock()
		defer mu.Unlock()
		got = fc
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`service_url = "http://updated.example.com"`), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got.ServiceURL == "http://updated.example.com"
	})
}

func TestWatcher_StartFailsWithoutParentDir(t *testing.T) {
	w := New(DefaultConfig("/nonexistent-dir-xyz/config.toml"), func(cliconfig.FileConfig) {}, nil)
	ctx := context.Background()
	if err := w.Start(ctx); err == nil {
		w.Stop()
		t.Fatal("expected Start to fail when the config directory does not exist")
	}
}
