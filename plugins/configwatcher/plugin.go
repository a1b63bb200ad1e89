// Package configwatcher watches the syncdispatch TOML config file for
// changes and hot-reloads the replicator's runtime tunables, without
// requiring a restart to pick up a new retry budget or service URL.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/syncdispatch/internal/cliconfig"
	"github.com/bft-labs/syncdispatch/pkg/log"
)

// Config configures the watcher.
type Config struct {
	// Path is the TOML config file to watch. Required.
	Path string

	// DebounceDelay coalesces bursts of writes (editors often write a file
	// in several steps) into a single reload.
	DebounceDelay time.Duration
}

// DefaultConfig returns sensible defaults: a 200ms debounce.
func DefaultConfig(path string) Config {
	return Config{Path: path, DebounceDelay: 200 * time.Millisecond}
}

// ReloadFunc receives the tunables derived from a successfully parsed config
// file. It is called on the goroutine that calls Start for the initial load,
// and afterwards on the debounce timer's goroutine; implementations that
// touch shared state must synchronize themselves.
type ReloadFunc func(fc cliconfig.FileConfig)

// Watcher watches Config.Path and invokes a ReloadFunc on every debounced
// change, grounded on the same fsnotify watch-and-debounce loop walship uses
// to stream app.toml/config.toml edits, generalized here to reload live
// dispatch tunables instead of uploading a config snapshot.
type Watcher struct {
	path          string
	debounceDelay time.Duration
	onReload      ReloadFunc
	logger        log.Logger

	mu       sync.Mutex
	debounce *time.Timer
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a Watcher. logger defaults to a no-op logger if nil.
func New(cfg Config, onReload ReloadFunc, logger log.Logger) *Watcher {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 200 * time.Millisecond
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Watcher{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		onReload:      onReload,
		logger:        logger,
	}
}

// Start begins watching. It loads the file once synchronously before
// returning, so callers observe the on-disk config immediately, and watches
// for further changes in the background.
func (w *Watcher) Start(ctx context.Context) error {
	w.reload()

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return err
	}

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		cancel()
		return err
	}

	w.wg.Add(1)
	go w.watchLoop(watchCtx, watcher)

	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer w.wg.Done()
	defer watcher.Close()

	target := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.debounce != nil {
				w.debounce.Stop()
			}
			w.mu.Unlock()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounceReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) debounceReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	if !cliconfig.FileExists(w.path) {
		return
	}
	fc, err := cliconfig.LoadFileConfig(w.path)
	if err != nil {
		w.logger.Error("config watcher: reload failed", log.String("path", w.path), log.Err(err))
		return
	}
	w.logger.Info("config watcher: reloaded", log.String("path", w.path))
	w.onReload(fc)
}
