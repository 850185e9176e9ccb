package workspace

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceDuration coalesces bursts of filesystem events into one
// rediscovery pass.
const DefaultDebounceDuration = 250 * time.Millisecond

// DefaultWatchPollInterval is the polling interval for fallback mode.
const DefaultWatchPollInterval = 2 * time.Second

// ErrWatcherStarted is returned when Start is called twice.
var ErrWatcherStarted = errors.New("marker watcher already started")

// WatcherOption configures a MarkerWatcher.
type WatcherOption func(*MarkerWatcher)

// WithDebounce sets the debounce duration.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *MarkerWatcher) {
		if d > 0 {
			w.debounceDuration = d
		}
	}
}

// WithWatchPollInterval sets the polling interval for fallback mode.
func WithWatchPollInterval(d time.Duration) WatcherOption {
	return func(w *MarkerWatcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithOnMarkerChange sets the callback fired (debounced) when a marker
// directory appears or vanishes under a watched root.
func WithOnMarkerChange(fn func()) WatcherOption {
	return func(w *MarkerWatcher) {
		if fn != nil {
			w.onChange = fn
		}
	}
}

// WithOnWatchError sets the error callback.
func WithOnWatchError(fn func(error)) WatcherOption {
	return func(w *MarkerWatcher) {
		if fn != nil {
			w.onError = fn
		}
	}
}

// WithForcePolling forces polling mode even when fsnotify is available.
func WithForcePolling(force bool) WatcherOption {
	return func(w *MarkerWatcher) { w.forcePoll = force }
}

// MarkerWatcher watches scan roots for marker directories appearing or
// vanishing, using fsnotify with a polling fallback, and fires a debounced
// rediscovery callback. It watches directories down to the discovery depth
// and picks up newly created subtrees as they appear.
type MarkerWatcher struct {
	roots            []string
	maxDepth         int
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func()
	onError          func(error)
	forcePoll        bool

	fsWatcher *fsnotify.Watcher
	debouncer *debouncer
	polling   bool

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	lastIDs map[string]bool
}

// NewMarkerWatcher builds a watcher over the given scan roots.
func NewMarkerWatcher(roots []string, maxDepth int, opts ...WatcherOption) *MarkerWatcher {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	w := &MarkerWatcher{
		roots:            roots,
		maxDepth:         maxDepth,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultWatchPollInterval,
		onChange:         func() {},
		onError:          func(error) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = newDebouncer(w.debounceDuration)
	return w
}

// Start begins watching. fsnotify failures fall back to polling the marker
// set on an interval.
func (w *MarkerWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrWatcherStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.polling = w.forcePoll || envBool("BB_FORCE_POLLING")

	if !w.polling {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.polling = true
		} else {
			w.fsWatcher = fsw
			for _, root := range w.roots {
				w.watchTree(root)
			}
			go func() {
				defer close(w.done)
				w.watchFsnotify(ctx, fsw)
			}()
		}
	}

	if w.polling {
		w.lastIDs = w.currentMarkerSet(ctx)
		go func() {
			defer close(w.done)
			w.watchPolling(ctx)
		}()
	}

	w.started = true
	return nil
}

// Stop halts the watcher and waits for its goroutine to exit, so the change
// callback never fires after Stop returns.
func (w *MarkerWatcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	cancel := w.cancel
	done := w.done
	fsw := w.fsWatcher
	w.fsWatcher = nil
	w.mu.Unlock()

	cancel()
	if fsw != nil {
		fsw.Close()
	}
	<-done
	w.debouncer.cancel()
}

// IsPolling reports whether the watcher runs in polling fallback mode.
func (w *MarkerWatcher) IsPolling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

// watchTree registers root and its subdirectories down to the discovery
// depth. Errors on individual directories are non-fatal.
func (w *MarkerWatcher) watchTree(root string) {
	root = filepath.Clean(root)
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root {
			if name == MarkerName {
				return filepath.SkipDir
			}
			if strings.HasPrefix(name, ".") || skipDirs[name] {
				return filepath.SkipDir
			}
			if depthBelow(root, path) >= w.maxDepth {
				return filepath.SkipDir
			}
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.onError(err)
		}
		return nil
	})
}

func (w *MarkerWatcher) watchFsnotify(ctx context.Context, fsw *fsnotify.Watcher) {
	events := fsw.Events
	errs := fsw.Errors

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			base := filepath.Base(event.Name)
			if base == MarkerName {
				w.debouncer.trigger(w.notify)
				continue
			}
			// A newly created directory may later grow a marker; watch it.
			if event.Op&fsnotify.Create != 0 && !strings.HasPrefix(base, ".") && !skipDirs[base] {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.mu.Lock()
					fsw := w.fsWatcher
					w.mu.Unlock()
					if fsw != nil {
						fsw.Add(event.Name)
					}
				}
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// watchPolling rescans the roots on an interval and fires when the set of
// marker directories differs from the last pass.
func (w *MarkerWatcher) watchPolling(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids := w.currentMarkerSet(ctx)
			w.mu.Lock()
			changed := !sameIDSet(w.lastIDs, ids)
			w.lastIDs = ids
			w.mu.Unlock()
			if changed {
				w.debouncer.trigger(w.notify)
			}
		}
	}
}

func (w *MarkerWatcher) currentMarkerSet(ctx context.Context) map[string]bool {
	projects, err := Scan(ctx, w.roots, w.maxDepth)
	if err != nil {
		return nil
	}
	ids := make(map[string]bool, len(projects))
	for _, p := range projects {
		ids[p.ID] = true
	}
	return ids
}

func sameIDSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b[id] {
			return false
		}
	}
	return true
}

func (w *MarkerWatcher) notify() {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if !started {
		return
	}
	w.onChange()
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// debouncer coalesces rapid triggers into one callback after a quiet period.
type debouncer struct {
	mu    sync.Mutex
	d     time.Duration
	timer *time.Timer
}

func newDebouncer(d time.Duration) *debouncer {
	return &debouncer{d: d}
}

func (db *debouncer) trigger(fn func()) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.timer != nil {
		db.timer.Stop()
	}
	db.timer = time.AfterFunc(db.d, fn)
}

func (db *debouncer) cancel() {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.timer != nil {
		db.timer.Stop()
		db.timer = nil
	}
}
