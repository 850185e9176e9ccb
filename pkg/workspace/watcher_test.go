package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitForChange(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func newTestWatcher(t *testing.T, root string, opts ...WatcherOption) (*MarkerWatcher, <-chan struct{}) {
	t.Helper()
	ch := make(chan struct{}, 1)
	opts = append(opts,
		WithDebounce(20*time.Millisecond),
		WithOnMarkerChange(func() {
			select {
			case ch <- struct{}{}:
			default:
			}
		}),
	)
	w := NewMarkerWatcher([]string{root}, 3, opts...)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, ch
}

func TestMarkerWatcher_FiresOnMarkerCreation(t *testing.T) {
	root := t.TempDir()
	_, ch := newTestWatcher(t, root)

	// Give the watcher a moment to register before mutating the tree.
	time.Sleep(50 * time.Millisecond)
	mkMarker(t, root)

	waitForChange(t, ch, "marker creation")
}

func TestMarkerWatcher_FiresOnMarkerRemoval(t *testing.T) {
	root := t.TempDir()
	marker := mkMarker(t, root)
	_, ch := newTestWatcher(t, root)

	time.Sleep(50 * time.Millisecond)
	if err := os.RemoveAll(marker); err != nil {
		t.Fatal(err)
	}

	waitForChange(t, ch, "marker removal")
}

func TestMarkerWatcher_PollingModeDetectsNewMarker(t *testing.T) {
	root := t.TempDir()
	w, ch := newTestWatcher(t, root,
		WithForcePolling(true),
		WithWatchPollInterval(20*time.Millisecond),
	)
	if !w.IsPolling() {
		t.Fatal("expected polling fallback mode")
	}

	mkMarker(t, filepath.Join(root, "svc"))

	waitForChange(t, ch, "marker creation in polling mode")
}

func TestMarkerWatcher_StartTwiceFails(t *testing.T) {
	w, _ := newTestWatcher(t, t.TempDir())
	if err := w.Start(); err != ErrWatcherStarted {
		t.Errorf("second Start = %v, want ErrWatcherStarted", err)
	}
}

func TestMarkerWatcher_StopPreventsCallbacks(t *testing.T) {
	root := t.TempDir()
	w, ch := newTestWatcher(t, root)
	w.Stop()

	mkMarker(t, root)
	select {
	case <-ch:
		t.Error("callback fired after Stop")
	case <-time.After(200 * time.Millisecond):
	}
}
