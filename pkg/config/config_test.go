package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFrom_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Tracker.Path != "bd" {
		t.Errorf("default tracker path = %q, want bd", cfg.Tracker.Path)
	}
	if cfg.Poll.Interval != time.Second {
		t.Errorf("default poll interval = %v, want 1s", cfg.Poll.Interval)
	}
	if !cfg.AutoStart() {
		t.Error("auto-start should default to true")
	}
}

func TestLoadFrom_ParsesAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
actor: robot-7
tracker:
  path: /opt/beads/bd
  transport: socket
  auto_start_daemon: false
poll:
  interval: 250ms
discovery:
  scan_paths:
    - /srv/repos
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Actor != "robot-7" {
		t.Errorf("actor = %q", cfg.Actor)
	}
	if cfg.Tracker.Path != "/opt/beads/bd" {
		t.Errorf("tracker path = %q", cfg.Tracker.Path)
	}
	if cfg.Tracker.Transport != TransportSocket {
		t.Errorf("transport = %q", cfg.Tracker.Transport)
	}
	if cfg.AutoStart() {
		t.Error("auto-start should be disabled")
	}
	if cfg.Poll.Interval != 250*time.Millisecond {
		t.Errorf("poll interval = %v", cfg.Poll.Interval)
	}
	// Unspecified fields keep their defaults.
	if cfg.Poll.MaxDelay != 30*time.Second {
		t.Errorf("poll max delay = %v, want 30s", cfg.Poll.MaxDelay)
	}
	if cfg.MaxItems != 500 {
		t.Errorf("max items = %d, want 500", cfg.MaxItems)
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Actor = "alice"
	cfg.Discovery.ScanPaths = []string{"/srv/work"}

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got.Actor != "alice" {
		t.Errorf("actor = %q", got.Actor)
	}
	if len(got.Discovery.ScanPaths) != 1 || got.Discovery.ScanPaths[0] != "/srv/work" {
		t.Errorf("scan paths = %v", got.Discovery.ScanPaths)
	}
}

func TestResolveActor_Order(t *testing.T) {
	t.Setenv("USER", "")
	t.Setenv("USERNAME", "")

	cfg := Config{}
	if got := cfg.ResolveActor(); got != "unknown" {
		t.Errorf("no identity: actor = %q, want unknown", got)
	}

	t.Setenv("USERNAME", "winuser")
	if got := cfg.ResolveActor(); got != "winuser" {
		t.Errorf("USERNAME fallback: actor = %q", got)
	}

	t.Setenv("USER", "nixuser")
	if got := cfg.ResolveActor(); got != "nixuser" {
		t.Errorf("USER beats USERNAME: actor = %q", got)
	}

	cfg.Actor = "explicit"
	if got := cfg.ResolveActor(); got != "explicit" {
		t.Errorf("explicit setting wins: actor = %q", got)
	}
}
