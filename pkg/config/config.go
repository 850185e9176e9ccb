// Package config handles loading and saving beadbridge configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/bb/config.yaml
//   - State:   ~/.local/state/bb/ (recent projects, view state cache)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport selects how the tracker is reached.
type Transport string

const (
	// TransportAuto prefers the daemon socket and falls back to CLI
	// invocation when no socket exists and auto-start is disabled.
	TransportAuto Transport = "auto"
	// TransportSocket talks to the bd daemon over its unix socket.
	TransportSocket Transport = "socket"
	// TransportCLI spawns the bd binary once per call.
	TransportCLI Transport = "cli"
)

// DiscoveryConfig controls auto-discovery of projects.
type DiscoveryConfig struct {
	ScanPaths []string `yaml:"scan_paths,omitempty"` // Directories to scan for .beads/
	MaxDepth  int      `yaml:"max_depth,omitempty"`  // How deep to scan (default 3)
}

// TrackerConfig controls how the bd backend is reached.
type TrackerConfig struct {
	// Path overrides the bd binary location. Empty means "bd" on $PATH.
	Path string `yaml:"path,omitempty"`
	// Transport selects socket, cli, or auto.
	Transport Transport `yaml:"transport,omitempty"`
	// AutoStartDaemon enables a single daemon start attempt when the
	// socket is unreachable. Nil means true.
	AutoStartDaemon *bool `yaml:"auto_start_daemon,omitempty"`
	// CallTimeout bounds every tracker call.
	CallTimeout time.Duration `yaml:"call_timeout,omitempty"`
}

// PollConfig controls mutation polling.
type PollConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"` // Base tick interval (default 1s)
	MaxDelay time.Duration `yaml:"max_delay,omitempty"` // Backoff ceiling (default 30s)
}

// Config is the top-level configuration for beadbridge.
type Config struct {
	// Actor is the identity recorded by the tracker for writes. Resolution
	// order is: this setting, then $USER / $USERNAME, then "unknown".
	Actor     string          `yaml:"actor,omitempty"`
	MaxItems  int             `yaml:"max_items,omitempty"` // Cap per view (default 500)
	Tracker   TrackerConfig   `yaml:"tracker,omitempty"`
	Poll      PollConfig      `yaml:"poll,omitempty"`
	Discovery DiscoveryConfig `yaml:"discovery,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxItems: 500,
		Tracker: TrackerConfig{
			Path:        "bd",
			Transport:   TransportAuto,
			CallTimeout: 5 * time.Second,
		},
		Poll: PollConfig{
			Interval: time.Second,
			MaxDelay: 30 * time.Second,
		},
		Discovery: DiscoveryConfig{
			MaxDepth: 3,
		},
	}
}

// AutoStart reports whether daemon auto-start is enabled (default true).
func (c Config) AutoStart() bool {
	if c.Tracker.AutoStartDaemon == nil {
		return true
	}
	return *c.Tracker.AutoStartDaemon
}

// ResolveActor returns the identity to record for write operations:
// the explicit setting, else $USER, else $USERNAME, else "unknown".
func (c Config) ResolveActor() string {
	if c.Actor != "" {
		return c.Actor
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	return "unknown"
}

// ConfigDir returns the XDG config directory for beadbridge.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "bb")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bb")
}

// StateDir returns the XDG state directory for beadbridge.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "bb")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "bb")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	// Expand ~ in scan paths
	for i := range cfg.Discovery.ScanPaths {
		cfg.Discovery.ScanPaths[i] = expandHome(cfg.Discovery.ScanPaths[i])
	}
	if cfg.Tracker.Path == "" {
		cfg.Tracker.Path = "bd"
	}
	if cfg.Tracker.Transport == "" {
		cfg.Tracker.Transport = TransportAuto
	}
	if cfg.Tracker.CallTimeout <= 0 {
		cfg.Tracker.CallTimeout = 5 * time.Second
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = time.Second
	}
	if cfg.Poll.MaxDelay <= 0 {
		cfg.Poll.MaxDelay = 30 * time.Second
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 500
	}
	if cfg.Discovery.MaxDepth <= 0 {
		cfg.Discovery.MaxDepth = 3
	}

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
