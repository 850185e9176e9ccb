package model

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// ConnectionState describes the health of a project's tracker connection.
type ConnectionState string

const (
	ConnUnknown      ConnectionState = "unknown"
	ConnDisconnected ConnectionState = "disconnected"
	ConnConnected    ConnectionState = "connected"
)

// CanTransition reports whether moving from s to next is a valid state
// machine edge. A project with no backing client stays unknown; health
// checks move it to connected or disconnected, and connections flap between
// those two afterwards.
func (s ConnectionState) CanTransition(next ConnectionState) bool {
	if s == next {
		return true
	}
	switch s {
	case ConnUnknown:
		return next == ConnConnected || next == ConnDisconnected
	case ConnConnected:
		return next == ConnDisconnected
	case ConnDisconnected:
		return next == ConnConnected
	}
	return false
}

// Project is one discovered tracker-enabled directory. Projects are inert
// records; only the active project owns a live client and poller.
type Project struct {
	// ID is derived deterministically from the marker directory path. It is
	// stable across process restarts but not across path renames.
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	RootPath   string          `json:"root_path"`
	MarkerDir  string          `json:"marker_dir"`
	Connection ConnectionState `json:"connection"`
	// PID is the backing daemon's process id, when one is running.
	PID int `json:"pid,omitempty"`
}

// ProjectID derives the stable identifier for a marker directory path.
func ProjectID(markerDir string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(markerDir)))
	return hex.EncodeToString(sum[:])[:12]
}

// NewProject builds an inert Project record for a discovered marker dir.
func NewProject(markerDir string) Project {
	root := filepath.Dir(markerDir)
	return Project{
		ID:         ProjectID(markerDir),
		Name:       filepath.Base(root),
		RootPath:   root,
		MarkerDir:  markerDir,
		Connection: ConnUnknown,
	}
}
