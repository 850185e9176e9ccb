// Package tracker is the single point of contact with one bd backend
// instance. It exposes one abstract Client over two transports: a
// persistent line-delimited-JSON session on the daemon's unix socket
// (canonical), and one-shot `bd --json` CLI invocation (fallback).
//
// Every operation returns either a typed payload or one of three
// distinguishable failures: *ConnectionError (transport unreachable —
// retryable with backoff), *OperationError (backend rejected the request —
// never retried automatically), *ProtocolError (unparseable response).
// The client holds no cross-call cache and never retries internally.
package tracker

import (
	"context"

	"github.com/vanderheijden86/beadbridge/pkg/model"
)

// ListFilter narrows a List call. Zero value means everything.
type ListFilter struct {
	Status   model.Status
	Priority *model.Priority
	Assignee string
	Labels   []string
	IDs      []string
	Limit    int
	// UpdatedAfter filters to issues touched after this cursor
	// (milliseconds since epoch). Used by the CLI transport to emulate
	// mutation polling.
	UpdatedAfter int64
}

// CreateFields describes a new issue. Title is required; the tracker
// assigns the id.
type CreateFields struct {
	Title        string
	Description  string
	IssueType    string
	Priority     model.Priority
	Notes        string
	Assignee     string
	Labels       []string
	Dependencies []string
}

// UpdateFields is a partial update; nil fields are left untouched.
type UpdateFields struct {
	Title       *string
	Description *string
	Status      *model.Status
	Priority    *model.Priority
	Notes       *string
	Assignee    *string
}

// Health is the backend's health report.
type Health struct {
	Status  string
	Version string
	Uptime  float64
}

// DaemonStatus is the backend daemon's runtime metadata.
type DaemonStatus struct {
	Version       string
	WorkspacePath string
	SocketPath    string
	PID           int
	Uptime        float64
}

// Client is one connection unit to a single tracker instance. All methods
// are safe for sequential use; the socket transport additionally serializes
// concurrent calls on its single connection.
type Client interface {
	List(ctx context.Context, filter ListFilter) ([]model.Issue, error)
	Show(ctx context.Context, id string) (*model.Issue, error)
	Create(ctx context.Context, fields CreateFields) (*model.Issue, error)
	Update(ctx context.Context, id string, fields UpdateFields) error
	AddDependency(ctx context.Context, fromID, toID, depType string) error
	RemoveDependency(ctx context.Context, fromID, toID string) error
	AddComment(ctx context.Context, id, author, text string) error
	ListComments(ctx context.Context, id string) ([]model.Comment, error)
	Health(ctx context.Context) (Health, error)
	Status(ctx context.Context) (DaemonStatus, error)
	// Mutations returns change events observed after the given cursor
	// (milliseconds since epoch), oldest first.
	Mutations(ctx context.Context, sinceMs int64) ([]model.MutationEvent, error)
	Close() error
}
