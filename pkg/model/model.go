// Package model defines the normalized data model that beadbridge exposes to
// front-end consumers. Issues are never constructed locally: they are fetched
// from the bd tracker and folded into this representation. Free-text fields
// and structured metadata pass through verbatim.
package model

import "time"

// Status is the closed internal status vocabulary rendered by views. The
// tracker's raw vocabulary is strictly wider; pkg/vocab folds it into this
// set. StatusUnknown is the fallback bucket for raw values we don't
// recognize — unknown values are rendered, never dropped.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusClosed     Status = "closed"
	StatusUnknown    Status = "unknown"
)

// Statuses lists every member of the closed status set, in display order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusBlocked, StatusClosed, StatusUnknown}

// Valid reports whether s is a member of the closed status set.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusClosed, StatusUnknown:
		return true
	}
	return false
}

// Priority is the normalized priority: PriorityMin (most urgent) through
// PriorityMax. An absent priority is PriorityUnset, which is a distinct
// state from the lowest priority and must never be coerced to it.
type Priority int

const (
	PriorityUnset Priority = -1
	PriorityMin   Priority = 0
	PriorityMax   Priority = 4
)

// Set reports whether the priority carries a value.
func (p Priority) Set() bool { return p != PriorityUnset }

// Dependency is a directed typed edge between two issues. Type is an
// open-ended string owned by the tracker; it grows over time upstream, so
// consumers must tolerate values they don't recognize.
type Dependency struct {
	IssueID     string    `json:"issue_id"`
	DependsOnID string    `json:"depends_on_id"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
}

// Comment is a single comment on an issue.
type Comment struct {
	ID        int64     `json:"id"`
	IssueID   string    `json:"issue_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Issue is a tracker item as seen by the UI. The ID is assigned by the
// tracker and treated as opaque. RawStatus preserves the tracker's token so
// write paths and diagnostics can surface it.
type Issue struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Status      Status     `json:"status"`
	RawStatus   string     `json:"raw_status,omitempty"`
	Priority    Priority   `json:"priority"`
	IssueType   string     `json:"issue_type,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`

	Dependencies []*Dependency `json:"dependencies,omitempty"`
	Dependents   []*Dependency `json:"dependents,omitempty"`
	Comments     []*Comment    `json:"comments,omitempty"`
}

// MutationKind classifies an observed change record.
type MutationKind string

const (
	MutationCreate  MutationKind = "create"
	MutationUpdate  MutationKind = "update"
	MutationDelete  MutationKind = "delete"
	MutationComment MutationKind = "comment"
	// MutationUnknown is the fallback bucket for event types the tracker
	// added after this client was built. Consumers treat it like an update
	// for invalidation purposes.
	MutationUnknown MutationKind = "unknown"
)

// MutationEvent is one observed change. It carries no payload of the
// changed fields; it only triggers re-fetch or targeted invalidation.
type MutationEvent struct {
	Kind      MutationKind `json:"kind"`
	IssueID   string       `json:"issue_id"`
	Timestamp time.Time    `json:"timestamp"`
}

// CursorMs returns the event's position on the poll cursor timeline
// (milliseconds since the Unix epoch, matching the tracker's get_mutations
// contract).
func (e MutationEvent) CursorMs() int64 { return e.Timestamp.UnixMilli() }
