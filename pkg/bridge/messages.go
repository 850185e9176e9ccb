// Package bridge defines the typed message protocol between the core and a
// view layer, and the dispatcher that services view requests. Messages are
// tagged unions discriminated by a "type" field, so adding a message kind is
// a compile-checked change rather than a stringly-typed convention.
package bridge

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/beadbridge/pkg/model"
)

// Outbound is a core-to-view message.
type Outbound interface {
	messageType() string
}

// Inbound is a view-to-core message.
type Inbound interface {
	inbound()
}

// --- Outbound messages ---

// SetProjects replaces the view's project list.
type SetProjects struct {
	Projects []model.Project `json:"projects"`
}

// SetProject announces the active project. A zero-ID project means none.
type SetProject struct {
	Project model.Project `json:"project"`
}

// SetIssues replaces the view's issue list.
type SetIssues struct {
	Issues []model.Issue `json:"issues"`
}

// SetIssueDetails carries one fully hydrated issue.
type SetIssueDetails struct {
	Issue model.Issue `json:"issue"`
}

// Summary tallies the issue list by normalized status and priority.
type Summary struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
}

// SetSummary pushes a fresh tally.
type SetSummary struct {
	Summary Summary `json:"summary"`
}

// SetLoading toggles the view's busy indicator.
type SetLoading struct {
	Loading bool `json:"loading"`
}

// SetError surfaces a user-visible failure.
type SetError struct {
	Message string `json:"message"`
	// Retryable marks connection-class failures the view may offer a
	// reconnect action for.
	Retryable bool `json:"retryable"`
}

// SetSettings pushes the effective configuration to the view.
type SetSettings struct {
	Actor          string `json:"actor"`
	PollIntervalMs int64  `json:"poll_interval_ms"`
	MaxItems       int    `json:"max_items"`
}

func (SetProjects) messageType() string     { return "setProjects" }
func (SetProject) messageType() string      { return "setProject" }
func (SetIssues) messageType() string       { return "setIssues" }
func (SetIssueDetails) messageType() string { return "setIssueDetails" }
func (SetSummary) messageType() string      { return "setSummary" }
func (SetLoading) messageType() string      { return "setLoading" }
func (SetError) messageType() string        { return "setError" }
func (SetSettings) messageType() string     { return "setSettings" }

// Encode renders an outbound message with its "type" discriminator.
func Encode(m Outbound) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}
	tag, err := json.Marshal(m.messageType())
	if err != nil {
		return nil, err
	}
	fields["type"] = tag
	return json.Marshal(fields)
}

// --- Inbound messages ---

// Ready signals the view finished loading and wants initial state.
type Ready struct{}

// Refresh asks for a full re-fetch.
type Refresh struct{}

// SelectProject switches the active project.
type SelectProject struct {
	ProjectID string `json:"project_id"`
}

// ShowIssue requests full details for one issue.
type ShowIssue struct {
	ID string `json:"id"`
}

// UpdateIssue applies a partial edit. Nil fields are left untouched; Status
// carries the normalized token, mapped back to the tracker's vocabulary on
// the write path.
type UpdateIssue struct {
	ID          string  `json:"id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Assignee    *string `json:"assignee,omitempty"`
}

// AddDependency links FromID onto ToID with an open-ended edge type.
type AddDependency struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Type   string `json:"dep_type,omitempty"`
}

// RemoveDependency drops an edge.
type RemoveDependency struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}

// AddComment appends a comment to an issue.
type AddComment struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// StartDaemon asks the core to launch the active project's daemon.
type StartDaemon struct{}

// StopDaemon asks the core to stop the active project's daemon.
type StopDaemon struct{}

func (Ready) inbound()            {}
func (Refresh) inbound()          {}
func (SelectProject) inbound()    {}
func (ShowIssue) inbound()        {}
func (UpdateIssue) inbound()      {}
func (AddDependency) inbound()    {}
func (RemoveDependency) inbound() {}
func (AddComment) inbound()       {}
func (StartDaemon) inbound()      {}
func (StopDaemon) inbound()       {}

// DecodeInbound parses one view message by its "type" discriminator.
// Unknown types are an error; the view and core version together.
func DecodeInbound(data []byte) (Inbound, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message envelope: %w", err)
	}

	switch env.Type {
	case "ready":
		return Ready{}, nil
	case "refresh":
		return Refresh{}, nil
	case "selectProject":
		var m SelectProject
		return m, json.Unmarshal(data, &m)
	case "showIssue":
		var m ShowIssue
		return m, json.Unmarshal(data, &m)
	case "updateIssue":
		var m UpdateIssue
		return m, json.Unmarshal(data, &m)
	case "addDependency":
		var m AddDependency
		return m, json.Unmarshal(data, &m)
	case "removeDependency":
		var m RemoveDependency
		return m, json.Unmarshal(data, &m)
	case "addComment":
		var m AddComment
		return m, json.Unmarshal(data, &m)
	case "startDaemon":
		return StartDaemon{}, nil
	case "stopDaemon":
		return StopDaemon{}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}
