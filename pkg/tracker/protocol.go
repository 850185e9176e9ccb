package tracker

import (
	"time"

	json "github.com/goccy/go-json"
)

// Operation names understood by the bd daemon. The daemon supports many
// more; these are the ones the bridge consumes.
const (
	opList        = "list"
	opShow        = "show"
	opCreate      = "create"
	opUpdate      = "update"
	opDepAdd      = "dep_add"
	opDepRemove   = "dep_remove"
	opCommentAdd  = "comment_add"
	opCommentList = "comment_list"
	opHealth      = "health"
	opStatus      = "status"
	opMutations   = "get_mutations"
)

// request is one line of the daemon's line-delimited JSON protocol.
type request struct {
	Operation string          `json:"operation"`
	Args      json.RawMessage `json:"args,omitempty"`
	Actor     string          `json:"actor,omitempty"`
	Cwd       string          `json:"cwd,omitempty"`
}

// response is the daemon's reply line.
type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// listArgs mirrors the daemon's list filter surface (the subset the bridge
// uses).
type listArgs struct {
	Status       string   `json:"status,omitempty"`
	Priority     *int     `json:"priority,omitempty"`
	Assignee     string   `json:"assignee,omitempty"`
	Labels       []string `json:"labels,omitempty"`
	IDs          []string `json:"ids,omitempty"`
	Limit        int      `json:"limit,omitempty"`
	UpdatedAfter string   `json:"updated_after,omitempty"`
}

type showArgs struct {
	ID string `json:"id"`
}

type createArgs struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	IssueType    string   `json:"issue_type"`
	Priority     int      `json:"priority"`
	Notes        string   `json:"notes,omitempty"`
	Assignee     string   `json:"assignee,omitempty"`
	Labels       []string `json:"labels,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

type updateArgs struct {
	ID          string  `json:"id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Assignee    *string `json:"assignee,omitempty"`
}

type depAddArgs struct {
	FromID  string `json:"from_id"`
	ToID    string `json:"to_id"`
	DepType string `json:"dep_type"`
}

type depRemoveArgs struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}

type commentAddArgs struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

type commentListArgs struct {
	ID string `json:"id"`
}

type mutationsArgs struct {
	Since int64 `json:"since"` // Unix milliseconds; 0 means all recent
}

// rawIssue mirrors the daemon's issue JSON. Unknown fields are ignored;
// free-text and metadata pass through verbatim.
type rawIssue struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Description  string           `json:"description,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	Status       string           `json:"status,omitempty"`
	Priority     *int             `json:"priority"`
	IssueType    string           `json:"issue_type,omitempty"`
	Assignee     string           `json:"assignee,omitempty"`
	Labels       []string         `json:"labels,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	ClosedAt     *time.Time       `json:"closed_at,omitempty"`
	Dependencies []*rawDependency `json:"dependencies,omitempty"`
	Dependents   []*rawDependency `json:"dependents,omitempty"`
	Comments     []*rawComment    `json:"comments,omitempty"`
}

type rawDependency struct {
	IssueID     string    `json:"issue_id"`
	DependsOnID string    `json:"depends_on_id"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by,omitempty"`
}

type rawComment struct {
	ID        int64     `json:"id"`
	IssueID   string    `json:"issue_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// rawMutation mirrors the daemon's mutation event encoding. The daemon
// marshals its event struct with Go field names for the core fields.
type rawMutation struct {
	Type      string    `json:"Type"`
	IssueID   string    `json:"IssueID"`
	Timestamp time.Time `json:"Timestamp"`
}

// rawHealth mirrors the daemon's health payload.
type rawHealth struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Error         string  `json:"error,omitempty"`
}

// rawStatus mirrors the daemon's status payload (subset).
type rawStatus struct {
	Version       string  `json:"version"`
	WorkspacePath string  `json:"workspace_path"`
	SocketPath    string  `json:"socket_path"`
	PID           int     `json:"pid"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}
