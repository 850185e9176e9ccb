package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/beadbridge/pkg/debug"
	"github.com/vanderheijden86/beadbridge/pkg/model"
	"github.com/vanderheijden86/beadbridge/pkg/vocab"
)

// CLIOption configures a CLIClient.
type CLIOption func(*CLIClient)

// WithCLITimeout sets the per-invocation timeout (default 10s; CLI calls
// pay process startup on every call).
func WithCLITimeout(d time.Duration) CLIOption {
	return func(c *CLIClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCLIActor sets the identity passed to bd via --actor.
func WithCLIActor(actor string) CLIOption {
	return func(c *CLIClient) { c.actor = actor }
}

// WithCLILogger sets a custom logger. Silent by default.
func WithCLILogger(logger *log.Logger) CLIOption {
	return func(c *CLIClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// CLIClient reaches the tracker by spawning the bd binary once per call
// with --json output. It is the fallback transport for hosts where the
// daemon socket is unavailable; the socket session is canonical.
type CLIClient struct {
	bin     string
	dir     string
	timeout time.Duration
	actor   string
	logger  *log.Logger

	// runner is swapped in tests.
	runner func(ctx context.Context, dir, bin string, argv []string) ([]byte, []byte, error)
}

// NewCLIClient builds a CLI transport rooted at the project directory.
func NewCLIClient(bin, projectDir string, opts ...CLIOption) *CLIClient {
	c := &CLIClient{
		bin:     bin,
		dir:     projectDir,
		timeout: 10 * time.Second,
		logger:  log.New(io.Discard, "", 0),
		runner:  runCommand,
	}
	if c.bin == "" {
		c.bin = "bd"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func runCommand(ctx context.Context, dir, bin string, argv []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, bin, argv...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// run executes one bd invocation and classifies the failure modes: a
// spawn/timeout problem is a *ConnectionError, a non-zero exit is an
// *OperationError carrying stderr, and unparseable output is handled by
// the caller as a *ProtocolError.
func (c *CLIClient) run(ctx context.Context, op string, argv []string) ([]byte, error) {
	argv = append(argv, "--json")
	if c.actor != "" {
		argv = append(argv, "--actor", c.actor)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, err := c.runner(ctx, c.dir, c.bin, argv)
	debug.LogTiming("bd "+op, time.Since(start))

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := string(bytes.TrimSpace(stderr))
			if msg == "" {
				msg = exitErr.Error()
			}
			c.logger.Printf("bd %s exited: %s", op, msg)
			return nil, notFoundError(op, msg)
		}
		// Spawn failure or timeout: the transport itself is unreachable.
		return nil, &ConnectionError{Endpoint: c.bin, Err: err}
	}
	return stdout, nil
}

func (c *CLIClient) List(ctx context.Context, filter ListFilter) ([]model.Issue, error) {
	out, err := c.run(ctx, opList, listArgv(filter))
	if err != nil {
		return nil, err
	}
	var raw []*rawIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &ProtocolError{Op: opList, Err: err}
	}
	return decodeIssues(raw), nil
}

// listArgv translates a filter into bd list flags.
func listArgv(filter ListFilter) []string {
	argv := []string{"list"}
	if filter.Status != "" {
		if tok, ok := vocab.RawStatus(filter.Status); ok {
			argv = append(argv, "--status", tok)
		}
	}
	if filter.Priority != nil {
		if v, ok := vocab.RawPriority(*filter.Priority); ok {
			argv = append(argv, "--priority", strconv.Itoa(v))
		}
	}
	if filter.Assignee != "" {
		argv = append(argv, "--assignee", filter.Assignee)
	}
	for _, l := range filter.Labels {
		argv = append(argv, "--label", l)
	}
	if filter.Limit > 0 {
		argv = append(argv, "--limit", strconv.Itoa(filter.Limit))
	}
	if filter.UpdatedAfter > 0 {
		argv = append(argv, "--updated-after", cursorToISO(filter.UpdatedAfter))
	}
	return argv
}

func (c *CLIClient) Show(ctx context.Context, id string) (*model.Issue, error) {
	out, err := c.run(ctx, opShow, []string{"show", id})
	if err != nil {
		return nil, err
	}
	var raw rawIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &ProtocolError{Op: opShow, Err: err}
	}
	iss := decodeIssue(&raw)
	return &iss, nil
}

func (c *CLIClient) Create(ctx context.Context, fields CreateFields) (*model.Issue, error) {
	args := encodeCreateArgs(fields)
	argv := []string{"create", args.Title, "--type", args.IssueType, "--priority", strconv.Itoa(args.Priority)}
	if args.Description != "" {
		argv = append(argv, "--description", args.Description)
	}
	if args.Assignee != "" {
		argv = append(argv, "--assignee", args.Assignee)
	}
	for _, l := range args.Labels {
		argv = append(argv, "--label", l)
	}
	for _, d := range args.Dependencies {
		argv = append(argv, "--deps", d)
	}

	out, err := c.run(ctx, opCreate, argv)
	if err != nil {
		return nil, err
	}
	var raw rawIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &ProtocolError{Op: opCreate, Err: err}
	}
	iss := decodeIssue(&raw)
	return &iss, nil
}

func (c *CLIClient) Update(ctx context.Context, id string, fields UpdateFields) error {
	args := encodeUpdateArgs(id, fields)
	argv := []string{"update", id}
	if args.Title != nil {
		argv = append(argv, "--title", *args.Title)
	}
	if args.Description != nil {
		argv = append(argv, "--description", *args.Description)
	}
	if args.Status != nil {
		argv = append(argv, "--status", *args.Status)
	}
	if args.Priority != nil {
		argv = append(argv, "--priority", strconv.Itoa(*args.Priority))
	}
	if args.Notes != nil {
		argv = append(argv, "--notes", *args.Notes)
	}
	if args.Assignee != nil {
		argv = append(argv, "--assignee", *args.Assignee)
	}

	_, err := c.run(ctx, opUpdate, argv)
	return err
}

func (c *CLIClient) AddDependency(ctx context.Context, fromID, toID, depType string) error {
	argv := []string{"dep", "add", fromID, toID}
	if depType != "" {
		argv = append(argv, "--type", depType)
	}
	_, err := c.run(ctx, opDepAdd, argv)
	return err
}

func (c *CLIClient) RemoveDependency(ctx context.Context, fromID, toID string) error {
	_, err := c.run(ctx, opDepRemove, []string{"dep", "remove", fromID, toID})
	return err
}

func (c *CLIClient) AddComment(ctx context.Context, id, author, text string) error {
	argv := []string{"comments", "add", id, text}
	if author != "" {
		argv = append(argv, "--author", author)
	}
	_, err := c.run(ctx, opCommentAdd, argv)
	return err
}

func (c *CLIClient) ListComments(ctx context.Context, id string) ([]model.Comment, error) {
	out, err := c.run(ctx, opCommentList, []string{"comments", id})
	if err != nil {
		return nil, err
	}
	var raw []*rawComment
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &ProtocolError{Op: opCommentList, Err: err}
	}
	comments := make([]model.Comment, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		comments = append(comments, *decodeComment(r))
	}
	return comments, nil
}

func (c *CLIClient) Health(ctx context.Context) (Health, error) {
	// bd has no standalone health subcommand; a cheap list probe plays the
	// same role for the CLI transport.
	_, err := c.run(ctx, opHealth, []string{"list", "--limit", "1"})
	if err != nil {
		return Health{}, err
	}
	return Health{Status: "healthy"}, nil
}

func (c *CLIClient) Status(ctx context.Context) (DaemonStatus, error) {
	return DaemonStatus{}, &OperationError{Op: opStatus, Message: "daemon status unavailable over CLI transport"}
}

// Mutations emulates the daemon's get_mutations endpoint by listing issues
// updated after the cursor. Every hit becomes an update event; create and
// delete granularity needs the socket transport.
func (c *CLIClient) Mutations(ctx context.Context, sinceMs int64) ([]model.MutationEvent, error) {
	if sinceMs <= 0 {
		// First poll establishes the cursor without replaying history.
		return nil, nil
	}
	issues, err := c.List(ctx, ListFilter{UpdatedAfter: sinceMs})
	if err != nil {
		return nil, err
	}
	events := make([]model.MutationEvent, 0, len(issues))
	for _, iss := range issues {
		if iss.UpdatedAt.UnixMilli() <= sinceMs {
			continue
		}
		events = append(events, model.MutationEvent{
			Kind:      model.MutationUpdate,
			IssueID:   iss.ID,
			Timestamp: iss.UpdatedAt,
		})
	}
	return events, nil
}

func (c *CLIClient) Close() error { return nil }

// cursorToISO renders a millisecond cursor as the ISO 8601 form bd accepts.
func cursorToISO(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}

var _ Client = (*CLIClient)(nil)
var _ Client = (*SocketClient)(nil)

// String implements fmt.Stringer for log lines.
func (c *CLIClient) String() string {
	return fmt.Sprintf("cli:%s", c.bin)
}
