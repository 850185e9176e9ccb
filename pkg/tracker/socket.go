package tracker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/beadbridge/pkg/debug"
	"github.com/vanderheijden86/beadbridge/pkg/model"
)

// SocketName is the daemon's endpoint inside the marker directory.
const SocketName = "bd.sock"

// DefaultDialTimeout bounds the initial socket dial.
const DefaultDialTimeout = 500 * time.Millisecond

// SocketPath returns the daemon socket path for a marker directory.
func SocketPath(markerDir string) string {
	return filepath.Join(markerDir, SocketName)
}

// SocketOption configures a SocketClient.
type SocketOption func(*SocketClient)

// WithTimeout sets the per-call timeout (default 5s).
func WithTimeout(d time.Duration) SocketOption {
	return func(c *SocketClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithActor sets the identity recorded by the tracker for writes.
func WithActor(actor string) SocketOption {
	return func(c *SocketClient) { c.actor = actor }
}

// WithCwd sets the working directory sent with each request; the daemon
// uses it to route to the right database.
func WithCwd(cwd string) SocketOption {
	return func(c *SocketClient) { c.cwd = cwd }
}

// WithLogger sets a custom logger. Silent by default.
func WithLogger(logger *log.Logger) SocketOption {
	return func(c *SocketClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// SocketClient is a persistent line-delimited-JSON session with the bd
// daemon's unix socket. One request/response exchange is in flight at a
// time; concurrent callers are serialized.
type SocketClient struct {
	socketPath string
	timeout    time.Duration
	actor      string
	cwd        string
	logger     *log.Logger

	mu   sync.Mutex
	conn net.Conn
	// br persists across calls so partial reads are never lost between
	// exchanges.
	br *bufio.Reader
}

// DialSocket connects to the daemon socket of the given marker directory.
// A missing socket or failed dial yields a *ConnectionError.
func DialSocket(markerDir string, opts ...SocketOption) (*SocketClient, error) {
	c := &SocketClient{
		socketPath: SocketPath(markerDir),
		timeout:    5 * time.Second,
		cwd:        filepath.Dir(markerDir),
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}

	if _, err := os.Stat(c.socketPath); err != nil {
		return nil, &ConnectionError{Endpoint: c.socketPath, Err: err}
	}

	start := time.Now()
	conn, err := net.DialTimeout("unix", c.socketPath, DefaultDialTimeout)
	if err != nil {
		return nil, &ConnectionError{Endpoint: c.socketPath, Err: err}
	}
	debug.LogTiming("socket dial", time.Since(start))

	c.conn = conn
	c.br = bufio.NewReader(conn)
	return c, nil
}

// Close closes the daemon connection. Safe to call twice.
func (c *SocketClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// execute sends one request line and reads one response line. Transport
// failures come back as *ConnectionError, daemon rejections as
// *OperationError, and garbage as *ProtocolError.
func (c *SocketClient) execute(ctx context.Context, op string, args any) (json.RawMessage, error) {
	var argsJSON json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s args: %w", op, err)
		}
		argsJSON = b
	}

	req := request{
		Operation: op,
		Args:      argsJSON,
		Actor:     c.actor,
		Cwd:       c.cwd,
	}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, &ConnectionError{Endpoint: c.socketPath, Err: net.ErrClosed}
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, &ConnectionError{Endpoint: c.socketPath, Err: err}
	}

	w := bufio.NewWriter(c.conn)
	if _, err := w.Write(reqJSON); err != nil {
		return nil, &ConnectionError{Endpoint: c.socketPath, Err: err}
	}
	if err := w.WriteByte('\n'); err != nil {
		return nil, &ConnectionError{Endpoint: c.socketPath, Err: err}
	}
	if err := w.Flush(); err != nil {
		return nil, &ConnectionError{Endpoint: c.socketPath, Err: err}
	}

	line, err := c.br.ReadBytes('\n')
	if err != nil {
		return nil, &ConnectionError{Endpoint: c.socketPath, Err: err}
	}

	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, &ProtocolError{Op: op, Err: err}
	}
	if !resp.Success {
		c.logger.Printf("daemon rejected %s: %s", op, resp.Error)
		return nil, notFoundError(op, resp.Error)
	}
	return resp.Data, nil
}

func (c *SocketClient) List(ctx context.Context, filter ListFilter) ([]model.Issue, error) {
	data, err := c.execute(ctx, opList, encodeListArgs(filter))
	if err != nil {
		return nil, err
	}
	var raw []*rawIssue
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ProtocolError{Op: opList, Err: err}
	}
	return decodeIssues(raw), nil
}

func (c *SocketClient) Show(ctx context.Context, id string) (*model.Issue, error) {
	data, err := c.execute(ctx, opShow, showArgs{ID: id})
	if err != nil {
		return nil, err
	}
	var raw rawIssue
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ProtocolError{Op: opShow, Err: err}
	}
	iss := decodeIssue(&raw)
	return &iss, nil
}

func (c *SocketClient) Create(ctx context.Context, fields CreateFields) (*model.Issue, error) {
	data, err := c.execute(ctx, opCreate, encodeCreateArgs(fields))
	if err != nil {
		return nil, err
	}
	var raw rawIssue
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ProtocolError{Op: opCreate, Err: err}
	}
	iss := decodeIssue(&raw)
	return &iss, nil
}

func (c *SocketClient) Update(ctx context.Context, id string, fields UpdateFields) error {
	_, err := c.execute(ctx, opUpdate, encodeUpdateArgs(id, fields))
	return err
}

func (c *SocketClient) AddDependency(ctx context.Context, fromID, toID, depType string) error {
	_, err := c.execute(ctx, opDepAdd, depAddArgs{FromID: fromID, ToID: toID, DepType: depType})
	return err
}

func (c *SocketClient) RemoveDependency(ctx context.Context, fromID, toID string) error {
	_, err := c.execute(ctx, opDepRemove, depRemoveArgs{FromID: fromID, ToID: toID})
	return err
}

func (c *SocketClient) AddComment(ctx context.Context, id, author, text string) error {
	_, err := c.execute(ctx, opCommentAdd, commentAddArgs{ID: id, Author: author, Text: text})
	return err
}

func (c *SocketClient) ListComments(ctx context.Context, id string) ([]model.Comment, error) {
	data, err := c.execute(ctx, opCommentList, commentListArgs{ID: id})
	if err != nil {
		return nil, err
	}
	var raw []*rawComment
	if err := json.Unmarshal(data, &raw); err != nil {
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

func (c *SocketClient) Health(ctx context.Context) (Health, error) {
	data, err := c.execute(ctx, opHealth, nil)
	if err != nil {
		return Health{}, err
	}
	var raw rawHealth
	if err := json.Unmarshal(data, &raw); err != nil {
		return Health{}, &ProtocolError{Op: opHealth, Err: err}
	}
	return Health{Status: raw.Status, Version: raw.Version, Uptime: raw.UptimeSeconds}, nil
}

func (c *SocketClient) Status(ctx context.Context) (DaemonStatus, error) {
	data, err := c.execute(ctx, opStatus, nil)
	if err != nil {
		return DaemonStatus{}, err
	}
	var raw rawStatus
	if err := json.Unmarshal(data, &raw); err != nil {
		return DaemonStatus{}, &ProtocolError{Op: opStatus, Err: err}
	}
	return DaemonStatus{
		Version:       raw.Version,
		WorkspacePath: raw.WorkspacePath,
		SocketPath:    raw.SocketPath,
		PID:           raw.PID,
		Uptime:        raw.UptimeSeconds,
	}, nil
}

func (c *SocketClient) Mutations(ctx context.Context, sinceMs int64) ([]model.MutationEvent, error) {
	data, err := c.execute(ctx, opMutations, mutationsArgs{Since: sinceMs})
	if err != nil {
		return nil, err
	}
	var raw []rawMutation
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ProtocolError{Op: opMutations, Err: err}
	}
	return decodeMutations(raw), nil
}
