package tracker

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/beadbridge/pkg/model"
)

// fakeDaemon speaks the daemon's line protocol on a unix socket in a temp
// marker dir. Handlers are keyed by operation name.
type fakeDaemon struct {
	markerDir string
	listener  net.Listener
	handlers  map[string]func(args json.RawMessage) response
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()

	// Socket paths have a low length limit on some platforms; keep the
	// temp dir shallow.
	markerDir := filepath.Join(t.TempDir(), ".beads")
	if err := os.MkdirAll(markerDir, 0o755); err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("unix", SocketPath(markerDir))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	d := &fakeDaemon{
		markerDir: markerDir,
		listener:  ln,
		handlers:  make(map[string]func(json.RawMessage) response),
	}
	t.Cleanup(func() { ln.Close() })

	go d.serve()
	return d
}

func (d *fakeDaemon) handle(op string, fn func(json.RawMessage) response) {
	d.handlers[op] = fn
}

func (d *fakeDaemon) serve() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}
		go func(conn net.Conn) {
			defer conn.Close()
			r := bufio.NewReader(conn)
			for {
				line, err := r.ReadBytes('\n')
				if err != nil {
					return
				}
				var req request
				if err := json.Unmarshal(line, &req); err != nil {
					return
				}
				h, ok := d.handlers[req.Operation]
				resp := response{Success: false, Error: "unknown operation: " + req.Operation}
				if ok {
					resp = h(req.Args)
				}
				out, _ := json.Marshal(resp)
				out = append(out, '\n')
				if _, err := conn.Write(out); err != nil {
					return
				}
			}
		}(conn)
	}
}

func okData(t *testing.T, v any) response {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return response{Success: true, Data: data}
}

func TestDialSocket_MissingSocketIsConnectionError(t *testing.T) {
	markerDir := filepath.Join(t.TempDir(), ".beads")
	if err := os.MkdirAll(markerDir, 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := DialSocket(markerDir)
	if !IsConnectionError(err) {
		t.Fatalf("got %v, want ConnectionError", err)
	}
}

func TestSocketClient_ListDecodesAndNormalizes(t *testing.T) {
	d := newFakeDaemon(t)
	prio := 1
	d.handle(opList, func(args json.RawMessage) response {
		return okData(t, []*rawIssue{
			{ID: "bd-1", Title: "first", Status: "in-progress", Priority: &prio},
			{ID: "bd-2", Title: "second", Status: "mystery-status", Priority: nil},
		})
	})

	c, err := DialSocket(d.markerDir)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	issues, err := c.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("got %d issues", len(issues))
	}
	if issues[0].Status != model.StatusInProgress {
		t.Errorf("issue 1 status = %q", issues[0].Status)
	}
	if issues[0].Priority != 1 {
		t.Errorf("issue 1 priority = %d", issues[0].Priority)
	}
	if issues[1].Status != model.StatusUnknown {
		t.Errorf("unknown raw status should normalize, got %q", issues[1].Status)
	}
	if issues[1].RawStatus != "mystery-status" {
		t.Errorf("raw status should be preserved, got %q", issues[1].RawStatus)
	}
	if issues[1].Priority != model.PriorityUnset {
		t.Errorf("absent priority = %d, want unset", issues[1].Priority)
	}
}

func TestSocketClient_ShowNotFound(t *testing.T) {
	d := newFakeDaemon(t)
	d.handle(opShow, func(args json.RawMessage) response {
		return response{Success: false, Error: "issue bd-404 not found"}
	})

	c, err := DialSocket(d.markerDir)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	_, err = c.Show(context.Background(), "bd-404")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Errorf("not-found should still be an OperationError")
	}
}

func TestSocketClient_OperationError(t *testing.T) {
	d := newFakeDaemon(t)
	d.handle(opUpdate, func(args json.RawMessage) response {
		return response{Success: false, Error: "invalid status transition"}
	})

	c, err := DialSocket(d.markerDir)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	err = c.Update(context.Background(), "bd-1", UpdateFields{})
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("got %v, want OperationError", err)
	}
	if IsConnectionError(err) {
		t.Error("backend rejection must not look like a connection failure")
	}
}

func TestSocketClient_MalformedResponseIsProtocolError(t *testing.T) {
	markerDir := filepath.Join(t.TempDir(), ".beads")
	if err := os.MkdirAll(markerDir, 0o755); err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("unix", SocketPath(markerDir))
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		if _, err := r.ReadBytes('\n'); err != nil {
			return
		}
		conn.Write([]byte("this is not json\n"))
	}()

	c, err := DialSocket(markerDir)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	_, err = c.Health(context.Background())
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want ProtocolError", err)
	}
}

func TestSocketClient_Mutations(t *testing.T) {
	d := newFakeDaemon(t)
	base := time.Now().Truncate(time.Millisecond).UTC()
	d.handle(opMutations, func(args json.RawMessage) response {
		var ma mutationsArgs
		if err := json.Unmarshal(args, &ma); err != nil {
			return response{Success: false, Error: err.Error()}
		}
		if ma.Since != 42 {
			return response{Success: false, Error: "unexpected cursor"}
		}
		return okData(t, []rawMutation{
			{Type: "create", IssueID: "bd-1", Timestamp: base},
			{Type: "status", IssueID: "bd-1", Timestamp: base.Add(time.Second)},
			{Type: "squashed", IssueID: "bd-9", Timestamp: base.Add(2 * time.Second)},
		})
	})

	c, err := DialSocket(d.markerDir)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	events, err := c.Mutations(context.Background(), 42)
	if err != nil {
		t.Fatalf("Mutations: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Kind != model.MutationCreate {
		t.Errorf("event 0 kind = %q", events[0].Kind)
	}
	if events[1].Kind != model.MutationUpdate {
		t.Errorf("status events fold into update, got %q", events[1].Kind)
	}
	if events[2].Kind != model.MutationUnknown {
		t.Errorf("future event types fold into unknown, got %q", events[2].Kind)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Error("events must be delivered in cursor order")
		}
	}
}

func TestSocketClient_TimeoutIsConnectionError(t *testing.T) {
	markerDir := filepath.Join(t.TempDir(), ".beads")
	if err := os.MkdirAll(markerDir, 0o755); err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("unix", SocketPath(markerDir))
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	// Accept but never answer.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		select {}
	}()

	c, err := DialSocket(markerDir, WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	_, err = c.Health(context.Background())
	if !IsConnectionError(err) {
		t.Fatalf("a hung call must surface as ConnectionError, got %v", err)
	}
}
