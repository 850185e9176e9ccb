package tracker

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"testing"
	"time"

	"github.com/vanderheijden86/beadbridge/pkg/model"
)

// stubRunner records the argv of each invocation and plays back canned
// output.
type stubRunner struct {
	argv   [][]string
	stdout []byte
	stderr []byte
	err    error
}

func (s *stubRunner) run(ctx context.Context, dir, bin string, argv []string) ([]byte, []byte, error) {
	s.argv = append(s.argv, argv)
	return s.stdout, s.stderr, s.err
}

func newStubClient(stub *stubRunner) *CLIClient {
	c := NewCLIClient("bd", "/tmp/project", WithCLIActor("tester"))
	c.runner = stub.run
	return c
}

func TestListArgv(t *testing.T) {
	prio := model.Priority(1)
	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{
			name:   "empty filter",
			filter: ListFilter{},
			want:   []string{"list"},
		},
		{
			name:   "status and priority",
			filter: ListFilter{Status: model.StatusInProgress, Priority: &prio},
			want:   []string{"list", "--status", "in_progress", "--priority", "1"},
		},
		{
			name:   "labels and limit",
			filter: ListFilter{Labels: []string{"ui", "bug"}, Limit: 50},
			want:   []string{"list", "--label", "ui", "--label", "bug", "--limit", "50"},
		},
		{
			name:   "unknown status is not writable",
			filter: ListFilter{Status: model.StatusUnknown},
			want:   []string{"list"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := listArgv(tt.filter); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("listArgv = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCLIClient_ListParsesOutput(t *testing.T) {
	stub := &stubRunner{stdout: []byte(`[{"id":"bd-1","title":"t","status":"active","priority":2}]`)}
	c := newStubClient(stub)

	issues, err := c.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(issues) != 1 || issues[0].Status != model.StatusInProgress {
		t.Errorf("got %+v", issues)
	}

	// Every invocation must request JSON output and carry the actor.
	argv := stub.argv[0]
	if !contains(argv, "--json") {
		t.Errorf("argv missing --json: %v", argv)
	}
	if !contains(argv, "--actor") {
		t.Errorf("argv missing --actor: %v", argv)
	}
}

func TestCLIClient_ExitErrorIsOperationError(t *testing.T) {
	stub := &stubRunner{
		stderr: []byte("Error: issue bd-9 not found\n"),
		err:    &exec.ExitError{},
	}
	c := newStubClient(stub)

	_, err := c.Show(context.Background(), "bd-9")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if IsConnectionError(err) {
		t.Error("exit status must not classify as connection failure")
	}
}

func TestCLIClient_SpawnFailureIsConnectionError(t *testing.T) {
	stub := &stubRunner{err: errors.New("exec: \"bd\": executable file not found in $PATH")}
	c := newStubClient(stub)

	_, err := c.Health(context.Background())
	if !IsConnectionError(err) {
		t.Errorf("got %v, want ConnectionError", err)
	}
}

func TestCLIClient_MutationsSynthesizedFromList(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Millisecond)
	cursor := base.UnixMilli()

	stub := &stubRunner{stdout: []byte(
		`[{"id":"bd-1","title":"t","status":"open","priority":2,"updated_at":"` +
			base.Add(2*time.Second).Format(time.RFC3339Nano) + `"}]`)}
	c := newStubClient(stub)

	events, err := c.Mutations(context.Background(), cursor)
	if err != nil {
		t.Fatalf("Mutations: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Kind != model.MutationUpdate || events[0].IssueID != "bd-1" {
		t.Errorf("got %+v", events[0])
	}
	if !contains(stub.argv[0], "--updated-after") {
		t.Errorf("list should carry the cursor: %v", stub.argv[0])
	}
}

func TestCLIClient_MutationsZeroCursorReturnsNothing(t *testing.T) {
	stub := &stubRunner{stdout: []byte(`[]`)}
	c := newStubClient(stub)

	events, err := c.Mutations(context.Background(), 0)
	if err != nil {
		t.Fatalf("Mutations: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("zero cursor must not replay history, got %d events", len(events))
	}
	if len(stub.argv) != 0 {
		t.Errorf("zero cursor should not spawn bd at all")
	}
}

func contains(argv []string, s string) bool {
	for _, a := range argv {
		if a == s {
			return true
		}
	}
	return false
}
