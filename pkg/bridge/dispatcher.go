package bridge

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/vanderheijden86/beadbridge/pkg/model"
	"github.com/vanderheijden86/beadbridge/pkg/tracker"
	"github.com/vanderheijden86/beadbridge/pkg/vocab"
)

// Backend is what the dispatcher needs from the project manager. It is
// satisfied by *workspace.Manager and faked in tests.
type Backend interface {
	ProjectList() []model.Project
	ActiveProject() (model.Project, bool)
	SetActive(ctx context.Context, projectID string) error
	EnsureConnected(ctx context.Context) error
	Client() (tracker.Client, error)
	Refresh()
	StartDaemon(ctx context.Context) error
	StopDaemon(ctx context.Context) error
}

// Sink receives outbound messages. Implementations forward them to the
// view transport and must not block.
type Sink func(Outbound)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxItems caps how many issues one SetIssues message carries.
func WithMaxItems(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxItems = n
		}
	}
}

// WithActor sets the author identity stamped on comments.
func WithActor(actor string) DispatcherOption {
	return func(d *Dispatcher) { d.actor = actor }
}

// WithSettings sets the payload pushed in response to Ready.
func WithSettings(s SetSettings) DispatcherOption {
	return func(d *Dispatcher) { d.settings = s }
}

// WithDispatcherLogger sets a custom logger. Silent by default.
func WithDispatcherLogger(logger *log.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// DefaultMaxItems caps issue lists pushed to the view.
const DefaultMaxItems = 500

// Dispatcher services inbound view messages against the backend and pushes
// state back through the sink. It holds no issue cache; every push
// re-fetches so a reloaded view always sees current data.
type Dispatcher struct {
	backend  Backend
	sink     Sink
	maxItems int
	actor    string
	settings SetSettings
	logger   *log.Logger
}

// NewDispatcher wires a backend to a view sink.
func NewDispatcher(backend Backend, sink Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		backend:  backend,
		sink:     sink,
		maxItems: DefaultMaxItems,
		logger:   log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle services one inbound message. The type switch is exhaustive over
// the closed Inbound set; every mutation path ends with a data push so the
// view converges without waiting for the next poll.
func (d *Dispatcher) Handle(ctx context.Context, msg Inbound) {
	switch m := msg.(type) {
	case Ready:
		d.sink(d.settings)
		d.sink(SetProjects{Projects: d.backend.ProjectList()})
		if p, ok := d.backend.ActiveProject(); ok {
			d.sink(SetProject{Project: p})
			d.PushData(ctx)
		}

	case Refresh:
		d.backend.Refresh()
		d.PushData(ctx)

	case SelectProject:
		d.sink(SetLoading{Loading: true})
		err := d.backend.SetActive(ctx, m.ProjectID)
		d.sink(SetLoading{Loading: false})
		if err != nil {
			d.fail("select project", err)
			return
		}
		if p, ok := d.backend.ActiveProject(); ok {
			d.sink(SetProject{Project: p})
		}
		d.PushData(ctx)

	case ShowIssue:
		client, err := d.backend.Client()
		if err != nil {
			d.fail("show issue", err)
			return
		}
		issue, err := client.Show(ctx, m.ID)
		if err != nil {
			d.fail("show issue", err)
			return
		}
		hydrated := *issue
		if comments, err := client.ListComments(ctx, m.ID); err == nil {
			hydrated.Comments = make([]*model.Comment, 0, len(comments))
			for i := range comments {
				hydrated.Comments = append(hydrated.Comments, &comments[i])
			}
		}
		d.sink(SetIssueDetails{Issue: hydrated})

	case UpdateIssue:
		d.mutate(ctx, "update issue", func(client tracker.Client) error {
			fields, err := updateFields(m)
			if err != nil {
				return err
			}
			return client.Update(ctx, m.ID, fields)
		})

	case AddDependency:
		d.mutate(ctx, "add dependency", func(client tracker.Client) error {
			return client.AddDependency(ctx, m.FromID, m.ToID, m.Type)
		})

	case RemoveDependency:
		d.mutate(ctx, "remove dependency", func(client tracker.Client) error {
			return client.RemoveDependency(ctx, m.FromID, m.ToID)
		})

	case AddComment:
		d.mutate(ctx, "add comment", func(client tracker.Client) error {
			return client.AddComment(ctx, m.ID, d.actor, m.Text)
		})

	case StartDaemon:
		if err := d.backend.StartDaemon(ctx); err != nil {
			d.fail("start daemon", err)
			return
		}
		if p, ok := d.backend.ActiveProject(); ok {
			d.sink(SetProject{Project: p})
		}
		d.PushData(ctx)

	case StopDaemon:
		if err := d.backend.StopDaemon(ctx); err != nil {
			d.fail("stop daemon", err)
			return
		}
		if p, ok := d.backend.ActiveProject(); ok {
			d.sink(SetProject{Project: p})
		}

	default:
		// Unreachable while Inbound stays closed.
		d.logger.Printf("unhandled message %T", msg)
	}
}

// PushData fetches the active project's issues and pushes list plus
// summary. Connection failures surface as a retryable error state.
func (d *Dispatcher) PushData(ctx context.Context) {
	client, err := d.backend.Client()
	if err != nil {
		d.fail("fetch issues", err)
		return
	}
	issues, err := client.List(ctx, tracker.ListFilter{Limit: d.maxItems})
	if err != nil {
		d.fail("fetch issues", err)
		return
	}
	if len(issues) > d.maxItems {
		issues = issues[:d.maxItems]
	}
	d.sink(SetIssues{Issues: issues})
	d.sink(SetSummary{Summary: Summarize(issues)})
}

// PushProjects pushes the current project set.
func (d *Dispatcher) PushProjects() {
	d.sink(SetProjects{Projects: d.backend.ProjectList()})
}

// PushActive pushes the active project record.
func (d *Dispatcher) PushActive() {
	if p, ok := d.backend.ActiveProject(); ok {
		d.sink(SetProject{Project: p})
	} else {
		d.sink(SetProject{Project: model.Project{}})
	}
}

// mutate runs one write against the live client and re-pushes data on
// success.
func (d *Dispatcher) mutate(ctx context.Context, what string, fn func(tracker.Client) error) {
	client, err := d.backend.Client()
	if err != nil {
		d.fail(what, err)
		return
	}
	if err := fn(client); err != nil {
		d.fail(what, err)
		return
	}
	d.PushData(ctx)
}

func (d *Dispatcher) fail(what string, err error) {
	d.logger.Printf("%s: %v", what, err)
	d.sink(SetError{
		Message:   fmt.Sprintf("%s: %v", what, err),
		Retryable: tracker.IsConnectionError(err),
	})
}

// updateFields maps a view edit onto the client's partial update, folding
// the normalized status token back into the tracker's vocabulary.
func updateFields(m UpdateIssue) (tracker.UpdateFields, error) {
	fields := tracker.UpdateFields{
		Title:       m.Title,
		Description: m.Description,
		Notes:       m.Notes,
		Assignee:    m.Assignee,
	}
	if m.Status != nil {
		status := vocab.NormalizeStatus(*m.Status)
		if status == model.StatusUnknown {
			return fields, fmt.Errorf("unwritable status %q", *m.Status)
		}
		fields.Status = &status
	}
	if m.Priority != nil {
		p := vocab.NormalizePriority(m.Priority)
		fields.Priority = &p
	}
	return fields, nil
}

// Summarize tallies issues by normalized status and priority. Unknown
// buckets are counted, never dropped.
func Summarize(issues []model.Issue) Summary {
	s := Summary{
		Total:      len(issues),
		ByStatus:   make(map[string]int),
		ByPriority: make(map[string]int),
	}
	for _, iss := range issues {
		s.ByStatus[string(iss.Status)]++
		s.ByPriority[priorityKey(iss.Priority)]++
	}
	return s
}

func priorityKey(p model.Priority) string {
	if p == model.PriorityUnset {
		return "unset"
	}
	return fmt.Sprintf("p%d", int(p))
}
