// Package testutil provides test doubles shared across the beadbridge test
// suites. All fixtures are deterministic for reproducible tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vanderheijden86/beadbridge/pkg/model"
	"github.com/vanderheijden86/beadbridge/pkg/tracker"
)

// FakeClient is a programmable tracker.Client. Each operation delegates to
// the corresponding Func field when set; unset operations succeed with zero
// values. Call counts are tracked under a mutex so tests can assert on
// leaked callbacks after teardown.
type FakeClient struct {
	mu sync.Mutex

	ListFunc      func(ctx context.Context, filter tracker.ListFilter) ([]model.Issue, error)
	ShowFunc      func(ctx context.Context, id string) (*model.Issue, error)
	HealthFunc    func(ctx context.Context) (tracker.Health, error)
	StatusFunc    func(ctx context.Context) (tracker.DaemonStatus, error)
	MutationsFunc func(ctx context.Context, sinceMs int64) ([]model.MutationEvent, error)
	UpdateFunc    func(ctx context.Context, id string, fields tracker.UpdateFields) error

	Calls      map[string]int
	CloseCount int
}

// NewFakeClient returns a FakeClient whose every operation succeeds.
func NewFakeClient() *FakeClient {
	return &FakeClient{Calls: make(map[string]int)}
}

func (f *FakeClient) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[op]++
}

// CallCount returns how many times op was invoked.
func (f *FakeClient) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[op]
}

func (f *FakeClient) List(ctx context.Context, filter tracker.ListFilter) ([]model.Issue, error) {
	f.record("list")
	if f.ListFunc != nil {
		return f.ListFunc(ctx, filter)
	}
	return nil, nil
}

func (f *FakeClient) Show(ctx context.Context, id string) (*model.Issue, error) {
	f.record("show")
	if f.ShowFunc != nil {
		return f.ShowFunc(ctx, id)
	}
	return &model.Issue{ID: id, Status: model.StatusOpen, Priority: model.PriorityUnset}, nil
}

func (f *FakeClient) Create(ctx context.Context, fields tracker.CreateFields) (*model.Issue, error) {
	f.record("create")
	return &model.Issue{ID: "fake-1", Title: fields.Title, Status: model.StatusOpen}, nil
}

func (f *FakeClient) Update(ctx context.Context, id string, fields tracker.UpdateFields) error {
	f.record("update")
	if f.UpdateFunc != nil {
		return f.UpdateFunc(ctx, id, fields)
	}
	return nil
}

func (f *FakeClient) AddDependency(ctx context.Context, fromID, toID, depType string) error {
	f.record("dep_add")
	return nil
}

func (f *FakeClient) RemoveDependency(ctx context.Context, fromID, toID string) error {
	f.record("dep_remove")
	return nil
}

func (f *FakeClient) AddComment(ctx context.Context, id, author, text string) error {
	f.record("comment_add")
	return nil
}

func (f *FakeClient) ListComments(ctx context.Context, id string) ([]model.Comment, error) {
	f.record("comment_list")
	return nil, nil
}

func (f *FakeClient) Health(ctx context.Context) (tracker.Health, error) {
	f.record("health")
	if f.HealthFunc != nil {
		return f.HealthFunc(ctx)
	}
	return tracker.Health{Status: "healthy", Version: "test"}, nil
}

func (f *FakeClient) Status(ctx context.Context) (tracker.DaemonStatus, error) {
	f.record("status")
	if f.StatusFunc != nil {
		return f.StatusFunc(ctx)
	}
	return tracker.DaemonStatus{PID: 4242, Version: "test"}, nil
}

func (f *FakeClient) Mutations(ctx context.Context, sinceMs int64) ([]model.MutationEvent, error) {
	f.record("get_mutations")
	if f.MutationsFunc != nil {
		return f.MutationsFunc(ctx, sinceMs)
	}
	return nil, nil
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCount++
	return nil
}

var _ tracker.Client = (*FakeClient)(nil)

// Events builds a deterministic mutation batch starting at base, one event
// per second.
func Events(base time.Time, kinds ...model.MutationKind) []model.MutationEvent {
	events := make([]model.MutationEvent, len(kinds))
	for i, k := range kinds {
		events[i] = model.MutationEvent{
			Kind:      k,
			IssueID:   "bd-1",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
	}
	return events
}
