package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vanderheijden86/beadbridge/pkg/events"
	"github.com/vanderheijden86/beadbridge/pkg/model"
	"github.com/vanderheijden86/beadbridge/pkg/poller"
	"github.com/vanderheijden86/beadbridge/pkg/tracker"
)

// Common errors.
var (
	ErrUnknownProject  = errors.New("unknown project")
	ErrNoActiveProject = errors.New("no active project")
)

// ClientFactory builds a tracker client bound to one project. Dial failures
// surface as *tracker.ConnectionError.
type ClientFactory func(ctx context.Context, p model.Project) (tracker.Client, error)

// DaemonStarter launches the backing daemon for a project.
type DaemonStarter func(ctx context.Context, p model.Project) error

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClientFactory sets how clients are built for activated projects.
func WithClientFactory(f ClientFactory) ManagerOption {
	return func(m *Manager) {
		if f != nil {
			m.factory = f
		}
	}
}

// WithDaemonStarter sets the daemon auto-start hook.
func WithDaemonStarter(s DaemonStarter) ManagerOption {
	return func(m *Manager) { m.starter = s }
}

// WithDaemonStopper sets the hook used to stop the active project's daemon.
func WithDaemonStopper(s DaemonStarter) ManagerOption {
	return func(m *Manager) { m.stopper = s }
}

// WithAutoStart enables or disables the single-shot daemon start attempt
// when the initial health check cannot reach the backend.
func WithAutoStart(enabled bool) ManagerOption {
	return func(m *Manager) { m.autoStart = enabled }
}

// WithPollInterval sets the mutation poll interval for activated projects.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithPollMaxDelay sets the poll backoff ceiling.
func WithPollMaxDelay(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.pollMaxDelay = d
		}
	}
}

// WithManagerLogger sets a custom logger. Silent by default.
func WithManagerLogger(logger *log.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager orchestrates discovery, activation, and connection lifecycle. At
// most one client and poller pair is alive per process, bound to the active
// project; every other discovered project is an inert record.
type Manager struct {
	factory      ClientFactory
	starter      DaemonStarter
	stopper      DaemonStarter
	autoStart    bool
	pollInterval time.Duration
	pollMaxDelay time.Duration
	logger       *log.Logger

	// Projects fires on every discovery pass with the full replacement set.
	Projects events.Feed[[]model.Project]
	// Active fires when the active project changes or its connection state
	// moves. A zero-ID project means nothing is active.
	Active events.Feed[model.Project]
	// Data fires with each delivered mutation batch; a nil batch signals a
	// manual refresh.
	Data events.Feed[[]model.MutationEvent]

	// opMu serializes activation transitions so two SetActive calls can
	// never interleave their teardown and setup.
	opMu sync.Mutex
	sf   singleflight.Group

	mu       sync.Mutex
	projects map[string]model.Project
	order    []string
	activeID string
	client   tracker.Client
	poller   *poller.Poller
	// gen invalidates callbacks from a torn-down pair: any in-flight result
	// carrying an older generation is discarded, never applied.
	gen uint64
}

// NewManager builds a manager. A client factory must be supplied via
// WithClientFactory before any project can be activated.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		autoStart:    true,
		pollInterval: poller.DefaultInterval,
		pollMaxDelay: poller.DefaultMaxDelay,
		logger:       log.New(io.Discard, "", 0),
		projects:     make(map[string]model.Project),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetLogger sets a custom logger for lifecycle reporting.
func (m *Manager) SetLogger(logger *log.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Discover scans the roots and atomically replaces the project set.
// Connection state and PID carry over for projects that persist across
// scans. If the active project vanished, its pair is torn down.
func (m *Manager) Discover(ctx context.Context, roots []string, maxDepth int) ([]model.Project, error) {
	scanned, err := Scan(ctx, roots, maxDepth)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	next := make(map[string]model.Project, len(scanned))
	order := make([]string, 0, len(scanned))
	for _, p := range scanned {
		if prev, ok := m.projects[p.ID]; ok {
			p.Connection = prev.Connection
			p.PID = prev.PID
		}
		next[p.ID] = p
		order = append(order, p.ID)
	}
	m.projects = next
	m.order = order
	activeGone := m.activeID != "" && !containsID(order, m.activeID)
	m.mu.Unlock()

	if activeGone {
		m.logger.Printf("active project disappeared during rescan, deactivating")
		m.Deactivate()
	}

	set := m.ProjectList()
	m.Projects.Publish(set)
	return set, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ProjectList returns the current project set in scan order.
func (m *Manager) ProjectList() []model.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Project, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.projects[id])
	}
	return out
}

// ActiveProject returns the active project record, if any.
func (m *Manager) ActiveProject() (model.Project, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeID == "" {
		return model.Project{}, false
	}
	p, ok := m.projects[m.activeID]
	return p, ok
}

// Client returns the live client for the active project, or an error when
// nothing is connected.
func (m *Manager) Client() (tracker.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeID == "" {
		return nil, ErrNoActiveProject
	}
	if m.client == nil {
		return nil, &tracker.ConnectionError{Endpoint: m.activeID, Err: errors.New("not connected")}
	}
	return m.client, nil
}

// SetActive activates a project: the previous pair is torn down (poller
// stopped before the client is released), a new client is dialed, and on an
// unreachable backend the daemon is started once when auto-start is on.
// Activating the already-active project is a no-op.
func (m *Manager) SetActive(ctx context.Context, projectID string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.activeID == projectID && m.client != nil {
		m.mu.Unlock()
		return nil
	}
	p, ok := m.projects[projectID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProject, projectID)
	}

	m.mu.Lock()
	prev := m.activeID
	m.mu.Unlock()

	gen := m.teardown()

	m.mu.Lock()
	m.activeID = projectID
	m.mu.Unlock()

	if prev != "" && prev != projectID {
		// Explicit stop of the previous pair.
		m.setConnection(prev, model.ConnDisconnected, 0)
	}

	return m.activatePair(ctx, p, gen)
}

// activatePair dials the project and, on success, installs the client and
// poller pair. Results from a superseded generation are discarded, never
// applied. Callers hold opMu.
func (m *Manager) activatePair(ctx context.Context, p model.Project, gen uint64) error {
	client, pid, err := m.connect(ctx, p)

	m.mu.Lock()
	stale := m.gen != gen || m.activeID != p.ID
	m.mu.Unlock()
	if stale {
		// A later transition or shutdown won the race; this result must
		// never be applied.
		if client != nil {
			client.Close()
		}
		return nil
	}

	if err != nil {
		m.logger.Printf("project %s unreachable: %v", p.ID, err)
		m.setConnection(p.ID, model.ConnDisconnected, 0)
		return err
	}

	projectID := p.ID
	pl := poller.New(client,
		poller.WithInterval(m.pollInterval),
		poller.WithMaxDelay(m.pollMaxDelay),
		poller.WithLogger(m.logger),
		poller.WithOnEvents(func(evs []model.MutationEvent) {
			if m.generation() != gen {
				return
			}
			m.Data.Publish(evs)
		}),
		poller.WithOnHealth(func(healthy bool, herr error) {
			if m.generation() != gen {
				return
			}
			state := model.ConnConnected
			if !healthy {
				state = model.ConnDisconnected
				m.logger.Printf("project %s connection degraded: %v", projectID, herr)
			}
			m.setConnection(projectID, state, -1)
		}),
	)

	m.mu.Lock()
	m.client = client
	m.poller = pl
	m.mu.Unlock()

	pl.Start()
	m.setConnection(projectID, model.ConnConnected, pid)
	return nil
}

// connect dials the project and verifies health. On a connection-class
// failure with auto-start enabled, it starts the daemon once and redials;
// it never spawns twice. Returns the backing daemon PID when known.
func (m *Manager) connect(ctx context.Context, p model.Project) (tracker.Client, int, error) {
	client, pid, err := m.dialAndProbe(ctx, p)
	if err == nil {
		return client, pid, nil
	}
	if !m.autoStart || m.starter == nil || !tracker.IsConnectionError(err) {
		return nil, 0, err
	}

	m.logger.Printf("project %s: starting daemon after failed probe: %v", p.ID, err)
	if serr := m.starter(ctx, p); serr != nil {
		return nil, 0, fmt.Errorf("daemon start failed: %w", serr)
	}
	return m.dialAndProbe(ctx, p)
}

func (m *Manager) dialAndProbe(ctx context.Context, p model.Project) (tracker.Client, int, error) {
	client, err := m.factory(ctx, p)
	if err != nil {
		return nil, 0, err
	}
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, 0, err
	}
	pid := 0
	if st, err := client.Status(ctx); err == nil {
		pid = st.PID
	}
	return client, pid, nil
}

// EnsureConnected verifies the active project's connection, redialing (and
// auto-starting the daemon once) when it is down. Concurrent callers share
// one in-flight attempt, so two daemons are never spawned for the same
// project.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	m.mu.Lock()
	id := m.activeID
	client := m.client
	m.mu.Unlock()
	if id == "" {
		return ErrNoActiveProject
	}

	if client != nil {
		if _, err := client.Health(ctx); err == nil {
			return nil
		}
	}

	_, err, _ := m.sf.Do(id, func() (any, error) {
		return nil, m.reconnect(ctx, id)
	})
	return err
}

// reconnect tears down the stale pair and redials the given project while
// keeping it selected, so concurrent observers never see the selection
// flicker through empty.
func (m *Manager) reconnect(ctx context.Context, id string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	p, ok := m.projects[id]
	current := m.activeID
	m.mu.Unlock()
	if !ok || current != id {
		// The selection moved on while we waited; nothing to repair.
		return nil
	}

	gen := m.teardown()
	return m.activatePair(ctx, p, gen)
}

// Deactivate tears down the active pair and clears the selection.
func (m *Manager) Deactivate() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.teardown()

	m.mu.Lock()
	prev := m.activeID
	m.activeID = ""
	m.mu.Unlock()

	if prev != "" {
		m.setConnection(prev, model.ConnDisconnected, 0)
		m.Active.Publish(model.Project{})
	}
}

// Stop shuts the manager down, releasing the live pair.
func (m *Manager) Stop() {
	m.Deactivate()
}

// Refresh signals consumers to re-fetch. A nil batch distinguishes a manual
// refresh from polled mutations.
func (m *Manager) Refresh() {
	m.Data.Publish(nil)
}

// StartDaemon launches the active project's daemon and reconnects.
func (m *Manager) StartDaemon(ctx context.Context) error {
	p, ok := m.ActiveProject()
	if !ok {
		return ErrNoActiveProject
	}
	if m.starter == nil {
		return errors.New("no daemon starter configured")
	}
	if err := m.starter(ctx, p); err != nil {
		return err
	}
	return m.EnsureConnected(ctx)
}

// StopDaemon stops the active project's daemon and tears down the pair.
func (m *Manager) StopDaemon(ctx context.Context) error {
	p, ok := m.ActiveProject()
	if !ok {
		return ErrNoActiveProject
	}
	if m.stopper == nil {
		return errors.New("no daemon stopper configured")
	}

	// Release the socket before asking the daemon to exit.
	m.opMu.Lock()
	m.teardown()
	m.opMu.Unlock()
	m.setConnection(p.ID, model.ConnDisconnected, 0)

	return m.stopper(ctx, p)
}

// teardown stops the poller before closing the client, so no in-flight poll
// references a released client, and bumps the generation so late callbacks
// are discarded. Returns the new generation.
func (m *Manager) teardown() uint64 {
	m.mu.Lock()
	pl, cl := m.poller, m.client
	m.poller, m.client = nil, nil
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	if pl != nil {
		pl.Stop()
	}
	if cl != nil {
		cl.Close()
	}
	return gen
}

func (m *Manager) generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// setConnection records a state transition for one project and publishes
// the updated record. pid < 0 leaves the stored PID untouched.
func (m *Manager) setConnection(projectID string, state model.ConnectionState, pid int) {
	m.mu.Lock()
	p, ok := m.projects[projectID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if !p.Connection.CanTransition(state) {
		m.mu.Unlock()
		m.logger.Printf("project %s: invalid transition %s -> %s dropped", projectID, p.Connection, state)
		return
	}
	p.Connection = state
	if pid >= 0 {
		p.PID = pid
	}
	if state == model.ConnDisconnected {
		p.PID = 0
	}
	m.projects[projectID] = p
	isActive := m.activeID == projectID
	m.mu.Unlock()

	m.Projects.Publish(m.ProjectList())
	if isActive {
		m.Active.Publish(p)
	}
}
