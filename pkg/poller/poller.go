// Package poller turns the tracker's request/response mutations endpoint
// into a stream of change notifications via fixed-interval polling.
//
// The poller keeps a monotonically non-decreasing cursor (milliseconds
// since epoch). A failed tick never advances the cursor, so no mutation is
// silently skipped; consecutive failures back off exponentially and the
// first success resets the interval to its base value.
package poller

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vanderheijden86/beadbridge/pkg/model"
	"github.com/vanderheijden86/beadbridge/pkg/tracker"
)

// DefaultInterval is the base tick interval.
const DefaultInterval = time.Second

// DefaultMaxDelay is the backoff ceiling after repeated failures.
const DefaultMaxDelay = 30 * time.Second

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the base tick interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxDelay sets the backoff ceiling.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.maxDelay = d
		}
	}
}

// WithCallTimeout bounds each poll call so a hung transport cannot block
// the next scheduled tick indefinitely.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.callTimeout = d
		}
	}
}

// WithCursor sets the initial cursor (milliseconds since epoch). Without
// it, polling starts at the current time so already-processed history is
// not replayed.
func WithCursor(ms int64) Option {
	return func(p *Poller) { p.cursor = ms }
}

// WithOnEvents sets the callback invoked with each successful non-empty
// batch, in cursor order. The cursor advances only after the callback
// returns, so a crash mid-delivery re-delivers rather than skips.
func WithOnEvents(fn func([]model.MutationEvent)) Option {
	return func(p *Poller) {
		if fn != nil {
			p.onEvents = fn
		}
	}
}

// WithOnHealth sets the callback for connection-health transitions. It
// fires once per failure streak and once on recovery, never per tick.
func WithOnHealth(fn func(healthy bool, err error)) Option {
	return func(p *Poller) {
		if fn != nil {
			p.onHealth = fn
		}
	}
}

// WithLogger sets a custom logger. Silent by default.
func WithLogger(logger *log.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// withWaitFunc replaces the inter-tick wait. Tests use it to observe the
// requested delays without sleeping.
func withWaitFunc(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) { p.wait = fn }
}

// Poller polls a tracker client for mutations on a fixed interval.
type Poller struct {
	client      tracker.Client
	interval    time.Duration
	maxDelay    time.Duration
	callTimeout time.Duration
	onEvents    func([]model.MutationEvent)
	onHealth    func(bool, error)
	logger      *log.Logger
	wait        func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	cursor  int64
	failing bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a poller over the given client. Call Start to begin ticking.
func New(client tracker.Client, opts ...Option) *Poller {
	p := &Poller{
		client:      client,
		interval:    DefaultInterval,
		maxDelay:    DefaultMaxDelay,
		callTimeout: 5 * time.Second,
		onEvents:    func([]model.MutationEvent) {},
		onHealth:    func(bool, error) {},
		logger:      log.New(io.Discard, "", 0),
		wait:        sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Start launches the poll loop. It is an error to start twice without an
// intervening Stop.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	if p.cursor == 0 {
		p.cursor = time.Now().UnixMilli()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.started = true

	go p.loop(ctx)
}

// Stop cancels the loop and waits for the in-flight tick to finish, so no
// callback fires after Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
}

// Cursor returns the current cursor (milliseconds since epoch).
func (p *Poller) Cursor() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.interval
	bo.MaxInterval = p.maxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		delay := p.interval
		if err := p.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			delay = bo.NextBackOff()
			if delay == backoff.Stop || delay > p.maxDelay {
				delay = p.maxDelay
			}
			p.logger.Printf("poll failed, next attempt in %v: %v", delay, err)
		} else {
			bo.Reset()
		}

		if err := p.wait(ctx, delay); err != nil {
			return
		}
	}
}

// tick performs one poll. The cursor advances only on success, after the
// events callback has returned.
func (p *Poller) tick(ctx context.Context) error {
	p.mu.Lock()
	cursor := p.cursor
	p.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	events, err := p.client.Mutations(callCtx, cursor)
	cancel()

	if err != nil {
		p.noteFailure(err)
		return err
	}
	if ctx.Err() != nil {
		// Cancelled while the response was in flight; discard it so a
		// disposed poller never applies state.
		return ctx.Err()
	}

	p.noteSuccess()

	// Guard against re-delivery: only events strictly past the cursor
	// count, and the cursor moves to the maximum timestamp observed.
	fresh := events[:0]
	maxTs := cursor
	for _, ev := range events {
		ts := ev.CursorMs()
		if ts <= cursor {
			continue
		}
		fresh = append(fresh, ev)
		if ts > maxTs {
			maxTs = ts
		}
	}

	if len(fresh) > 0 {
		p.onEvents(fresh)
	}

	p.mu.Lock()
	if maxTs > p.cursor {
		p.cursor = maxTs
	}
	p.mu.Unlock()
	return nil
}

// noteFailure flips the health flag and reports the first failure of a
// streak.
func (p *Poller) noteFailure(err error) {
	p.mu.Lock()
	first := !p.failing
	p.failing = true
	p.mu.Unlock()
	if first {
		p.onHealth(false, err)
	}
}

// noteSuccess reports recovery after a failure streak.
func (p *Poller) noteSuccess() {
	p.mu.Lock()
	recovered := p.failing
	p.failing = false
	p.mu.Unlock()
	if recovered {
		p.onHealth(true, nil)
	}
}
