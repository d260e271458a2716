// Package longpoll implements server-side long-polling sessions.
//
// A Registry maps keys to sessions. Each session pairs a transaction
// runner, which samples an observer until it sees a change, times out or
// is stopped, with a lifecycle timer that tears the session down when
// nobody has polled it for its lifetime.
package longpoll

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/agent-racer/longpoll/internal/status"
	"golang.org/x/sync/errgroup"
)

type entry[T any] struct {
	key     string
	session *Session[T]
	timer   *lifecycle
}

// Info is a point-in-time view of one registered session.
type Info struct {
	Key            string
	ID             string
	WorkState      WorkState
	Deadline       time.Time
	PendingCommand status.Code
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	teardownTimeout time.Duration
	events          chan<- Event
	logger          *log.Logger
}

// WithTeardownTimeout bounds how long teardown waits for an in-flight
// transaction to notice the stop. After that the session is evicted
// anyway and the runner is left to finish on its own. Zero waits forever.
func WithTeardownTimeout(d time.Duration) Option {
	return func(o *options) { o.teardownTimeout = d }
}

// WithEvents delivers lifecycle events on ch. Sends never block; events
// are dropped when ch is full.
func WithEvents(ch chan<- Event) Option {
	return func(o *options) { o.events = ch }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Registry owns every live session and its lifecycle timer. The two are
// inserted and removed together under mu; mu is never held while polling,
// so callers on different keys never wait for each other.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	closed  bool

	teardownTimeout time.Duration
	events          chan<- Event
	logger          *log.Logger

	dropMu      sync.Mutex
	dropped     int64
	lastDropLog time.Time
}

func NewRegistry[T any](opts ...Option) *Registry[T] {
	o := options{logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry[T]{
		entries:         make(map[string]*entry[T]),
		teardownTimeout: o.teardownTimeout,
		events:          o.events,
		logger:          o.logger,
	}
}

// Start polls key, creating its session from cfg if the key is new. For an
// existing key cfg is ignored and the lifecycle deadline is pushed out to
// now+lifetime before polling. A lifetime <= 0 means DefaultLifetime.
//
// The call blocks for the length of one transaction. An invalid cfg is a
// programming error and panics.
func (r *Registry[T]) Start(ctx context.Context, key string, lifetime time.Duration, cfg Config[T]) status.Response[T] {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("longpoll: start %q: %v", key, err))
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return status.NewResponse(status.Dead, *new(T))
	}
	e, existed := r.entries[key]
	if !existed {
		e = r.createLocked(key, lifetime, cfg)
	}
	r.mu.Unlock()

	if !existed {
		r.logger.Printf("Created session %s (%s), lifetime %v", key, e.session.ID(), lifetime)
		r.emit(Event{Type: EventCreated, Key: key, SessionID: e.session.ID()})
	} else if !e.timer.refresh() {
		return r.polled(e, e.session.LastResponse().WithStatus(status.Dead))
	}

	return r.polled(e, e.session.Poll(ctx))
}

// Poll polls an existing key without creating it, refreshing its
// lifecycle like Start does. Unknown keys report Dead.
func (r *Registry[T]) Poll(ctx context.Context, key string) status.Response[T] {
	r.mu.Lock()
	e := r.entries[key]
	r.mu.Unlock()

	if e == nil {
		return status.NewResponse(status.Dead, *new(T))
	}
	if !e.timer.refresh() {
		return r.polled(e, e.session.LastResponse().WithStatus(status.Dead))
	}
	return r.polled(e, e.session.Poll(ctx))
}

// Destroy stops key's session and waits for its teardown. On return the key
// is gone from the registry. Unknown keys are a no-op.
func (r *Registry[T]) Destroy(key string) {
	r.mu.Lock()
	e := r.entries[key]
	r.mu.Unlock()

	if e == nil {
		return
	}
	e.timer.cancel()
	<-e.timer.done()
	r.evict(e)
}

// Close destroys every live session concurrently and makes later Start
// calls report Dead. It returns ctx's error if teardown outlives ctx.
func (r *Registry[T]) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	live := make([]*entry[T], 0, len(r.entries))
	for _, e := range r.entries {
		live = append(live, e)
	}
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range live {
		e := e
		g.Go(func() error {
			e.timer.cancel()
			select {
			case <-e.timer.done():
				r.evict(e)
				return nil
			case <-gctx.Done():
				return fmt.Errorf("closing session %s: %w", e.key, gctx.Err())
			}
		})
	}
	return g.Wait()
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Keys returns the live keys in sorted order.
func (r *Registry[T]) Keys() []string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.Unlock()
	sort.Strings(keys)
	return keys
}

func (r *Registry[T]) Lookup(key string) (Info, bool) {
	r.mu.Lock()
	e := r.entries[key]
	r.mu.Unlock()
	if e == nil {
		return Info{}, false
	}
	return Info{
		Key:            key,
		ID:             e.session.ID(),
		WorkState:      e.session.WorkState(),
		Deadline:       e.timer.expiry(),
		PendingCommand: e.session.PendingCommand(),
	}, true
}

// createLocked builds and registers a session with its lifecycle. Caller
// must hold r.mu.
func (r *Registry[T]) createLocked(key string, lifetime time.Duration, cfg Config[T]) *entry[T] {
	e := &entry[T]{key: key, session: newSession(key, cfg, r.logger)}
	e.timer = newLifecycle(lifetime, func(code status.Code) {
		r.teardown(e, code)
	})
	r.entries[key] = e
	e.timer.start()
	return e
}

// teardown runs on the lifecycle goroutine once the lifecycle has ended.
func (r *Registry[T]) teardown(e *entry[T], code status.Code) {
	e.session.requestStop(code)
	if !e.session.waitIdle(r.teardownTimeout) {
		r.logger.Printf("Session %s still running %v after stop, abandoning it", e.key, r.teardownTimeout)
	}
	r.evict(e)

	evType := EventDestroyed
	if code == status.LifetimeExpired {
		evType = EventExpired
	}
	r.logger.Printf("Session %s (%s) %s", e.key, e.session.ID(), evType)
	r.emit(Event{Type: evType, Key: e.key, SessionID: e.session.ID(), Status: code})
}

// evict removes e if the key still maps to it. A newer session created
// under the same key is left alone.
func (r *Registry[T]) evict(e *entry[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[e.key]; ok && cur == e {
		delete(r.entries, e.key)
	}
}

func (r *Registry[T]) polled(e *entry[T], resp status.Response[T]) status.Response[T] {
	r.emit(Event{
		Type:      EventPolled,
		Key:       e.key,
		SessionID: e.session.ID(),
		Status:    resp.StatusCode,
		Updated:   resp.Updated,
	})
	return resp
}

// emit sends ev without blocking. Dropped events are counted and logged
// at most once per 10 seconds.
func (r *Registry[T]) emit(ev Event) {
	if r.events == nil {
		return
	}
	ev.Live = r.Len()
	ev.At = time.Now()
	select {
	case r.events <- ev:
	default:
		r.dropMu.Lock()
		defer r.dropMu.Unlock()
		r.dropped++
		now := time.Now()
		if r.lastDropLog.IsZero() || now.Sub(r.lastDropLog) >= 10*time.Second {
			r.logger.Printf("Registry events dropped: %d (channel full)", r.dropped)
			r.dropped = 0
			r.lastDropLog = now
		}
	}
}
