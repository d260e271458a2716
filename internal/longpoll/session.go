package longpoll

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/agent-racer/longpoll/internal/status"
	"github.com/google/uuid"
)

// WorkState says whether a session has a transaction in flight.
type WorkState int

const (
	Resting WorkState = iota
	Running
)

var workStateNames = map[WorkState]string{
	Resting: "resting",
	Running: "running",
}

func (w WorkState) String() string {
	if s, ok := workStateNames[w]; ok {
		return s
	}
	return "unknown"
}

// Code maps the work state onto the status table.
func (w WorkState) Code() status.Code {
	if w == Running {
		return status.Working
	}
	return status.Rest
}

// Session is the server-side state for one polled key. At most one
// transaction runs per session; Poll enforces that with a check-and-set on
// the work state rather than by blocking.
type Session[T any] struct {
	key    string
	id     string
	cfg    Config[T]
	logger *log.Logger

	mu      sync.Mutex // protects the fields below
	state   WorkState
	pending status.Code
	stopped bool
	stop    chan struct{} // closed once, by requestStop
	idle    chan struct{} // closed when the running transaction returns; nil while resting
	last    status.Response[T]

	// Owned by whichever goroutine holds the Running state.
	lastValue T
	hasValue  bool
}

func newSession[T any](key string, cfg Config[T], logger *log.Logger) *Session[T] {
	return &Session[T]{
		key:    key,
		id:     uuid.NewString(),
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
		last:   status.NewResponse(status.None, *new(T)),
	}
}

func (s *Session[T]) Key() string { return s.key }

// ID distinguishes this session from earlier ones created under the same key.
func (s *Session[T]) ID() string { return s.id }

func (s *Session[T]) WorkState() WorkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session[T]) PendingCommand() status.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// LastResponse returns the response of the most recent finished poll.
func (s *Session[T]) LastResponse() status.Response[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Poll runs one transaction and blocks until it ends. It reports
// AlreadyRunning when another transaction is in flight and Dead once the
// session has been told to stop.
func (s *Session[T]) Poll(ctx context.Context) status.Response[T] {
	if code := s.acquire(); code != status.None {
		return s.LastResponse().WithStatus(code)
	}

	done := make(chan status.Response[T], 1)
	go func() {
		done <- s.run(ctx)
	}()
	resp := <-done

	if !resp.Updated {
		if code := s.PendingCommand(); code != status.None {
			resp = resp.WithStatus(code)
		}
	}

	s.release(resp)
	return resp
}

func (s *Session[T]) acquire() status.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return status.Dead
	}
	if s.state == Running {
		return status.AlreadyRunning
	}
	s.state = Running
	s.idle = make(chan struct{})
	return status.None
}

func (s *Session[T]) release(resp status.Response[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Resting
	s.last = resp
	close(s.idle)
	s.idle = nil
}

// requestStop records code and wakes the running transaction, if any.
// Only the first call has an effect; the session accepts no polls after it.
func (s *Session[T]) requestStop(code status.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.pending = code
	close(s.stop)
}

// waitIdle blocks until no transaction is running. A timeout <= 0 waits
// indefinitely. It returns false if the timeout elapsed first.
func (s *Session[T]) waitIdle(timeout time.Duration) bool {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	if idle == nil {
		return true
	}
	if timeout <= 0 {
		<-idle
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-idle:
		return true
	case <-t.C:
		return false
	}
}
