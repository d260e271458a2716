package longpoll

import (
	"sync"
	"time"

	"github.com/agent-racer/longpoll/internal/status"
)

type lifecycleState int

const (
	lifecycleActive lifecycleState = iota
	lifecycleExpired
	lifecycleCancelled
)

// lifecycle is a session's time-to-live. It runs on its own goroutine
// regardless of whether a transaction is in flight, and ends by calling
// teardown exactly once with the code that ended it.
type lifecycle struct {
	lifetime time.Duration
	teardown func(code status.Code)

	mu       sync.Mutex
	state    lifecycleState
	deadline time.Time

	cancelCh chan struct{}
	doneCh   chan struct{}
}

func newLifecycle(lifetime time.Duration, teardown func(code status.Code)) *lifecycle {
	return &lifecycle{
		lifetime: lifetime,
		teardown: teardown,
		deadline: time.Now().Add(lifetime),
		cancelCh: make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (l *lifecycle) start() {
	go l.run()
}

func (l *lifecycle) run() {
	defer close(l.doneCh)

	timer := time.NewTimer(l.lifetime)
	defer timer.Stop()

	for {
		select {
		case <-l.cancelCh:
			l.teardown(status.Destroy)
			return
		case <-timer.C:
			left, active := l.tryExpire()
			if !active {
				// cancel() won the race; cancelCh is already closed.
				continue
			}
			if left > 0 {
				timer.Reset(left)
				continue
			}
			l.teardown(status.LifetimeExpired)
			return
		}
	}
}

// tryExpire moves an active lifecycle whose deadline has passed to
// expired. A positive duration means a refresh pushed the deadline out.
func (l *lifecycle) tryExpire() (left time.Duration, active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != lifecycleActive {
		return 0, false
	}
	if left = time.Until(l.deadline); left > 0 {
		return left, true
	}
	l.state = lifecycleExpired
	return 0, true
}

// refresh extends the deadline to now+lifetime. It fails once the
// lifecycle has ended.
func (l *lifecycle) refresh() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != lifecycleActive {
		return false
	}
	l.deadline = time.Now().Add(l.lifetime)
	return true
}

// cancel ends an active lifecycle. Returns false if it had already ended.
func (l *lifecycle) cancel() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != lifecycleActive {
		return false
	}
	l.state = lifecycleCancelled
	close(l.cancelCh)
	return true
}

func (l *lifecycle) active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == lifecycleActive
}

func (l *lifecycle) expiry() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deadline
}

// done is closed after teardown has returned.
func (l *lifecycle) done() <-chan struct{} {
	return l.doneCh
}
