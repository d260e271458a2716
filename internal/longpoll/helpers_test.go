package longpoll

import (
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestRegistry[T any](opts ...Option) *Registry[T] {
	return NewRegistry[T](append([]Option{WithLogger(quietLogger())}, opts...)...)
}

// waitFor polls cond until it holds or timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for %s", timeout, what)
}

func constant[T any](v T) ObserveFunc[T] {
	return func() (T, bool) { return v, true }
}

func absent[T any]() ObserveFunc[T] {
	return func() (T, bool) {
		var zero T
		return zero, false
	}
}

// counting returns an observer producing 1, 2, 3, ... and the number of
// samples taken so far.
func counting() (ObserveFunc[int], *atomic.Int64) {
	var n atomic.Int64
	return func() (int, bool) {
		return int(n.Add(1)), true
	}, &n
}

func isRunning[T any](r *Registry[T], key string) func() bool {
	return func() bool {
		info, ok := r.Lookup(key)
		return ok && info.WorkState == Running
	}
}

func isGone[T any](r *Registry[T], key string) func() bool {
	return func() bool {
		_, ok := r.Lookup(key)
		return !ok
	}
}
