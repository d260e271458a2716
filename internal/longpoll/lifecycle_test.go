package longpoll

import (
	"testing"
	"time"

	"github.com/agent-racer/longpoll/internal/status"
)

func TestLifecycleExpires(t *testing.T) {
	codes := make(chan status.Code, 1)
	l := newLifecycle(20*time.Millisecond, func(c status.Code) { codes <- c })
	l.start()

	select {
	case c := <-codes:
		if c != status.LifetimeExpired {
			t.Errorf("teardown code = %v, want SYSTEM_COMMAND", c)
		}
	case <-time.After(time.Second):
		t.Fatal("lifecycle did not expire")
	}
	<-l.done()

	if l.active() {
		t.Error("active() = true after expiry")
	}
	if l.refresh() {
		t.Error("refresh() succeeded after expiry")
	}
	if l.cancel() {
		t.Error("cancel() succeeded after expiry")
	}
}

func TestLifecycleCancel(t *testing.T) {
	codes := make(chan status.Code, 1)
	l := newLifecycle(time.Hour, func(c status.Code) { codes <- c })
	l.start()

	if !l.cancel() {
		t.Fatal("cancel() = false on active lifecycle")
	}
	if l.cancel() {
		t.Error("second cancel() = true, want false")
	}

	select {
	case <-l.done():
	case <-time.After(time.Second):
		t.Fatal("lifecycle did not finish after cancel")
	}
	if c := <-codes; c != status.Destroy {
		t.Errorf("teardown code = %v, want DESTROY_COMMAND", c)
	}
}

func TestLifecycleRefreshPushesDeadline(t *testing.T) {
	codes := make(chan status.Code, 1)
	l := newLifecycle(60*time.Millisecond, func(c status.Code) { codes <- c })
	start := time.Now()
	l.start()

	time.Sleep(40 * time.Millisecond)
	if !l.refresh() {
		t.Fatal("refresh() = false while active")
	}

	select {
	case <-codes:
		if elapsed := time.Since(start); elapsed < 95*time.Millisecond {
			t.Errorf("expired after %v, want >= 100ms after the refresh", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("lifecycle did not expire after refresh")
	}
}
