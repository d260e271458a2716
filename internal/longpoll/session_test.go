package longpoll

import (
	"context"
	"testing"
	"time"

	"github.com/agent-racer/longpoll/internal/status"
)

func testSession(cfg Config[int]) *Session[int] {
	return newSession("k", cfg.withDefaults(), quietLogger())
}

func TestWorkStateCodes(t *testing.T) {
	if Resting.Code() != status.Rest || Running.Code() != status.Working {
		t.Errorf("Code() = %v/%v, want REST/WORKING", Resting.Code(), Running.Code())
	}
	if Running.String() != "running" {
		t.Errorf("Running.String() = %q", Running.String())
	}
}

func TestRequestStopIsIdempotent(t *testing.T) {
	s := testSession(Config[int]{Observe: constant(1), IsChanged: Equal[int]()})

	s.requestStop(status.LifetimeExpired)
	s.requestStop(status.Destroy)

	if got := s.PendingCommand(); got != status.LifetimeExpired {
		t.Errorf("PendingCommand = %v, want the first code SYSTEM_COMMAND", got)
	}
	if !s.waitIdle(0) {
		t.Error("waitIdle on a resting session returned false")
	}
}

func TestPollAfterStopIsDead(t *testing.T) {
	var calls int
	s := testSession(Config[int]{
		Observe:   func() (int, bool) { calls++; return 1, true },
		IsChanged: Equal[int](),
	})
	s.requestStop(status.Destroy)

	resp := s.Poll(context.Background())
	if resp.StatusCode != status.Dead {
		t.Errorf("StatusCode = %v, want DEAD", resp.StatusCode)
	}
	if calls != 0 {
		t.Errorf("observe called %d times on a stopped session", calls)
	}
	if s.WorkState() != Resting {
		t.Errorf("WorkState = %v, want resting", s.WorkState())
	}
}

func TestStopWinsOverNoData(t *testing.T) {
	s := testSession(Config[int]{
		Observe:            absent[int](),
		IsChanged:          Equal[int](),
		PollInterval:       time.Hour,
		TransactionTimeout: time.Hour,
	})

	done := make(chan status.Response[int], 1)
	go func() { done <- s.Poll(context.Background()) }()
	deadline := time.Now().Add(time.Second)
	for s.WorkState() != Running && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	s.requestStop(status.Destroy)
	if !s.waitIdle(time.Second) {
		t.Fatal("transaction did not notice the stop")
	}
	resp := <-done
	if resp.StatusCode != status.Destroy {
		t.Errorf("StatusCode = %v, want DESTROY_COMMAND over NO_DATA", resp.StatusCode)
	}
	if got := s.LastResponse(); got != resp {
		t.Errorf("LastResponse = %v, want %v", got, resp)
	}
}

func TestFirstObservationIsUpdate(t *testing.T) {
	observe, _ := counting()
	s := testSession(Config[int]{Observe: observe, IsChanged: Equal[int]()})

	resp := s.Poll(context.Background())
	if !resp.Updated || resp.StatusCode != status.None || resp.Data != 1 {
		t.Errorf("resp = %v, want updated 1 with UNDEFINED", resp)
	}
}
