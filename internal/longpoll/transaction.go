package longpoll

import (
	"context"
	"time"

	"github.com/agent-racer/longpoll/internal/status"
)

// run samples Observe until it sees an update, the transaction times out,
// the session is stopped, or ctx is done. It is called on its own
// goroutine by Poll, which holds the Running state for the duration.
//
// Absent samples are not failures: the loop keeps sampling until data
// shows up or time runs out. The very first value a session ever sees
// always counts as an update.
func (s *Session[T]) run(ctx context.Context) (resp status.Response[T]) {
	resp = status.NewResponse(status.None, s.lastValue)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("Session %s: observer panicked: %v", s.key, r)
			resp.Updated = false
		}
	}()

	deadline := time.Now().Add(s.cfg.TransactionTimeout)
	sleep := time.NewTimer(s.cfg.PollInterval)
	sleep.Stop()
	defer sleep.Stop()

	for {
		select {
		case <-s.stop:
			return resp
		case <-ctx.Done():
			return resp
		default:
		}

		if !time.Now().Before(deadline) {
			return resp.WithStatus(status.TransactionTimeout)
		}

		value, ok := s.cfg.Observe()
		if !ok {
			resp = resp.WithStatus(status.NoData)
		} else {
			resp = resp.WithStatus(status.None)
			resp.Data = value
			if !s.hasValue || s.cfg.IsChanged(value, s.lastValue) {
				s.lastValue = value
				s.hasValue = true
				resp.Updated = true
				return resp
			}
		}

		sleep.Reset(s.cfg.PollInterval)
		select {
		case <-s.stop:
			return resp
		case <-ctx.Done():
			return resp
		case <-sleep.C:
		}
	}
}
