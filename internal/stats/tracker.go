// Package stats keeps aggregate counters over long-poll registry events
// and persists them between runs.
package stats

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/agent-racer/longpoll/internal/longpoll"
)

// Tracker consumes registry events and keeps aggregate Stats. Hand the
// channel from NewTracker to longpoll.WithEvents and run Run in a goroutine.
type Tracker struct {
	persist      *Store
	saveInterval time.Duration
	events       chan longpoll.Event

	mu    sync.Mutex
	stats *Stats
	dirty bool
}

// NewTracker loads existing stats from persist and returns the tracker
// with the send side of its event channel.
func NewTracker(persist *Store, saveInterval time.Duration, buffer int) (*Tracker, chan<- longpoll.Event, error) {
	st, err := persist.Load()
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan longpoll.Event, buffer)
	return &Tracker{
		persist:      persist,
		saveInterval: saveInterval,
		events:       ch,
		stats:        st,
	}, ch, nil
}

// Run processes events and saves dirty stats every save interval. It
// drains whatever is already queued and saves once more when ctx ends.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.drain()
			t.save()
			return
		case ev := <-t.events:
			t.record(ev)
		case <-ticker.C:
			t.save()
		}
	}
}

// Stats returns a copy of the current counters.
func (t *Tracker) Stats() *Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats.clone()
}

func (t *Tracker) drain() {
	for {
		select {
		case ev := <-t.events:
			t.record(ev)
		default:
			return
		}
	}
}

func (t *Tracker) record(ev longpoll.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case longpoll.EventCreated:
		t.stats.SessionsCreated++
	case longpoll.EventPolled:
		t.stats.Polls++
		if ev.Updated {
			t.stats.Updates++
		}
		t.stats.ByStatus[ev.Status.String()]++
	case longpoll.EventExpired:
		t.stats.Expired++
	case longpoll.EventDestroyed:
		t.stats.Destroyed++
	}
	if ev.Live > t.stats.MaxLive {
		t.stats.MaxLive = ev.Live
	}
	t.dirty = true
}

func (t *Tracker) save() {
	t.mu.Lock()
	if !t.dirty {
		t.mu.Unlock()
		return
	}
	snap := t.stats.clone()
	t.dirty = false
	t.mu.Unlock()

	if err := t.persist.Save(snap); err != nil {
		log.Printf("Failed to save stats: %v", err)
		t.mu.Lock()
		t.dirty = true
		t.mu.Unlock()
	}
}
