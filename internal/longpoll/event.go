package longpoll

import (
	"time"

	"github.com/agent-racer/longpoll/internal/status"
)

// EventType classifies registry lifecycle events.
type EventType int

const (
	EventCreated   EventType = iota // session created on first Start for a key
	EventPolled                     // a Start or Poll call returned
	EventExpired                    // lifetime ran out and the key was evicted
	EventDestroyed                  // Destroy or Close evicted the key
)

var eventTypeNames = map[EventType]string{
	EventCreated:   "created",
	EventPolled:    "polled",
	EventExpired:   "expired",
	EventDestroyed: "destroyed",
}

func (t EventType) String() string {
	if s, ok := eventTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// Event carries a snapshot of a registry change to observers.
type Event struct {
	Type      EventType
	Key       string
	SessionID string
	Status    status.Code // EventPolled only
	Updated   bool        // EventPolled only
	Live      int         // sessions in the registry at event time
	At        time.Time
}
