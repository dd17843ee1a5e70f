package notify

import (
	"encoding/json"
	"time"
)

// Event kinds published to the broker.
const (
	EventSessionStarted  = "session.started"
	EventSessionEnded    = "session.ended"
	EventResourceChanged = "resource.changed"
)

// Event is a lightweight notification that something changed client-side.
// Consumers fetch fresh data themselves; the event carries identifiers only.
type Event struct {
	Kind      string    `json:"kind"`
	Resource  string    `json:"resource,omitempty"`
	EntityID  int64     `json:"entityId,omitempty"`
	UserID    int64     `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewResourceChangedEvent builds a resource mutation event.
func NewResourceChangedEvent(resource string, entityID, userID int64) *Event {
	return &Event{
		Kind:      EventResourceChanged,
		Resource:  resource,
		EntityID:  entityID,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// NewSessionEvent builds a session lifecycle event.
func NewSessionEvent(kind string, userID int64) *Event {
	return &Event{
		Kind:      kind,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON creates an event from JSON bytes
func EventFromJSON(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
