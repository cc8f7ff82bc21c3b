package service

import "sync"

// EventType defines the type of event
type EventType string

const (
	EventMemberSeen     EventType = "member_seen"
	EventMemberUpdated  EventType = "member_updated"
	EventClanFounded    EventType = "clan_founded"
	EventClanJoined     EventType = "clan_joined"
	EventClanLeft       EventType = "clan_left"
	EventClanDisbanded  EventType = "clan_disbanded"
	EventClaimCreated   EventType = "claim_created"
	EventClaimReleased  EventType = "claim_released"
	EventPermCreated    EventType = "perm_created"
	EventPermUpdated    EventType = "perm_updated"
	EventSnapshotLoaded EventType = "snapshot_imported"
	EventStorePurged    EventType = "store_purged"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
