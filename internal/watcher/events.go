package watcher

import (
	"sync"
	"time"

	"github.com/vkadlec/face-attendance/internal/constants"
	"github.com/vkadlec/face-attendance/internal/recognizer"
)

// EventType identifies what happened during a watcher tick.
type EventType string

// Event types emitted by a watch session.
const (
	EventMarked      EventType = "marked"
	EventDetected    EventType = "detected"
	EventNotDetected EventType = "not_detected"
	EventError       EventType = "error"
	EventStopped     EventType = "stopped"
)

// Event is one item in a session's event stream.
type Event struct {
	Type      EventType             `json:"type"`
	Label     string                `json:"label,omitempty"`
	Detection *recognizer.Detection `json:"detection,omitempty"`
	Message   string                `json:"message,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// EventBroadcaster provides listener management and event broadcasting for
// watch sessions. Embed this in the session struct to get AddListener,
// RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	listeners []chan Event
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}
