package events

import (
	"sync"
	"time"
)

// EventType indicates the category of an engine event.
type EventType string

const (
	// Zone events
	EventGemDrawn     EventType = "GEM_DRAWN"
	EventGemPlayed    EventType = "GEM_PLAYED"
	EventGemDiscarded EventType = "GEM_DISCARDED"
	EventBagRecycled  EventType = "BAG_RECYCLED"
	EventPeriodReset  EventType = "PERIOD_RESET"

	// Progression events
	EventMasteryChanged   EventType = "MASTERY_CHANGED"
	EventTemplateUnlocked EventType = "TEMPLATE_UNLOCKED"
)

// Event represents a state change that other subsystems may react to.
// Battle resolution and UI layers subscribe to these; the engine itself
// only listens for MASTERY_CHANGED internally.
type Event struct {
	Type       EventType
	ID         string            // Unique event ID
	PlayerID   string            // Player the event belongs to
	InstanceID string            // Gem instance involved (zone events)
	TemplateID string            // Template involved (mastery/unlock events)
	Amount     int               // Numeric value (mastery level, recycled count, cost)
	Flag       bool              // Boolean flag (play success)
	Data       string            // Additional string data
	Timestamp  time.Time         // When the event occurred
	Metadata   map[string]string // Additional metadata
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// Bus provides a synchronous publish/subscribe implementation with type filtering.
// Delivery happens on the publishing goroutine; pool operations settle all state
// before publishing, so listeners always observe a consistent snapshot.
type Bus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewBus constructs a fresh event bus instance.
func NewBus() *Bus {
	return &Bus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *Bus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *Bus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	listener := TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	}
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], listener)
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *Bus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
func (bus *Bus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}

	if typedListeners, ok := bus.typedListeners[event.Type]; ok {
		for _, listener := range typedListeners {
			listener.Callback(event)
		}
	}
}

// PublishBatch publishes multiple events in order.
func (bus *Bus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, playerID, instanceID, templateID string) Event {
	return Event{
		Type:       eventType,
		PlayerID:   playerID,
		InstanceID: instanceID,
		TemplateID: templateID,
		Timestamp:  time.Now(),
		Metadata:   make(map[string]string),
	}
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, playerID, instanceID, templateID string, amount int) Event {
	evt := NewEvent(eventType, playerID, instanceID, templateID)
	evt.Amount = amount
	return evt
}

// NewEventWithFlag creates a new event with a flag value.
func NewEventWithFlag(eventType EventType, playerID, instanceID, templateID string, flag bool) Event {
	evt := NewEvent(eventType, playerID, instanceID, templateID)
	evt.Flag = flag
	return evt
}
