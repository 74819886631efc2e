// internal/handler/event_bus.go
package handler

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"pos-printer/internal/service"
)

// EventBus decouples printer sessions from websocket delivery. Publish never
// blocks the printer manager; a full bus drops the event.
type EventBus struct {
	subscribers []*subscription
	events      chan service.SessionEvent
	done        chan struct{}
	stopOnce    sync.Once
	stopped     bool
	mutex       sync.RWMutex
	logger      *zap.Logger

	dropped atomic.Uint64 // bus full on Publish
	skipped atomic.Uint64 // subscriber buffer full
}

type subscription struct {
	types map[string]bool
	ch    chan service.SessionEvent
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		events: make(chan service.SessionEvent, 1000),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("component", "event_bus")),
	}
}

// Start distributes events until Stop is called. Subscriber channels are
// closed on return.
func (eb *EventBus) Start() {
	defer eb.closeSubscribers()

	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.done:
			eb.drain()
			return
		}
	}
}

// drain distributes events published before Stop
func (eb *EventBus) drain() {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		default:
			return
		}
	}
}

// Stop ends distribution
func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() { close(eb.done) })
}

// Publish publishes an event
func (eb *EventBus) Publish(event service.SessionEvent) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", event.Type),
			zap.String("session_id", event.SessionID),
			zap.Uint64("dropped_total", eb.dropped.Add(1)),
		)
	}
}

// Dropped returns how many events were lost to a full bus and how many
// deliveries were skipped for slow subscribers
func (eb *EventBus) Dropped() (dropped, skipped uint64) {
	return eb.dropped.Load(), eb.skipped.Load()
}

// Subscribe returns a channel receiving the given event types, or every
// event when none are given
func (eb *EventBus) Subscribe(eventTypes ...string) <-chan service.SessionEvent {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	sub := &subscription{ch: make(chan service.SessionEvent, 100)}
	if eb.stopped {
		close(sub.ch)
		return sub.ch
	}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = true
		}
	}
	eb.subscribers = append(eb.subscribers, sub)
	return sub.ch
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event service.SessionEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, sub := range eb.subscribers {
		if sub.types != nil && !sub.types[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			eb.logger.Warn("Slow subscriber, event skipped",
				zap.String("event_type", event.Type),
				zap.String("session_id", event.SessionID),
				zap.Uint64("skipped_total", eb.skipped.Add(1)),
			)
		}
	}
}

func (eb *EventBus) closeSubscribers() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	for _, sub := range eb.subscribers {
		close(sub.ch)
	}
	eb.subscribers = nil
	eb.stopped = true
}
