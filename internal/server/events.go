package server

import (
	"context"
	"sync"
	"time"
)

const (
	// StopEventChanged is published after any successful stop mutation.
	StopEventChanged  = "stop-change"
	eventHeartbeat    = "heartbeat"
	eventSourceServer = "tourwalk-backend"
)

// StopEvent notifies subscribers that stops of a tour changed.
type StopEvent struct {
	TourID    string
	EventType string
	StopIDs   []string
	Timestamp time.Time
}

// StopEventDispatcher fans stop-change events out to the subscribers of a
// tour. Slow subscribers drop events rather than block the publisher.
type StopEventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*stopEventSubscriber
	nextID      int64
	bufferSize  int
}

type stopEventSubscriber struct {
	id     int64
	stream chan StopEvent
}

// NewStopEventDispatcher constructs an empty dispatcher.
func NewStopEventDispatcher() *StopEventDispatcher {
	return &StopEventDispatcher{
		subscribers: make(map[string]map[int64]*stopEventSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers for the tour's events until the context is cancelled.
// The returned cleanup is idempotent and safe to call alongside cancellation.
func (d *StopEventDispatcher) Subscribe(ctx context.Context, tourID string) (<-chan StopEvent, func()) {
	if tourID == "" {
		ch := make(chan StopEvent)
		close(ch)
		return ch, func() {}
	}
	subscriber := &stopEventSubscriber{
		id:     d.nextSequence(),
		stream: make(chan StopEvent, d.bufferSize),
	}
	d.registerSubscriber(tourID, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(tourID, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers the event to every live subscriber of its tour.
func (d *StopEventDispatcher) Publish(event StopEvent) {
	if event.TourID == "" || event.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[event.TourID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*stopEventSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

func (d *StopEventDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *StopEventDispatcher) registerSubscriber(tourID string, subscriber *stopEventSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[tourID]; !ok {
		d.subscribers[tourID] = make(map[int64]*stopEventSubscriber)
	}
	d.subscribers[tourID][subscriber.id] = subscriber
}

func (d *StopEventDispatcher) unregisterSubscriber(tourID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[tourID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, tourID)
		}
	}
	d.mu.Unlock()
}
