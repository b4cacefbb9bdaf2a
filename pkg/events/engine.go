// Package events fans server-initiated frames out to live client
// sessions. Handlers enqueue an Event naming its recipients by user ID;
// a single worker drains the queue and pushes the frame to every
// session those users currently hold. Delivery is best-effort: a dead
// session is logged and skipped, never retried.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// Sink is one live session able to receive a pushed frame. Sessions
// register themselves under their user ID after authenticating and
// unregister on disconnect.
type Sink interface {
	// SendEvent pushes one encrypted frame built from prefix and data.
	SendEvent(prefix string, data []byte) error
}

// Event is one pending delivery. The same prefix and data go to every
// recipient; per-recipient payloads are enqueued as separate events.
type Event struct {
	Prefix     string
	Data       []byte
	Recipients []string
}

const (
	// DefaultQueueSize bounds the number of pending events before
	// Emit starts dropping.
	DefaultQueueSize = 256

	// DefaultDeliveryPause is the gap the worker sleeps between
	// dequeues so bursts of events interleave with request handling.
	DefaultDeliveryPause = 10 * time.Millisecond
)

// Engine owns the registry of live sessions and the delivery queue.
type Engine struct {
	mu       sync.RWMutex
	registry map[string][]Sink

	queue chan Event
	pause time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEngine creates an engine with the given queue capacity and
// inter-delivery pause. A non-positive queue size and a negative pause
// select the defaults; a zero pause disables the gap, which tests use.
func NewEngine(queueSize int, pause time.Duration) *Engine {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if pause < 0 {
		pause = DefaultDeliveryPause
	}
	return &Engine{
		registry: make(map[string][]Sink),
		queue:    make(chan Event, queueSize),
		pause:    pause,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the delivery worker.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.run()
	slog.Info("Event engine started", "queue_capacity", cap(e.queue), "delivery_pause", e.pause)
}

// Stop terminates the worker and waits for it to exit. Events still
// queued are discarded; sessions are closing anyway during shutdown.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
	slog.Info("Event engine stopped", "discarded", len(e.queue))
}

// Register adds a session under the given user ID. A user with several
// devices holds several sinks; each delivery reaches all of them.
func (e *Engine) Register(userID string, s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry[userID] = append(e.registry[userID], s)
	slog.Debug("Session registered for events", "user_id", userID, "sessions", len(e.registry[userID]))
}

// Unregister removes one session from under the given user ID. The
// sink is matched by identity, so sessions must register and
// unregister with the same value.
func (e *Engine) Unregister(userID string, s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sinks := e.registry[userID]
	for i, existing := range sinks {
		if existing == s {
			e.registry[userID] = append(sinks[:i:i], sinks[i+1:]...)
			break
		}
	}
	if len(e.registry[userID]) == 0 {
		delete(e.registry, userID)
	}
}

// Emit queues an event without blocking. When the queue is full the
// event is dropped and logged; request handling must never stall on
// slow event delivery.
func (e *Engine) Emit(ev Event) {
	select {
	case e.queue <- ev:
	default:
		slog.Warn("Event queue full, dropping event",
			"prefix", ev.Prefix,
			"recipients", len(ev.Recipients))
	}
}

// RegisteredUsers reports how many user IDs currently hold at least
// one live session.
func (e *Engine) RegisteredUsers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.registry)
}

// ActiveSessions reports the total number of registered sinks.
func (e *Engine) ActiveSessions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	total := 0
	for _, sinks := range e.registry {
		total += len(sinks)
	}
	return total
}

// QueueDepth reports how many events are waiting for delivery.
func (e *Engine) QueueDepth() int {
	return len(e.queue)
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case ev := <-e.queue:
			e.deliver(ev)
			if e.pause > 0 {
				select {
				case <-e.stopCh:
					return
				case <-time.After(e.pause):
				}
			}
		}
	}
}

// deliver snapshots the recipients' sinks under the read lock, then
// sends outside it so a slow connection cannot block registration.
func (e *Engine) deliver(ev Event) {
	e.mu.RLock()
	sinks := make([]Sink, 0, len(ev.Recipients))
	for _, userID := range ev.Recipients {
		sinks = append(sinks, e.registry[userID]...)
	}
	e.mu.RUnlock()

	for _, s := range sinks {
		if err := s.SendEvent(ev.Prefix, ev.Data); err != nil {
			slog.Warn("Failed to deliver event", "prefix", ev.Prefix, "error", err)
		}
	}
}
