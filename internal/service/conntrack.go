package service

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ConnState is a connection lifecycle state.
type ConnState string

const (
	StateConnecting ConnState = "connecting"
	StateConnected  ConnState = "connected"
	StateError      ConnState = "error"
	StateClosed     ConnState = "closed"
)

type pendingSignal struct {
	event string
	data  json.RawMessage
	at    time.Time
}

// ConnTracker tracks per-connection lifecycle state and queues signaling
// events that arrive before the client has announced readiness. The transport
// connect and the application-level ready handshake race; queuing instead of
// dropping absorbs that race.
type ConnTracker struct {
	mu     sync.Mutex
	states map[string]ConnState
	queues map[string][]pendingSignal
	log    *zap.Logger
	now    func() time.Time
}

// NewConnTracker creates a tracker.
func NewConnTracker(log *zap.Logger) *ConnTracker {
	return &ConnTracker{
		states: make(map[string]ConnState),
		queues: make(map[string][]pendingSignal),
		log:    log,
		now:    time.Now,
	}
}

// Track registers a new connection in the connecting state.
func (t *ConnTracker) Track(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[connID] = StateConnecting
}

// SetState overwrites the connection state unconditionally. Transitions off
// the intended connecting → connected → {error|closed} path are logged, not
// rejected.
func (t *ConnTracker) SetState(connID string, state ConnState) {
	t.mu.Lock()
	prev, tracked := t.states[connID]
	t.states[connID] = state
	t.mu.Unlock()

	if tracked && !legalTransition(prev, state) {
		t.log.Warn("unexpected state transition",
			zap.String("conn_id", connID),
			zap.String("from", string(prev)),
			zap.String("to", string(state)))
	}
}

func legalTransition(from, to ConnState) bool {
	switch from {
	case StateConnecting:
		return to == StateConnected || to == StateError || to == StateClosed
	case StateConnected:
		return to == StateError || to == StateClosed
	case StateError:
		return to == StateConnected || to == StateClosed
	default: // closed is terminal
		return false
	}
}

// IsState reports whether the connection is currently in the expected state.
// Unknown connections match nothing.
func (t *ConnTracker) IsState(connID string, expected ConnState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[connID]
	return ok && s == expected
}

// Enqueue appends a signal to the connection's pending queue, creating the
// queue on first use.
func (t *ConnTracker) Enqueue(connID, event string, data json.RawMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queues[connID] = append(t.queues[connID], pendingSignal{event: event, data: data, at: t.now()})
}

// Flush dispatches every queued signal in enqueue order, exactly once, then
// drops the queue. Dispatch runs outside the lock.
func (t *ConnTracker) Flush(connID string, dispatch func(event string, data json.RawMessage)) {
	t.mu.Lock()
	queued := t.queues[connID]
	delete(t.queues, connID)
	t.mu.Unlock()

	for _, s := range queued {
		dispatch(s.event, s.data)
	}
}

// Forget drops the connection's state and any pending queue.
func (t *ConnTracker) Forget(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, connID)
	delete(t.queues, connID)
}

// SweepQueues drops queues whose entries are all older than maxAge and
// returns how many were dropped.
func (t *ConnTracker) SweepQueues(maxAge time.Duration) int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for id, q := range t.queues {
		stale := true
		for _, s := range q {
			if now.Sub(s.at) <= maxAge {
				stale = false
				break
			}
		}
		if stale {
			delete(t.queues, id)
			n++
		}
	}
	return n
}

// PendingQueues returns the number of connections with queued signals.
func (t *ConnTracker) PendingQueues() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queues)
}
