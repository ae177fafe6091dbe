// Package notification provides the notification manager for broadcasting
// session status snapshots to subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/otobox/otobox/internal/app/session/state"
)

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(state.Snapshot) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages status subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription

	sequenceNoMu sync.Mutex
	sequenceNo   uint64

	sendTimeout time.Duration
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   500 * time.Millisecond,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast stamps the snapshot with the next sequence number and sends
// it to all subscribers. Each send runs in its own goroutine with a
// timeout so a stalled subscriber cannot block the others.
func (m *Manager) Broadcast(snap state.Snapshot) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	snap.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(snap)
			}()

			select {
			case <-done:
				// Send errors are ignored; a broken subscriber is
				// removed when its transport closes.
			case <-ctx.Done():
			}
		}(sub)
	}
	wg.Wait()
}

// Send sends a snapshot to a specific subscriber.
func (m *Manager) Send(subscriptionID string, snap state.Snapshot) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil
	}
	return sub.stream.Send(snap)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}

// ChanStream adapts a buffered channel into a Stream. Snapshots are
// dropped when the buffer is full.
type ChanStream struct {
	C chan state.Snapshot
}

// NewChanStream creates a channel-backed stream with the given buffer.
func NewChanStream(buffer int) *ChanStream {
	return &ChanStream{C: make(chan state.Snapshot, buffer)}
}

// Send implements Stream.
func (s *ChanStream) Send(snap state.Snapshot) error {
	select {
	case s.C <- snap:
	default:
	}
	return nil
}
