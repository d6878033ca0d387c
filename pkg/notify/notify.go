// Package notify fans out upload events to interested subscribers.
//
// Delivery is best effort: publishing never blocks the upload path, and
// a subscriber that cannot keep up loses events rather than slowing the
// server down.
package notify

import (
	"sync"
	"time"

	"github.com/caskfs/caskfs/internal/logger"
)

// Event describes a version that was just committed.
type Event struct {
	File       string    `json:"file"`
	Version    uint64    `json:"version"`
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	UploadedBy string    `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Notifier publishes upload events.
type Notifier interface {
	Publish(event Event)
}

// subscriberBuffer bounds how many undelivered events a subscriber may
// accumulate before new events are dropped for it.
const subscriberBuffer = 16

// Broadcaster delivers events to any number of subscribers. Safe for
// concurrent use.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
	closed bool
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan Event)}
}

// Subscribe registers a new subscriber and returns its event channel
// plus a cancel function. The channel is closed on cancel or when the
// broadcaster shuts down.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers event to every subscriber with buffer space. Slow
// subscribers miss the event; Publish itself never blocks.
func (b *Broadcaster) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			logger.Debug("dropping event for slow subscriber",
				logger.KeyFile, event.File,
				logger.KeyVersion, event.Version)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close shuts the broadcaster down, closing all subscriber channels.
// Publish after Close is a no-op.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Discard is a Notifier that drops every event. Used when notifications
// are disabled.
type Discard struct{}

func (Discard) Publish(Event) {}
