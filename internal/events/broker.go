// Package events fans live updates out to each user's open browser streams.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/otj-helper/internal/observability"
)

// BufferSize is how many undelivered messages a subscription holds before new
// ones are dropped.
const BufferSize = 50

// EventType names a live update.
type EventType string

// Published event types.
const (
	ActivityCreated    EventType = "activity_created"
	ActivityUpdated    EventType = "activity_updated"
	ActivityDeleted    EventType = "activity_deleted"
	AttachmentAdded    EventType = "attachment_added"
	AttachmentDeleted  EventType = "attachment_deleted"
	RecurringGenerated EventType = "recurring_generated"

	// Connected is sent once when a stream opens.
	Connected EventType = "connected"
)

// Message is one rendered update.
type Message struct {
	Type EventType
	Data json.RawMessage
}

// String renders the message in the text/event-stream wire format.
func (m Message) String() string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", m.Type, m.Data)
}

// Subscription is one open stream for a user.
type Subscription struct {
	ID     string
	UserID int64
	ch     chan Message
}

// C delivers the subscription's messages. It is closed by Unsubscribe.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Broker routes published messages to the subscriptions of the target user.
// Publishing never blocks: a subscriber whose buffer is full misses the message.
type Broker struct {
	mu   sync.Mutex
	subs map[int64]map[string]*Subscription
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int64]map[string]*Subscription)}
}

// Subscribe opens a new buffered subscription for the user.
func (b *Broker) Subscribe(userID int64) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		UserID: userID,
		ch:     make(chan Message, BufferSize),
	}

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[string]*Subscription)
	}
	b.subs[userID][sub.ID] = sub
	b.mu.Unlock()

	observability.RecordSubscribe()
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Calling it more
// than once is harmless.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	userSubs := b.subs[sub.UserID]
	if _, ok := userSubs[sub.ID]; !ok {
		return
	}
	delete(userSubs, sub.ID)
	if len(userSubs) == 0 {
		delete(b.subs, sub.UserID)
	}
	close(sub.ch)
	observability.RecordUnsubscribe()
}

// Publish sends an event with a JSON payload to every subscription of the user
// and returns how many received it.
func (b *Broker) Publish(userID int64, event EventType, data any) int {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("Warning: failed to encode %s event: %v", event, err)
		return 0
	}
	msg := Message{Type: event, Data: payload}

	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for _, sub := range b.subs[userID] {
		select {
		case sub.ch <- msg:
			delivered++
		default:
			observability.RecordDropped()
		}
	}
	return delivered
}

// Subscribers returns the number of open subscriptions for the user.
func (b *Broker) Subscribers(userID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}
