package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_ReachesOnlyTargetUser(t *testing.T) {
	b := NewBroker()
	alice := b.Subscribe(1)
	bob := b.Subscribe(2)
	defer b.Unsubscribe(alice)
	defer b.Unsubscribe(bob)

	delivered := b.Publish(1, ActivityCreated, map[string]int64{"id": 7})
	assert.Equal(t, 1, delivered)

	msg := <-alice.C()
	assert.Equal(t, ActivityCreated, msg.Type)
	assert.JSONEq(t, `{"id":7}`, string(msg.Data))
	assert.Equal(t, "event: activity_created\ndata: {\"id\":7}\n\n", msg.String())

	select {
	case <-bob.C():
		t.Fatal("bob should not receive alice's event")
	default:
	}
}

func TestPublish_FansOutToEverySubscription(t *testing.T) {
	b := NewBroker()
	tab1 := b.Subscribe(1)
	tab2 := b.Subscribe(1)
	assert.Equal(t, 2, b.Subscribers(1))

	assert.Equal(t, 2, b.Publish(1, ActivityDeleted, map[string]int{"id": 3}))
	assert.Equal(t, ActivityDeleted, (<-tab1.C()).Type)
	assert.Equal(t, ActivityDeleted, (<-tab2.C()).Type)

	b.Unsubscribe(tab1)
	b.Unsubscribe(tab2)
}

func TestPublish_DropsWhenBufferFull(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(1)
	defer b.Unsubscribe(sub)

	for i := 0; i < BufferSize; i++ {
		require.Equal(t, 1, b.Publish(1, ActivityUpdated, i))
	}
	assert.Equal(t, 0, b.Publish(1, ActivityUpdated, "overflow"), "full subscriber misses the message")
	assert.Len(t, sub.C(), BufferSize)

	first := <-sub.C()
	assert.Equal(t, "0", string(first.Data), "oldest buffered message is kept")
}

func TestPublish_NoSubscribers(t *testing.T) {
	b := NewBroker()
	assert.Equal(t, 0, b.Publish(42, RecurringGenerated, map[string]int{"count": 1}))
}

func TestPublish_UnencodablePayload(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(1)
	defer b.Unsubscribe(sub)

	assert.Equal(t, 0, b.Publish(1, ActivityCreated, make(chan int)))
	assert.Len(t, sub.C(), 0)
}

func TestUnsubscribe_ClosesAndCleansUp(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(1)

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)

	_, open := <-sub.C()
	assert.False(t, open)
	assert.Equal(t, 0, b.Subscribers(1))
	assert.Empty(t, b.subs)
	assert.Equal(t, 0, b.Publish(1, ActivityCreated, nil))
}

func TestBroker_ConcurrentUse(t *testing.T) {
	b := NewBroker()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			sub := b.Subscribe(userID)
			for j := 0; j < BufferSize*2; j++ {
				b.Publish(userID, ActivityUpdated, j)
			}
			b.Unsubscribe(sub)
		}(int64(i % 4))
	}
	wg.Wait()

	for userID := int64(0); userID < 4; userID++ {
		assert.Equal(t, 0, b.Subscribers(userID))
	}
}
