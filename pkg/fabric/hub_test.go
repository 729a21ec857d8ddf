package fabric

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushbolt/pushbolt/pkg/models"
)

func frame(id int64) *models.MessageView {
	return &models.MessageView{ID: id, Message: fmt.Sprintf("m%d", id)}
}

func TestBroadcastToTopicReachesAllSubscribers(t *testing.T) {
	h := NewHub()
	a := h.SubscribeTopic("alerts")
	b := h.SubscribeTopic("alerts")
	defer a.Close()
	defer b.Close()

	h.BroadcastToTopic("alerts", frame(1))

	for _, sub := range []*Subscription{a, b} {
		select {
		case v := <-sub.C():
			assert.Equal(t, int64(1), v.ID)
		case <-time.After(time.Second):
			t.Fatal("frame not delivered")
		}
	}
}

func TestConcurrentSubscribersShareOneChannel(t *testing.T) {
	h := NewHub()

	const n = 16
	subs := make(chan *Subscription, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			subs <- h.SubscribeTopic("alerts")
		}()
	}
	wg.Wait()
	close(subs)

	h.BroadcastToTopic("alerts", frame(1))

	for sub := range subs {
		select {
		case v := <-sub.C():
			assert.Equal(t, int64(1), v.ID)
		case <-time.After(time.Second):
			t.Fatal("frame not delivered")
		}
		sub.Close()
	}
}

func TestBroadcastToOtherTopicNotDelivered(t *testing.T) {
	h := NewHub()
	s := h.SubscribeTopic("alerts")
	defer s.Close()

	h.BroadcastToTopic("metrics", frame(1))

	select {
	case v := <-s.C():
		t.Fatalf("unexpected frame %d", v.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUserChannelsAreIsolated(t *testing.T) {
	h := NewHub()
	alice := h.SubscribeUser(1)
	bob := h.SubscribeUser(2)
	defer alice.Close()
	defer bob.Close()

	h.BroadcastToUser(1, frame(7))

	select {
	case v := <-alice.C():
		assert.Equal(t, int64(7), v.ID)
	case <-time.After(time.Second):
		t.Fatal("frame not delivered")
	}
	select {
	case <-bob.C():
		t.Fatal("frame leaked to wrong user")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropsOldestAndCountsLag(t *testing.T) {
	h := NewHub()
	s := h.SubscribeTopic("firehose")
	defer s.Close()

	total := ChannelCapacity + 10
	for i := 1; i <= total; i++ {
		h.BroadcastToTopic("firehose", frame(int64(i)))
	}

	assert.Equal(t, int64(10), s.Lagged())

	// Oldest frames were shed, the newest survive.
	first := <-s.C()
	assert.Equal(t, int64(11), first.ID)

	drained := 1
	for {
		select {
		case <-s.C():
			drained++
		default:
			assert.Equal(t, ChannelCapacity, drained)
			return
		}
	}
}

func TestPublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	h := NewHub()
	done := make(chan struct{})
	go func() {
		h.BroadcastToTopic("nobody", frame(1))
		h.BroadcastToUser(99, frame(2))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked")
	}
}

func TestCloseClosesChannelAndSweepRemovesIdle(t *testing.T) {
	h := NewHub()
	s := h.SubscribeTopic("alerts")
	u := h.SubscribeUser(1)

	s.Close()
	s.Close() // idempotent
	u.Close()

	_, open := <-s.C()
	require.False(t, open)

	assert.Equal(t, 2, h.Sweep())
	assert.Equal(t, 0, h.Sweep())
}

func TestSweepKeepsLiveChannels(t *testing.T) {
	h := NewHub()
	s := h.SubscribeTopic("alerts")
	defer s.Close()

	assert.Equal(t, 0, h.Sweep())

	h.BroadcastToTopic("alerts", frame(3))
	select {
	case v := <-s.C():
		assert.Equal(t, int64(3), v.ID)
	case <-time.After(time.Second):
		t.Fatal("channel removed while in use")
	}
}
