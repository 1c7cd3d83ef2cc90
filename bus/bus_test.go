package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe(TopicAlarmTriggered, 4)
	defer unsubscribe()

	evt := AlarmTriggered{CodeID: "a1"}
	res := b.Publish(context.Background(), TopicAlarmTriggered, evt)
	assert.Equal(t, ResultOK, res)

	select {
	case got := <-ch:
		assert.Equal(t, evt, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishWithNoSubscribersIsOK(t *testing.T) {
	b := New()
	res := b.Publish(context.Background(), TopicEmailRequest, EmailRequest{CodeID: "a1"})
	assert.Equal(t, ResultOK, res)
}

func TestPublishFansOutToMultipleSubscribers(t *testing.T) {
	b := New()
	ch1, unsub1 := b.Subscribe(TopicAlarmTriggered, 1)
	ch2, unsub2 := b.Subscribe(TopicAlarmTriggered, 1)
	defer unsub1()
	defer unsub2()

	res := b.Publish(context.Background(), TopicAlarmTriggered, AlarmTriggered{CodeID: "a1"})
	require.Equal(t, ResultOK, res)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); <-ch1 }()
	go func() { defer wg.Done(); <-ch2 }()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers received the event")
	}
}

func TestPublishRetriesThenExhaustsOnSaturatedSubscriber(t *testing.T) {
	b := New(WithBackoff(BackoffConfig{Base: time.Millisecond, Cap: 4 * time.Millisecond, MaxTries: 2}))
	_, unsubscribe := b.Subscribe(TopicInternalError, 1)
	defer unsubscribe()

	b.mu.Lock()
	b.topics[TopicInternalError][0].ch <- struct{}{} // fill the buffer and never drain it
	b.mu.Unlock()

	res := b.Publish(context.Background(), TopicInternalError, InternalError{Stage: "test"})
	assert.Equal(t, ResultTerminalFail, res)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe(TopicAlarmTriggered, 1)
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)

	res := b.Publish(context.Background(), TopicAlarmTriggered, AlarmTriggered{CodeID: "a1"})
	assert.Equal(t, ResultOK, res)
}

func TestBackoffConfigDelayRespectsCap(t *testing.T) {
	cfg := BackoffConfig{Base: 100 * time.Millisecond, Cap: 500 * time.Millisecond, MaxTries: 5}
	assert.Equal(t, 100*time.Millisecond, cfg.delay(0))
	assert.Equal(t, 200*time.Millisecond, cfg.delay(1))
	assert.Equal(t, 400*time.Millisecond, cfg.delay(2))
	assert.Equal(t, 500*time.Millisecond, cfg.delay(3)) // would be 800ms, capped
}

func TestPublishRespectsContextCancellation(t *testing.T) {
	b := New(WithBackoff(BackoffConfig{Base: 50 * time.Millisecond, Cap: time.Second, MaxTries: 10}))
	_, unsubscribe := b.Subscribe(TopicAlarmTriggered, 1)
	defer unsubscribe()

	b.mu.RLock()
	sub := b.topics[TopicAlarmTriggered][0]
	b.mu.RUnlock()
	sub.ch <- struct{}{} // saturate immediately

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := b.Publish(ctx, TopicAlarmTriggered, AlarmTriggered{CodeID: "a1"})
	assert.Equal(t, ResultTerminalFail, res)
}
