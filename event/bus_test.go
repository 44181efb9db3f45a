//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package event

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-deepresearch-go/model"
)

// recordingSubscriber captures delivered events in order.
type recordingSubscriber struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (s *recordingSubscriber) SendEvent(ev *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSubscriber) received() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Event(nil), s.events...)
}

func TestNewEvent(t *testing.T) {
	ev := New(TypeSearch, "search", "found 3 sources",
		WithLinks([]string{"https://example.com"}),
		WithFiles([]string{"notes.pdf"}),
		WithUsage(&model.Usage{PromptTokens: 4, CompletionTokens: 6, TotalTokens: 10}),
	)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, TypeSearch, ev.Type)
	assert.Equal(t, "search", ev.Sender)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, []string{"https://example.com"}, ev.Links)
	assert.Equal(t, []string{"notes.pdf"}, ev.Files)
	assert.Equal(t, 10, ev.TotalTokens)
}

func TestEventClone(t *testing.T) {
	ev := New(TypeSearch, "search", "content", WithLinks([]string{"a"}))
	clone := ev.Clone()
	clone.Links[0] = "b"
	assert.Equal(t, "a", ev.Links[0])

	var nilEvent *Event
	assert.Nil(t, nilEvent.Clone())
}

func TestBusAssignsMonotonicSequence(t *testing.T) {
	bus := NewBus()
	sub := &recordingSubscriber{}
	bus.Subscribe("s1", sub)

	for i := 0; i < 5; i++ {
		bus.Publish("s1", New(TypeSearch, "search", "progress"))
	}

	received := sub.received()
	require.Len(t, received, 5)
	for i, ev := range received {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.False(t, ev.DeliveredAt.IsZero())
	}
}

func TestBusDropsWithoutSubscriber(t *testing.T) {
	bus := NewBus()

	// Must not block or panic.
	bus.Publish("s1", New(TypeSearch, "search", "dropped"))

	// The sequence still advances so a late subscriber sees a gap rather
	// than a replay.
	sub := &recordingSubscriber{}
	bus.Subscribe("s1", sub)
	bus.Publish("s1", New(TypeSearch, "search", "delivered"))

	received := sub.received()
	require.Len(t, received, 1)
	assert.Equal(t, int64(2), received[0].Seq)
}

func TestBusSubscribeReplacesPrevious(t *testing.T) {
	bus := NewBus()
	first := &recordingSubscriber{}
	second := &recordingSubscriber{}

	bus.Subscribe("s1", first)
	bus.Subscribe("s1", second)
	bus.Publish("s1", New(TypeSearch, "search", "to second"))

	assert.Empty(t, first.received())
	assert.Len(t, second.received(), 1)
}

func TestBusUnsubscribeOnlyMatchingHandle(t *testing.T) {
	bus := NewBus()
	first := &recordingSubscriber{}
	second := &recordingSubscriber{}

	bus.Subscribe("s1", first)
	bus.Subscribe("s1", second)

	// A stale disconnect from the replaced subscriber must not detach the
	// live one.
	bus.Unsubscribe("s1", first)
	bus.Publish("s1", New(TypeSearch, "search", "still delivered"))
	assert.Len(t, second.received(), 1)

	bus.Unsubscribe("s1", second)
	bus.Publish("s1", New(TypeSearch, "search", "dropped"))
	assert.Len(t, second.received(), 1)
}

func TestBusSendErrorDoesNotPropagate(t *testing.T) {
	bus := NewBus()
	sub := &recordingSubscriber{err: errors.New("connection gone")}
	bus.Subscribe("s1", sub)

	assert.NotPanics(t, func() {
		bus.Publish("s1", New(TypeSearch, "search", "lost"))
	})
}

func TestBusPerSessionOrderingUnderInterleaving(t *testing.T) {
	bus := NewBus()
	subs := map[string]*recordingSubscriber{
		"s1": {},
		"s2": {},
	}
	for id, sub := range subs {
		bus.Subscribe(id, sub)
	}

	var wg sync.WaitGroup
	for id := range subs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				bus.Publish(id, New(TypeSearch, "search", "p"))
			}
		}(id)
	}
	wg.Wait()

	for id, sub := range subs {
		received := sub.received()
		require.Len(t, received, 50, "session %s", id)
		for i, ev := range received {
			assert.Equal(t, int64(i+1), ev.Seq, "session %s", id)
		}
	}
}

func TestBusConcurrentPublishersSameSessionStaySequenced(t *testing.T) {
	// The engine loop and the websocket read loop publish to the same
	// session concurrently; delivery order must still match the assigned
	// sequence numbers.
	bus := NewBus()
	sub := &recordingSubscriber{}
	bus.Subscribe("s1", sub)

	const publishers = 8
	const perPublisher = 100
	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				bus.Publish("s1", New(TypeSearch, "search", "p"))
			}
		}()
	}
	wg.Wait()

	received := sub.received()
	require.Len(t, received, publishers*perPublisher)
	for i, ev := range received {
		require.Equal(t, int64(i+1), ev.Seq,
			"event at position %d delivered out of sequence order", i)
	}
}

func TestBusForget(t *testing.T) {
	bus := NewBus()
	sub := &recordingSubscriber{}
	bus.Subscribe("s1", sub)
	bus.Publish("s1", New(TypeSearch, "search", "one"))

	bus.Forget("s1")

	bus.Subscribe("s1", sub)
	bus.Publish("s1", New(TypeSearch, "search", "fresh counter"))
	received := sub.received()
	require.Len(t, received, 2)
	assert.Equal(t, int64(1), received[1].Seq)
}
