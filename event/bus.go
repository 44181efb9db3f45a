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
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-deepresearch-go/log"
)

// Subscriber receives events for a single session. Implementations must not
// block indefinitely; a slow subscriber is the subscriber's problem, never the
// workflow's.
type Subscriber interface {
	// SendEvent delivers one event to the subscriber.
	SendEvent(event *Event) error
}

// Bus distributes progress events to per-session live subscribers.
//
// Publishing is best-effort: when a session has no subscriber the event is
// dropped. Each session has at most one subscriber; subscribing again
// silently replaces the previous handle. Sequence numbers are per-session
// monotonic and delivery order matches publish order for a given session.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]Subscriber
	sequences   map[string]int64
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]Subscriber),
		sequences:   make(map[string]int64),
	}
}

// Subscribe registers the live subscriber for the session, replacing any
// previous one.
func (b *Bus) Subscribe(sessionID string, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[sessionID] = subscriber
}

// Unsubscribe removes the session's subscriber if it is the given handle.
// A nil handle removes whatever subscriber is registered.
func (b *Bus) Unsubscribe(sessionID string, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subscriber == nil || b.subscribers[sessionID] == subscriber {
		delete(b.subscribers, sessionID)
	}
}

// Publish assigns the event's per-session sequence number and delivery
// timestamp and pushes it to the session's subscriber. Events published for
// sessions without a subscriber are dropped.
//
// Delivery happens under the bus lock so that concurrent publishers to the
// same session cannot hand events to the subscriber out of sequence order.
// The Subscriber contract is non-blocking, so holding the lock across
// SendEvent is safe.
func (b *Bus) Publish(sessionID string, ev *Event) {
	if ev == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sequences[sessionID]++
	ev.Seq = b.sequences[sessionID]
	ev.DeliveredAt = time.Now()
	subscriber := b.subscribers[sessionID]
	if subscriber == nil {
		return
	}
	if err := subscriber.SendEvent(ev); err != nil {
		log.Warnf("event delivery failed for session %s: %v", sessionID, err)
	}
}

// Forget drops the sequence counter and subscriber for a deleted session.
func (b *Bus) Forget(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, sessionID)
	delete(b.sequences, sessionID)
}
