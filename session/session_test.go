//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryConnectAndGet(t *testing.T) {
	r := NewRegistry()

	info := r.Connect("s1")
	require.NotNil(t, info)
	assert.Equal(t, "s1", info.ID)
	assert.Equal(t, StatusIdle, info.Status)
	assert.False(t, info.CreatedAt.IsZero())

	got := r.Get("s1")
	require.NotNil(t, got)
	assert.Equal(t, info.ID, got.ID)

	// Reconnect keeps existing counters.
	require.NoError(t, r.Update("s1", Update{MessageCount: IntPtr(3)}))
	again := r.Connect("s1")
	assert.Equal(t, 3, again.MessageCount)
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Connect("s1")

	got := r.Get("s1")
	got.MessageCount = 99

	assert.Equal(t, 0, r.Get("s1").MessageCount)
}

func TestRegistryPartialUpdate(t *testing.T) {
	r := NewRegistry()
	r.Connect("s1")

	require.NoError(t, r.Update("s1", Update{
		Status:      StatusPtr(StatusInProgress),
		CurrentStep: StringPtr("search"),
	}))

	info := r.Get("s1")
	assert.Equal(t, StatusInProgress, info.Status)
	assert.Equal(t, "search", info.CurrentStep)

	// A nil field must not clobber the stored value.
	require.NoError(t, r.Update("s1", Update{MessageCount: IntPtr(5)}))
	info = r.Get("s1")
	assert.Equal(t, StatusInProgress, info.Status)
	assert.Equal(t, "search", info.CurrentStep)
	assert.Equal(t, 5, info.MessageCount)
}

func TestRegistryUpdateUnknownSession(t *testing.T) {
	r := NewRegistry()
	err := r.Update("missing", Update{Status: StatusPtr(StatusIdle)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryStatusDefaultsToIdle(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, StatusIdle, r.Status("never-seen"))
}

func TestRegistryCompareAndSetStatus(t *testing.T) {
	r := NewRegistry()
	r.Connect("s1")

	ok := r.CompareAndSetStatus("s1", StatusIdle, StatusInProgress)
	assert.True(t, ok)
	assert.Equal(t, StatusInProgress, r.Status("s1"))

	// Second start on the same session must lose the race.
	ok = r.CompareAndSetStatus("s1", StatusIdle, StatusInProgress)
	assert.False(t, ok)

	// An unknown session is treated as idle.
	ok = r.CompareAndSetStatus("fresh", StatusIdle, StatusInProgress)
	assert.True(t, ok)
	assert.Equal(t, StatusInProgress, r.Status("fresh"))
}

func TestRegistryCompareAndSetStatusSingleWinner(t *testing.T) {
	r := NewRegistry()
	r.Connect("s1")

	const starters = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, starters)
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.CompareAndSetStatus("s1", StatusIdle, StatusInProgress) {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestRegistryDisconnect(t *testing.T) {
	r := NewRegistry()
	r.Connect("s1")
	r.Disconnect("s1")
	assert.Nil(t, r.Get("s1"))
}

func TestPromptQueueDrainAndClear(t *testing.T) {
	q := NewPromptQueue()

	q.Push("s1", "first")
	q.Push("s1", "second")
	q.Push("other", "unrelated")

	assert.Equal(t, 2, q.Len("s1"))

	prompts := q.DrainAndClear("s1")
	assert.Equal(t, []string{"first", "second"}, prompts)
	assert.Equal(t, 0, q.Len("s1"))
	assert.Equal(t, 1, q.Len("other"))

	// Drained prompts never reappear.
	assert.Empty(t, q.DrainAndClear("s1"))
}

func TestPromptQueueConcurrentDrain(t *testing.T) {
	q := NewPromptQueue()
	const prompts = 100

	var producers sync.WaitGroup
	for i := 0; i < prompts; i++ {
		producers.Add(1)
		go func() {
			defer producers.Done()
			q.Push("s1", "p")
		}()
	}

	var mu sync.Mutex
	total := 0
	var drainers sync.WaitGroup
	for i := 0; i < 4; i++ {
		drainers.Add(1)
		go func() {
			defer drainers.Done()
			for j := 0; j < 50; j++ {
				got := q.DrainAndClear("s1")
				mu.Lock()
				total += len(got)
				mu.Unlock()
			}
		}()
	}

	producers.Wait()
	drainers.Wait()
	total += len(q.DrainAndClear("s1"))

	assert.Equal(t, prompts, total)
}

func TestPromptQueueForget(t *testing.T) {
	q := NewPromptQueue()
	q.Push("s1", "p")
	q.Forget("s1")
	assert.Empty(t, q.DrainAndClear("s1"))
}
