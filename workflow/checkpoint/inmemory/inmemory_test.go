//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-deepresearch-go/workflow"
)

func TestSaverRoundTrip(t *testing.T) {
	saver := NewSaver()
	ctx := context.Background()

	state := workflow.NewState()
	state.AppendHuman("question")
	state.PauseRequired = true
	state.ToolCallID = "tc-1"
	require.NoError(t, saver.Append(ctx, &workflow.Checkpoint{
		ID:        "c1",
		SessionID: "s1",
		Cursor:    workflow.NodeClarify,
		State:     state,
		CreatedAt: time.Now(),
	}))

	got, err := saver.LoadLatest(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, workflow.NodeClarify, got.Cursor)
	assert.Equal(t, state.Messages, got.State.Messages)
	assert.True(t, got.State.PauseRequired)

	// Mutating the loaded state must not leak back into the stored copy.
	got.State.AppendHuman("mutation")
	reloaded, err := saver.LoadLatest(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, reloaded.State.Messages, 1)
}

func TestSaverLatestWinsAndDelete(t *testing.T) {
	saver := NewSaver()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		state := workflow.NewState()
		state.AppendHuman(fmt.Sprintf("message %d", i))
		require.NoError(t, saver.Append(ctx, &workflow.Checkpoint{
			ID:        fmt.Sprintf("c%d", i),
			SessionID: "s1",
			Cursor:    workflow.NodeSearch,
			State:     state,
			CreatedAt: time.Now(),
		}))
	}
	assert.Equal(t, 3, saver.Len("s1"))

	got, err := saver.LoadLatest(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "c3", got.ID)

	require.NoError(t, saver.Delete(ctx, "s1"))
	got, err = saver.LoadLatest(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	exists, err := saver.Exists(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSaverConcurrentSessions(t *testing.T) {
	saver := NewSaver()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessionID := fmt.Sprintf("s%d", i)
			for j := 0; j < 10; j++ {
				state := workflow.NewState()
				state.AppendHuman(fmt.Sprintf("m%d", j))
				_ = saver.Append(ctx, &workflow.Checkpoint{
					ID:        fmt.Sprintf("c%d", j),
					SessionID: sessionID,
					State:     state,
					CreatedAt: time.Now(),
				})
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		got, err := saver.LoadLatest(ctx, fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "c9", got.ID)
	}
}
