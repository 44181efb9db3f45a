//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-deepresearch-go/model"
	"trpc.group/trpc-go/trpc-deepresearch-go/workflow"
)

func newTestSaver(t *testing.T) *Saver {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	saver, err := NewSaver(db)
	require.NoError(t, err)
	return saver
}

func testCheckpoint(sessionID, id string, cursor workflow.NodeID, ts time.Time) *workflow.Checkpoint {
	state := workflow.NewState()
	state.AppendHuman("research electric aviation")
	state.AppendAgent(string(cursor), workflow.Message{Content: "progress", Visible: true})
	state.SubMessages = []model.Message{model.NewToolMessage("tc-1", "partial result")}
	state.ToolCallID = "tc-1"
	return &workflow.Checkpoint{
		ID:        id,
		SessionID: sessionID,
		Cursor:    cursor,
		State:     state,
		CreatedAt: ts,
	}
}

func TestSaverRoundTrip(t *testing.T) {
	saver := newTestSaver(t)
	ctx := context.Background()
	now := time.Now()

	want := testCheckpoint("s1", "c1", workflow.NodeSearch, now)
	want.State.PauseRequired = true
	want.State.GeneratedFiles = []string{"summary.pdf"}
	require.NoError(t, saver.Append(ctx, want))

	got, err := saver.LoadLatest(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, workflow.NodeSearch, got.Cursor)
	assert.Equal(t, want.State.Messages, got.State.Messages)
	assert.Equal(t, want.State.SubMessages, got.State.SubMessages)
	assert.Equal(t, want.State.ToolCallID, got.State.ToolCallID)
	assert.Equal(t, want.State.GeneratedFiles, got.State.GeneratedFiles)
	assert.True(t, got.State.PauseRequired)
	assert.Equal(t, now.UnixNano(), got.CreatedAt.UnixNano())
}

func TestSaverLatestWins(t *testing.T) {
	saver := newTestSaver(t)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, saver.Append(ctx, testCheckpoint("s1", "c1", workflow.NodeClarify, base)))
	require.NoError(t, saver.Append(ctx, testCheckpoint("s1", "c2", workflow.NodeSearch, base.Add(time.Second))))
	require.NoError(t, saver.Append(ctx, testCheckpoint("s1", "c3", workflow.NodeReport, base.Add(2*time.Second))))

	got, err := saver.LoadLatest(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "c3", got.ID)
	assert.Equal(t, workflow.NodeReport, got.Cursor)
}

func TestSaverSessionsAreIsolated(t *testing.T) {
	saver := newTestSaver(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, saver.Append(ctx, testCheckpoint("s1", "c1", workflow.NodeSearch, now)))
	require.NoError(t, saver.Append(ctx, testCheckpoint("s2", "c2", workflow.NodeReport, now)))

	got, err := saver.LoadLatest(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)

	require.NoError(t, saver.Delete(ctx, "s1"))

	exists, err := saver.Exists(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = saver.Exists(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSaverEmptySession(t *testing.T) {
	saver := newTestSaver(t)
	ctx := context.Background()

	got, err := saver.LoadLatest(ctx, "never-seen")
	require.NoError(t, err)
	assert.Nil(t, got)

	exists, err := saver.Exists(ctx, "never-seen")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, saver.Delete(ctx, "never-seen"))
}

func TestSaverRejectsBadInput(t *testing.T) {
	saver := newTestSaver(t)
	ctx := context.Background()

	assert.Error(t, saver.Append(ctx, nil))
	assert.Error(t, saver.Append(ctx, &workflow.Checkpoint{ID: "c1"}))
}
