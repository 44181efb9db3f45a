//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package workflow

import (
	"context"
	"time"
)

// Checkpoint is a durable snapshot of a session's workflow state plus the
// routing cursor, i.e. the id of the last completed node. The checkpoint
// history per session is append-only; the latest entry wins on load.
type Checkpoint struct {
	// ID is the unique identifier of the checkpoint.
	ID string `json:"id"`

	// SessionID keys the checkpoint history.
	SessionID string `json:"session_id"`

	// Cursor is the last completed node, NodeUnspecified for a snapshot
	// taken before the first node ran.
	Cursor NodeID `json:"cursor"`

	// State is the workflow state at the time of the snapshot.
	State *State `json:"state"`

	// CreatedAt is the snapshot time.
	CreatedAt time.Time `json:"created_at"`
}

// Saver persists checkpoints. Implementations must be safe for concurrent
// use across sessions; within one session the execution loop serializes all
// writes.
type Saver interface {
	// Append adds a checkpoint to the session's history.
	Append(ctx context.Context, checkpoint *Checkpoint) error

	// LoadLatest returns the newest checkpoint for the session, or nil
	// when the session has none.
	LoadLatest(ctx context.Context, sessionID string) (*Checkpoint, error)

	// Exists reports whether the session has any checkpoint.
	Exists(ctx context.Context, sessionID string) (bool, error)

	// Delete removes the session's entire checkpoint history.
	Delete(ctx context.Context, sessionID string) error
}
