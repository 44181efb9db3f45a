//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory checkpoint saver for tests and
// single-process deployments that do not need durability.
package inmemory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-deepresearch-go/workflow"
)

// Saver is an in-memory implementation of workflow.Saver. Checkpoints are
// stored as serialized JSON so the load path exercises the same round trip
// as the durable savers.
type Saver struct {
	mu       sync.RWMutex
	sessions map[string][]entry
}

type entry struct {
	id        string
	cursor    workflow.NodeID
	createdAt int64
	stateJSON []byte
}

// NewSaver creates an empty in-memory saver.
func NewSaver() *Saver {
	return &Saver{sessions: make(map[string][]entry)}
}

// Append adds a checkpoint to the session's history.
func (s *Saver) Append(_ context.Context, checkpoint *workflow.Checkpoint) error {
	if checkpoint == nil {
		return errors.New("checkpoint is nil")
	}
	if checkpoint.SessionID == "" {
		return errors.New("session id is required")
	}
	stateJSON, err := json.Marshal(checkpoint.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[checkpoint.SessionID] = append(s.sessions[checkpoint.SessionID], entry{
		id:        checkpoint.ID,
		cursor:    checkpoint.Cursor,
		createdAt: checkpoint.CreatedAt.UnixNano(),
		stateJSON: stateJSON,
	})
	return nil
}

// LoadLatest returns the newest checkpoint for the session, or nil when the
// session has none.
func (s *Saver) LoadLatest(_ context.Context, sessionID string) (*workflow.Checkpoint, error) {
	s.mu.RLock()
	history := s.sessions[sessionID]
	if len(history) == 0 {
		s.mu.RUnlock()
		return nil, nil
	}
	latest := history[len(history)-1]
	s.mu.RUnlock()

	var state workflow.State
	if err := json.Unmarshal(latest.stateJSON, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &workflow.Checkpoint{
		ID:        latest.id,
		SessionID: sessionID,
		Cursor:    latest.cursor,
		State:     &state,
		CreatedAt: time.Unix(0, latest.createdAt),
	}, nil
}

// Exists reports whether the session has any checkpoint.
func (s *Saver) Exists(_ context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID]) > 0, nil
}

// Delete removes the session's entire checkpoint history.
func (s *Saver) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Len reports the number of checkpoints stored for the session.
func (s *Saver) Len(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID])
}
