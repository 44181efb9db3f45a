//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// Package session provides per-session status tracking and prompt queueing.
package session

import (
	"errors"
	"sync"
	"time"
)

// Status is the lifecycle status of a session.
type Status string

// Session status values.
const (
	// StatusIdle means no run is active and new input starts a run.
	StatusIdle Status = "idle"
	// StatusInProgress means a run is executing; new input is queued.
	StatusInProgress Status = "in_progress"
	// StatusAwaitingInput means the run paused for human clarification.
	// Functionally idle, but flagged distinctly for the UI.
	StatusAwaitingInput Status = "awaiting_input"
)

// ErrNotFound is returned when the session id is unknown to the registry.
var ErrNotFound = errors.New("session not found")

// Info is the registry's view of one session.
type Info struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	CurrentStep  string    `json:"current_step"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Update is a partial update of session fields. Nil fields are left untouched,
// never overwritten.
type Update struct {
	Status       *Status
	CurrentStep  *string
	MessageCount *int
}

// Registry tracks the status of all live sessions. All operations are
// strictly single-session scoped.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Info
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Info)}
}

// Connect registers a session as connected, creating its info record if it
// does not exist yet. Reconnecting an existing session keeps its counters.
func (r *Registry) Connect(sessionID string) *Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.sessions[sessionID]; ok {
		copied := *info
		return &copied
	}
	info := &Info{
		ID:        sessionID,
		Status:    StatusIdle,
		CreatedAt: time.Now(),
	}
	r.sessions[sessionID] = info
	copied := *info
	return &copied
}

// Disconnect removes the session from the registry.
func (r *Registry) Disconnect(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Get returns a copy of the session info, or nil if unknown.
func (r *Registry) Get(sessionID string) *Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	copied := *info
	return &copied
}

// Status returns the session's status. Unknown sessions report StatusIdle so
// that a fresh session can start a run without an explicit connect.
func (r *Registry) Status(sessionID string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.sessions[sessionID]
	if !ok {
		return StatusIdle
	}
	return info.Status
}

// Update applies a partial update to the session. Fields left nil in the
// update are not modified.
func (r *Registry) Update(sessionID string, update Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if update.Status != nil {
		info.Status = *update.Status
	}
	if update.CurrentStep != nil {
		info.CurrentStep = *update.CurrentStep
	}
	if update.MessageCount != nil {
		info.MessageCount = *update.MessageCount
	}
	return nil
}

// CompareAndSetStatus atomically flips the session's status from expected to
// next. It returns false when the current status differs from expected, which
// is how the execution loop guarantees at most one run per session.
func (r *Registry) CompareAndSetStatus(sessionID string, expected, next Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.sessions[sessionID]
	if !ok {
		if expected != StatusIdle {
			return false
		}
		info = &Info{
			ID:        sessionID,
			Status:    StatusIdle,
			CreatedAt: time.Now(),
		}
		r.sessions[sessionID] = info
	}
	if info.Status != expected {
		return false
	}
	info.Status = next
	return true
}

// StatusPtr is a helper for building partial updates.
func StatusPtr(s Status) *Status { return &s }

// StringPtr is a helper for building partial updates.
func StringPtr(s string) *string { return &s }

// IntPtr is a helper for building partial updates.
func IntPtr(i int) *int { return &i }
