//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package session

import "sync"

// PromptQueue buffers user prompts that arrive while a session's run is in
// progress. The supervisor drains the queue at step boundaries so mid-run
// input is merged instead of dropped.
type PromptQueue struct {
	mu      sync.Mutex
	pending map[string][]string
}

// NewPromptQueue creates an empty prompt queue.
func NewPromptQueue() *PromptQueue {
	return &PromptQueue{pending: make(map[string][]string)}
}

// Push appends a prompt to the session's queue.
func (q *PromptQueue) Push(sessionID, prompt string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[sessionID] = append(q.pending[sessionID], prompt)
}

// Len reports how many prompts are queued for the session.
func (q *PromptQueue) Len(sessionID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[sessionID])
}

// DrainAndClear atomically removes and returns all queued prompts for the
// session in arrival order. Prompts pushed after the drain belong to the next
// drain; no prompt is ever returned twice.
func (q *PromptQueue) DrainAndClear(sessionID string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	prompts := q.pending[sessionID]
	delete(q.pending, sessionID)
	return prompts
}

// Forget drops any queued prompts for a deleted session.
func (q *PromptQueue) Forget(sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, sessionID)
}
