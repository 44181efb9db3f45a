//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// Package summary stores one model-generated summary per uploaded file. The
// supervisor reads them to decide whether a request should route to the
// session's documents.
package summary

import (
	"context"
	"sync"
)

// Store persists per-(session, file) summaries.
type Store interface {
	// Upsert inserts or replaces the summary for the file.
	Upsert(ctx context.Context, sessionID, fileName, summary string) error

	// List returns the session's summaries keyed by file name.
	List(ctx context.Context, sessionID string) (map[string]string, error)

	// Delete removes the summary for one file.
	Delete(ctx context.Context, sessionID, fileName string) error

	// DeleteSession removes every summary for the session.
	DeleteSession(ctx context.Context, sessionID string) error
}

// InMemoryStore is a map-backed Store for tests and non-durable deployments.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]string
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]map[string]string)}
}

// Upsert implements Store.
func (s *InMemoryStore) Upsert(_ context.Context, sessionID, fileName, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, ok := s.sessions[sessionID]
	if !ok {
		files = make(map[string]string)
		s.sessions[sessionID] = files
	}
	files[fileName] = summary
	return nil
}

// List implements Store.
func (s *InMemoryStore) List(_ context.Context, sessionID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.sessions[sessionID]))
	for name, text := range s.sessions[sessionID] {
		out[name] = text
	}
	return out, nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(_ context.Context, sessionID, fileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions[sessionID], fileName)
	return nil
}

// DeleteSession implements Store.
func (s *InMemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
