//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides a SQLite-backed checkpoint saver for workflow
// state persistence and crash recovery.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trpc.group/trpc-go/trpc-deepresearch-go/workflow"
)

const (
	sqliteCreateCheckpoints = "CREATE TABLE IF NOT EXISTS checkpoints (" +
		"session_id TEXT NOT NULL, " +
		"checkpoint_id TEXT NOT NULL, " +
		"cursor TEXT NOT NULL, " +
		"ts INTEGER NOT NULL, " +
		"state_json BLOB NOT NULL, " +
		"PRIMARY KEY (session_id, checkpoint_id)" +
		")"

	sqliteCreateIndex = "CREATE INDEX IF NOT EXISTS idx_checkpoints_session_ts " +
		"ON checkpoints (session_id, ts)"

	sqliteInsertCheckpoint = "INSERT OR REPLACE INTO checkpoints (" +
		"session_id, checkpoint_id, cursor, ts, state_json) VALUES (?, ?, ?, ?, ?)"

	sqliteSelectLatest = "SELECT checkpoint_id, cursor, ts, state_json " +
		"FROM checkpoints WHERE session_id = ? ORDER BY ts DESC, rowid DESC LIMIT 1"

	sqliteSelectExists = "SELECT 1 FROM checkpoints WHERE session_id = ? LIMIT 1"

	sqliteDeleteSession = "DELETE FROM checkpoints WHERE session_id = ?"
)

// Saver is a SQLite-backed implementation of workflow.Saver. It expects an
// initialized *sql.DB with a SQLite driver and creates the required schema.
// The whole state is stored as a JSON blob per checkpoint; history is
// append-only and the newest row wins on load.
type Saver struct {
	db *sql.DB
}

// NewSaver creates a new saver using the provided DB, creating tables if
// needed. The caller owns the DB lifecycle.
func NewSaver(db *sql.DB) (*Saver, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if _, err := db.Exec(sqliteCreateCheckpoints); err != nil {
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	if _, err := db.Exec(sqliteCreateIndex); err != nil {
		return nil, fmt.Errorf("create checkpoints index: %w", err)
	}
	return &Saver{db: db}, nil
}

// Append adds a checkpoint to the session's history.
func (s *Saver) Append(ctx context.Context, checkpoint *workflow.Checkpoint) error {
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
	_, err = s.db.ExecContext(ctx, sqliteInsertCheckpoint,
		checkpoint.SessionID,
		checkpoint.ID,
		string(checkpoint.Cursor),
		checkpoint.CreatedAt.UnixNano(),
		stateJSON,
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// LoadLatest returns the newest checkpoint for the session, or nil when the
// session has none.
func (s *Saver) LoadLatest(ctx context.Context, sessionID string) (*workflow.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectLatest, sessionID)
	var (
		checkpointID string
		cursor       string
		ts           int64
		stateJSON    []byte
	)
	if err := row.Scan(&checkpointID, &cursor, &ts, &stateJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select latest checkpoint: %w", err)
	}
	var state workflow.State
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &workflow.Checkpoint{
		ID:        checkpointID,
		SessionID: sessionID,
		Cursor:    workflow.NodeID(cursor),
		State:     &state,
		CreatedAt: time.Unix(0, ts),
	}, nil
}

// Exists reports whether the session has any checkpoint.
func (s *Saver) Exists(ctx context.Context, sessionID string) (bool, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectExists, sessionID)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("select checkpoint existence: %w", err)
	}
	return true, nil
}

// Delete removes the session's entire checkpoint history.
func (s *Saver) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, sqliteDeleteSession, sessionID); err != nil {
		return fmt.Errorf("delete checkpoints: %w", err)
	}
	return nil
}
