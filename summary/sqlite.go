//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package summary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	sqliteCreateSummaries = "CREATE TABLE IF NOT EXISTS summary_index (" +
		"session_id TEXT NOT NULL, " +
		"file_name TEXT NOT NULL, " +
		"summary TEXT NOT NULL, " +
		"updated_at INTEGER NOT NULL, " +
		"PRIMARY KEY (session_id, file_name)" +
		")"

	sqliteUpsertSummary = "INSERT OR REPLACE INTO summary_index (" +
		"session_id, file_name, summary, updated_at) VALUES (?, ?, ?, ?)"

	sqliteSelectSummaries = "SELECT file_name, summary FROM summary_index WHERE session_id = ?"

	sqliteDeleteSummary = "DELETE FROM summary_index WHERE session_id = ? AND file_name = ?"

	sqliteDeleteSession = "DELETE FROM summary_index WHERE session_id = ?"
)

// SQLiteStore is a SQLite-backed Store. It expects an initialized *sql.DB
// with a SQLite driver and creates its table on construction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the store, creating the table if needed. The caller
// owns the DB lifecycle.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if _, err := db.Exec(sqliteCreateSummaries); err != nil {
		return nil, fmt.Errorf("create summary_index table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Upsert implements Store.
func (s *SQLiteStore) Upsert(ctx context.Context, sessionID, fileName, summary string) error {
	if sessionID == "" || fileName == "" {
		return errors.New("session id and file name are required")
	}
	_, err := s.db.ExecContext(ctx, sqliteUpsertSummary,
		sessionID, fileName, summary, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, sessionID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectSummaries, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select summaries: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var fileName, text string
		if err := rows.Scan(&fileName, &text); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		out[fileName] = text
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows: %w", err)
	}
	return out, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID, fileName string) error {
	if _, err := s.db.ExecContext(ctx, sqliteDeleteSummary, sessionID, fileName); err != nil {
		return fmt.Errorf("delete summary: %w", err)
	}
	return nil
}

// DeleteSession implements Store.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, sqliteDeleteSession, sessionID); err != nil {
		return fmt.Errorf("delete session summaries: %w", err)
	}
	return nil
}
