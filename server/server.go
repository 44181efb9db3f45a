//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// Package server exposes the workflow over HTTP: a websocket live channel per
// session, the upload ingestion pipeline and the session lifecycle endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-deepresearch-go/artifact"
	"trpc.group/trpc-go/trpc-deepresearch-go/event"
	"trpc.group/trpc-go/trpc-deepresearch-go/knowledge"
	"trpc.group/trpc-go/trpc-deepresearch-go/log"
	"trpc.group/trpc-go/trpc-deepresearch-go/model"
	"trpc.group/trpc-go/trpc-deepresearch-go/session"
	"trpc.group/trpc-go/trpc-deepresearch-go/summary"
	"trpc.group/trpc-go/trpc-deepresearch-go/workflow"
)

// defaultUploadWorkers sizes the ingestion pool when the config leaves it 0.
const defaultUploadWorkers = 4

// Config carries the server's collaborators. All fields except Addr and
// UploadWorkers are required.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// UploadWorkers sizes the upload ingestion pool.
	UploadWorkers int

	Engine    *workflow.Engine
	Saver     workflow.Saver
	Bus       *event.Bus
	Registry  *session.Registry
	Queue     *session.PromptQueue
	Storage   *artifact.Storage
	Index     *knowledge.Index
	Summaries summary.Store
	Model     model.Model
}

// Server is the HTTP front of the workflow service.
type Server struct {
	cfg  Config
	pool *ants.Pool
	http *http.Server
}

// New creates the server and its upload worker pool.
func New(cfg Config) (*Server, error) {
	workers := cfg.UploadWorkers
	if workers <= 0 {
		workers = defaultUploadWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create upload pool: %w", err)
	}

	s := &Server{cfg: cfg, pool: pool}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           cors.AllowAll().Handler(s.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Routes builds the HTTP route table.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/create_session", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/ws/{sessionID}", s.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/api/{sessionID}/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/api/{sessionID}", s.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/api/file/download/{sessionID}/{fileName}", s.handleDownload).Methods(http.MethodGet)
	return r
}

// ListenAndServe blocks serving requests until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	log.Infof("listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and releases the upload pool.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.pool.Release()
	return err
}

// handleCreateSession mints a fresh session id and registers it.
func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sessionID := "session_" + uuid.New().String()
	s.cfg.Registry.Connect(sessionID)
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
}

// handleDeleteSession removes every trace of the session: checkpoints, index
// entries, artifacts, summaries, queued prompts and live-channel state.
// Partial failures are collected and reported rather than silently ignored.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	ctx := r.Context()

	var failures []string
	if err := s.cfg.Saver.Delete(ctx, sessionID); err != nil {
		failures = append(failures, fmt.Sprintf("checkpoints: %v", err))
	}
	if err := s.cfg.Storage.DeleteSession(sessionID); err != nil {
		failures = append(failures, fmt.Sprintf("artifacts: %v", err))
	}
	if err := s.cfg.Summaries.DeleteSession(ctx, sessionID); err != nil {
		failures = append(failures, fmt.Sprintf("summaries: %v", err))
	}
	s.cfg.Index.DeleteSession(sessionID)
	s.cfg.Queue.Forget(sessionID)
	s.cfg.Bus.Forget(sessionID)
	s.cfg.Registry.Disconnect(sessionID)

	if len(failures) > 0 {
		log.Warnf("deleting session %s left residue: %v", sessionID, failures)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"deleted":  false,
			"failures": failures,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
