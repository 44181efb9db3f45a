//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// deepresearchd runs the research workflow service: the supervisor-routed
// node loop behind a websocket live channel and the session HTTP API.
package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trpc.group/trpc-go/trpc-deepresearch-go/agents"
	"trpc.group/trpc-go/trpc-deepresearch-go/artifact"
	"trpc.group/trpc-go/trpc-deepresearch-go/config"
	"trpc.group/trpc-go/trpc-deepresearch-go/event"
	"trpc.group/trpc-go/trpc-deepresearch-go/knowledge"
	"trpc.group/trpc-go/trpc-deepresearch-go/log"
	"trpc.group/trpc-go/trpc-deepresearch-go/model/openai"
	"trpc.group/trpc-go/trpc-deepresearch-go/server"
	"trpc.group/trpc-go/trpc-deepresearch-go/session"
	"trpc.group/trpc-go/trpc-deepresearch-go/summary"
	"trpc.group/trpc-go/trpc-deepresearch-go/tool/websearch"
	"trpc.group/trpc-go/trpc-deepresearch-go/workflow"
	checkpointsqlite "trpc.group/trpc-go/trpc-deepresearch-go/workflow/checkpoint/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.Fatalf("service failed: %v", err)
	}
}

func run(cfg config.Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		return err
	}
	db, err := sql.Open("sqlite3", cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	saver, err := checkpointsqlite.NewSaver(db)
	if err != nil {
		return err
	}
	summaries, err := summary.NewSQLiteStore(db)
	if err != nil {
		return err
	}
	storage, err := artifact.NewStorage(cfg.DataDir)
	if err != nil {
		return err
	}
	index := knowledge.NewIndex()

	bus := event.NewBus()
	registry := session.NewRegistry()
	queue := session.NewPromptQueue()

	modelOpts := []openai.Option{openai.WithAPIKey(cfg.Model.APIKey)}
	if cfg.Model.BaseURL != "" {
		modelOpts = append(modelOpts, openai.WithBaseURL(cfg.Model.BaseURL))
	}
	m := openai.New(cfg.Model.Name, modelOpts...)

	nodes := []workflow.Node{
		agents.NewClarify(m, bus),
		agents.NewDecompose(m, bus),
		agents.NewSearch(m, websearch.New(), bus),
		agents.NewFileSearch(m, index, bus),
		agents.NewFileGenerate(m, storage, bus),
		agents.NewReport(m, bus),
	}
	router := workflow.NewRouter(m,
		workflow.WithSummarySource(summaries),
		workflow.WithRouterEventPublisher(bus))

	engineOpts := []workflow.EngineOption{workflow.WithEventPublisher(bus)}
	if cfg.MaxHops > 0 {
		engineOpts = append(engineOpts, workflow.WithMaxHops(cfg.MaxHops))
	}
	engine := workflow.NewEngine(router, saver, registry, queue, nodes, engineOpts...)

	srv, err := server.New(server.Config{
		Addr:          cfg.ListenAddr,
		UploadWorkers: cfg.UploadWorkers,
		Engine:        engine,
		Saver:         saver,
		Bus:           bus,
		Registry:      registry,
		Queue:         queue,
		Storage:       storage,
		Index:         index,
		Summaries:     summaries,
		Model:         m,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
