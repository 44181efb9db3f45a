//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-deepresearch-go/event"
	"trpc.group/trpc-go/trpc-deepresearch-go/knowledge"
	"trpc.group/trpc-go/trpc-deepresearch-go/model"
	"trpc.group/trpc-go/trpc-deepresearch-go/tool"
	"trpc.group/trpc-go/trpc-deepresearch-go/workflow"
)

const fileSearchToolName = "file_search"

const fileSearchPrompt = `You are answering from the user's uploaded
documents. Use the file_search tool to pull relevant passages; the available
file names are listed below. When a file reports an error, work with what the
other files returned. Then answer the user's question from the retrieved
material only.`

const passageSummaryPrompt = `Condense the following passages into the facts
relevant to the queries. Keep it short and factual.`

// fileSearchArgs is the tool input: one entry per file to query.
type fileSearchArgs struct {
	Requests []fileSearchRequest `json:"requests"`
}

type fileSearchRequest struct {
	FileName string   `json:"file_name"`
	Queries  []string `json:"queries"`
}

// fileSearchResult is the per-file outcome. A missing file is reported
// inline through Error so the node keeps going.
type fileSearchResult struct {
	FileName string `json:"file_name"`
	Summary  string `json:"summary,omitempty"`
	Error    string `json:"error,omitempty"`
}

// fileSearchTool queries the session's passage index and condenses hits with
// the model before handing them back to the node loop.
type fileSearchTool struct {
	index     *knowledge.Index
	model     model.Model
	sessionID string
}

// Declaration implements tool.Tool.
func (t *fileSearchTool) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name: fileSearchToolName,
		Description: "Search the user's uploaded documents for passages relevant to one or " +
			"more queries. Pass one request per file.",
		InputSchema: &tool.Schema{
			Type:     "object",
			Required: []string{"requests"},
			Properties: map[string]*tool.Schema{
				"requests": {
					Type: "array",
					Items: &tool.Schema{
						Type:     "object",
						Required: []string{"file_name", "queries"},
						Properties: map[string]*tool.Schema{
							"file_name": {Type: "string", Description: "Name of the uploaded file to search."},
							"queries":   {Type: "array", Items: &tool.Schema{Type: "string"}},
						},
					},
				},
			},
		},
	}
}

// Call implements tool.CallableTool.
func (t *fileSearchTool) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	var args fileSearchArgs
	if err := json.Unmarshal(jsonArgs, &args); err != nil {
		return nil, fmt.Errorf("parse file_search arguments: %w", err)
	}
	results := make([]fileSearchResult, 0, len(args.Requests))
	for _, request := range args.Requests {
		results = append(results, t.searchOne(ctx, request))
	}
	return results, nil
}

func (t *fileSearchTool) searchOne(ctx context.Context, request fileSearchRequest) fileSearchResult {
	result := fileSearchResult{FileName: request.FileName}
	passages, err := t.index.Search(t.sessionID, request.FileName, request.Queries)
	if err != nil {
		if errors.Is(err, knowledge.ErrFileNotIndexed) {
			result.Error = fmt.Sprintf("file %q not found in this session's index", request.FileName)
		} else {
			result.Error = err.Error()
		}
		return result
	}
	if len(passages) == 0 {
		result.Summary = "No relevant passages found."
		return result
	}

	var sb strings.Builder
	sb.WriteString(passageSummaryPrompt)
	sb.WriteString("\n\nQueries: ")
	sb.WriteString(strings.Join(request.Queries, "; "))
	sb.WriteString("\n\nPassages:\n")
	for _, passage := range passages {
		sb.WriteString("---\n")
		sb.WriteString(passage.Content)
		sb.WriteString("\n")
	}
	response, err := t.model.GenerateContent(ctx, &model.Request{
		Messages: []model.Message{model.NewUserMessage(sb.String())},
	})
	if err != nil {
		// Condensing is best-effort: fall back to the raw passages.
		result.Summary = sb.String()
		return result
	}
	result.Summary = response.Message.Content
	return result
}

// FileSearch answers the request from the session's indexed uploads through
// a file_search tool loop.
type FileSearch struct {
	model     model.Model
	index     *knowledge.Index
	publisher workflow.EventPublisher
}

// NewFileSearch creates the file_search node.
func NewFileSearch(m model.Model, index *knowledge.Index, publisher workflow.EventPublisher) *FileSearch {
	return &FileSearch{model: m, index: index, publisher: publisher}
}

// ID implements workflow.Node.
func (f *FileSearch) ID() workflow.NodeID { return workflow.NodeFileSearch }

// Invoke implements workflow.Node.
func (f *FileSearch) Invoke(ctx context.Context, sessionID string, state *workflow.State) (workflow.NodeID, error) {
	searchTool := &fileSearchTool{index: f.index, model: f.model, sessionID: sessionID}
	tools := map[string]tool.Tool{fileSearchToolName: searchTool}

	var files []string
	hook := func(_ string, result any) {
		results, ok := result.([]fileSearchResult)
		if !ok {
			return
		}
		for _, r := range results {
			if r.Error == "" {
				files = append(files, r.FileName)
			}
		}
		publish(f.publisher, sessionID, event.New(event.TypeFileSearch,
			string(workflow.NodeFileSearch), "document passages retrieved",
			event.WithFiles(files)))
	}

	system := fileSearchPrompt
	if indexed := f.index.Files(sessionID); len(indexed) > 0 {
		system += "\n\nAvailable files: " + strings.Join(indexed, ", ")
	}
	response, usage, err := runToolLoop(ctx, f.model, state,
		conversation(system, state), tools, hook)
	if err != nil {
		return workflow.NodeUnspecified, err
	}

	answerEvent := event.New(event.TypeFileSearch, string(workflow.NodeFileSearch),
		response.Message.Content, event.WithUsage(usage), event.WithFiles(files))
	state.AppendAgent(string(workflow.NodeFileSearch), workflow.Message{
		Content:     response.Message.Content,
		Attachments: files,
		Event:       answerEvent.Clone(),
		Usage:       usage,
	})
	state.ClearSubLoop()
	publish(f.publisher, sessionID, answerEvent)
	return workflow.NodeUnspecified, nil
}
