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

	"trpc.group/trpc-go/trpc-deepresearch-go/event"
	"trpc.group/trpc-go/trpc-deepresearch-go/model"
	"trpc.group/trpc-go/trpc-deepresearch-go/tool"
	"trpc.group/trpc-go/trpc-deepresearch-go/tool/websearch"
	"trpc.group/trpc-go/trpc-deepresearch-go/workflow"
)

const searchPrompt = `You are a research assistant. Use the web_search tool
to research the topics in the conversation, one query per topic. Judge the
results: issue follow-up queries if a topic is still uncovered, otherwise
write a concise findings summary across all topics.`

// Search researches the decomposed topics through a web lookup tool loop:
// the model issues queries, reads the results and decides whether more
// lookups are needed before summarizing.
type Search struct {
	model     model.Model
	search    tool.CallableTool
	publisher workflow.EventPublisher
}

// NewSearch creates the search node.
func NewSearch(m model.Model, searchTool tool.CallableTool, publisher workflow.EventPublisher) *Search {
	return &Search{model: m, search: searchTool, publisher: publisher}
}

// ID implements workflow.Node.
func (s *Search) ID() workflow.NodeID { return workflow.NodeSearch }

// Invoke implements workflow.Node.
func (s *Search) Invoke(ctx context.Context, sessionID string, state *workflow.State) (workflow.NodeID, error) {
	tools := map[string]tool.Tool{websearch.ToolName: s.search}
	var links []string
	hook := func(_ string, result any) {
		response, ok := result.(*websearch.Response)
		if !ok {
			return
		}
		found := response.Links()
		links = append(links, found...)
		publish(s.publisher, sessionID, event.New(event.TypeSearch,
			string(workflow.NodeSearch), "web lookups completed",
			event.WithLinks(found)))
	}

	response, usage, err := runToolLoop(ctx, s.model, state,
		conversation(searchPrompt, state), tools, hook)
	if err != nil {
		return workflow.NodeUnspecified, err
	}

	findingsEvent := event.New(event.TypeSearch, string(workflow.NodeSearch),
		response.Message.Content, event.WithUsage(usage), event.WithLinks(links))
	state.AppendAgent(string(workflow.NodeSearch), workflow.Message{
		Content: response.Message.Content,
		Event:   findingsEvent.Clone(),
		Usage:   usage,
	})
	state.ClearSubLoop()
	publish(s.publisher, sessionID, findingsEvent)
	return workflow.NodeUnspecified, nil
}
