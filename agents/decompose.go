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
	"strings"

	"trpc.group/trpc-go/trpc-deepresearch-go/event"
	"trpc.group/trpc-go/trpc-deepresearch-go/model"
	"trpc.group/trpc-go/trpc-deepresearch-go/workflow"
)

const decomposePrompt = `Break the user's research request into 3 to 4
focused sub-topics that together cover the request. Each topic must be a
short, self-contained research question.`

var decomposeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"topics": map[string]any{
			"type":        "array",
			"description": "The research sub-topics, 3 to 4 entries.",
			"items":       map[string]any{"type": "string"},
		},
	},
	"required":             []string{"topics"},
	"additionalProperties": false,
}

type decomposeDecision struct {
	Topics []string `json:"topics"`
}

// Decompose breaks a complex request into a small set of research topics.
type Decompose struct {
	model     model.Model
	publisher workflow.EventPublisher
}

// NewDecompose creates the decompose node.
func NewDecompose(m model.Model, publisher workflow.EventPublisher) *Decompose {
	return &Decompose{model: m, publisher: publisher}
}

// ID implements workflow.Node.
func (d *Decompose) ID() workflow.NodeID { return workflow.NodeDecompose }

// Invoke implements workflow.Node.
func (d *Decompose) Invoke(ctx context.Context, sessionID string, state *workflow.State) (workflow.NodeID, error) {
	var decision decomposeDecision
	usage, err := generateStructured(ctx, d.model,
		conversation(decomposePrompt, state), "decompose", decomposeSchema, &decision)
	if err != nil {
		return workflow.NodeUnspecified, err
	}

	var sb strings.Builder
	sb.WriteString("Research topics:\n")
	for _, topic := range decision.Topics {
		sb.WriteString("- ")
		sb.WriteString(topic)
		sb.WriteString("\n")
	}
	content := sb.String()

	topicsEvent := event.New(event.TypeSummarizeTopics,
		string(workflow.NodeDecompose), content, event.WithUsage(usage))
	state.AppendAgent(string(workflow.NodeDecompose), workflow.Message{
		Content: content,
		Visible: true,
		Event:   topicsEvent.Clone(),
		Usage:   usage,
	})
	publish(d.publisher, sessionID, topicsEvent)
	return workflow.NodeUnspecified, nil
}
