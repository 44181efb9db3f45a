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
	"trpc.group/trpc-go/trpc-deepresearch-go/workflow"
)

const clarifyPrompt = `Judge whether the user's research request is specific
enough to act on. If it is too vague, write one concise clarifying question
that would unblock the research. If it is specific enough, say so.`

var clarifySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"need_to_clarify": map[string]any{
			"type":        "boolean",
			"description": "Whether the request needs clarification before research can start.",
		},
		"clarify_question": map[string]any{
			"type":        "string",
			"description": "The clarifying question to ask the user, empty when not needed.",
		},
	},
	"required":             []string{"need_to_clarify", "clarify_question"},
	"additionalProperties": false,
}

type clarifyDecision struct {
	NeedToClarify   bool   `json:"need_to_clarify"`
	ClarifyQuestion string `json:"clarify_question"`
}

// Clarify judges whether the request is specific enough. When it is not, it
// asks a clarifying question and pauses the run for the user's answer.
type Clarify struct {
	model     model.Model
	publisher workflow.EventPublisher
}

// NewClarify creates the clarify node.
func NewClarify(m model.Model, publisher workflow.EventPublisher) *Clarify {
	return &Clarify{model: m, publisher: publisher}
}

// ID implements workflow.Node.
func (c *Clarify) ID() workflow.NodeID { return workflow.NodeClarify }

// Invoke implements workflow.Node.
func (c *Clarify) Invoke(ctx context.Context, sessionID string, state *workflow.State) (workflow.NodeID, error) {
	var decision clarifyDecision
	usage, err := generateStructured(ctx, c.model,
		conversation(clarifyPrompt, state), "clarify", clarifySchema, &decision)
	if err != nil {
		return workflow.NodeUnspecified, err
	}

	if !decision.NeedToClarify {
		state.AppendAgent(string(workflow.NodeClarify), workflow.Message{
			Content: "The request is specific enough to research directly.",
			Usage:   usage,
		})
		publish(c.publisher, sessionID, event.New(event.TypeClarifyDetail,
			string(workflow.NodeClarify), "request is clear, continuing",
			event.WithUsage(usage)))
		return workflow.NodeUnspecified, nil
	}

	pauseEvent := event.New(event.TypeHardPause, string(workflow.NodeClarify),
		decision.ClarifyQuestion, event.WithUsage(usage))
	state.AppendAgent(string(workflow.NodeClarify), workflow.Message{
		Content: decision.ClarifyQuestion,
		Visible: true,
		Event:   pauseEvent.Clone(),
		Usage:   usage,
	})
	state.PauseRequired = true
	publish(c.publisher, sessionID, pauseEvent)
	return workflow.NodeEnd, nil
}
