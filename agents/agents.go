//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// Package agents provides the built-in workflow nodes: clarify, decompose,
// search, file_search, file_generate and report. Each node mutates the
// workflow state it is handed and routes back to the supervisor; the looping
// nodes drive a private model↔tool sub-conversation first.
package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"trpc.group/trpc-go/trpc-deepresearch-go/event"
	"trpc.group/trpc-go/trpc-deepresearch-go/log"
	"trpc.group/trpc-go/trpc-deepresearch-go/model"
	"trpc.group/trpc-go/trpc-deepresearch-go/tool"
	"trpc.group/trpc-go/trpc-deepresearch-go/workflow"
)

// maxToolRounds bounds a node's internal model↔tool sub-loop.
const maxToolRounds = 4

// toolError is the inline payload recorded when a tool call fails. The loop
// keeps going; the model sees the failure and works around it.
type toolError struct {
	Error string `json:"error"`
}

// toolResultHook observes each tool result inside a sub-loop, letting nodes
// publish progress events as results arrive.
type toolResultHook func(toolName string, result any)

// runToolLoop drives a node's private sub-conversation: the model is invoked
// with the given tools until it answers without requesting another call, or
// the round limit is reached. The running transcript lives in
// state.SubMessages so a checkpoint taken after the node returns captures
// the final sub-state; the in-flight call id is tracked in state.ToolCallID.
func runToolLoop(
	ctx context.Context,
	m model.Model,
	state *workflow.State,
	seed []model.Message,
	tools map[string]tool.Tool,
	hook toolResultHook,
) (*model.Response, *model.Usage, error) {
	if len(state.SubMessages) == 0 {
		state.SubMessages = seed
	}
	usage := &model.Usage{}

	for round := 0; round < maxToolRounds; round++ {
		response, err := m.GenerateContent(ctx, &model.Request{
			Messages: state.SubMessages,
			Tools:    tools,
		})
		if err != nil {
			return nil, usage, err
		}
		usage.Add(response.Usage)
		if !response.HasToolCalls() {
			return response, usage, nil
		}

		state.SubMessages = append(state.SubMessages, response.Message)
		for _, call := range response.Message.ToolCalls {
			state.ToolCallID = call.ID
			result := executeTool(ctx, tools, call)
			if hook != nil {
				hook(call.Function.Name, result)
			}
			payload, err := json.Marshal(result)
			if err != nil {
				payload = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
			}
			state.SubMessages = append(state.SubMessages,
				model.NewToolMessage(call.ID, string(payload)))
		}
	}

	// Round limit reached: force a final answer without tools.
	response, err := m.GenerateContent(ctx, &model.Request{Messages: state.SubMessages})
	if err != nil {
		return nil, usage, err
	}
	usage.Add(response.Usage)
	return response, usage, nil
}

// executeTool runs one tool call, converting every failure into an inline
// error payload.
func executeTool(ctx context.Context, tools map[string]tool.Tool, call model.ToolCall) any {
	t, ok := tools[call.Function.Name]
	if !ok {
		return toolError{Error: fmt.Sprintf("unknown tool %q", call.Function.Name)}
	}
	callable, ok := t.(tool.CallableTool)
	if !ok {
		return toolError{Error: fmt.Sprintf("tool %q is not callable", call.Function.Name)}
	}
	result, err := callable.Call(ctx, call.Function.Arguments)
	if err != nil {
		log.Warnf("tool %s failed: %v", call.Function.Name, err)
		return toolError{Error: err.Error()}
	}
	return result
}

// generateStructured invokes the model with a json-schema constrained output
// and unmarshals the answer into out.
func generateStructured(
	ctx context.Context,
	m model.Model,
	messages []model.Message,
	schemaName string,
	schema map[string]any,
	out any,
) (*model.Usage, error) {
	response, err := m.GenerateContent(ctx, &model.Request{
		Messages: messages,
		StructuredOutput: &model.StructuredOutput{
			Type: model.StructuredOutputJSONSchema,
			JSONSchema: &model.JSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(response.Message.Content), out); err != nil {
		return response.Usage, fmt.Errorf("parse %s answer: %w", schemaName, err)
	}
	return response.Usage, nil
}

// conversation builds the model messages for a node: its system prompt
// followed by the purified top-level conversation. Tool bookkeeping messages
// never leak into node prompts.
func conversation(system string, state *workflow.State) []model.Message {
	messages := []model.Message{model.NewSystemMessage(system)}
	return append(messages, state.History()...)
}

// publish pushes an event when a publisher is configured.
func publish(publisher workflow.EventPublisher, sessionID string, ev *event.Event) {
	if publisher == nil {
		return
	}
	publisher.Publish(sessionID, ev)
}
