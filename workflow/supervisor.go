//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-deepresearch-go/event"
	"trpc.group/trpc-go/trpc-deepresearch-go/log"
	"trpc.group/trpc-go/trpc-deepresearch-go/model"
)

// EventPublisher pushes progress events to a session's live subscriber.
// event.Bus satisfies this interface.
type EventPublisher interface {
	Publish(sessionID string, ev *event.Event)
}

// SummarySource lists the stored per-file summaries for a session's uploaded
// documents. The router uses them to bias routing toward file_search when the
// user has uploaded material.
type SummarySource interface {
	List(ctx context.Context, sessionID string) (map[string]string, error)
}

const supervisorName = "supervisor"

const routingInstructions = `You are the supervisor of a deep-research workflow.
Given the conversation so far, choose the next step:
- clarify: the request is too vague to act on and needs a clarifying question.
- decompose: the request is clear but has not been broken into research topics yet.
- search: research topics exist and need web research.
- file_search: the answer likely lives in the user's uploaded documents.
- file_generate: the user asked for a document artifact to be produced.
- report: enough material has been gathered to write the final answer.
- end: nothing remains to be done.
Return the chosen path and a short reasoning.`

// routeSchema constrains the routing decision to the closed vocabulary.
var routeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"path": map[string]any{
			"type": "string",
			"enum": []string{
				string(NodeClarify), string(NodeDecompose), string(NodeSearch),
				string(NodeFileSearch), string(NodeFileGenerate),
				string(NodeReport), string(NodeEnd),
			},
		},
		"reasoning": map[string]any{"type": "string"},
	},
	"required":             []string{"path", "reasoning"},
	"additionalProperties": false,
}

// routeDecision is the structured routing answer.
type routeDecision struct {
	Path      string `json:"path"`
	Reasoning string `json:"reasoning"`
}

// Router is the supervisor: it decides which node runs next after each hop.
type Router struct {
	model     model.Model
	summaries SummarySource
	publisher EventPublisher
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithSummarySource sets the uploaded-file summary source.
func WithSummarySource(source SummarySource) RouterOption {
	return func(r *Router) { r.summaries = source }
}

// WithRouterEventPublisher sets the event publisher for routing events.
func WithRouterEventPublisher(publisher EventPublisher) RouterOption {
	return func(r *Router) { r.publisher = publisher }
}

// NewRouter creates a supervisor router backed by the given model.
func NewRouter(m model.Model, opts ...RouterOption) *Router {
	r := &Router{model: m}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Decide picks the next node. Priority order:
//
//  1. A pending pause forces end: no node runs while the session awaits
//     clarification.
//  2. If the report node just ran and no new prompts are queued, force end.
//  3. Otherwise merge the queued prompts into the conversation (the sole
//     merge point for mid-run input) and delegate the choice to the model,
//     constrained to the closed routing vocabulary.
//
// Routing never fails the run: an out-of-vocabulary answer or a model error
// is normalized to NodeEnd with a diagnostic routing_error event.
func (r *Router) Decide(ctx context.Context, sessionID string, state *State, prompts []string) NodeID {
	if state.PauseRequired {
		return NodeEnd
	}
	if state.LastActor == string(NodeReport) && len(prompts) == 0 {
		return NodeEnd
	}
	for _, prompt := range prompts {
		state.AppendHuman(prompt)
		state.LastActor = "user"
	}

	decision, usage, err := r.route(ctx, sessionID, state)
	if err != nil {
		log.Errorf("supervisor routing failed for session %s: %v", sessionID, err)
		r.publish(sessionID, event.New(event.TypeRoutingError, supervisorName,
			fmt.Sprintf("routing failed: %v", err)))
		return NodeEnd
	}

	next, ok := ParseNodeID(decision.Path)
	if !ok {
		log.Warnf("supervisor returned unknown path %q for session %s", decision.Path, sessionID)
		r.publish(sessionID, event.New(event.TypeRoutingError, supervisorName,
			fmt.Sprintf("unknown routing path %q, ending run", decision.Path)))
		return NodeEnd
	}
	r.publish(sessionID, event.New(event.TypeSupervisorRouting, supervisorName,
		decision.Reasoning, event.WithUsage(usage)))
	return next
}

// route calls the model with the routing schema and parses the answer.
func (r *Router) route(ctx context.Context, sessionID string, state *State) (*routeDecision, *model.Usage, error) {
	messages := []model.Message{model.NewSystemMessage(r.systemPrompt(ctx, sessionID))}
	messages = append(messages, state.History()...)

	response, err := r.model.GenerateContent(ctx, &model.Request{
		Messages: messages,
		StructuredOutput: &model.StructuredOutput{
			Type: model.StructuredOutputJSONSchema,
			JSONSchema: &model.JSONSchema{
				Name:   "route",
				Schema: routeSchema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, nil, err
	}
	var decision routeDecision
	if err := json.Unmarshal([]byte(response.Message.Content), &decision); err != nil {
		return nil, nil, fmt.Errorf("parse routing decision: %w", err)
	}
	return &decision, response.Usage, nil
}

// systemPrompt builds the routing instructions, appending uploaded-file
// summaries when the session has indexed documents.
func (r *Router) systemPrompt(ctx context.Context, sessionID string) string {
	var sb strings.Builder
	sb.WriteString(routingInstructions)
	if r.summaries == nil {
		return sb.String()
	}
	summaries, err := r.summaries.List(ctx, sessionID)
	if err != nil {
		log.Warnf("listing file summaries for session %s: %v", sessionID, err)
		return sb.String()
	}
	if len(summaries) == 0 {
		return sb.String()
	}
	sb.WriteString("\n\nThe user has uploaded the following documents; prefer file_search when the request concerns them:\n")
	for name, summary := range summaries {
		fmt.Fprintf(&sb, "- %s: %s\n", name, summary)
	}
	return sb.String()
}

func (r *Router) publish(sessionID string, ev *event.Event) {
	if r.publisher == nil {
		return
	}
	r.publisher.Publish(sessionID, ev)
}
