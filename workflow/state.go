//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// Package workflow implements the orchestration core: workflow state, the
// agent node contract, durable checkpoints, the supervisor router and the
// execution loop that drives them.
package workflow

import (
	"encoding/json"
	"fmt"

	"trpc.group/trpc-go/trpc-deepresearch-go/event"
	"trpc.group/trpc-go/trpc-deepresearch-go/model"
)

// Role identifies the author of a workflow message.
type Role string

// Workflow message roles.
const (
	RoleHuman Role = "human"
	RoleAgent Role = "agent"
	RoleTool  Role = "tool"
)

// Message is one entry in the workflow conversation. Messages are immutable
// once appended; State.Messages is append-only and never reordered.
type Message struct {
	// Role is the author of the message.
	Role Role `json:"role"`

	// Content is the textual content.
	Content string `json:"content"`

	// Attachments holds file names referenced by the message, if any.
	Attachments []string `json:"attachments,omitempty"`

	// Visible reports whether the message is shown to the end user.
	Visible bool `json:"visible"`

	// Event is the durable copy of the progress event that accompanied the
	// message, if any.
	Event *event.Event `json:"event,omitempty"`

	// Usage records the token usage of the model call that produced the
	// message, if any.
	Usage *model.Usage `json:"usage,omitempty"`

	// ToolCallID correlates a tool message with the call that triggered it.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// State is the workflow state of one session's run. It has exactly one
// writer at any instant: the node or supervisor currently holding control.
// The JSON round trip is lossless so checkpoints can restore it exactly.
type State struct {
	// Messages is the conversation in insertion order.
	Messages []Message `json:"messages"`

	// LastActor is the id of the node or user that produced the latest
	// top-level message.
	LastActor string `json:"last_actor"`

	// PauseRequired is set by the clarify node when the run must suspend
	// for human clarification.
	PauseRequired bool `json:"pause_required"`

	// SubMessages is the private sub-conversation buffer of the node
	// currently running an internal tool loop.
	SubMessages []model.Message `json:"sub_messages,omitempty"`

	// ToolCallID is the correlation id of the in-flight tool call, if any.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// GeneratedFiles lists document artifacts produced during this run, so
	// the report node can link them.
	GeneratedFiles []string `json:"generated_files,omitempty"`
}

// NewState creates an empty workflow state.
func NewState() *State {
	return &State{}
}

// Append adds a message to the conversation.
func (s *State) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// AppendHuman adds a visible human message.
func (s *State) AppendHuman(content string) {
	s.Append(Message{Role: RoleHuman, Content: content, Visible: true})
}

// AppendAgent adds an agent message from the given actor and records the
// actor as the last top-level writer.
func (s *State) AppendAgent(actor string, msg Message) {
	msg.Role = RoleAgent
	s.Append(msg)
	s.LastActor = actor
}

// LastMessage returns the most recent message, or nil when the conversation
// is empty.
func (s *State) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// LastHumanMessage returns the most recent human message, or nil.
func (s *State) LastHumanMessage() *Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleHuman {
			return &s.Messages[i]
		}
	}
	return nil
}

// ClearSubLoop resets the node-private scratch fields. Called by a node when
// its internal tool loop has produced the final answer.
func (s *State) ClearSubLoop() {
	s.SubMessages = nil
	s.ToolCallID = ""
}

// History converts the top-level conversation into model messages, mapping
// human messages to the user role and agent messages to the assistant role.
// Tool messages are internal bookkeeping and are skipped.
func (s *State) History() []model.Message {
	out := make([]model.Message, 0, len(s.Messages))
	for _, msg := range s.Messages {
		switch msg.Role {
		case RoleHuman:
			out = append(out, model.NewUserMessage(msg.Content))
		case RoleAgent:
			out = append(out, model.NewAssistantMessage(msg.Content))
		}
	}
	return out
}

// Clone returns a deep copy of the state via the JSON round trip, which is
// also how checkpoints serialize it.
func (s *State) Clone() (*State, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	var clone State
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &clone, nil
}
