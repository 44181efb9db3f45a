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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-deepresearch-go/event"
	"trpc.group/trpc-go/trpc-deepresearch-go/model"
)

func TestStateAppendAndLastMessage(t *testing.T) {
	state := NewState()
	assert.Nil(t, state.LastMessage())
	assert.Nil(t, state.LastHumanMessage())

	state.AppendHuman("hello")
	state.AppendAgent("clarify", Message{Content: "what exactly?", Visible: true})

	require.Len(t, state.Messages, 2)
	assert.Equal(t, "clarify", state.LastActor)
	assert.Equal(t, RoleAgent, state.LastMessage().Role)
	assert.Equal(t, "hello", state.LastHumanMessage().Content)
}

func TestStateHistorySkipsToolMessages(t *testing.T) {
	state := NewState()
	state.AppendHuman("question")
	state.Append(Message{Role: RoleTool, Content: "internal", ToolCallID: "tc-1"})
	state.AppendAgent("report", Message{Content: "answer", Visible: true})

	history := state.History()
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, model.RoleAssistant, history[1].Role)
}

func TestStateJSONRoundTripLossless(t *testing.T) {
	state := &State{
		Messages: []Message{
			{Role: RoleHuman, Content: "research X", Visible: true},
			{
				Role:        RoleAgent,
				Content:     "topics",
				Visible:     true,
				Attachments: []string{"notes.pdf"},
				Event:       event.New(event.TypeSummarizeTopics, "decompose", "topics"),
				Usage:       &model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			},
			{Role: RoleTool, Content: "result", ToolCallID: "tc-9"},
		},
		LastActor:     "decompose",
		PauseRequired: true,
		SubMessages: []model.Message{
			model.NewSystemMessage("sub"),
			model.NewToolMessage("tc-9", "tool result"),
		},
		ToolCallID:     "tc-9",
		GeneratedFiles: []string{"report.pdf"},
	}

	data, err := json.Marshal(state)
	require.NoError(t, err)
	var restored State
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, state.LastActor, restored.LastActor)
	assert.Equal(t, state.PauseRequired, restored.PauseRequired)
	assert.Equal(t, state.ToolCallID, restored.ToolCallID)
	assert.Equal(t, state.GeneratedFiles, restored.GeneratedFiles)
	assert.Equal(t, state.SubMessages, restored.SubMessages)
	require.Len(t, restored.Messages, 3)
	assert.Equal(t, state.Messages[0], restored.Messages[0])
	assert.Equal(t, state.Messages[1].Attachments, restored.Messages[1].Attachments)
	assert.Equal(t, state.Messages[1].Usage, restored.Messages[1].Usage)
	require.NotNil(t, restored.Messages[1].Event)
	assert.Equal(t, state.Messages[1].Event.ID, restored.Messages[1].Event.ID)
	assert.Equal(t, state.Messages[2].ToolCallID, restored.Messages[2].ToolCallID)
}

func TestStateCloneIsIndependent(t *testing.T) {
	state := NewState()
	state.AppendHuman("original")

	clone, err := state.Clone()
	require.NoError(t, err)

	clone.AppendHuman("only in clone")
	clone.PauseRequired = true

	assert.Len(t, state.Messages, 1)
	assert.False(t, state.PauseRequired)
}

func TestStateClearSubLoop(t *testing.T) {
	state := NewState()
	state.SubMessages = []model.Message{model.NewUserMessage("sub")}
	state.ToolCallID = "tc-1"

	state.ClearSubLoop()

	assert.Nil(t, state.SubMessages)
	assert.Empty(t, state.ToolCallID)
}

func TestParseNodeID(t *testing.T) {
	tests := []struct {
		raw    string
		want   NodeID
		wantOK bool
	}{
		{"clarify", NodeClarify, true},
		{"decompose", NodeDecompose, true},
		{"search", NodeSearch, true},
		{"file_search", NodeFileSearch, true},
		{"file_generate", NodeFileGenerate, true},
		{"report", NodeReport, true},
		{"end", NodeEnd, true},
		{"", NodeEnd, false},
		{"supervisor", NodeEnd, false},
		{"SEARCH", NodeEnd, false},
		{"report_writer", NodeEnd, false},
	}
	for _, tt := range tests {
		got, ok := ParseNodeID(tt.raw)
		assert.Equal(t, tt.want, got, "raw=%q", tt.raw)
		assert.Equal(t, tt.wantOK, ok, "raw=%q", tt.raw)
	}
}
