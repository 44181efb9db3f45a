//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// Package model provides the interface for the language model collaborator.
package model

import (
	"context"

	"trpc.group/trpc-go/trpc-deepresearch-go/tool"
)

// Role represents the role of a message author.
type Role string

// Role constants for message authors.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Message represents a single message in a model conversation.
type Message struct {
	Role      Role       `json:"role"`                 // The role of the message author.
	Content   string     `json:"content"`              // The message content.
	ToolID    string     `json:"tool_id,omitempty"`    // Used by tool responses.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"` // Tool calls requested by the model.
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolMessage creates a new tool result message for the given tool call id.
func NewToolMessage(toolID, content string) Message {
	return Message{Role: RoleTool, ToolID: toolID, Content: content}
}

// ToolCall represents a call to a tool (function) in the model response.
type ToolCall struct {
	// Type of the tool. Currently only `function` is supported.
	Type string `json:"type"`
	// Function holds the function definition for the tool.
	Function FunctionDefinitionParam `json:"function,omitempty"`
	// ID is the id of the tool call returned by the model.
	ID string `json:"id,omitempty"`
}

// FunctionDefinitionParam describes a function call requested by the model.
type FunctionDefinitionParam struct {
	// Name is the name of the function to be called.
	Name string `json:"name"`
	// Description explains what the function does.
	Description string `json:"description,omitempty"`
	// Arguments carries the json-encoded call arguments.
	Arguments []byte `json:"arguments,omitempty"`
}

// StructuredOutputJSONSchema requests native json-schema structured outputs.
const StructuredOutputJSONSchema = "json_schema"

// StructuredOutput requests a typed response from the model.
type StructuredOutput struct {
	// Type of the structured output. Only StructuredOutputJSONSchema is supported.
	Type string `json:"type"`
	// JSONSchema is the schema the response must conform to.
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// JSONSchema describes the response schema for structured outputs.
type JSONSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      map[string]any `json:"schema"`
	Strict      bool           `json:"strict"`
}

// GenerationConfig contains configuration for text generation.
type GenerationConfig struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens *int `json:"max_tokens,omitempty"`
	// Temperature controls randomness (0.0 to 2.0).
	Temperature *float64 `json:"temperature,omitempty"`
	// TopP controls nucleus sampling (0.0 to 1.0).
	TopP *float64 `json:"top_p,omitempty"`
}

// Request is the request to the model.
type Request struct {
	// Messages is the conversation history.
	Messages []Message `json:"messages"`

	// GenerationConfig contains the generation parameters.
	GenerationConfig `json:",inline"`

	// StructuredOutput, when set, constrains the response to a json schema.
	StructuredOutput *StructuredOutput `json:"-"`

	// Tools are not serialized, handled separately.
	Tools map[string]tool.Tool `json:"-"`
}

// Usage represents token usage information.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`
	// CompletionTokens is the number of tokens in the completion.
	CompletionTokens int `json:"completion_tokens"`
	// TotalTokens is the total number of tokens in the response.
	TotalTokens int `json:"total_tokens"`
}

// Add accumulates usage counters from another usage record.
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Response is the response from the model.
type Response struct {
	// ID is the unique identifier for this response.
	ID string `json:"id"`
	// Model is the model used to generate the response.
	Model string `json:"model"`
	// Message is the generated message.
	Message Message `json:"message"`
	// Usage contains token usage information, may be nil.
	Usage *Usage `json:"usage,omitempty"`
}

// HasToolCalls reports whether the response requests tool execution.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.Message.ToolCalls) > 0
}

// Model is the interface for the external language model collaborator.
//
// Implementations perform a single, non-streaming completion. System-level
// failures (network, invalid request) are returned as errors; the caller
// decides whether a failure is recoverable at its layer.
type Model interface {
	// GenerateContent generates a completion for the given request.
	GenerateContent(ctx context.Context, request *Request) (*Response, error)

	// Info returns basic information about the model.
	Info() Info
}

// Info contains basic information about a Model.
type Info struct {
	Name string
}
