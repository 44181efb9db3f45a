//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// Package event provides the progress event system for workflow runs.
package event

import (
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-deepresearch-go/model"
)

// Well-known event types emitted during a workflow run.
const (
	TypeClarifyDetail     = "clarify_detail"
	TypeHardPause         = "hard_pause"
	TypeSummarizeTopics   = "summarize_topics"
	TypeSearch            = "search_event"
	TypeFileSearch        = "file_search_event"
	TypeFileGenerate      = "file_generate_event"
	TypeContentExtract    = "content_extract_event"
	TypeReportWriter      = "report_writer_event"
	TypeSupervisorRouting = "supervisor_routing"
	TypeRoutingError      = "routing_error"
	TypeWorkflowError     = "workflow_error"
	TypeMessageError      = "message_error"
	TypeHumanInput        = "human_input"
	TypePong              = "pong"
)

// Event represents a timestamped progress notification delivered to a
// session's live subscriber. The sequence number and delivery timestamp are
// assigned by the Bus at publish time; the generation timestamp is set when
// the event is created.
type Event struct {
	// ID is the unique identifier of the event.
	ID string `json:"id"`

	// Type is the event type tag.
	Type string `json:"type"`

	// Sender is the id of the node or component that produced the event.
	Sender string `json:"sender"`

	// Content is the human-readable event payload.
	Content string `json:"content"`

	// Token usage counters for the model call that produced this event, if any.
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`

	// Links holds source links gathered by a lookup, if any.
	Links []string `json:"links,omitempty"`

	// Files holds file names referenced by the event, if any.
	Files []string `json:"file_names,omitempty"`

	// Seq is the per-session monotonic sequence number assigned by the Bus.
	Seq int64 `json:"seq"`

	// Timestamp is the generation time of the event.
	Timestamp time.Time `json:"timestamp"`

	// DeliveredAt is the delivery time assigned by the Bus.
	DeliveredAt time.Time `json:"delivered_at,omitempty"`
}

// Option configures an Event.
type Option func(*Event)

// WithLinks sets the source links for the event.
func WithLinks(links []string) Option {
	return func(e *Event) {
		e.Links = links
	}
}

// WithFiles sets the referenced file names for the event.
func WithFiles(files []string) Option {
	return func(e *Event) {
		e.Files = files
	}
}

// WithUsage sets the token usage counters from a model usage record.
func WithUsage(usage *model.Usage) Option {
	return func(e *Event) {
		if usage == nil {
			return
		}
		e.InputTokens = usage.PromptTokens
		e.OutputTokens = usage.CompletionTokens
		e.TotalTokens = usage.TotalTokens
	}
}

// New creates a new Event with a generated id and timestamp.
func New(eventType, sender, content string, opts ...Option) *Event {
	e := &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clone creates a copy of the event. Slices are copied so the clone can be
// delivered and mutated independently of the original.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Links = append([]string(nil), e.Links...)
	clone.Files = append([]string(nil), e.Files...)
	return &clone
}
