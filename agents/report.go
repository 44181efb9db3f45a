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
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-deepresearch-go/event"
	"trpc.group/trpc-go/trpc-deepresearch-go/model"
	"trpc.group/trpc-go/trpc-deepresearch-go/workflow"
)

const reportPrompt = `Write the final answer for the user based on the whole
conversation: the request, the research findings and any document work. Be
direct and well structured. Do not mention the internal workflow steps.`

// Report writes the final user-facing answer, linking any documents
// generated during the run.
type Report struct {
	model     model.Model
	publisher workflow.EventPublisher
}

// NewReport creates the report node.
func NewReport(m model.Model, publisher workflow.EventPublisher) *Report {
	return &Report{model: m, publisher: publisher}
}

// ID implements workflow.Node.
func (r *Report) ID() workflow.NodeID { return workflow.NodeReport }

// Invoke implements workflow.Node.
func (r *Report) Invoke(ctx context.Context, sessionID string, state *workflow.State) (workflow.NodeID, error) {
	system := reportPrompt
	if len(state.GeneratedFiles) > 0 {
		system += "\n\nGenerated documents to reference: " +
			strings.Join(state.GeneratedFiles, ", ")
	}
	response, err := r.model.GenerateContent(ctx, &model.Request{
		Messages: conversation(system, state),
	})
	if err != nil {
		return workflow.NodeUnspecified, err
	}

	content := response.Message.Content
	if len(state.GeneratedFiles) > 0 {
		content += fmt.Sprintf("\n\nGenerated files: %s",
			strings.Join(state.GeneratedFiles, ", "))
	}
	reportEvent := event.New(event.TypeReportWriter, string(workflow.NodeReport),
		content, event.WithUsage(response.Usage),
		event.WithFiles(state.GeneratedFiles))
	state.AppendAgent(string(workflow.NodeReport), workflow.Message{
		Content:     content,
		Visible:     true,
		Attachments: state.GeneratedFiles,
		Event:       reportEvent.Clone(),
		Usage:       response.Usage,
	})
	publish(r.publisher, sessionID, reportEvent)
	return workflow.NodeUnspecified, nil
}
