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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-deepresearch-go/artifact"
	"trpc.group/trpc-go/trpc-deepresearch-go/document"
	"trpc.group/trpc-go/trpc-deepresearch-go/event"
	"trpc.group/trpc-go/trpc-deepresearch-go/model"
	"trpc.group/trpc-go/trpc-deepresearch-go/tool"
	"trpc.group/trpc-go/trpc-deepresearch-go/workflow"
)

const (
	contentExtractorToolName = "content_extractor"
	pdfGeneratorToolName     = "pdf_generator"
)

const fileGeneratePrompt = `You produce document artifacts. When the user
wants a document based on existing files, first pull their content with the
content_extractor tool. Then write the full document body in markdown and
save it with the pdf_generator tool. Finish by confirming what was generated.`

// contentExtractorArgs selects the file to read.
type contentExtractorArgs struct {
	FileName string `json:"file_name"`
}

// contentExtractorResult carries the extracted text and whether the file was
// a user upload or a previously generated document.
type contentExtractorResult struct {
	FileName string `json:"file_name"`
	Source   string `json:"source"`
	Content  string `json:"content"`
}

// contentExtractorTool reads an artifact and extracts its plain text.
type contentExtractorTool struct {
	storage   *artifact.Storage
	sessionID string
}

// Declaration implements tool.Tool.
func (t *contentExtractorTool) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name: contentExtractorToolName,
		Description: "Extract the text content of one of the session's files, uploaded or " +
			"previously generated. Supports pdf, docx, txt and md.",
		InputSchema: &tool.Schema{
			Type:     "object",
			Required: []string{"file_name"},
			Properties: map[string]*tool.Schema{
				"file_name": {Type: "string", Description: "Name of the file to extract."},
			},
		},
	}
}

// Call implements tool.CallableTool.
func (t *contentExtractorTool) Call(_ context.Context, jsonArgs []byte) (any, error) {
	var args contentExtractorArgs
	if err := json.Unmarshal(jsonArgs, &args); err != nil {
		return nil, fmt.Errorf("parse content_extractor arguments: %w", err)
	}
	reader, kind, err := t.storage.Open(t.sessionID, args.FileName)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return toolError{Error: fmt.Sprintf("file %q not found in this session", args.FileName)}, nil
		}
		return nil, err
	}
	defer reader.Close()

	text, err := document.Extract(args.FileName, reader)
	if err != nil {
		return toolError{Error: fmt.Sprintf("extract %q: %v", args.FileName, err)}, nil
	}
	source := "uploaded"
	if kind == artifact.KindGenerated {
		source = "generated"
	}
	return contentExtractorResult{FileName: args.FileName, Source: source, Content: text}, nil
}

// pdfGeneratorArgs carries the document to render.
type pdfGeneratorArgs struct {
	FileName string `json:"file_name"`
	Markdown string `json:"markdown"`
}

// pdfGeneratorResult confirms the saved artifact.
type pdfGeneratorResult struct {
	FileName string `json:"file_name"`
	Saved    bool   `json:"saved"`
}

// pdfGeneratorTool renders markdown to PDF and saves it as a generated
// artifact, recording every produced file name.
type pdfGeneratorTool struct {
	storage   *artifact.Storage
	sessionID string
	generated []string
}

// Declaration implements tool.Tool.
func (t *pdfGeneratorTool) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name: pdfGeneratorToolName,
		Description: "Render a markdown document body to PDF and save it under the given " +
			"file name. The name must end in .pdf.",
		InputSchema: &tool.Schema{
			Type:     "object",
			Required: []string{"file_name", "markdown"},
			Properties: map[string]*tool.Schema{
				"file_name": {Type: "string", Description: "Target file name, ending in .pdf."},
				"markdown":  {Type: "string", Description: "The complete document body in markdown."},
			},
		},
	}
}

// Call implements tool.CallableTool.
func (t *pdfGeneratorTool) Call(_ context.Context, jsonArgs []byte) (any, error) {
	var args pdfGeneratorArgs
	if err := json.Unmarshal(jsonArgs, &args); err != nil {
		return nil, fmt.Errorf("parse pdf_generator arguments: %w", err)
	}
	if !strings.HasSuffix(strings.ToLower(args.FileName), ".pdf") {
		return toolError{Error: fmt.Sprintf("file name %q must end in .pdf", args.FileName)}, nil
	}
	var buf bytes.Buffer
	if err := document.WritePDF(args.Markdown, &buf); err != nil {
		return toolError{Error: fmt.Sprintf("render pdf: %v", err)}, nil
	}
	if err := t.storage.Save(t.sessionID, artifact.KindGenerated, args.FileName, &buf); err != nil {
		return toolError{Error: fmt.Sprintf("save pdf: %v", err)}, nil
	}
	t.generated = append(t.generated, args.FileName)
	return pdfGeneratorResult{FileName: args.FileName, Saved: true}, nil
}

// FileGenerate produces document artifacts: it extracts existing file
// content when needed and renders a new PDF through its tool loop.
type FileGenerate struct {
	model     model.Model
	storage   *artifact.Storage
	publisher workflow.EventPublisher
}

// NewFileGenerate creates the file_generate node.
func NewFileGenerate(m model.Model, storage *artifact.Storage, publisher workflow.EventPublisher) *FileGenerate {
	return &FileGenerate{model: m, storage: storage, publisher: publisher}
}

// ID implements workflow.Node.
func (f *FileGenerate) ID() workflow.NodeID { return workflow.NodeFileGenerate }

// Invoke implements workflow.Node.
func (f *FileGenerate) Invoke(ctx context.Context, sessionID string, state *workflow.State) (workflow.NodeID, error) {
	generator := &pdfGeneratorTool{storage: f.storage, sessionID: sessionID}
	tools := map[string]tool.Tool{
		contentExtractorToolName: &contentExtractorTool{storage: f.storage, sessionID: sessionID},
		pdfGeneratorToolName:     generator,
	}
	hook := func(toolName string, result any) {
		switch toolName {
		case contentExtractorToolName:
			if extracted, ok := result.(contentExtractorResult); ok {
				publish(f.publisher, sessionID, event.New(event.TypeContentExtract,
					string(workflow.NodeFileGenerate),
					fmt.Sprintf("extracted %s file %s", extracted.Source, extracted.FileName),
					event.WithFiles([]string{extracted.FileName})))
			}
		case pdfGeneratorToolName:
			if saved, ok := result.(pdfGeneratorResult); ok && saved.Saved {
				publish(f.publisher, sessionID, event.New(event.TypeFileGenerate,
					string(workflow.NodeFileGenerate),
					fmt.Sprintf("generated %s", saved.FileName),
					event.WithFiles([]string{saved.FileName})))
			}
		}
	}

	response, usage, err := runToolLoop(ctx, f.model, state,
		conversation(fileGeneratePrompt, state), tools, hook)
	if err != nil {
		return workflow.NodeUnspecified, err
	}

	// Generation check: record what was actually produced so the report can
	// link it; the model's claim alone is not trusted.
	content := response.Message.Content
	if len(generator.generated) == 0 {
		content += "\n(no document was generated)"
	}
	state.GeneratedFiles = append(state.GeneratedFiles, generator.generated...)

	doneEvent := event.New(event.TypeFileGenerate, string(workflow.NodeFileGenerate),
		content, event.WithUsage(usage), event.WithFiles(generator.generated))
	state.AppendAgent(string(workflow.NodeFileGenerate), workflow.Message{
		Content:     content,
		Attachments: generator.generated,
		Event:       doneEvent.Clone(),
		Usage:       usage,
	})
	state.ClearSubLoop()
	publish(f.publisher, sessionID, doneEvent)
	return workflow.NodeUnspecified, nil
}
