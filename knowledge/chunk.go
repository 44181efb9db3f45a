//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// Package knowledge maintains a per-session passage index over uploaded
// documents: extracted text is chunked and scored against node queries by
// keyword overlap.
package knowledge

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	// chunkSize is the target chunk length in runes.
	chunkSize = 800
	// chunkOverlap is how many trailing runes carry over into the next
	// chunk so passages don't cut context mid-thought.
	chunkOverlap = 100
)

// chunk splits document text into indexable passages. Markdown files are
// split along their heading structure first; everything else (and oversized
// sections) falls back to fixed-size splitting on word boundaries.
func chunk(fileName, content string) []string {
	var sections []string
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".md", ".markdown":
		sections = markdownSections(content)
	default:
		sections = []string{content}
	}

	var chunks []string
	for _, section := range sections {
		chunks = append(chunks, fixedSize(section)...)
	}
	return chunks
}

// markdownSections splits markdown into heading-delimited sections using the
// goldmark AST.
func markdownSections(content string) []string {
	source := []byte(content)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var sections []string
	var current strings.Builder
	flush := func() {
		if section := strings.TrimSpace(current.String()); section != "" {
			sections = append(sections, section)
		}
		current.Reset()
	}

	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node.(type) {
		case *ast.Heading:
			flush()
		case *ast.Paragraph, *ast.List, *ast.FencedCodeBlock, *ast.Blockquote:
		default:
			return ast.WalkContinue, nil
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(nodeText(node, source))
		return ast.WalkSkipChildren, nil
	})
	flush()

	if len(sections) == 0 {
		return []string{content}
	}
	return sections
}

// nodeText flattens the text content of an AST node.
func nodeText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Text:
			buf.Write(v.Text(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

// fixedSize splits text into overlapping chunks, breaking on word boundaries
// where possible.
func fixedSize(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	runes := []rune(content)
	if len(runes) <= chunkSize {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}
		// Back up to the nearest word boundary.
		cut := end
		for cut > start+chunkSize/2 && !isBoundary(runes[cut]) {
			cut--
		}
		if cut == start+chunkSize/2 {
			cut = end
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[start:cut])))
		start = cut - chunkOverlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}

func isBoundary(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}
