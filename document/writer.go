//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package document

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// heading font sizes by level; level 0 is body text.
var headingSizes = map[int]float64{1: 18, 2: 15, 3: 13, 4: 12, 5: 11, 6: 11}

// WritePDF renders a markdown document body to a PDF. The markdown is parsed
// with goldmark and laid out block by block: headings get larger bold fonts,
// code blocks a monospace font, list items a leading bullet.
func WritePDF(markdown string, w io.Writer) error {
	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	translate := pdf.UnicodeTranslatorFromDescriptor("")

	writeBlock := func(fontFamily, fontStyle string, fontSize, lineHeight float64, content string) {
		if strings.TrimSpace(content) == "" {
			return
		}
		pdf.SetFont(fontFamily, fontStyle, fontSize)
		pdf.MultiCell(0, lineHeight, translate(content), "", "L", false)
		pdf.Ln(2)
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			writeBlock("Helvetica", "B", headingSizes[n.Level], 8, blockText(n, source))
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			if _, inItem := n.Parent().(*ast.ListItem); inItem {
				writeBlock("Helvetica", "", 11, 5.5, "• "+blockText(n, source))
			} else {
				writeBlock("Helvetica", "", 11, 5.5, blockText(n, source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			writeBlock("Courier", "", 9.5, 4.5, fencedText(n, source))
			return ast.WalkSkipChildren, nil
		case *ast.Blockquote:
			writeBlock("Helvetica", "I", 11, 5.5, blockText(n, source))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return fmt.Errorf("walk markdown: %w", err)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// blockText flattens the text content of an AST node.
func blockText(node ast.Node, source []byte) string {
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

// fencedText reads the raw lines of a fenced code block.
func fencedText(node *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		buf.Write(segment.Value(source))
	}
	return buf.String()
}
