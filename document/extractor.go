//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// Package document provides plain-text extraction from uploaded documents
// and PDF rendering of generated reports.
package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gonfva/docxlib"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat is returned for file types the extractor cannot read.
var ErrUnsupportedFormat = fmt.Errorf("unsupported document format")

// Extract returns the plain-text content of the named document. The format
// is chosen by file extension: pdf, docx, txt and md are supported.
func Extract(fileName string, reader io.Reader) (string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return extractPDF(reader)
	case ".docx":
		return extractDOCX(reader)
	case ".txt", ".md", ".markdown":
		data, err := io.ReadAll(reader)
		if err != nil {
			return "", fmt.Errorf("read text file: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

// extractPDF extracts text from all pages of a PDF. Pages that fail to parse
// are skipped rather than failing the whole document.
func extractPDF(reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var allText strings.Builder
	totalPage := pdfReader.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := pdfReader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		allText.WriteString(text)
		allText.WriteString("\n")
	}
	return allText.String(), nil
}

// extractDOCX extracts text from a DOCX document. docxlib needs a seekable
// file, so the content is staged through a temporary file.
func extractDOCX(reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	tmpFile, err := os.CreateTemp("", "docx_*.docx")
	if err != nil {
		return "", fmt.Errorf("create temporary file: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	if _, err := tmpFile.Write(data); err != nil {
		return "", fmt.Errorf("write temporary file: %w", err)
	}
	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind temporary file: %w", err)
	}

	doc, err := docxlib.Parse(tmpFile, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}

	var textContent strings.Builder
	for _, paragraph := range doc.Paragraphs() {
		for _, child := range paragraph.Children() {
			if child.Run != nil && child.Run.Text != nil {
				if text := strings.TrimSpace(child.Run.Text.Text); text != "" {
					textContent.WriteString(text)
					textContent.WriteString(" ")
				}
			}
			if child.Link != nil && child.Link.Run.Text != nil {
				if text := strings.TrimSpace(child.Link.Run.Text.Text); text != "" {
					textContent.WriteString(text)
					textContent.WriteString(" ")
				}
			}
		}
		if textContent.Len() > 0 {
			textContent.WriteString("\n")
		}
	}
	return textContent.String(), nil
}
