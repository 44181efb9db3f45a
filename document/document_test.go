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
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPDF programmatically generates a small PDF with the given text.
// Generating ensures the bytes are well-formed, avoiding brittle handcrafted
// fixtures.
func newTestPDF(t *testing.T, content string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.AddPage()
	pdf.Cell(40, 10, content)

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func TestExtractPDF(t *testing.T) {
	data := newTestPDF(t, "Hello World")

	text, err := Extract("sample.pdf", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Contains(t, text, "Hello World")
}

func TestExtractPlainText(t *testing.T) {
	for _, name := range []string{"notes.txt", "notes.md", "NOTES.TXT"} {
		text, err := Extract(name, strings.NewReader("plain content"))
		require.NoError(t, err, name)
		assert.Equal(t, "plain content", text)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := Extract("image.png", strings.NewReader("binary"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractCorruptPDF(t *testing.T) {
	_, err := Extract("broken.pdf", strings.NewReader("not a pdf at all"))
	assert.Error(t, err)
}

func TestWritePDFRoundTrip(t *testing.T) {
	markdown := "# Battery Storage Report\n\n" +
		"Grid storage needs cheap, durable cells.\n\n" +
		"## Findings\n\n" +
		"- Lithium iron phosphate dominates new installs\n" +
		"- Flow batteries suit long-duration storage\n\n" +
		"> Costs fell forty percent in five years.\n\n" +
		"```\ncapacity = power * hours\n```\n"

	var buf bytes.Buffer
	require.NoError(t, WritePDF(markdown, &buf))
	require.NotZero(t, buf.Len())

	text, err := Extract("report.pdf", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Contains(t, text, "Battery Storage Report")
	assert.Contains(t, text, "Findings")
	assert.Contains(t, text, "Flow batteries")
}

func TestWritePDFEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF("", &buf))
	assert.NotZero(t, buf.Len(), "an empty body still yields a valid single-page PDF")
}
