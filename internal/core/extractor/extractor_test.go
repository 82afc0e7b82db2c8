package extractor_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privadoc/privadoc/internal/core/extractor"
)

func TestSupported(t *testing.T) {
	assert.True(t, extractor.Supported("report.pdf"))
	assert.True(t, extractor.Supported("Report.DOCX"))
	assert.True(t, extractor.Supported("notes.txt"))
	assert.False(t, extractor.Supported("slides.pptx"))
	assert.False(t, extractor.Supported("archive"))
}

func TestExtractRejectsUnsupportedFormat(t *testing.T) {
	e := extractor.New()
	_, err := e.Extract([]byte("binary"), "image.png")
	assert.ErrorIs(t, err, extractor.ErrUnsupportedFormat)
}

func TestExtractPlainText(t *testing.T) {
	e := extractor.New()
	doc, err := e.Extract([]byte("first line\n\n\n\nsecond line  \nthird"), "notes.txt")
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", doc.Filename)
	assert.Equal(t, ".txt", doc.Extension)
	assert.Equal(t, "first line\n\nsecond line\nthird", doc.Text)
	assert.Equal(t, 5, doc.WordCount)
	assert.Equal(t, 1, doc.PageCount)
}

func TestExtractStripsDirectoryFromFilename(t *testing.T) {
	e := extractor.New()
	doc, err := e.Extract([]byte("hello"), "/tmp/uploads/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", doc.Filename)
}

func TestCleanStripsControlChars(t *testing.T) {
	in := "hea\x00der\x0bbody\x1f end"
	out := extractor.Clean(in)
	assert.NotContains(t, out, "\x00")
	assert.NotContains(t, out, "\x0b")
	assert.Contains(t, out, "body")
}

func TestCleanCollapsesBlankRuns(t *testing.T) {
	out := extractor.Clean("a\n\n\n\n\nb")
	assert.Equal(t, "a\n\nb", out)
	assert.False(t, strings.Contains(out, "\n\n\n"))
}

func TestPageEstimateFromWordCount(t *testing.T) {
	// 600 words with no reported page count estimates to three pages.
	e := extractor.New()
	doc, err := e.Extract([]byte(strings.Repeat("word ", 600)), "long.txt")
	require.NoError(t, err)
	assert.Equal(t, 600, doc.WordCount)
	assert.Equal(t, 3, doc.PageCount)
}
