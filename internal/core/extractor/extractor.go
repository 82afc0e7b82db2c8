package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"code.sajari.com/docconv"

	"github.com/privadoc/privadoc/internal/models"
)

// ErrUnsupportedFormat is returned for file extensions the service does not accept.
var ErrUnsupportedFormat = errors.New("extractor: unsupported file format")

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".txt":  true,
}

var (
	controlChars  = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
)

// wordsPerPage is the estimate used when the converter reports no page count.
const wordsPerPage = 250

// Supported reports whether the file extension is accepted for extraction.
func Supported(filename string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// DocconvExtractor converts uploaded document bytes to plain text via docconv.
type DocconvExtractor struct{}

func New() *DocconvExtractor {
	return &DocconvExtractor{}
}

// Extract converts the raw upload to a cleaned DocumentText. The text never
// leaves this process and is never persisted.
func (e *DocconvExtractor) Extract(data []byte, filename string) (*models.DocumentText, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !supportedExtensions[ext] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	res, err := docconv.Convert(bytes.NewReader(data), docconv.MimeTypeByExtension(filename), false)
	if err != nil {
		return nil, fmt.Errorf("extractor: convert %s: %w", ext, err)
	}

	text := Clean(res.Body)
	words := len(strings.Fields(text))

	return &models.DocumentText{
		Text:      text,
		Filename:  filepath.Base(filename),
		Extension: ext,
		ByteSize:  len(data),
		PageCount: pageCount(res.Meta, words),
		WordCount: words,
	}, nil
}

// Clean normalizes extracted text: control characters are stripped, trailing
// whitespace and runs of blank lines are collapsed.
func Clean(text string) string {
	text = controlChars.ReplaceAllString(text, " ")
	text = trailingSpace.ReplaceAllString(text, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// pageCount prefers the converter's reported page count and falls back to a
// words-per-page estimate for formats without one, such as DOCX.
func pageCount(meta map[string]string, words int) int {
	for _, key := range []string{"PageCount", "Pages"} {
		if v, ok := meta[key]; ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				return n
			}
		}
	}
	if words == 0 {
		return 0
	}
	return (words + wordsPerPage - 1) / wordsPerPage
}
