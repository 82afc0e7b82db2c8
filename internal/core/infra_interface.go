package core

import (
	"context"

	"github.com/privadoc/privadoc/internal/core/engine"
	"github.com/privadoc/privadoc/internal/models"
)

// TextExtractor turns uploaded file bytes into cleaned document text.
// It's abstract so the docconv implementation can be swapped without touching
// the service layer.
type TextExtractor interface {
	Extract(data []byte, filename string) (*models.DocumentText, error)
}

// Summarizer runs one full map-reduce pass over a document.
type Summarizer interface {
	Summarize(ctx context.Context, req engine.Request) (*engine.Result, error)
}

// ModelProber exposes the inference runtime checks the system endpoints need.
type ModelProber interface {
	Health(ctx context.Context) error
	ModelInfo(ctx context.Context, model string, contextWindow int) (*models.ModelInfo, error)
}
