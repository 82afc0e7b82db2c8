package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/privadoc/privadoc/internal/core"
	db "github.com/privadoc/privadoc/internal/core/database"
	"github.com/privadoc/privadoc/internal/core/engine"
	"github.com/privadoc/privadoc/internal/models"
)

var (
	// ErrTooManyRuns means the admission semaphore is full; the caller should
	// retry once the current document finishes.
	ErrTooManyRuns = errors.New("services: too many concurrent summarization runs")

	// ErrFileTooLarge means the upload exceeds the configured size limit.
	ErrFileTooLarge = errors.New("services: file exceeds size limit")

	// ErrTooManyPages means the document exceeds the configured page limit.
	ErrTooManyPages = errors.New("services: document exceeds page limit")
)

// SummaryService orchestrates one document end to end: validate, extract,
// summarize, persist. Raw document text never leaves this call path.
type SummaryService struct {
	store       db.SummaryStore
	extractor   core.TextExtractor
	summarizer  core.Summarizer
	sem         *semaphore.Weighted
	maxFileSize int64
	maxPages    int
	log         *log.Logger
}

func NewSummaryService(store db.SummaryStore, extractor core.TextExtractor, summarizer core.Summarizer,
	maxConcurrentRuns int, maxFileSize int64, maxPages int, logger *log.Logger) *SummaryService {
	if maxConcurrentRuns <= 0 {
		maxConcurrentRuns = 1
	}
	return &SummaryService{
		store:       store,
		extractor:   extractor,
		summarizer:  summarizer,
		sem:         semaphore.NewWeighted(int64(maxConcurrentRuns)),
		maxFileSize: maxFileSize,
		maxPages:    maxPages,
		log:         logger.WithPrefix("summary"),
	}
}

// ProcessDocument runs the full pipeline for one upload. Sequential local
// inference is slow, so admission is bounded rather than queued: when the
// semaphore is full the caller gets ErrTooManyRuns immediately.
func (s *SummaryService) ProcessDocument(ctx context.Context, filename string, data []byte,
	templateKey, customPrompt string) (*models.SummaryRecord, error) {

	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(data))
	}

	if !s.sem.TryAcquire(1) {
		return nil, ErrTooManyRuns
	}
	defer s.sem.Release(1)

	start := time.Now()
	doc, err := s.extractor.Extract(data, filename)
	if err != nil {
		return nil, err
	}
	s.log.Info("document extracted", "file", doc.Filename, "words", doc.WordCount, "pages", doc.PageCount)

	if s.maxPages > 0 && doc.PageCount > s.maxPages {
		return nil, fmt.Errorf("%w: %d pages", ErrTooManyPages, doc.PageCount)
	}

	res, err := s.summarizer.Summarize(ctx, engine.Request{
		Text:         doc.Text,
		TemplateKey:  templateKey,
		CustomPrompt: customPrompt,
	})
	if err != nil {
		return nil, err
	}

	rec := &models.SummaryRecord{
		DocID:          uuid.NewString(),
		Filename:       doc.Filename,
		FileExtension:  doc.Extension,
		FileSize:       doc.ByteSize,
		Summary:        res.Summary,
		Insights:       res.Insights,
		Template:       res.Template,
		Model:          res.Model,
		TokenCount:     res.Stats.TotalTokens,
		ChunkCount:     res.Stats.ChunkCount,
		DegradedChunks: res.Stats.DegradedChunks,
		ProcessingSecs: time.Since(start).Seconds(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.SaveSummary(ctx, rec); err != nil {
		// The summary was produced; losing history is not worth failing the
		// request over.
		s.log.Error("failed to persist summary", "doc_id", rec.DocID, "err", err)
	}

	s.log.Info("document processed", "doc_id", rec.DocID, "chunks", rec.ChunkCount,
		"degraded", rec.DegradedChunks, "secs", rec.ProcessingSecs)
	return rec, nil
}

func (s *SummaryService) History(ctx context.Context, limit, offset int) ([]models.HistoryEntry, error) {
	return s.store.ListSummaries(ctx, limit, offset)
}

func (s *SummaryService) Get(ctx context.Context, docID string) (*models.SummaryRecord, error) {
	return s.store.GetSummary(ctx, docID)
}

func (s *SummaryService) Delete(ctx context.Context, docID string) (bool, error) {
	return s.store.DeleteSummary(ctx, docID)
}
