package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	db "github.com/privadoc/privadoc/internal/core/database"
	"github.com/privadoc/privadoc/internal/core/engine"
	"github.com/privadoc/privadoc/internal/core/extractor"
	"github.com/privadoc/privadoc/internal/core/llm"
	"github.com/privadoc/privadoc/internal/core/prompt"
	"github.com/privadoc/privadoc/internal/models"
	"github.com/privadoc/privadoc/internal/services"
)

type stubStore struct {
	records map[string]*models.SummaryRecord
}

func newStubStore() *stubStore {
	return &stubStore{records: make(map[string]*models.SummaryRecord)}
}

func (s *stubStore) SaveSummary(_ context.Context, rec *models.SummaryRecord) error {
	s.records[rec.DocID] = rec
	return nil
}

func (s *stubStore) ListSummaries(context.Context, int, int) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	for _, rec := range s.records {
		entries = append(entries, models.HistoryEntry{DocID: rec.DocID, Filename: rec.Filename, Summary: rec.Summary})
	}
	return entries, nil
}

func (s *stubStore) GetSummary(_ context.Context, docID string) (*models.SummaryRecord, error) {
	rec, ok := s.records[docID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return rec, nil
}

func (s *stubStore) DeleteSummary(_ context.Context, docID string) (bool, error) {
	_, ok := s.records[docID]
	delete(s.records, docID)
	return ok, nil
}

func (s *stubStore) Stats(context.Context) (*models.Stats, error)     { return &models.Stats{}, nil }
func (s *stubStore) CleanupOldSummaries(context.Context) (int, error) { return 0, nil }
func (s *stubStore) SummaryCount(context.Context) (int, error)        { return len(s.records), nil }
func (s *stubStore) Health(context.Context) error                     { return nil }
func (s *stubStore) Close() error                                     { return nil }

type stubSummarizer struct{}

func (stubSummarizer) Summarize(_ context.Context, req engine.Request) (*engine.Result, error) {
	return &engine.Result{
		Summary:  "stub summary",
		Model:    "test-model",
		Template: req.TemplateKey,
		Stats:    engine.Stats{ChunkCount: 1, Calls: 1},
	}, nil
}

func testRouter(t *testing.T, store *stubStore) *chi.Mux {
	t.Helper()
	logger := log.New(io.Discard)
	svc := services.NewSummaryService(store, extractor.New(), stubSummarizer{}, 1, 1<<20, 0, logger)
	h := NewSummaryHandler(svc, 1<<20, logger)

	r := chi.NewRouter()
	r.Post("/api/summarize", h.Summarize)
	r.Get("/api/history", h.History)
	r.Get("/api/summaries/{docID}", h.Get)
	r.Delete("/api/summaries/{docID}", h.Delete)
	return r
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("template", "general"))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSummarizeEndpoint(t *testing.T) {
	store := newStubStore()
	router := testRouter(t, store)

	body, contentType := multipartUpload(t, "notes.txt", "some document text")
	req := httptest.NewRequest(http.MethodPost, "/api/summarize", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rec models.SummaryRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "stub summary", rec.Summary)
	assert.Equal(t, "notes.txt", rec.Filename)
	assert.NotEmpty(t, rec.DocID)
	assert.Len(t, store.records, 1)
}

func TestSummarizeRejectsUnsupportedFormat(t *testing.T) {
	router := testRouter(t, newStubStore())

	body, contentType := multipartUpload(t, "slides.pptx", "irrelevant")
	req := httptest.NewRequest(http.MethodPost, "/api/summarize", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSummarizeWithoutFileField(t *testing.T) {
	router := testRouter(t, newStubStore())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("template", "general"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/summarize", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetAndDeleteSummary(t *testing.T) {
	store := newStubStore()
	store.records["abc"] = &models.SummaryRecord{DocID: "abc", Filename: "a.pdf", Summary: "text"}
	router := testRouter(t, store)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/summaries/abc", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/summaries/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/summaries/abc", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/summaries/abc", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHistoryEndpointAlwaysReturnsArray(t *testing.T) {
	router := testRouter(t, newStubStore())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Summaries []models.HistoryEntry `json:"summaries"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotNil(t, body.Summaries)
	assert.Empty(t, body.Summaries)
}

func TestStatusForMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{extractor.ErrUnsupportedFormat, http.StatusBadRequest},
		{prompt.ErrUnknownTemplate, http.StatusBadRequest},
		{prompt.ErrInvalidTemplate, http.StatusBadRequest},
		{db.ErrNotFound, http.StatusNotFound},
		{services.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{engine.ErrEmptyDocument, http.StatusUnprocessableEntity},
		{engine.ErrContextWindowExceeded, http.StatusUnprocessableEntity},
		{services.ErrTooManyPages, http.StatusUnprocessableEntity},
		{services.ErrTooManyRuns, http.StatusTooManyRequests},
		{engine.ErrSummarizationFailed, http.StatusBadGateway},
		{llm.ErrUnavailable, http.StatusBadGateway},
		{llm.ErrTimeout, http.StatusGatewayTimeout},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, statusFor(tc.err), tc.err.Error())
	}
}

func TestStatusForWrappedRunError(t *testing.T) {
	wrapped := &engine.RunError{Err: engine.ErrEmptyDocument}
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(wrapped))
}
