package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/privadoc/privadoc/internal/models"
	"github.com/privadoc/privadoc/internal/services"
)

type SummaryHandler struct {
	svc         *services.SummaryService
	maxFileSize int64
	log         *log.Logger
}

func NewSummaryHandler(svc *services.SummaryService, maxFileSize int64, logger *log.Logger) *SummaryHandler {
	return &SummaryHandler{svc: svc, maxFileSize: maxFileSize, log: logger.WithPrefix("api")}
}

// Summarize handles the multipart upload and runs the full pipeline
// synchronously. The desktop shell shows progress against this one request.
func (h *SummaryHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	// One extra megabyte leaves room for the non-file form fields.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+1<<20)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	templateKey := r.FormValue("template")
	if templateKey == "" {
		templateKey = "general"
	}
	customPrompt := r.FormValue("custom_prompt")

	rec, err := h.svc.ProcessDocument(r.Context(), header.Filename, data, templateKey, customPrompt)
	if err != nil {
		h.log.Error("summarization failed", "file", header.Filename, "err", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *SummaryHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	entries, err := h.svc.History(r.Context(), limit, offset)
	if err != nil {
		h.log.Error("history listing failed", "err", err)
		writeError(w, statusFor(err), "could not list summaries")
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": entries, "limit": limit, "offset": offset})
}

func (h *SummaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	rec, err := h.svc.Get(r.Context(), docID)
	if err != nil {
		writeError(w, statusFor(err), "summary not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *SummaryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	deleted, err := h.svc.Delete(r.Context(), docID)
	if err != nil {
		h.log.Error("delete failed", "doc_id", docID, "err", err)
		writeError(w, statusFor(err), "could not delete summary")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "summary not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"doc_id": docID, "status": "deleted"})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
