package models

import (
	"time"
)

// DocumentText is the extraction result for one uploaded file. It lives only
// for the duration of a single processing request; the raw text is never
// persisted, only the resulting summary is.
type DocumentText struct {
	Text      string
	Filename  string
	Extension string
	ByteSize  int
	PageCount int
	WordCount int
}

// SummaryRecord is the persisted artifact of one summarization run.
type SummaryRecord struct {
	DocID          string    `db:"doc_id" json:"doc_id"`
	Filename       string    `db:"filename" json:"filename"`
	FileExtension  string    `db:"file_extension" json:"file_extension"`
	FileSize       int       `db:"file_size" json:"file_size"`
	Summary        string    `db:"summary" json:"summary"`
	Insights       []string  `db:"-" json:"insights"`
	Template       string    `db:"template" json:"template"`
	Model          string    `db:"model" json:"model"`
	TokenCount     int       `db:"token_count" json:"token_count"`
	ChunkCount     int       `db:"chunk_count" json:"chunk_count"`
	DegradedChunks int       `db:"degraded_chunks" json:"degraded_chunks"`
	ProcessingSecs float64   `db:"processing_time" json:"processing_time"`
	CreatedAt      time.Time `db:"created_at" json:"timestamp"`
}

// HistoryEntry is the truncated view of a SummaryRecord returned by the
// history listing.
type HistoryEntry struct {
	DocID          string    `db:"doc_id" json:"doc_id"`
	Filename       string    `db:"filename" json:"filename"`
	Summary        string    `db:"summary" json:"summary"`
	Template       string    `db:"template" json:"template"`
	ProcessingSecs float64   `db:"processing_time" json:"processing_time"`
	CreatedAt      time.Time `db:"created_at" json:"timestamp"`
}

// Stats aggregates usage numbers over the stored summaries.
type Stats struct {
	TotalSummaries    int     `json:"total_summaries"`
	SummariesThisWeek int     `json:"summaries_this_week"`
	MostUsedTemplate  string  `json:"most_used_template"`
	AvgProcessingSecs float64 `json:"avg_processing_time"`
	TotalBytes        int64   `json:"total_bytes_processed"`
}

// ModelInfo describes the locally hosted model as reported by the inference
// endpoint.
type ModelInfo struct {
	Name          string `json:"name"`
	ParameterSize string `json:"parameter_size"`
	Quantization  string `json:"quantization"`
	ContextWindow int    `json:"context_window"`
	Status        string `json:"status"`
}

// TemplateInfo is the public view of a registered prompt template.
type TemplateInfo struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TargetWords int    `json:"target_words"`
}
