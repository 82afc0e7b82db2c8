package db

import (
	"context"

	"github.com/privadoc/privadoc/internal/models"
)

// SummaryStore defines all persistence operations the service layer needs.
// It abstracts the encrypted SQLite store so higher layers never depend on a
// specific database.
type SummaryStore interface {
	SaveSummary(ctx context.Context, rec *models.SummaryRecord) error
	ListSummaries(ctx context.Context, limit, offset int) ([]models.HistoryEntry, error)
	GetSummary(ctx context.Context, docID string) (*models.SummaryRecord, error)
	DeleteSummary(ctx context.Context, docID string) (bool, error)
	Stats(ctx context.Context) (*models.Stats, error)
	CleanupOldSummaries(ctx context.Context) (int, error)
	SummaryCount(ctx context.Context) (int, error)

	Health(ctx context.Context) error
	Close() error
}
