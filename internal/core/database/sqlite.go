package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/privadoc/privadoc/internal/models"
)

// ErrNotFound is returned when no summary exists for the requested id.
var ErrNotFound = errors.New("database: summary not found")

const saltSettingKey = "encryption_salt"

type Config struct {
	Path         string
	Passphrase   string
	MaxSummaries int
}

var _ SummaryStore = (*SQLiteStore)(nil)

// SQLiteStore persists summaries in a local SQLite file. Summary text and
// insights are sealed with the store's Cipher before they hit disk; everything
// else is metadata.
type SQLiteStore struct {
	db           *sqlx.DB
	cipher       *Cipher
	maxSummaries int
	log          *log.Logger
}

func Open(ctx context.Context, cfg Config, logger *log.Logger) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database: path is empty")
	}
	if cfg.MaxSummaries <= 0 {
		cfg.MaxSummaries = 50
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("database: create directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", cfg.Path)
	conn, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.Path, err)
	}
	// One writer at a time keeps SQLite happy under concurrent requests.
	conn.SetMaxOpenConns(1)

	if err := EnsureBootstrapped(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("database: bootstrap: %w", err)
	}

	s := &SQLiteStore{db: conn, maxSummaries: cfg.MaxSummaries, log: logger.WithPrefix("db")}

	if cfg.Passphrase != "" {
		salt, err := s.loadOrCreateSalt(ctx)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		s.cipher, err = NewCipher(cfg.Passphrase, salt)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		s.log.Info("summary encryption enabled")
	} else {
		s.log.Warn("no passphrase configured, summaries stored in plaintext")
	}

	return s, nil
}

// loadOrCreateSalt keeps the key-derivation salt alongside the data so the
// same passphrase opens the database across restarts.
func (s *SQLiteStore) loadOrCreateSalt(ctx context.Context) ([]byte, error) {
	var encoded string
	err := s.db.GetContext(ctx, &encoded,
		`SELECT setting_value FROM app_settings WHERE setting_key = ?`, saltSettingKey)
	switch {
	case err == nil:
		salt, decErr := hex.DecodeString(encoded)
		if decErr != nil {
			return nil, fmt.Errorf("database: corrupt salt setting: %w", decErr)
		}
		return salt, nil
	case errors.Is(err, sql.ErrNoRows):
		salt, genErr := NewSalt()
		if genErr != nil {
			return nil, genErr
		}
		_, insErr := s.db.ExecContext(ctx,
			`INSERT INTO app_settings (setting_key, setting_value) VALUES (?, ?)`,
			saltSettingKey, hex.EncodeToString(salt))
		if insErr != nil {
			return nil, fmt.Errorf("database: store salt: %w", insErr)
		}
		return salt, nil
	default:
		return nil, fmt.Errorf("database: load salt: %w", err)
	}
}

func (s *SQLiteStore) SaveSummary(ctx context.Context, rec *models.SummaryRecord) error {
	if rec == nil {
		return errors.New("database: nil record")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	summary, err := s.cipher.Seal(rec.Summary)
	if err != nil {
		return err
	}
	insights, err := s.sealInsights(rec.Insights)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO summaries (
			doc_id, filename, file_extension, file_size, summary, insights,
			template, model, token_count, chunk_count, degraded_chunks,
			processing_time, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, q,
		rec.DocID, rec.Filename, rec.FileExtension, rec.FileSize, summary, insights,
		rec.Template, rec.Model, rec.TokenCount, rec.ChunkCount, rec.DegradedChunks,
		rec.ProcessingSecs, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("database: insert summary: %w", err)
	}

	if n, err := s.CleanupOldSummaries(ctx); err != nil {
		s.log.Warn("cleanup after save failed", "err", err)
	} else if n > 0 {
		s.log.Info("evicted old summaries", "count", n)
	}
	return nil
}

func (s *SQLiteStore) ListSummaries(ctx context.Context, limit, offset int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT doc_id, filename, summary, template,
		       COALESCE(processing_time, 0) AS processing_time, created_at
		FROM summaries
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	var entries []models.HistoryEntry
	if err := s.db.SelectContext(ctx, &entries, q, limit, offset); err != nil {
		return nil, fmt.Errorf("database: list summaries: %w", err)
	}
	for i := range entries {
		text, err := s.cipher.Open(entries[i].Summary)
		if err != nil {
			return nil, err
		}
		entries[i].Summary = text
	}
	return entries, nil
}

type summaryRow struct {
	models.SummaryRecord
	InsightsJSON sql.NullString `db:"insights"`
}

func (s *SQLiteStore) GetSummary(ctx context.Context, docID string) (*models.SummaryRecord, error) {
	const q = `
		SELECT doc_id, filename, file_extension, file_size, summary, insights,
		       template, model, token_count, chunk_count, degraded_chunks,
		       COALESCE(processing_time, 0) AS processing_time, created_at
		FROM summaries WHERE doc_id = ?
	`
	var row summaryRow
	err := s.db.GetContext(ctx, &row, q, docID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database: get summary %s: %w", docID, err)
	}

	rec := row.SummaryRecord
	if rec.Summary, err = s.cipher.Open(rec.Summary); err != nil {
		return nil, err
	}
	if rec.Insights, err = s.openInsights(row.InsightsJSON); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) DeleteSummary(ctx context.Context, docID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM summaries WHERE doc_id = ?`, docID)
	if err != nil {
		return false, fmt.Errorf("database: delete summary %s: %w", docID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{MostUsedTemplate: "none"}

	const q = `
		SELECT COUNT(*)                                   AS total,
		       COALESCE(AVG(processing_time), 0)          AS avg_time,
		       COALESCE(SUM(file_size), 0)                AS total_bytes
		FROM summaries
	`
	var agg struct {
		Total      int     `db:"total"`
		AvgTime    float64 `db:"avg_time"`
		TotalBytes int64   `db:"total_bytes"`
	}
	if err := s.db.GetContext(ctx, &agg, q); err != nil {
		return nil, fmt.Errorf("database: stats: %w", err)
	}
	stats.TotalSummaries = agg.Total
	stats.AvgProcessingSecs = agg.AvgTime
	stats.TotalBytes = agg.TotalBytes

	weekAgo := time.Now().UTC().AddDate(0, 0, -7)
	if err := s.db.GetContext(ctx, &stats.SummariesThisWeek,
		`SELECT COUNT(*) FROM summaries WHERE created_at >= ?`, weekAgo); err != nil {
		return nil, fmt.Errorf("database: stats week count: %w", err)
	}

	var template string
	err := s.db.GetContext(ctx, &template, `
		SELECT template FROM summaries
		GROUP BY template ORDER BY COUNT(*) DESC, template ASC LIMIT 1
	`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("database: stats template: %w", err)
	}
	if template != "" {
		stats.MostUsedTemplate = template
	}
	return stats, nil
}

// CleanupOldSummaries deletes the oldest rows beyond the retention limit and
// returns how many were removed.
func (s *SQLiteStore) CleanupOldSummaries(ctx context.Context) (int, error) {
	count, err := s.SummaryCount(ctx)
	if err != nil {
		return 0, err
	}
	excess := count - s.maxSummaries
	if excess <= 0 {
		return 0, nil
	}

	const q = `
		DELETE FROM summaries WHERE doc_id IN (
			SELECT doc_id FROM summaries ORDER BY created_at ASC LIMIT ?
		)
	`
	res, err := s.db.ExecContext(ctx, q, excess)
	if err != nil {
		return 0, fmt.Errorf("database: cleanup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) SummaryCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM summaries`); err != nil {
		return 0, fmt.Errorf("database: count summaries: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	var result string
	if err := s.db.GetContext(ctx, &result, `PRAGMA quick_check`); err != nil {
		return fmt.Errorf("database: health check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database: integrity check returned %q", result)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) sealInsights(insights []string) (sql.NullString, error) {
	if len(insights) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(insights)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("database: marshal insights: %w", err)
	}
	sealed, err := s.cipher.Seal(string(raw))
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: sealed, Valid: true}, nil
}

func (s *SQLiteStore) openInsights(stored sql.NullString) ([]string, error) {
	if !stored.Valid || stored.String == "" {
		return nil, nil
	}
	raw, err := s.cipher.Open(stored.String)
	if err != nil {
		return nil, err
	}
	var insights []string
	if err := json.Unmarshal([]byte(raw), &insights); err != nil {
		return nil, fmt.Errorf("database: unmarshal insights: %w", err)
	}
	return insights, nil
}
