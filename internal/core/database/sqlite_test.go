package db_test

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	db "github.com/privadoc/privadoc/internal/core/database"
	"github.com/privadoc/privadoc/internal/models"
)

func openStore(t *testing.T, cfg db.Config) *db.SQLiteStore {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "test.db")
	}
	store, err := db.Open(context.Background(), cfg, log.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func record(filename string) *models.SummaryRecord {
	return &models.SummaryRecord{
		DocID:          uuid.NewString(),
		Filename:       filename,
		FileExtension:  ".pdf",
		FileSize:       2048,
		Summary:        "a short summary of " + filename,
		Insights:       []string{"first insight", "second insight"},
		Template:       "general",
		Model:          "llama3.2:3b",
		TokenCount:     900,
		ChunkCount:     3,
		DegradedChunks: 1,
		ProcessingSecs: 12.5,
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store := openStore(t, db.Config{MaxSummaries: 10})
	ctx := context.Background()

	rec := record("report.pdf")
	require.NoError(t, store.SaveSummary(ctx, rec))

	got, err := store.GetSummary(ctx, rec.DocID)
	require.NoError(t, err)
	assert.Equal(t, rec.Summary, got.Summary)
	assert.Equal(t, rec.Insights, got.Insights)
	assert.Equal(t, rec.Model, got.Model)
	assert.Equal(t, rec.ChunkCount, got.ChunkCount)
	assert.Equal(t, rec.DegradedChunks, got.DegradedChunks)
	assert.InDelta(t, rec.ProcessingSecs, got.ProcessingSecs, 0.001)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetMissingSummary(t *testing.T) {
	store := openStore(t, db.Config{MaxSummaries: 10})
	_, err := store.GetSummary(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestListSummariesNewestFirst(t *testing.T) {
	store := openStore(t, db.Config{MaxSummaries: 10})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := record(fmt.Sprintf("doc-%d.pdf", i))
		rec.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveSummary(ctx, rec))
	}

	entries, err := store.ListSummaries(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "doc-2.pdf", entries[0].Filename)
	assert.Equal(t, "doc-1.pdf", entries[1].Filename)
	assert.Contains(t, entries[0].Summary, "doc-2.pdf")
}

func TestDeleteSummary(t *testing.T) {
	store := openStore(t, db.Config{MaxSummaries: 10})
	ctx := context.Background()

	rec := record("gone.pdf")
	require.NoError(t, store.SaveSummary(ctx, rec))

	deleted, err := store.DeleteSummary(ctx, rec.DocID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteSummary(ctx, rec.DocID)
	require.NoError(t, err)
	assert.False(t, deleted, "second delete finds nothing")
}

func TestRetentionEvictsOldest(t *testing.T) {
	store := openStore(t, db.Config{MaxSummaries: 3})
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var ids []string
	for i := 0; i < 5; i++ {
		rec := record(fmt.Sprintf("doc-%d.pdf", i))
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveSummary(ctx, rec))
		ids = append(ids, rec.DocID)
	}

	count, err := store.SummaryCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// The two oldest are gone, the newest survives.
	_, err = store.GetSummary(ctx, ids[0])
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = store.GetSummary(ctx, ids[4])
	assert.NoError(t, err)
}

func TestStats(t *testing.T) {
	store := openStore(t, db.Config{MaxSummaries: 10})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := record(fmt.Sprintf("doc-%d.pdf", i))
		if i == 0 {
			rec.Template = "contract_analysis"
		}
		require.NoError(t, store.SaveSummary(ctx, rec))
	}

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalSummaries)
	assert.Equal(t, 3, stats.SummariesThisWeek)
	assert.Equal(t, "general", stats.MostUsedTemplate)
	assert.InDelta(t, 12.5, stats.AvgProcessingSecs, 0.001)
	assert.Equal(t, int64(3*2048), stats.TotalBytes)
}

func TestStatsOnEmptyStore(t *testing.T) {
	store := openStore(t, db.Config{MaxSummaries: 10})
	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalSummaries)
	assert.Equal(t, "none", stats.MostUsedTemplate)
}

func TestEncryptedReopenWithSamePassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enc.db")
	ctx := context.Background()

	store := openStore(t, db.Config{Path: path, Passphrase: "correct horse", MaxSummaries: 10})
	rec := record("secret.pdf")
	require.NoError(t, store.SaveSummary(ctx, rec))
	require.NoError(t, store.Close())

	reopened := openStore(t, db.Config{Path: path, Passphrase: "correct horse", MaxSummaries: 10})
	got, err := reopened.GetSummary(ctx, rec.DocID)
	require.NoError(t, err)
	assert.Equal(t, rec.Summary, got.Summary)
	assert.Equal(t, rec.Insights, got.Insights)
}

func TestWrongPassphraseCannotRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enc.db")
	ctx := context.Background()

	store := openStore(t, db.Config{Path: path, Passphrase: "right", MaxSummaries: 10})
	rec := record("secret.pdf")
	require.NoError(t, store.SaveSummary(ctx, rec))
	require.NoError(t, store.Close())

	wrong := openStore(t, db.Config{Path: path, Passphrase: "wrong", MaxSummaries: 10})
	_, err := wrong.GetSummary(ctx, rec.DocID)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	store := openStore(t, db.Config{MaxSummaries: 10})
	assert.NoError(t, store.Health(context.Background()))
}

func TestCipherRoundTrip(t *testing.T) {
	salt, err := db.NewSalt()
	require.NoError(t, err)

	c, err := db.NewCipher("passphrase", salt)
	require.NoError(t, err)

	sealed, err := c.Seal("plain body")
	require.NoError(t, err)
	assert.NotEqual(t, "plain body", sealed)

	opened, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "plain body", opened)
}

func TestNilCipherPassesThrough(t *testing.T) {
	var c *db.Cipher
	sealed, err := c.Seal("as is")
	require.NoError(t, err)
	assert.Equal(t, "as is", sealed)

	opened, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "as is", opened)
}
