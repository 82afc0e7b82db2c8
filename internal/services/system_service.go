package services

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/privadoc/privadoc/internal/core"
	db "github.com/privadoc/privadoc/internal/core/database"
	"github.com/privadoc/privadoc/internal/core/prompt"
	"github.com/privadoc/privadoc/internal/models"
)

// SystemService backs the diagnostic endpoints: health, stats, templates and
// model info.
type SystemService struct {
	store     db.SummaryStore
	prober    core.ModelProber
	templates *prompt.Registry
	model     string
	window    int
	version   string
	log       *log.Logger
}

func NewSystemService(store db.SummaryStore, prober core.ModelProber, templates *prompt.Registry,
	model string, contextWindow int, version string, logger *log.Logger) *SystemService {
	return &SystemService{
		store:     store,
		prober:    prober,
		templates: templates,
		model:     model,
		window:    contextWindow,
		version:   version,
		log:       logger.WithPrefix("system"),
	}
}

// Health reports per-component status. The service itself is up if this
// handler runs; the model and database are probed.
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Model    string `json:"model"`
	Database string `json:"database"`
}

func (s *SystemService) Health(ctx context.Context) *Health {
	h := &Health{Status: "healthy", Version: s.version, Model: "available", Database: "available"}

	if err := s.prober.Health(ctx); err != nil {
		s.log.Warn("model health probe failed", "err", err)
		h.Model = "unavailable"
		h.Status = "degraded"
	}
	if err := s.store.Health(ctx); err != nil {
		s.log.Warn("database health probe failed", "err", err)
		h.Database = "unavailable"
		h.Status = "degraded"
	}
	return h
}

func (s *SystemService) ModelInfo(ctx context.Context) (*models.ModelInfo, error) {
	return s.prober.ModelInfo(ctx, s.model, s.window)
}

func (s *SystemService) Templates() []models.TemplateInfo {
	var infos []models.TemplateInfo
	for _, tpl := range s.templates.List() {
		infos = append(infos, models.TemplateInfo{
			Key:         tpl.Key,
			Name:        tpl.Name,
			Description: tpl.Description,
			TargetWords: tpl.TargetWords,
		})
	}
	return infos
}

func (s *SystemService) Stats(ctx context.Context) (*models.Stats, error) {
	return s.store.Stats(ctx)
}
