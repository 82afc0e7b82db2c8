package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/privadoc/privadoc/internal/config"
	"github.com/privadoc/privadoc/internal/core/chunker"
	db "github.com/privadoc/privadoc/internal/core/database"
	"github.com/privadoc/privadoc/internal/core/engine"
	"github.com/privadoc/privadoc/internal/core/extractor"
	"github.com/privadoc/privadoc/internal/core/llm"
	"github.com/privadoc/privadoc/internal/core/prompt"
	"github.com/privadoc/privadoc/internal/services"
)

type App struct {
	Store  *db.SQLiteStore
	LLM    *llm.Client
	Server *Server

	log *log.Logger
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := newLogger(cfg)

	bootCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	store, err := db.Open(bootCtx, db.Config{
		Path:         cfg.Database.Path,
		Passphrase:   cfg.Database.Passphrase,
		MaxSummaries: cfg.Database.MaxSummaries,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("summary store ready", "path", cfg.Database.Path)

	llmClient := llm.NewClient(llm.Config{
		Host:         cfg.Model.Host,
		TimeoutFloor: time.Duration(cfg.Model.TimeoutFloorSecs) * time.Second,
		PerToken:     time.Duration(cfg.Model.PerTokenMillis) * time.Millisecond,
	}, logger)

	if cfg.Model.PullOnStartup {
		if err := llmClient.EnsureModel(bootCtx, cfg.Model.Name); err != nil {
			// The service still starts; requests fail with 502 until the
			// model shows up.
			logger.Warn("model not ready", "model", cfg.Model.Name, "err", err)
		}
	}

	registry, err := prompt.NewRegistry(templatesFrom(cfg))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build template registry: %w", err)
	}

	ck := chunker.New(chunker.NewEstimator(cfg.Model.Encoding))
	eng, err := engine.New(llmClient, ck, registry, engine.Config{
		Model:             cfg.Model.Name,
		ContextWindow:     cfg.Model.ContextWindow,
		OverlapTokens:     cfg.Engine.OverlapTokens,
		MaxResponseTokens: cfg.Model.MaxResponseTokens,
		Temperature:       cfg.Model.Temperature,
		Retries:           cfg.Engine.Retries,
		RetryDelay:        time.Duration(cfg.Engine.RetryDelayMS) * time.Millisecond,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	summarySvc := services.NewSummaryService(store, extractor.New(), eng,
		cfg.API.MaxConcurrentRuns, cfg.MaxFileSizeBytes(), cfg.Documents.MaxPages, logger)
	systemSvc := services.NewSystemService(store, llmClient, registry,
		cfg.Model.Name, cfg.Model.ContextWindow, cfg.App.Version, logger)

	server := NewServer(cfg, summarySvc, systemSvc, logger)

	return &App{Store: store, LLM: llmClient, Server: server, log: logger}, nil
}

func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.log.Error("closing store", "err", err)
		}
	}
}

// templatesFrom maps configured templates onto the registry's type, falling
// back to the built-in set when none are configured.
func templatesFrom(cfg *config.Config) []prompt.Template {
	if len(cfg.Templates) == 0 {
		return prompt.Defaults()
	}
	defaults := make(map[string]prompt.Template)
	for _, tpl := range prompt.Defaults() {
		defaults[tpl.Key] = tpl
	}

	var tpls []prompt.Template
	for _, tc := range cfg.Templates {
		tpl := prompt.Template{
			Key:             tc.Key,
			Name:            tc.Name,
			Description:     tc.Description,
			Pattern:         tc.Pattern,
			TargetWords:     tc.TargetWords,
			ExtractInsights: tc.ExtractInsights,
		}
		// A configured key without a pattern reuses the built-in one.
		if tpl.Pattern == "" {
			if def, ok := defaults[tc.Key]; ok {
				tpl.Pattern = def.Pattern
			}
		}
		tpls = append(tpls, tpl)
	}
	return tpls
}

func newLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          cfg.App.Name,
	})
	if level, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.App.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
