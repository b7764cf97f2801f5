package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonathan/resourcewise/internal/config"
	"github.com/jonathan/resourcewise/internal/db"
	"github.com/jonathan/resourcewise/internal/fuzzy"
	"github.com/jonathan/resourcewise/internal/llm"
	"github.com/jonathan/resourcewise/internal/matching"
	"github.com/jonathan/resourcewise/internal/session"
	"github.com/jonathan/resourcewise/internal/vocabulary"
	"github.com/jonathan/resourcewise/internal/workflow"
)

// app holds the wired collaborators shared by the commands.
type app struct {
	vocab    *vocabulary.Vocabulary
	db       *db.DB
	client   llm.Client
	model    llm.LanguageModel
	cache    *fuzzy.BadgerEmbeddingCache
	resolver *fuzzy.Resolver
	searcher *matching.Searcher
	sessions session.Store
	engine   *workflow.Engine
	logger   *slog.Logger
}

// newApp connects to whatever the configuration provides. Without a database
// URL the data stages report a connection error; without an API key intent
// and term classification fall back to rules.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.vocab, err = vocabulary.Load(cfg.Fuzzy.VocabularyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}

	if cfg.DatabaseURL != "" {
		a.db, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("DATABASE_URL is not set; data questions will fail")
	}

	llmConfig := llm.DefaultConfig()
	llmConfig.Timeout = cfg.LLMTimeout()
	if cfg.APIKey != "" {
		a.client, err = llm.NewClient(ctx, llmConfig, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		a.model = llm.NewAssistant(a.client, cfg.LLMTimeout(), logger)
	} else {
		logger.Warn("GEMINI_API_KEY is not set; using rule-based classification only")
	}

	var embedder fuzzy.Embedder
	if a.client != nil && !cfg.Fuzzy.DisableVector {
		a.cache, err = fuzzy.OpenBadgerEmbeddingCache(a.client, cfg.CacheDir, llmConfig.EmbeddingModel, cfg.EmbeddingCacheTTL(), logger)
		if err != nil {
			return nil, err
		}
		embedder = a.cache
	}

	var (
		designations fuzzy.DesignationDirectory
		skills       fuzzy.SkillDirectory
	)
	if a.db != nil {
		designations = a.db.Designations()
		skills = a.db.SkillDirectory()
	}
	a.resolver = fuzzy.Build(a.vocab, a.model, cfg.ClassifyTimeout(), embedder, designations, skills, logger)
	a.searcher = matching.NewSearcher(a.vocab, matching.Options{MaxCombinations: cfg.MaxCombinations}, logger)

	a.sessions, err = session.NewFileStore(cfg.SessionDir, logger)
	if err != nil {
		return nil, err
	}

	deps := workflow.Deps{
		Model:      a.model,
		Resolver:   a.resolver,
		Searcher:   a.searcher,
		Vocabulary: a.vocab,
		Sessions:   a.sessions,
		Logger:     logger,
	}
	if a.db != nil {
		deps.Schema = a.db
		deps.Executor = db.NewExecutor(a.db, db.ExecutorOptions{Timeout: cfg.QueryTimeout(), MaxRows: cfg.MaxRows}, logger)
		deps.Employees = a.db
	}
	a.engine = workflow.NewEngine(deps)
	return a, nil
}

// Close releases every opened resource.
func (a *app) Close() {
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			a.logger.Warn("failed to close session store", slog.String("error", err.Error()))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close embedding cache", slog.String("error", err.Error()))
		}
	}
	if a.client != nil {
		a.client.Close() //nolint:errcheck
	}
	if a.db != nil {
		a.db.Close()
	}
}
