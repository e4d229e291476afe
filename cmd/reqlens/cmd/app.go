package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/reqlens/reqlens/internal/classify"
	"github.com/reqlens/reqlens/internal/config"
	"github.com/reqlens/reqlens/internal/embed"
	"github.com/reqlens/reqlens/internal/nlp"
	"github.com/reqlens/reqlens/internal/pipeline"
	"github.com/reqlens/reqlens/internal/rules"
	"github.com/reqlens/reqlens/internal/search"
	"github.com/reqlens/reqlens/internal/store"
)

// app holds a fully wired engine: configuration, language resources,
// embedder, the three stores, and the pipeline and search engine on top.
type app struct {
	cfg        *config.Config
	lang       *nlp.Language
	extractor  *rules.Extractor
	classifier *classify.Classifier
	embedder   embed.Embedder
	vectors    store.VectorStore
	keywords   store.KeywordIndex
	metadata   store.MetadataStore
	pipeline   *pipeline.Pipeline
	engine     *search.Engine

	lock       *store.IndexLock
	vectorPath string
	logger     *slog.Logger
}

func metadataPath(dataDir string) string {
	return filepath.Join(dataDir, "metadata.db")
}

func keywordPath(dataDir string) string {
	return filepath.Join(dataDir, "keywords.bleve")
}

func vectorSnapshotPath(dataDir string) string {
	return filepath.Join(dataDir, "vectors.snap")
}

// loadConfig loads configuration from the working directory and applies
// the persistent CLI flags on top.
func loadConfig() (*config.Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if dataDirFlag != "" {
		cfg.Store.DataDir = dataDirFlag
	}
	if offlineMode {
		cfg.Embeddings.Provider = string(embed.ProviderStatic)
	}
	return cfg, nil
}

// openApp wires the full engine against the configured data directory and
// acquires the index lock. Callers must Close the returned app.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openAppWithConfig(ctx, cfg)
}

func openAppWithConfig(ctx context.Context, cfg *config.Config) (*app, error) {
	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	lock := store.NewIndexLock(dataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("index at %s is in use by another reqlens process", dataDir)
	}

	a := &app{
		cfg:        cfg,
		lock:       lock,
		vectorPath: vectorSnapshotPath(dataDir),
		logger:     slog.Default().With("component", "app"),
	}

	if err := a.wire(ctx, dataDir); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, dataDir string) error {
	lang, err := nlp.NewLanguage()
	if err != nil {
		return err
	}
	a.lang = lang
	a.extractor = rules.New(lang)

	embedder, err := embed.NewEmbedder(ctx, embed.FactoryConfig{
		Provider:      embed.ProviderType(a.cfg.Embeddings.Provider),
		Model:         a.cfg.Embeddings.Model,
		Dimensions:    a.cfg.Embeddings.Dimensions,
		BatchSize:     a.cfg.Embeddings.BatchSize,
		OllamaHost:    a.cfg.Embeddings.OllamaHost,
		OpenAIBaseURL: a.cfg.Embeddings.OpenAIBaseURL,
		OpenAIToken:   os.Getenv("REQLENS_OPENAI_TOKEN"),
		CacheSize:     a.cfg.Embeddings.CacheSize,
	})
	if err != nil {
		return err
	}
	a.embedder = embedder
	a.logger.Debug("embedder ready",
		slog.String("model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()))

	vcfg := store.VectorStoreConfig{
		Dimensions: embedder.Dimensions(),
		Backend:    a.cfg.Store.VectorBackend,
		M:          a.cfg.Store.HNSWM,
		EfSearch:   a.cfg.Store.HNSWEfSearch,
	}
	vectors, err := store.NewVectorStore(vcfg)
	if err != nil {
		return err
	}
	a.vectors = vectors
	if _, statErr := os.Stat(a.vectorPath); statErr == nil {
		if err := vectors.Load(a.vectorPath); err != nil {
			return fmt.Errorf("failed to load vector snapshot: %w", err)
		}
	}

	keywords, err := store.NewBleveKeywordIndex(keywordPath(dataDir))
	if err != nil {
		return err
	}
	a.keywords = keywords

	metadata, err := store.NewSQLiteMetadataStore(metadataPath(dataDir))
	if err != nil {
		return err
	}
	a.metadata = metadata

	classifier, err := classify.New(ctx, embedder, a.cfg.Analysis.RuleConfidenceThreshold)
	if err != nil {
		return err
	}
	a.classifier = classifier

	a.pipeline = pipeline.New(pipeline.Deps{
		Language:   a.lang,
		Extractor:  a.extractor,
		Classifier: a.classifier,
		Embedder:   a.embedder,
		Vectors:    a.vectors,
		Keywords:   a.keywords,
		Metadata:   a.metadata,
		Workers:    a.cfg.Ingest.Workers,
	})

	a.engine = search.New(search.Config{
		Language:       a.lang,
		Embedder:       a.embedder,
		Vectors:        a.vectors,
		Keywords:       a.keywords,
		Metadata:       a.metadata,
		SemanticWeight: a.cfg.Search.SemanticWeight,
		RuleWeight:     a.cfg.Search.RuleWeight,
	})

	return nil
}

// Close persists the vector snapshot and releases every resource. Errors
// are logged, not returned: shutdown must release the lock regardless.
func (a *app) Close() {
	if a.vectors != nil {
		if err := a.vectors.Save(a.vectorPath); err != nil {
			a.logger.Warn("failed to save vector snapshot", slog.String("error", err.Error()))
		}
		if err := a.vectors.Close(); err != nil {
			a.logger.Warn("failed to close vector store", slog.String("error", err.Error()))
		}
	}
	if a.keywords != nil {
		if err := a.keywords.Close(); err != nil {
			a.logger.Warn("failed to close keyword index", slog.String("error", err.Error()))
		}
	}
	if a.metadata != nil {
		if err := a.metadata.Close(); err != nil {
			a.logger.Warn("failed to close metadata store", slog.String("error", err.Error()))
		}
	}
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			a.logger.Warn("failed to close embedder", slog.String("error", err.Error()))
		}
	}
	if a.lock != nil {
		if err := a.lock.Unlock(); err != nil {
			a.logger.Warn("failed to release index lock", slog.String("error", err.Error()))
		}
	}
}
