package embed

import (
	"context"
	"log/slog"
	"os"
	"strings"

	lenserr "github.com/reqlens/reqlens/internal/errors"
)

// ProviderType identifies an embedding provider.
type ProviderType string

const (
	// ProviderOllama uses a local Ollama server (default when reachable).
	ProviderOllama ProviderType = "ollama"

	// ProviderOpenAI uses an OpenAI-compatible embeddings API.
	ProviderOpenAI ProviderType = "openai"

	// ProviderStatic uses offline hash-based embeddings.
	ProviderStatic ProviderType = "static"
)

// FactoryConfig selects and configures an embedding provider.
type FactoryConfig struct {
	// Provider selects the backend; empty means auto-detect (ollama if
	// reachable, otherwise static).
	Provider ProviderType

	// Model is the embedding model identifier.
	Model string

	// Dimensions overrides auto-detection when non-zero.
	Dimensions int

	// BatchSize for batch requests.
	BatchSize int

	// OllamaHost is the Ollama API endpoint.
	OllamaHost string

	// OpenAIBaseURL is the OpenAI-compatible API endpoint.
	OpenAIBaseURL string

	// OpenAIToken authenticates OpenAI-compatible requests.
	OpenAIToken string

	// CacheSize is the LRU embedding cache capacity; negative disables
	// caching, zero uses the default.
	CacheSize int
}

// NewEmbedder creates an embedder for the configured provider.
//
// The REQLENS_EMBEDDER environment variable overrides the configured
// provider. An explicitly selected provider that is unavailable is an error,
// never a silent fallback; only auto-detection (empty provider) may fall
// back to the static embedder.
func NewEmbedder(ctx context.Context, cfg FactoryConfig) (Embedder, error) {
	provider := cfg.Provider
	explicit := provider != ""

	if env := os.Getenv("REQLENS_EMBEDDER"); env != "" {
		provider = ProviderType(strings.ToLower(env))
		explicit = true
	}

	var embedder Embedder
	var err error

	switch provider {
	case ProviderOllama:
		embedder, err = newOllama(ctx, cfg)
	case ProviderOpenAI:
		embedder, err = newOpenAI(cfg)
	case ProviderStatic:
		embedder = NewStaticEmbedder()
	case "":
		embedder, err = autoDetect(ctx, cfg)
	default:
		return nil, lenserr.New(lenserr.ErrCodeConfigInvalid,
			"unknown embedding provider: "+string(provider), nil).
			WithSuggestion("use one of: ollama, openai, static")
	}

	if err != nil {
		if explicit {
			return nil, lenserr.ModelUnavailableError("embedding provider "+string(provider)+" unavailable", err)
		}
		slog.Warn("embedding provider unavailable, falling back to static",
			"provider", string(provider), "err", err)
		embedder = NewStaticEmbedder()
	}

	if cfg.CacheSize >= 0 {
		embedder = NewCachedEmbedder(embedder, cfg.CacheSize)
	}

	return embedder, nil
}

// autoDetect prefers a reachable Ollama server and falls back to static.
func autoDetect(ctx context.Context, cfg FactoryConfig) (Embedder, error) {
	ollama, err := newOllama(ctx, cfg)
	if err == nil {
		return ollama, nil
	}

	slog.Info("ollama not reachable, using static embeddings",
		"host", hostOrDefault(cfg.OllamaHost), "err", err)
	return NewStaticEmbedder(), nil
}

func newOllama(ctx context.Context, cfg FactoryConfig) (Embedder, error) {
	ocfg := DefaultOllamaConfig()
	if cfg.OllamaHost != "" {
		ocfg.Host = cfg.OllamaHost
	}
	if cfg.Model != "" {
		ocfg.Model = cfg.Model
	}
	ocfg.Dimensions = cfg.Dimensions
	if cfg.BatchSize > 0 {
		ocfg.BatchSize = cfg.BatchSize
	}
	return NewOllamaEmbedder(ctx, ocfg)
}

func newOpenAI(cfg FactoryConfig) (Embedder, error) {
	return NewOpenAIEmbedder(OpenAIConfig{
		BaseURL:    cfg.OpenAIBaseURL,
		APIToken:   cfg.OpenAIToken,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		BatchSize:  cfg.BatchSize,
	})
}

func hostOrDefault(host string) string {
	if host == "" {
		return DefaultOllamaHost
	}
	return host
}
