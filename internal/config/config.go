// Package config loads and validates reqlens configuration.
//
// Precedence (lowest to highest): built-in defaults, config file
// (.reqlens.yaml in the working directory), environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete reqlens configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Source     SourceConfig     `yaml:"source" json:"source"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Analysis   AnalysisConfig   `yaml:"analysis" json:"analysis"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// SourceConfig configures the remote requirements source.
type SourceConfig struct {
	// BaseURL is the requirements-management REST endpoint.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// APIToken authenticates page fetches. Prefer REQLENS_API_TOKEN over
	// putting the token in the config file.
	APIToken string `yaml:"api_token" json:"api_token"`

	// ProjectID scopes fetches to one project.
	ProjectID int `yaml:"project_id" json:"project_id"`

	// PageSize is the number of records requested per page.
	PageSize int `yaml:"page_size" json:"page_size"`

	// MaxRetries is the per-page retry limit for transient fetch failures.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// RetryBaseDelay is the initial backoff delay (e.g. "1s").
	RetryBaseDelay string `yaml:"retry_base_delay" json:"retry_base_delay"`

	// RetryMaxDelay caps the backoff delay (e.g. "16s").
	RetryMaxDelay string `yaml:"retry_max_delay" json:"retry_max_delay"`
}

// IngestConfig configures file ingestion and the enrichment pipeline.
type IngestConfig struct {
	// Workers is the bounded concurrency for record enrichment.
	// Defaults to the number of CPUs.
	Workers int `yaml:"workers" json:"workers"`

	// Mapping maps record fields to column names in table-like sources.
	Mapping FieldMapping `yaml:"mapping" json:"mapping"`

	// SkipEmpty skips rows whose text field is empty.
	SkipEmpty bool `yaml:"skip_empty" json:"skip_empty"`

	// AutoGenerateIDs generates REQ-%04d ids for rows without one.
	AutoGenerateIDs bool `yaml:"auto_generate_ids" json:"auto_generate_ids"`

	// DefaultType is the requirement type used when the source has none.
	DefaultType string `yaml:"default_type" json:"default_type"`
}

// FieldMapping names the columns holding each requirement field.
type FieldMapping struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Type        string `yaml:"type" json:"type"`
	Priority    string `yaml:"priority" json:"priority"`
	Status      string `yaml:"status" json:"status"`
	Tags        string `yaml:"tags" json:"tags"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the backend: "static", "ollama", or "openai".
	// Empty triggers auto-detection: Ollama if reachable, else static.
	Provider string `yaml:"provider" json:"provider"`

	// Model is the embedding model name for remote providers.
	Model string `yaml:"model" json:"model"`

	// Dimensions is the embedding dimension D. 0 auto-detects from the provider.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// BatchSize is the number of texts embedded per request.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// OllamaHost is the Ollama API endpoint (default http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// OpenAIBaseURL is the OpenAI-compatible endpoint for the "openai" provider.
	OpenAIBaseURL string `yaml:"openai_base_url" json:"openai_base_url"`

	// CacheSize is the LRU embedding cache capacity.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// StoreConfig configures persistence and the vector backend.
type StoreConfig struct {
	// DataDir is the index data directory (default ~/.reqlens/<project>).
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// VectorBackend selects the vector store: "memory" (exact brute force)
	// or "hnsw" (indexed approximate with exact re-scoring).
	VectorBackend string `yaml:"vector_backend" json:"vector_backend"`

	// HNSW parameters, used when VectorBackend is "hnsw".
	HNSWM              int `yaml:"hnsw_m" json:"hnsw_m"`
	HNSWEfSearch       int `yaml:"hnsw_ef_search" json:"hnsw_ef_search"`
	HNSWEfConstruction int `yaml:"hnsw_ef_construction" json:"hnsw_ef_construction"`
}

// AnalysisConfig configures rule extraction and classification.
type AnalysisConfig struct {
	// RuleConfidenceThreshold is the minimum rule confidence that makes the
	// classifier label a requirement "business-rule".
	RuleConfidenceThreshold float64 `yaml:"rule_confidence_threshold" json:"rule_confidence_threshold"`
}

// SearchConfig configures query dispatch and ranking.
type SearchConfig struct {
	// SemanticWeight is the weight of semantic similarity in the unified score.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// RuleWeight is the weight of rule-match confidence in the unified score.
	// Must sum to 1.0 with SemanticWeight.
	RuleWeight float64 `yaml:"rule_weight" json:"rule_weight"`

	// MaxResults is the default top-k.
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Source: SourceConfig{
			PageSize:       50,
			MaxRetries:     3,
			RetryBaseDelay: "1s",
			RetryMaxDelay:  "16s",
		},
		Ingest: IngestConfig{
			Workers: runtime.NumCPU(),
			Mapping: FieldMapping{
				ID:          "id",
				Name:        "name",
				Description: "description",
				Type:        "type",
				Priority:    "priority",
				Status:      "status",
				Tags:        "tags",
			},
			SkipEmpty:       true,
			AutoGenerateIDs: true,
			DefaultType:     "functional",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // Empty triggers auto-detection: Ollama -> static
			Model:      "nomic-embed-text",
			Dimensions: 0, // Auto-detect from embedder
			BatchSize:  32,
			CacheSize:  1000,
		},
		Store: StoreConfig{
			DataDir:            "",
			VectorBackend:      "hnsw",
			HNSWM:              16,
			HNSWEfSearch:       64,
			HNSWEfConstruction: 128,
		},
		Analysis: AnalysisConfig{
			RuleConfidenceThreshold: 0.5,
		},
		Search: SearchConfig{
			SemanticWeight: 0.6,
			RuleWeight:     0.4,
			MaxResults:     10,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// Load reads configuration from dir, applying file and env overrides on top
// of defaults, and validates the result.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .reqlens.yaml or .reqlens.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".reqlens.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".reqlens.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Source.BaseURL != "" {
		c.Source.BaseURL = other.Source.BaseURL
	}
	if other.Source.APIToken != "" {
		c.Source.APIToken = other.Source.APIToken
	}
	if other.Source.ProjectID != 0 {
		c.Source.ProjectID = other.Source.ProjectID
	}
	if other.Source.PageSize != 0 {
		c.Source.PageSize = other.Source.PageSize
	}
	if other.Source.MaxRetries != 0 {
		c.Source.MaxRetries = other.Source.MaxRetries
	}
	if other.Source.RetryBaseDelay != "" {
		c.Source.RetryBaseDelay = other.Source.RetryBaseDelay
	}
	if other.Source.RetryMaxDelay != "" {
		c.Source.RetryMaxDelay = other.Source.RetryMaxDelay
	}

	if other.Ingest.Workers != 0 {
		c.Ingest.Workers = other.Ingest.Workers
	}
	if other.Ingest.Mapping.ID != "" {
		c.Ingest.Mapping.ID = other.Ingest.Mapping.ID
	}
	if other.Ingest.Mapping.Name != "" {
		c.Ingest.Mapping.Name = other.Ingest.Mapping.Name
	}
	if other.Ingest.Mapping.Description != "" {
		c.Ingest.Mapping.Description = other.Ingest.Mapping.Description
	}
	if other.Ingest.Mapping.Type != "" {
		c.Ingest.Mapping.Type = other.Ingest.Mapping.Type
	}
	if other.Ingest.Mapping.Priority != "" {
		c.Ingest.Mapping.Priority = other.Ingest.Mapping.Priority
	}
	if other.Ingest.Mapping.Status != "" {
		c.Ingest.Mapping.Status = other.Ingest.Mapping.Status
	}
	if other.Ingest.Mapping.Tags != "" {
		c.Ingest.Mapping.Tags = other.Ingest.Mapping.Tags
	}
	if other.Ingest.DefaultType != "" {
		c.Ingest.DefaultType = other.Ingest.DefaultType
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.OpenAIBaseURL != "" {
		c.Embeddings.OpenAIBaseURL = other.Embeddings.OpenAIBaseURL
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Store.DataDir != "" {
		c.Store.DataDir = other.Store.DataDir
	}
	if other.Store.VectorBackend != "" {
		c.Store.VectorBackend = other.Store.VectorBackend
	}
	if other.Store.HNSWM != 0 {
		c.Store.HNSWM = other.Store.HNSWM
	}
	if other.Store.HNSWEfSearch != 0 {
		c.Store.HNSWEfSearch = other.Store.HNSWEfSearch
	}
	if other.Store.HNSWEfConstruction != 0 {
		c.Store.HNSWEfConstruction = other.Store.HNSWEfConstruction
	}

	if other.Analysis.RuleConfidenceThreshold != 0 {
		c.Analysis.RuleConfidenceThreshold = other.Analysis.RuleConfidenceThreshold
	}

	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.RuleWeight != 0 {
		c.Search.RuleWeight = other.Search.RuleWeight
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies environment variable overrides (highest precedence).
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REQLENS_BASE_URL"); v != "" {
		c.Source.BaseURL = v
	}
	if v := os.Getenv("REQLENS_API_TOKEN"); v != "" {
		c.Source.APIToken = v
	}
	if v := os.Getenv("REQLENS_PROJECT_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil && id > 0 {
			c.Source.ProjectID = id
		}
	}
	if v := os.Getenv("REQLENS_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("REQLENS_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("REQLENS_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("REQLENS_VECTOR_BACKEND"); v != "" {
		c.Store.VectorBackend = v
	}
	if v := os.Getenv("REQLENS_SEMANTIC_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("REQLENS_RULE_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.RuleWeight = w
		}
	}
	if v := os.Getenv("REQLENS_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate checks the final configuration for consistency.
func (c *Config) Validate() error {
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}
	if c.Search.RuleWeight < 0 || c.Search.RuleWeight > 1 {
		return fmt.Errorf("rule_weight must be between 0 and 1, got %f", c.Search.RuleWeight)
	}
	sum := c.Search.SemanticWeight + c.Search.RuleWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("semantic_weight + rule_weight must equal 1.0, got %.2f", sum)
	}

	if c.Search.MaxResults < 0 {
		return fmt.Errorf("max_results must be non-negative, got %d", c.Search.MaxResults)
	}

	if c.Analysis.RuleConfidenceThreshold < 0 || c.Analysis.RuleConfidenceThreshold > 1 {
		return fmt.Errorf("rule_confidence_threshold must be between 0 and 1, got %f", c.Analysis.RuleConfidenceThreshold)
	}

	if c.Ingest.Workers < 0 {
		return fmt.Errorf("ingest.workers must be non-negative, got %d", c.Ingest.Workers)
	}

	if c.Embeddings.Provider != "" { // Empty string triggers auto-detection
		validProviders := map[string]bool{"static": true, "ollama": true, "openai": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'static', 'ollama', 'openai', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}

	validBackends := map[string]bool{"memory": true, "hnsw": true}
	if !validBackends[strings.ToLower(c.Store.VectorBackend)] {
		return fmt.Errorf("store.vector_backend must be 'memory' or 'hnsw', got %s", c.Store.VectorBackend)
	}

	validTransports := map[string]bool{"stdio": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// DataDir returns the configured data directory, defaulting to ~/.reqlens/index.
func (c *Config) DataDir() string {
	if c.Store.DataDir != "" {
		return c.Store.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".reqlens", "index")
	}
	return filepath.Join(home, ".reqlens", "index")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}
