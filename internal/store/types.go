// Package store provides vector storage (in-memory and HNSW backends), the
// keyword index, and requirement metadata persistence (SQLite).
// This is the persistence layer for all analyzed data.
package store

import (
	"context"
	"fmt"
	"time"
)

// Category is the classification label assigned to a requirement.
type Category string

const (
	CategoryFunctional    Category = "functional"
	CategoryNonFunctional Category = "non-functional"
	CategoryBusinessRule  Category = "business-rule"
	CategoryOther         Category = "other"
)

// RuleKind identifies the pattern a business rule was extracted from.
type RuleKind string

const (
	// RuleKindConditional is an if/then or when/shall construction.
	RuleKindConditional RuleKind = "conditional"
	// RuleKindThreshold is a numeric comparison against a quantity.
	RuleKindThreshold RuleKind = "threshold"
	// RuleKindInterdiction is a prohibition (negation plus obligation verb).
	RuleKindInterdiction RuleKind = "interdiction"
)

// EntityType tags a detected named entity.
type EntityType string

const (
	EntityOrganization    EntityType = "organization"
	EntityQuantity        EntityType = "quantity"
	EntityDate            EntityType = "date"
	EntityConditionMarker EntityType = "condition-marker"
)

// Entity is a named entity detected in requirement text,
// with character offsets into the raw text.
type Entity struct {
	Text  string     `json:"text"`
	Type  EntityType `json:"type"`
	Start int        `json:"start"`
	End   int        `json:"end"`
}

// BusinessRule is a conditional, threshold, or prohibition statement embedded
// in requirement text. Owned exclusively by its parent requirement.
type BusinessRule struct {
	Kind       RuleKind `json:"kind"`
	Condition  string   `json:"condition"`
	Action     string   `json:"action,omitempty"` // empty for interdictions
	Confidence float64  `json:"confidence"`       // in [0,1]
	Start      int      `json:"start"`            // span offsets into the raw text
	End        int      `json:"end"`
}

// Requirement is a single requirement record. A requirement is either
// unprocessed (no rules, category, or embedding) or fully enriched (all
// three set); partial states are never persisted.
type Requirement struct {
	ID           string            `json:"id"` // source-stable identifier
	Name         string            `json:"name"`
	Text         string            `json:"text"` // raw requirement text
	SourceType   string            `json:"source_type,omitempty"`
	Priority     string            `json:"priority,omitempty"`
	Status       string            `json:"status,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	ProjectID    string            `json:"project_id,omitempty"`

	// Enrichment output. Embedding lives in the vector store, keyed by ID;
	// it is carried here only transiently during ingestion.
	Tokens     []string        `json:"tokens,omitempty"`
	Entities   []Entity        `json:"entities,omitempty"`
	Rules      []*BusinessRule `json:"rules,omitempty"`
	Category   Category        `json:"category,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Embedding  []float32       `json:"-"`

	IngestedAt time.Time `json:"ingested_at"`
	EnrichedAt time.Time `json:"enriched_at,omitempty"`
}

// Enriched reports whether the requirement has completed enrichment.
func (r *Requirement) Enriched() bool {
	return r.Category != "" && !r.EnrichedAt.IsZero()
}

// VectorResult is a single vector search result.
type VectorResult struct {
	ID       string  // Requirement ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Cosine similarity normalized to 0-1
}

// VectorStore persists embedding vectors keyed by requirement ID.
//
// All backends use cosine similarity as the canonical metric. Approximate
// backends re-score their candidate set exactly before returning, so scores
// are comparable across backends. Writes are serialized per store; reads may
// run concurrently with writes and observe either the pre- or post-write
// state for any id, never a partial vector.
type VectorStore interface {
	// Add inserts vectors with their IDs. An existing ID is replaced
	// (idempotent upsert). Fails with ErrDimensionMismatch when any vector's
	// length differs from the store dimension.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds up to k nearest neighbors to the query vector, ordered by
	// similarity score descending. Fails with ErrDimensionMismatch when the
	// query length differs from the store dimension.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID. Absent IDs are a no-op, not an error.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (for consistency checks).
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors (distinct ids).
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// VectorStoreConfig configures a vector store backend.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension D, fixed at model-load time.
	Dimensions int

	// Backend selects the implementation: "memory" or "hnsw".
	Backend string

	// M is HNSW max connections per layer (hnsw backend only).
	M int

	// EfSearch is HNSW query-time search width (hnsw backend only).
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the given dimension.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Backend:    "hnsw",
		M:          16,
		EfSearch:   64,
	}
}

// NewVectorStore constructs the backend named in cfg. Backend selection
// happens exactly once here; callers hold only the VectorStore interface.
func NewVectorStore(cfg VectorStoreConfig) (VectorStore, error) {
	switch cfg.Backend {
	case "", "hnsw":
		return NewHNSWStore(cfg)
	case "memory":
		return NewMemoryStore(cfg), nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %q", cfg.Backend)
	}
}

// ErrDimensionMismatch indicates a vector's length differs from the store
// dimension. Always surfaced, never silently coerced.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// KeywordResult is a single keyword (BM25) search result.
type KeywordResult struct {
	ID           string
	Score        float64
	MatchedTerms []string
}

// KeywordIndex provides keyword search over requirement text using BM25.
type KeywordIndex interface {
	// Index adds requirements to the index. Existing IDs are replaced.
	Index(ctx context.Context, reqs []*Requirement) error

	// Search returns requirements matching query, scored by BM25.
	Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error)

	// Delete removes requirements from the index.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of indexed documents.
	Count() (uint64, error)

	Close() error
}

// MetadataStore persists enriched requirements and their extracted rules.
type MetadataStore interface {
	// SaveRequirements upserts fully-enriched requirements (replace semantics,
	// no versioning). Rules are replaced along with their parent.
	SaveRequirements(ctx context.Context, reqs []*Requirement) error

	// GetRequirement returns one requirement with its rules, or nil if absent.
	GetRequirement(ctx context.Context, id string) (*Requirement, error)

	// GetRequirements batch-fetches requirements by ID, preserving input order.
	// Missing IDs are skipped.
	GetRequirements(ctx context.Context, ids []string) ([]*Requirement, error)

	// ListRules returns all stored business rules paired with their parent
	// requirement ID, for rule-index scans.
	ListRules(ctx context.Context) ([]*StoredRule, error)

	// DeleteRequirement removes a requirement and its rules. Absent is a no-op.
	DeleteRequirement(ctx context.Context, id string) error

	// Count returns the number of stored requirements.
	Count(ctx context.Context) (int, error)

	Close() error
}

// StoredRule pairs a business rule with its parent requirement.
type StoredRule struct {
	RequirementID string
	Rule          BusinessRule
}
