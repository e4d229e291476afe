// Package pipeline enriches raw requirements (normalize, extract rules,
// classify, embed) and persists them across the metadata, vector, and
// keyword stores.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/reqlens/reqlens/internal/classify"
	"github.com/reqlens/reqlens/internal/embed"
	lenserr "github.com/reqlens/reqlens/internal/errors"
	"github.com/reqlens/reqlens/internal/nlp"
	"github.com/reqlens/reqlens/internal/rules"
	"github.com/reqlens/reqlens/internal/store"
)

// Deps carries everything the pipeline needs. All fields are required.
type Deps struct {
	Language   *nlp.Language
	Extractor  *rules.Extractor
	Classifier *classify.Classifier
	Embedder   embed.Embedder
	Vectors    store.VectorStore
	Keywords   store.KeywordIndex
	Metadata   store.MetadataStore

	// Workers bounds enrichment concurrency; <=0 means runtime.NumCPU
	// via errgroup's default of unlimited, so callers should set it.
	Workers int
}

// Stats summarizes one ingestion run.
type Stats struct {
	RunID    string        `json:"run_id"`
	Total    int           `json:"total"`
	Indexed  int           `json:"indexed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Pipeline runs enrichment with bounded concurrency. A requirement is
// persisted only when every enrichment stage succeeded for it; partial
// results are skipped with a warning, never stored.
type Pipeline struct {
	deps   Deps
	logger *slog.Logger
}

// New builds a pipeline.
func New(deps Deps) *Pipeline {
	if deps.Workers <= 0 {
		deps.Workers = 4
	}
	return &Pipeline{
		deps:   deps,
		logger: slog.Default().With("component", "pipeline"),
	}
}

// Ingest enriches and persists the given requirements. Each record is
// persisted as soon as its enrichment finishes, so cancelling mid-run keeps
// every record that had already completed indexed and searchable. The
// returned stats include records skipped by enrichment failures.
func (p *Pipeline) Ingest(ctx context.Context, reqs []*store.Requirement) (*Stats, error) {
	start := time.Now()
	stats := &Stats{RunID: uuid.NewString(), Total: len(reqs)}

	if len(reqs) == 0 {
		stats.Duration = time.Since(start)
		return stats, nil
	}

	p.logger.Info("ingestion started", "run_id", stats.RunID, "records", len(reqs))

	var indexed, skipped int64
	var persistMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.deps.Workers)

	for _, req := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := p.enrich(gctx, req); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.logger.Warn("skipping requirement, enrichment failed",
					"id", req.ID, "err", err)
				atomic.AddInt64(&skipped, 1)
				return nil
			}

			// Serialized so the three stores see records one at a time.
			persistMu.Lock()
			defer persistMu.Unlock()
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := p.persist(gctx, []*store.Requirement{req}); err != nil {
				return err
			}
			atomic.AddInt64(&indexed, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Indexed = int(indexed)
	stats.Skipped = int(skipped)
	stats.Duration = time.Since(start)

	p.logger.Info("ingestion finished",
		"run_id", stats.RunID,
		"indexed", stats.Indexed,
		"skipped", stats.Skipped,
		"duration", stats.Duration.String())
	return stats, nil
}

// enrich runs all four stages on one requirement, in place.
func (p *Pipeline) enrich(ctx context.Context, req *store.Requirement) error {
	doc := nlp.Normalize(p.deps.Language, req.Text)
	req.Tokens = doc.SimilarityTokens(p.deps.Language)
	req.Entities = doc.Entities
	req.Rules = p.deps.Extractor.Extract(doc)

	result, err := p.deps.Classifier.Classify(ctx, req.Text, req.Rules)
	if err != nil {
		return err
	}
	req.Category = result.Category
	req.Confidence = result.Confidence

	embedding, err := p.deps.Embedder.Embed(ctx, req.Text)
	if err != nil {
		return lenserr.New(lenserr.ErrCodeEmbeddingFailed, "failed to embed "+req.ID, err)
	}
	req.Embedding = embedding
	req.EnrichedAt = time.Now().UTC()
	return nil
}

// persist writes enriched requirements to all three stores. The metadata
// store is written first so a vector or keyword failure leaves at worst an
// unsearchable record, never a dangling search hit.
func (p *Pipeline) persist(ctx context.Context, reqs []*store.Requirement) error {
	if len(reqs) == 0 {
		return nil
	}

	if err := p.deps.Metadata.SaveRequirements(ctx, reqs); err != nil {
		return err
	}

	ids := make([]string, len(reqs))
	vectors := make([][]float32, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
		vectors[i] = r.Embedding
	}
	if err := p.deps.Vectors.Add(ctx, ids, vectors); err != nil {
		return err
	}

	if err := p.deps.Keywords.Index(ctx, reqs); err != nil {
		return err
	}

	// Embeddings are not persisted on the requirement itself.
	for _, r := range reqs {
		r.Embedding = nil
	}
	return nil
}

// Delete removes a requirement from every store.
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	if err := p.deps.Vectors.Delete(ctx, []string{id}); err != nil {
		return err
	}
	if err := p.deps.Keywords.Delete(ctx, []string{id}); err != nil {
		return err
	}
	return p.deps.Metadata.DeleteRequirement(ctx, id)
}
