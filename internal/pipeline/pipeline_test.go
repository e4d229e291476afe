package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqlens/reqlens/internal/classify"
	"github.com/reqlens/reqlens/internal/embed"
	"github.com/reqlens/reqlens/internal/nlp"
	"github.com/reqlens/reqlens/internal/rules"
	"github.com/reqlens/reqlens/internal/store"
)

type testEnv struct {
	pipeline *Pipeline
	vectors  store.VectorStore
	keywords store.KeywordIndex
	metadata store.MetadataStore
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, nil, 2)
}

// newTestEnvWith lets a test wrap the pipeline's embedder and pin the worker
// count. The classifier always uses the unwrapped embedder.
func newTestEnvWith(t *testing.T, wrap func(embed.Embedder) embed.Embedder, workers int) *testEnv {
	t.Helper()

	lang, err := nlp.NewLanguage()
	require.NoError(t, err)

	embedder := embed.NewStaticEmbedder()
	classifier, err := classify.New(context.Background(), embedder, 0.5)
	require.NoError(t, err)

	cfg := store.DefaultVectorStoreConfig(embedder.Dimensions())
	cfg.Backend = "memory"
	vectors := store.NewMemoryStore(cfg)

	keywords, err := store.NewBleveKeywordIndex("")
	require.NoError(t, err)

	metadata, err := store.NewSQLiteMetadataStore(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = vectors.Close()
		_ = keywords.Close()
		_ = metadata.Close()
		_ = embedder.Close()
	})

	pipelineEmbedder := embed.Embedder(embedder)
	if wrap != nil {
		pipelineEmbedder = wrap(embedder)
	}

	return &testEnv{
		pipeline: New(Deps{
			Language:   lang,
			Extractor:  rules.New(lang),
			Classifier: classifier,
			Embedder:   pipelineEmbedder,
			Vectors:    vectors,
			Keywords:   keywords,
			Metadata:   metadata,
			Workers:    workers,
		}),
		vectors:  vectors,
		keywords: keywords,
		metadata: metadata,
	}
}

func sampleRequirements() []*store.Requirement {
	now := time.Now().UTC()
	return []*store.Requirement{
		{ID: "REQ-1", Name: "Credit approval",
			Text:       "If credit score is above 650, then approve the mortgage application.",
			IngestedAt: now},
		{ID: "REQ-2", Name: "Document upload",
			Text:       "The system shall allow applicants to upload supporting documents.",
			IngestedAt: now},
		{ID: "REQ-3", Name: "Search latency",
			Text:       "The system shall respond to search queries within 2 seconds.",
			IngestedAt: now},
	}
}

func TestPipeline_Ingest_EnrichesAndPersists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stats, err := env.pipeline.Ingest(ctx, sampleRequirements())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Indexed)
	assert.Zero(t, stats.Skipped)
	assert.NotEmpty(t, stats.RunID)

	// All three stores agree on the record count.
	assert.Equal(t, 3, env.vectors.Count())
	count, err := env.keywords.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
	metaCount, err := env.metadata.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, metaCount)

	// The rule-bearing requirement came out enriched end to end.
	got, err := env.metadata.GetRequirement(ctx, "REQ-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, store.CategoryBusinessRule, got.Category)
	require.NotEmpty(t, got.Rules)
	assert.Equal(t, store.RuleKindConditional, got.Rules[0].Kind)
	assert.NotEmpty(t, got.Tokens)
	assert.NotEmpty(t, got.Entities)
	assert.False(t, got.EnrichedAt.IsZero())
}

func TestPipeline_Ingest_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.pipeline.Ingest(ctx, sampleRequirements())
	require.NoError(t, err)
	_, err = env.pipeline.Ingest(ctx, sampleRequirements())
	require.NoError(t, err)

	// Re-ingesting the same ids replaces, never duplicates.
	assert.Equal(t, 3, env.vectors.Count())
	metaCount, err := env.metadata.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, metaCount)
}

func TestPipeline_Ingest_EmptyInput(t *testing.T) {
	env := newTestEnv(t)

	stats, err := env.pipeline.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.Indexed)
}

func TestPipeline_Ingest_CancelledContext(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.pipeline.Ingest(ctx, sampleRequirements())
	require.ErrorIs(t, err, context.Canceled)
}

// cancelAfterEmbedder embeds n texts, then cancels the run and fails.
type cancelAfterEmbedder struct {
	embed.Embedder
	remaining int
	cancel    context.CancelFunc
}

func (c *cancelAfterEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.remaining <= 0 {
		c.cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c.remaining--
	return c.Embedder.Embed(ctx, text)
}

func TestPipeline_Ingest_CancelMidRunKeepsCompletedRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnvWith(t, func(inner embed.Embedder) embed.Embedder {
		return &cancelAfterEmbedder{Embedder: inner, remaining: 2, cancel: cancel}
	}, 1)

	_, err := env.pipeline.Ingest(ctx, sampleRequirements())
	require.ErrorIs(t, err, context.Canceled)

	// The two records that finished before the cancellation stay indexed
	// in all three stores.
	metaCount, err := env.metadata.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, metaCount)
	assert.Equal(t, 2, env.vectors.Count())
	kwCount, err := env.keywords.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), kwCount)
}

func TestPipeline_Delete_RemovesFromAllStores(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.pipeline.Ingest(ctx, sampleRequirements())
	require.NoError(t, err)

	require.NoError(t, env.pipeline.Delete(ctx, "REQ-2"))

	assert.False(t, env.vectors.Contains("REQ-2"))
	got, err := env.metadata.GetRequirement(ctx, "REQ-2")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again is a no-op.
	require.NoError(t, env.pipeline.Delete(ctx, "REQ-2"))
}

func TestPipeline_Ingest_StripsEmbeddingAfterPersist(t *testing.T) {
	env := newTestEnv(t)

	reqs := sampleRequirements()
	_, err := env.pipeline.Ingest(context.Background(), reqs)
	require.NoError(t, err)

	for _, r := range reqs {
		assert.Nil(t, r.Embedding, "embedding should live only in the vector store")
	}
}
