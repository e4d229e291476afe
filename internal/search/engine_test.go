package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqlens/reqlens/internal/classify"
	"github.com/reqlens/reqlens/internal/embed"
	lenserr "github.com/reqlens/reqlens/internal/errors"
	"github.com/reqlens/reqlens/internal/nlp"
	"github.com/reqlens/reqlens/internal/pipeline"
	"github.com/reqlens/reqlens/internal/rules"
	"github.com/reqlens/reqlens/internal/store"
)

// newTestEngine stands up the full stack (static embeddings, memory vector
// store, in-memory bleve, sqlite) and ingests the mortgage sample set.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()

	lang, err := nlp.NewLanguage()
	require.NoError(t, err)

	embedder := embed.NewStaticEmbedder()
	classifier, err := classify.New(ctx, embedder, 0.5)
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

	p := pipeline.New(pipeline.Deps{
		Language:   lang,
		Extractor:  rules.New(lang),
		Classifier: classifier,
		Embedder:   embedder,
		Vectors:    vectors,
		Keywords:   keywords,
		Metadata:   metadata,
		Workers:    2,
	})

	_, err = p.Ingest(ctx, []*store.Requirement{
		{ID: "REQ-1", Name: "Credit approval",
			Text: "If credit score is above 650, then approve the mortgage application."},
		{ID: "REQ-2", Name: "Loan ceiling",
			Text: "The mortgage loan amount shall not exceed $500,000 for standard applicants."},
		{ID: "REQ-3", Name: "Document upload",
			Text: "The system shall allow applicants to upload supporting documents."},
		{ID: "REQ-4", Name: "Search latency",
			Text: "The system shall respond to search queries within 2 seconds."},
		{ID: "REQ-5", Name: "Status dashboard",
			Text: "Borrowers can view the current status of their application on a dashboard."},
	})
	require.NoError(t, err)

	return New(Config{
		Language:       lang,
		Embedder:       embedder,
		Vectors:        vectors,
		Keywords:       keywords,
		Metadata:       metadata,
		SemanticWeight: 0.6,
		RuleWeight:     0.4,
	})
}

func TestEngine_Search_MortgageRulesRankRuleBearingRequirementsFirst(t *testing.T) {
	e := newTestEngine(t)

	results, err := e.Search(context.Background(), "what are the mortgage rules", Options{Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// The rule-bearing mortgage requirements dominate the top results.
	topIDs := map[string]bool{}
	for _, r := range results {
		topIDs[r.Requirement.ID] = true
	}
	assert.True(t, topIDs["REQ-1"], "credit approval rule should rank in the top 3")
	assert.True(t, topIDs["REQ-2"], "loan ceiling rule should rank in the top 3")

	// Rule-intent queries carry the matched rules on each hit.
	assert.NotEmpty(t, results[0].MatchedRules)
	assert.Positive(t, results[0].RuleScore)
}

func TestEngine_Search_PlainQueryHasNoRuleAttachments(t *testing.T) {
	e := newTestEngine(t)

	results, err := e.Search(context.Background(), "upload supporting documents", Options{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "REQ-3", results[0].Requirement.ID)
	for _, r := range results {
		assert.Empty(t, r.MatchedRules)
	}
}

func TestEngine_Search_EmptyQuery(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Search(context.Background(), "   ", Options{})
	require.Error(t, err)
	assert.Equal(t, lenserr.ErrCodeQueryEmpty, lenserr.GetCode(err))
}

func TestEngine_Search_LimitRespected(t *testing.T) {
	e := newTestEngine(t)

	results, err := e.Search(context.Background(), "application", Options{Limit: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
}

func TestEngine_Search_CategoryFilter(t *testing.T) {
	e := newTestEngine(t)

	results, err := e.Search(context.Background(), "system requirements",
		Options{Limit: 10, Category: store.CategoryBusinessRule})
	require.NoError(t, err)

	for _, r := range results {
		assert.Equal(t, store.CategoryBusinessRule, r.Requirement.Category)
	}
}

func TestEngine_Search_ScoresOrderedAndBounded(t *testing.T) {
	e := newTestEngine(t)

	results, err := e.Search(context.Background(), "mortgage application", Options{Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for i, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		if i > 0 {
			prev := results[i-1]
			ordered := prev.Score > r.Score ||
				(prev.Score == r.Score && prev.Requirement.ID < r.Requirement.ID)
			assert.True(t, ordered, "results must order by score desc, id asc")
		}
	}
}

func TestEngine_Fuse_CarriesSemanticScores(t *testing.T) {
	e := newTestEngine(t)

	results := e.fuse([]*store.VectorResult{{ID: "REQ-1", Score: 0.9}}, nil, nil, false)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.9, results[0].SemanticScore, 1e-6)
	assert.InDelta(t, 0.6*0.9, results[0].Score, 1e-6)
}

func TestEngine_SearchRules_ReturnsIndividualRules(t *testing.T) {
	e := newTestEngine(t)

	results, err := e.SearchRules(context.Background(), "credit score mortgage", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "REQ-1", results[0].RequirementID)
	assert.Equal(t, store.RuleKindConditional, results[0].Rule.Kind)
	assert.Positive(t, results[0].Score)
}

func TestEngine_SearchRules_EmptyQuery(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.SearchRules(context.Background(), "", 5)
	require.Error(t, err)
}
