package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqlens/reqlens/internal/classify"
	"github.com/reqlens/reqlens/internal/config"
	"github.com/reqlens/reqlens/internal/embed"
	lenserr "github.com/reqlens/reqlens/internal/errors"
	"github.com/reqlens/reqlens/internal/nlp"
	"github.com/reqlens/reqlens/internal/pipeline"
	"github.com/reqlens/reqlens/internal/rules"
	"github.com/reqlens/reqlens/internal/search"
	"github.com/reqlens/reqlens/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()

	lang, err := nlp.NewLanguage()
	require.NoError(t, err)

	embedder := embed.NewStaticEmbedder()
	classifier, err := classify.New(ctx, embedder, 0.5)
	require.NoError(t, err)

	vcfg := store.DefaultVectorStoreConfig(embedder.Dimensions())
	vcfg.Backend = "memory"
	vectors := store.NewMemoryStore(vcfg)

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

	extractor := rules.New(lang)
	p := pipeline.New(pipeline.Deps{
		Language:   lang,
		Extractor:  extractor,
		Classifier: classifier,
		Embedder:   embedder,
		Vectors:    vectors,
		Keywords:   keywords,
		Metadata:   metadata,
		Workers:    2,
	})

	engine := search.New(search.Config{
		Language:       lang,
		Embedder:       embedder,
		Vectors:        vectors,
		Keywords:       keywords,
		Metadata:       metadata,
		SemanticWeight: 0.6,
		RuleWeight:     0.4,
	})

	cfg := config.NewConfig()
	srv, err := NewServer(Deps{
		Engine:     engine,
		Pipeline:   p,
		Language:   lang,
		Extractor:  extractor,
		Classifier: classifier,
		Embedder:   embedder,
		Vectors:    vectors,
		Metadata:   metadata,
		Config:     cfg,
	})
	require.NoError(t, err)
	return srv
}

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reqs.csv")
	content := "id,name,description\n" +
		"REQ-1,Credit approval,\"If credit score is above 650, then approve the mortgage application.\"\n" +
		"REQ-2,Upload,The system shall allow applicants to upload documents.\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestServer_IngestFileThenSearch(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, ingested, err := srv.mcpIngestFileHandler(ctx, nil, IngestFileInput{Path: writeSample(t)})
	require.NoError(t, err)
	assert.Equal(t, 2, ingested.Indexed)
	assert.Zero(t, ingested.Skipped)
	assert.NotEmpty(t, ingested.RunID)

	_, searched, err := srv.mcpSearchRequirementsHandler(ctx, nil,
		SearchRequirementsInput{Query: "mortgage credit rules"})
	require.NoError(t, err)
	require.NotEmpty(t, searched.Results)
	assert.Equal(t, "REQ-1", searched.Results[0].ID)
	assert.NotEmpty(t, searched.Results[0].MatchedRules)
}

func TestServer_SearchBusinessRules(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, _, err := srv.mcpIngestFileHandler(ctx, nil, IngestFileInput{Path: writeSample(t)})
	require.NoError(t, err)

	_, out, err := srv.mcpSearchBusinessRulesHandler(ctx, nil,
		SearchBusinessRulesInput{Query: "credit score approval"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "REQ-1", out.Results[0].RequirementID)
	assert.Equal(t, "conditional", out.Results[0].Rule.Kind)
}

func TestServer_ExtractEntities(t *testing.T) {
	srv := newTestServer(t)

	_, out, err := srv.mcpExtractEntitiesHandler(context.Background(), nil,
		ExtractEntitiesInput{Text: "If the loan exceeds $500,000 before 2025-01-01, then require manual review."})
	require.NoError(t, err)

	types := map[string]bool{}
	for _, e := range out.Entities {
		types[e.Type] = true
	}
	assert.True(t, types["quantity"], "should detect the dollar amount")
	assert.True(t, types["date"], "should detect the ISO date")
	assert.True(t, types["condition-marker"], "should detect the if marker")
	require.NotEmpty(t, out.Rules)
}

func TestServer_ClassifyText(t *testing.T) {
	srv := newTestServer(t)

	_, out, err := srv.mcpClassifyTextHandler(context.Background(), nil,
		ClassifyTextInput{Text: "If credit score is above 650, then approve the application."})
	require.NoError(t, err)
	assert.Equal(t, "business-rule", out.Category)
	assert.NotEmpty(t, out.Rules)
}

func TestServer_IndexStatus(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, _, err := srv.mcpIngestFileHandler(ctx, nil, IngestFileInput{Path: writeSample(t)})
	require.NoError(t, err)

	_, status, err := srv.mcpIndexStatusHandler(ctx, nil, IndexStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, status.Requirements)
	assert.Equal(t, 2, status.Vectors)
	assert.Positive(t, status.Rules)
	assert.Equal(t, "static", status.Embeddings.Model)
	assert.Equal(t, "low", status.Embeddings.Quality)
}

func TestServer_InvalidParams(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, _, err := srv.mcpSearchRequirementsHandler(ctx, nil, SearchRequirementsInput{Query: " "})
	assertMCPCode(t, err, ErrCodeInvalidParams)

	_, _, err = srv.mcpClassifyTextHandler(ctx, nil, ClassifyTextInput{})
	assertMCPCode(t, err, ErrCodeInvalidParams)

	_, _, err = srv.mcpIngestFileHandler(ctx, nil, IngestFileInput{Path: "/does/not/exist.csv"})
	assertMCPCode(t, err, ErrCodeFileNotFound)
}

func TestMapError_Codes(t *testing.T) {
	assert.Nil(t, MapError(nil))

	err := MapError(lenserr.New(lenserr.ErrCodeQueryEmpty, "empty", nil))
	assertMCPCode(t, err, ErrCodeInvalidParams)

	err = MapError(lenserr.New(lenserr.ErrCodeSourceUnavailable, "down", nil))
	assertMCPCode(t, err, ErrCodeSourceFailed)

	err = MapError(assert.AnError)
	assertMCPCode(t, err, ErrCodeInternalError)
}

func assertMCPCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}
