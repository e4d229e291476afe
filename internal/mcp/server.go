package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/reqlens/reqlens/internal/classify"
	"github.com/reqlens/reqlens/internal/config"
	"github.com/reqlens/reqlens/internal/embed"
	"github.com/reqlens/reqlens/internal/nlp"
	"github.com/reqlens/reqlens/internal/pipeline"
	"github.com/reqlens/reqlens/internal/rules"
	"github.com/reqlens/reqlens/internal/search"
	"github.com/reqlens/reqlens/internal/source"
	"github.com/reqlens/reqlens/internal/store"
	"github.com/reqlens/reqlens/pkg/version"
)

const maxLimit = 50

// Server bridges AI clients with the requirement analysis engine.
type Server struct {
	mcp        *mcp.Server
	engine     *search.Engine
	pipeline   *pipeline.Pipeline
	lang       *nlp.Language
	extractor  *rules.Extractor
	classifier *classify.Classifier
	embedder   embed.Embedder
	vectors    store.VectorStore
	metadata   store.MetadataStore
	config     *config.Config
	logger     *slog.Logger
}

// Deps wires a Server. All fields are required except Config.
type Deps struct {
	Engine     *search.Engine
	Pipeline   *pipeline.Pipeline
	Language   *nlp.Language
	Extractor  *rules.Extractor
	Classifier *classify.Classifier
	Embedder   embed.Embedder
	Vectors    store.VectorStore
	Metadata   store.MetadataStore
	Config     *config.Config
}

// NewServer creates an MCP server and registers the tool set.
func NewServer(deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("search engine is required")
	}
	if deps.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if deps.Metadata == nil {
		return nil, errors.New("metadata store is required")
	}

	s := &Server{
		engine:     deps.Engine,
		pipeline:   deps.Pipeline,
		lang:       deps.Language,
		extractor:  deps.Extractor,
		classifier: deps.Classifier,
		embedder:   deps.Embedder,
		vectors:    deps.Vectors,
		metadata:   deps.Metadata,
		config:     deps.Config,
		logger:     slog.Default().With("component", "mcp"),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "reqlens",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_requirements",
		Description: "Search the indexed requirement set by meaning and keywords. Queries mentioning rules, conditions, or policies automatically surface the matching business rules on each result.",
	}, s.mcpSearchRequirementsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_business_rules",
		Description: "Search extracted business rules (conditionals, thresholds, prohibitions) directly. Returns individual rules with their parent requirement, not whole requirements.",
	}, s.mcpSearchBusinessRulesHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "extract_entities",
		Description: "Analyze a piece of requirement text without indexing it: detect entities (quantities, dates, organizations, condition markers) and extract business rules.",
	}, s.mcpExtractEntitiesHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "classify_text",
		Description: "Classify requirement text as functional, non-functional, or business-rule, with a confidence score.",
	}, s.mcpClassifyTextHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ingest_file",
		Description: "Ingest a requirements file (.csv, .json, .txt, .md) into the index: parse, enrich, and make it searchable.",
	}, s.mcpIngestFileHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report index size, stored rule count, and the active embedding model. Use before searching to verify the index is populated.",
	}, s.mcpIndexStatusHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 6))
}

// clampLimit bounds a requested limit to [1, maxLimit], with a default.
func clampLimit(requested int) int {
	if requested <= 0 {
		return search.DefaultLimit
	}
	if requested > maxLimit {
		return maxLimit
	}
	return requested
}

func (s *Server) mcpSearchRequirementsHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchRequirementsInput) (
	*mcp.CallToolResult,
	SearchRequirementsOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchRequirementsOutput{}, NewInvalidParamsError("query parameter is required")
	}

	opts := search.Options{
		Limit:    clampLimit(input.Limit),
		Category: store.Category(input.Category),
	}
	if s.config != nil {
		opts.RuleThreshold = s.config.Analysis.RuleConfidenceThreshold
	}

	results, err := s.engine.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchRequirementsOutput{}, MapError(err)
	}

	output := SearchRequirementsOutput{
		Results: make([]RequirementResult, 0, len(results)),
	}
	for _, r := range results {
		output.Results = append(output.Results, toRequirementResult(r))
	}

	s.logger.Info("search_requirements",
		slog.String("query", input.Query),
		slog.Int("results", len(output.Results)))
	return nil, output, nil
}

func (s *Server) mcpSearchBusinessRulesHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchBusinessRulesInput) (
	*mcp.CallToolResult,
	SearchBusinessRulesOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchBusinessRulesOutput{}, NewInvalidParamsError("query parameter is required")
	}

	results, err := s.engine.SearchRules(ctx, input.Query, clampLimit(input.Limit))
	if err != nil {
		return nil, SearchBusinessRulesOutput{}, MapError(err)
	}

	output := SearchBusinessRulesOutput{
		Results: make([]RuleMatchOutput, 0, len(results)),
	}
	for _, r := range results {
		output.Results = append(output.Results, RuleMatchOutput{
			RequirementID: r.RequirementID,
			Rule:          toRuleOutput(&r.Rule),
			Score:         r.Score,
		})
	}
	return nil, output, nil
}

func (s *Server) mcpExtractEntitiesHandler(_ context.Context, _ *mcp.CallToolRequest, input ExtractEntitiesInput) (
	*mcp.CallToolResult,
	ExtractEntitiesOutput,
	error,
) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, ExtractEntitiesOutput{}, NewInvalidParamsError("text parameter is required")
	}

	doc := nlp.Normalize(s.lang, input.Text)
	extracted := s.extractor.Extract(doc)

	output := ExtractEntitiesOutput{
		Entities: make([]EntityOutput, 0, len(doc.Entities)),
		Rules:    make([]RuleOutput, 0, len(extracted)),
	}
	for _, e := range doc.Entities {
		output.Entities = append(output.Entities, EntityOutput{
			Text:  e.Text,
			Type:  string(e.Type),
			Start: e.Start,
			End:   e.End,
		})
	}
	for _, r := range extracted {
		output.Rules = append(output.Rules, toRuleOutput(r))
	}
	return nil, output, nil
}

func (s *Server) mcpClassifyTextHandler(ctx context.Context, _ *mcp.CallToolRequest, input ClassifyTextInput) (
	*mcp.CallToolResult,
	ClassifyTextOutput,
	error,
) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, ClassifyTextOutput{}, NewInvalidParamsError("text parameter is required")
	}

	doc := nlp.Normalize(s.lang, input.Text)
	extracted := s.extractor.Extract(doc)

	result, err := s.classifier.Classify(ctx, input.Text, extracted)
	if err != nil {
		return nil, ClassifyTextOutput{}, MapError(err)
	}

	output := ClassifyTextOutput{
		Category:   string(result.Category),
		Confidence: result.Confidence,
	}
	for _, r := range extracted {
		output.Rules = append(output.Rules, toRuleOutput(r))
	}
	return nil, output, nil
}

func (s *Server) mcpIngestFileHandler(ctx context.Context, _ *mcp.CallToolRequest, input IngestFileInput) (
	*mcp.CallToolResult,
	IngestFileOutput,
	error,
) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, IngestFileOutput{}, NewInvalidParamsError("path parameter is required")
	}

	ingestCfg := config.IngestConfig{SkipEmpty: true, AutoGenerateIDs: true}
	if s.config != nil {
		ingestCfg = s.config.Ingest
	}

	read, err := source.ReadFile(input.Path, ingestCfg)
	if err != nil {
		return nil, IngestFileOutput{}, MapError(err)
	}

	stats, err := s.pipeline.Ingest(ctx, read.Requirements)
	if err != nil {
		return nil, IngestFileOutput{}, MapError(err)
	}

	return nil, IngestFileOutput{
		RunID:   stats.RunID,
		Total:   read.Skipped + stats.Total,
		Indexed: stats.Indexed,
		Skipped: read.Skipped + stats.Skipped,
	}, nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	reqCount, err := s.metadata.Count(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}
	storedRules, err := s.metadata.ListRules(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}

	output := IndexStatusOutput{
		Requirements: reqCount,
		Rules:        len(storedRules),
		Version:      version.Version,
	}
	if s.vectors != nil {
		output.Vectors = s.vectors.Count()
	}
	if s.embedder != nil {
		quality := "high"
		if s.embedder.ModelName() == "static" {
			quality = "low"
		}
		output.Embeddings = EmbeddingInfo{
			Model:      s.embedder.ModelName(),
			Dimensions: s.embedder.Dimensions(),
			Available:  s.embedder.Available(ctx),
			Quality:    quality,
		}
	}
	return nil, output, nil
}

// Serve runs the server on the given transport until the context ends.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "", "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func toRequirementResult(r *search.Result) RequirementResult {
	out := RequirementResult{
		ID:            r.Requirement.ID,
		Name:          r.Requirement.Name,
		Text:          r.Requirement.Text,
		Category:      string(r.Requirement.Category),
		Score:         r.Score,
		SemanticScore: r.SemanticScore,
		KeywordScore:  r.KeywordScore,
		RuleScore:     r.RuleScore,
		MatchedTerms:  r.MatchedTerms,
	}
	for i := range r.MatchedRules {
		out.MatchedRules = append(out.MatchedRules, toRuleOutput(&r.MatchedRules[i]))
	}
	return out
}

func toRuleOutput(r *store.BusinessRule) RuleOutput {
	return RuleOutput{
		Kind:       string(r.Kind),
		Condition:  r.Condition,
		Action:     r.Action,
		Confidence: r.Confidence,
	}
}
