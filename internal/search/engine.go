package search

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/reqlens/reqlens/internal/embed"
	lenserr "github.com/reqlens/reqlens/internal/errors"
	"github.com/reqlens/reqlens/internal/nlp"
	"github.com/reqlens/reqlens/internal/rules"
	"github.com/reqlens/reqlens/internal/store"
)

// overFetchFactor widens each retrieval channel so fusion and category
// filtering still fill the requested limit.
const overFetchFactor = 3

// ruleIntentWords mark a query as asking about business rules.
var ruleIntentWords = map[string]struct{}{
	"rule": {}, "rules": {}, "condition": {}, "conditions": {},
	"constraint": {}, "constraints": {}, "policy": {}, "policies": {},
}

// Engine fuses semantic, keyword, and rule retrieval over the shared stores.
type Engine struct {
	lang     *nlp.Language
	embedder embed.Embedder
	vectors  store.VectorStore
	keywords store.KeywordIndex
	metadata store.MetadataStore
	matcher  *rules.Matcher

	semanticWeight float64
	ruleWeight     float64
}

// Config wires an Engine.
type Config struct {
	Language *nlp.Language
	Embedder embed.Embedder
	Vectors  store.VectorStore
	Keywords store.KeywordIndex
	Metadata store.MetadataStore

	// SemanticWeight and RuleWeight blend the fused score; they must sum
	// to 1.
	SemanticWeight float64
	RuleWeight     float64
}

// New builds a search engine.
func New(cfg Config) *Engine {
	if cfg.SemanticWeight == 0 && cfg.RuleWeight == 0 {
		cfg.SemanticWeight, cfg.RuleWeight = 0.6, 0.4
	}
	return &Engine{
		lang:           cfg.Language,
		embedder:       cfg.Embedder,
		vectors:        cfg.Vectors,
		keywords:       cfg.Keywords,
		metadata:       cfg.Metadata,
		matcher:        rules.NewMatcher(cfg.Language),
		semanticWeight: cfg.SemanticWeight,
		ruleWeight:     cfg.RuleWeight,
	}
}

// Search answers a free-text query. The three retrieval channels run in
// parallel; scores fuse as semanticWeight*semantic + ruleWeight*rule, where
// the semantic component is the stronger of vector similarity and normalized
// keyword relevance. Ties break by requirement ID ascending.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, lenserr.New(lenserr.ErrCodeQueryEmpty, "search query is empty", nil)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	fetch := limit * overFetchFactor

	ruleIntent := e.hasRuleIntent(query)
	ruleThreshold := opts.RuleThreshold
	if ruleIntent {
		// A query explicitly about rules should surface even weak matches.
		ruleThreshold = 0
	}

	var (
		semantic []*store.VectorResult
		keyword  []*store.KeywordResult
		ruleHits []rules.Match
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := e.embedder.Embed(gctx, query)
		if err != nil {
			return lenserr.New(lenserr.ErrCodeEmbeddingFailed, "failed to embed query", err)
		}
		semantic, err = e.vectors.Search(gctx, vec, fetch)
		return err
	})
	g.Go(func() error {
		var err error
		keyword, err = e.keywords.Search(gctx, query, fetch)
		return err
	})
	g.Go(func() error {
		stored, err := e.metadata.ListRules(gctx)
		if err != nil {
			return err
		}
		ruleHits = e.matcher.Match(query, stored, ruleThreshold)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, lenserr.Wrap(lenserr.ErrCodeSearchFailed, err)
	}

	fused := e.fuse(semantic, keyword, ruleHits, ruleIntent)
	results, err := e.hydrate(ctx, fused, opts.Category, limit)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SearchRules answers a query with individual business rules instead of
// whole requirements, ranked by lexical match score.
func (e *Engine) SearchRules(ctx context.Context, query string, limit int) ([]*RuleResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, lenserr.New(lenserr.ErrCodeQueryEmpty, "search query is empty", nil)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	stored, err := e.metadata.ListRules(ctx)
	if err != nil {
		return nil, lenserr.Wrap(lenserr.ErrCodeSearchFailed, err)
	}

	matches := e.matcher.Match(query, stored, 0)
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]*RuleResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, &RuleResult{
			RequirementID: m.RequirementID,
			Rule:          m.Rule,
			Score:         m.Score,
		})
	}
	return out, nil
}

// hasRuleIntent reports whether any query token is a rule-intent word.
func (e *Engine) hasRuleIntent(query string) bool {
	doc := nlp.Normalize(e.lang, query)
	for _, t := range doc.Tokens {
		if _, ok := ruleIntentWords[t.Lower]; ok {
			return true
		}
	}
	return false
}

// fuse combines the three channels into per-requirement results.
func (e *Engine) fuse(semantic []*store.VectorResult, keyword []*store.KeywordResult, ruleHits []rules.Match, ruleIntent bool) []*Result {
	byID := make(map[string]*Result)
	get := func(id string) *Result {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &Result{Requirement: &store.Requirement{ID: id}}
		byID[id] = r
		return r
	}

	for _, s := range semantic {
		get(s.ID).SemanticScore = float64(s.Score)
	}

	// BM25 scores are unbounded; normalize against the best hit.
	var maxBM25 float64
	for _, k := range keyword {
		if k.Score > maxBM25 {
			maxBM25 = k.Score
		}
	}
	for _, k := range keyword {
		r := get(k.ID)
		if maxBM25 > 0 {
			r.KeywordScore = k.Score / maxBM25
		}
		r.MatchedTerms = k.MatchedTerms
	}

	for _, m := range ruleHits {
		r := get(m.RequirementID)
		if m.Score > r.RuleScore {
			r.RuleScore = m.Score
		}
		if ruleIntent {
			r.MatchedRules = append(r.MatchedRules, m.Rule)
		}
	}

	results := make([]*Result, 0, len(byID))
	for _, r := range byID {
		semanticComponent := r.SemanticScore
		if r.KeywordScore > semanticComponent {
			semanticComponent = r.KeywordScore
		}
		r.Score = e.semanticWeight*semanticComponent + e.ruleWeight*r.RuleScore
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Requirement.ID < results[j].Requirement.ID
	})
	return results
}

// hydrate replaces ID-only stubs with stored requirements, applies the
// category filter, and truncates to limit. Requirements missing from the
// metadata store (deleted between retrieval and hydration) drop out.
func (e *Engine) hydrate(ctx context.Context, fused []*Result, category store.Category, limit int) ([]*Result, error) {
	ids := make([]string, len(fused))
	for i, r := range fused {
		ids[i] = r.Requirement.ID
	}

	reqs, err := e.metadata.GetRequirements(ctx, ids)
	if err != nil {
		return nil, lenserr.Wrap(lenserr.ErrCodeSearchFailed, err)
	}
	byID := make(map[string]*store.Requirement, len(reqs))
	for _, req := range reqs {
		byID[req.ID] = req
	}

	out := make([]*Result, 0, limit)
	for _, r := range fused {
		req, ok := byID[r.Requirement.ID]
		if !ok {
			continue
		}
		if category != "" && req.Category != category {
			continue
		}
		r.Requirement = req
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
