// Package search answers free-text queries over the indexed requirement set
// by fusing semantic, keyword, and business-rule retrieval.
package search

import (
	"github.com/reqlens/reqlens/internal/store"
)

// DefaultLimit is the result cap when the caller does not set one.
const DefaultLimit = 10

// Options tune one query.
type Options struct {
	// Limit caps the number of results (default DefaultLimit).
	Limit int

	// Category restricts results to one category; empty means all.
	Category store.Category

	// RuleThreshold is the minimum lexical score for rule matches.
	RuleThreshold float64
}

// Result is one requirement hit with its fused score and the signals that
// produced it.
type Result struct {
	Requirement *store.Requirement `json:"requirement"`

	// Score is the unified ranking score in [0,1].
	Score float64 `json:"score"`

	// SemanticScore is the vector-similarity component in [0,1].
	SemanticScore float64 `json:"semantic_score"`

	// KeywordScore is the normalized BM25 component in [0,1].
	KeywordScore float64 `json:"keyword_score"`

	// RuleScore is the strongest rule-match score in [0,1].
	RuleScore float64 `json:"rule_score"`

	// MatchedTerms are the query terms the keyword index matched.
	MatchedTerms []string `json:"matched_terms,omitempty"`

	// MatchedRules are rules that matched a rule-focused query.
	MatchedRules []store.BusinessRule `json:"matched_rules,omitempty"`
}

// RuleResult is one business-rule hit for rule-focused queries.
type RuleResult struct {
	RequirementID string             `json:"requirement_id"`
	Rule          store.BusinessRule `json:"rule"`
	Score         float64            `json:"score"`
}
