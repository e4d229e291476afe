// Package classify assigns requirement categories (functional,
// non-functional, business-rule) using extracted rules and embedding
// similarity against labeled exemplar phrases.
package classify

import (
	"context"
	"math"
	"strings"

	"github.com/reqlens/reqlens/internal/embed"
	lenserr "github.com/reqlens/reqlens/internal/errors"
	"github.com/reqlens/reqlens/internal/store"
)

// functionalExemplars describe system behavior: actions the system performs.
var functionalExemplars = []string{
	"the system shall allow users to submit a loan application online",
	"the application displays the current account balance to the user",
	"users can upload supporting documents for their application",
	"the system generates a confirmation email after submission",
	"the service exports requirement data to a file",
}

// nonFunctionalExemplars describe qualities: performance, security,
// availability, usability.
var nonFunctionalExemplars = []string{
	"the system shall respond to search queries within two seconds",
	"all stored data must be encrypted at rest",
	"the service must be available 99.9 percent of the time",
	"the interface shall be usable by screen reader software",
	"the system shall support one thousand concurrent users",
}

// Result is a category assignment with its confidence.
type Result struct {
	Category   store.Category
	Confidence float64
}

// Classifier assigns categories to requirements. Exemplar embeddings are
// computed once at construction, so classification itself needs at most one
// embedding call per text.
type Classifier struct {
	embedder      embed.Embedder
	ruleThreshold float64

	functional    [][]float32
	nonFunctional [][]float32
}

// New builds a classifier, embedding the exemplar phrases up front.
func New(ctx context.Context, embedder embed.Embedder, ruleThreshold float64) (*Classifier, error) {
	functional, err := embedder.EmbedBatch(ctx, functionalExemplars)
	if err != nil {
		return nil, lenserr.New(lenserr.ErrCodeEmbeddingFailed, "failed to embed functional exemplars", err)
	}
	nonFunctional, err := embedder.EmbedBatch(ctx, nonFunctionalExemplars)
	if err != nil {
		return nil, lenserr.New(lenserr.ErrCodeEmbeddingFailed, "failed to embed non-functional exemplars", err)
	}

	return &Classifier{
		embedder:      embedder,
		ruleThreshold: ruleThreshold,
		functional:    functional,
		nonFunctional: nonFunctional,
	}, nil
}

// Classify assigns a category to requirement text.
//
// A requirement carrying an extracted rule at or above the rule threshold is
// a business rule outright; its confidence is the strongest rule's. Otherwise
// the text's embedding is compared against both exemplar sets and the closer
// one wins, with confidence derived from the margin between them. Ties go to
// functional. Empty or blank text is category other with zero confidence.
func (c *Classifier) Classify(ctx context.Context, text string, rules []*store.BusinessRule) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Category: store.CategoryOther, Confidence: 0}, nil
	}

	for _, r := range rules {
		if r.Confidence >= c.ruleThreshold {
			return Result{Category: store.CategoryBusinessRule, Confidence: strongestRule(rules)}, nil
		}
	}

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return Result{}, lenserr.New(lenserr.ErrCodeEmbeddingFailed, "failed to embed requirement text", err)
	}

	funcSim := maxSimilarity(vec, c.functional)
	nonFuncSim := maxSimilarity(vec, c.nonFunctional)

	category := store.CategoryFunctional
	margin := funcSim - nonFuncSim
	if nonFuncSim > funcSim {
		category = store.CategoryNonFunctional
		margin = nonFuncSim - funcSim
	}

	return Result{Category: category, Confidence: marginConfidence(margin)}, nil
}

// strongestRule returns the highest rule confidence.
func strongestRule(rules []*store.BusinessRule) float64 {
	best := 0.0
	for _, r := range rules {
		if r.Confidence > best {
			best = r.Confidence
		}
	}
	return best
}

// maxSimilarity returns the highest cosine similarity between vec and any
// exemplar.
func maxSimilarity(vec []float32, exemplars [][]float32) float64 {
	best := -1.0
	for _, ex := range exemplars {
		if sim := cosine(vec, ex); sim > best {
			best = sim
		}
	}
	return best
}

// marginConfidence maps the similarity margin between the two categories to
// a confidence in [0.5, 1.0): a zero margin is a coin flip, larger margins
// saturate toward certainty.
func marginConfidence(margin float64) float64 {
	if margin < 0 {
		margin = 0
	}
	// Margins beyond ~0.3 are decisive for unit vectors.
	conf := 0.5 + margin/0.6
	return math.Min(conf, 0.99)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
