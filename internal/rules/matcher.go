package rules

import (
	"sort"
	"strings"

	"github.com/reqlens/reqlens/internal/nlp"
	"github.com/reqlens/reqlens/internal/store"
)

// Match is a stored rule scored against a query.
type Match struct {
	RequirementID string
	Rule          store.BusinessRule
	Score         float64 // token overlap weighted by extraction confidence
}

// Matcher scores stored business rules against free-text queries. Scoring is
// lexical: fraction of query content tokens found in the rule's condition and
// action text, weighted by the rule's extraction confidence.
type Matcher struct {
	lang *nlp.Language
}

// NewMatcher returns a Matcher bound to a language context.
func NewMatcher(lang *nlp.Language) *Matcher {
	return &Matcher{lang: lang}
}

// Match scores every stored rule against the query and returns matches with
// score above threshold, ordered by score descending then requirement ID.
func (m *Matcher) Match(query string, stored []*store.StoredRule, threshold float64) []Match {
	queryTokens := m.contentTokens(query)
	if len(queryTokens) == 0 {
		return nil
	}

	var out []Match
	for _, sr := range stored {
		ruleTokens := m.contentTokens(sr.Rule.Condition + " " + sr.Rule.Action)
		if len(ruleTokens) == 0 {
			continue
		}

		hit := 0
		for tok := range queryTokens {
			if _, ok := ruleTokens[tok]; ok {
				hit++
			}
		}
		if hit == 0 {
			continue
		}

		score := float64(hit) / float64(len(queryTokens)) * sr.Rule.Confidence
		if score < threshold {
			continue
		}
		out = append(out, Match{
			RequirementID: sr.RequirementID,
			Rule:          sr.Rule,
			Score:         score,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].RequirementID < out[j].RequirementID
	})
	return out
}

// contentTokens lowercases, tokenizes, and drops stop words.
func (m *Matcher) contentTokens(text string) map[string]struct{} {
	doc := nlp.Normalize(m.lang, strings.TrimSpace(text))
	out := make(map[string]struct{}, len(doc.Tokens))
	for _, t := range doc.Tokens {
		if m.lang.IsStopWord(t.Lower) {
			continue
		}
		out[t.Lower] = struct{}{}
	}
	return out
}
