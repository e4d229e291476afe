package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqlens/reqlens/internal/nlp"
	"github.com/reqlens/reqlens/internal/store"
)

func newTestExtractor(t *testing.T) (*Extractor, *nlp.Language) {
	t.Helper()
	lang, err := nlp.NewLanguage()
	require.NoError(t, err)
	return New(lang), lang
}

func TestExtractor_Extract_ConditionalWithThresholdYieldsOneRule(t *testing.T) {
	e, lang := newTestExtractor(t)

	// The sentence reads as both a conditional and a threshold; the
	// overlapping detections must merge into a single conditional.
	doc := nlp.Normalize(lang, "If credit score is above 650, then approve the mortgage application.")
	rules := e.Extract(doc)

	require.Len(t, rules, 1)
	r := rules[0]
	assert.Equal(t, store.RuleKindConditional, r.Kind)
	assert.Contains(t, r.Condition, "credit score")
	assert.Contains(t, r.Condition, "650")
	assert.Contains(t, r.Action, "approve the mortgage application")
	assert.Greater(t, r.Confidence, 0.5)
}

func TestExtractor_Extract_TrailingCondition(t *testing.T) {
	e, lang := newTestExtractor(t)

	doc := nlp.Normalize(lang, "The system locks the account when three login attempts fail.")
	rules := e.Extract(doc)

	require.NotEmpty(t, rules)
	r := rules[0]
	assert.Equal(t, store.RuleKindConditional, r.Kind)
	assert.Contains(t, r.Condition, "login attempts fail")
	assert.Contains(t, r.Action, "locks the account")
}

func TestExtractor_Extract_ThresholdWithoutConditionMarker(t *testing.T) {
	e, lang := newTestExtractor(t)

	doc := nlp.Normalize(lang, "The loan amount shall not exceed $500,000 for standard applicants.")
	rules := e.Extract(doc)

	require.NotEmpty(t, rules)
	// Both a threshold and an interdiction fire here; the merge keeps one.
	assert.Len(t, rules, 1)
	assert.Contains(t, rules[0].Condition, "$500,000")
	assert.Greater(t, rules[0].Confidence, 0.5)
}

func TestExtractor_Extract_Interdiction(t *testing.T) {
	e, lang := newTestExtractor(t)

	doc := nlp.Normalize(lang, "Borrowers must not submit more than one application per day.")
	rules := e.Extract(doc)

	require.NotEmpty(t, rules)
	found := false
	for _, r := range rules {
		if r.Kind == store.RuleKindInterdiction {
			found = true
			assert.GreaterOrEqual(t, r.Confidence, confInterdictionStrong)
		}
	}
	assert.True(t, found, "expected an interdiction rule")
}

func TestExtractor_Extract_PlainStatementYieldsNoRules(t *testing.T) {
	e, lang := newTestExtractor(t)

	doc := nlp.Normalize(lang, "The system stores requirement documents in a local database.")
	assert.Empty(t, e.Extract(doc))
}

func TestExtractor_Extract_Deterministic(t *testing.T) {
	e, lang := newTestExtractor(t)
	text := "If the applicant is self-employed, then request two years of tax returns. " +
		"The rate shall not exceed 8 percent. " +
		"When the appraisal is below the offer price, the lender must renegotiate."

	doc := nlp.Normalize(lang, text)
	first := e.Extract(doc)
	require.NotEmpty(t, first)

	for i := 0; i < 5; i++ {
		again := e.Extract(nlp.Normalize(lang, text))
		require.Equal(t, first, again)
	}
}

func TestExtractor_Extract_RankedByConfidence(t *testing.T) {
	e, lang := newTestExtractor(t)

	doc := nlp.Normalize(lang, "If the score is above 700, then waive the fee. The report is updated when data arrives.")
	rules := e.Extract(doc)

	require.GreaterOrEqual(t, len(rules), 2)
	for i := 1; i < len(rules); i++ {
		assert.GreaterOrEqual(t, rules[i-1].Confidence, rules[i].Confidence)
	}
}

func TestExtractor_Extract_EmptyDocument(t *testing.T) {
	e, lang := newTestExtractor(t)
	assert.Nil(t, e.Extract(nlp.Normalize(lang, "")))
	assert.Nil(t, e.Extract(nil))
}

func TestMatcher_Match_ScoresByTokenOverlap(t *testing.T) {
	_, lang := newTestExtractor(t)
	m := NewMatcher(lang)

	stored := []*store.StoredRule{
		{RequirementID: "REQ-0002", Rule: store.BusinessRule{
			Kind: store.RuleKindConditional, Condition: "credit score is above 650",
			Action: "approve the mortgage application", Confidence: 0.85,
		}},
		{RequirementID: "REQ-0001", Rule: store.BusinessRule{
			Kind: store.RuleKindThreshold, Condition: "loan amount exceeds $500,000",
			Action: "require manual review", Confidence: 0.7,
		}},
	}

	matches := m.Match("mortgage credit score rules", stored, 0.0)
	require.NotEmpty(t, matches)
	assert.Equal(t, "REQ-0002", matches[0].RequirementID)

	// Threshold filters weak overlaps out.
	assert.Empty(t, m.Match("unrelated telescope hardware", stored, 0.1))
}

func TestMatcher_Match_EmptyQuery(t *testing.T) {
	_, lang := newTestExtractor(t)
	m := NewMatcher(lang)
	assert.Nil(t, m.Match("", nil, 0.0))
	assert.Nil(t, m.Match("the and of", nil, 0.0))
}
