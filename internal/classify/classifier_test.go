package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqlens/reqlens/internal/embed"
	"github.com/reqlens/reqlens/internal/store"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(context.Background(), embed.NewStaticEmbedder(), 0.5)
	require.NoError(t, err)
	return c
}

func TestClassifier_Classify_RuleShortCircuit(t *testing.T) {
	c := newTestClassifier(t)

	rules := []*store.BusinessRule{
		{Kind: store.RuleKindConditional, Condition: "credit score is above 650", Confidence: 0.85},
	}
	res, err := c.Classify(context.Background(), "If credit score is above 650, then approve the application.", rules)
	require.NoError(t, err)

	assert.Equal(t, store.CategoryBusinessRule, res.Category)
	assert.Equal(t, 0.85, res.Confidence)
}

func TestClassifier_Classify_WeakRuleFallsThroughToSimilarity(t *testing.T) {
	c := newTestClassifier(t)

	// A rule below the threshold must not force the business-rule category.
	rules := []*store.BusinessRule{
		{Kind: store.RuleKindConditional, Condition: "data arrives", Confidence: 0.3},
	}
	res, err := c.Classify(context.Background(), "The system shall allow users to upload documents.", rules)
	require.NoError(t, err)
	assert.NotEqual(t, store.CategoryBusinessRule, res.Category)
}

func TestClassifier_Classify_Functional(t *testing.T) {
	c := newTestClassifier(t)

	res, err := c.Classify(context.Background(),
		"The system shall allow users to submit a mortgage application online.", nil)
	require.NoError(t, err)

	assert.Equal(t, store.CategoryFunctional, res.Category)
	assert.GreaterOrEqual(t, res.Confidence, 0.5)
}

func TestClassifier_Classify_NonFunctional(t *testing.T) {
	c := newTestClassifier(t)

	res, err := c.Classify(context.Background(),
		"The system shall respond to search queries within two seconds.", nil)
	require.NoError(t, err)

	assert.Equal(t, store.CategoryNonFunctional, res.Category)
	assert.GreaterOrEqual(t, res.Confidence, 0.5)
}

func TestClassifier_Classify_EmptyText(t *testing.T) {
	c := newTestClassifier(t)

	for _, text := range []string{"", "   ", "\n\t "} {
		res, err := c.Classify(context.Background(), text, nil)
		require.NoError(t, err)
		assert.Equal(t, store.CategoryOther, res.Category)
		assert.Zero(t, res.Confidence)
	}
}

func TestClassifier_Classify_Deterministic(t *testing.T) {
	c := newTestClassifier(t)
	text := "Users can view the status of their pending applications."

	first, err := c.Classify(context.Background(), text, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := c.Classify(context.Background(), text, nil)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
