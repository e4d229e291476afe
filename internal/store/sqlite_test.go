package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetadataStore(t *testing.T) *SQLiteMetadataStore {
	t.Helper()
	s, err := NewSQLiteMetadataStore(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func enrichedRequirement(id string) *Requirement {
	return &Requirement{
		ID:         id,
		Name:       "Credit score approval",
		Text:       "If credit score is above 650, then approve the mortgage application.",
		SourceType: "csv",
		Priority:   "high",
		Status:     "approved",
		Tags:       []string{"underwriting", "credit"},
		CustomFields: map[string]string{
			"type": "business-rule",
		},
		Tokens:   []string{"credit", "score", "650", "approve"},
		Entities: []Entity{{Text: "650", Type: EntityQuantity, Start: 26, End: 29}},
		Rules: []*BusinessRule{{
			Kind:       RuleKindConditional,
			Condition:  "credit score is above 650",
			Action:     "approve the mortgage application",
			Confidence: 0.85,
			Start:      3,
			End:        66,
		}},
		Category:   CategoryBusinessRule,
		Confidence: 0.85,
		IngestedAt: time.Now().UTC().Truncate(time.Second),
		EnrichedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLiteMetadataStore_SaveAndGet_RoundTrip(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	want := enrichedRequirement("REQ-1")
	require.NoError(t, s.SaveRequirements(ctx, []*Requirement{want}))

	got, err := s.GetRequirement(ctx, "REQ-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Text, got.Text)
	assert.Equal(t, want.Tags, got.Tags)
	assert.Equal(t, want.CustomFields, got.CustomFields)
	assert.Equal(t, want.Entities, got.Entities)
	assert.Equal(t, want.Category, got.Category)
	require.Len(t, got.Rules, 1)
	assert.Equal(t, *want.Rules[0], *got.Rules[0])
}

func TestSQLiteMetadataStore_GetRequirement_Absent_ReturnsNil(t *testing.T) {
	s := newTestMetadataStore(t)

	got, err := s.GetRequirement(context.Background(), "REQ-404")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteMetadataStore_Save_ReplacesRules(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	req := enrichedRequirement("REQ-1")
	require.NoError(t, s.SaveRequirements(ctx, []*Requirement{req}))

	// Re-saving with one different rule must replace, not accumulate.
	req.Rules = []*BusinessRule{{
		Kind:       RuleKindInterdiction,
		Condition:  "applicants must not submit duplicate applications",
		Confidence: 0.70,
		Start:      0,
		End:        50,
	}}
	require.NoError(t, s.SaveRequirements(ctx, []*Requirement{req}))

	got, err := s.GetRequirement(ctx, "REQ-1")
	require.NoError(t, err)
	require.Len(t, got.Rules, 1)
	assert.Equal(t, RuleKindInterdiction, got.Rules[0].Kind)

	stored, err := s.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestSQLiteMetadataStore_GetRequirements_PreservesOrder(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	var reqs []*Requirement
	for _, id := range []string{"REQ-1", "REQ-2", "REQ-3"} {
		r := enrichedRequirement(id)
		reqs = append(reqs, r)
	}
	require.NoError(t, s.SaveRequirements(ctx, reqs))

	got, err := s.GetRequirements(ctx, []string{"REQ-3", "REQ-404", "REQ-1"})
	require.NoError(t, err)
	require.Len(t, got, 2, "missing IDs are skipped")
	assert.Equal(t, "REQ-3", got[0].ID)
	assert.Equal(t, "REQ-1", got[1].ID)
}

func TestSQLiteMetadataStore_ListRules_PairsRuleWithParent(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRequirements(ctx, []*Requirement{
		enrichedRequirement("REQ-1"),
		enrichedRequirement("REQ-2"),
	}))

	stored, err := s.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	parents := map[string]bool{}
	for _, sr := range stored {
		parents[sr.RequirementID] = true
		assert.Equal(t, RuleKindConditional, sr.Rule.Kind)
		assert.InDelta(t, 0.85, sr.Rule.Confidence, 1e-9)
	}
	assert.True(t, parents["REQ-1"])
	assert.True(t, parents["REQ-2"])
}

func TestSQLiteMetadataStore_DeleteRequirement_RemovesRules(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRequirements(ctx, []*Requirement{enrichedRequirement("REQ-1")}))
	require.NoError(t, s.DeleteRequirement(ctx, "REQ-1"))

	got, err := s.GetRequirement(ctx, "REQ-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	stored, err := s.ListRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)

	// Absent is a no-op.
	require.NoError(t, s.DeleteRequirement(ctx, "REQ-1"))
}

func TestSQLiteMetadataStore_Count(t *testing.T) {
	s := newTestMetadataStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.SaveRequirements(ctx, []*Requirement{
		enrichedRequirement("REQ-1"),
		enrichedRequirement("REQ-2"),
	}))

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteMetadataStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.db")
	ctx := context.Background()

	s, err := NewSQLiteMetadataStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveRequirements(ctx, []*Requirement{enrichedRequirement("REQ-1")}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteMetadataStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetRequirement(ctx, "REQ-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Credit score approval", got.Name)
}
