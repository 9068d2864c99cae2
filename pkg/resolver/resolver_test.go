package resolver_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/canvasbuilder/pkg/adapters/memory"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canvas() *domain.CanvasContext {
	return &domain.CanvasContext{
		NodeCount: 3,
		Nodes: []domain.NodeSummary{
			{ID: "n1", Type: "task", Label: "Review draft"},
			{ID: "n2", Type: "approval", Label: "Legal review"},
			{ID: "n3", Type: "task", Label: "Send email"},
		},
	}
}

func TestResolveNode(t *testing.T) {
	r := resolver.New()
	ctx := context.Background()

	t.Run("exact label ignores articles", func(t *testing.T) {
		res, err := r.ResolveNode(ctx, "the Review Draft node", canvas())
		require.NoError(t, err)
		assert.Equal(t, 1.0, res.Confidence)
		require.Len(t, res.Candidates, 1)
		assert.Equal(t, "n1", res.Candidates[0].ID)
		assert.Equal(t, resolver.EntityNode, res.EntityType)
	})

	t.Run("exact id", func(t *testing.T) {
		res, err := r.ResolveNode(ctx, "n3", canvas())
		require.NoError(t, err)
		assert.Equal(t, 1.0, res.Confidence)
		assert.Equal(t, "Send email", res.Candidates[0].Label)
		assert.Equal(t, "task", res.Candidates[0].Description)
	})

	t.Run("single partial match", func(t *testing.T) {
		res, err := r.ResolveNode(ctx, "legal", canvas())
		require.NoError(t, err)
		require.Len(t, res.Candidates, 1)
		assert.Equal(t, "n2", res.Candidates[0].ID)
		assert.GreaterOrEqual(t, res.Confidence, domain.EntityConfidenceThreshold)
	})

	t.Run("ambiguous", func(t *testing.T) {
		res, err := r.ResolveNode(ctx, "the review step", canvas())
		require.NoError(t, err)
		require.Len(t, res.Candidates, 2)
		assert.LessOrEqual(t, res.Confidence, 0.6)
		ids := []string{res.Candidates[0].ID, res.Candidates[1].ID}
		assert.ElementsMatch(t, []string{"n1", "n2"}, ids)
		assert.Equal(t, "the review step", res.ReferenceText)
	})

	t.Run("no match", func(t *testing.T) {
		res, err := r.ResolveNode(ctx, "xyz", canvas())
		require.NoError(t, err)
		assert.Empty(t, res.Candidates)
		assert.Zero(t, res.Confidence)
	})

	t.Run("nil canvas", func(t *testing.T) {
		res, err := r.ResolveNode(ctx, "review", nil)
		require.NoError(t, err)
		assert.Empty(t, res.Candidates)
	})

	t.Run("only stopwords", func(t *testing.T) {
		res, err := r.ResolveNode(ctx, "the node", canvas())
		require.NoError(t, err)
		assert.Empty(t, res.Candidates)
	})
}

func TestResolveNode_CapsCandidates(t *testing.T) {
	c := &domain.CanvasContext{}
	for i := 1; i <= 7; i++ {
		c.Nodes = append(c.Nodes, domain.NodeSummary{ID: fmt.Sprintf("n%d", i), Label: fmt.Sprintf("Review %d", i)})
	}

	res, err := resolver.New().ResolveNode(context.Background(), "review", c)
	require.NoError(t, err)
	assert.Len(t, res.Candidates, resolver.MaxCandidates)
	assert.LessOrEqual(t, res.Confidence, 0.6)
	for i := 1; i < len(res.Candidates); i++ {
		assert.GreaterOrEqual(t, res.Candidates[i-1].Confidence, res.Candidates[i].Confidence)
	}
}

func TestResolveScope(t *testing.T) {
	catalog, err := memory.NewCatalog(
		domain.Scope{ID: "k1", Category: domain.ScopeKnowledge, Name: "Contract law", Description: "Clauses and precedents"},
		domain.Scope{ID: "k2", Category: domain.ScopeKnowledge, Name: "Employment law"},
		domain.Scope{ID: "s1", Category: domain.ScopeSkill, Name: "Summarize"},
	)
	require.NoError(t, err)
	r := resolver.New(resolver.WithCatalog(catalog))
	ctx := context.Background()

	res, err := r.ResolveScope(ctx, "contract", domain.ScopeKnowledge)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "k1", res.Candidates[0].ID)
	assert.Equal(t, "Clauses and precedents", res.Candidates[0].Description)
	assert.Equal(t, resolver.EntityScope, res.EntityType)
	assert.Equal(t, domain.ScopeKnowledge, res.ScopeCategory)

	res, err = r.ResolveScope(ctx, "law", domain.ScopeKnowledge)
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 2)
	assert.Less(t, res.Confidence, domain.EntityConfidenceThreshold)

	res, err = r.ResolveScope(ctx, "summarize", domain.ScopeKnowledge)
	require.NoError(t, err)
	assert.Empty(t, res.Candidates, "other categories are not searched")

	res, err = resolver.New().ResolveScope(ctx, "contract", domain.ScopeKnowledge)
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
}

type brokenCatalog struct{}

func (brokenCatalog) ListScopes(context.Context, string) ([]domain.Scope, error) {
	return nil, errors.New("catalog offline")
}

func TestResolver_Errors(t *testing.T) {
	r := resolver.New(resolver.WithCatalog(brokenCatalog{}))

	_, err := r.ResolveScope(context.Background(), "x", domain.ScopeSkill)
	assert.ErrorContains(t, err, "catalog offline")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.ResolveNode(ctx, "x", canvas())
	assert.ErrorIs(t, err, context.Canceled)
}
