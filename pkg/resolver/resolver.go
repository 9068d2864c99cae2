// Package resolver matches free-form references ("the review step", "legal
// kb") against canvas nodes and catalog scopes.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/aretw0/canvasbuilder/internal/logging"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/ports"
	"github.com/sahilm/fuzzy"
)

const (
	// MaxCandidates caps the candidates returned for one reference.
	MaxCandidates = 5

	exactConfidence     = 1.0
	fuzzyCeiling        = 0.9
	substringBoost      = 0.15
	ambiguityMargin     = 0.1
	ambiguousConfidence = 0.6
)

// Entity types reported in EntityResolutionResult.EntityType.
const (
	EntityNode  = "node"
	EntityScope = "scope"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "node": true, "step": true, "one": true,
}

// Resolver implements ports.EntityResolver with fuzzy label matching.
type Resolver struct {
	catalog ports.ScopeCatalog
	logger  *slog.Logger
}

var _ ports.EntityResolver = (*Resolver)(nil)

// Option configures the Resolver.
type Option func(*Resolver)

// WithCatalog sets the scope catalog used by ResolveScope.
func WithCatalog(catalog ports.ScopeCatalog) Option {
	return func(r *Resolver) {
		r.catalog = catalog
	}
}

// WithLogger configures a logger for the Resolver.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver. Without a catalog every scope reference resolves to
// zero candidates.
func New(opts ...Option) *Resolver {
	r := &Resolver{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type entry struct {
	id, label, description string
}

// ResolveNode matches reference against the labels and IDs of the canvas nodes.
func (r *Resolver) ResolveNode(ctx context.Context, reference string, canvas *domain.CanvasContext) (*domain.EntityResolutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []entry
	if canvas != nil {
		for _, n := range canvas.Nodes {
			entries = append(entries, entry{id: n.ID, label: nodeLabel(n), description: n.Type})
		}
	}
	res := match(reference, entries)
	res.EntityType = EntityNode
	r.logger.Debug("Resolved node reference",
		"reference", reference,
		"candidates", len(res.Candidates),
		"confidence", res.Confidence,
	)
	return res, nil
}

// ResolveScope matches reference against the catalog scopes of scopeCategory.
func (r *Resolver) ResolveScope(ctx context.Context, reference, scopeCategory string) (*domain.EntityResolutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []entry
	if r.catalog != nil {
		scopes, err := r.catalog.ListScopes(ctx, scopeCategory)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s scopes: %w", scopeCategory, err)
		}
		for _, s := range scopes {
			entries = append(entries, entry{id: s.ID, label: s.Name, description: s.Description})
		}
	}
	res := match(reference, entries)
	res.EntityType = EntityScope
	res.ScopeCategory = scopeCategory
	r.logger.Debug("Resolved scope reference",
		"reference", reference,
		"category", scopeCategory,
		"candidates", len(res.Candidates),
		"confidence", res.Confidence,
	)
	return res, nil
}

func nodeLabel(n domain.NodeSummary) string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// match scores entries against reference. An exact label or ID match wins
// outright; otherwise candidates come from fuzzy subsequence matching and the
// result confidence drops when the top two are too close to tell apart.
func match(reference string, entries []entry) *domain.EntityResolutionResult {
	res := &domain.EntityResolutionResult{ReferenceText: reference}
	query := normalize(reference)
	if query == "" || len(entries) == 0 {
		return res
	}

	for _, e := range entries {
		if strings.EqualFold(e.id, strings.TrimSpace(reference)) || normalize(e.label) == query {
			res.Candidates = []domain.EntityMatch{candidate(e, exactConfidence)}
			res.Confidence = exactConfidence
			return res
		}
	}

	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = normalize(e.label)
	}

	for _, m := range fuzzy.Find(query, labels) {
		res.Candidates = append(res.Candidates, candidate(entries[m.Index], score(query, m.Str)))
	}
	switch len(res.Candidates) {
	case 0:
		return res
	case 1:
		// A lone candidate that literally contains the reference is as good as it gets.
		if strings.Contains(normalize(res.Candidates[0].Label), query) {
			res.Candidates[0].Confidence = fuzzyCeiling
		}
	}

	slices.SortStableFunc(res.Candidates, func(a, b domain.EntityMatch) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	if len(res.Candidates) > MaxCandidates {
		res.Candidates = res.Candidates[:MaxCandidates]
	}

	res.Confidence = res.Candidates[0].Confidence
	if len(res.Candidates) > 1 && res.Candidates[0].Confidence-res.Candidates[1].Confidence < ambiguityMargin {
		res.Confidence = min(res.Confidence, ambiguousConfidence)
	}
	return res
}

// score grows with how much of target the query covers, capped below an exact match.
func score(query, target string) float64 {
	if target == "" {
		return 0
	}
	coverage := float64(len(query)) / float64(len(target))
	s := 0.4 + 0.4*min(coverage, 1)
	if strings.Contains(target, query) {
		s += substringBoost
	}
	return min(s, fuzzyCeiling)
}

func candidate(e entry, confidence float64) domain.EntityMatch {
	return domain.EntityMatch{
		ID:          e.id,
		Label:       e.label,
		Description: e.description,
		Confidence:  confidence,
	}
}

// normalize lowercases s and drops articles and generic nouns like "node".
func normalize(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '"' || r == '\'' || r == ',' || r == '.'
	})
	kept := words[:0]
	for _, w := range words {
		if !stopwords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
