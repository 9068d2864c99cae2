package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/ports"
)

// Catalog implements ports.ScopeCatalog over a fixed set of scopes.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	scopes []domain.Scope
}

var _ ports.ScopeCatalog = (*Catalog)(nil)

// NewCatalog creates a Catalog. Every scope needs an ID and a name, and IDs
// must be unique.
func NewCatalog(scopes ...domain.Scope) (*Catalog, error) {
	seen := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		if s.ID == "" {
			return nil, fmt.Errorf("scope %q missing ID", s.Name)
		}
		if s.Name == "" {
			return nil, fmt.Errorf("scope %s missing name", s.ID)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate scope ID %s", s.ID)
		}
		seen[s.ID] = true
	}

	sorted := slices.Clone(scopes)
	slices.SortFunc(sorted, func(a, b domain.Scope) int { return strings.Compare(a.ID, b.ID) })
	return &Catalog{scopes: sorted}, nil
}

// NewCatalogFromJSON decodes a JSON array of scopes.
func NewCatalogFromJSON(data []byte) (*Catalog, error) {
	var scopes []domain.Scope
	if err := json.Unmarshal(data, &scopes); err != nil {
		return nil, fmt.Errorf("failed to decode scopes: %w", err)
	}
	return NewCatalog(scopes...)
}

// ListScopes returns the scopes of category in ID order. Categories compare
// case-insensitively; an empty category lists everything.
func (c *Catalog) ListScopes(ctx context.Context, category string) ([]domain.Scope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if category == "" {
		return slices.Clone(c.scopes), nil
	}
	var out []domain.Scope
	for _, s := range c.scopes {
		if strings.EqualFold(s.Category, category) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Len returns the number of scopes.
func (c *Catalog) Len() int {
	return len(c.scopes)
}
