package ports

import (
	"context"

	"github.com/aretw0/canvasbuilder/pkg/domain"
)

// CompletionProvider turns a prompt into text.
// Implementations may fail with rate-limit, timeout, authentication or
// content-filter errors; callers must observe ctx cancellation.
type CompletionProvider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	Complete(ctx context.Context, prompt, systemInstruction string) (string, error)
}

// EntityResolver resolves references to canvas nodes and linkable scopes.
type EntityResolver interface {
	ResolveNode(ctx context.Context, reference string, canvas *domain.CanvasContext) (*domain.EntityResolutionResult, error)
	ResolveScope(ctx context.Context, reference, scopeCategory string) (*domain.EntityResolutionResult, error)
}

// Translation is the outcome of translating a Classification.
type Translation struct {
	// Message is the user-facing summary of what will happen.
	Message    string
	Operations []domain.CanvasOperation
}

// OperationTranslator converts a resolved Classification into canvas patches.
type OperationTranslator interface {
	Translate(ctx context.Context, cls domain.Classification, canvas *domain.CanvasContext) (Translation, error)
}

// ScopeCatalog lists the scopes a node can be linked to.
type ScopeCatalog interface {
	// ListScopes returns the scopes of category, or every scope when category is empty.
	ListScopes(ctx context.Context, category string) ([]domain.Scope, error)
}
