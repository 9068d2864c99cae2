package provider

import (
	"context"

	"github.com/aretw0/canvasbuilder/pkg/ports"
)

type portsProvider = ports.CompletionProvider

type markProvider struct {
	wrapped
	name  string
	order *[]string
}

func (m *markProvider) Complete(ctx context.Context, prompt, system string) (string, error) {
	*m.order = append(*m.order, m.name)
	return m.next.Complete(ctx, prompt, system)
}
