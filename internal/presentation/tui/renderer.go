package tui

import (
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// NewRenderer returns a function that renders markdown using glamour,
// wrapped at width columns. The style is detected from the terminal unless
// opts override it. If the renderer cannot be built, text passes through
// unchanged.
func NewRenderer(width int, opts ...glamour.TermRendererOption) func(string) (string, error) {
	all := append([]glamour.TermRendererOption{
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(width),
	}, opts...)
	r, err := glamour.NewTermRenderer(all...)
	if err != nil {
		return func(s string) (string, error) { return s, nil }
	}
	return r.Render
}

// Style colors status lines by event kind: thinking is faint, operations
// green and errors red.
func Style(kind domain.EventKind, text string) string {
	p := termenv.ColorProfile()
	s := termenv.String(text)
	switch kind {
	case domain.EventThinking:
		s = s.Faint().Italic()
	case domain.EventCanvasOperation:
		s = s.Foreground(p.Color("#34d399"))
	case domain.EventError:
		s = s.Foreground(p.Color("#f87171")).Bold()
	}
	return s.String()
}
