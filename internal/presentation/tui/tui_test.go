package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer(t *testing.T) {
	out, err := NewRenderer(80, glamour.WithStandardStyle(styles.DarkStyle))("Adding a **task** node.")
	require.NoError(t, err)
	assert.Contains(t, out, "task")
	assert.NotContains(t, out, "**")
}

func TestRenderer_AutoStyleKeepsText(t *testing.T) {
	out, err := NewRenderer(80)("Adding a **task** node.")
	require.NoError(t, err)
	assert.Contains(t, out, "task")
}

func TestStyleKeepsText(t *testing.T) {
	for _, kind := range []domain.EventKind{domain.EventThinking, domain.EventCanvasOperation, domain.EventError, domain.EventMessage} {
		assert.Contains(t, Style(kind, "hello"), "hello")
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.0.0")
	assert.True(t, strings.Contains(buf.String(), "canvas builder 1.0.0"))
}
