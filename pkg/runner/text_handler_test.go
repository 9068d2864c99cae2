package runner

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextHandler_Output(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader(""), out,
		WithTextHandlerRenderer(func(s string) (string, error) { return "Rendered: " + s, nil }),
		WithTextHandlerStyle(func(kind domain.EventKind, text string) string { return "[" + string(kind) + "] " + text }),
	)
	ctx := context.Background()

	require.NoError(t, h.Output(ctx, domain.ThinkingEvent("Thinking")))
	require.NoError(t, h.Output(ctx, domain.MessageEvent("Hello")))
	require.NoError(t, h.Output(ctx, domain.ClarificationEvent("Which node?", domain.ClarificationRequest{
		Options: []domain.ClarificationOption{{ID: "n1", Label: "Review", Description: "task"}},
	})))
	require.NoError(t, h.Output(ctx, domain.ErrorEvent("boom", domain.CodeInternal)))
	require.NoError(t, h.Output(ctx, domain.CompleteEvent()))

	text := out.String()
	assert.Contains(t, text, "[thinking] Thinking")
	assert.Contains(t, text, "Rendered: Hello")
	assert.Contains(t, text, "Rendered: Which node?")
	assert.Contains(t, text, "  1. Review - task")
	assert.Contains(t, text, "[error] Error: boom")
}

func TestTextHandler_Input(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader("  my user input \n\x00\n"), out)

	val, err := h.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "my user input", val)
	assert.Equal(t, "> ", out.String())

	// The NUL byte is stripped, leaving an empty line.
	val, err = h.Input(context.Background())
	require.NoError(t, err)
	assert.Empty(t, val)

	_, err = h.Input(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestTextHandler_InputHonorsContext(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	h := NewTextHandler(r, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Input(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
