package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/canvasbuilder/pkg/dialogue"
	"github.com/aretw0/canvasbuilder/pkg/domain"
)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer
	// Style decorates status lines (thinking, errors). Nil prints them plain.
	Style func(kind domain.EventKind, text string) string

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithTextHandlerStyle configures the status line decorator.
func WithTextHandlerStyle(style func(kind domain.EventKind, text string) string) TextHandlerOption {
	return func(h *TextHandler) {
		h.Style = style
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honor ctx while the
// terminal read blocks.
func (h *TextHandler) pump() {
	defer close(h.inputChan)
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			return
		}
	}
}

// Output prints assistant text through the renderer, status events through
// Style and clarification options as a numbered list.
func (h *TextHandler) Output(ctx context.Context, ev domain.StreamEvent) error {
	switch ev.Kind {
	case domain.EventThinking:
		h.status(ev.Kind, ev.Text)
	case domain.EventMessage:
		h.content(ev.Text)
	case domain.EventClarification:
		h.content(ev.Text)
		if ev.Clarification != nil {
			for i, o := range ev.Clarification.Options {
				line := fmt.Sprintf("  %d. %s", i+1, o.Label)
				if o.Description != "" {
					line += " - " + o.Description
				}
				fmt.Fprintln(h.Writer, line)
			}
		}
	case domain.EventCanvasOperation:
		if ev.Operation != nil {
			h.status(ev.Kind, describeOperation(*ev.Operation))
		}
	case domain.EventError:
		h.status(ev.Kind, fmt.Sprintf("Error: %s (%s)", ev.Text, ev.Code))
	}
	return nil
}

func (h *TextHandler) content(text string) {
	if text == "" {
		return
	}
	output := text
	if h.Renderer != nil {
		if rendered, err := h.Renderer(text); err == nil {
			output = rendered
		}
	}
	fmt.Fprintln(h.Writer, strings.TrimSpace(output))
}

func (h *TextHandler) status(kind domain.EventKind, text string) {
	if h.Style != nil {
		text = h.Style(kind, text)
	}
	fmt.Fprintln(h.Writer, text)
}

// Input prompts and reads one line. Lines that fail SanitizeInput are
// reported and the prompt is shown again.
func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := dialogue.SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return clean, nil
		}
	}
}

// SystemOutput prints msg with a "[System]" prefix.
func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	fmt.Fprintf(h.Writer, "[System] %s\n", msg)
	return nil
}

func describeOperation(op domain.CanvasOperation) string {
	parts := []string{"+", string(op.Op)}
	if op.NodeType != "" {
		parts = append(parts, op.NodeType)
	}
	if op.Label != "" {
		parts = append(parts, fmt.Sprintf("%q", op.Label))
	}
	if op.NodeID != "" {
		parts = append(parts, op.NodeID)
	}
	if op.SourceID != "" || op.TargetID != "" {
		parts = append(parts, op.SourceID+" -> "+op.TargetID)
	}
	return strings.Join(parts, " ")
}
