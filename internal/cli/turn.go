package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/canvasbuilder/internal/presentation/graph"
	"github.com/aretw0/canvasbuilder/pkg/clarify"
	"github.com/aretw0/canvasbuilder/pkg/dialogue"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/runner"
)

// ClassifyOutput is what the classify command prints.
type ClassifyOutput struct {
	Classification     domain.Classification `json:"classification"`
	NeedsClarification bool                  `json:"needs_clarification"`
}

// Classify runs a single classification of message against canvas.
func Classify(ctx context.Context, app *App, message string, canvas *domain.CanvasContext) (ClassifyOutput, error) {
	msg, err := dialogue.SanitizeInput(message)
	if err != nil {
		return ClassifyOutput{}, err
	}
	cls, err := app.Classifier.Classify(ctx, msg, canvas)
	if err != nil {
		return ClassifyOutput{}, err
	}
	return ClassifyOutput{
		Classification:     cls,
		NeedsClarification: clarify.NeedsClarification(cls.Confidence, nil),
	}, nil
}

// TurnOptions configures a one-shot turn.
type TurnOptions struct {
	SessionID     string
	Message       string
	Clarification *domain.ClarificationResponse
	Canvas        *domain.CanvasContext
	// Mermaid prints a flowchart preview of the canvas with the turn's
	// operations applied instead of the events.
	Mermaid bool
	Out     io.Writer
}

// RunTurn processes one turn and prints its events as NDJSON, or the Mermaid
// preview when requested.
func RunTurn(ctx context.Context, app *App, opts TurnOptions) (*runner.Result, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	res, err := app.NewRunner().Collect(ctx, runner.Request{
		SessionID:     opts.SessionID,
		Message:       opts.Message,
		Clarification: opts.Clarification,
		Canvas:        opts.Canvas,
	})
	if err != nil {
		return nil, err
	}

	if opts.Mermaid {
		var ops []domain.CanvasOperation
		for _, ev := range res.Events {
			if ev.Kind == domain.EventCanvasOperation && ev.Operation != nil {
				ops = append(ops, *ev.Operation)
			}
		}
		var overlay *graph.Overlay
		if opts.Canvas != nil && opts.Canvas.SelectedNodeID != "" {
			overlay = &graph.Overlay{SelectedNode: opts.Canvas.SelectedNodeID}
		}
		_, err := io.WriteString(out, graph.GenerateMermaid(opts.Canvas, ops, overlay))
		return res, err
	}

	enc := json.NewEncoder(out)
	for _, ev := range res.Events {
		if err := enc.Encode(ev); err != nil {
			return res, fmt.Errorf("failed to write event: %w", err)
		}
	}
	return res, nil
}

// DecodeCanvas parses a canvas snapshot. Empty input yields nil.
func DecodeCanvas(data []byte) (*domain.CanvasContext, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var canvas domain.CanvasContext
	if err := json.Unmarshal(data, &canvas); err != nil {
		return nil, fmt.Errorf("invalid canvas JSON: %w", err)
	}
	return &canvas, nil
}
