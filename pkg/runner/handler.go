package runner

import (
	"context"

	"github.com/aretw0/canvasbuilder/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (terminal) and JSON (structured) modes.
type IOHandler interface {
	// Output presents one turn event to the user.
	Output(ctx context.Context, ev domain.StreamEvent) error

	// Input reads the next line from the user. It returns io.EOF when the
	// input is exhausted.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (errors, status) distinct from
	// the assistant's replies.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms assistant text before it is printed.
// This allows markdown rendering without coupling the core package to a terminal library.
type ContentRenderer func(string) (string, error)
