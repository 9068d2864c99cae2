package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/canvasbuilder/internal/presentation/tui"
	"github.com/aretw0/canvasbuilder/pkg/runner"
)

// ChatOptions configures an interactive chat session.
type ChatOptions struct {
	SessionID string
	// Fresh deletes the session before starting.
	Fresh bool
	// JSON switches to NDJSON input and output.
	JSON bool
	// Styled enables the banner, markdown rendering and colors. Callers set it
	// when the output is a terminal.
	Styled  bool
	Width   int
	Version string
	In      io.Reader
	Out     io.Writer
}

// RunChat runs the read-classify-respond loop until the input ends, the user
// types exit, or the process is terminated. Ctrl+C interrupts the current
// turn only.
func RunChat(ctx context.Context, app *App, opts ChatOptions) error {
	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if opts.SessionID == "" {
		opts.SessionID = "cli"
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()

	if opts.Fresh {
		if err := app.Sessions.Delete(ctx, opts.SessionID); err != nil {
			return fmt.Errorf("failed to reset session %q: %w", opts.SessionID, err)
		}
	}

	var handler runner.IOHandler
	switch {
	case opts.JSON:
		handler = runner.NewJSONHandler(in, out)
	case opts.Styled:
		width := opts.Width
		if width <= 0 {
			width = 80
		}
		tui.PrintBanner(out, opts.Version)
		handler = runner.NewTextHandler(in, out,
			runner.WithTextHandlerRenderer(tui.NewRenderer(width)),
			runner.WithTextHandlerStyle(tui.Style),
		)
	default:
		handler = runner.NewTextHandler(in, out)
	}

	app.Logger.Info("Chat session active", "session_id", opts.SessionID)
	return app.NewRunner(runner.WithInputHandler(handler)).Run(ctx, opts.SessionID)
}
