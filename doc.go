/*
Package canvasbuilder turns natural-language messages into edits of a visual
workflow canvas.

A turn flows through a classifier (an LLM completion provider with a keyword
fallback), optional entity resolution against the canvas and a scope catalog,
clarification when the intent is uncertain, and a translator that emits canvas
operations. Every turn is a lazy stream of events that always ends with a
single Complete event.

# Architecture

The core packages hold no I/O. Hosts drive them through adapters:

  - pkg/dialogue: the turn orchestrator.
  - pkg/intent, pkg/fallback, pkg/clarify, pkg/reclassify, pkg/translator: the stages.
  - pkg/provider: completion providers and their middleware chain.
  - pkg/session, pkg/runner: session persistence and the interactive loop.
  - pkg/adapters: memory and Redis stores, the HTTP API and the MCP server.

# Usage

	classifier := intent.NewClassifier(provider.NewStatic(`{"intent":"Undo","confidence":0.9}`))
	orch := dialogue.NewOrchestrator(classifier)

	seq, err := orch.Stream(ctx, &domain.Turn{SessionID: "s1", Message: "undo that"})
	if err != nil {
		log.Fatal(err)
	}
	for ev := range seq {
		fmt.Println(ev.Kind, ev.Text)
	}

The canvas command (cmd/canvas) wires the same pieces from a config file.
*/
package canvasbuilder
