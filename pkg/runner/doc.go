/*
Package runner executes dialogue turns against persisted sessions.

A Runner ties a session.Manager to a dialogue stream: each turn loads the
session under its lock, streams the orchestrator's events and records the state
changes they carry before handing each event on. Transports (HTTP, MCP) use
Turn and Collect directly; the interactive chat uses Run with an IOHandler.

Usage:

	r := runner.New(orchestrator, sessions)
	res, err := r.Collect(ctx, runner.Request{SessionID: "s1", Message: "add a review step"})
*/
package runner
