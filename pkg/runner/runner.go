package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/aretw0/canvasbuilder/internal/logging"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/session"
	"github.com/google/uuid"
)

// Dialogue produces the event stream of one turn.
type Dialogue interface {
	Stream(ctx context.Context, turn *domain.Turn) (iter.Seq[domain.StreamEvent], error)
}

// Request is one user turn as a transport receives it.
type Request struct {
	// SessionID selects the session. A new ID is generated when empty.
	SessionID     string                        `json:"session_id,omitempty"`
	Message       string                        `json:"message"`
	Clarification *domain.ClarificationResponse `json:"clarification,omitempty"`
	// Canvas overrides the session's last known canvas for this turn.
	Canvas *domain.CanvasContext `json:"canvas,omitempty"`
}

// Sink receives each event of a turn together with the session change it
// caused (nil when the event changed nothing). Returning an error stops the turn.
type Sink func(ev domain.StreamEvent, diff *domain.SessionDiff) error

// Result is a fully collected turn.
type Result struct {
	SessionID string                `json:"session_id"`
	Events    []domain.StreamEvent  `json:"events"`
	Diffs     []*domain.SessionDiff `json:"diffs,omitempty"`
	// Pending is the question left open by the turn, if any.
	Pending *domain.ClarificationRequest `json:"pending,omitempty"`
}

// Runner executes turns against persisted sessions.
type Runner struct {
	dialogue Dialogue
	sessions *session.Manager
	handler  IOHandler
	logger   *slog.Logger
	newID    func() string
}

// New creates a Runner.
func New(dialogue Dialogue, sessions *session.Manager, opts ...Option) *Runner {
	r := &Runner{
		dialogue: dialogue,
		sessions: sessions,
		logger:   logging.NewNop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sessions returns the session manager turns are recorded through.
func (r *Runner) Sessions() *session.Manager {
	return r.sessions
}

// Turn runs one turn with exclusive access to its session and passes every
// event to sink after recording it. It returns the session ID used.
func (r *Runner) Turn(ctx context.Context, req Request, sink Sink) (string, error) {
	if req.SessionID == "" {
		req.SessionID = r.newID()
	}
	log := r.logger.With("session_id", req.SessionID)

	err := r.sessions.Turn(ctx, req.SessionID, req.Message, func(ctx context.Context, state domain.SessionState, record session.Recorder) error {
		seq, err := r.dialogue.Stream(ctx, &domain.Turn{
			SessionID:     req.SessionID,
			Message:       req.Message,
			Clarification: req.Clarification,
			Canvas:        req.Canvas,
			Session:       state,
		})
		if err != nil {
			return err
		}

		cancelled := req.Clarification != nil && req.Clarification.Type == domain.ResponseCancelled
		for ev := range seq {
			diff, err := record(ev)
			if err == nil && ev.Kind == domain.EventComplete && cancelled && state.PendingClarification != nil {
				// A cancelled question is dropped once the turn completes.
				diff, err = record(domain.StateUpdateEvent(state.WithoutPendingClarification()))
			}
			if err != nil {
				log.Error("Failed to record turn event", "kind", ev.Kind, "err", err)
				// The consumer still sees a terminated stream.
				if sinkErr := sink(domain.ErrorEvent("The conversation could not be saved.", domain.CodeSessionSaveFailed), nil); sinkErr == nil {
					_ = sink(domain.CompleteEvent(), nil)
				}
				return err
			}
			if err := sink(ev, diff); err != nil {
				return err
			}
		}
		return nil
	})
	return req.SessionID, err
}

// Collect runs a turn and gathers its events.
func (r *Runner) Collect(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}
	id, err := r.Turn(ctx, req, func(ev domain.StreamEvent, diff *domain.SessionDiff) error {
		res.Events = append(res.Events, ev)
		if diff != nil {
			res.Diffs = append(res.Diffs, diff)
		}
		if ev.Kind == domain.EventClarification {
			res.Pending = ev.Clarification
		}
		return nil
	})
	res.SessionID = id
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Run reads user lines from the IOHandler until input ends or ctx is done,
// running each as a turn of sessionID. A line typed while a question is
// pending is interpreted as the answer to it (see ParseReply). Ctrl+C cancels
// the turn in flight without leaving the loop.
func (r *Runner) Run(ctx context.Context, sessionID string) error {
	handler := r.handler
	if handler == nil {
		handler = NewTextHandler(nil, nil)
	}

	if ctx.Err() != nil {
		return nil
	}

	var pending *domain.ClarificationRequest
	if state, err := r.sessions.Load(ctx, sessionID); err == nil {
		pending = state.PendingClarification
	} else if !errors.Is(err, domain.ErrSessionNotFound) {
		return fmt.Errorf("failed to load session: %w", err)
	}

	for {
		text, err := handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if isExit(text) {
			return nil
		}

		req := Request{SessionID: sessionID, Message: text}
		if pending != nil {
			resp := ParseReply(pending, text)
			req.Clarification = &resp
		}

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		next := pending
		_, err = r.Turn(turnCtx, req, func(ev domain.StreamEvent, diff *domain.SessionDiff) error {
			switch {
			case ev.Kind == domain.EventClarification:
				next = ev.Clarification
			case diff != nil && diff.ClarificationCleared:
				next = nil
			}
			return handler.Output(turnCtx, ev)
		})
		interrupted := turnCtx.Err() != nil
		stop()
		pending = next

		if ctx.Err() != nil {
			return nil
		}
		if interrupted {
			_ = handler.SystemOutput(ctx, "Interrupted.")
			continue
		}
		if err != nil {
			r.logger.Error("Turn failed", "session_id", sessionID, "err", err)
			_ = handler.SystemOutput(ctx, err.Error())
		}
	}
}

func isExit(text string) bool {
	switch strings.ToLower(text) {
	case "exit", "quit", "/exit", "/quit":
		return true
	}
	return false
}
