package domain

import (
	"context"
	"time"
)

// ClassificationEvent is reported after every classification attempt.
type ClassificationEvent struct {
	Message        string
	Classification Classification
	Provider       string
	Fallback       bool
	// Reason is the error that forced the fallback path, if any.
	Reason   error
	Duration time.Duration
}

// TurnOutcome is how a turn ended.
type TurnOutcome string

const (
	OutcomeResolved   TurnOutcome = "resolved"
	OutcomeClarifying TurnOutcome = "clarifying"
	OutcomeCancelled  TurnOutcome = "cancelled"
	OutcomeFailed     TurnOutcome = "failed"
	OutcomeAborted    TurnOutcome = "aborted"
)

// TurnEvent is reported once a turn stream terminates.
type TurnEvent struct {
	SessionID string
	Outcome   TurnOutcome
	Category  IntentCategory
	Events    int
	Duration  time.Duration
}

// LifecycleHooks defines callbacks for observability.
type LifecycleHooks struct {
	OnClassified    func(context.Context, *ClassificationEvent)
	OnClarification func(context.Context, *ClarificationRequest)
	OnTurnComplete  func(context.Context, *TurnEvent)
}
