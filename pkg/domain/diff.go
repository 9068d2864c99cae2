package domain

import (
	"reflect"
	"time"
)

// SessionDiff represents the changes between two session states.
// It is designed to be serialized to JSON for partial updates on the client.
type SessionDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	// Appended contains the history entries added since the old state.
	Appended []ChatMessage `json:"appended,omitempty"`

	LastActive *time.Time     `json:"last_active,omitempty"`
	Canvas     *CanvasContext `json:"canvas,omitempty"`

	// PendingClarification is set when a new question is waiting for an answer.
	PendingClarification *ClarificationRequest `json:"pending_clarification,omitempty"`
	// ClarificationCleared is true when a previously pending question was resolved.
	ClarificationCleared bool `json:"clarification_cleared,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// It returns nil when nothing changed.
func Diff(oldState, newState *SessionState) *SessionDiff {
	if newState == nil {
		return nil
	}

	diff := &SessionDiff{
		SessionID: newState.SessionID,
		Appended:  diffHistory(oldState, newState),
	}

	if oldState == nil || !oldState.LastActive.Equal(newState.LastActive) {
		t := newState.LastActive
		diff.LastActive = &t
	}
	if newState.Canvas != nil && (oldState == nil || !reflect.DeepEqual(oldState.Canvas, newState.Canvas)) {
		diff.Canvas = newState.Canvas
	}

	switch {
	case newState.PendingClarification != nil:
		if oldState == nil || oldState.PendingClarification == nil ||
			oldState.PendingClarification.ID != newState.PendingClarification.ID {
			diff.PendingClarification = newState.PendingClarification
		}
	case oldState != nil && oldState.PendingClarification != nil:
		diff.ClarificationCleared = true
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// diffHistory assumes append-only history.
func diffHistory(old, new *SessionState) []ChatMessage {
	if len(new.History) == 0 {
		return nil
	}
	if old == nil {
		return new.History
	}
	if len(new.History) > len(old.History) {
		return new.History[len(old.History):]
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return len(d.Appended) == 0 &&
		d.LastActive == nil &&
		d.Canvas == nil &&
		d.PendingClarification == nil &&
		!d.ClarificationCleared
}
