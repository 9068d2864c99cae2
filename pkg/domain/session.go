package domain

import (
	"slices"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of the conversation history.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionState is the dialogue context carried between turns.
// Methods never mutate the receiver; they return updated copies.
type SessionState struct {
	SessionID  string         `json:"session_id"`
	History    []ChatMessage  `json:"history,omitempty"`
	Canvas     *CanvasContext `json:"canvas,omitempty"`
	LastActive time.Time      `json:"last_active"`

	// PendingClarification is the last question asked and not yet answered.
	PendingClarification *ClarificationRequest `json:"pending_clarification,omitempty"`
	// LastClassification is the classification that triggered PendingClarification.
	LastClassification *Classification `json:"last_classification,omitempty"`

	// Sealed holds the encrypted session when it was stored by an encrypting
	// store; every other field except SessionID and LastActive is then empty.
	Sealed []byte `json:"sealed,omitempty"`
}

// NewSessionState creates an empty session.
func NewSessionState(sessionID string, now time.Time) SessionState {
	return SessionState{
		SessionID:  sessionID,
		LastActive: now,
	}
}

// Clone returns a deep copy of the session.
func (s SessionState) Clone() SessionState {
	out := s
	out.History = slices.Clone(s.History)
	out.Sealed = slices.Clone(s.Sealed)
	if s.Canvas != nil {
		c := *s.Canvas
		c.NodeTypes = slices.Clone(s.Canvas.NodeTypes)
		c.Nodes = slices.Clone(s.Canvas.Nodes)
		out.Canvas = &c
	}
	if s.PendingClarification != nil {
		req := s.PendingClarification.Clone()
		out.PendingClarification = &req
	}
	if s.LastClassification != nil {
		cls := s.LastClassification.Clone()
		out.LastClassification = &cls
	}
	return out
}

// WithExchange appends a user message and its reply, clears any pending
// clarification and advances LastActive to now.
func (s SessionState) WithExchange(user, assistant string, now time.Time) SessionState {
	out := s.Clone()
	if user != "" {
		out.History = append(out.History, ChatMessage{Role: RoleUser, Content: user, Timestamp: now})
	}
	if assistant != "" {
		out.History = append(out.History, ChatMessage{Role: RoleAssistant, Content: assistant, Timestamp: now})
	}
	out.PendingClarification = nil
	out.LastClassification = nil
	out.LastActive = now
	return out
}

// WithPendingClarification records the question asked for cls.
func (s SessionState) WithPendingClarification(req ClarificationRequest, cls Classification, now time.Time) SessionState {
	out := s.Clone()
	r := req.Clone()
	c := cls.Clone()
	out.PendingClarification = &r
	out.LastClassification = &c
	out.LastActive = now
	return out
}

// WithQuestion appends the user message and the clarification asked in
// reply, and records req as pending for cls.
func (s SessionState) WithQuestion(user string, req ClarificationRequest, cls Classification, now time.Time) SessionState {
	out := s.WithPendingClarification(req, cls, now)
	if user != "" {
		out.History = append(out.History, ChatMessage{Role: RoleUser, Content: user, Timestamp: now})
	}
	if req.Question != "" {
		out.History = append(out.History, ChatMessage{Role: RoleAssistant, Content: req.Question, Timestamp: now})
	}
	return out
}

// WithoutPendingClarification drops the pending question and the
// classification it was asked for.
func (s SessionState) WithoutPendingClarification() SessionState {
	out := s.Clone()
	out.PendingClarification = nil
	out.LastClassification = nil
	return out
}

// LastUserMessage returns the content of the latest user message, if any.
func (s SessionState) LastUserMessage() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == RoleUser {
			return s.History[i].Content
		}
	}
	return ""
}

// WithCanvas returns a copy carrying the given canvas snapshot.
func (s SessionState) WithCanvas(canvas *CanvasContext) SessionState {
	if canvas == nil {
		return s.Clone()
	}
	out := s.Clone()
	c := *canvas
	c.NodeTypes = slices.Clone(canvas.NodeTypes)
	c.Nodes = slices.Clone(canvas.Nodes)
	out.Canvas = &c
	return out
}

// RecentHistory returns at most n of the latest messages.
func (s SessionState) RecentHistory(n int) []ChatMessage {
	if n <= 0 || len(s.History) <= n {
		return slices.Clone(s.History)
	}
	return slices.Clone(s.History[len(s.History)-n:])
}

// Turn is one user message, optionally answering a clarification, processed
// against the current session and canvas.
type Turn struct {
	SessionID     string                 `json:"session_id"`
	Message       string                 `json:"message"`
	Clarification *ClarificationResponse `json:"clarification,omitempty"`
	Canvas        *CanvasContext         `json:"canvas,omitempty"`
	Session       SessionState           `json:"session"`
}
