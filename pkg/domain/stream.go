package domain

// EventKind discriminates StreamEvent variants.
type EventKind string

const (
	EventThinking        EventKind = "thinking"
	EventMessage         EventKind = "message"
	EventCanvasOperation EventKind = "canvas_operation"
	EventClarification   EventKind = "clarification"
	EventError           EventKind = "error"
	EventStateUpdate     EventKind = "state_update"
	EventComplete        EventKind = "complete"
)

// Stable error codes carried by EventError.
const (
	CodeTranslationFailed      = "TRANSLATION_FAILED"
	CodeResolutionFailed       = "RESOLUTION_FAILED"
	CodeReclassificationFailed = "RECLASSIFICATION_FAILED"
	CodeClarificationFailed    = "CLARIFICATION_FAILED"
	CodeSessionSaveFailed      = "SESSION_SAVE_FAILED"
	CodeInternal               = "INTERNAL_ERROR"
)

// StreamEvent is a closed tagged union: Kind selects which payload field is set.
//
//   - EventThinking, EventMessage: Text
//   - EventCanvasOperation: Operation
//   - EventClarification: Clarification, with Text holding the rendered question.
//     Classification, when set, is the result that prompted the question.
//   - EventError: Text and Code
//   - EventStateUpdate: State
//   - EventComplete: nothing
type StreamEvent struct {
	Kind          EventKind             `json:"kind"`
	Text          string                `json:"text,omitempty"`
	Code          string                `json:"code,omitempty"`
	Operation     *CanvasOperation      `json:"operation,omitempty"`
	Clarification *ClarificationRequest `json:"clarification,omitempty"`

	// Classification accompanies EventClarification so the host can record it
	// as SessionState.LastClassification.
	Classification *Classification `json:"classification,omitempty"`
	State          *SessionState   `json:"state,omitempty"`
}

func ThinkingEvent(text string) StreamEvent {
	return StreamEvent{Kind: EventThinking, Text: text}
}

func MessageEvent(text string) StreamEvent {
	return StreamEvent{Kind: EventMessage, Text: text}
}

func OperationEvent(op CanvasOperation) StreamEvent {
	return StreamEvent{Kind: EventCanvasOperation, Operation: &op}
}

func ClarificationEvent(text string, req ClarificationRequest) StreamEvent {
	r := req.Clone()
	return StreamEvent{Kind: EventClarification, Text: text, Clarification: &r}
}

func ErrorEvent(message, code string) StreamEvent {
	return StreamEvent{Kind: EventError, Text: message, Code: code}
}

func StateUpdateEvent(state SessionState) StreamEvent {
	s := state.Clone()
	return StreamEvent{Kind: EventStateUpdate, State: &s}
}

func CompleteEvent() StreamEvent {
	return StreamEvent{Kind: EventComplete}
}

// IsTerminal reports whether the event ends a turn.
func (e StreamEvent) IsTerminal() bool {
	return e.Kind == EventComplete
}

// OperationKind names a canvas patch.
type OperationKind string

const (
	OpCreatePlaybook OperationKind = "createPlaybook"
	OpAddNode        OperationKind = "addNode"
	OpRemoveNode     OperationKind = "removeNode"
	OpAddEdge        OperationKind = "addEdge"
	OpUpdateNode     OperationKind = "updateNode"
	OpLinkScope      OperationKind = "linkScope"
	OpCreateScope    OperationKind = "createScope"
	OpLayout         OperationKind = "layout"
	OpUndo           OperationKind = "undo"
)

// CanvasOperation is a single patch the host applies to the canvas.
type CanvasOperation struct {
	ID       string            `json:"id"`
	Op       OperationKind     `json:"op"`
	NodeID   string            `json:"node_id,omitempty"`
	NodeType string            `json:"node_type,omitempty"`
	Label    string            `json:"label,omitempty"`
	SourceID string            `json:"source_id,omitempty"`
	TargetID string            `json:"target_id,omitempty"`
	Position *Position         `json:"position,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}
