package dialogue

// Phase is the position of a turn in its state machine:
// Start → Classifying → {Clarifying | Resolved} → Complete.
type Phase string

const (
	PhaseStart       Phase = "start"
	PhaseClassifying Phase = "classifying"
	PhaseClarifying  Phase = "clarifying"
	PhaseResolved    Phase = "resolved"
	PhaseComplete    Phase = "complete"
)

func (p Phase) String() string { return string(p) }
