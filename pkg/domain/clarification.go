package domain

import "slices"

// ClarificationType selects the question taxonomy used for a clarification.
type ClarificationType string

const (
	ClarifyIntent               ClarificationType = "intent"
	ClarifyEntity               ClarificationType = "entity"
	ClarifyScope                ClarificationType = "scope"
	ClarifySelection            ClarificationType = "selection"
	ClarifyGeneral              ClarificationType = "general"
	ClarifyIntentDisambiguation ClarificationType = "intent_disambiguation"
)

// ClarificationRequest is a question posed back to the user.
type ClarificationRequest struct {
	ID                string                `json:"id"`
	Type              ClarificationType     `json:"type"`
	Question          string                `json:"question"`
	Options           []ClarificationOption `json:"options,omitempty"`
	AllowFreeText     bool                  `json:"allow_free_text"`
	ScopeCategory     string                `json:"scope_category,omitempty"`
	UnderstoodContext string                `json:"understood_context,omitempty"`
	AmbiguityReason   string                `json:"ambiguity_reason,omitempty"`
}

// ClarificationOption is one selectable answer to a clarification.
type ClarificationOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Clone returns a copy that shares no slices with r.
func (r ClarificationRequest) Clone() ClarificationRequest {
	r.Options = slices.Clone(r.Options)
	return r
}

// Option looks up an option by id.
func (r *ClarificationRequest) Option(id string) (ClarificationOption, bool) {
	if r == nil {
		return ClarificationOption{}, false
	}
	for _, o := range r.Options {
		if o.ID == id {
			return o, true
		}
	}
	return ClarificationOption{}, false
}

// ResponseType is the kind of reply the user gave to a clarification.
type ResponseType string

const (
	ResponseCancelled      ResponseType = "cancelled"
	ResponseConfirmed      ResponseType = "confirmed"
	ResponseRejected       ResponseType = "rejected"
	ResponseOptionSelected ResponseType = "option_selected"
	ResponseFreeText       ResponseType = "free_text"
)

// ClarificationResponse is the user's reply, relayed by the host.
type ClarificationResponse struct {
	SessionID              string          `json:"session_id"`
	Type                   ResponseType    `json:"type"`
	SelectedOptionID       string          `json:"selected_option_id,omitempty"`
	SelectedOptionLabel    string          `json:"selected_option_label,omitempty"`
	FreeText               string          `json:"free_text,omitempty"`
	OriginalMessage        string          `json:"original_message,omitempty"`
	OriginalClassification *Classification `json:"original_classification,omitempty"`
}

// EntityResolutionResult is what the entity/scope resolver found for a reference.
type EntityResolutionResult struct {
	ReferenceText string        `json:"reference_text"`
	EntityType    string        `json:"entity_type"`
	ScopeCategory string        `json:"scope_category,omitempty"`
	Confidence    float64       `json:"confidence"`
	Candidates    []EntityMatch `json:"candidates,omitempty"`
}

// EntityMatch is a candidate for a resolved reference.
type EntityMatch struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// Best returns the highest-confidence candidate.
func (r *EntityResolutionResult) Best() (EntityMatch, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return EntityMatch{}, false
	}
	best := r.Candidates[0]
	for _, m := range r.Candidates[1:] {
		if m.Confidence > best.Confidence {
			best = m
		}
	}
	return best, true
}
