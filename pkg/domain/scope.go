package domain

// Scope categories a node can be linked to.
const (
	ScopeSkill     = "skill"
	ScopeKnowledge = "knowledge"
	ScopeAction    = "action"
)

// Scope is a linkable skill, knowledge source or action known to the host.
type Scope struct {
	ID          string `json:"id" yaml:"id"`
	Category    string `json:"category" yaml:"category"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}
