package clarify

import "github.com/aretw0/canvasbuilder/pkg/domain"

type categoryText struct {
	label       string
	phrase      string // completes "Did you mean to ..."
	description string
}

var categoryTexts = map[domain.IntentCategory]categoryText{
	domain.IntentCreatePlaybook: {"Create a playbook", "create a new playbook", "Start a new playbook on an empty canvas"},
	domain.IntentAddNode:        {"Add a node", "add a node", "Place a new step on the canvas"},
	domain.IntentRemoveNode:     {"Remove a node", "remove a node", "Delete an existing step"},
	domain.IntentConnectNodes:   {"Connect nodes", "connect two nodes", "Draw an edge between two steps"},
	domain.IntentConfigureNode:  {"Configure a node", "change a node's settings", "Edit the properties of a step"},
	domain.IntentLinkScope:      {"Link a scope", "link a skill or knowledge source", "Attach a skill, knowledge source or action to a step"},
	domain.IntentCreateScope:    {"Create a scope", "create a new scope", "Define a new skill, knowledge source or action"},
	domain.IntentQueryStatus:    {"Ask about the canvas", "ask about the current canvas", "Get information without changing anything"},
	domain.IntentModifyLayout:   {"Rearrange the layout", "rearrange the layout", "Move or align steps on the canvas"},
	domain.IntentUndo:           {"Undo", "undo the last change", "Revert the most recent change"},
	domain.IntentUnclear:        {"Something else", "do something else", "Describe what you want in your own words"},
	domain.IntentClarify:        {"Something else", "do something else", "Describe what you want in your own words"},
}

// Label returns the short, user-facing name of a category.
func Label(c domain.IntentCategory) string {
	if t, ok := categoryTexts[c]; ok {
		return t.label
	}
	return string(c)
}

// Description returns a one-line explanation of a category.
func Description(c domain.IntentCategory) string {
	return categoryTexts[c].description
}

func phrase(c domain.IntentCategory) string {
	if t, ok := categoryTexts[c]; ok {
		return t.phrase
	}
	return string(c)
}

func scopeNoun(category string) string {
	switch category {
	case "knowledge":
		return "knowledge source"
	case "skill":
		return "skill"
	case "action":
		return "action"
	default:
		return "scope"
	}
}
