// Package fallback implements the deterministic keyword classifier used when
// the completion provider is unavailable or returns something unusable.
package fallback

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/canvasbuilder/pkg/domain"
)

// ReasoningPrefix marks every classification produced by this package.
const ReasoningPrefix = "Fallback classification"

// rule maps a keyword trigger to a category. A rule matches when all of its
// patterns match the message.
type rule struct {
	category domain.IntentCategory
	keyword  string
	patterns []*regexp.Regexp
}

func (r rule) matches(message string) bool {
	for _, p := range r.patterns {
		if !p.MatchString(message) {
			return false
		}
	}
	return true
}

func word(w string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + w + `\b`)
}

var (
	reAdd      = word(`add(s|ed|ing)?`)
	reCreate   = word(`creat(e|es|ed|ing)`)
	reNode     = word(`nodes?`)
	reConnect  = word(`(connect(s|ed|ing)?|link(s|ed|ing)?)`)
	reUndo     = word(`undo`)
	rePlaybook = word(`playbooks?`)
	reRemove   = word(`(remove[sd]?|removing|delete[sd]?|deleting)`)
	reConfig   = word(`(configure[sd]?|configuring|set|sets|setting)`)
	reQuestion = regexp.MustCompile(`\?\s*$`)
	reWhWord   = regexp.MustCompile(`(?i)^\s*(what|how|why)\b`)
)

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{domain.IntentAddNode, "add", []*regexp.Regexp{reAdd}},
	{domain.IntentAddNode, "create node", []*regexp.Regexp{reCreate, reNode}},
	{domain.IntentConnectNodes, "connect", []*regexp.Regexp{reConnect}},
	{domain.IntentUndo, "undo", []*regexp.Regexp{reUndo}},
	{domain.IntentCreatePlaybook, "create playbook", []*regexp.Regexp{reCreate, rePlaybook}},
	{domain.IntentRemoveNode, "remove", []*regexp.Regexp{reRemove}},
	{domain.IntentConfigureNode, "configure", []*regexp.Regexp{reConfig}},
	{domain.IntentQueryStatus, "question", []*regexp.Regexp{reQuestion}},
	{domain.IntentQueryStatus, "question word", []*regexp.Regexp{reWhWord}},
}

// Classify returns the keyword-based classification of message.
// Matches get domain.FallbackConfidence; no match yields IntentUnclear with
// domain.FallbackUnclearConfidence. Both stay below the clarification threshold.
func Classify(message string) domain.Classification {
	for _, r := range rules {
		if !r.matches(message) {
			continue
		}
		cls := domain.Classification{
			Category:   r.category,
			Action:     domain.ActionFor(r.category),
			Confidence: domain.FallbackConfidence,
			Reasoning:  fmt.Sprintf("%s: matched keyword %q", ReasoningPrefix, r.keyword),
		}
		cls.Entities, cls.Payload = extractEntities(r.category, message)
		cls.NeedsClarification = cls.Confidence < domain.IntentConfidenceThreshold
		return cls
	}

	return domain.Classification{
		Category:           domain.IntentUnclear,
		Action:             domain.ActionFor(domain.IntentUnclear),
		Confidence:         domain.FallbackUnclearConfidence,
		Reasoning:          ReasoningPrefix + ": no keyword matched",
		NeedsClarification: true,
	}
}

// Candidates returns every category whose trigger matches message, in rule
// order and without duplicates.
func Candidates(message string) []domain.IntentCategory {
	var out []domain.IntentCategory
	seen := make(map[domain.IntentCategory]bool)
	for _, r := range rules {
		if seen[r.category] || !r.matches(message) {
			continue
		}
		seen[r.category] = true
		out = append(out, r.category)
	}
	return out
}

var (
	reNodeType = regexp.MustCompile(`(?i)\b([a-z][\w-]*)\s+nodes?\b`)
	reQuoted   = regexp.MustCompile(`["“]([^"”]+)["”]`)
	reNamed    = regexp.MustCompile(`(?i)\b(?:called|named|for)\s+(.+?)\s*[.!?]*$`)
)

// stopwords are never taken as node types.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "new": true, "this": true, "that": true,
	"another": true, "one": true, "some": true, "selected": true, "each": true, "every": true,
}

func extractEntities(category domain.IntentCategory, message string) (map[string]string, domain.EntityPayload) {
	entities := make(map[string]string)
	var payload domain.EntityPayload

	label := ""
	if m := reQuoted.FindStringSubmatch(message); m != nil {
		label = strings.TrimSpace(m[1])
	}

	switch category {
	case domain.IntentAddNode, domain.IntentRemoveNode, domain.IntentConfigureNode:
		node := &domain.NodeEntity{Label: label}
		if m := reNodeType.FindStringSubmatch(message); m != nil && !stopwords[strings.ToLower(m[1])] {
			node.Type = strings.ToLower(m[1])
		}
		if node.Type != "" {
			entities["nodeType"] = node.Type
		}
		if node.Label != "" {
			entities["label"] = node.Label
		}
		if node.Type != "" || node.Label != "" {
			payload.Node = node
		}
	case domain.IntentCreatePlaybook:
		name := label
		if name == "" {
			if m := reNamed.FindStringSubmatch(message); m != nil {
				name = strings.TrimSpace(m[1])
			}
		}
		if name != "" {
			entities["playbookName"] = name
		}
	}

	if len(entities) == 0 {
		entities = nil
	}
	return entities, payload
}
