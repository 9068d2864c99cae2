package intent

import (
	"fmt"
	"strings"

	"github.com/aretw0/canvasbuilder/pkg/domain"
)

// SystemInstruction tells the provider which JSON shape to answer with.
var SystemInstruction = buildSystemInstruction()

func buildSystemInstruction() string {
	names := make([]string, 0, len(domain.Categories())+1)
	for _, c := range domain.Categories() {
		names = append(names, string(c))
	}
	names = append(names, string(domain.IntentUnclear))

	return `You classify instructions given to a visual playbook builder (a canvas of nodes and edges).
Answer with a single JSON object and nothing else:
{
  "intent": one of ` + strings.Join(names, ", ") + `,
  "confidence": number between 0 and 1,
  "entities": {
    "nodeType": "...", "nodeLabel": "...", "nodeId": "...", "position": {"x": 0, "y": 0},
    "sourceNodeId": "...", "targetNodeId": "...",
    "scopeType": "skill|knowledge|action", "scopeName": "..."
  },
  "reasoning": "one sentence",
  "needsClarification": true or false,
  "clarificationQuestion": "question to ask when unsure"
}
Omit entities you cannot infer. Prefer node ids from the canvas summary when the user refers to an existing node.`
}

// promptConfig bounds how much context goes into a prompt.
type promptConfig struct {
	maxNodeLabels   int
	historyLimit    int
	maxHistoryChars int
}

// buildPrompt renders the user prompt for message with the canvas snapshot and
// recent history embedded.
func buildPrompt(message string, canvas *domain.CanvasContext, history []domain.ChatMessage, cfg promptConfig) string {
	var b strings.Builder

	b.WriteString("## Canvas\n")
	if canvas.IsEmpty() {
		b.WriteString("The canvas is empty (no nodes).\n")
		if canvas != nil {
			fmt.Fprintf(&b, "Saved: %t\n", canvas.IsSaved)
		}
	} else {
		fmt.Fprintf(&b, "Nodes: %d\nEdges: %d\nSaved: %t\n", canvas.NodeCount, canvas.EdgeCount, canvas.IsSaved)
		if len(canvas.NodeTypes) > 0 {
			fmt.Fprintf(&b, "Node types: %s\n", strings.Join(canvas.NodeTypes, ", "))
		}
		if canvas.SelectedNodeID != "" {
			fmt.Fprintf(&b, "Selected node: %s\n", canvas.SelectedNodeID)
		}
		if len(canvas.Nodes) > 0 {
			b.WriteString("Node labels:\n")
			for i, n := range canvas.Nodes {
				if i == cfg.maxNodeLabels {
					fmt.Fprintf(&b, "- ... and %d more\n", len(canvas.Nodes)-cfg.maxNodeLabels)
					break
				}
				fmt.Fprintf(&b, "- %s [%s] %q\n", n.ID, n.Type, n.Label)
			}
		}
	}

	if len(history) > 0 {
		b.WriteString("\n## Recent conversation\n")
		start := 0
		if cfg.historyLimit > 0 && len(history) > cfg.historyLimit {
			start = len(history) - cfg.historyLimit
		}
		for _, m := range history[start:] {
			content := m.Content
			if m.Role == domain.RoleAssistant {
				content = truncate(content, cfg.maxHistoryChars)
			}
			fmt.Fprintf(&b, "%s: %s\n", m.Role, content)
		}
	}

	b.WriteString("\n## Instruction\n")
	b.WriteString(message)
	b.WriteString("\n")
	return b.String()
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
