// Package translator turns resolved classifications into canvas operations
// and the message that describes them to the user.
package translator

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/canvasbuilder/internal/logging"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/ports"
	"github.com/google/uuid"
)

// DefaultNodeType is used when an AddNode classification names no type.
const DefaultNodeType = "task"

// Translator is the default ports.OperationTranslator.
type Translator struct {
	newID  func() string
	logger *slog.Logger
}

// Option configures the Translator.
type Option func(*Translator)

// WithLogger configures a logger for the Translator.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Translator) {
		t.logger = logger
	}
}

// WithIDGenerator replaces the operation and node ID source (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(t *Translator) {
		t.newID = fn
	}
}

// New creates a Translator.
func New(opts ...Option) *Translator {
	t := &Translator{
		newID:  uuid.NewString,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ ports.OperationTranslator = (*Translator)(nil)

// Translate implements ports.OperationTranslator. Classifications that lack a
// required target produce a message asking for it and no operations.
func (t *Translator) Translate(ctx context.Context, cls domain.Classification, canvas *domain.CanvasContext) (ports.Translation, error) {
	if err := ctx.Err(); err != nil {
		return ports.Translation{}, err
	}

	var (
		tr  ports.Translation
		err error
	)
	switch cls.Category {
	case domain.IntentCreatePlaybook:
		tr = t.createPlaybook(cls)
	case domain.IntentAddNode:
		tr = t.addNode(cls, canvas)
	case domain.IntentRemoveNode:
		tr = t.removeNode(cls, canvas)
	case domain.IntentConnectNodes:
		tr = t.connect(cls, canvas)
	case domain.IntentConfigureNode:
		tr = t.configure(cls, canvas)
	case domain.IntentLinkScope:
		tr = t.linkScope(cls, canvas)
	case domain.IntentCreateScope:
		tr = t.createScope(cls)
	case domain.IntentModifyLayout:
		tr = t.layout(cls)
	case domain.IntentUndo:
		tr = ports.Translation{
			Message:    "Undoing the last change.",
			Operations: []domain.CanvasOperation{{ID: t.newID(), Op: domain.OpUndo}},
		}
	case domain.IntentQueryStatus:
		tr = ports.Translation{Message: Describe(canvas)}
	case domain.IntentUnclear, domain.IntentClarify:
		tr = ports.Translation{Message: "I'm not sure what to change yet. Could you tell me a bit more about what you'd like to do?"}
	default:
		err = fmt.Errorf("unsupported intent category %q", cls.Category)
	}
	if err != nil {
		return ports.Translation{}, err
	}

	t.logger.Debug("Translated classification",
		"category", cls.Category,
		"operations", len(tr.Operations),
	)
	return tr, nil
}

func (t *Translator) createPlaybook(cls domain.Classification) ports.Translation {
	name := entity(cls, "playbookName", "name", "label")
	op := domain.CanvasOperation{ID: t.newID(), Op: domain.OpCreatePlaybook, Label: name}
	msg := "Creating a new playbook."
	if name != "" {
		msg = fmt.Sprintf("Creating a new playbook called %q.", name)
	}
	return ports.Translation{Message: msg, Operations: []domain.CanvasOperation{op}}
}

func (t *Translator) addNode(cls domain.Classification, canvas *domain.CanvasContext) ports.Translation {
	op := domain.CanvasOperation{ID: t.newID(), Op: domain.OpAddNode, NodeID: t.newID()}
	if n := cls.Payload.Node; n != nil {
		op.NodeType = n.Type
		op.Label = n.Label
		if n.Position != nil {
			p := *n.Position
			op.Position = &p
		}
	}
	if op.NodeType == "" {
		op.NodeType = DefaultNodeType
	}

	ops := []domain.CanvasOperation{op}
	msg := fmt.Sprintf("Adding %s %s node", article(op.NodeType), op.NodeType)
	if op.Label != "" {
		msg += fmt.Sprintf(" labeled %q", op.Label)
	}

	// A new node is wired after the selected one so the flow stays connected.
	if canvas != nil && canvas.SelectedNodeID != "" {
		ops = append(ops, domain.CanvasOperation{
			ID:       t.newID(),
			Op:       domain.OpAddEdge,
			SourceID: canvas.SelectedNodeID,
			TargetID: op.NodeID,
		})
		msg += " after the selected node"
	}
	return ports.Translation{Message: msg + ".", Operations: ops}
}

func (t *Translator) removeNode(cls domain.Classification, canvas *domain.CanvasContext) ports.Translation {
	id, label := target(cls, canvas)
	if id == "" {
		return ports.Translation{Message: "Which node should I remove? Select it on the canvas or mention its name."}
	}
	return ports.Translation{
		Message:    fmt.Sprintf("Removing %s.", nodeName(id, label, canvas)),
		Operations: []domain.CanvasOperation{{ID: t.newID(), Op: domain.OpRemoveNode, NodeID: id}},
	}
}

func (t *Translator) connect(cls domain.Classification, canvas *domain.CanvasContext) ports.Translation {
	var c domain.ConnectionEntity
	if cls.Payload.Connection != nil {
		c = *cls.Payload.Connection
	}
	if c.SourceNodeID == "" && canvas != nil && canvas.SelectedNodeID != c.TargetNodeID {
		c.SourceNodeID = canvas.SelectedNodeID
	}
	if c.SourceNodeID == "" || c.TargetNodeID == "" {
		return ports.Translation{Message: "Which two nodes should I connect? Name the step the edge starts from and the one it goes to."}
	}
	return ports.Translation{
		Message: fmt.Sprintf("Connecting %s to %s.",
			nodeName(c.SourceNodeID, c.SourceLabel, canvas),
			nodeName(c.TargetNodeID, c.TargetLabel, canvas)),
		Operations: []domain.CanvasOperation{{
			ID:       t.newID(),
			Op:       domain.OpAddEdge,
			SourceID: c.SourceNodeID,
			TargetID: c.TargetNodeID,
		}},
	}
}

// settingsExcluded are entity keys that identify the node rather than configure it.
var settingsExcluded = []string{"nodeid", "id", "nodelabel", "label", "nodetype", "type"}

func (t *Translator) configure(cls domain.Classification, canvas *domain.CanvasContext) ports.Translation {
	id, label := target(cls, canvas)
	if id == "" {
		return ports.Translation{Message: "Which node should I configure? Select it on the canvas or mention its name."}
	}

	data := maps.Clone(cls.Entities)
	maps.DeleteFunc(data, func(k, _ string) bool {
		return slices.Contains(settingsExcluded, strings.ToLower(k))
	})
	if len(data) == 0 {
		data = nil
	}

	return ports.Translation{
		Message:    fmt.Sprintf("Updating the settings of %s.", nodeName(id, label, canvas)),
		Operations: []domain.CanvasOperation{{ID: t.newID(), Op: domain.OpUpdateNode, NodeID: id, Data: data}},
	}
}

func (t *Translator) linkScope(cls domain.Classification, canvas *domain.CanvasContext) ports.Translation {
	var s domain.ScopeEntity
	if cls.Payload.Scope != nil {
		s = *cls.Payload.Scope
	}
	nodeID := s.NodeID
	if nodeID == "" {
		nodeID, _ = target(cls, canvas)
	}
	scopeID := entity(cls, "scopeId")
	if nodeID == "" || (scopeID == "" && s.Name == "") {
		return ports.Translation{Message: "Which node and which skill, knowledge source or action should I link?"}
	}

	data := map[string]string{"scopeName": s.Name}
	if scopeID != "" {
		data["scopeId"] = scopeID
	}
	if s.Type != "" {
		data["scopeType"] = s.Type
	}
	return ports.Translation{
		Message: fmt.Sprintf("Linking %q to %s.", s.Name, nodeName(nodeID, "", canvas)),
		Operations: []domain.CanvasOperation{{
			ID:     t.newID(),
			Op:     domain.OpLinkScope,
			NodeID: nodeID,
			Label:  s.Name,
			Data:   data,
		}},
	}
}

func (t *Translator) createScope(cls domain.Classification) ports.Translation {
	var s domain.ScopeEntity
	if cls.Payload.Scope != nil {
		s = *cls.Payload.Scope
	}
	if s.Name == "" {
		s.Name = entity(cls, "scopeName", "name", "label")
	}
	if s.Name == "" {
		return ports.Translation{Message: "What should the new skill, knowledge source or action be called?"}
	}

	op := domain.CanvasOperation{ID: t.newID(), Op: domain.OpCreateScope, Label: s.Name}
	if s.Type != "" {
		op.Data = map[string]string{"scopeType": s.Type}
	}
	return ports.Translation{
		Message:    fmt.Sprintf("Creating %q.", s.Name),
		Operations: []domain.CanvasOperation{op},
	}
}

func (t *Translator) layout(cls domain.Classification) ports.Translation {
	op := domain.CanvasOperation{ID: t.newID(), Op: domain.OpLayout}
	if dir := entity(cls, "direction", "layout"); dir != "" {
		op.Data = map[string]string{"direction": dir}
	}
	return ports.Translation{Message: "Rearranging the canvas layout.", Operations: []domain.CanvasOperation{op}}
}

// Describe summarizes the canvas for QueryStatus answers.
func Describe(canvas *domain.CanvasContext) string {
	if canvas.IsEmpty() {
		return `The canvas is empty. Try "create a new playbook" to get started.`
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The canvas has %s and %s.", plural(canvas.NodeCount, "node"), plural(canvas.EdgeCount, "edge"))
	if len(canvas.NodeTypes) > 0 {
		fmt.Fprintf(&b, " Node types: %s.", strings.Join(canvas.NodeTypes, ", "))
	}
	if canvas.SelectedNodeID != "" {
		fmt.Fprintf(&b, " Selected: %s.", nodeName(canvas.SelectedNodeID, "", canvas))
	}
	if canvas.IsSaved {
		b.WriteString(" All changes are saved.")
	} else {
		b.WriteString(" There are unsaved changes.")
	}
	return b.String()
}

// target returns the node a RemoveNode or ConfigureNode acts on, falling back
// to the selected node.
func target(cls domain.Classification, canvas *domain.CanvasContext) (id, label string) {
	if n := cls.Payload.Node; n != nil {
		id, label = n.NodeID, n.Label
	}
	if id == "" {
		id = entity(cls, "nodeId")
	}
	if id == "" && canvas != nil {
		id = canvas.SelectedNodeID
	}
	return id, label
}

// entity looks up the first of keys in cls.Entities, ignoring case.
func entity(cls domain.Classification, keys ...string) string {
	for _, k := range keys {
		if v := cls.Entities[k]; v != "" {
			return v
		}
		for ek, v := range cls.Entities {
			if v != "" && strings.EqualFold(ek, k) {
				return v
			}
		}
	}
	return ""
}

func nodeName(id, label string, canvas *domain.CanvasContext) string {
	if label == "" && canvas != nil {
		for _, n := range canvas.Nodes {
			if n.ID == id {
				label = n.Label
				break
			}
		}
	}
	if label != "" {
		return fmt.Sprintf("%q", label)
	}
	return "node " + id
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func article(word string) string {
	if word != "" && strings.ContainsRune("aeiouAEIOU", rune(word[0])) {
		return "an"
	}
	return "a"
}
