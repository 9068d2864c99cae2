package intent

import (
	"fmt"
	"strconv"

	"github.com/aretw0/canvasbuilder/pkg/domain"
)

// mapEntities copies provider entities into a flat string map and, where the
// keys are recognizable, into the typed payload.
func mapEntities(raw map[string]any) (map[string]string, domain.EntityPayload) {
	var payload domain.EntityPayload
	if len(raw) == 0 {
		return nil, payload
	}

	flat := make(map[string]string, len(raw))
	byKey := make(map[string]string, len(raw))
	var position *domain.Position

	for k, v := range raw {
		if k == "" || v == nil {
			continue
		}
		if normalizeKey(k) == "position" {
			position = toPosition(v)
			if position != nil {
				flat[k] = fmt.Sprintf("%g,%g", position.X, position.Y)
			}
			continue
		}
		s, ok := scalar(v)
		if !ok || s == "" {
			continue
		}
		flat[k] = s
		byKey[normalizeKey(k)] = s
	}

	get := func(keys ...string) string {
		for _, k := range keys {
			if v := byKey[k]; v != "" {
				return v
			}
		}
		return ""
	}

	node := domain.NodeEntity{
		Type:   get("nodetype", "type"),
		Label:  get("nodelabel", "label"),
		NodeID: get("nodeid", "id"),
	}
	if position == nil {
		x, xerr := strconv.ParseFloat(get("x", "positionx"), 64)
		y, yerr := strconv.ParseFloat(get("y", "positiony"), 64)
		if xerr == nil && yerr == nil {
			position = &domain.Position{X: x, Y: y}
		}
	}
	node.Position = position
	if node != (domain.NodeEntity{}) {
		payload.Node = &node
	}

	conn := domain.ConnectionEntity{
		SourceNodeID: get("sourcenodeid", "sourceid", "source", "from"),
		TargetNodeID: get("targetnodeid", "targetid", "target", "to"),
		SourceLabel:  get("sourcelabel"),
		TargetLabel:  get("targetlabel"),
	}
	if conn != (domain.ConnectionEntity{}) {
		payload.Connection = &conn
	}

	scope := domain.ScopeEntity{
		Type: get("scopetype", "scopecategory"),
		Name: get("scopename", "scope"),
	}
	if scope != (domain.ScopeEntity{}) {
		scope.NodeID = get("scopenodeid", "nodeid")
		payload.Scope = &scope
	}

	if len(flat) == 0 {
		flat = nil
	}
	return flat, payload
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	}
	return "", false
}

func toPosition(v any) *domain.Position {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	x, xok := m["x"].(float64)
	y, yok := m["y"].(float64)
	if !xok || !yok {
		return nil
	}
	return &domain.Position{X: x, Y: y}
}
