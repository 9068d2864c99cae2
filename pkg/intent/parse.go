package intent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// response is the provider answer before normalization.
type response struct {
	Intent                string         `mapstructure:"intent"`
	Category              string         `mapstructure:"category"`
	Action                string         `mapstructure:"action"`
	Confidence            float64        `mapstructure:"confidence"`
	Entities              map[string]any `mapstructure:"entities"`
	Reasoning             string         `mapstructure:"reasoning"`
	NeedsClarification    bool           `mapstructure:"needsClarification"`
	ClarificationQuestion string         `mapstructure:"clarificationQuestion"`
}

// parseResponse turns raw provider text into a Classification.
// Any error wraps domain.ErrParseFailure.
func parseResponse(raw string) (domain.Classification, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return domain.Classification{}, fmt.Errorf("%w: empty response", domain.ErrParseFailure)
	}

	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %w", domain.ErrParseFailure, err)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return domain.Classification{}, fmt.Errorf("%w: expected a JSON object, got %T", domain.ErrParseFailure, decoded)
	}

	var resp response
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &resp,
		WeaklyTypedInput: true,
		MatchName:        matchFieldName,
	})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %w", domain.ErrParseFailure, err)
	}
	if err := dec.Decode(obj); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %w", domain.ErrParseFailure, err)
	}

	name := resp.Intent
	if name == "" {
		name = resp.Category
	}
	category := domain.ParseIntentCategory(name)

	action := domain.ActionFor(category)
	if a := parseAction(resp.Action); a != "" {
		action = a
	}

	cls := domain.Classification{
		Category:              category,
		Action:                action,
		Confidence:            domain.ClampConfidence(resp.Confidence),
		Reasoning:             strings.TrimSpace(resp.Reasoning),
		NeedsClarification:    resp.NeedsClarification,
		ClarificationQuestion: strings.TrimSpace(resp.ClarificationQuestion),
	}
	cls.Entities, cls.Payload = mapEntities(resp.Entities)
	return cls, nil
}

// matchFieldName matches JSON keys to fields ignoring case and separators,
// so "needs_clarification" and "NeedsClarification" both bind.
func matchFieldName(mapKey, fieldName string) bool {
	return normalizeKey(mapKey) == normalizeKey(fieldName)
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
}

func parseAction(s string) domain.IntentAction {
	switch normalizeKey(s) {
	case "execute":
		return domain.ActionExecute
	case "answer":
		return domain.ActionAnswer
	case "requestclarification", "clarify":
		return domain.ActionRequestClarification
	case "none":
		return domain.ActionNone
	}
	return ""
}

// stripCodeFence removes an optional markdown fence such as ```json ... ```.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
