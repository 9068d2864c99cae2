package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntentCategory(t *testing.T) {
	cases := map[string]IntentCategory{
		"AddNode":         IntentAddNode,
		"add_node":        IntentAddNode,
		"ADD-NODE":        IntentAddNode,
		"connect nodes":   IntentConnectNodes,
		"createPlaybook":  IntentCreatePlaybook,
		"query_status":    IntentQueryStatus,
		"clarify":         IntentClarify,
		"":                IntentUnclear,
		"teleport_canvas": IntentUnclear,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseIntentCategory(in), in)
	}
}

func TestActionFor(t *testing.T) {
	assert.Equal(t, ActionExecute, ActionFor(IntentAddNode))
	assert.Equal(t, ActionAnswer, ActionFor(IntentQueryStatus))
	assert.Equal(t, ActionRequestClarification, ActionFor(IntentUnclear))
	assert.Equal(t, ActionNone, ActionFor(""))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.2))
	assert.Equal(t, 1.0, ClampConfidence(1.7))
	assert.Equal(t, 0.42, ClampConfidence(0.42))
	assert.Equal(t, 0.0, ClampConfidence(math.NaN()))
}

func TestClassification_CloneIsDeep(t *testing.T) {
	orig := Classification{
		Category: IntentAddNode,
		Entities: map[string]string{"nodeType": "condition"},
		Payload:  EntityPayload{Node: &NodeEntity{Type: "condition", Position: &Position{X: 1}}},
		Clarification: &ClarificationRequest{
			Options: []ClarificationOption{{ID: "a"}},
		},
	}
	c := orig.Clone()
	c.Entities["nodeType"] = "loop"
	c.Payload.Node.Position.X = 99
	c.Clarification.Options[0].ID = "b"

	assert.Equal(t, "condition", orig.Entities["nodeType"])
	assert.Equal(t, 1.0, orig.Payload.Node.Position.X)
	assert.Equal(t, "a", orig.Clarification.Options[0].ID)
}

func TestSessionState_WithExchangeDoesNotMutate(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSessionState("s1", t0)
	s = s.WithPendingClarification(ClarificationRequest{ID: "q"}, Classification{Category: IntentAddNode}, t0)

	next := s.WithExchange("hello", "hi there", t0.Add(time.Second))

	assert.Empty(t, s.History)
	assert.NotNil(t, s.PendingClarification)
	require.Len(t, next.History, 2)
	assert.Nil(t, next.PendingClarification)
	assert.Nil(t, next.LastClassification)
	assert.True(t, next.LastActive.After(s.LastActive))
}

func TestSessionState_RecentHistory(t *testing.T) {
	s := SessionState{}
	for i := 0; i < 5; i++ {
		s = s.WithExchange("u", "", time.Time{})
	}
	assert.Len(t, s.RecentHistory(3), 3)
	assert.Len(t, s.RecentHistory(0), 5)
}

func TestArgumentError(t *testing.T) {
	missing := MissingArgument("message")
	empty := EmptyArgument("message")

	assert.True(t, errors.Is(missing, ErrInvalidArgument))
	assert.True(t, errors.Is(empty, ErrInvalidArgument))
	assert.Equal(t, ArgumentMissing, ArgumentKindOf(missing))
	assert.Equal(t, ArgumentEmpty, ArgumentKindOf(empty))
	assert.NotEqual(t, missing.Error(), empty.Error())
	assert.Equal(t, ArgumentKind(0), ArgumentKindOf(errors.New("other")))
}

func TestResolutionBest(t *testing.T) {
	r := &EntityResolutionResult{Candidates: []EntityMatch{
		{ID: "a", Confidence: 0.4},
		{ID: "b", Confidence: 0.9},
	}}
	best, ok := r.Best()
	require.True(t, ok)
	assert.Equal(t, "b", best.ID)

	_, ok = (&EntityResolutionResult{}).Best()
	assert.False(t, ok)
}
