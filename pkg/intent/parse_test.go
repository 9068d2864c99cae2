package intent

import (
	"testing"

	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                    `{"a":1}`,
		"```json\n{\"a\":1}\n```":    `{"a":1}`,
		"```\n{\"a\":1}\n```":        `{"a":1}`,
		"  ```json {\"a\":1}```  ":   `{"a":1}`,
		"\n\n{\"a\":1}\n":            `{"a":1}`,
		"```JSON\n{\"a\":1}\n```\n ": `{"a":1}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, stripCodeFence(in), "%q", in)
	}
}

func TestParseResponse_CategoryAlias(t *testing.T) {
	cls, err := parseResponse(`{"category":"modify-layout","confidence":0.8,"action":"execute"}`)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentModifyLayout, cls.Category)
	assert.Equal(t, domain.ActionExecute, cls.Action)
}

func TestParseResponse_UnknownCategory(t *testing.T) {
	cls, err := parseResponse(`{"intent":"fly_to_moon","confidence":0.99}`)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentUnclear, cls.Category)
	assert.Equal(t, domain.ActionRequestClarification, cls.Action)
}

func TestParseResponse_Errors(t *testing.T) {
	for _, raw := range []string{"", "nope", "42", `"string"`, "[1,2]", "null"} {
		_, err := parseResponse(raw)
		assert.ErrorIs(t, err, domain.ErrParseFailure, raw)
	}
}

func TestMapEntities(t *testing.T) {
	flat, payload := mapEntities(map[string]any{
		"scopeType": "knowledge",
		"scopeName": "Contract law",
		"nodeId":    "n4",
		"priority":  float64(2),
		"tags":      []any{"a"},
	})

	assert.Equal(t, "knowledge", flat["scopeType"])
	assert.Equal(t, "2", flat["priority"])
	assert.NotContains(t, flat, "tags")

	require.NotNil(t, payload.Scope)
	assert.Equal(t, "knowledge", payload.Scope.Type)
	assert.Equal(t, "Contract law", payload.Scope.Name)
	assert.Equal(t, "n4", payload.Scope.NodeID)
	require.NotNil(t, payload.Node)
	assert.Equal(t, "n4", payload.Node.NodeID)
	assert.Nil(t, payload.Connection)

	flat, payload = mapEntities(nil)
	assert.Nil(t, flat)
	assert.True(t, payload.IsEmpty())
}
