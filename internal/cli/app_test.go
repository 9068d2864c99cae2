package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/canvasbuilder/internal/config"
	"github.com/aretw0/canvasbuilder/internal/logging"
	"github.com/aretw0/canvasbuilder/pkg/adapters/memory"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/provider"
	"github.com/aretw0/canvasbuilder/pkg/runner"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addConditionReply = `{"intent":"AddNode","confidence":0.92,"entities":{"nodeType":"condition","nodeLabel":"Is urgent?"}}`

func scriptedConfig(replies ...string) config.Config {
	cfg := config.Default()
	cfg.Provider.Kind = config.ProviderScripted
	cfg.Provider.Replies = replies
	cfg.Provider.Retries = 1
	cfg.Provider.RPS = 0
	return cfg
}

func runnerRequest(sessionID, message string) runner.Request {
	return runner.Request{SessionID: sessionID, Message: message}
}

func newTestApp(t *testing.T, cfg config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewNop())}, opts...)
	app, err := NewApp(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestNewApp_Scripted(t *testing.T) {
	app := newTestApp(t, scriptedConfig(addConditionReply))

	out, err := Classify(context.Background(), app, "add a condition called Is urgent?", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentAddNode, out.Classification.Category)
	assert.False(t, out.NeedsClarification)

	count, err := testutil.GatherAndCount(app.Metrics.Registry(), "canvas_classifications_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestClassify_ConfidentResultIgnoresProviderFlag(t *testing.T) {
	app := newTestApp(t, scriptedConfig(`{"intent":"Undo","confidence":0.95,"needsClarification":true}`))

	out, err := Classify(context.Background(), app, "undo", nil)
	require.NoError(t, err)
	assert.False(t, out.NeedsClarification)
}

func TestNewApp_ScriptedWithoutRepliesFallsBack(t *testing.T) {
	app := newTestApp(t, scriptedConfig())

	out, err := Classify(context.Background(), app, "undo", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentUndo, out.Classification.Category)
}

func TestNewApp_GeminiNeedsKey(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.APIKey = ""

	_, err := NewApp(context.Background(), cfg, WithLogger(logging.NewNop()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvAPIKey)
}

func TestNewApp_InvalidCatalog(t *testing.T) {
	cfg := scriptedConfig()
	cfg.Scopes = []domain.Scope{{ID: "k1", Name: "A"}, {ID: "k1", Name: "B"}}

	_, err := NewApp(context.Background(), cfg, WithLogger(logging.NewNop()))
	assert.ErrorContains(t, err, "invalid scope catalog")
}

func TestNewApp_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := scriptedConfig(`{"intent":"Undo","confidence":0.9}`)
	cfg.Store.Kind = config.StoreRedis
	cfg.Store.Addr = mr.Addr()
	cfg.Store.Prefix = "test:"
	app := newTestApp(t, cfg)

	res, err := app.NewRunner().Collect(context.Background(), runnerRequest("s1", "undo that"))
	require.NoError(t, err)
	assert.Equal(t, "s1", res.SessionID)

	ids, err := app.Sessions.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
	assert.True(t, mr.Exists("test:s1"))
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	cfg := scriptedConfig()
	cfg.Store.Kind = config.StoreRedis
	cfg.Store.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewApp(ctx, cfg, WithLogger(logging.NewNop()))
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestNewApp_ProviderOverride(t *testing.T) {
	p := provider.NewStatic(`{"intent":"Undo","confidence":0.9}`)
	app := newTestApp(t, config.Default(), WithProvider(p))

	_, err := Classify(context.Background(), app, "undo", nil)
	require.NoError(t, err)
	require.Len(t, p.Calls(), 1)
}

func TestRunTurn_NDJSON(t *testing.T) {
	app := newTestApp(t, scriptedConfig(addConditionReply))
	var out bytes.Buffer

	res, err := RunTurn(context.Background(), app, TurnOptions{SessionID: "s1", Message: "add a condition", Out: &out})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, len(res.Events))

	var last domain.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, domain.EventComplete, last.Kind)
	assert.Contains(t, out.String(), `"op":"addNode"`)
}

func TestRunTurn_Mermaid(t *testing.T) {
	app := newTestApp(t, scriptedConfig(addConditionReply))
	canvas, err := DecodeCanvas([]byte(`{"node_count":1,"selected_node_id":"n1","nodes":[{"id":"n1","type":"task","label":"Draft"}]}`))
	require.NoError(t, err)
	var out bytes.Buffer

	_, err = RunTurn(context.Background(), app, TurnOptions{
		SessionID: "s1",
		Message:   "add a condition",
		Canvas:    canvas,
		Mermaid:   true,
		Out:       &out,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.String(), "graph TD\n"))
	assert.Contains(t, out.String(), `n1["Draft <br/> task"]`)
	assert.Contains(t, out.String(), "Is urgent? <br/> condition")
	assert.Contains(t, out.String(), "n1 -.-> ")
	assert.Contains(t, out.String(), "class n1 selected;")
}

func TestDecodeCanvas(t *testing.T) {
	canvas, err := DecodeCanvas(nil)
	require.NoError(t, err)
	assert.Nil(t, canvas)

	_, err = DecodeCanvas([]byte("{"))
	assert.ErrorContains(t, err, "invalid canvas JSON")
}

func TestRunChat_Plain(t *testing.T) {
	app := newTestApp(t, scriptedConfig(`{"intent":"Undo","confidence":0.9}`))
	var out bytes.Buffer

	err := RunChat(context.Background(), app, ChatOptions{
		SessionID: "chat",
		In:        strings.NewReader("undo that\nexit\n"),
		Out:       &out,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Undoing the last change.")

	state, err := app.Sessions.Load(context.Background(), "chat")
	require.NoError(t, err)
	assert.Len(t, state.History, 2)
}

func TestRunChat_FreshResetsSession(t *testing.T) {
	app := newTestApp(t, scriptedConfig(`{"intent":"Undo","confidence":0.9}`))
	ctx := context.Background()

	_, err := app.NewRunner().Collect(ctx, runnerRequest("chat", "undo"))
	require.NoError(t, err)

	err = RunChat(ctx, app, ChatOptions{
		SessionID: "chat",
		Fresh:     true,
		JSON:      true,
		In:        strings.NewReader(""),
		Out:       &bytes.Buffer{},
	})
	require.NoError(t, err)

	_, err = app.Sessions.Load(ctx, "chat")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestAttemptTimeout(t *testing.T) {
	assert.Equal(t, 10*time.Second, attemptTimeout(config.ProviderConfig{Timeout: 30 * time.Second, Retries: 3}))
	assert.Equal(t, 30*time.Second, attemptTimeout(config.ProviderConfig{Timeout: 30 * time.Second, Retries: 1}))
	assert.Equal(t, time.Duration(0), attemptTimeout(config.ProviderConfig{Retries: 3}))
}

func TestNewApp_ProtectedStore(t *testing.T) {
	raw := memory.NewStore()
	cfg := scriptedConfig(`{"intent":"Undo","confidence":0.9}`)
	cfg.Store.RedactPII = true
	cfg.Store.EncryptionKey = bytes.Repeat([]byte{1}, 32)
	app := newTestApp(t, cfg, WithStore(raw))
	ctx := context.Background()

	_, err := app.NewRunner().Collect(ctx, runnerRequest("s1", "undo what I sent to ops@example.com"))
	require.NoError(t, err)

	state, err := app.Sessions.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "undo what I sent to ***", state.LastUserMessage())

	envelope, err := raw.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, envelope.Sealed)
	assert.Empty(t, envelope.History)
	assert.NotContains(t, string(envelope.Sealed), "example.com")
}

func TestNewApp_InvalidPIIPattern(t *testing.T) {
	cfg := scriptedConfig()
	cfg.Store.RedactPII = true
	cfg.Store.PIIPatterns = []string{"("}

	_, err := NewApp(context.Background(), cfg, WithLogger(logging.NewNop()))
	assert.ErrorContains(t, err, "invalid PII pattern")
}
