package runner_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/canvasbuilder/pkg/adapters/memory"
	"github.com/aretw0/canvasbuilder/pkg/dialogue"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/intent"
	"github.com/aretw0/canvasbuilder/pkg/provider"
	"github.com/aretw0/canvasbuilder/pkg/runner"
	"github.com/aretw0/canvasbuilder/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newRunner(p *provider.Scripted, opts ...runner.Option) *runner.Runner {
	o := dialogue.NewOrchestrator(intent.NewClassifier(p), dialogue.WithClock(clock))
	sessions := session.NewManager(memory.NewStore(), session.WithClock(clock))
	return runner.New(o, sessions, opts...)
}

func lastKind(res *runner.Result) domain.EventKind {
	return res.Events[len(res.Events)-1].Kind
}

func TestCollect_ResolvedTurn(t *testing.T) {
	r := newRunner(provider.NewStatic(`{"intent":"Undo","confidence":0.9}`))
	ctx := context.Background()

	res, err := r.Collect(ctx, runner.Request{SessionID: "s1", Message: "undo that"})
	require.NoError(t, err)
	assert.Equal(t, "s1", res.SessionID)
	assert.Equal(t, domain.EventComplete, lastKind(res))
	assert.Nil(t, res.Pending)
	require.Len(t, res.Diffs, 1)
	assert.Len(t, res.Diffs[0].Appended, 2)

	state, err := r.Sessions().Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, state.History, 2)
	assert.Equal(t, "undo that", state.History[0].Content)
}

func TestCollect_GeneratesSessionID(t *testing.T) {
	r := newRunner(provider.NewStatic(`{"intent":"Undo","confidence":0.9}`),
		runner.WithSessionIDGenerator(func() string { return "generated" }))

	res, err := r.Collect(context.Background(), runner.Request{Message: "undo"})
	require.NoError(t, err)
	assert.Equal(t, "generated", res.SessionID)
}

func TestCollect_InvalidTurn(t *testing.T) {
	r := newRunner(provider.NewStatic(`{}`))
	_, err := r.Collect(context.Background(), runner.Request{SessionID: "s1", Message: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCollect_ClarifyThenConfirm(t *testing.T) {
	p := provider.NewScripted(provider.Reply{Text: `{"intent":"AddNode","confidence":0.5}`})
	r := newRunner(p)
	ctx := context.Background()

	res, err := r.Collect(ctx, runner.Request{SessionID: "s1", Message: "add something"})
	require.NoError(t, err)
	require.NotNil(t, res.Pending)
	require.Len(t, res.Diffs, 1)
	assert.NotNil(t, res.Diffs[0].PendingClarification)

	state, err := r.Sessions().Load(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, state.PendingClarification)
	require.NotNil(t, state.LastClassification)

	res, err = r.Collect(ctx, runner.Request{
		SessionID:     "s1",
		Message:       "yes",
		Clarification: &domain.ClarificationResponse{Type: domain.ResponseConfirmed},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.CallCount(), "confirmation does not reclassify")
	assert.Nil(t, res.Pending)

	var ops int
	for _, ev := range res.Events {
		if ev.Kind == domain.EventCanvasOperation {
			ops++
			assert.Equal(t, domain.OpAddNode, ev.Operation.Op)
		}
	}
	assert.Equal(t, 1, ops)

	state, err = r.Sessions().Load(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, state.PendingClarification)
	assert.Len(t, state.History, 4)
}

func TestCollect_CancelDropsPendingQuestion(t *testing.T) {
	r := newRunner(provider.NewScripted(provider.Reply{Text: `{"intent":"AddNode","confidence":0.5}`}))
	ctx := context.Background()

	_, err := r.Collect(ctx, runner.Request{SessionID: "s1", Message: "add something"})
	require.NoError(t, err)

	res, err := r.Collect(ctx, runner.Request{
		SessionID:     "s1",
		Clarification: &domain.ClarificationResponse{Type: domain.ResponseCancelled},
	})
	require.NoError(t, err)
	require.Len(t, res.Events, 2)
	assert.Equal(t, domain.EventMessage, res.Events[0].Kind)
	require.Len(t, res.Diffs, 1)
	assert.True(t, res.Diffs[0].ClarificationCleared)

	state, err := r.Sessions().Load(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, state.PendingClarification)
	assert.Nil(t, state.LastClassification)
}

func TestTurn_SinkErrorStopsTurn(t *testing.T) {
	r := newRunner(provider.NewStatic(`{"intent":"Undo","confidence":0.9}`))
	ctx := context.Background()

	var seen int
	stopErr := assert.AnError
	_, err := r.Turn(ctx, runner.Request{SessionID: "s1", Message: "undo"}, func(domain.StreamEvent, *domain.SessionDiff) error {
		seen++
		return stopErr
	})
	assert.ErrorIs(t, err, stopErr)
	assert.Equal(t, 1, seen)

	state, err := r.Sessions().Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, state.History, "nothing past the first event was recorded")
}

// historyRejectingStore accepts a fresh session but fails to save any exchange.
type historyRejectingStore struct {
	*memory.Store
}

func (s historyRejectingStore) Save(ctx context.Context, sessionID string, state domain.SessionState) error {
	if len(state.History) > 0 {
		return assert.AnError
	}
	return s.Store.Save(ctx, sessionID, state)
}

func TestTurn_SaveFailureStillTerminates(t *testing.T) {
	o := dialogue.NewOrchestrator(intent.NewClassifier(provider.NewStatic(`{"intent":"Undo","confidence":0.9}`)), dialogue.WithClock(clock))
	sessions := session.NewManager(historyRejectingStore{memory.NewStore()}, session.WithClock(clock))
	r := runner.New(o, sessions)

	var got []domain.StreamEvent
	_, err := r.Turn(context.Background(), runner.Request{SessionID: "s1", Message: "undo"}, func(ev domain.StreamEvent, _ *domain.SessionDiff) error {
		got = append(got, ev)
		return nil
	})
	assert.ErrorIs(t, err, assert.AnError)

	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, domain.EventComplete, got[len(got)-1].Kind)
	errEv := got[len(got)-2]
	assert.Equal(t, domain.EventError, errEv.Kind)
	assert.Equal(t, domain.CodeSessionSaveFailed, errEv.Code)
	for _, ev := range got {
		assert.NotEqual(t, domain.EventStateUpdate, ev.Kind)
	}
}

func TestRun_TextConversation(t *testing.T) {
	p := provider.NewScripted(provider.Reply{Text: `{"intent":"AddNode","confidence":0.5}`})
	out := &bytes.Buffer{}
	handler := runner.NewTextHandler(strings.NewReader("add something\nyes\nexit\n"), out)
	r := newRunner(p, runner.WithInputHandler(handler))

	require.NoError(t, r.Run(context.Background(), "chat"))

	text := out.String()
	assert.Contains(t, text, "Understanding your request...")
	assert.Contains(t, text, "Adding a task node.")
	assert.Contains(t, text, "+ addNode task")
	assert.Equal(t, 1, p.CallCount())
}

func TestRun_JSONLines(t *testing.T) {
	out := &bytes.Buffer{}
	handler := runner.NewJSONHandler(strings.NewReader("\"undo\"\n"), out)
	r := newRunner(provider.NewStatic(`{"intent":"Undo","confidence":0.9}`), runner.WithInputHandler(handler))

	require.NoError(t, r.Run(context.Background(), "json"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], `"kind":"thinking"`)
	assert.Contains(t, lines[len(lines)-1], `"kind":"complete"`)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	handler := runner.NewTextHandler(strings.NewReader("undo\n"), &bytes.Buffer{})
	r := newRunner(provider.NewStatic(`{}`), runner.WithInputHandler(handler))
	assert.NoError(t, r.Run(ctx, "s1"))
}
