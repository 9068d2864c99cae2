package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/aretw0/canvasbuilder/pkg/adapters/http"
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

func newServer(t *testing.T, p *provider.Scripted, opts ...httpadapter.Option) (*httpadapter.Server, *httptest.Server) {
	t.Helper()
	classifier := intent.NewClassifier(p)
	r := runner.New(dialogue.NewOrchestrator(classifier), session.NewManager(memory.NewStore()))
	opts = append([]httpadapter.Option{httpadapter.WithClassifier(classifier)}, opts...)
	s := httpadapter.NewServer(r, opts...)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return s, ts
}

type frame struct {
	event string
	data  string
}

func readFrames(t *testing.T, body io.Reader) []frame {
	t.Helper()
	var frames []frame
	var cur frame
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			frames = append(frames, cur)
			cur = frame{}
		}
	}
	return frames
}

func postTurn(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/turns", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPostTurn_Streams(t *testing.T) {
	_, ts := newServer(t, provider.NewStatic(`{"intent":"AddNode","confidence":0.9,"entities":{"nodeType":"approval"}}`))

	resp := postTurn(t, ts, `{"session_id":"s1","message":"add an approval step"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "s1", resp.Header.Get("X-Session-ID"))

	frames := readFrames(t, resp.Body)
	require.NotEmpty(t, frames)
	assert.Equal(t, "thinking", frames[0].event)
	assert.Equal(t, "complete", frames[len(frames)-1].event)

	var op domain.StreamEvent
	for _, f := range frames {
		if f.event == "canvas_operation" {
			require.NoError(t, json.Unmarshal([]byte(f.data), &op))
		}
	}
	require.NotNil(t, op.Operation)
	assert.Equal(t, domain.OpAddNode, op.Operation.Op)

	got, err := http.Get(ts.URL + "/sessions/s1")
	require.NoError(t, err)
	defer got.Body.Close()
	require.Equal(t, http.StatusOK, got.StatusCode)
	var state domain.SessionState
	require.NoError(t, json.NewDecoder(got.Body).Decode(&state))
	assert.Len(t, state.History, 2)
}

func TestPostTurn_GeneratesSessionID(t *testing.T) {
	_, ts := newServer(t, provider.NewStatic(`{"intent":"Undo","confidence":0.9}`))
	resp := postTurn(t, ts, `{"message":"undo"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Session-ID"))
}

func TestPostTurn_BadRequests(t *testing.T) {
	_, ts := newServer(t, provider.NewStatic(`{}`))

	resp := postTurn(t, ts, `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postTurn(t, ts, `{"session_id":"s1","message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestPostClassify(t *testing.T) {
	_, ts := newServer(t, provider.NewStatic(`{"intent":"RemoveNode","confidence":0.85}`))

	resp, err := http.Post(ts.URL+"/classify", "application/json", strings.NewReader(`{"message":"delete the review step"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cls domain.Classification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cls))
	assert.Equal(t, domain.IntentRemoveNode, cls.Category)

	bad, err := http.Post(ts.URL+"/classify", "application/json", strings.NewReader(`{"message":""}`))
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestSessions(t *testing.T) {
	_, ts := newServer(t, provider.NewStatic(`{"intent":"Undo","confidence":0.9}`))

	missing, err := http.Get(ts.URL + "/sessions/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	resp := postTurn(t, ts, `{"session_id":"s1","message":"undo"}`)
	_, _ = io.Copy(io.Discard, resp.Body)

	list, err := http.Get(ts.URL + "/sessions")
	require.NoError(t, err)
	defer list.Body.Close()
	var ids []string
	require.NoError(t, json.NewDecoder(list.Body).Decode(&ids))
	assert.Equal(t, []string{"s1"}, ids)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/sessions/s1", nil)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)
}

func TestSubscribeEvents_Session(t *testing.T) {
	s, ts := newServer(t, provider.NewStatic(`{"intent":"Undo","confidence":0.9}`))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events?session_id=s1&watch=history", nil)
	sub, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer sub.Body.Close()

	reader := bufio.NewReader(sub.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)
	require.Eventually(t, func() bool { return s.Streams.Subscribers("s1") == 1 }, time.Second, 10*time.Millisecond)

	resp := postTurn(t, ts, `{"session_id":"s1","message":"undo"}`)
	_, _ = io.Copy(io.Discard, resp.Body)

	var diffLine string
	for diffLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			diffLine = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}

	var diff domain.SessionDiff
	require.NoError(t, json.Unmarshal([]byte(diffLine), &diff))
	assert.Equal(t, "s1", diff.SessionID)
	assert.Len(t, diff.Appended, 2)
}

func TestSubscribeEvents_RequiresSession(t *testing.T) {
	_, ts := newServer(t, provider.NewStatic(`{}`))
	resp, err := http.Get(ts.URL + "/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthInfoAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "canvas_turns_total 1\n")
	})
	_, ts := newServer(t, provider.NewStatic(`{}`), httpadapter.WithVersion("1.2.3"), httpadapter.WithMetricsHandler(metrics))

	health, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
	assert.Equal(t, "*", health.Header.Get("Access-Control-Allow-Origin"))

	info, err := http.Get(ts.URL + "/info")
	require.NoError(t, err)
	defer info.Body.Close()
	var body map[string]string
	require.NoError(t, json.NewDecoder(info.Body).Decode(&body))
	assert.Equal(t, "1.2.3", body["version"])

	m, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer m.Body.Close()
	data, _ := io.ReadAll(m.Body)
	assert.Contains(t, string(data), "canvas_turns_total")
}

func TestStreamManager(t *testing.T) {
	sm := httpadapter.NewStreamManager(nil)

	ch, unsubscribe := sm.Subscribe("s1")
	other, unsubscribeOther := sm.Subscribe("s2")
	defer unsubscribeOther()

	sm.Broadcast("s1", "hello")
	assert.Equal(t, "hello", <-ch)
	assert.Empty(t, other)

	for i := 0; i < 20; i++ {
		sm.Broadcast("s1", "flood")
	}
	assert.Len(t, ch, cap(ch), "overflow is dropped, not blocked on")

	unsubscribe()
	unsubscribe()
	assert.Zero(t, sm.Subscribers("s1"))
}
