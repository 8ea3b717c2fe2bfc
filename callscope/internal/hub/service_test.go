package hub

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/tracelight/callscope/callscope/pkg/archive"
	"github.com/tracelight/callscope/callscope/pkg/calltree"
	"github.com/tracelight/callscope/callscope/pkg/foreach"
	"github.com/tracelight/callscope/callscope/pkg/xlog"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	s, err := NewService(&Config{
		Archive: ArchiveConfig{Path: filepath.Join(t.TempDir(), "archive.db")},
	}, xlog.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

// buildProfiledTrace models main 0..10 calling work twice, 1..3 and 5..7.
func buildProfiledTrace(t *testing.T) *calltree.Trace {
	t.Helper()

	tree := calltree.New()
	events := []calltree.Event{
		calltree.EnterEvent{Name: "main", Location: calltree.SourceLocation{Path: "app.js", Line: 1, Column: 1}, Time: 0},
		calltree.EnterEvent{Name: "work", Location: calltree.SourceLocation{Path: "app.js", Line: 10, Column: 1}, Time: 1},
		calltree.ExitEvent{Time: 3},
		calltree.EnterEvent{Name: "work", Location: calltree.SourceLocation{Path: "app.js", Line: 10, Column: 1}, Time: 5},
		calltree.ExitEvent{Time: 7},
		calltree.ExitEvent{Time: 10},
	}
	for _, ev := range events {
		require.NoError(t, tree.Apply(ev))
	}
	tree.Finish()
	return tree
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHub_TraceArchiveAPI(t *testing.T) {
	s := newTestService(t)
	srv := httptest.NewServer(s.httpRouter)
	defer srv.Close()

	body, err := json.Marshal(buildProfiledTrace(t).Snapshot())
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/traces?label=imported", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	meta := decodeJSON[archive.Meta](t, resp)
	require.Len(t, meta.ID, 36)
	require.Equal(t, "imported", meta.Label)
	require.Equal(t, 3, meta.NumFrames)

	resp, err = http.Get(srv.URL + "/api/traces")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	metas := decodeJSON[[]archive.Meta](t, resp)
	require.Len(t, metas, 1)
	require.Equal(t, meta.ID, metas[0].ID)

	resp, err = http.Get(srv.URL + "/api/traces/" + meta.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	served, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.JSONEq(t, string(body), string(served))

	resp, err = http.Get(srv.URL + "/api/traces/" + meta.ID + "/functions")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	functions := decodeJSON[[]functionRow](t, resp)
	require.Equal(t, []string{"main", "work"}, foreach.Map(functions, func(r functionRow) string { return r.Name }))
	require.Equal(t, int64(2), functions[1].CallCount)
	require.NotNil(t, functions[1].SelfTime)
	require.InDelta(t, 4.0, *functions[1].SelfTime, 1e-9)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/traces/"+meta.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/traces/" + meta.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestHub_FrameWindow(t *testing.T) {
	s := newTestService(t)
	srv := httptest.NewServer(s.httpRouter)
	defer srv.Close()

	body, err := json.Marshal(buildProfiledTrace(t).Snapshot())
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/api/traces", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	meta := decodeJSON[archive.Meta](t, resp)

	frames := func(query string) framesResponse {
		resp, err := http.Get(srv.URL + "/api/traces/" + meta.ID + "/frames" + query)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		return decodeJSON[framesResponse](t, resp)
	}
	names := func(fr framesResponse) []string {
		return foreach.Map(fr.Frames, func(r frameRow) string { return r.Name })
	}

	full := frames("")
	require.Equal(t, []string{"main", "work", "work"}, names(full))
	require.Equal(t, 0.0, full.Left)
	require.Equal(t, 1.0, full.Right)
	require.InDelta(t, 0.0, full.StartTime, 1e-9)
	require.InDelta(t, 10.0, full.EndTime, 1e-9)

	// 3.5ms..4.5ms falls in the gap between the two work calls.
	gap := frames("?left=0.35&right=0.45")
	require.Equal(t, []string{"main"}, names(gap))
	require.InDelta(t, 3.5, gap.StartTime, 1e-9)
	require.InDelta(t, 4.5, gap.EndTime, 1e-9)

	early := frames("?left=0&right=0.2")
	require.Equal(t, []string{"main", "work"}, names(early))

	roots := frames("?depth=0")
	require.Equal(t, []string{"main"}, names(roots))

	resp, err = http.Get(srv.URL + "/api/traces/" + meta.ID + "/frames?left=abc")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestHub_SessionLifecycle(t *testing.T) {
	s := newTestService(t)
	srv := httptest.NewServer(s.httpRouter)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sessions?label=adhoc", "application/x-ndjson", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	info := decodeJSON[sessionInfo](t, resp)
	require.Len(t, info.ID, 36)
	require.Equal(t, "adhoc", info.Label)

	chunk := strings.NewReader(
		`{"type":"enter","name":"main","time":0}` + "\n" +
			`{"type":"enter","name":"work","time":1}` + "\n")
	resp, err = http.Post(srv.URL+"/api/sessions/"+info.ID+"/events", "application/x-ndjson", chunk)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ingested := decodeJSON[ingestResponse](t, resp)
	require.Equal(t, 2, ingested.Applied)
	require.False(t, ingested.Finished)
	require.Nil(t, ingested.Archived)

	resp, err = http.Get(srv.URL + "/api/sessions")
	require.NoError(t, err)
	infos := decodeJSON[[]sessionInfo](t, resp)
	require.Len(t, infos, 1)
	require.Equal(t, 2, infos[0].NumFrames)
	require.False(t, infos[0].Finished)

	// The trailing bare exit finalizes the trace.
	chunk = strings.NewReader(
		`{"type":"exit","time":3}` + "\n" +
			`{"type":"exit","time":5}` + "\n" +
			`{"type":"exit","time":5}` + "\n")
	resp, err = http.Post(srv.URL+"/api/sessions/"+info.ID+"/events", "application/x-ndjson", chunk)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ingested = decodeJSON[ingestResponse](t, resp)
	require.Equal(t, 3, ingested.Applied)
	require.True(t, ingested.Finished)
	require.NotNil(t, ingested.Archived)
	require.Equal(t, "adhoc", ingested.Archived.Label)
	require.Equal(t, 2, ingested.Archived.NumFrames)

	resp, err = http.Get(srv.URL + "/api/sessions")
	require.NoError(t, err)
	require.Empty(t, decodeJSON[[]sessionInfo](t, resp))

	resp, err = http.Get(srv.URL + "/api/traces/" + ingested.Archived.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeJSON[calltree.Snapshot](t, resp)
	tree, err := calltree.Restore(&snap)
	require.NoError(t, err)
	require.True(t, tree.Finished())
	require.Equal(t, 2, tree.NumFrames())

	require.Equal(t, 1.0, testutil.ToFloat64(s.metrics.sessionsOpened))
	require.Equal(t, 1.0, testutil.ToFloat64(s.metrics.tracesArchived))
}

func TestHub_SessionSingleWriter(t *testing.T) {
	s := newTestService(t)
	srv := httptest.NewServer(s.httpRouter)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sessions", "application/x-ndjson", nil)
	require.NoError(t, err)
	info := decodeJSON[sessionInfo](t, resp)

	sess, err := s.sessionByID(info.ID)
	require.NoError(t, err)

	sess.writer.Lock()
	defer sess.writer.Unlock()

	resp, err = http.Post(srv.URL+"/api/sessions/"+info.ID+"/events", "application/x-ndjson",
		strings.NewReader(`{"type":"enter","name":"main","time":0}`+"\n"))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestHub_SessionRejectsMalformedEvents(t *testing.T) {
	s := newTestService(t)
	srv := httptest.NewServer(s.httpRouter)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sessions", "application/x-ndjson", nil)
	require.NoError(t, err)
	info := decodeJSON[sessionInfo](t, resp)

	resp, err = http.Post(srv.URL+"/api/sessions/"+info.ID+"/events", "application/x-ndjson",
		strings.NewReader(`{"type":"enter","time":0}`+"\n"))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// The session survives the bad chunk.
	_, err = s.sessionByID(info.ID)
	require.NoError(t, err)
}

func TestHub_SessionLiveStream(t *testing.T) {
	s := newTestService(t)
	srv := httptest.NewServer(s.httpRouter)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sessions", "application/x-ndjson", nil)
	require.NoError(t, err)
	info := decodeJSON[sessionInfo](t, resp)

	// The subscription is registered before the handler sends headers,
	// so events fed after this Get returns are guaranteed to be seen.
	live, err := http.Get(srv.URL + "/api/sessions/" + info.ID + "/live")
	require.NoError(t, err)
	defer live.Body.Close()
	require.Equal(t, http.StatusOK, live.StatusCode)
	require.Equal(t, "text/event-stream", live.Header.Get("Content-Type"))

	chunk := strings.NewReader(
		`{"type":"enter","name":"main","time":0}` + "\n" +
			`{"type":"enter","name":"work","time":1}` + "\n" +
			`{"type":"exit","time":2.5}` + "\n" +
			`{"type":"exit","time":4}` + "\n" +
			`{"type":"exit","time":4}` + "\n")
	resp, err = http.Post(srv.URL+"/api/sessions/"+info.ID+"/events", "application/x-ndjson", chunk)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var events []liveEvent
	scanner := bufio.NewScanner(live.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev liveEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())

	types := foreach.Map(events, func(ev liveEvent) string { return ev.Type })
	require.Equal(t, []string{"enter", "enter", "exit", "exit", "finish"}, types)
	require.Equal(t, "main", events[0].Name)
	require.Equal(t, "work", events[1].Name)
	require.NotNil(t, events[1].Depth)
	require.Equal(t, int32(1), *events[1].Depth)
	require.Equal(t, 2.5, events[2].Time)
	require.Equal(t, 4.0, events[4].Time)
}

func TestHub_CloseSessionArchivesPartialTrace(t *testing.T) {
	s := newTestService(t)
	srv := httptest.NewServer(s.httpRouter)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sessions?label=aborted", "application/x-ndjson", nil)
	require.NoError(t, err)
	info := decodeJSON[sessionInfo](t, resp)

	resp, err = http.Post(srv.URL+"/api/sessions/"+info.ID+"/events", "application/x-ndjson",
		strings.NewReader(`{"type":"enter","name":"main","time":0}`+"\n"))
	require.NoError(t, err)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+info.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	meta := decodeJSON[archive.Meta](t, resp)
	require.Equal(t, "aborted", meta.Label)
	require.Equal(t, 1, meta.NumFrames)

	resp, err = http.Get(srv.URL + "/api/sessions")
	require.NoError(t, err)
	require.Empty(t, decodeJSON[[]sessionInfo](t, resp))
}

func TestHub_IdleSessionReaper(t *testing.T) {
	s := newTestService(t)

	sess, err := newSession("stale", 8, s.metrics)
	require.NoError(t, err)
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	_, err = sess.feed(strings.NewReader(`{"type":"enter","name":"main","time":0}` + "\n"))
	require.NoError(t, err)

	s.reapIdleSessions(context.Background(), time.Now().UTC())
	_, err = s.sessionByID(sess.id)
	require.NoError(t, err)

	s.reapIdleSessions(context.Background(), time.Now().UTC().Add(time.Hour))
	_, err = s.sessionByID(sess.id)
	require.ErrorIs(t, err, errSessionNotFound)

	metas, err := s.archive.List(context.Background())
	require.NoError(t, err)
	require.Len(t, metas, 1)
	require.Equal(t, "stale", metas[0].Label)
	require.Equal(t, 1, metas[0].NumFrames)
}

func TestHub_Healthz(t *testing.T) {
	s := newTestService(t)
	srv := httptest.NewServer(s.httpRouter)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
