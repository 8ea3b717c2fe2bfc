package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/maps"

	"github.com/tracelight/callscope/callscope/pkg/archive"
	"github.com/tracelight/callscope/callscope/pkg/calltree"
	"github.com/tracelight/callscope/callscope/pkg/foreach"
	"github.com/tracelight/callscope/callscope/pkg/viewport"
	"github.com/tracelight/callscope/library/go/core/log"
	"github.com/tracelight/callscope/library/go/ptr"
)

var errBadRequest = errors.New("hub: bad request")

func (s *Service) respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.Warn(r.Context(), "Failed to write response", log.Error(err))
	}
}

func (s *Service) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, archive.ErrNotFound), errors.Is(err, errSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errSessionBusy):
		status = http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, calltree.ErrMalformedEvent),
		errors.Is(err, calltree.ErrTraceFinished),
		errors.Is(err, calltree.ErrInvalidSnapshot):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.l.Error(r.Context(), "Request failed", log.Error(err))
	}
	http.Error(w, err.Error(), status)
}

func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %q: %v", errBadRequest, name, err)
	}
	return value, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %q: %v", errBadRequest, name, err)
	}
	return value, nil
}

////////////////////////////////////////////////////////////////////////////////
// Traces.

func (s *Service) handleUploadTrace(w http.ResponseWriter, r *http.Request) {
	var snap calltree.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	tree, err := calltree.Restore(&snap)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	meta, err := s.archive.Put(r.Context(), tree, r.URL.Query().Get("label"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.metrics.tracesArchived.Inc()
	s.cache.Add(meta.ID, tree)

	s.l.Info(r.Context(), "Uploaded trace",
		log.String("trace.id", meta.ID), log.Int("frames", meta.NumFrames))
	s.respondJSON(w, r, http.StatusCreated, meta)
}

func (s *Service) handleListTraces(w http.ResponseWriter, r *http.Request) {
	metas, err := s.archive.List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, metas)
}

func (s *Service) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	tree, err := s.traceByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, tree.Snapshot())
}

func (s *Service) handleDeleteTrace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.archive.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.cache.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

////////////////////////////////////////////////////////////////////////////////
// Query API.

type functionRow struct {
	ID        calltree.FunctionID      `json:"id"`
	Name      string                   `json:"name"`
	Location  *calltree.SourceLocation `json:"location,omitempty"`
	CallCount int64                    `json:"callCount"`
	TotalTime *float64                 `json:"totalTime,omitempty"`
	SelfTime  *float64                 `json:"selfTime,omitempty"`
}

func (s *Service) handleTraceFunctions(w http.ResponseWriter, r *http.Request) {
	tree, err := s.traceByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	functions := tree.Functions()
	rows := make([]functionRow, 0, functions.Len())
	for i := 0; i < functions.Len(); i++ {
		fn := functions.Function(calltree.FunctionID(i))
		row := functionRow{
			ID:        fn.ID,
			Name:      fn.Name,
			CallCount: fn.CallCount,
		}
		if fn.Location != (calltree.SourceLocation{}) {
			loc := fn.Location
			row.Location = &loc
		}
		if fn.HasTimes {
			row.TotalTime = ptr.Float64(fn.TotalTime)
			row.SelfTime = ptr.Float64(fn.SelfTime)
		}
		rows = append(rows, row)
	}
	s.respondJSON(w, r, http.StatusOK, rows)
}

type frameRow struct {
	UID      calltree.FrameID    `json:"uid"`
	Function calltree.FunctionID `json:"fid"`
	Name     string              `json:"name"`
	Depth    int32               `json:"depth"`
	Start    float64             `json:"startTime"`
	End      *float64            `json:"endTime,omitempty"`
	Self     *float64            `json:"selfTime,omitempty"`
	Children int                 `json:"children"`
}

type framesResponse struct {
	TraceID   string     `json:"trace"`
	Left      float64    `json:"left"`
	Right     float64    `json:"right"`
	StartTime float64    `json:"startTime"`
	EndTime   float64    `json:"endTime"`
	Frames    []frameRow `json:"frames"`
}

// handleTraceFrames serves the frames overlapping a viewport window.
// left and right are fractions of the total trace duration; depth caps
// how deep below the roots the walk descends.
func (s *Service) handleTraceFrames(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	id := chi.URLParam(r, "id")
	tree, err := s.traceByID(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	left, err := queryFloat(r, "left", 0)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	right, err := queryFloat(r, "right", 1)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	maxDepth, err := queryInt(r, "depth", -1)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	vp := viewport.New(tree.TotalTime())
	vp.SetBounds(left, right, viewport.ReasonSet)

	lo := tree.StartTime() + vp.TimeFromPercentage(vp.Left(), false)
	hi := tree.StartTime() + vp.TimeFromPercentage(vp.Right(), false)

	resp := framesResponse{
		TraceID:   id,
		Left:      vp.Left(),
		Right:     vp.Right(),
		StartTime: lo,
		EndTime:   hi,
		Frames:    visibleRows(tree, lo, hi, int32(maxDepth)),
	}

	s.metrics.windowLatency.Observe(time.Since(started).Seconds())
	s.respondJSON(w, r, http.StatusOK, resp)
}

func visibleRows(tree *calltree.Trace, left, right float64, maxDepth int32) []frameRow {
	rows := make([]frameRow, 0)

	var walk func(parent calltree.FrameID)
	walk = func(parent calltree.FrameID) {
		for _, id := range calltree.VisibleChildren(tree, parent, left, right) {
			f := tree.Frame(id)
			row := frameRow{
				UID:      f.UID,
				Function: f.Function,
				Name:     f.Name,
				Depth:    f.Depth,
				Start:    f.Start,
				Children: len(f.Children),
			}
			if f.Closed {
				row.End = ptr.Float64(f.End)
				row.Self = ptr.Float64(f.Self)
			}
			rows = append(rows, row)
			if maxDepth < 0 || f.Depth < maxDepth {
				walk(id)
			}
		}
	}
	walk(calltree.NoFrame)

	return rows
}

////////////////////////////////////////////////////////////////////////////////
// Sessions.

func (s *Service) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	sess, err := newSession(r.URL.Query().Get("label"), uint32(s.cfg.Sessions.LiveBuffer), s.metrics)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.metrics.sessionsOpened.Inc()
	s.l.Info(r.Context(), "Opened session",
		log.String("session.id", sess.id), log.String("label", sess.label))
	s.respondJSON(w, r, http.StatusCreated, sess.info())
}

func (s *Service) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sessions := maps.Values(s.sessions)
	s.mu.Unlock()

	infos := foreach.Map(sessions, func(sess *session) sessionInfo {
		return sess.info()
	})
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	s.respondJSON(w, r, http.StatusOK, infos)
}

type ingestResponse struct {
	Applied  int           `json:"applied"`
	Finished bool          `json:"finished"`
	Archived *archive.Meta `json:"archived,omitempty"`
}

func (s *Service) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionByID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	applied, err := sess.feed(r.Body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	meta, err := s.maybeArchive(r.Context(), sess)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondJSON(w, r, http.StatusOK, ingestResponse{
		Applied:  applied,
		Finished: sess.finished(),
		Archived: meta,
	})
}

func (s *Service) handleSessionLive(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionByID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errors.New("hub: streaming unsupported"))
		return
	}

	sub := sess.subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Chan():
			if !ok {
				return
			}
			buf, err := json.Marshal(ev)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", buf); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Service) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionByID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sess.closeTrace()
	meta, err := s.maybeArchive(r.Context(), sess)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if meta == nil {
		// Lost the archive race to a concurrent events upload.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.respondJSON(w, r, http.StatusOK, meta)
}
