package hub

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/tracelight/callscope/callscope/pkg/calltree"
	"github.com/tracelight/callscope/callscope/pkg/eventlog"
	"github.com/tracelight/callscope/callscope/pkg/pubsub"
	"github.com/tracelight/callscope/library/go/ptr"
)

var (
	errSessionBusy     = errors.New("hub: session has a concurrent writer")
	errSessionNotFound = errors.New("hub: session not found")
)

// liveEvent is one notification on a session's live stream.
type liveEvent struct {
	Type  string            `json:"type"`
	Time  float64           `json:"time"`
	Frame *calltree.FrameID `json:"frame,omitempty"`
	Name  string            `json:"name,omitempty"`
	Depth *int32            `json:"depth,omitempty"`
}

type sessionInfo struct {
	ID        string    `json:"id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	NumFrames int       `json:"numFrames"`
	Finished  bool      `json:"finished"`
	Watchers  int       `json:"watchers"`
}

// session accumulates one trace from a stream of NDJSON event chunks.
// The builder is single-writer: a second concurrent feed is refused
// rather than queued, so a stuck client cannot pile up uploads.
type session struct {
	id      string
	label   string
	created time.Time

	writer sync.Mutex

	mu         sync.Mutex
	trace      *calltree.Trace
	lastActive time.Time

	live    *pubsub.PubSub[liveEvent]
	buffer  uint32
	metrics *metrics
}

var _ calltree.Observer = (*session)(nil)

func newSession(label string, buffer uint32, m *metrics) (*session, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	s := &session{
		id:         id.String(),
		label:      label,
		created:    now,
		trace:      calltree.New(),
		lastActive: now,
		live:       pubsub.NewPubSub[liveEvent](),
		buffer:     buffer,
		metrics:    m,
	}
	s.trace.Observe(s)
	return s, nil
}

// feed applies one chunk of the session's event stream. A chunk boundary
// is not a trace boundary: the trace finishes on a bare exit event or an
// explicit session close, never at EOF of a chunk.
func (s *session) feed(r io.Reader) (applied int, err error) {
	if !s.writer.TryLock() {
		return 0, errSessionBusy
	}
	defer s.writer.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	rd := eventlog.NewReader(r)
	for {
		ev, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return applied, err
		}
		if err := s.trace.Apply(ev); err != nil {
			return applied, err
		}
		applied++
	}
	s.lastActive = time.Now().UTC()
	return applied, nil
}

// closeTrace finalizes the trace no matter how many frames are still open.
// It waits for an in-flight feed to drain first.
func (s *session) closeTrace() {
	s.writer.Lock()
	defer s.writer.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace.Finish()
}

func (s *session) finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trace.Finished()
}

func (s *session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive)
}

func (s *session) subscribe() *pubsub.Subscription[liveEvent] {
	return s.live.Subscribe(s.buffer)
}

func (s *session) info() sessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sessionInfo{
		ID:        s.id,
		Label:     s.label,
		CreatedAt: s.created,
		NumFrames: s.trace.NumFrames(),
		Finished:  s.trace.Finished(),
		Watchers:  s.live.Subscribers(),
	}
}

func (s *session) publish(ev liveEvent) {
	if dropped := s.live.TryPublish(ev); dropped > 0 {
		s.metrics.liveDropped.Add(float64(dropped))
	}
}

////////////////////////////////////////////////////////////////////////////////

// The observer callbacks run synchronously inside Trace.Apply, so frame
// lookups here see the builder state of the event being applied.

func (s *session) FrameEntered(t *calltree.Trace, id calltree.FrameID) {
	f := t.Frame(id)
	s.publish(liveEvent{
		Type:  "enter",
		Time:  f.Start,
		Frame: ptr.T(id),
		Name:  f.Name,
		Depth: ptr.Int32(f.Depth),
	})
	s.metrics.eventsIngested.WithLabelValues("enter").Inc()
}

func (s *session) FrameExited(t *calltree.Trace, id calltree.FrameID) {
	f := t.Frame(id)
	s.publish(liveEvent{
		Type:  "exit",
		Time:  f.End,
		Frame: ptr.T(id),
	})
	s.metrics.eventsIngested.WithLabelValues("exit").Inc()
}

func (s *session) TraceFinished(t *calltree.Trace) {
	s.publish(liveEvent{Type: "finish", Time: t.EndTime()})
	s.live.CloseAll()
}
