// Package calltree turns streams of function enter/exit events into call
// trees with per-call and per-function timing, and answers time-range
// queries over the result.
//
// The builder tolerates truncated observation on both ends: an exit with no
// matching enter finishes the trace gracefully (tracing started mid-call),
// and frames never exited simply stay open.
package calltree

import (
	"errors"
	"fmt"
)

// Timestamp is a point in trace time, in milliseconds. The clock origin is
// whatever the event source uses; only differences are meaningful.
type Timestamp = float64

// Duration is a span of trace time, in milliseconds.
type Duration = float64

// ErrTraceFinished is returned for events applied after finalization.
var ErrTraceFinished = errors.New("calltree: trace already finished")

// Observer receives trace lifecycle notifications. Callbacks run
// synchronously on the ingestion path, in delivery order.
type Observer interface {
	FrameEntered(t *Trace, id FrameID)
	FrameExited(t *Trace, id FrameID)
	TraceFinished(t *Trace)
}

// Trace owns one call tree: the forest of root frames, the flat frame
// index, the per-function aggregate table and the trace-wide time bounds.
//
// A trace is mutated by exactly one goroutine feeding events in occurrence
// order. Once finished it is immutable and safe to share between readers.
type Trace struct {
	frames    []Frame
	roots     []FrameID
	functions FunctionTable

	// stack[0] is a sentinel standing in for the trace root, so the top of
	// the stack is always a valid parent handle.
	stack []FrameID

	maxDepth int32
	start    Timestamp
	end      Timestamp
	started  bool
	finished bool

	observers []Observer
}

func New() *Trace {
	return &Trace{
		functions: newFunctionTable(),
		stack:     []FrameID{NoFrame},
	}
}

// Observe registers o for enter/exit/finish notifications.
func (t *Trace) Observe(o Observer) {
	t.observers = append(t.observers, o)
}

// Enter appends one call to the tree. The new frame becomes the newest
// child of the current stack top and then the stack top itself.
func (t *Trace) Enter(ev EnterEvent) error {
	if t.finished {
		return ErrTraceFinished
	}
	if err := ev.Validate(); err != nil {
		return err
	}

	parent := t.stack[len(t.stack)-1]
	id := FrameID(len(t.frames))
	depth := int32(len(t.stack) - 1)

	fid := t.functions.Resolve(ev.Name, ev.Location, ev.ParamNames)
	fn := t.functions.Function(fid)
	fn.CallCount++

	frame := Frame{
		UID:         id,
		Function:    fid,
		Depth:       depth,
		Parent:      parent,
		PrevSibling: NoFrame,
		NextSibling: NoFrame,
		Name:        fn.Name,
		Location:    fn.Location,
		ParamNames:  fn.ParamNames,
		Callsite:    ev.Callsite,
		Arguments:   ev.Arguments,
		Start:       ev.Time,
	}

	if parent == NoFrame {
		t.roots = append(t.roots, id)
	} else {
		p := &t.frames[parent]
		if n := len(p.Children); n > 0 {
			last := p.Children[n-1]
			frame.PrevSibling = last
			t.frames[last].NextSibling = id
		}
		p.Children = append(p.Children, id)
	}

	t.frames = append(t.frames, frame)
	t.stack = append(t.stack, id)
	if depth > t.maxDepth {
		t.maxDepth = depth
	}

	if !t.started {
		t.start = ev.Time
		t.started = true
	}
	// An enter is itself a timing watermark.
	t.end = ev.Time

	for _, o := range t.observers {
		o.FrameEntered(t, id)
	}
	return nil
}

// Exit closes the frame on top of the stack. An exit with no open frame
// means observation began mid-call: the trace finishes at that point and
// the event itself is discarded. That transition is not an error.
func (t *Trace) Exit(ev ExitEvent) error {
	if t.finished {
		return ErrTraceFinished
	}
	if err := ev.Validate(); err != nil {
		return err
	}

	top := t.stack[len(t.stack)-1]
	if top == NoFrame {
		t.Finish()
		return nil
	}
	t.stack = t.stack[:len(t.stack)-1]

	frame := &t.frames[top]
	frame.End = ev.Time
	frame.Total = frame.End - frame.Start
	var childrenTotal Duration
	for _, c := range frame.Children {
		childrenTotal += t.frames[c].Total
	}
	frame.Self = frame.Total - childrenTotal
	frame.Closed = true
	frame.Return = ev.Return
	frame.Thrown = ev.Thrown
	frame.Yielded = ev.Yielded

	t.functions.Record(frame.Function, frame.Total, frame.Self)

	if ev.Time > t.end {
		t.end = ev.Time
	}

	for _, o := range t.observers {
		o.FrameExited(t, top)
	}
	return nil
}

// Apply dispatches ev to Enter or Exit.
func (t *Trace) Apply(ev Event) error {
	switch e := ev.(type) {
	case EnterEvent:
		return t.Enter(e)
	case ExitEvent:
		return t.Exit(e)
	default:
		return fmt.Errorf("%w: unsupported event type %T", ErrMalformedEvent, ev)
	}
}

// Finish freezes the trace. Frames still on the stack stay open forever.
// Finishing twice is a no-op.
func (t *Trace) Finish() {
	if t.finished {
		return
	}
	t.finished = true
	for _, o := range t.observers {
		o.TraceFinished(t)
	}
}

func (t *Trace) Finished() bool {
	return t.finished
}

func (t *Trace) NumFrames() int {
	return len(t.frames)
}

// Frame returns the frame with the given uid. The pointer is valid until
// the next ingested event; after Finish it stays valid indefinitely.
func (t *Trace) Frame(id FrameID) *Frame {
	return &t.frames[id]
}

// Roots lists the top-level frames in discovery order.
func (t *Trace) Roots() []FrameID {
	return t.roots
}

func (t *Trace) Functions() *FunctionTable {
	return &t.functions
}

// MaxDepth is the deepest nesting level entered so far. Roots sit at depth
// zero; the value is meaningful only once NumFrames is positive.
func (t *Trace) MaxDepth() int32 {
	return t.maxDepth
}

// StartTime is the start of the first observed frame.
func (t *Trace) StartTime() Timestamp {
	return t.start
}

// EndTime is the latest timestamp observed from any event.
func (t *Trace) EndTime() Timestamp {
	return t.end
}

// TotalTime spans from the first enter to the latest observed timestamp.
func (t *Trace) TotalTime() Duration {
	return t.end - t.start
}
