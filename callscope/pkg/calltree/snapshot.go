package calltree

import (
	"errors"
	"fmt"

	"github.com/tracelight/callscope/library/go/ptr"
)

// ErrInvalidSnapshot marks snapshots that no event stream could have
// produced.
var ErrInvalidSnapshot = errors.New("calltree: invalid snapshot")

// Snapshot is the persisted form of a trace: the function table plus the
// frame forest. Optional fields are omitted when absent, so the encoding
// is sparse.
type Snapshot struct {
	Functions []FunctionSnapshot `json:"functions"`
	Children  []FrameSnapshot    `json:"children"`
}

type FunctionSnapshot struct {
	Count      int64           `json:"count"`
	Name       string          `json:"name"`
	Location   *SourceLocation `json:"location,omitempty"`
	ParamNames []string        `json:"parameterNames,omitempty"`
	TotalTime  *float64        `json:"totalTime,omitempty"`
	SelfTime   *float64        `json:"selfTime,omitempty"`
}

type FrameSnapshot struct {
	FID       int32           `json:"fid"`
	StartTime float64         `json:"startTime"`
	EndTime   *float64        `json:"endTime,omitempty"`
	Arguments []string        `json:"arguments,omitempty"`
	Return    *string         `json:"return,omitempty"`
	Throw     *string         `json:"throw,omitempty"`
	Yield     *string         `json:"yield,omitempty"`
	Children  []FrameSnapshot `json:"children"`
}

// Snapshot renders the trace into its persisted form. Frames still open at
// this point serialize without an end time. Callsites are live-only
// bookkeeping and are not persisted.
func (t *Trace) Snapshot() *Snapshot {
	s := &Snapshot{
		Functions: make([]FunctionSnapshot, 0, t.functions.Len()),
		Children:  make([]FrameSnapshot, 0, len(t.roots)),
	}
	for i := 0; i < t.functions.Len(); i++ {
		fn := t.functions.Function(FunctionID(i))
		fs := FunctionSnapshot{
			Count:      fn.CallCount,
			Name:       fn.Name,
			ParamNames: fn.ParamNames,
		}
		if fn.Location != (SourceLocation{}) {
			fs.Location = ptr.T(fn.Location)
		}
		if fn.HasTimes {
			fs.TotalTime = ptr.Float64(fn.TotalTime)
			fs.SelfTime = ptr.Float64(fn.SelfTime)
		}
		s.Functions = append(s.Functions, fs)
	}
	for _, id := range t.roots {
		s.Children = append(s.Children, t.frameSnapshot(id))
	}
	return s
}

func (t *Trace) frameSnapshot(id FrameID) FrameSnapshot {
	f := &t.frames[id]
	fs := FrameSnapshot{
		FID:       int32(f.Function),
		StartTime: f.Start,
		Arguments: f.Arguments,
		Return:    f.Return,
		Throw:     f.Thrown,
		Yield:     f.Yielded,
		Children:  make([]FrameSnapshot, 0, len(f.Children)),
	}
	if f.Closed {
		fs.EndTime = ptr.Float64(f.End)
	}
	for _, c := range f.Children {
		fs.Children = append(fs.Children, t.frameSnapshot(c))
	}
	return fs
}

// Restore rebuilds a trace by replaying the snapshot depth-first through
// the ingestion interface: each node enters, its children replay, then the
// node exits if it ever closed. The restored trace is finished, and
// serializing it again reproduces the snapshot.
//
// Frames recorded as open must be the newest call of their branch; other
// shapes cannot come out of any event stream and are rejected.
func Restore(s *Snapshot) (*Trace, error) {
	t := New()
	for i := range s.Children {
		root := &s.Children[i]
		if root.EndTime == nil && i != len(s.Children)-1 {
			return nil, fmt.Errorf("%w: open frame precedes later root frames", ErrInvalidSnapshot)
		}
		if err := t.replay(s, root); err != nil {
			return nil, err
		}
	}
	t.Finish()
	return t, nil
}

func (t *Trace) replay(s *Snapshot, node *FrameSnapshot) error {
	if node.FID < 0 || int(node.FID) >= len(s.Functions) {
		return fmt.Errorf("%w: frame references function %d of %d", ErrInvalidSnapshot, node.FID, len(s.Functions))
	}
	fn := &s.Functions[node.FID]

	enter := EnterEvent{
		Name:       fn.Name,
		ParamNames: fn.ParamNames,
		Arguments:  node.Arguments,
		Time:       node.StartTime,
	}
	if fn.Location != nil {
		enter.Location = *fn.Location
	}
	if err := t.Enter(enter); err != nil {
		return err
	}

	open := node.EndTime == nil
	for i := range node.Children {
		child := &node.Children[i]
		if child.EndTime == nil && (!open || i != len(node.Children)-1) {
			return fmt.Errorf("%w: open frame is not the newest call of its parent", ErrInvalidSnapshot)
		}
		if err := t.replay(s, child); err != nil {
			return err
		}
	}

	if open {
		return nil
	}
	return t.Exit(ExitEvent{
		Time:    *node.EndTime,
		Return:  node.Return,
		Thrown:  node.Throw,
		Yielded: node.Yield,
	})
}
