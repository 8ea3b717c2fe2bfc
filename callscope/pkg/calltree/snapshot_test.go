package calltree_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracelight/callscope/callscope/pkg/calltree"
	"github.com/tracelight/callscope/library/go/ptr"
)

func buildRichTrace(t *testing.T) *calltree.Trace {
	t.Helper()

	tr := calltree.New()
	feed(t, tr,
		calltree.EnterEvent{
			Name:     "main",
			Location: calltree.SourceLocation{Path: "app.js", Line: 1, Column: 1},
			Callsite: "bootstrap.js:9:2",
			Time:     0,
		},
		calltree.EnterEvent{
			Name:       "fib",
			Location:   calltree.SourceLocation{Path: "app.js", Line: 10, Column: 4},
			ParamNames: []string{"n"},
			Arguments:  []string{"7"},
			Time:       0.5,
		},
		calltree.ExitEvent{Time: 2.25, Return: ptr.String("13")},
		calltree.EnterEvent{Name: "native", Time: 3},
		calltree.ExitEvent{Time: 3.5, Thrown: ptr.String("RangeError")},
		calltree.ExitEvent{Time: 4, Return: ptr.String("undefined")},
		calltree.EnterEvent{Name: "main", Location: calltree.SourceLocation{Path: "app.js", Line: 1, Column: 1}, Time: 5},
	)
	tr.Finish()
	return tr
}

func TestSnapshot_RoundTripIsIdempotent(t *testing.T) {
	tr := buildRichTrace(t)

	first, err := json.Marshal(tr.Snapshot())
	require.NoError(t, err)

	var decoded calltree.Snapshot
	require.NoError(t, json.Unmarshal(first, &decoded))

	restored, err := calltree.Restore(&decoded)
	require.NoError(t, err)
	require.True(t, restored.Finished())

	second, err := json.Marshal(restored.Snapshot())
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestSnapshot_RestorePreservesStructure(t *testing.T) {
	tr := buildRichTrace(t)
	restored, err := calltree.Restore(tr.Snapshot())
	require.NoError(t, err)

	require.Equal(t, tr.NumFrames(), restored.NumFrames())
	require.Equal(t, tr.Roots(), restored.Roots())
	require.Equal(t, tr.MaxDepth(), restored.MaxDepth())
	require.Equal(t, tr.StartTime(), restored.StartTime())
	require.Equal(t, tr.EndTime(), restored.EndTime())

	require.Equal(t, tr.Functions().Len(), restored.Functions().Len())
	for id := 0; id < tr.Functions().Len(); id++ {
		want := tr.Functions().Function(calltree.FunctionID(id))
		got := restored.Functions().Function(calltree.FunctionID(id))
		require.Equal(t, want, got)
	}

	for i := 0; i < tr.NumFrames(); i++ {
		want := tr.Frame(calltree.FrameID(i))
		got := restored.Frame(calltree.FrameID(i))
		require.Equal(t, want.Function, got.Function)
		require.Equal(t, want.Depth, got.Depth)
		require.Equal(t, want.Parent, got.Parent)
		require.Equal(t, want.Children, got.Children)
		require.Equal(t, want.Start, got.Start)
		require.Equal(t, want.Closed, got.Closed)
		require.Equal(t, want.Total, got.Total)
		require.Equal(t, want.Self, got.Self)
		// Callsites are live-only and do not survive the round trip.
		require.Empty(t, got.Callsite)
	}
}

func TestSnapshot_SparseEncoding(t *testing.T) {
	tr := calltree.New()
	feed(t, tr,
		calltree.EnterEvent{Name: "open", Time: 1},
	)
	tr.Finish()

	raw, err := json.Marshal(tr.Snapshot())
	require.NoError(t, err)

	// The only frame never exited and its function has no location, so the
	// optional keys must all be absent.
	require.JSONEq(t, `{
		"functions": [{"count": 1, "name": "open"}],
		"children": [{"fid": 0, "startTime": 1, "children": []}]
	}`, string(raw))
}

func TestSnapshot_OpenSpineRoundTrip(t *testing.T) {
	tr := calltree.New()
	feed(t, tr,
		enter("outer", 0),
		enter("inner", 1),
		exit(2),
		enter("hung", 3),
	)
	tr.Finish()

	first, err := json.Marshal(tr.Snapshot())
	require.NoError(t, err)

	restored, err := calltree.Restore(tr.Snapshot())
	require.NoError(t, err)
	require.False(t, restored.Frame(0).Closed)
	require.True(t, restored.Frame(1).Closed)
	require.False(t, restored.Frame(2).Closed)

	second, err := json.Marshal(restored.Snapshot())
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestSnapshot_RestoreRejectsImpossibleShapes(t *testing.T) {
	fn := calltree.FunctionSnapshot{Count: 1, Name: "f"}

	for _, test := range []struct {
		name     string
		snapshot *calltree.Snapshot
	}{{
		name: "unknown function reference",
		snapshot: &calltree.Snapshot{
			Functions: []calltree.FunctionSnapshot{fn},
			Children: []calltree.FrameSnapshot{
				{FID: 7, StartTime: 0, EndTime: ptr.Float64(1)},
			},
		},
	}, {
		name: "open root before later roots",
		snapshot: &calltree.Snapshot{
			Functions: []calltree.FunctionSnapshot{fn},
			Children: []calltree.FrameSnapshot{
				{FID: 0, StartTime: 0},
				{FID: 0, StartTime: 1, EndTime: ptr.Float64(2)},
			},
		},
	}, {
		name: "open child of a closed parent",
		snapshot: &calltree.Snapshot{
			Functions: []calltree.FunctionSnapshot{fn},
			Children: []calltree.FrameSnapshot{
				{FID: 0, StartTime: 0, EndTime: ptr.Float64(3), Children: []calltree.FrameSnapshot{
					{FID: 0, StartTime: 1},
				}},
			},
		},
	}, {
		name: "open child before later siblings",
		snapshot: &calltree.Snapshot{
			Functions: []calltree.FunctionSnapshot{fn},
			Children: []calltree.FrameSnapshot{
				{FID: 0, StartTime: 0, Children: []calltree.FrameSnapshot{
					{FID: 0, StartTime: 1},
					{FID: 0, StartTime: 2, EndTime: ptr.Float64(3)},
				}},
			},
		},
	}} {
		t.Run(test.name, func(t *testing.T) {
			_, err := calltree.Restore(test.snapshot)
			require.ErrorIs(t, err, calltree.ErrInvalidSnapshot)
		})
	}
}
