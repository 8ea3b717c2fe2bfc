package convert_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracelight/callscope/callscope/pkg/calltree"
	"github.com/tracelight/callscope/callscope/pkg/collapsed"
	"github.com/tracelight/callscope/callscope/pkg/convert"
)

func buildTree(t *testing.T, events ...calltree.Event) *calltree.Trace {
	t.Helper()

	tree := calltree.New()
	for _, ev := range events {
		require.NoError(t, tree.Apply(ev))
	}
	return tree
}

func profilingTree(t *testing.T) *calltree.Trace {
	t.Helper()

	return buildTree(t,
		calltree.EnterEvent{Name: "main", Location: calltree.SourceLocation{Path: "app.js", Line: 1}, Time: 0},
		calltree.EnterEvent{Name: "work", Location: calltree.SourceLocation{Path: "app.js", Line: 10}, Time: 1},
		calltree.EnterEvent{Name: "util", Location: calltree.SourceLocation{Path: "util.js", Line: 20}, Time: 2},
		calltree.ExitEvent{Time: 3},
		calltree.ExitEvent{Time: 4},
		calltree.EnterEvent{Name: "work", Location: calltree.SourceLocation{Path: "app.js", Line: 10}, Time: 5},
		calltree.ExitEvent{Time: 7},
		calltree.ExitEvent{Time: 10},
	)
}

func TestTraceToCollapsed(t *testing.T) {
	folded, err := convert.TraceToCollapsed(profilingTree(t))
	require.NoError(t, err)

	raw, err := collapsed.Marshal(folded)
	require.NoError(t, err)
	require.Equal(t, `main 5000
main;work 4000
main;work;util 1000
`, string(raw))
}

func TestTraceToCollapsed_OpenFramesCarryNoWeight(t *testing.T) {
	tree := buildTree(t,
		calltree.EnterEvent{Name: "a", Time: 0},
		calltree.EnterEvent{Name: "b", Time: 1},
		calltree.ExitEvent{Time: 3},
	)

	folded, err := convert.TraceToCollapsed(tree)
	require.NoError(t, err)
	require.Equal(t, []collapsed.Sample{{
		Stack: []string{"a", "b"},
		Value: 2000,
	}}, folded.Samples)
}

func TestTraceToPProf(t *testing.T) {
	prof, err := convert.TraceToPProf(profilingTree(t))
	require.NoError(t, err)
	require.NoError(t, prof.CheckValid())

	require.Equal(t, "selftime", prof.DefaultSampleType)
	require.Equal(t, int64(10_000_000), prof.DurationNanos)

	require.Len(t, prof.Sample, 3)
	require.Equal(t, []int64{1, 5_000_000}, prof.Sample[0].Value)
	require.Equal(t, []int64{2, 4_000_000}, prof.Sample[1].Value)
	require.Equal(t, []int64{1, 1_000_000}, prof.Sample[2].Value)

	names := make([]string, 0)
	for _, loc := range prof.Sample[2].Location {
		names = append(names, loc.Line[0].Function.Name)
	}
	require.Equal(t, []string{"util", "work", "main"}, names)

	require.Len(t, prof.Function, 3)
	require.Equal(t, "app.js", prof.Function[0].Filename)
	require.Equal(t, int64(10), prof.Function[1].StartLine)
	require.Equal(t, "util.js", prof.Function[2].Filename)
}

func TestTraceToPProf_CountsOpenCalls(t *testing.T) {
	tree := buildTree(t,
		calltree.EnterEvent{Name: "a", Time: 0},
		calltree.EnterEvent{Name: "b", Time: 1},
		calltree.ExitEvent{Time: 3},
	)

	prof, err := convert.TraceToPProf(tree)
	require.NoError(t, err)
	require.NoError(t, prof.CheckValid())

	require.Len(t, prof.Sample, 2)
	require.Equal(t, []int64{1, 0}, prof.Sample[0].Value)
	require.Equal(t, []int64{1, 2_000_000}, prof.Sample[1].Value)
}
