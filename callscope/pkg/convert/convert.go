// Package convert turns call trees into profiling interchange formats.
package convert

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/pprof/profile"

	"github.com/tracelight/callscope/callscope/pkg/calltree"
	"github.com/tracelight/callscope/callscope/pkg/collapsed"
)

// TraceToCollapsed folds the trace into stack samples. Weights are self time
// in microseconds; frames sharing a call path are merged. Open frames have no
// self time yet and contribute only their path.
func TraceToCollapsed(t *calltree.Trace) (*collapsed.Profile, error) {
	res := &collapsed.Profile{
		Samples: make([]collapsed.Sample, 0),
	}
	index := make(map[string]int)

	var stack []string
	var walk func(id calltree.FrameID)
	walk = func(id calltree.FrameID) {
		f := t.Frame(id)
		stack = append(stack, f.Name)

		if value := int64(math.Round(f.Self * 1000)); f.Closed && value > 0 {
			key := strings.Join(stack, ";")
			if i, ok := index[key]; ok {
				res.Samples[i].Value += value
			} else {
				index[key] = len(res.Samples)
				res.Samples = append(res.Samples, collapsed.Sample{
					Stack: append([]string(nil), stack...),
					Value: value,
				})
			}
		}

		for _, child := range f.Children {
			walk(child)
		}
		stack = stack[:len(stack)-1]
	}
	for _, root := range t.Roots() {
		walk(root)
	}

	return res, nil
}

// TraceToPProf builds a pprof profile with two sample types: call counts and
// self time in nanoseconds. Locations are leaf-first, one per function.
func TraceToPProf(t *calltree.Trace) (*profile.Profile, error) {
	res := &profile.Profile{
		SampleType: []*profile.ValueType{{
			Type: "calls",
			Unit: "count",
		}, {
			Type: "selftime",
			Unit: "nanoseconds",
		}},
		DefaultSampleType: "selftime",
		DurationNanos:     int64(math.Round(t.TotalTime() * 1e6)),
	}

	locations := make(map[calltree.FunctionID]*profile.Location)
	locationOf := func(id calltree.FunctionID) *profile.Location {
		if loc, ok := locations[id]; ok {
			return loc
		}
		fn := t.Functions().Function(id)
		funcPtr := &profile.Function{
			ID:        1 + uint64(len(res.Function)),
			Name:      fn.Name,
			Filename:  fn.Location.Path,
			StartLine: int64(fn.Location.Line),
		}
		loc := &profile.Location{
			ID: 1 + uint64(len(res.Location)),
			Line: []profile.Line{{
				Function: funcPtr,
				Line:     int64(fn.Location.Line),
			}},
		}
		res.Function = append(res.Function, funcPtr)
		res.Location = append(res.Location, loc)
		locations[id] = loc
		return loc
	}

	samples := make(map[string]*profile.Sample)
	var stack []*profile.Location
	var path []string
	var walk func(id calltree.FrameID)
	walk = func(id calltree.FrameID) {
		f := t.Frame(id)
		stack = append(stack, locationOf(f.Function))
		path = append(path, strconv.Itoa(int(f.Function)))

		key := strings.Join(path, ";")
		sample, ok := samples[key]
		if !ok {
			locs := make([]*profile.Location, len(stack))
			for i, loc := range stack {
				locs[len(stack)-1-i] = loc
			}
			sample = &profile.Sample{
				Location: locs,
				Value:    []int64{0, 0},
			}
			samples[key] = sample
			res.Sample = append(res.Sample, sample)
		}
		sample.Value[0]++
		if f.Closed {
			sample.Value[1] += int64(math.Round(f.Self * 1e6))
		}

		for _, child := range f.Children {
			walk(child)
		}
		stack = stack[:len(stack)-1]
		path = path[:len(path)-1]
	}
	for _, root := range t.Roots() {
		walk(root)
	}

	return res, nil
}
