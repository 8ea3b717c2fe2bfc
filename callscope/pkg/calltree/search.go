package calltree

import "sort"

// SearchEndTimes binary-searches siblings, ordered by ascending end time
// with open frames last, for the leftmost frame whose end time is at least
// bound. It returns that frame's index when some frame ends exactly at
// bound, and -(insertion+1) otherwise. Sibling lists produced by ingestion
// satisfy the ordering automatically: children close in insertion order.
func SearchEndTimes(t *Trace, siblings []FrameID, bound Timestamp) int {
	i := sort.Search(len(siblings), func(i int) bool {
		f := &t.frames[siblings[i]]
		return !f.Closed || f.End >= bound
	})
	if i < len(siblings) {
		if f := &t.frames[siblings[i]]; f.Closed && f.End == bound {
			return i
		}
	}
	return -(i + 1)
}

// InsertionPoint decodes a SearchEndTimes result into a plain index,
// whether or not the search matched exactly.
func InsertionPoint(res int) int {
	if res < 0 {
		return -res - 1
	}
	return res
}

// VisibleChildren lists the children of parent that may intersect the time
// window [left, right], in sibling order. Pass NoFrame to scan the root
// frames. Open frames count as unbounded, so live traces work too.
func VisibleChildren(t *Trace, parent FrameID, left, right Timestamp) []FrameID {
	siblings := t.roots
	if parent != NoFrame {
		siblings = t.frames[parent].Children
	}

	var res []FrameID
	for i := InsertionPoint(SearchEndTimes(t, siblings, left)); i < len(siblings); i++ {
		f := &t.frames[siblings[i]]
		if f.Start > right {
			break
		}
		res = append(res, siblings[i])
	}
	return res
}
