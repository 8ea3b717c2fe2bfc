// Package viewport models the normalized time window a consumer is looking
// at: an interval [left, right] inside [0, 1] laid over a trace's absolute
// time range, with zoom, pan and re-centering operations that keep the
// window in bounds and no narrower than a minimum interval.
//
// The model is deliberately ignorant of call trees; it only needs the total
// trace duration.
package viewport

// MinIntervalTime is the narrowest time span, in milliseconds, a window may
// show. Zooming below it snaps to exactly this span.
const MinIntervalTime = 0.1

// Reason tags a bounds change so consumers can tell zooms from pans.
type Reason int

const (
	ReasonSet Reason = iota
	ReasonZoom
	ReasonPan
	ReasonCenter
)

func (r Reason) String() string {
	switch r {
	case ReasonSet:
		return "set"
	case ReasonZoom:
		return "zoom"
	case ReasonPan:
		return "pan"
	case ReasonCenter:
		return "center"
	default:
		return "unknown"
	}
}

// Viewport is a normalized window over a trace of some total duration.
// The zero-value is not usable; construct with New.
type Viewport struct {
	total float64
	left  float64
	right float64

	callbacks []func(Reason)
}

// New returns a full-width viewport over a trace lasting totalTime
// milliseconds.
func New(totalTime float64) *Viewport {
	return &Viewport{total: totalTime, left: 0, right: 1}
}

// OnChange registers fn to run synchronously after every bounds change.
func (v *Viewport) OnChange(fn func(Reason)) {
	v.callbacks = append(v.callbacks, fn)
}

func (v *Viewport) Left() float64 {
	return v.left
}

func (v *Viewport) Right() float64 {
	return v.right
}

// Width is the normalized window size.
func (v *Viewport) Width() float64 {
	return v.right - v.left
}

func (v *Viewport) TotalTime() float64 {
	return v.total
}

// MinWidth is the normalized floor on the window size, derived from
// MinIntervalTime. Traces shorter than the minimum interval can only show
// their full width.
func (v *Viewport) MinWidth() float64 {
	if v.total <= 0 {
		return 1
	}
	w := MinIntervalTime / v.total
	if w > 1 {
		return 1
	}
	return w
}

// SetBounds clamps both edges into [0, 1], swaps them if inverted, and
// notifies the registered callbacks with the given reason.
func (v *Viewport) SetBounds(left, right float64, reason Reason) {
	left = clamp01(left)
	right = clamp01(right)
	if left > right {
		left, right = right, left
	}
	v.left, v.right = left, right
	for _, fn := range v.callbacks {
		fn(reason)
	}
}

// Center is the window midpoint.
func (v *Viewport) Center() float64 {
	return (v.left + v.right) / 2
}

// SetCenter slides the window to sit around c, keeping its width and never
// leaving [0, 1].
func (v *Viewport) SetCenter(c float64) {
	left, right := shiftIntoRange(c-v.Width()/2, c+v.Width()/2)
	v.SetBounds(left, right, ReasonCenter)
}

// Zoom grows (positive amount) or shrinks (negative amount) the window by
// amount/500 of its width. centerPercent distributes the change between the
// two edges, so the point at that window fraction keeps its position.
// Shrinking below the minimum width instead snaps to exactly that width
// around the current center, which makes zooming at the floor idempotent.
func (v *Viewport) Zoom(amount, centerPercent float64) {
	width := v.Width()
	delta := width * amount / 500
	left := v.left - delta*centerPercent
	right := v.right + delta*(1-centerPercent)

	if floor := v.MinWidth(); right-left < floor {
		center := v.Center()
		left, right = shiftIntoRange(center-floor/2, center+floor/2)
	}
	v.SetBounds(left, right, ReasonZoom)
}

// Pan shifts the window by amount/1000 of its width, reduced to the room
// remaining so the window cannot move past [0, 1].
func (v *Viewport) Pan(amount float64) {
	shift := v.Width() * amount / 1000
	if shift > 0 {
		if room := 1 - v.right; shift > room {
			shift = room
		}
	} else if room := -v.left; shift < room {
		shift = room
	}
	v.SetBounds(v.left+shift, v.right+shift, ReasonPan)
}

// PercentageFromTime maps an absolute time to a normalized position, either
// within the whole trace or within the current window.
func (v *Viewport) PercentageFromTime(time float64, windowRelative bool) float64 {
	if v.total <= 0 {
		return 0
	}
	p := time / v.total
	if windowRelative {
		return (p - v.left) / v.Width()
	}
	return p
}

// TimeFromPercentage maps a normalized position back to an absolute time.
// For a fixed bounds state it is the inverse of PercentageFromTime in both
// modes.
func (v *Viewport) TimeFromPercentage(percent float64, windowRelative bool) float64 {
	if windowRelative {
		return (v.left + percent*v.Width()) * v.total
	}
	return percent * v.total
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// shiftIntoRange slides [left, right] so it fits into [0, 1] without
// changing its width, which is assumed to be at most 1.
func shiftIntoRange(left, right float64) (float64, float64) {
	if left < 0 {
		right -= left
		left = 0
	}
	if right > 1 {
		left -= right - 1
		right = 1
		if left < 0 {
			left = 0
		}
	}
	return left, right
}
